package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sakif/marketplace-api/internal/apperror"
)

// validate is the package-wide validator instance. validator.New() caches
// struct metadata, so one shared instance is both the idiomatic and the
// fast way to use the library.
var validate = validator.New()

// decodeAndValidate decodes the JSON request body into v and runs the
// struct's `validate` tags. Both failure modes come back as a validation
// error (HTTP 422) — a malformed body and an out-of-range field are the
// same class of client mistake.
func decodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body: "+err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns validator.ValidationErrors into our taxonomy with a
// readable message naming the first offending field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		return apperror.ValidationFailed(field,
			fmt.Sprintf("Validation error: field %q failed on the %q rule", field, fe.Tag()))
	}
	return apperror.ValidationFailed("", "Validation error: "+err.Error())
}

// pathID parses the {id} URL parameter as a positive integer.
// Chi provides chi.URLParam(r, "id"); anything non-numeric is a 422, matching
// how typed path parameters behave in the original API contract.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", fmt.Sprintf("Invalid id %q: must be an integer", raw))
	}
	return id, nil
}

// maxSkip is the effective upper bound for the skip parameter. There is no
// business limit on the offset, only a lower bound of zero.
const maxSkip = math.MaxInt

// queryInt parses an integer query parameter with an inclusive range.
// Absent values take the default; present-but-invalid or out-of-range
// values are a 422, never silently clamped.
func queryInt(q url.Values, name string, def, min, max int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name,
			fmt.Sprintf("Invalid %s %q: must be an integer", name, raw))
	}
	if n < min || n > max {
		if max == maxSkip {
			return 0, apperror.ValidationFailed(name,
				fmt.Sprintf("Invalid %s: must be greater than or equal to %d", name, min))
		}
		return 0, apperror.ValidationFailed(name,
			fmt.Sprintf("Invalid %s: must be between %d and %d", name, min, max))
	}
	return n, nil
}

// queryFloat parses an optional non-negative float query parameter.
// Returns nil when absent so callers can distinguish "no filter" from 0.
func queryFloat(q url.Values, name string) (*float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperror.ValidationFailed(name,
			fmt.Sprintf("Invalid %s %q: must be a number", name, raw))
	}
	if f < 0 {
		return nil, apperror.ValidationFailed(name,
			fmt.Sprintf("Invalid %s: must be greater than or equal to 0", name))
	}
	return &f, nil
}

// queryEnum parses a query parameter restricted to a fixed set of values.
func queryEnum(q url.Values, name, def string, allowed ...string) (string, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	for _, a := range allowed {
		if raw == a {
			return raw, nil
		}
	}
	return "", apperror.ValidationFailed(name,
		fmt.Sprintf("Invalid %s %q: must be one of %s", name, raw, strings.Join(allowed, ", ")))
}
