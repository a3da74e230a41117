package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/auth"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
	"github.com/sakif/marketplace-api/internal/service"
)

// ItemHandler is the marketplace surface: browsing, search, CRUD, and
// aggregate endpoints. Reads are public; writes require authentication
// plus ownership (enforced in the service layer).
type ItemHandler struct {
	items  *service.ItemService
	logger *slog.Logger
}

func NewItemHandler(items *service.ItemService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{items: items, logger: logger}
}

// createItemRequest is the POST /items payload.
type createItemRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Category    string  `json:"category" validate:"required"`
}

// updateItemRequest is the PUT /items/{id} payload. Every field is a
// pointer: nil means "leave unchanged", so a partial update only touches
// what the client sent.
type updateItemRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0"`
	Category    *string  `json:"category" validate:"omitempty,min=1"`
}

// itemPage is the paginated envelope for GET /items.
//
// PAGE MATH:
//   - page  = skip/limit + 1 (or 0 when nothing matched the filter)
//   - pages = ceil(total/limit)
//   - size  = number of items actually in this page
type itemPage struct {
	Items []model.Item `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
	Pages int          `json:"pages"`
}

// HandleList returns a filtered, paginated item listing.
//
// HTTP: GET /items?skip=0&limit=10&category=&search=&min_price=&max_price=
//
// FILTERS apply in a fixed order: category, then search (name/description
// substring, case-insensitive), then min_price, then max_price. Pagination
// happens after filtering, and `total` counts the filtered set.
func (h *ItemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	skip, err := queryInt(q, "skip", 0, 0, maxSkip)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(q, "limit", 10, 1, 100)
	if err != nil {
		writeError(w, r, err)
		return
	}
	minPrice, err := queryFloat(q, "min_price")
	if err != nil {
		writeError(w, r, err)
		return
	}
	maxPrice, err := queryFloat(q, "max_price")
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := repository.ItemFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	}

	items, total, err := h.items.List(r.Context(), filter, skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page := 0
	if total > 0 {
		page = skip/limit + 1
	}

	writeJSON(w, http.StatusOK, itemPage{
		Items: items,
		Total: total,
		Page:  page,
		Size:  len(items),
		Pages: (total + limit - 1) / limit,
	})
}

// HandleSearch is a more expressive lookup than the list filter: a free-text
// query matched against name, description, and category, with sorting.
//
// HTTP: GET /items/search?q=&category=&min_price=&max_price=&sort_by=created_at&sort_order=desc&limit=20
//
// NOTE: this route must be registered BEFORE /items/{id}, otherwise the
// router would try to parse "search" as an item id.
func (h *ItemHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q, "limit", 20, 1, 100)
	if err != nil {
		writeError(w, r, err)
		return
	}
	minPrice, err := queryFloat(q, "min_price")
	if err != nil {
		writeError(w, r, err)
		return
	}
	maxPrice, err := queryFloat(q, "max_price")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sortBy, err := queryEnum(q, "sort_by", "created_at", "name", "price", "created_at", "updated_at")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sortOrder, err := queryEnum(q, "sort_order", "desc", "asc", "desc")
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.items.Search(r.Context(), repository.SearchOptions{
		Query:     q.Get("q"),
		Category:  q.Get("category"),
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Limit:     limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleGet returns a single item by id.
//
// HTTP: GET /items/{id}
func (h *ItemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleCreate lists a new item owned by the caller.
//
// HTTP: POST /items (auth required)
func (h *ItemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthenticated("Authentication required"))
		return
	}

	var req createItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.items.Create(r.Context(), caller, service.CreateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// HandleUpdate applies a partial update to an item the caller owns
// (admins may update any item).
//
// HTTP: PUT /items/{id} (auth required)
func (h *ItemHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthenticated("Authentication required"))
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.items.Update(r.Context(), caller, id, service.UpdateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleDelete removes an item the caller owns (admins may delete any item).
//
// HTTP: DELETE /items/{id} (auth required)
// RESPONSE: 204 with no body
func (h *ItemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthenticated("Authentication required"))
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.items.Delete(r.Context(), caller, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleCategories returns per-category item counts and average prices.
//
// HTTP: GET /items/categories
func (h *ItemHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	summary, err := h.items.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories": summary,
		"total":      len(summary),
	})
}

// HandleStats returns marketplace-wide statistics, personalised with the
// caller's own item count.
//
// HTTP: GET /stats (auth required)
func (h *ItemHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthenticated("Authentication required"))
		return
	}

	stats, err := h.items.Stats(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
