package memory

import (
	"context"
	"time"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// Create appends a user and assigns the next monotonic id plus the creation
// timestamp. Uniqueness of username/email is the caller's responsibility —
// the service layer checks before calling Create.
//
// POINTER RECEIVER ARGUMENT:
// We take *model.User so the caller sees the assigned ID and CreatedAt after
// Create returns. Internally we store a copy of the struct, so later mutation
// of the caller's value can't corrupt the store.
func (us *UserStore) Create(_ context.Context, user *model.User) error {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now().UTC()

	s.users = append(s.users, *user)
	return nil
}

// GetByID returns the first user with the given id, or NotFound.
func (us *UserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == id {
			u := s.users[i] // copy, so callers can't mutate the store
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

// GetByUsername returns the first user with exactly this username.
func (us *UserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].Username == username {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, apperror.NotFoundf("user %q not found", username)
}

// GetByEmail returns the first user with exactly this email.
func (us *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].Email == email {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, apperror.NotFoundf("user with email %q not found", email)
}

// List returns the [skip, skip+limit) window of users in insertion order.
// A skip past the end of the collection yields an empty slice, not an error.
func (us *UserStore) List(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()

	return pageOf(s.users, opts), nil
}

// Count returns the total number of users.
func (us *UserStore) Count(_ context.Context) (int, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.users), nil
}

// pageOf slices the [skip, skip+limit) window out of a collection, clamping
// both bounds so out-of-range values degrade to an empty page. Generic so the
// user and item listings share one implementation.
func pageOf[T any](all []T, opts repository.ListOptions) []T {
	skip, limit := opts.Skip, opts.Limit
	if skip < 0 {
		skip = 0
	}
	if skip >= len(all) || limit <= 0 {
		return []T{}
	}

	end := skip + limit
	if end > len(all) {
		end = len(all)
	}

	// Copy the window so callers never alias the store's backing array.
	page := make([]T, end-skip)
	copy(page, all[skip:end])
	return page
}
