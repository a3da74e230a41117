package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository/memory"
)

func newTestUserService(t *testing.T) (*UserService, *ItemService, *model.User, *model.User, *model.User) {
	t.Helper()
	store := memory.New()

	admin := &model.User{Username: "admin", Email: "admin@example.com", IsActive: true}
	alice := &model.User{Username: "alice", Email: "alice@example.com", IsActive: true}
	bob := &model.User{Username: "bob", Email: "bob@example.com", IsActive: true}
	for _, u := range []*model.User{admin, alice, bob} {
		if err := store.Users().Create(context.Background(), u); err != nil {
			t.Fatalf("seeding user %s: %v", u.Username, err)
		}
	}

	return NewUserService(store.Users(), store.Items(), testLogger()),
		NewItemService(store.Items(), store.Users(), testLogger()),
		admin, alice, bob
}

func TestUserList_Pagination(t *testing.T) {
	svc, _, _, _, _ := newTestUserService(t)

	users, err := svc.List(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("List(skip=1, limit=1) = %v, want just alice", users)
	}
}

func TestUserGet_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestUserService(t)

	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get(42) error = %v, want ErrNotFound", err)
	}
}

func TestItemsOf_PermissionRule(t *testing.T) {
	userSvc, itemSvc, admin, alice, bob := newTestUserService(t)
	ctx := context.Background()

	if _, err := itemSvc.Create(ctx, alice, CreateItemInput{Name: "laptop", Price: 999, Category: "electronics"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A user may list their own items
	items, err := userSvc.ItemsOf(ctx, alice, alice.ID, 0, 100)
	if err != nil {
		t.Fatalf("ItemsOf(self) error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("ItemsOf(self) = %d items, want 1", len(items))
	}

	// The admin may list anyone's
	if _, err := userSvc.ItemsOf(ctx, admin, alice.ID, 0, 100); err != nil {
		t.Fatalf("ItemsOf(admin viewing alice) error = %v", err)
	}

	// Anyone else is forbidden
	if _, err := userSvc.ItemsOf(ctx, bob, alice.ID, 0, 100); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("ItemsOf(bob viewing alice) error = %v, want ErrForbidden", err)
	}
}

func TestItemsOf_UnknownTargetYieldsEmptyList(t *testing.T) {
	userSvc, _, admin, _, _ := newTestUserService(t)

	// No 404 here: an authorized caller asking for a non-existent user's
	// items just sees an empty list.
	items, err := userSvc.ItemsOf(context.Background(), admin, 42, 0, 100)
	if err != nil {
		t.Fatalf("ItemsOf(missing user) error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want empty", items)
	}
}
