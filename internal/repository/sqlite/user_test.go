package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/model"
)

func TestUpsertLogin_CreatesWithDefaults(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Email: "new@example.com", Name: "New", Photo: "p.png"}
	created, err := db.UpsertLogin(context.Background(), user)
	if err != nil {
		t.Fatalf("UpsertLogin() error = %v", err)
	}

	if !created {
		t.Error("UpsertLogin() created = false on first login, want true")
	}
	if user.ID == "" {
		t.Error("UpsertLogin() did not set user.ID")
	}
	if user.Role != model.RoleStudent {
		t.Errorf("Role = %q, want %q", user.Role, model.RoleStudent)
	}
	if user.Status != model.UserActive {
		t.Errorf("Status = %q, want %q", user.Status, model.UserActive)
	}
	if user.CreatedAt.IsZero() {
		t.Error("UpsertLogin() did not set CreatedAt")
	}
}

func TestUpsertLogin_ExistingKeepsRoleAndRefreshesProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{Email: "a@x.com", Name: "Old"}
	if _, err := db.UpsertLogin(ctx, first); err != nil {
		t.Fatalf("first UpsertLogin() error = %v", err)
	}
	if err := db.SetUserRole(ctx, first.ID, model.RoleAdmin); err != nil {
		t.Fatalf("SetUserRole() error = %v", err)
	}

	second := &model.User{Email: "a@x.com", Name: "New", Photo: "new.png"}
	created, err := db.UpsertLogin(ctx, second)
	if err != nil {
		t.Fatalf("second UpsertLogin() error = %v", err)
	}

	if created {
		t.Error("UpsertLogin() created = true for existing user")
	}
	if second.ID != first.ID {
		t.Errorf("ID = %q, want %q", second.ID, first.ID)
	}
	if second.Name != "New" || second.Photo != "new.png" {
		t.Errorf("profile = %q/%q, want New/new.png", second.Name, second.Photo)
	}
	if second.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want admin to survive a re-login", second.Role)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByEmail_IsCaseSensitive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertLogin(ctx, &model.User{Email: "Case@x.com"}); err != nil {
		t.Fatalf("UpsertLogin() error = %v", err)
	}

	if _, err := db.GetUserByEmail(ctx, "case@x.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail(lowercase) error = %v, want ErrNotFound", err)
	}
}

func TestSetUserStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &model.User{Email: "s@x.com"}
	if _, err := db.UpsertLogin(ctx, u); err != nil {
		t.Fatalf("UpsertLogin() error = %v", err)
	}

	if err := db.SetUserStatus(ctx, u.ID, model.UserSuspended); err != nil {
		t.Fatalf("SetUserStatus() error = %v", err)
	}

	got, err := db.GetUserByEmail(ctx, "s@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.Status != model.UserSuspended {
		t.Errorf("Status = %q, want suspended", got.Status)
	}
}

func TestSetUserRole_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.SetUserRole(context.Background(), "missing", model.RoleAdmin)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("SetUserRole() error = %v, want ErrNotFound", err)
	}
}

func TestListAndCountUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := db.UpsertLogin(ctx, &model.User{Email: email}); err != nil {
			t.Fatalf("UpsertLogin(%s) error = %v", email, err)
		}
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 3 {
		t.Errorf("ListUsers() returned %d users, want 3", len(users))
	}

	n, err := db.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers() error = %v", err)
	}
	if n != 3 {
		t.Errorf("CountUsers() = %d, want 3", n)
	}
}
