package store

import (
	"testing"

	"github.com/dukerupert/spotx/internal/model"
)

func TestUserCreate(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, err := us.Create("  Alice@Example.com ", "Alice", model.RoleMerchant, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized", u.Email)
	}
	if u.Role != model.RoleMerchant {
		t.Errorf("role = %q, want merchant", u.Role)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash not stored")
	}
	if len(u.Interests) != 0 {
		t.Errorf("interests = %v, want empty", u.Interests)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	if _, err := us.Create("alice@example.com", "Alice", model.RoleUser, ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("ALICE@example.com", "Alice2", model.RoleUser, ""); err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserEnsureIsIdempotent(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	first, err := us.Ensure("sub-1", "bob@example.com")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.ID != "sub-1" || first.Role != model.RoleUser {
		t.Fatalf("ensure = %+v", first)
	}
	if err := us.SetRole("sub-1", model.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}

	again, err := us.Ensure("sub-1", "other@example.com")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.Email != "bob@example.com" {
		t.Errorf("email = %q, existing row should be kept", again.Email)
	}
	if again.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", again.Role)
	}
}

func TestUserGetMissing(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, err := us.GetByID("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil, got %+v", u)
	}
	u, err = us.GetByEmail("nobody@example.com")
	if err != nil || u != nil {
		t.Errorf("GetByEmail = %v, %v; want nil, nil", u, err)
	}
}

func TestUserUpdateProfile(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	u := createTestUser(t, db, "carol@example.com")

	got, err := us.UpdateProfile(u.ID, "Carol", []string{" Food", "travel", "food", ""})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.DisplayName != "Carol" {
		t.Errorf("display name = %q", got.DisplayName)
	}
	want := []string{"food", "travel"}
	if len(got.Interests) != len(want) {
		t.Fatalf("interests = %v, want %v", got.Interests, want)
	}
	for i := range want {
		if got.Interests[i] != want[i] {
			t.Errorf("interests[%d] = %q, want %q", i, got.Interests[i], want[i])
		}
	}

	n, err := us.Count()
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}
}
