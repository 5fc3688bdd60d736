package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/spotx/internal/model"
	"github.com/google/uuid"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	var role, interests string
	err := s.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &interests, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.Interests = decodeTags(interests)
	return &u, nil
}

const userCols = `id, email, display_name, role, interests, password_hash, created_at, updated_at`

// Create inserts a portal user. passwordHash may be empty for users whose
// credentials live with the external identity provider.
func (s *UserStore) Create(email, displayName string, role model.Role, passwordHash string) (*model.User, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, display_name, role, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, normalizeEmail(email), displayName, string(role), passwordHash, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

// Ensure provisions a user row for an identity whose token was already
// verified. Existing rows are left untouched.
func (s *UserStore) Ensure(id, email string) (*model.User, error) {
	now := time.Now().UTC()
	if email == "" {
		email = id + "@users.invalid"
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO users (id, email, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, normalizeEmail(email), string(model.RoleUser), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, normalizeEmail(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateProfile replaces the display name and interest tags.
func (s *UserStore) UpdateProfile(id, displayName string, interests []string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET display_name = ?, interests = ?, updated_at = ? WHERE id = ?`,
		displayName, encodeTags(normalizeTags(interests)), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) SetRole(id string, role model.Role) error {
	_, err := s.db.Exec(`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, string(role), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return nil
}

// Count returns the number of registered users.
func (s *UserStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeTags lowercases, trims and de-duplicates interest tags.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
