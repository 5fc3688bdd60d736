package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/spotx/internal/model"
	"github.com/google/uuid"
)

type MerchantStore struct {
	db *sql.DB
}

func NewMerchantStore(db *sql.DB) *MerchantStore {
	return &MerchantStore{db: db}
}

const merchantCols = `id, user_id, business_name, contact_email, status, created_at, updated_at`

func scanMerchant(s scanner) (*model.Merchant, error) {
	var m model.Merchant
	var status string
	if err := s.Scan(&m.ID, &m.UserID, &m.BusinessName, &m.ContactEmail, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Status = model.MerchantStatus(status)
	return &m, nil
}

// Create registers a merchant profile for userID in pending state.
func (s *MerchantStore) Create(userID, businessName, contactEmail string) (*model.Merchant, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO merchants (id, user_id, business_name, contact_email, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, businessName, normalizeEmail(contactEmail), string(model.MerchantPending), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert merchant: %w", err)
	}
	return s.GetByID(id)
}

func (s *MerchantStore) GetByID(id string) (*model.Merchant, error) {
	m, err := scanMerchant(s.db.QueryRow(`SELECT `+merchantCols+` FROM merchants WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return m, nil
}

func (s *MerchantStore) GetByUserID(userID string) (*model.Merchant, error) {
	m, err := scanMerchant(s.db.QueryRow(`SELECT `+merchantCols+` FROM merchants WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get merchant by user: %w", err)
	}
	return m, nil
}

// List returns merchants, newest first. An empty status lists all of them.
func (s *MerchantStore) List(status model.MerchantStatus) ([]model.Merchant, error) {
	query := `SELECT ` + merchantCols + ` FROM merchants`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	defer rows.Close()

	merchants := []model.Merchant{}
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		merchants = append(merchants, *m)
	}
	return merchants, rows.Err()
}

// SetStatus changes the merchant's status. Suspending a merchant also pauses
// its active campaigns; they stay paused if the merchant is approved again.
func (s *MerchantStore) SetStatus(id string, status model.MerchantStatus) (*model.Merchant, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(`UPDATE merchants SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, id)
	if err != nil {
		return nil, fmt.Errorf("set merchant status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	if status == model.MerchantSuspended {
		if _, err := tx.Exec(`UPDATE campaigns SET status = ?, updated_at = ? WHERE merchant_id = ? AND status = ?`,
			string(model.CampaignPaused), now, id, string(model.CampaignActive)); err != nil {
			return nil, fmt.Errorf("pause merchant campaigns: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(id)
}

func (s *MerchantStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM merchants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count merchants: %w", err)
	}
	return n, nil
}
