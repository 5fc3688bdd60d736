package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/spotx/internal/model"
)

// SlotStore persists one DailyAdStatus per (user, date).
type SlotStore struct {
	db *sql.DB
}

func NewSlotStore(db *sql.DB) *SlotStore {
	return &SlotStore{db: db}
}

// GetDailyStatus returns the stored record, or nil if none exists yet.
func (s *SlotStore) GetDailyStatus(userID, date string) (*model.DailyAdStatus, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM daily_ad_status WHERE user_id = ? AND date = ?`, userID, date).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily status: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT slot_id, time, completed, ad_id, viewed_at FROM daily_ad_slots
		 WHERE user_id = ? AND date = ? ORDER BY time`, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list daily slots: %w", err)
	}
	defer rows.Close()

	status := &model.DailyAdStatus{Date: date, Slots: []model.SlotStatus{}}
	for rows.Next() {
		var ss model.SlotStatus
		var completed int
		var adID sql.NullString
		var viewedAt sql.NullTime
		if err := rows.Scan(&ss.SlotID, &ss.Time, &completed, &adID, &viewedAt); err != nil {
			return nil, fmt.Errorf("scan daily slot: %w", err)
		}
		ss.Completed = completed == 1
		ss.AdID = stringPtr(adID)
		ss.ViewedAt = timePtr(viewedAt)
		status.Slots = append(status.Slots, ss)
	}
	return status, rows.Err()
}

// CreateDailyStatus stores a fresh record with every slot open, except slots
// that already have a verified view on date. If a record already exists it
// is kept and returned unchanged.
func (s *SlotStore) CreateDailyStatus(userID, date string, slots []model.AdSlot) (*model.DailyAdStatus, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT OR IGNORE INTO daily_ad_status (user_id, date, created_at) VALUES (?, ?, ?)`,
		userID, date, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert daily status: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		for _, slot := range slots {
			if _, err := tx.Exec(
				`INSERT INTO daily_ad_slots (user_id, date, slot_id, time, completed) VALUES (?, ?, ?, ?, 0)`,
				userID, date, slot.ID, slot.Time,
			); err != nil {
				return nil, fmt.Errorf("insert daily slot: %w", err)
			}
		}
		if err := restoreCompletedTx(tx, userID, date); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetDailyStatus(userID, date)
}

// MarkSlotCompleted sets the slot completed and records the ad and view time.
// A later call overwrites adID and viewedAt. Unknown slots change nothing.
func (s *SlotStore) MarkSlotCompleted(userID, date, slotID, adID string, viewedAt time.Time) (*model.DailyAdStatus, error) {
	_, err := s.db.Exec(
		`UPDATE daily_ad_slots SET completed = 1, ad_id = ?, viewed_at = ?
		 WHERE user_id = ? AND date = ? AND slot_id = ?`,
		adID, viewedAt.UTC(), userID, date, slotID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark slot completed: %w", err)
	}
	return s.GetDailyStatus(userID, date)
}

// completeSlotTx completes an open slot inside tx. It fails with
// ErrSlotAlreadyCompleted when another view got there first.
func completeSlotTx(tx *sql.Tx, userID, date, slotID, adID string, viewedAt time.Time) error {
	res, err := tx.Exec(
		`UPDATE daily_ad_slots SET completed = 1, ad_id = ?, viewed_at = ?
		 WHERE user_id = ? AND date = ? AND slot_id = ? AND completed = 0`,
		adID, viewedAt.UTC(), userID, date, slotID,
	)
	if err != nil {
		return fmt.Errorf("complete slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var completed int
	err = tx.QueryRow(`SELECT completed FROM daily_ad_slots WHERE user_id = ? AND date = ? AND slot_id = ?`,
		userID, date, slotID).Scan(&completed)
	if err == sql.ErrNoRows {
		return ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	return ErrSlotAlreadyCompleted
}

// restoreCompletedTx marks slots completed when the view ledger already holds
// a verified view for them, so a recreated record cannot reopen a paid slot.
func restoreCompletedTx(tx *sql.Tx, userID, date string) error {
	_, err := tx.Exec(
		`UPDATE daily_ad_slots SET completed = 1, ad_id = v.campaign_id, viewed_at = v.watched_at
		 FROM ad_views v
		 WHERE v.user_id = daily_ad_slots.user_id AND v.date = daily_ad_slots.date
		   AND v.slot_id = daily_ad_slots.slot_id AND v.verified = 1
		   AND daily_ad_slots.user_id = ? AND daily_ad_slots.date = ?`,
		userID, date,
	)
	if err != nil {
		return fmt.Errorf("restore completed slots: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every daily record of the user.
func (s *SlotStore) DeleteAllForUser(userID string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM daily_ad_slots WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("delete daily slots: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM daily_ad_status WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete daily status: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

// ListDailyStatuses returns up to limit records, newest date first.
func (s *SlotStore) ListDailyStatuses(userID string, limit int) ([]model.DailyAdStatus, error) {
	rows, err := s.db.Query(`SELECT date FROM daily_ad_status WHERE user_id = ? ORDER BY date DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list daily status dates: %w", err)
	}
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	history := make([]model.DailyAdStatus, 0, len(dates))
	for _, d := range dates {
		st, err := s.GetDailyStatus(userID, d)
		if err != nil {
			return nil, err
		}
		if st != nil {
			history = append(history, *st)
		}
	}
	return history, nil
}
