package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/spotx/internal/model"
	"github.com/google/uuid"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushTokenCols = `id, user_id, token, platform, device_id, created_at, updated_at`

func scanPushToken(s scanner) (*model.PushToken, error) {
	var pt model.PushToken
	var platform string
	if err := s.Scan(&pt.ID, &pt.UserID, &pt.Token, &platform, &pt.DeviceID, &pt.CreatedAt, &pt.UpdatedAt); err != nil {
		return nil, err
	}
	pt.Platform = model.Platform(platform)
	return &pt, nil
}

// UpsertToken registers a device token. A token seen before is reassigned to
// userID so one device never notifies two accounts.
func (s *PushStore) UpsertToken(userID, token string, platform model.Platform, deviceID string) (*model.PushToken, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO push_tokens (id, user_id, token, platform, device_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, platform = excluded.platform,
			device_id = excluded.device_id, updated_at = excluded.updated_at`,
		uuid.NewString(), userID, token, string(platform), deviceID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert push token: %w", err)
	}
	pt, err := scanPushToken(s.db.QueryRow(`SELECT `+pushTokenCols+` FROM push_tokens WHERE token = ?`, token))
	if err != nil {
		return nil, fmt.Errorf("get push token: %w", err)
	}
	return pt, nil
}

func (s *PushStore) ListTokensByUser(userID string) ([]model.PushToken, error) {
	return s.listTokens(`SELECT `+pushTokenCols+` FROM push_tokens WHERE user_id = ? ORDER BY created_at`, userID)
}

func (s *PushStore) ListAllTokens() ([]model.PushToken, error) {
	return s.listTokens(`SELECT ` + pushTokenCols + ` FROM push_tokens ORDER BY created_at`)
}

func (s *PushStore) listTokens(query string, args ...any) ([]model.PushToken, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	defer rows.Close()

	tokens := []model.PushToken{}
	for rows.Next() {
		pt, err := scanPushToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push token: %w", err)
		}
		tokens = append(tokens, *pt)
	}
	return tokens, rows.Err()
}

// DeleteToken removes a token regardless of owner. Used when the gateway
// reports the device as unregistered.
func (s *PushStore) DeleteToken(token string) error {
	if _, err := s.db.Exec(`DELETE FROM push_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete push token: %w", err)
	}
	return nil
}

// DeleteUserToken removes a token owned by userID and reports whether it existed.
func (s *PushStore) DeleteUserToken(userID, token string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM push_tokens WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return false, fmt.Errorf("delete push token: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// --- Web push subscriptions ---

const subscriptionCols = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func (s *PushStore) CreateSubscription(userID, endpoint, p256dh, auth, deviceName string) (*model.WebPushSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO web_push_subscriptions (id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key,
			auth_key = excluded.auth_key, device_name = excluded.device_name`,
		uuid.NewString(), userID, endpoint, p256dh, auth, deviceName, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	subs, err := s.listSubscriptions(`SELECT `+subscriptionCols+` FROM web_push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

func (s *PushStore) ListSubscriptionsByUser(userID string) ([]model.WebPushSubscription, error) {
	return s.listSubscriptions(`SELECT `+subscriptionCols+` FROM web_push_subscriptions WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (s *PushStore) ListAllSubscriptions() ([]model.WebPushSubscription, error) {
	return s.listSubscriptions(`SELECT ` + subscriptionCols + ` FROM web_push_subscriptions ORDER BY created_at DESC`)
}

func (s *PushStore) DeleteSubscriptionByEndpoint(endpoint string) error {
	if _, err := s.db.Exec(`DELETE FROM web_push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func (s *PushStore) listSubscriptions(query string, args ...any) ([]model.WebPushSubscription, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []model.WebPushSubscription{}
	for rows.Next() {
		var sub model.WebPushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// --- Scheduled reminders ---

// ReplaceScheduled cancels any reminder with the same identifier before
// storing each new one, so re-scheduling never stacks duplicates.
func (s *PushStore) ReplaceScheduled(userID string, notifs []model.ScheduledNotification) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, n := range notifs {
		if _, err := tx.Exec(`DELETE FROM scheduled_notifications WHERE user_id = ? AND identifier = ?`, userID, n.Identifier); err != nil {
			return fmt.Errorf("cancel scheduled notification: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO scheduled_notifications (user_id, identifier, slot_id, hour, minute, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			userID, n.Identifier, n.SlotID, n.Hour, n.Minute, now,
		); err != nil {
			return fmt.Errorf("insert scheduled notification: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CancelScheduled removes every reminder of the user.
func (s *PushStore) CancelScheduled(userID string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM scheduled_notifications WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("cancel scheduled notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

const scheduledCols = `user_id, identifier, slot_id, hour, minute, created_at`

func (s *PushStore) ListScheduled(userID string) ([]model.ScheduledNotification, error) {
	return s.listScheduled(`SELECT `+scheduledCols+` FROM scheduled_notifications WHERE user_id = ? ORDER BY hour, minute`, userID)
}

func (s *PushStore) ListAllScheduled() ([]model.ScheduledNotification, error) {
	return s.listScheduled(`SELECT ` + scheduledCols + ` FROM scheduled_notifications ORDER BY user_id, hour, minute`)
}

func (s *PushStore) listScheduled(query string, args ...any) ([]model.ScheduledNotification, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled notifications: %w", err)
	}
	defer rows.Close()

	notifs := []model.ScheduledNotification{}
	for rows.Next() {
		var n model.ScheduledNotification
		if err := rows.Scan(&n.UserID, &n.Identifier, &n.SlotID, &n.Hour, &n.Minute, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled notification: %w", err)
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// --- Dedup ---

// RecordSent records that a notification was sent (for dedup).
func (s *PushStore) RecordSent(userID, notifType, refID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sent_notifications (user_id, notification_type, reference_id, sent_at)
		 VALUES (?, ?, ?, ?)`,
		userID, notifType, refID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// WasSent checks if a notification was already sent.
func (s *PushStore) WasSent(userID, notifType, refID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sent_notifications
		 WHERE user_id = ? AND notification_type = ? AND reference_id = ?`,
		userID, notifType, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes sent_notifications and notification_events older than before.
func (s *PushStore) CleanupSent(before time.Time) error {
	if _, err := s.db.Exec(`DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC()); err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM notification_events WHERE recorded_at < ?`, before.UTC()); err != nil {
		return fmt.Errorf("cleanup notification events: %w", err)
	}
	return nil
}

// RecordEvent stores a client-reported notification event once. It reports
// false when the same (identifier, action) was already recorded.
func (s *PushStore) RecordEvent(userID, identifier, action string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO notification_events (user_id, identifier, action, recorded_at) VALUES (?, ?, ?, ?)`,
		userID, identifier, action, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("record notification event: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
