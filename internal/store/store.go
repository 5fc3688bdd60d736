package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrDuplicateReward is returned when an ad view already has a reward.
	ErrDuplicateReward = errors.New("reward already recorded for this ad view")
	// ErrSlotAlreadyCompleted is returned when a slot was completed by an earlier view.
	ErrSlotAlreadyCompleted = errors.New("slot already completed")
	// ErrBudgetExhausted is returned when a campaign cannot cover another reward.
	ErrBudgetExhausted = errors.New("campaign budget exhausted")
)

type scanner interface{ Scan(...any) error }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(raw string) []string {
	tags := []string{}
	if raw == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return []string{}
	}
	return tags
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// ErrSlotNotFound is returned when a daily record has no entry for a slot.
var ErrSlotNotFound = errors.New("slot not found")
