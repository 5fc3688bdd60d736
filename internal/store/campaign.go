package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CampaignStore struct {
	db *sql.DB
}

func NewCampaignStore(db *sql.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

// CampaignInput holds the merchant-editable fields of a campaign.
type CampaignInput struct {
	Title           string
	Description     string
	ContentType     model.ContentType
	ContentURL      string
	TargetInterests []string
	DurationSeconds int
	RewardPerView   decimal.Decimal
	TotalBudget     decimal.Decimal
	StartDate       *time.Time
	EndDate         *time.Time
}

const campaignCols = `id, merchant_id, title, description, content_type, content_url, target_interests,
	duration_seconds, reward_per_view_micros, total_budget_micros, spent_budget_micros, status,
	start_date, end_date, created_at, updated_at`

func scanCampaign(s scanner) (*model.Campaign, error) {
	var c model.Campaign
	var contentType, interests, status string
	var reward, total, spent int64
	var start, end sql.NullTime
	err := s.Scan(&c.ID, &c.MerchantID, &c.Title, &c.Description, &contentType, &c.ContentURL, &interests,
		&c.DurationSeconds, &reward, &total, &spent, &status,
		&start, &end, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ContentType = model.ContentType(contentType)
	c.TargetInterests = decodeTags(interests)
	c.RewardPerView = money.FromMicros(reward)
	c.TotalBudget = money.FromMicros(total)
	c.SpentBudget = money.FromMicros(spent)
	c.Status = model.CampaignStatus(status)
	c.StartDate = timePtr(start)
	c.EndDate = timePtr(end)
	return &c, nil
}

// Create inserts a draft campaign for merchantID.
func (s *CampaignStore) Create(merchantID string, in CampaignInput) (*model.Campaign, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	contentType := in.ContentType
	if contentType == "" {
		contentType = model.ContentVideo
	}
	_, err := s.db.Exec(
		`INSERT INTO campaigns (id, merchant_id, title, description, content_type, content_url, target_interests,
			duration_seconds, reward_per_view_micros, total_budget_micros, spent_budget_micros, status,
			start_date, end_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		id, merchantID, in.Title, in.Description, string(contentType), in.ContentURL, encodeTags(normalizeTags(in.TargetInterests)),
		in.DurationSeconds, money.ToMicros(in.RewardPerView), money.ToMicros(in.TotalBudget), string(model.CampaignDraft),
		nullTime(in.StartDate), nullTime(in.EndDate), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	return s.GetByID(id)
}

func (s *CampaignStore) GetByID(id string) (*model.Campaign, error) {
	c, err := scanCampaign(s.db.QueryRow(`SELECT `+campaignCols+` FROM campaigns WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignStore) ListByMerchant(merchantID string) ([]model.Campaign, error) {
	return s.list(`SELECT `+campaignCols+` FROM campaigns WHERE merchant_id = ? ORDER BY created_at DESC`, merchantID)
}

// ListActive returns active campaigns of approved merchants. Date and budget
// checks are left to the caller.
func (s *CampaignStore) ListActive() ([]model.Campaign, error) {
	return s.list(`SELECT `+campaignCols+` FROM campaigns
		WHERE status = ? AND merchant_id IN (SELECT id FROM merchants WHERE status = ?)
		ORDER BY created_at`, string(model.CampaignActive), string(model.MerchantApproved))
}

func (s *CampaignStore) list(query string, args ...any) ([]model.Campaign, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// Update replaces the editable fields. Status and spent budget are untouched.
func (s *CampaignStore) Update(id string, in CampaignInput) (*model.Campaign, error) {
	contentType := in.ContentType
	if contentType == "" {
		contentType = model.ContentVideo
	}
	res, err := s.db.Exec(
		`UPDATE campaigns SET title = ?, description = ?, content_type = ?, content_url = ?, target_interests = ?,
			duration_seconds = ?, reward_per_view_micros = ?, total_budget_micros = ?,
			start_date = ?, end_date = ?, updated_at = ?
		 WHERE id = ?`,
		in.Title, in.Description, string(contentType), in.ContentURL, encodeTags(normalizeTags(in.TargetInterests)),
		in.DurationSeconds, money.ToMicros(in.RewardPerView), money.ToMicros(in.TotalBudget),
		nullTime(in.StartDate), nullTime(in.EndDate), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

func (s *CampaignStore) SetStatus(id string, status model.CampaignStatus) (*model.Campaign, error) {
	res, err := s.db.Exec(`UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("set campaign status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

func (s *CampaignStore) SetContentURL(id, url string) (*model.Campaign, error) {
	res, err := s.db.Exec(`UPDATE campaigns SET content_url = ?, updated_at = ? WHERE id = ?`,
		url, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("set campaign content url: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

// GetStats returns per-day stats for a campaign, oldest first. Empty bounds
// are open.
func (s *CampaignStore) GetStats(campaignID, from, to string) ([]model.CampaignStats, error) {
	query := `SELECT campaign_id, date, views, completed_views, watch_time_seconds, reward_micros
		FROM campaign_stats WHERE campaign_id = ?`
	args := []any{campaignID}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get campaign stats: %w", err)
	}
	defer rows.Close()

	stats := []model.CampaignStats{}
	for rows.Next() {
		var st model.CampaignStats
		var reward int64
		if err := rows.Scan(&st.CampaignID, &st.Date, &st.Views, &st.CompletedViews, &st.WatchTimeSeconds, &reward); err != nil {
			return nil, fmt.Errorf("scan campaign stats: %w", err)
		}
		st.RewardTotal = money.FromMicros(reward)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// CountByStatus returns the number of campaigns per status.
func (s *CampaignStore) CountByStatus() (map[model.CampaignStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM campaigns GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count campaigns: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.CampaignStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan campaign count: %w", err)
		}
		counts[model.CampaignStatus(status)] = n
	}
	return counts, rows.Err()
}
