package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailkite/mailkite/internal/models"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

const campaignColumns = `id, name, description, body_sequence, selected_bodies, segment_ids,
	recipients, email_gap, status, scheduled_at, sent_count, sent_at, company, created_at, updated_at`

// Create creates a new campaign
func (r *CampaignRepository) Create(c *models.Campaign) error {
	c.ID = uuid.New().String()
	if c.Status == "" {
		c.Status = models.StatusDraft
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	bodySeq, selected, segmentIDs, recipients, company, err := marshalCampaignJSON(c)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO campaigns (id, name, description, body_sequence, selected_bodies, segment_ids,
			recipients, email_gap, status, scheduled_at, sent_count, sent_at, company, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, bodySeq, selected, segmentIDs,
		recipients, c.EmailGap, c.Status, c.ScheduledAt, c.SentCount, c.SentAt, company, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID returns a campaign by ID
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	row := r.db.QueryRow("SELECT "+campaignColumns+" FROM campaigns WHERE id = ?", id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns campaigns with optional filtering
func (r *CampaignRepository) List(filter models.CampaignFilter) ([]models.CampaignWithStats, int, error) {
	countQuery := "SELECT COUNT(*) FROM campaigns WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND (name LIKE ? OR description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		countQuery += " AND status = ?"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + campaignColumns + " FROM campaigns WHERE 1=1"

	args = []any{}
	if filter.Search != "" {
		query += " AND (name LIKE ? OR description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY updated_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []models.CampaignWithStats{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, models.CampaignWithStats{
			Campaign:       *c,
			RecipientCount: len(c.Recipients),
			BodyCount:      len(c.BodySequence),
		})
	}

	return campaigns, total, nil
}

// Update updates a campaign
func (r *CampaignRepository) Update(c *models.Campaign) error {
	c.UpdatedAt = time.Now()

	bodySeq, selected, segmentIDs, recipients, company, err := marshalCampaignJSON(c)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE campaigns SET name = ?, description = ?, body_sequence = ?, selected_bodies = ?,
			segment_ids = ?, recipients = ?, email_gap = ?, status = ?, scheduled_at = ?,
			sent_count = ?, sent_at = ?, company = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, bodySeq, selected, segmentIDs, recipients, c.EmailGap,
		c.Status, c.ScheduledAt, c.SentCount, c.SentAt, company, c.UpdatedAt, c.ID,
	)
	return err
}

// Delete deletes a campaign
func (r *CampaignRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM campaigns WHERE id = ?", id)
	return err
}

// FindDue returns scheduled campaigns whose scheduled time has elapsed.
func (r *CampaignRepository) FindDue(now time.Time) ([]models.Campaign, error) {
	rows, err := r.db.Query(
		"SELECT "+campaignColumns+` FROM campaigns
		WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at`,
		models.StatusScheduled, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, nil
}

// ClaimForSending atomically transitions a campaign to sending, but only if
// its current status is one of fromStatuses. Returns false when another path
// already claimed it. This compare-and-set is the sole coordination point
// between the manual send path and the scheduler.
func (r *CampaignRepository) ClaimForSending(id string, fromStatuses ...string) (bool, error) {
	if len(fromStatuses) == 0 {
		fromStatuses = []string{models.StatusDraft, models.StatusReady, models.StatusScheduled}
	}

	placeholders := strings.Repeat("?,", len(fromStatuses))
	placeholders = placeholders[:len(placeholders)-1]

	args := []any{models.StatusSending, time.Now(), id}
	for _, s := range fromStatuses {
		args = append(args, s)
	}

	res, err := r.db.Exec(
		"UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ? AND status IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkSent records a completed send run
func (r *CampaignRepository) MarkSent(id string, sentCount int, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE campaigns SET status = ?, sent_count = ?, sent_at = ?, updated_at = ?
		WHERE id = ?`,
		models.StatusSent, sentCount, at, time.Now(), id,
	)
	return err
}

// ReleaseToScheduled puts a claimed campaign back into the scheduled state so
// the next scheduler tick retries it.
func (r *CampaignRepository) ReleaseToScheduled(id string) error {
	_, err := r.db.Exec(
		"UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		models.StatusScheduled, time.Now(), id, models.StatusSending,
	)
	return err
}

// UpdateStatus sets the campaign status unconditionally
func (r *CampaignRepository) UpdateStatus(id, status string) error {
	_, err := r.db.Exec(
		"UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	return err
}

// Schedule sets the scheduled time and moves the campaign into the scheduled
// state. Sent campaigns cannot be rescheduled.
func (r *CampaignRepository) Schedule(id string, at time.Time) error {
	res, err := r.db.Exec(`
		UPDATE campaigns SET status = ?, scheduled_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		models.StatusScheduled, at, time.Now(), id, models.StatusSent, models.StatusSending,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("campaign cannot be scheduled in its current state")
	}
	return nil
}

// Unschedule clears the scheduled time and returns the campaign to ready
func (r *CampaignRepository) Unschedule(id string) error {
	_, err := r.db.Exec(`
		UPDATE campaigns SET status = ?, scheduled_at = NULL, updated_at = ?
		WHERE id = ? AND status = ?`,
		models.StatusReady, time.Now(), id, models.StatusScheduled,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	c := &models.Campaign{}
	var bodySeq, selected, segmentIDs, recipients, company sql.NullString
	var scheduledAt, sentAt sql.NullTime

	err := row.Scan(&c.ID, &c.Name, &c.Description, &bodySeq, &selected, &segmentIDs,
		&recipients, &c.EmailGap, &c.Status, &scheduledAt, &c.SentCount, &sentAt, &company,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if scheduledAt.Valid {
		c.ScheduledAt = &scheduledAt.Time
	}
	if sentAt.Valid {
		c.SentAt = &sentAt.Time
	}

	if err := unmarshalJSON(bodySeq, &c.BodySequence); err != nil {
		return nil, fmt.Errorf("failed to decode body sequence: %w", err)
	}
	if err := unmarshalJSON(selected, &c.SelectedBodies); err != nil {
		return nil, fmt.Errorf("failed to decode selected bodies: %w", err)
	}
	if err := unmarshalJSON(segmentIDs, &c.SegmentIDs); err != nil {
		return nil, fmt.Errorf("failed to decode segment ids: %w", err)
	}
	if err := unmarshalJSON(recipients, &c.Recipients); err != nil {
		return nil, fmt.Errorf("failed to decode recipients: %w", err)
	}
	if company.Valid && company.String != "" {
		c.Company = &models.CompanyProfile{}
		if err := json.Unmarshal([]byte(company.String), c.Company); err != nil {
			return nil, fmt.Errorf("failed to decode company snapshot: %w", err)
		}
	}

	return c, nil
}

func marshalCampaignJSON(c *models.Campaign) (bodySeq, selected, segmentIDs, recipients, company string, err error) {
	if bodySeq, err = marshalJSON(c.BodySequence); err != nil {
		return
	}
	if selected, err = marshalJSON(c.SelectedBodies); err != nil {
		return
	}
	if segmentIDs, err = marshalJSON(c.SegmentIDs); err != nil {
		return
	}
	if recipients, err = marshalJSON(c.Recipients); err != nil {
		return
	}
	if c.Company != nil {
		var data []byte
		if data, err = json.Marshal(c.Company); err != nil {
			return
		}
		company = string(data)
	}
	return
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
