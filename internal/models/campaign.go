package models

import (
	"fmt"
	"time"
)

// Campaign statuses
const (
	StatusDraft     = "draft"
	StatusReady     = "ready"
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusPaused    = "paused"
)

// Recipient is one entry of a campaign's frozen recipient snapshot.
type Recipient struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Company  string `json:"company,omitempty"`
}

// Campaign is a named send job: an ordered email-body sequence crossed with a
// deduplicated recipient snapshot, paced by EmailGap seconds between sends.
//
// Recipients is a point-in-time materialization of segment membership taken at
// create/edit time. Later segment edits do not change it.
type Campaign struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// BodySequence is the ordered list of email body IDs. Order defines the
	// per-recipient send order and must not contain duplicates.
	BodySequence []string `json:"body_sequence"`

	// SelectedBodies is the unordered UI selection set, always a subset of
	// BodySequence.
	SelectedBodies []string `json:"selected_bodies,omitempty"`

	SegmentIDs []string    `json:"segment_ids"`
	Recipients []Recipient `json:"recipients"`

	// EmailGap is the mandatory delay between consecutive sends, in seconds.
	EmailGap int `json:"email_gap"`

	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	SentCount   int        `json:"sent_count"`
	SentAt      *time.Time `json:"sent_at,omitempty"`

	// Company is the sender identity snapshot taken when the campaign was
	// created or last edited.
	Company *CompanyProfile `json:"company,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidationError describes a rejected campaign field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the structural invariants of a campaign before it is
// persisted or dispatched.
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if len(c.BodySequence) == 0 {
		return &ValidationError{Field: "body_sequence", Reason: "at least one email body is required"}
	}

	seen := make(map[string]bool, len(c.BodySequence))
	for _, id := range c.BodySequence {
		if seen[id] {
			return &ValidationError{Field: "body_sequence", Reason: "duplicate email body " + id}
		}
		seen[id] = true
	}
	for _, id := range c.SelectedBodies {
		if !seen[id] {
			return &ValidationError{Field: "selected_bodies", Reason: "body " + id + " is not part of the sequence"}
		}
	}

	if len(c.Recipients) == 0 && len(c.SegmentIDs) == 0 {
		return &ValidationError{Field: "recipients", Reason: "at least one segment or recipient is required"}
	}
	return nil
}

// SecondsUntilSend is the derived countdown for scheduled campaigns. It is
// recomputed from ScheduledAt on every read and never persisted.
func (c *Campaign) SecondsUntilSend(now time.Time) int64 {
	if c.Status != StatusScheduled || c.ScheduledAt == nil {
		return 0
	}
	d := int64(c.ScheduledAt.Sub(now).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

// CampaignWithStats includes derived counts for list views
type CampaignWithStats struct {
	Campaign
	RecipientCount int `json:"recipient_count"`
	BodyCount      int `json:"body_count"`
}

// CampaignFilter for listing campaigns
type CampaignFilter struct {
	Search string
	Status string
	Limit  int
	Offset int
}
