package models

import "time"

// SendResult records the outcome of a single (recipient, email body) unit.
type SendResult struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	BodyName  string    `json:"body_name"`
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CampaignReport is the campaign-level summary returned by a send run.
type CampaignReport struct {
	CampaignID   string       `json:"campaign_id"`
	TotalUnits   int          `json:"total_units"`
	TotalSent    int          `json:"total_sent"`
	TotalFailed  int          `json:"total_failed"`
	DeliveryRate float64      `json:"delivery_rate"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Results      []SendResult `json:"results"`
}

// Summary returns a one-line human-readable description of the run.
func (r *CampaignReport) Summary() string {
	if r.TotalFailed == 0 {
		return "all messages sent"
	}
	if r.TotalSent == 0 {
		return "all messages failed"
	}
	return "completed with partial failures"
}
