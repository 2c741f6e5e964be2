// Package tracking records delivery and engagement events and derives the
// campaign analytics from them. The event log is append-only: aggregates are
// always recomputed from events, never stored authoritatively.
package tracking

import "time"

// Event types
const (
	EventSent       = "sent"
	EventDelivered  = "delivered"
	EventOpened     = "opened"
	EventClicked    = "clicked"
	EventBounced    = "bounced"
	EventComplained = "complained"
)

// Engagement tiers, in classification precedence order.
const (
	TierVeryInterested = "Very Interested"
	TierEngaged        = "Engaged"
	TierNotInterested  = "Not Interested"
)

// Event is one append-only tracking record keyed by campaign and recipient.
type Event struct {
	CampaignID     string    `json:"campaign_id"`
	RecipientEmail string    `json:"recipient_email"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	UserAgent      string    `json:"user_agent,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	ClickedURL     string    `json:"clicked_url,omitempty"`
}

// Summary is the campaign-level aggregate derived from the event log.
type Summary struct {
	CampaignID      string     `json:"campaign_id"`
	TotalRecipients int        `json:"total_recipients"`
	TotalOpens      int        `json:"total_opens"`
	UniqueOpeners   int        `json:"unique_openers"`
	TotalClicks     int        `json:"total_clicks"`
	UniqueClickers  int        `json:"unique_clickers"`
	OpenRate        float64    `json:"open_rate"`
	ClickRate       float64    `json:"click_rate"`
	AvgOpens        float64    `json:"avg_opens"`
	AvgClicks       float64    `json:"avg_clicks"`
	FirstOpened     *time.Time `json:"first_opened,omitempty"`
	LastOpened      *time.Time `json:"last_opened,omitempty"`
}

// RecipientEngagement is one recipient's rollup with its engagement tier.
type RecipientEngagement struct {
	Email       string     `json:"email"`
	Name        string     `json:"name,omitempty"`
	Opens       int        `json:"opens"`
	Clicks      int        `json:"clicks"`
	LastOpened  *time.Time `json:"last_opened,omitempty"`
	LastClicked *time.Time `json:"last_clicked,omitempty"`
	Tier        string     `json:"tier"`
}

// LinkStat is one clicked URL with its click count.
type LinkStat struct {
	URL    string `json:"url"`
	Clicks int    `json:"clicks"`
}
