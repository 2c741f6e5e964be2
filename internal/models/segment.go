package models

import "time"

// Segment is a named, mutable membership set of contacts. Membership is by
// reference; deleting a contact removes it from every segment.
type Segment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Contacts in stored membership order. Populated on demand.
	Contacts []Contact `json:"contacts,omitempty"`
}

// SegmentWithStats includes the member count for list views
type SegmentWithStats struct {
	Segment
	ContactCount int `json:"contact_count"`
}

// SegmentFilter for listing segments
type SegmentFilter struct {
	Search string
	Limit  int
	Offset int
}
