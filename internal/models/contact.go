package models

import "time"

// Contact is a single address-book entry. Email is unique across the store.
type Contact struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	Company   string    `json:"company"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactFilter for listing contacts
type ContactFilter struct {
	Search string
	Limit  int
	Offset int
}

// ContactImportResult holds the result of a bulk import
type ContactImportResult struct {
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
