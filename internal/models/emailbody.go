package models

import "time"

// EmailBody is a reusable unit of message content. Content may carry
// {{placeholder}} tokens and legacy {placeholder} personalization tokens.
type EmailBody struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	FromEmail string    `json:"from_email"`
	FromName  string    `json:"from_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailBodyFilter for listing email bodies
type EmailBodyFilter struct {
	Search string
	Limit  int
	Offset int
}
