package models

import "time"

// CompanyProfile is the process-wide sender identity used to fill template
// placeholders and the HTML envelope footer. A single row in the store.
type CompanyProfile struct {
	CompanyName string            `json:"company_name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`
	Website     string            `json:"website"`
	Address     string            `json:"address"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
	Logo        string            `json:"logo"`
	Description string            `json:"description"`
	Industry    string            `json:"industry"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
