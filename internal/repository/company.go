package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailkite/mailkite/internal/models"
)

// CompanyRepository manages the single company profile row.
type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Get returns the company profile, or nil when none has been saved yet
func (r *CompanyRepository) Get() (*models.CompanyProfile, error) {
	p := &models.CompanyProfile{}
	var socialLinks sql.NullString

	err := r.db.QueryRow(`
		SELECT company_name, email, phone, website, address, social_links, logo, description, industry, updated_at
		FROM company_profile WHERE id = 1`,
	).Scan(&p.CompanyName, &p.Email, &p.Phone, &p.Website, &p.Address, &socialLinks,
		&p.Logo, &p.Description, &p.Industry, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if socialLinks.Valid && socialLinks.String != "" {
		if err := json.Unmarshal([]byte(socialLinks.String), &p.SocialLinks); err != nil {
			return nil, fmt.Errorf("failed to decode social links: %w", err)
		}
	}
	return p, nil
}

// Save upserts the company profile
func (r *CompanyRepository) Save(p *models.CompanyProfile) error {
	p.UpdatedAt = time.Now()

	socialLinks := ""
	if len(p.SocialLinks) > 0 {
		data, err := json.Marshal(p.SocialLinks)
		if err != nil {
			return err
		}
		socialLinks = string(data)
	}

	_, err := r.db.Exec(`
		INSERT INTO company_profile (id, company_name, email, phone, website, address, social_links, logo, description, industry, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_name = excluded.company_name,
			email = excluded.email,
			phone = excluded.phone,
			website = excluded.website,
			address = excluded.address,
			social_links = excluded.social_links,
			logo = excluded.logo,
			description = excluded.description,
			industry = excluded.industry,
			updated_at = excluded.updated_at`,
		p.CompanyName, p.Email, p.Phone, p.Website, p.Address, socialLinks,
		p.Logo, p.Description, p.Industry, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save company profile: %w", err)
	}
	return nil
}
