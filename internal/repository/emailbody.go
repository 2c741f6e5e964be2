package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailkite/mailkite/internal/models"
)

type EmailBodyRepository struct {
	db *sql.DB
}

func NewEmailBodyRepository(db *sql.DB) *EmailBodyRepository {
	return &EmailBodyRepository{db: db}
}

// Create creates a new email body
func (r *EmailBodyRepository) Create(b *models.EmailBody) error {
	b.ID = uuid.New().String()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO email_bodies (id, name, subject, content, from_email, from_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Subject, b.Content, b.FromEmail, b.FromName, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create email body: %w", err)
	}
	return nil
}

// GetByID returns an email body by ID
func (r *EmailBodyRepository) GetByID(id string) (*models.EmailBody, error) {
	b := &models.EmailBody{}
	err := r.db.QueryRow(`
		SELECT id, name, subject, content, from_email, from_name, created_at, updated_at
		FROM email_bodies WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &b.Subject, &b.Content, &b.FromEmail, &b.FromName, &b.CreatedAt, &b.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetByIDs returns the email bodies for the given IDs, preserving the input
// order. IDs that do not resolve are silently dropped; the caller decides
// whether an empty result is an error.
func (r *EmailBodyRepository) GetByIDs(ids []string) ([]models.EmailBody, error) {
	if len(ids) == 0 {
		return []models.EmailBody{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query(`
		SELECT id, name, subject, content, from_email, from_name, created_at, updated_at
		FROM email_bodies WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]models.EmailBody, len(ids))
	for rows.Next() {
		var b models.EmailBody
		if err := rows.Scan(&b.ID, &b.Name, &b.Subject, &b.Content, &b.FromEmail, &b.FromName, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		byID[b.ID] = b
	}

	bodies := make([]models.EmailBody, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			bodies = append(bodies, b)
		}
	}
	return bodies, nil
}

// List returns email bodies with optional filtering
func (r *EmailBodyRepository) List(filter models.EmailBodyFilter) ([]models.EmailBody, int, error) {
	countQuery := "SELECT COUNT(*) FROM email_bodies WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND (name LIKE ? OR subject LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, name, subject, content, from_email, from_name, created_at, updated_at
		FROM email_bodies WHERE 1=1`

	args = []any{}
	if filter.Search != "" {
		query += " AND (name LIKE ? OR subject LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
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

	bodies := []models.EmailBody{}
	for rows.Next() {
		var b models.EmailBody
		if err := rows.Scan(&b.ID, &b.Name, &b.Subject, &b.Content, &b.FromEmail, &b.FromName, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		bodies = append(bodies, b)
	}

	return bodies, total, nil
}

// Update updates an email body
func (r *EmailBodyRepository) Update(b *models.EmailBody) error {
	b.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE email_bodies SET name = ?, subject = ?, content = ?, from_email = ?, from_name = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.Subject, b.Content, b.FromEmail, b.FromName, b.UpdatedAt, b.ID,
	)
	return err
}

// Delete deletes an email body
func (r *EmailBodyRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM email_bodies WHERE id = ?", id)
	return err
}
