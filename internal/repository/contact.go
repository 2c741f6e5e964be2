package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailkite/mailkite/internal/models"
)

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create creates a new contact
func (r *ContactRepository) Create(c *models.Contact) error {
	c.ID = uuid.New().String()
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO contacts (id, email, name, position, company, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Email, c.Name, c.Position, c.Company, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// GetByID returns a contact by ID
func (r *ContactRepository) GetByID(id string) (*models.Contact, error) {
	c := &models.Contact{}
	err := r.db.QueryRow(`
		SELECT id, email, name, position, company, created_at, updated_at
		FROM contacts WHERE id = ?`, id,
	).Scan(&c.ID, &c.Email, &c.Name, &c.Position, &c.Company, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByEmail returns a contact by email (case-insensitive)
func (r *ContactRepository) GetByEmail(email string) (*models.Contact, error) {
	c := &models.Contact{}
	err := r.db.QueryRow(`
		SELECT id, email, name, position, company, created_at, updated_at
		FROM contacts WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)),
	).Scan(&c.ID, &c.Email, &c.Name, &c.Position, &c.Company, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns contacts with optional filtering
func (r *ContactRepository) List(filter models.ContactFilter) ([]models.Contact, int, error) {
	countQuery := "SELECT COUNT(*) FROM contacts WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND (email LIKE ? OR name LIKE ? OR company LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, email, name, position, company, created_at, updated_at
		FROM contacts WHERE 1=1`

	args = []any{}
	if filter.Search != "" {
		query += " AND (email LIKE ? OR name LIKE ? OR company LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
	}

	query += " ORDER BY created_at DESC"

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

	contacts := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Position, &c.Company, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}

	return contacts, total, nil
}

// Update updates a contact
func (r *ContactRepository) Update(c *models.Contact) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE contacts SET email = ?, name = ?, position = ?, company = ?, updated_at = ?
		WHERE id = ?`,
		c.Email, c.Name, c.Position, c.Company, c.UpdatedAt, c.ID,
	)
	return err
}

// Delete deletes a contact
func (r *ContactRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM contacts WHERE id = ?", id)
	return err
}

// DeleteMany deletes multiple contacts and returns the number of rows removed.
func (r *ContactRepository) DeleteMany(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := r.db.Exec("DELETE FROM contacts WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete contacts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Import inserts contacts in bulk, skipping entries whose email already
// exists. Returns per-row results for partial-failure reporting.
func (r *ContactRepository) Import(contacts []models.Contact) (*models.ContactImportResult, error) {
	result := &models.ContactImportResult{Total: len(contacts)}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO contacts (id, email, name, position, company, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range contacts {
		email := strings.ToLower(strings.TrimSpace(c.Email))
		if email == "" {
			result.Skipped++
			result.Errors = append(result.Errors, "empty email")
			continue
		}

		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM contacts WHERE email = ?", email).Scan(&exists); err != nil {
			return nil, err
		}
		if exists > 0 {
			result.Skipped++
			continue
		}

		if _, err := stmt.Exec(uuid.New().String(), email, c.Name, c.Position, c.Company, now, now); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, email+": "+err.Error())
			continue
		}
		result.Imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}
