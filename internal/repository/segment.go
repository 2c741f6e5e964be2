package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailkite/mailkite/internal/models"
)

type SegmentRepository struct {
	db *sql.DB
}

func NewSegmentRepository(db *sql.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// Create creates a new segment
func (r *SegmentRepository) Create(s *models.Segment) error {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO segments (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Description, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}
	return nil
}

// GetByID returns a segment by ID, without members
func (r *SegmentRepository) GetByID(id string) (*models.Segment, error) {
	s := &models.Segment{}
	err := r.db.QueryRow(`
		SELECT id, name, description, created_at, updated_at
		FROM segments WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetWithContacts returns a segment with its members in stored order
func (r *SegmentRepository) GetWithContacts(id string) (*models.Segment, error) {
	s, err := r.GetByID(id)
	if err != nil || s == nil {
		return s, err
	}

	contacts, err := r.GetContacts(id)
	if err != nil {
		return nil, err
	}
	s.Contacts = contacts
	return s, nil
}

// GetContacts returns the segment's contacts in stored membership order
func (r *SegmentRepository) GetContacts(segmentID string) ([]models.Contact, error) {
	rows, err := r.db.Query(`
		SELECT c.id, c.email, c.name, c.position, c.company, c.created_at, c.updated_at
		FROM segment_members m
		JOIN contacts c ON c.id = m.contact_id
		WHERE m.segment_id = ?
		ORDER BY m.position`, segmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Position, &c.Company, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

// List returns segments with member counts
func (r *SegmentRepository) List(filter models.SegmentFilter) ([]models.SegmentWithStats, int, error) {
	countQuery := "SELECT COUNT(*) FROM segments WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND (name LIKE ? OR description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT s.id, s.name, s.description, s.created_at, s.updated_at,
			COALESCE((SELECT COUNT(*) FROM segment_members WHERE segment_id = s.id), 0) as contact_count
		FROM segments s
		WHERE 1=1`

	args = []any{}
	if filter.Search != "" {
		query += " AND (s.name LIKE ? OR s.description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	query += " ORDER BY s.updated_at DESC"

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

	segments := []models.SegmentWithStats{}
	for rows.Next() {
		var s models.SegmentWithStats
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt, &s.ContactCount); err != nil {
			return nil, 0, err
		}
		segments = append(segments, s)
	}

	return segments, total, nil
}

// Update updates a segment's name and description
func (r *SegmentRepository) Update(s *models.Segment) error {
	s.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE segments SET name = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, s.Description, s.UpdatedAt, s.ID,
	)
	return err
}

// Delete deletes a segment; membership rows cascade
func (r *SegmentRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM segments WHERE id = ?", id)
	return err
}

// SetMembers replaces the segment's membership with the given contacts,
// preserving the order supplied.
func (r *SegmentRepository) SetMembers(segmentID string, contactIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM segment_members WHERE segment_id = ?", segmentID); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO segment_members (segment_id, contact_id, position)
		VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, contactID := range contactIDs {
		if _, err := stmt.Exec(segmentID, contactID, i); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
	}

	if _, err := tx.Exec("UPDATE segments SET updated_at = ? WHERE id = ?", time.Now(), segmentID); err != nil {
		return err
	}

	return tx.Commit()
}

// AddMembers appends contacts to the segment after the current members
func (r *SegmentRepository) AddMembers(segmentID string, contactIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var maxPos sql.NullInt64
	if err := tx.QueryRow("SELECT MAX(position) FROM segment_members WHERE segment_id = ?", segmentID).Scan(&maxPos); err != nil {
		return err
	}
	pos := int(maxPos.Int64) + 1

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO segment_members (segment_id, contact_id, position)
		VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, contactID := range contactIDs {
		if _, err := stmt.Exec(segmentID, contactID, pos); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		pos++
	}

	return tx.Commit()
}

// RemoveMember removes one contact from the segment
func (r *SegmentRepository) RemoveMember(segmentID, contactID string) error {
	_, err := r.db.Exec(
		"DELETE FROM segment_members WHERE segment_id = ? AND contact_id = ?",
		segmentID, contactID,
	)
	return err
}
