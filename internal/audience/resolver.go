// Package audience resolves campaign target segments into a deduplicated,
// order-stable recipient list.
package audience

import (
	"fmt"
	"strings"

	"github.com/mailkite/mailkite/internal/models"
	"github.com/mailkite/mailkite/internal/repository"
)

// Resolve merges the contacts of the given segments into one recipient list.
// Segments are visited in the order supplied, each segment's contacts in
// stored order. Deduplication is by lowercased email, first occurrence wins,
// so a contact shared between segments is attributed to the earliest segment.
// The result is deterministic for identical input.
func Resolve(segments []models.Segment) []models.Recipient {
	seen := make(map[string]bool)
	recipients := []models.Recipient{}

	for _, seg := range segments {
		for _, c := range seg.Contacts {
			email := strings.ToLower(strings.TrimSpace(c.Email))
			if email == "" || seen[email] {
				continue
			}
			seen[email] = true
			recipients = append(recipients, models.Recipient{
				Email:    email,
				Name:     c.Name,
				Position: c.Position,
				Company:  c.Company,
			})
		}
	}

	return recipients
}

// Dedupe removes duplicate recipients by lowercased email, keeping the first
// occurrence. Emails are normalized in place.
func Dedupe(recipients []models.Recipient) []models.Recipient {
	seen := make(map[string]bool, len(recipients))
	out := []models.Recipient{}

	for _, r := range recipients {
		email := strings.ToLower(strings.TrimSpace(r.Email))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		r.Email = email
		out = append(out, r)
	}
	return out
}

// Resolver loads segments from the store and resolves them.
type Resolver struct {
	segments *repository.SegmentRepository
}

func NewResolver(segments *repository.SegmentRepository) *Resolver {
	return &Resolver{segments: segments}
}

// ResolveIDs loads the segments in the order given and resolves their
// membership. Unknown segment IDs are an error; an empty ID list resolves to
// an empty recipient list.
func (r *Resolver) ResolveIDs(segmentIDs []string) ([]models.Recipient, error) {
	segments := make([]models.Segment, 0, len(segmentIDs))
	for _, id := range segmentIDs {
		seg, err := r.segments.GetWithContacts(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load segment %s: %w", id, err)
		}
		if seg == nil {
			return nil, fmt.Errorf("segment %s not found", id)
		}
		segments = append(segments, *seg)
	}
	return Resolve(segments), nil
}
