package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mailkite/mailkite/internal/models"
)

// SegmentRequest is the request body for creating or updating a segment
type SegmentRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ContactIDs  []string `json:"contact_ids"`
}

// handleListSegments handles GET /api/v1/segments
func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segments, total, err := s.segments.List(models.SegmentFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.logger.Error("failed to list segments", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list segments")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Items: segments, Total: total})
}

// handleCreateSegment handles POST /api/v1/segments
func (s *Server) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var req SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	segment := &models.Segment{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.segments.Create(segment); err != nil {
		s.logger.Error("failed to create segment", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create segment")
		return
	}

	if len(req.ContactIDs) > 0 {
		if err := s.segments.SetMembers(segment.ID, req.ContactIDs); err != nil {
			s.logger.Error("failed to set segment members", "segment_id", segment.ID, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to set segment members")
			return
		}
	}

	s.sendJSON(w, http.StatusCreated, segment)
}

// handleGetSegment handles GET /api/v1/segments/{id}. Members are included in
// stored order.
func (s *Server) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	segment, err := s.segments.GetWithContacts(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get segment", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get segment")
		return
	}
	if segment == nil {
		s.sendError(w, http.StatusNotFound, "Segment not found")
		return
	}

	s.sendJSON(w, http.StatusOK, segment)
}

// handleUpdateSegment handles PUT /api/v1/segments/{id}
func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	segment, err := s.segments.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get segment", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update segment")
		return
	}
	if segment == nil {
		s.sendError(w, http.StatusNotFound, "Segment not found")
		return
	}

	var req SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	segment.Name = req.Name
	segment.Description = req.Description
	if err := s.segments.Update(segment); err != nil {
		s.logger.Error("failed to update segment", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update segment")
		return
	}

	if req.ContactIDs != nil {
		if err := s.segments.SetMembers(segment.ID, req.ContactIDs); err != nil {
			s.logger.Error("failed to set segment members", "segment_id", segment.ID, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to set segment members")
			return
		}
	}

	s.sendJSON(w, http.StatusOK, segment)
}

// handleDeleteSegment handles DELETE /api/v1/segments/{id}
func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := s.segments.Delete(chi.URLParam(r, "id")); err != nil {
		s.logger.Error("failed to delete segment", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete segment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MembersRequest is the request body for segment membership changes
type MembersRequest struct {
	ContactIDs []string `json:"contact_ids"`
}

// handleSetSegmentContacts handles PUT /api/v1/segments/{id}/contacts. The
// supplied list replaces the membership, in the order given.
func (s *Server) handleSetSegmentContacts(w http.ResponseWriter, r *http.Request) {
	s.changeMembers(w, r, s.segments.SetMembers)
}

// handleAddSegmentContacts handles POST /api/v1/segments/{id}/contacts
func (s *Server) handleAddSegmentContacts(w http.ResponseWriter, r *http.Request) {
	s.changeMembers(w, r, s.segments.AddMembers)
}

func (s *Server) changeMembers(w http.ResponseWriter, r *http.Request, apply func(string, []string) error) {
	id := chi.URLParam(r, "id")

	segment, err := s.segments.GetByID(id)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to update segment members")
		return
	}
	if segment == nil {
		s.sendError(w, http.StatusNotFound, "Segment not found")
		return
	}

	var req MembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := apply(id, req.ContactIDs); err != nil {
		s.logger.Error("failed to update segment members", "segment_id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update segment members")
		return
	}

	updated, err := s.segments.GetWithContacts(id)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to load segment")
		return
	}
	s.sendJSON(w, http.StatusOK, updated)
}

// handleRemoveSegmentContact handles DELETE /api/v1/segments/{id}/contacts/{contactID}
func (s *Server) handleRemoveSegmentContact(w http.ResponseWriter, r *http.Request) {
	if err := s.segments.RemoveMember(chi.URLParam(r, "id"), chi.URLParam(r, "contactID")); err != nil {
		s.logger.Error("failed to remove segment member", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to remove segment member")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
