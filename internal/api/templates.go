package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mailkite/mailkite/internal/email"
	"github.com/mailkite/mailkite/internal/models"
)

// BodyRequest is the request body for creating or updating an email body
type BodyRequest struct {
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	Content   string `json:"content"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

// handleListBodies handles GET /api/v1/templates
func (s *Server) handleListBodies(w http.ResponseWriter, r *http.Request) {
	bodies, total, err := s.bodies.List(models.EmailBodyFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.logger.Error("failed to list email bodies", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Items: bodies, Total: total})
}

// handleCreateBody handles POST /api/v1/templates
func (s *Server) handleCreateBody(w http.ResponseWriter, r *http.Request) {
	var req BodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := validateBodyRequest(&req); msg != "" {
		s.sendError(w, http.StatusBadRequest, msg)
		return
	}

	body := &models.EmailBody{
		Name:      req.Name,
		Subject:   req.Subject,
		Content:   req.Content,
		FromEmail: req.FromEmail,
		FromName:  req.FromName,
	}
	if err := s.bodies.Create(body); err != nil {
		s.logger.Error("failed to create email body", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}

	s.sendJSON(w, http.StatusCreated, body)
}

// handleGetBody handles GET /api/v1/templates/{id}
func (s *Server) handleGetBody(w http.ResponseWriter, r *http.Request) {
	body, err := s.bodies.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get email body", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if body == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	s.sendJSON(w, http.StatusOK, body)
}

// handleUpdateBody handles PUT /api/v1/templates/{id}
func (s *Server) handleUpdateBody(w http.ResponseWriter, r *http.Request) {
	body, err := s.bodies.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get email body", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}
	if body == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	var req BodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := validateBodyRequest(&req); msg != "" {
		s.sendError(w, http.StatusBadRequest, msg)
		return
	}

	body.Name = req.Name
	body.Subject = req.Subject
	body.Content = req.Content
	body.FromEmail = req.FromEmail
	body.FromName = req.FromName

	if err := s.bodies.Update(body); err != nil {
		s.logger.Error("failed to update email body", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}

	s.sendJSON(w, http.StatusOK, body)
}

// handleDeleteBody handles DELETE /api/v1/templates/{id}
func (s *Server) handleDeleteBody(w http.ResponseWriter, r *http.Request) {
	if err := s.bodies.Delete(chi.URLParam(r, "id")); err != nil {
		s.logger.Error("failed to delete email body", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateBodyRequest(req *BodyRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Subject == "" {
		return "subject is required"
	}
	if req.FromEmail != "" && !email.Valid(req.FromEmail) {
		return "from_email must be a valid address"
	}
	return ""
}
