package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mailkite/mailkite/internal/email"
	"github.com/mailkite/mailkite/internal/models"
)

// ContactRequest is the request body for creating or updating a contact
type ContactRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Company  string `json:"company"`
}

// handleListContacts handles GET /api/v1/contacts
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, total, err := s.contacts.List(models.ContactFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.logger.Error("failed to list contacts", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list contacts")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Items: contacts, Total: total})
}

// handleCreateContact handles POST /api/v1/contacts
func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !email.Valid(req.Email) {
		s.sendError(w, http.StatusBadRequest, "valid email is required")
		return
	}

	existing, err := s.contacts.GetByEmail(req.Email)
	if err != nil {
		s.logger.Error("failed to check contact email", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create contact")
		return
	}
	if existing != nil {
		s.sendError(w, http.StatusConflict, "a contact with this email already exists")
		return
	}

	contact := &models.Contact{
		Email:    req.Email,
		Name:     req.Name,
		Position: req.Position,
		Company:  req.Company,
	}
	if err := s.contacts.Create(contact); err != nil {
		s.logger.Error("failed to create contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create contact")
		return
	}

	s.sendJSON(w, http.StatusCreated, contact)
}

// handleGetContact handles GET /api/v1/contacts/{id}
func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.contacts.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get contact")
		return
	}
	if contact == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}

	s.sendJSON(w, http.StatusOK, contact)
}

// handleUpdateContact handles PUT /api/v1/contacts/{id}
func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.contacts.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update contact")
		return
	}
	if contact == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !email.Valid(req.Email) {
		s.sendError(w, http.StatusBadRequest, "valid email is required")
		return
	}

	if email.Normalize(req.Email) != contact.Email {
		existing, err := s.contacts.GetByEmail(req.Email)
		if err != nil {
			s.sendError(w, http.StatusInternalServerError, "Failed to update contact")
			return
		}
		if existing != nil {
			s.sendError(w, http.StatusConflict, "a contact with this email already exists")
			return
		}
	}

	contact.Email = req.Email
	contact.Name = req.Name
	contact.Position = req.Position
	contact.Company = req.Company

	if err := s.contacts.Update(contact); err != nil {
		s.logger.Error("failed to update contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update contact")
		return
	}

	s.sendJSON(w, http.StatusOK, contact)
}

// handleDeleteContact handles DELETE /api/v1/contacts/{id}
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := s.contacts.Delete(chi.URLParam(r, "id")); err != nil {
		s.logger.Error("failed to delete contact", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete contact")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteRequest is the request body for POST /api/v1/contacts/bulk-delete
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDeleteResponse reports how many contacts were removed
type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// handleBulkDeleteContacts handles POST /api/v1/contacts/bulk-delete
func (s *Server) handleBulkDeleteContacts(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		s.sendError(w, http.StatusBadRequest, "ids is required")
		return
	}

	n, err := s.contacts.DeleteMany(req.IDs)
	if err != nil {
		s.logger.Error("failed to bulk delete contacts", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete contacts")
		return
	}

	s.sendJSON(w, http.StatusOK, BulkDeleteResponse{Deleted: n})
}

// ImportRequest is the request body for POST /api/v1/contacts/import
type ImportRequest struct {
	Contacts []ContactRequest `json:"contacts"`
}

// handleImportContacts handles POST /api/v1/contacts/import
func (s *Server) handleImportContacts(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Contacts) == 0 {
		s.sendError(w, http.StatusBadRequest, "contacts is required")
		return
	}

	contacts := make([]models.Contact, len(req.Contacts))
	for i, c := range req.Contacts {
		contacts[i] = models.Contact{
			Email:    c.Email,
			Name:     c.Name,
			Position: c.Position,
			Company:  c.Company,
		}
	}

	result, err := s.contacts.Import(contacts)
	if err != nil {
		s.logger.Error("failed to import contacts", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to import contacts")
		return
	}

	s.logger.Info("contacts imported", "total", result.Total, "imported", result.Imported, "skipped", result.Skipped)
	s.sendJSON(w, http.StatusOK, result)
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
