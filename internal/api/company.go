package api

import (
	"encoding/json"
	"net/http"

	"github.com/mailkite/mailkite/internal/models"
)

// handleGetCompany handles GET /api/v1/company. An unset profile returns an
// empty one rather than 404; there is always exactly one profile.
func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	profile, err := s.company.Get()
	if err != nil {
		s.logger.Error("failed to get company profile", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get company profile")
		return
	}
	if profile == nil {
		profile = &models.CompanyProfile{}
	}

	s.sendJSON(w, http.StatusOK, profile)
}

// handleSaveCompany handles PUT /api/v1/company. Existing campaigns keep
// their company snapshot; the change applies to campaigns edited afterwards.
func (s *Server) handleSaveCompany(w http.ResponseWriter, r *http.Request) {
	var profile models.CompanyProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if profile.CompanyName == "" {
		s.sendError(w, http.StatusBadRequest, "company_name is required")
		return
	}

	if err := s.company.Save(&profile); err != nil {
		s.logger.Error("failed to save company profile", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to save company profile")
		return
	}

	s.sendJSON(w, http.StatusOK, profile)
}
