package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mailkite/mailkite/internal/audience"
	"github.com/mailkite/mailkite/internal/dispatch"
	"github.com/mailkite/mailkite/internal/models"
)

// CampaignRequest is the request body for creating or updating a campaign
type CampaignRequest struct {
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	BodySequence   []string           `json:"body_sequence"`
	SelectedBodies []string           `json:"selected_bodies"`
	SegmentIDs     []string           `json:"segment_ids"`
	Recipients     []models.Recipient `json:"recipients"`
	EmailGap       int                `json:"email_gap"`
}

// CampaignResponse wraps a campaign with its derived schedule countdown
type CampaignResponse struct {
	*models.Campaign
	SecondsUntilSend int64 `json:"seconds_until_send"`
}

func (s *Server) campaignResponse(c *models.Campaign) CampaignResponse {
	return CampaignResponse{Campaign: c, SecondsUntilSend: c.SecondsUntilSend(time.Now())}
}

// handleListCampaigns handles GET /api/v1/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, total, err := s.campaigns.List(models.CampaignFilter{
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.logger.Error("failed to list campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list campaigns")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Items: campaigns, Total: total})
}

// handleCreateCampaign handles POST /api/v1/campaigns.
//
// The recipient snapshot is materialized here: explicit recipients first, then
// segment members in segment order, deduplicated by lowercased email with the
// first occurrence winning. Later segment edits do not touch the snapshot.
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	campaign := &models.Campaign{}
	if !s.applyCampaignRequest(w, campaign, &req) {
		return
	}

	if err := s.campaigns.Create(campaign); err != nil {
		s.logger.Error("failed to create campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create campaign")
		return
	}

	s.sendJSON(w, http.StatusCreated, s.campaignResponse(campaign))
}

// applyCampaignRequest fills the campaign from the request, resolving the
// recipient snapshot and the company snapshot. Writes the error response and
// returns false on rejection.
func (s *Server) applyCampaignRequest(w http.ResponseWriter, campaign *models.Campaign, req *CampaignRequest) bool {
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return false
	}

	recipients := append([]models.Recipient{}, req.Recipients...)
	if len(req.SegmentIDs) > 0 {
		resolved, err := s.resolver.ResolveIDs(req.SegmentIDs)
		if err != nil {
			s.logger.Error("failed to resolve segments", "error", err)
			s.sendError(w, http.StatusBadRequest, err.Error())
			return false
		}
		recipients = append(recipients, resolved...)
	}
	recipients = audience.Dedupe(recipients)

	company, err := s.company.Get()
	if err != nil {
		s.logger.Error("failed to load company profile", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to load company profile")
		return false
	}

	campaign.Name = req.Name
	campaign.Description = req.Description
	campaign.BodySequence = req.BodySequence
	campaign.SelectedBodies = req.SelectedBodies
	campaign.SegmentIDs = req.SegmentIDs
	campaign.Recipients = recipients
	campaign.EmailGap = req.EmailGap
	campaign.Company = company
	if campaign.EmailGap <= 0 {
		campaign.EmailGap = s.config.Sending.DefaultEmailGap
	}

	// Campaigns may be saved half-configured; a campaign that already
	// satisfies the send preconditions is marked ready.
	switch campaign.Status {
	case "", models.StatusDraft, models.StatusReady:
		if campaign.Validate() == nil {
			campaign.Status = models.StatusReady
		} else {
			campaign.Status = models.StatusDraft
		}
	}
	return true
}

// handleGetCampaign handles GET /api/v1/campaigns/{id}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	s.sendJSON(w, http.StatusOK, s.campaignResponse(campaign))
}

// handleUpdateCampaign handles PUT /api/v1/campaigns/{id}. The recipient and
// company snapshots are re-materialized from the request.
func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}
	if campaign.Status == models.StatusSending {
		s.sendError(w, http.StatusConflict, "campaign is currently sending")
		return
	}

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !s.applyCampaignRequest(w, campaign, &req) {
		return
	}

	if err := s.campaigns.Update(campaign); err != nil {
		s.logger.Error("failed to update campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update campaign")
		return
	}

	s.sendJSON(w, http.StatusOK, s.campaignResponse(campaign))
}

// handleDeleteCampaign handles DELETE /api/v1/campaigns/{id}. The campaign's
// tracking events are removed with it.
func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.campaigns.Delete(id); err != nil {
		s.logger.Error("failed to delete campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete campaign")
		return
	}
	if s.tracker != nil {
		if err := s.tracker.DeleteCampaign(r.Context(), id); err != nil {
			s.logger.Error("failed to delete tracking events", "campaign_id", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// SendResponse is the response for POST /api/v1/campaigns/{id}/send
type SendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleSendCampaign handles POST /api/v1/campaigns/{id}/send. Dispatch runs
// in the background; the claim inside the engine is what prevents a double
// send if the scheduler picks up the same campaign concurrently.
func (s *Server) handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	campaign, err := s.campaigns.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}
	if campaign.Status == models.StatusSending {
		s.sendError(w, http.StatusConflict, "campaign is already sending")
		return
	}
	if campaign.Status == models.StatusSent {
		s.sendError(w, http.StatusConflict, "campaign has already been sent")
		return
	}
	if err := campaign.Validate(); err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	go func() {
		_, err := s.engine.Dispatch(context.Background(), id, "manual")
		if err != nil && !errors.Is(err, dispatch.ErrNotClaimable) {
			s.logger.Error("manual dispatch failed", "campaign_id", id, "error", err)
		}
	}()

	s.sendJSON(w, http.StatusAccepted, SendResponse{ID: id, Status: models.StatusSending})
}

// ScheduleRequest is the request body for POST /api/v1/campaigns/{id}/schedule
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// handleScheduleCampaign handles POST /api/v1/campaigns/{id}/schedule. A time
// in the past is accepted; the campaign is simply due on the next sweep.
func (s *Server) handleScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	campaign, err := s.campaigns.GetByID(id)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ScheduledAt.IsZero() {
		s.sendError(w, http.StatusBadRequest, "scheduled_at is required")
		return
	}
	if err := campaign.Validate(); err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.campaigns.Schedule(id, req.ScheduledAt); err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}

	updated, err := s.campaigns.GetByID(id)
	if err != nil || updated == nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to load campaign")
		return
	}
	s.sendJSON(w, http.StatusOK, s.campaignResponse(updated))
}

// handleUnscheduleCampaign handles POST /api/v1/campaigns/{id}/unschedule
func (s *Server) handleUnscheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	campaign, err := s.campaigns.GetByID(id)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}
	if campaign.Status != models.StatusScheduled {
		s.sendError(w, http.StatusConflict, "campaign is not scheduled")
		return
	}

	if err := s.campaigns.Unschedule(id); err != nil {
		s.logger.Error("failed to unschedule campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to unschedule campaign")
		return
	}

	updated, err := s.campaigns.GetByID(id)
	if err != nil || updated == nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to load campaign")
		return
	}
	s.sendJSON(w, http.StatusOK, s.campaignResponse(updated))
}

// handleDuplicateCampaign handles POST /api/v1/campaigns/{id}/duplicate. The
// copy keeps the configuration and snapshots but none of the send state.
func (s *Server) handleDuplicateCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	dup := *campaign
	dup.Name = campaign.Name + " (Copy)"
	dup.ScheduledAt = nil
	dup.SentAt = nil
	dup.SentCount = 0
	if dup.Validate() == nil {
		dup.Status = models.StatusReady
	} else {
		dup.Status = models.StatusDraft
	}

	if err := s.campaigns.Create(&dup); err != nil {
		s.logger.Error("failed to duplicate campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to duplicate campaign")
		return
	}

	s.sendJSON(w, http.StatusCreated, s.campaignResponse(&dup))
}

// handleCampaignReport handles GET /api/v1/campaigns/{id}/report
func (s *Server) handleCampaignReport(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	summary, err := s.tracker.Aggregate(r.Context(), campaign.ID, len(campaign.Recipients))
	if err != nil {
		s.logger.Error("failed to aggregate tracking events", "campaign_id", campaign.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	s.sendJSON(w, http.StatusOK, summary)
}

// handleCampaignRecipients handles GET /api/v1/campaigns/{id}/recipients.
// Every snapshot recipient appears exactly once, classified into a tier.
func (s *Server) handleCampaignRecipients(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	breakdown, err := s.tracker.RecipientBreakdown(r.Context(), campaign.ID, campaign.Recipients)
	if err != nil {
		s.logger.Error("failed to build recipient breakdown", "campaign_id", campaign.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to build recipient breakdown")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Items: breakdown, Total: len(breakdown)})
}

// handleCampaignLinks handles GET /api/v1/campaigns/{id}/links
func (s *Server) handleCampaignLinks(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	links, err := s.tracker.TopClickedLinks(r.Context(), campaign.ID, queryInt(r, "limit", 10))
	if err != nil {
		s.logger.Error("failed to rank clicked links", "campaign_id", campaign.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to rank links")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Items: links, Total: len(links)})
}
