package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mailkite/mailkite/internal/tracking"
)

// pixelGIF is a 1x1 transparent GIF, served for every open regardless of
// whether the event could be recorded.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// handleTrackOpen handles GET /t/{campaignID}/open.gif?r=email
func (s *Server) handleTrackOpen(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	recipient := r.URL.Query().Get("r")

	if campaignID != "" && recipient != "" {
		err := s.tracker.Record(r.Context(), tracking.Event{
			CampaignID:     campaignID,
			RecipientEmail: recipient,
			Type:           tracking.EventOpened,
			Timestamp:      time.Now(),
			UserAgent:      r.UserAgent(),
			IPAddress:      r.RemoteAddr,
		})
		if err != nil {
			s.logger.Error("failed to record open", "campaign_id", campaignID, "error", err)
		} else if s.metrics != nil {
			s.metrics.OpensRecordedTotal.Inc()
		}
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

// handleTrackClick handles GET /t/{campaignID}/click?r=email&u=target. The
// redirect happens even when recording fails; tracking must never break the
// recipient's link.
func (s *Server) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	recipient := r.URL.Query().Get("r")
	target := r.URL.Query().Get("u")

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		s.sendError(w, http.StatusBadRequest, "invalid redirect target")
		return
	}

	if campaignID != "" && recipient != "" {
		err := s.tracker.Record(r.Context(), tracking.Event{
			CampaignID:     campaignID,
			RecipientEmail: recipient,
			Type:           tracking.EventClicked,
			Timestamp:      time.Now(),
			UserAgent:      r.UserAgent(),
			IPAddress:      r.RemoteAddr,
			ClickedURL:     target,
		})
		if err != nil {
			s.logger.Error("failed to record click", "campaign_id", campaignID, "error", err)
		} else if s.metrics != nil {
			s.metrics.ClicksRecordedTotal.Inc()
		}
	}

	http.Redirect(w, r, target, http.StatusFound)
}
