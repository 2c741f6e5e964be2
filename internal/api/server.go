// Package api exposes the management REST surface and the public tracking
// endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mailkite/mailkite/internal/audience"
	"github.com/mailkite/mailkite/internal/config"
	"github.com/mailkite/mailkite/internal/dispatch"
	"github.com/mailkite/mailkite/internal/metrics"
	"github.com/mailkite/mailkite/internal/repository"
	"github.com/mailkite/mailkite/internal/tracking"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	contacts  *repository.ContactRepository
	segments  *repository.SegmentRepository
	bodies    *repository.EmailBodyRepository
	campaigns *repository.CampaignRepository
	company   *repository.CompanyRepository
	resolver  *audience.Resolver
	engine    *dispatch.Engine
	tracker   *tracking.Store
	metrics   *metrics.Metrics

	config    *config.Config
	version   string
	logger    *slog.Logger
	startTime time.Time
}

// Deps carries the server's collaborators.
type Deps struct {
	Contacts  *repository.ContactRepository
	Segments  *repository.SegmentRepository
	Bodies    *repository.EmailBodyRepository
	Campaigns *repository.CampaignRepository
	Company   *repository.CompanyRepository
	Resolver  *audience.Resolver
	Engine    *dispatch.Engine
	Tracker   *tracking.Store
	Metrics   *metrics.Metrics
	Version   string
}

// NewServer creates a new API server
func NewServer(deps Deps, cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		contacts:  deps.Contacts,
		segments:  deps.Segments,
		bodies:    deps.Bodies,
		campaigns: deps.Campaigns,
		company:   deps.Company,
		resolver:  deps.Resolver,
		engine:    deps.Engine,
		tracker:   deps.Tracker,
		metrics:   deps.Metrics,
		config:    cfg,
		version:   deps.Version,
		logger:    logger,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}

	// Public endpoints (no auth)
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	// Tracking endpoints hit by recipient mail clients; necessarily unauthenticated
	s.router.Get("/t/{campaignID}/open.gif", s.handleTrackOpen)
	s.router.Get("/t/{campaignID}/click", s.handleTrackClick)

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", s.handleListContacts)
			r.Post("/", s.handleCreateContact)
			r.Post("/import", s.handleImportContacts)
			r.Post("/bulk-delete", s.handleBulkDeleteContacts)
			r.Get("/{id}", s.handleGetContact)
			r.Put("/{id}", s.handleUpdateContact)
			r.Delete("/{id}", s.handleDeleteContact)
		})

		r.Route("/segments", func(r chi.Router) {
			r.Get("/", s.handleListSegments)
			r.Post("/", s.handleCreateSegment)
			r.Get("/{id}", s.handleGetSegment)
			r.Put("/{id}", s.handleUpdateSegment)
			r.Delete("/{id}", s.handleDeleteSegment)
			r.Put("/{id}/contacts", s.handleSetSegmentContacts)
			r.Post("/{id}/contacts", s.handleAddSegmentContacts)
			r.Delete("/{id}/contacts/{contactID}", s.handleRemoveSegmentContact)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListBodies)
			r.Post("/", s.handleCreateBody)
			r.Get("/{id}", s.handleGetBody)
			r.Put("/{id}", s.handleUpdateBody)
			r.Delete("/{id}", s.handleDeleteBody)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Get("/{id}", s.handleGetCampaign)
			r.Put("/{id}", s.handleUpdateCampaign)
			r.Delete("/{id}", s.handleDeleteCampaign)
			r.Post("/{id}/send", s.handleSendCampaign)
			r.Post("/{id}/schedule", s.handleScheduleCampaign)
			r.Post("/{id}/unschedule", s.handleUnscheduleCampaign)
			r.Post("/{id}/duplicate", s.handleDuplicateCampaign)
			r.Get("/{id}/report", s.handleCampaignReport)
			r.Get("/{id}/recipients", s.handleCampaignRecipients)
			r.Get("/{id}/links", s.handleCampaignLinks)
		})

		r.Get("/company", s.handleGetCompany)
		r.Put("/company", s.handleSaveCompany)
	})
}

// Router exposes the configured mux, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.Server.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is the common paged-list envelope
type ListResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).String(),
	})
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
