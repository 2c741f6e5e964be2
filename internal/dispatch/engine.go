// Package dispatch implements the campaign send pipeline: a sequential,
// rate-limited dispatcher that turns a campaign into a paced stream of
// outbound messages with per-message bookkeeping.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mailkite/mailkite/internal/compose"
	"github.com/mailkite/mailkite/internal/mailer"
	"github.com/mailkite/mailkite/internal/metrics"
	"github.com/mailkite/mailkite/internal/models"
	"github.com/mailkite/mailkite/internal/repository"
	"github.com/mailkite/mailkite/internal/tracking"
)

var (
	// ErrNoContent means the body sequence resolved to zero concrete email
	// bodies. The run aborts before the first send: sending zero-content
	// mail is never acceptable.
	ErrNoContent = errors.New("campaign has no email content")

	// ErrNoRecipients means the recipient snapshot is empty.
	ErrNoRecipients = errors.New("campaign has no recipients")

	// ErrNotClaimable means the campaign could not be claimed for sending:
	// it is already sending, already sent, or was taken by a concurrent path.
	ErrNotClaimable = errors.New("campaign cannot be claimed for sending")
)

// Engine drives campaign send runs.
type Engine struct {
	campaigns *repository.CampaignRepository
	bodies    *repository.EmailBodyRepository
	sender    mailer.Sender
	composer  *compose.Composer
	tracker   *tracking.Store
	metrics   *metrics.Metrics
	clock     Clock
	logger    *slog.Logger
}

func NewEngine(
	campaigns *repository.CampaignRepository,
	bodies *repository.EmailBodyRepository,
	sender mailer.Sender,
	composer *compose.Composer,
	tracker *tracking.Store,
	m *metrics.Metrics,
	clock Clock,
	logger *slog.Logger,
) *Engine {
	if clock == nil {
		clock = RealClock()
	}
	return &Engine{
		campaigns: campaigns,
		bodies:    bodies,
		sender:    sender,
		composer:  composer,
		tracker:   tracker,
		metrics:   m,
		clock:     clock,
		logger:    logger.With("component", "dispatch"),
	}
}

// workUnit is one (recipient, email body) pair in dispatch order.
type workUnit struct {
	recipient models.Recipient
	body      models.EmailBody
}

// Dispatch claims a campaign, runs the send loop and settles the final
// status: sent on completion, or back to the prior status when the run could
// not start. The claim is a compare-and-set on the status column, so two
// concurrent dispatches of the same campaign resolve to exactly one run.
func (e *Engine) Dispatch(ctx context.Context, campaignID, trigger string) (*models.CampaignReport, error) {
	campaign, err := e.campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, errors.New("campaign not found")
	}

	prevStatus := campaign.Status

	claimed, err := e.campaigns.ClaimForSending(campaignID,
		models.StatusDraft, models.StatusReady, models.StatusScheduled, models.StatusPaused)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrNotClaimable
	}

	if e.metrics != nil {
		e.metrics.CampaignsDispatchedTotal.WithLabelValues(trigger).Inc()
		e.metrics.CampaignsInFlight.Inc()
		defer e.metrics.CampaignsInFlight.Dec()
	}

	report, err := e.SendCampaign(ctx, campaign)
	if err != nil {
		// The run never started; put the campaign back so a scheduled one
		// is retried on the next tick and a manual one stays actionable.
		if revertErr := e.campaigns.UpdateStatus(campaignID, prevStatus); revertErr != nil {
			e.logger.Error("failed to revert campaign status", "campaign_id", campaignID, "error", revertErr)
		}
		return nil, err
	}

	if err := e.campaigns.MarkSent(campaignID, len(campaign.Recipients), e.clock.Now()); err != nil {
		e.logger.Error("failed to mark campaign sent", "campaign_id", campaignID, "error", err)
	}

	if e.metrics != nil {
		e.metrics.CampaignDurationSeconds.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}

	e.logger.Info("campaign dispatched",
		"campaign_id", campaignID,
		"trigger", trigger,
		"sent", report.TotalSent,
		"failed", report.TotalFailed,
	)
	return report, nil
}

// SendCampaign runs the paced send loop for an already-claimed campaign.
//
// The work list is the full (recipient x email body) cross-product in nested
// order: each recipient receives its complete body sequence before the next
// recipient begins. Processing is strictly sequential, with an unconditional
// pause of EmailGap seconds after every attempt except the last, success or
// not. A failed unit is recorded and skipped, never retried; the run always
// completes and reports partial counts.
func (e *Engine) SendCampaign(ctx context.Context, campaign *models.Campaign) (*models.CampaignReport, error) {
	if campaign.Status == models.StatusSent {
		return nil, ErrNotClaimable
	}
	if len(campaign.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	bodies, err := e.bodies.GetByIDs(campaign.BodySequence)
	if err != nil {
		return nil, err
	}
	if len(bodies) == 0 {
		return nil, ErrNoContent
	}

	units := make([]workUnit, 0, len(campaign.Recipients)*len(bodies))
	for _, rcpt := range campaign.Recipients {
		for _, body := range bodies {
			units = append(units, workUnit{recipient: rcpt, body: body})
		}
	}

	gap := time.Duration(campaign.EmailGap) * time.Second

	report := &models.CampaignReport{
		CampaignID: campaign.ID,
		TotalUnits: len(units),
		StartedAt:  e.clock.Now(),
		Results:    make([]models.SendResult, 0, len(units)),
	}

	for i, unit := range units {
		result := e.sendUnit(ctx, campaign, unit)
		report.Results = append(report.Results, result)
		if result.Success {
			report.TotalSent++
		} else {
			report.TotalFailed++
		}

		// Pacing is unconditional: the relay is protected from bursts
		// whether or not the attempt succeeded.
		if i < len(units)-1 {
			e.clock.Sleep(ctx, gap)
		}
	}

	report.FinishedAt = e.clock.Now()
	report.DeliveryRate = float64(report.TotalSent) / float64(report.TotalUnits)
	return report, nil
}

func (e *Engine) sendUnit(ctx context.Context, campaign *models.Campaign, unit workUnit) models.SendResult {
	result := models.SendResult{
		Email:     unit.recipient.Email,
		Name:      unit.recipient.Name,
		BodyName:  unit.body.Name,
		Timestamp: e.clock.Now(),
	}

	msg := e.composer.Compose(unit.recipient, unit.body, campaign.Company)
	msg.HTML = e.composer.Instrument(msg.HTML, campaign.ID, unit.recipient.Email)

	messageID, err := e.sender.Send(ctx, msg)
	if err != nil {
		result.Error = err.Error()
		e.logger.Warn("send failed",
			"campaign_id", campaign.ID,
			"recipient", unit.recipient.Email,
			"body", unit.body.Name,
			"error", err,
		)
		e.recordEvent(ctx, campaign.ID, unit.recipient.Email, tracking.EventBounced)
		if e.metrics != nil {
			e.metrics.EmailsFailedTotal.WithLabelValues(campaign.Name).Inc()
		}
		return result
	}

	result.Success = true
	result.MessageID = messageID
	e.recordEvent(ctx, campaign.ID, unit.recipient.Email, tracking.EventSent)
	if e.metrics != nil {
		e.metrics.EmailsSentTotal.WithLabelValues(campaign.Name).Inc()
	}
	return result
}

func (e *Engine) recordEvent(ctx context.Context, campaignID, email, eventType string) {
	if e.tracker == nil {
		return
	}
	err := e.tracker.Record(ctx, tracking.Event{
		CampaignID:     campaignID,
		RecipientEmail: email,
		Type:           eventType,
		Timestamp:      e.clock.Now(),
	})
	if err != nil {
		e.logger.Error("failed to record tracking event", "campaign_id", campaignID, "error", err)
	}
}
