package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mailkite/mailkite/internal/compose"
	"github.com/mailkite/mailkite/internal/db"
	"github.com/mailkite/mailkite/internal/mailer"
	"github.com/mailkite/mailkite/internal/models"
	"github.com/mailkite/mailkite/internal/repository"
	"github.com/mailkite/mailkite/internal/tracking"
)

// fakeClock advances instantly so pacing can be asserted without waiting.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// mockSender implements mailer.Sender for testing
type mockSender struct {
	sendFunc func(ctx context.Context, msg *mailer.Message) (string, error)
	sent     []*mailer.Message
}

func (m *mockSender) Send(ctx context.Context, msg *mailer.Message) (string, error) {
	m.sent = append(m.sent, msg)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, msg)
	}
	return "msg-id", nil
}

type engineFixture struct {
	engine    *Engine
	campaigns *repository.CampaignRepository
	bodies    *repository.EmailBodyRepository
	sender    *mockSender
	clock     *fakeClock
	tracker   *tracking.Store
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	tracker, err := tracking.NewStore(filepath.Join(t.TempDir(), "tracking.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tracker.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	f := &engineFixture{
		campaigns: repository.NewCampaignRepository(database.DB),
		bodies:    repository.NewEmailBodyRepository(database.DB),
		sender:    &mockSender{},
		clock:     newFakeClock(),
		tracker:   tracker,
	}
	f.engine = NewEngine(f.campaigns, f.bodies, f.sender, compose.New("", logger), tracker, nil, f.clock, logger)
	return f
}

// seedCampaign stores two email bodies and a ready campaign with two
// recipients and a 3 second gap.
func (f *engineFixture) seedCampaign(t *testing.T) *models.Campaign {
	t.Helper()

	bodyIDs := []string{}
	for _, name := range []string{"intro", "followup"} {
		b := &models.EmailBody{Name: name, Subject: name + " subject", Content: "Hello {{firstName}}"}
		if err := f.bodies.Create(b); err != nil {
			t.Fatal(err)
		}
		bodyIDs = append(bodyIDs, b.ID)
	}

	c := &models.Campaign{
		Name:         "Launch",
		BodySequence: bodyIDs,
		Recipients: []models.Recipient{
			{Email: "ada@example.com", Name: "Ada"},
			{Email: "grace@example.com", Name: "Grace"},
		},
		EmailGap: 3,
		Status:   models.StatusReady,
	}
	if err := f.campaigns.Create(c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestDispatchOrderingAndPacing(t *testing.T) {
	f := newEngineFixture(t)
	c := f.seedCampaign(t)

	report, err := f.engine.Dispatch(context.Background(), c.ID, "manual")
	if err != nil {
		t.Fatal(err)
	}

	if len(f.sender.sent) != 4 {
		t.Fatalf("sent %d messages, want 4", len(f.sender.sent))
	}

	// Recipient-major: each recipient gets its full sequence before the next
	wantOrder := []struct{ to, subject string }{
		{"ada@example.com", "intro subject"},
		{"ada@example.com", "followup subject"},
		{"grace@example.com", "intro subject"},
		{"grace@example.com", "followup subject"},
	}
	for i, want := range wantOrder {
		got := f.sender.sent[i]
		if got.To != want.to || got.Subject != want.subject {
			t.Errorf("send %d = (%q, %q), want (%q, %q)", i, got.To, got.Subject, want.to, want.subject)
		}
	}

	// One gap after every unit except the last
	if len(f.clock.sleeps) != 3 {
		t.Fatalf("slept %d times, want 3", len(f.clock.sleeps))
	}
	for i, d := range f.clock.sleeps {
		if d != 3*time.Second {
			t.Errorf("sleep %d = %v, want 3s", i, d)
		}
	}

	if report.TotalUnits != 4 || report.TotalSent != 4 || report.TotalFailed != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.DeliveryRate != 1.0 {
		t.Errorf("delivery rate = %v", report.DeliveryRate)
	}
}

func TestDispatchContinuesAfterFailure(t *testing.T) {
	f := newEngineFixture(t)
	c := f.seedCampaign(t)

	calls := 0
	f.sender.sendFunc = func(ctx context.Context, msg *mailer.Message) (string, error) {
		calls++
		if calls == 2 {
			return "", &mailer.SendError{Permanent: true, Message: "mailbox does not exist"}
		}
		return "msg-id", nil
	}

	report, err := f.engine.Dispatch(context.Background(), c.ID, "manual")
	if err != nil {
		t.Fatal(err)
	}

	// The failed unit is skipped, never retried, and the run continues
	if len(f.sender.sent) != 4 {
		t.Fatalf("sent %d attempts, want 4", len(f.sender.sent))
	}
	if report.TotalSent != 3 || report.TotalFailed != 1 {
		t.Errorf("report = sent %d failed %d", report.TotalSent, report.TotalFailed)
	}
	if report.DeliveryRate != 0.75 {
		t.Errorf("delivery rate = %v", report.DeliveryRate)
	}

	// Pacing is unconditional: the gap still applies after the failure
	if len(f.clock.sleeps) != 3 {
		t.Errorf("slept %d times, want 3", len(f.clock.sleeps))
	}

	failed := report.Results[1]
	if failed.Success || failed.Error == "" {
		t.Errorf("failed unit result = %+v", failed)
	}

	// The campaign still completes as sent
	got, _ := f.campaigns.GetByID(c.ID)
	if got.Status != models.StatusSent {
		t.Errorf("status = %q", got.Status)
	}
}

func TestDispatchRecordsTrackingEvents(t *testing.T) {
	f := newEngineFixture(t)
	c := f.seedCampaign(t)

	f.sender.sendFunc = func(ctx context.Context, msg *mailer.Message) (string, error) {
		if msg.To == "grace@example.com" {
			return "", errors.New("connection refused")
		}
		return "msg-id", nil
	}

	if _, err := f.engine.Dispatch(context.Background(), c.ID, "manual"); err != nil {
		t.Fatal(err)
	}

	events, err := f.tracker.EventsByCampaign(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}

	sent, bounced := 0, 0
	for _, ev := range events {
		switch ev.Type {
		case tracking.EventSent:
			sent++
		case tracking.EventBounced:
			bounced++
		}
	}
	if sent != 2 || bounced != 2 {
		t.Errorf("events: %d sent, %d bounced, want 2/2", sent, bounced)
	}
}

func TestDispatchNoContentReverts(t *testing.T) {
	f := newEngineFixture(t)

	c := &models.Campaign{
		Name:         "Broken",
		BodySequence: []string{"missing-1", "missing-2"},
		Recipients:   []models.Recipient{{Email: "a@x.com"}},
		EmailGap:     1,
		Status:       models.StatusReady,
	}
	if err := f.campaigns.Create(c); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.Dispatch(context.Background(), c.ID, "manual")
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}

	if len(f.sender.sent) != 0 {
		t.Errorf("no message may be sent when content is missing")
	}

	// The claim is rolled back so the campaign stays actionable
	got, _ := f.campaigns.GetByID(c.ID)
	if got.Status != models.StatusReady {
		t.Errorf("status = %q, want ready", got.Status)
	}
}

func TestDispatchSentCampaignNotClaimable(t *testing.T) {
	f := newEngineFixture(t)
	c := f.seedCampaign(t)

	if err := f.campaigns.MarkSent(c.ID, 2, time.Now()); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.Dispatch(context.Background(), c.ID, "manual")
	if !errors.Is(err, ErrNotClaimable) {
		t.Fatalf("err = %v, want ErrNotClaimable", err)
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("sent campaign must never be re-sent")
	}
}

func TestDispatchMarksSent(t *testing.T) {
	f := newEngineFixture(t)
	c := f.seedCampaign(t)

	if _, err := f.engine.Dispatch(context.Background(), c.ID, "scheduled"); err != nil {
		t.Fatal(err)
	}

	got, _ := f.campaigns.GetByID(c.ID)
	if got.Status != models.StatusSent {
		t.Errorf("status = %q", got.Status)
	}
	if got.SentCount != 2 {
		t.Errorf("sent count = %d, want recipient count 2", got.SentCount)
	}
	if got.SentAt == nil {
		t.Error("sent_at not set")
	}
}

func TestSendCampaignNoRecipients(t *testing.T) {
	f := newEngineFixture(t)

	c := &models.Campaign{
		Name:         "Empty",
		BodySequence: []string{"x"},
		Status:       models.StatusReady,
	}

	_, err := f.engine.SendCampaign(context.Background(), c)
	if !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("err = %v, want ErrNoRecipients", err)
	}
}

func TestRealClockSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	RealClock().Sleep(ctx, time.Minute)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled sleep took %v", elapsed)
	}
}
