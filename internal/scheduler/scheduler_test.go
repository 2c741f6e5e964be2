package scheduler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mailkite/mailkite/internal/compose"
	"github.com/mailkite/mailkite/internal/db"
	"github.com/mailkite/mailkite/internal/dispatch"
	"github.com/mailkite/mailkite/internal/mailer"
	"github.com/mailkite/mailkite/internal/models"
	"github.com/mailkite/mailkite/internal/repository"
)

type schedulerFixture struct {
	scheduler *Scheduler
	campaigns *repository.CampaignRepository
	bodies    *repository.EmailBodyRepository
	sender    *mailer.CaptureSender
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	f := &schedulerFixture{
		campaigns: repository.NewCampaignRepository(database.DB),
		bodies:    repository.NewEmailBodyRepository(database.DB),
		sender:    mailer.NewCaptureSender(logger),
	}

	engine := dispatch.NewEngine(f.campaigns, f.bodies, f.sender, compose.New("", logger), nil, nil, dispatch.RealClock(), logger)
	f.scheduler = New(f.campaigns, engine, 10*time.Millisecond, logger)
	return f
}

// seedScheduled stores a campaign whose scheduled time is already in the past.
// The gap is zero so the test run completes instantly.
func (f *schedulerFixture) seedScheduled(t *testing.T, at time.Time) *models.Campaign {
	t.Helper()

	b := &models.EmailBody{Name: "intro", Subject: "s", Content: "hello"}
	if err := f.bodies.Create(b); err != nil {
		t.Fatal(err)
	}

	c := &models.Campaign{
		Name:         "Scheduled Launch",
		BodySequence: []string{b.ID},
		Recipients:   []models.Recipient{{Email: "ada@example.com", Name: "Ada"}},
		Status:       models.StatusReady,
	}
	if err := f.campaigns.Create(c); err != nil {
		t.Fatal(err)
	}
	if err := f.campaigns.Schedule(c.ID, at); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSweepDispatchesDueCampaign(t *testing.T) {
	f := newSchedulerFixture(t)
	c := f.seedScheduled(t, time.Now().Add(-time.Minute))

	f.scheduler.sweep(context.Background())

	got, err := f.campaigns.GetByID(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusSent {
		t.Errorf("status = %q, want sent", got.Status)
	}
	if len(f.sender.Messages()) != 1 {
		t.Errorf("sent %d messages, want 1", len(f.sender.Messages()))
	}
}

func TestSweepIgnoresFutureCampaign(t *testing.T) {
	f := newSchedulerFixture(t)
	c := f.seedScheduled(t, time.Now().Add(time.Hour))

	f.scheduler.sweep(context.Background())

	got, _ := f.campaigns.GetByID(c.ID)
	if got.Status != models.StatusScheduled {
		t.Errorf("status = %q, want scheduled", got.Status)
	}
	if len(f.sender.Messages()) != 0 {
		t.Errorf("nothing should have been sent")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newSchedulerFixture(t)
	f.seedScheduled(t, time.Now().Add(-time.Minute))

	ctx := context.Background()
	f.scheduler.sweep(ctx)
	f.scheduler.sweep(ctx)

	if n := len(f.sender.Messages()); n != 1 {
		t.Errorf("campaign dispatched %d times, want exactly once", n)
	}
}

func TestStartStop(t *testing.T) {
	f := newSchedulerFixture(t)
	c := f.seedScheduled(t, time.Now().Add(-time.Minute))

	f.scheduler.Start(context.Background())
	defer f.scheduler.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := f.campaigns.GetByID(c.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == models.StatusSent {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("campaign was not dispatched before the deadline")
}
