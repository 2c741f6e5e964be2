package repository

import (
	"path/filepath"
	"testing"

	"github.com/mailkite/mailkite/internal/db"
	"github.com/mailkite/mailkite/internal/models"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestContactCreateNormalizesEmail(t *testing.T) {
	repo := NewContactRepository(openTestDB(t).DB)

	c := &models.Contact{Email: "  Ada@Example.COM ", Name: "Ada"}
	if err := repo.Create(c); err != nil {
		t.Fatal(err)
	}
	if c.ID == "" {
		t.Error("Create must assign an ID")
	}
	if c.Email != "ada@example.com" {
		t.Errorf("email = %q", c.Email)
	}

	got, err := repo.GetByEmail("ADA@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != c.ID {
		t.Errorf("case-insensitive lookup failed: %+v", got)
	}
}

func TestContactGetMissingReturnsNil(t *testing.T) {
	repo := NewContactRepository(openTestDB(t).DB)

	got, err := repo.GetByID("nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestContactListSearch(t *testing.T) {
	repo := NewContactRepository(openTestDB(t).DB)

	for _, c := range []models.Contact{
		{Email: "ada@acme.com", Name: "Ada", Company: "Acme"},
		{Email: "grace@navy.mil", Name: "Grace", Company: "Navy"},
	} {
		c := c
		if err := repo.Create(&c); err != nil {
			t.Fatal(err)
		}
	}

	got, total, err := repo.List(models.ContactFilter{Search: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(got) != 1 || got[0].Email != "ada@acme.com" {
		t.Errorf("search result = %+v total=%d", got, total)
	}
}

func TestContactDeleteMany(t *testing.T) {
	repo := NewContactRepository(openTestDB(t).DB)

	ids := []string{}
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		c := &models.Contact{Email: email}
		if err := repo.Create(c); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, c.ID)
	}

	n, err := repo.DeleteMany(ids[:2])
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	_, total, _ := repo.List(models.ContactFilter{})
	if total != 1 {
		t.Errorf("remaining = %d, want 1", total)
	}
}

func TestContactImportSkipsExisting(t *testing.T) {
	repo := NewContactRepository(openTestDB(t).DB)

	if err := repo.Create(&models.Contact{Email: "ada@x.com"}); err != nil {
		t.Fatal(err)
	}

	result, err := repo.Import([]models.Contact{
		{Email: "Ada@X.com"}, // duplicate after normalization
		{Email: "grace@x.com"},
		{Email: ""},
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Imported != 1 {
		t.Errorf("imported = %d, want 1", result.Imported)
	}
	if result.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", result.Skipped)
	}
}

func TestSegmentMembershipOrder(t *testing.T) {
	database := openTestDB(t)
	contacts := NewContactRepository(database.DB)
	segments := NewSegmentRepository(database.DB)

	ids := []string{}
	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		c := &models.Contact{Email: email}
		if err := contacts.Create(c); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, c.ID)
	}

	seg := &models.Segment{Name: "outreach"}
	if err := segments.Create(seg); err != nil {
		t.Fatal(err)
	}
	if err := segments.SetMembers(seg.ID, ids); err != nil {
		t.Fatal(err)
	}

	got, err := segments.GetContacts(seg.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"c@x.com", "a@x.com", "b@x.com"}
	for i := range want {
		if got[i].Email != want[i] {
			t.Errorf("position %d = %q, want %q", i, got[i].Email, want[i])
		}
	}

	// AddMembers appends after the current members
	extra := &models.Contact{Email: "d@x.com"}
	if err := contacts.Create(extra); err != nil {
		t.Fatal(err)
	}
	if err := segments.AddMembers(seg.ID, []string{extra.ID}); err != nil {
		t.Fatal(err)
	}
	got, _ = segments.GetContacts(seg.ID)
	if got[len(got)-1].Email != "d@x.com" {
		t.Errorf("appended member not last: %+v", got)
	}
}

func TestSegmentDeleteCascadesMembership(t *testing.T) {
	database := openTestDB(t)
	contacts := NewContactRepository(database.DB)
	segments := NewSegmentRepository(database.DB)

	c := &models.Contact{Email: "a@x.com"}
	if err := contacts.Create(c); err != nil {
		t.Fatal(err)
	}
	seg := &models.Segment{Name: "s"}
	if err := segments.Create(seg); err != nil {
		t.Fatal(err)
	}
	if err := segments.SetMembers(seg.ID, []string{c.ID}); err != nil {
		t.Fatal(err)
	}

	// Deleting the contact removes it from the segment
	if err := contacts.Delete(c.ID); err != nil {
		t.Fatal(err)
	}
	got, err := segments.GetContacts(seg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("membership not cascaded: %+v", got)
	}
}

func TestSegmentListCounts(t *testing.T) {
	database := openTestDB(t)
	contacts := NewContactRepository(database.DB)
	segments := NewSegmentRepository(database.DB)

	c := &models.Contact{Email: "a@x.com"}
	contacts.Create(c)
	seg := &models.Segment{Name: "s"}
	segments.Create(seg)
	segments.SetMembers(seg.ID, []string{c.ID})

	got, total, err := segments.List(models.SegmentFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || got[0].ContactCount != 1 {
		t.Errorf("list = %+v total=%d", got, total)
	}
}

func TestEmailBodyGetByIDsPreservesOrder(t *testing.T) {
	repo := NewEmailBodyRepository(openTestDB(t).DB)

	ids := []string{}
	for _, name := range []string{"first", "second", "third"} {
		b := &models.EmailBody{Name: name, Subject: "s"}
		if err := repo.Create(b); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, b.ID)
	}

	// Request in reverse with an unknown ID mixed in
	got, err := repo.GetByIDs([]string{ids[2], "unknown", ids[0]})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bodies, want 2", len(got))
	}
	if got[0].Name != "third" || got[1].Name != "first" {
		t.Errorf("order not preserved: %q, %q", got[0].Name, got[1].Name)
	}
}

func TestCompanyProfileUpsert(t *testing.T) {
	repo := NewCompanyRepository(openTestDB(t).DB)

	got, err := repo.Get()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no profile initially, got %+v", got)
	}

	p := &models.CompanyProfile{
		CompanyName: "Mailkite",
		Email:       "hello@mailkite.example",
		SocialLinks: map[string]string{"twitter": "https://twitter.com/mailkite"},
	}
	if err := repo.Save(p); err != nil {
		t.Fatal(err)
	}

	p.CompanyName = "Mailkite Inc"
	if err := repo.Save(p); err != nil {
		t.Fatal(err)
	}

	got, err = repo.Get()
	if err != nil {
		t.Fatal(err)
	}
	if got.CompanyName != "Mailkite Inc" {
		t.Errorf("upsert failed: %q", got.CompanyName)
	}
	if got.SocialLinks["twitter"] != "https://twitter.com/mailkite" {
		t.Errorf("social links lost: %+v", got.SocialLinks)
	}
}
