package audience

import (
	"testing"

	"github.com/mailkite/mailkite/internal/models"
)

func seg(name string, contacts ...models.Contact) models.Segment {
	return models.Segment{Name: name, Contacts: contacts}
}

func contact(email, name string) models.Contact {
	return models.Contact{Email: email, Name: name}
}

func TestResolveDeduplicatesAcrossSegments(t *testing.T) {
	segments := []models.Segment{
		seg("first",
			contact("ada@example.com", "Ada"),
			contact("grace@example.com", "Grace"),
		),
		seg("second",
			contact("ada@example.com", "Ada Again"),
			contact("alan@example.com", "Alan"),
		),
	}

	got := Resolve(segments)

	want := []string{"ada@example.com", "grace@example.com", "alan@example.com"}
	if len(got) != len(want) {
		t.Fatalf("got %d recipients, want %d", len(got), len(want))
	}
	for i, email := range want {
		if got[i].Email != email {
			t.Errorf("recipient %d = %q, want %q", i, got[i].Email, email)
		}
	}

	// First occurrence wins, including its attributes
	if got[0].Name != "Ada" {
		t.Errorf("duplicate resolution kept %q, want first occurrence", got[0].Name)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	segments := []models.Segment{
		seg("a", contact("Ada@Example.COM", "Ada")),
		seg("b", contact("ada@example.com", "Other")),
	}

	got := Resolve(segments)
	if len(got) != 1 {
		t.Fatalf("got %d recipients, want 1", len(got))
	}
	if got[0].Email != "ada@example.com" {
		t.Errorf("email not normalized: %q", got[0].Email)
	}
}

func TestResolveSkipsEmptyEmails(t *testing.T) {
	segments := []models.Segment{
		seg("a", contact("", "No Email"), contact("  ", "Spaces"), contact("ok@example.com", "OK")),
	}

	got := Resolve(segments)
	if len(got) != 1 || got[0].Email != "ok@example.com" {
		t.Fatalf("got %+v", got)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	if got := Resolve(nil); len(got) != 0 {
		t.Errorf("Resolve(nil) = %v, want empty", got)
	}
}

func TestResolveDeterministic(t *testing.T) {
	segments := []models.Segment{
		seg("a", contact("c@example.com", "C"), contact("a@example.com", "A")),
		seg("b", contact("b@example.com", "B")),
	}

	first := Resolve(segments)
	for i := 0; i < 10; i++ {
		again := Resolve(segments)
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("resolution order not stable at %d: %v vs %v", j, first, again)
			}
		}
	}
}

func TestDedupe(t *testing.T) {
	in := []models.Recipient{
		{Email: "Ada@Example.com", Name: "Ada"},
		{Email: "ada@example.com", Name: "Duplicate"},
		{Email: "", Name: "Empty"},
		{Email: "grace@example.com", Name: "Grace"},
	}

	got := Dedupe(in)
	if len(got) != 2 {
		t.Fatalf("got %d recipients, want 2", len(got))
	}
	if got[0].Email != "ada@example.com" || got[0].Name != "Ada" {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].Email != "grace@example.com" {
		t.Errorf("second entry = %+v", got[1])
	}
}
