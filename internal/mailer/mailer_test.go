package mailer

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		display  string
		expected string
	}{
		{"with name", "ada@example.com", "Ada Lovelace", "Ada Lovelace <ada@example.com>"},
		{"without name", "ada@example.com", "", "ada@example.com"},
		{"non-ascii name encoded", "ada@example.com", "Ádá", "=?utf-8?q?=C3=81d=C3=A1?= <ada@example.com>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatAddress(tc.addr, tc.display); got != tc.expected {
				t.Errorf("FormatAddress = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestBuildDataMultipart(t *testing.T) {
	msg := &Message{
		To:      "ada@example.com",
		ToName:  "Ada",
		From:    "hello@mailkite.example",
		Subject: "Welcome",
		HTML:    "<p>Hello</p>",
		Text:    "Hello",
	}

	data, messageID := BuildData(msg)
	s := string(data)

	if !strings.HasSuffix(messageID, "@mailkite.example") {
		t.Errorf("message ID domain = %q", messageID)
	}
	for _, want := range []string{
		"From: hello@mailkite.example\r\n",
		"To: Ada <ada@example.com>\r\n",
		"Subject: Welcome\r\n",
		"Message-ID: <" + messageID + ">\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: multipart/alternative;",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Type: text/html; charset=utf-8",
		"<p>Hello</p>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("data missing %q:\n%s", want, s)
		}
	}

	// Text part precedes the HTML part
	if strings.Index(s, "text/plain") > strings.Index(s, "text/html") {
		t.Error("text/plain part must come first")
	}
}

func TestBuildDataTextOnly(t *testing.T) {
	msg := &Message{
		To:      "ada@example.com",
		From:    "hello@mailkite.example",
		Subject: "Plain",
		Text:    "just text",
	}

	data, _ := BuildData(msg)
	s := string(data)

	if strings.Contains(s, "multipart") {
		t.Errorf("text-only message must not be multipart:\n%s", s)
	}
	if !strings.Contains(s, "just text") {
		t.Errorf("body missing:\n%s", s)
	}
}

func TestBuildDataEncodesNonASCIISubject(t *testing.T) {
	msg := &Message{
		To:      "ada@example.com",
		From:    "hello@mailkite.example",
		Subject: "Привет",
		Text:    "x",
	}

	data, _ := BuildData(msg)
	s := string(data)

	if !strings.Contains(s, "Subject: =?utf-8?q?") {
		t.Errorf("subject not Q-encoded:\n%s", s)
	}
	if strings.Contains(s, "Subject: Привет") {
		t.Errorf("raw non-ASCII subject in headers:\n%s", s)
	}
}

func TestSendErrorMessage(t *testing.T) {
	err := &SendError{Permanent: true, Message: "mailbox unavailable"}
	if err.Error() != "mailbox unavailable" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCaptureSender(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	sender := NewCaptureSender(logger)

	msg := &Message{To: "ada@example.com", From: "hello@mailkite.example", Subject: "S", Text: "x"}
	id, err := sender.Send(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("capture sender must return a message ID")
	}

	got := sender.Messages()
	if len(got) != 1 || got[0].To != "ada@example.com" {
		t.Errorf("captured = %+v", got)
	}
}
