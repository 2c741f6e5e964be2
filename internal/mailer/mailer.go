// Package mailer defines the outbound send capability. The dispatch engine
// only depends on the Sender interface, so the SMTP relay sender and the
// dry-run capture sender are interchangeable.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailkite/mailkite/internal/email"
)

// Message is a fully composed, renderable email.
type Message struct {
	To      string
	ToName  string
	From    string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers one message and returns the transport message ID.
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// SendError is a per-message transport failure.
type SendError struct {
	Permanent bool
	Message   string
}

func (e *SendError) Error() string {
	return e.Message
}

// FormatAddress renders "Name <email>" when a display name is present.
// Non-ASCII names are RFC 2047 Q-encoded; plain ASCII passes through as is.
func FormatAddress(addr, name string) string {
	if name == "" {
		return addr
	}
	return mime.QEncoding.Encode("utf-8", name) + " <" + addr + ">"
}

// envelopeAddress strips an address down to the bare addr-spec for use in
// MAIL FROM and RCPT TO. "Name <a@b>" and "a@b" both yield "a@b".
func envelopeAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

// BuildData constructs the RFC 5322 wire form of a message as
// multipart/alternative when both HTML and text parts exist. The generated
// Message-ID is returned alongside the data.
func BuildData(msg *Message) ([]byte, string) {
	var buf bytes.Buffer

	domain := email.ExtractDomainOrDefault(msg.From, "localhost")
	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), domain)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", FormatAddress(msg.To, msg.ToName)))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", messageID))

	if msg.HTML != "" {
		boundary := strings.ReplaceAll(uuid.New().String(), "-", "")
		buf.WriteString("MIME-Version: 1.0\r\n")
		buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
		buf.WriteString("\r\n")

		if msg.Text != "" {
			buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
			buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
			buf.WriteString("\r\n")
			buf.WriteString(msg.Text)
			buf.WriteString("\r\n")
		}

		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(msg.HTML)
		buf.WriteString("\r\n")

		buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	} else {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(msg.Text)
	}

	return buf.Bytes(), messageID
}
