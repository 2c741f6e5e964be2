package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/mailkite/mailkite/internal/config"
	"github.com/mailkite/mailkite/internal/email"
)

// SMTPSender delivers messages through a configured SMTP relay.
type SMTPSender struct {
	cfg    config.SMTPConfig
	signer *DKIMSigner
	logger *slog.Logger
}

// NewSMTPSender creates a relay sender. DKIM signing is enabled when the
// config carries a key.
func NewSMTPSender(cfg config.SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	s := &SMTPSender{
		cfg:    cfg,
		logger: logger.With("component", "smtp_sender"),
	}

	if cfg.DKIM.Enabled {
		signer, err := NewDKIMSignerFromFile(cfg.DKIM.PrivateKey, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			return nil, fmt.Errorf("failed to set up DKIM signing: %w", err)
		}
		s.signer = signer
		logger.Info("DKIM signing enabled", "domain", cfg.DKIM.Domain, "selector", cfg.DKIM.Selector)
	}

	return s, nil
}

// Send delivers one message to the relay and returns the Message-ID.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (string, error) {
	data, messageID := BuildData(msg)

	if s.signer != nil {
		signed, err := s.signer.Sign(data)
		if err != nil {
			return "", &SendError{Permanent: true, Message: "DKIM signing failed: " + err.Error()}
		}
		data = signed
	}

	if err := s.deliver(ctx, msg, data); err != nil {
		return "", err
	}

	s.logger.Debug("message delivered",
		"to", msg.To,
		"message_id", messageID,
		"domain", email.ExtractDomain(msg.To),
	)
	return messageID, nil
}

func (s *SMTPSender) deliver(ctx context.Context, msg *Message, data []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &SendError{Permanent: false, Message: "failed to connect to relay: " + err.Error()}
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
	}

	var c *smtp.Client
	if s.cfg.StartTLS {
		c, err = smtp.NewClientStartTLS(conn, &tls.Config{ServerName: s.cfg.Host})
		if err != nil {
			return classifyError("STARTTLS failed", err)
		}
	} else {
		c = smtp.NewClient(conn)
	}
	defer c.Close()

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return classifyError("authentication failed", err)
		}
	}

	// The envelope takes the bare addr-spec; display forms like
	// "Name <a@b>" stay in the headers only.
	from, err := envelopeAddress(msg.From)
	if err != nil {
		return &SendError{Permanent: true, Message: "invalid sender address: " + msg.From}
	}
	to, err := envelopeAddress(msg.To)
	if err != nil {
		return &SendError{Permanent: true, Message: "invalid recipient address: " + msg.To}
	}

	if err := c.Mail(from, nil); err != nil {
		return classifyError("MAIL FROM rejected", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return classifyError("RCPT TO rejected", err)
	}

	w, err := c.Data()
	if err != nil {
		return classifyError("DATA rejected", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return classifyError("failed to write message", err)
	}
	if err := w.Close(); err != nil {
		return classifyError("message rejected", err)
	}

	return c.Quit()
}

// classifyError maps SMTP status codes to permanent/temporary failures.
// 5xx replies are permanent; everything else is assumed retryable by an
// operator even though the engine itself never retries.
func classifyError(prefix string, err error) error {
	var smtpErr *smtp.SMTPError
	permanent := false
	if errors.As(err, &smtpErr) {
		permanent = smtpErr.Code >= 500 && smtpErr.Code < 600
	}
	return &SendError{Permanent: permanent, Message: prefix + ": " + err.Error()}
}
