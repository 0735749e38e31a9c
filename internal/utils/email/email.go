package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/Dan9191/card-ledger/internal/models"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendBlockRequestDigest mails the pending block requests to the administrators
func (s *Sender) SendBlockRequestDigest(to []string, pending models.Page[models.BlockRequestResponse], at time.Time) error {
	e := buildDigest(s.cfg.SenderEmail, to, pending, at)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send block request digest to %s: %v", strings.Join(to, ", "), err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", strings.Join(to, ", "), e.Subject)
	return nil
}

func buildDigest(from string, to []string, pending models.Page[models.BlockRequestResponse], at time.Time) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = to
	e.Subject = fmt.Sprintf("Pending card block requests: %d", pending.Total)

	var body strings.Builder
	body.WriteString("Dear administrator,\n\n")
	fmt.Fprintf(&body, "As of %s there are %d card block requests awaiting a decision.\n\n",
		at.UTC().Format("2006-01-02 15:04 MST"), pending.Total)
	for _, r := range pending.Items {
		fmt.Fprintf(&body, "- %s  card %s  requested %s  reason: %s\n",
			r.RequestID, r.MaskedCard, r.CreatedAt.UTC().Format("2006-01-02 15:04"), r.Reason)
	}
	if hidden := pending.Total - len(pending.Items); hidden > 0 {
		fmt.Fprintf(&body, "... and %d more.\n", hidden)
	}
	body.WriteString("\nBest regards,\nCard Ledger")
	e.Text = []byte(body.String())
	return e
}
