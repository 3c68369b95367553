package channel

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/calerio/duetrack/internal/domain"
)

// EmailConfig is the mail surface of the configuration.
type EmailConfig struct {
	Server    string
	Port      int
	UseTLS    bool
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// Mail is the message handed to the transport.
type Mail struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTMLBody string
}

// MailTransport delivers a rendered mail. The SMTP implementation lives in
// smtp.go; tests substitute a fake.
type MailTransport interface {
	Send(ctx context.Context, cfg EmailConfig, mail Mail) error
}

var reminderTemplate = template.Must(template.New("reminder").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; }
  .container { padding: 20px; }
  .header { font-size: 24px; margin-bottom: 20px; color: #333; }
  .info { margin-bottom: 10px; }
  .label { font-weight: bold; }
  .priority { font-weight: bold; color: {{.PriorityColor}}; }
  .footer { margin-top: 30px; font-size: 12px; color: #777; }
</style>
</head>
<body>
<div class="container">
  <div class="header">Expiration Reminder</div>
  <div class="info"><span class="label">Concept:</span> {{.Concept}}</div>
  <div class="info"><span class="label">Due date:</span> {{.DueDate}}</div>
  <div class="info"><span class="label">Days remaining:</span> {{.DaysUntil}}</div>
  <div class="info"><span class="label">Priority:</span> <span class="priority">{{.PriorityName}}</span></div>
  <div class="info"><span class="label">Sector:</span> {{.SectorName}}</div>
  <div class="info"><span class="label">Status:</span> {{.StatusName}}</div>
  <div class="footer">This is an automated message from the expiration tracking system. Please do not reply.</div>
</div>
</body>
</html>`))

type reminderTemplateData struct {
	Concept       string
	DueDate       string
	DaysUntil     int
	PriorityName  string
	PriorityColor template.CSS
	SectorName    string
	StatusName    string
}

// EmailSender delivers reminders over a mail transport.
type EmailSender struct {
	cfg       EmailConfig
	transport MailTransport
}

func NewEmailSender(cfg EmailConfig, transport MailTransport) (*EmailSender, error) {
	if transport == nil {
		return nil, fmt.Errorf("mail transport is required")
	}
	return &EmailSender{cfg: cfg, transport: transport}, nil
}

func (s *EmailSender) Channel() domain.Channel { return domain.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(s.cfg.Username) == "" || strings.TrimSpace(s.cfg.Password) == "" {
		return fmt.Errorf("email configuration incomplete: missing account credentials")
	}
	if msg.Recipient == nil || strings.TrimSpace(msg.Recipient.Email) == "" {
		return fmt.Errorf("responsible party %s has no email address", msg.Expiration.ResponsibleID)
	}

	subject := Subject(msg.Expiration.Concept, msg.DaysUntil)

	priorityName := "unspecified"
	priorityColor := "#000"
	if msg.Priority != nil {
		priorityName = msg.Priority.Name
		priorityColor = msg.Priority.Color
	}
	sectorName := "unspecified"
	if msg.Sector != nil {
		sectorName = msg.Sector.Name
	}

	var body bytes.Buffer
	err := reminderTemplate.Execute(&body, reminderTemplateData{
		Concept:       msg.Expiration.Concept,
		DueDate:       msg.Expiration.DueDate.Format("02/01/2006"),
		DaysUntil:     msg.DaysUntil,
		PriorityName:  priorityName,
		PriorityColor: template.CSS(priorityColor),
		SectorName:    sectorName,
		StatusName:    msg.Expiration.Status.DisplayName(),
	})
	if err != nil {
		return fmt.Errorf("failed to render mail body: %w", err)
	}

	from := s.cfg.FromEmail
	if strings.TrimSpace(from) == "" {
		from = s.cfg.Username
	}

	mail := Mail{
		From:     from,
		FromName: s.cfg.FromName,
		To:       msg.Recipient.Email,
		Subject:  subject,
		HTMLBody: body.String(),
	}

	if err := s.transport.Send(ctx, s.cfg, mail); err != nil {
		return fmt.Errorf("mail delivery failed: %w", err)
	}
	return nil
}

// Subject renders the reminder subject line: overdue obligations are called
// out, upcoming ones carry the remaining day count.
func Subject(concept string, daysUntil int) string {
	if daysUntil < 0 {
		return fmt.Sprintf("OVERDUE: %s", concept)
	}
	return fmt.Sprintf("Reminder: %s due in %d days", concept, daysUntil)
}

// deadline bounds a channel call when the dispatcher did not already do so.
func deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
