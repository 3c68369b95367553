package channel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"github.com/go-resty/resty/v2"
)

const (
	// ServiceFirebase is the only push provider currently supported.
	ServiceFirebase = "firebase"

	defaultPushEndpoint = "https://fcm.googleapis.com/fcm/send"
	defaultPushTimeout  = 10 * time.Second
)

// PushConfig is the push surface of the configuration.
type PushConfig struct {
	Enabled  bool
	Service  string
	APIKey   string
	Endpoint string
}

type pushRequest struct {
	To           string           `json:"to"`
	Notification pushNotification `json:"notification"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushSender delivers reminders through an FCM-compatible HTTP provider.
type PushSender struct {
	cfg    PushConfig
	client *resty.Client
}

func NewPushSender(cfg PushConfig) (*PushSender, error) {
	client := resty.New()
	client.SetTimeout(defaultPushTimeout)
	client.SetRetryCount(0)

	return NewPushSenderWithClient(cfg, client)
}

func NewPushSenderWithClient(cfg PushConfig, client *resty.Client) (*PushSender, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultPushEndpoint
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultPushTimeout)
	}
	client.SetRetryCount(0)

	return &PushSender{cfg: cfg, client: client}, nil
}

func (s *PushSender) Channel() domain.Channel { return domain.ChannelPush }

func (s *PushSender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}

	service := strings.ToLower(strings.TrimSpace(s.cfg.Service))
	if service != ServiceFirebase {
		return fmt.Errorf("%w: push service %q", domain.ErrUnsupportedChannel, s.cfg.Service)
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return fmt.Errorf("push api key is not configured")
	}
	if msg.Recipient == nil {
		return fmt.Errorf("push recipient is not resolved")
	}

	body := pushRequest{
		To: msg.Recipient.ID,
		Notification: pushNotification{
			Title: Subject(msg.Expiration.Concept, msg.DaysUntil),
			Body: fmt.Sprintf("%s is due on %s",
				msg.Expiration.Concept,
				msg.Expiration.DueDate.Format("02/01/2006"),
			),
		},
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+s.cfg.APIKey).
		SetBody(body).
		Post(s.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("push provider request failed: %w", err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(response.String())
		if detail == "" {
			detail = http.StatusText(statusCode)
		}
		return fmt.Errorf("push provider returned status %d: %s", statusCode, detail)
	}

	return nil
}
