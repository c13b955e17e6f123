package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/config"
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
)

// InAppChannel writes notification rows read by the app's bell menu. One row
// per addressed recipient; administrators share a sentinel recipient id.
type InAppChannel struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

// NewInAppChannel creates the channel.
func NewInAppChannel(repo repository.NotificationRepository) *InAppChannel {
	return &InAppChannel{repo: repo, now: time.Now}
}

func (c *InAppChannel) Name() string { return "in_app" }

func (c *InAppChannel) Send(ctx context.Context, event Event, audience Audience) error {
	recipients := []string{}
	if audience.Administrators {
		recipients = append(recipients, domain.RecipientAdministrators)
	}
	if audience.TechnicianID != nil {
		recipients = append(recipients, *audience.TechnicianID)
	}
	for _, recipient := range recipients {
		row := &domain.Notification{
			ID:          "NOT-" + uuid.NewString(),
			TenantID:    event.TenantID,
			Kind:        event.Kind,
			Subject:     event.Subject,
			Body:        event.Body,
			RecipientID: recipient,
			State:       domain.NotificationStateSent,
			SentAt:      c.now(),
		}
		if event.ReferenceID != "" {
			ref := event.ReferenceID
			row.ReferenceID = &ref
		}
		if event.DedupeKey != "" {
			key := event.DedupeKey
			row.DedupeKey = &key
		}
		if err := c.repo.Create(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// PushChannel mirrors events to web-push subscribers. Delivery mechanics
// live behind an external gateway; this stub logs what would be pushed.
type PushChannel struct {
	enabled bool
	logger  *zap.Logger
}

// NewPushChannel creates the channel.
func NewPushChannel(cfg config.NotificationConfig, logger *zap.Logger) *PushChannel {
	return &PushChannel{enabled: cfg.PushEnabled, logger: logger}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Send(ctx context.Context, event Event, audience Audience) error {
	if !c.enabled {
		return nil
	}
	c.logger.Debug("push notification",
		zap.String("kind", event.Kind),
		zap.String("subject", event.Subject),
		zap.String("reference_id", event.ReferenceID))
	return nil
}

// ChatChannel mirrors escalations into the admin chat channel.
type ChatChannel struct {
	enabled bool
	logger  *zap.Logger
}

// NewChatChannel creates the channel.
func NewChatChannel(cfg config.NotificationConfig, logger *zap.Logger) *ChatChannel {
	return &ChatChannel{enabled: cfg.ChatMirror, logger: logger}
}

func (c *ChatChannel) Name() string { return "chat" }

func (c *ChatChannel) Send(ctx context.Context, event Event, audience Audience) error {
	if !c.enabled || !audience.Administrators {
		return nil
	}
	c.logger.Debug("chat mirror",
		zap.String("kind", event.Kind),
		zap.String("body", event.Body),
		zap.String("reference_id", event.ReferenceID))
	return nil
}

// EmailChannel forwards events to the mail gateway.
type EmailChannel struct {
	from   string
	logger *zap.Logger
}

// NewEmailChannel creates the channel.
func NewEmailChannel(cfg config.NotificationConfig, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{from: cfg.EmailFrom, logger: logger}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, event Event, audience Audience) error {
	if c.from == "" {
		return nil
	}
	c.logger.Debug("email notification",
		zap.String("from", c.from),
		zap.String("kind", event.Kind),
		zap.String("subject", event.Subject))
	return nil
}
