package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/observability"
)

// Audience selects who receives a notification. Administrators addresses
// every administrator; TechnicianID addresses one technician directly. Both
// may be set (escalations solicit the technician and alert the admins).
type Audience struct {
	Administrators bool
	TechnicianID   *string
}

// Event is the payload handed to the notifier. DedupeKey is informational:
// suppression happens before Notify is called, the key is only recorded so
// an escalation row can be traced back to the sweep that produced it.
type Event struct {
	Kind        string
	Subject     string
	Body        string
	ReferenceID string
	DedupeKey   string
	TenantID    string
}

// Notifier fans an event out to the configured channels. It never returns an
// error: delivery is best effort by contract, and a channel failure must not
// affect the lifecycle transition that produced the event.
type Notifier interface {
	Notify(ctx context.Context, event Event, audience Audience)
}

// Channel delivers an event over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, event Event, audience Audience) error
}

// FanOut dispatches to all channels concurrently and swallows failures.
type FanOut struct {
	channels []Channel
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewFanOut creates the notifier.
func NewFanOut(logger *zap.Logger, metrics *observability.Metrics, channels ...Channel) *FanOut {
	return &FanOut{channels: channels, logger: logger, metrics: metrics}
}

// Notify sends the event over every channel in parallel. Partial failures
// are logged and counted, nothing more.
func (f *FanOut) Notify(ctx context.Context, event Event, audience Audience) {
	var wg sync.WaitGroup
	for _, ch := range f.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, event, audience); err != nil {
				f.logger.Warn("notification channel failed",
					zap.String("channel", ch.Name()),
					zap.String("kind", event.Kind),
					zap.String("reference_id", event.ReferenceID),
					zap.Error(err))
				if f.metrics != nil {
					f.metrics.NotifierFailures.WithLabelValues(ch.Name()).Inc()
				}
			}
		}(ch)
	}
	wg.Wait()
}
