package assign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	qstashx "github.com/tanpawarit/Chative-Concierge/pkg/qstash"
)

// Publisher enqueues a delayed HTTP delivery; *qstash.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte, opts qstashx.PublishOptions) (string, error)
}

// TriggerRequest is the body delivered to the assign webhook.
type TriggerRequest struct {
	TenantID      string `json:"tenant_id"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

var _ contractx.BookingHook = (*QueueTrigger)(nil)

// QueueTrigger asks for a balancer run for the booking's tenant once an
// appointment lands, instead of waiting for the next cron tick.
type QueueTrigger struct {
	publisher   Publisher
	destination string
}

func NewQueueTrigger(publisher Publisher, destination string) (*QueueTrigger, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, fmt.Errorf("%w: assign webhook destination is required", contractx.ErrConfiguration)
	}
	return &QueueTrigger{publisher: publisher, destination: destination}, nil
}

func (t *QueueTrigger) OnBooked(ctx context.Context, appt contractx.Appointment) error {
	body, err := json.Marshal(TriggerRequest{TenantID: appt.TenantID, AppointmentID: appt.ID})
	if err != nil {
		return fmt.Errorf("marshal trigger request: %w", err)
	}

	// One delivery per appointment even if the hook is retried.
	messageID, err := t.publisher.Publish(ctx, t.destination, body, qstashx.PublishOptions{
		DeduplicationID: "assign-" + appt.ID,
	})
	if err != nil {
		return fmt.Errorf("%w: enqueue balancer run: %v", contractx.ErrExternalService, err)
	}

	log.Debug().
		Str("tenant_id", appt.TenantID).
		Str("appointment_id", appt.ID).
		Str("message_id", messageID).
		Msg("balancer run enqueued")
	return nil
}
