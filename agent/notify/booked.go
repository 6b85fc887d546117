package notify

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	eventsx "github.com/tanpawarit/Chative-Concierge/pkg/events"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, key string, env eventsx.Envelope) error
}

var _ contractx.BookingHook = (*BookedEvents)(nil)

// BookedEvents announces every committed appointment on the message bus.
type BookedEvents struct {
	publisher  EventPublisher
	routingKey string
}

func NewBookedEvents(publisher EventPublisher, routingKey string) (*BookedEvents, error) {
	if publisher == nil {
		return nil, errors.New("event publisher is required")
	}
	if routingKey == "" {
		routingKey = eventsx.TypeAppointmentBooked
	}
	return &BookedEvents{publisher: publisher, routingKey: routingKey}, nil
}

func (b *BookedEvents) OnBooked(ctx context.Context, appt contractx.Appointment) error {
	env := eventsx.Envelope{
		Meta: eventsx.Meta{
			Type:          eventsx.TypeAppointmentBooked,
			CorrelationID: appt.ID,
		},
		Data: appt,
	}
	if err := b.publisher.Publish(ctx, b.routingKey, env); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrExternalService, err)
	}
	return nil
}
