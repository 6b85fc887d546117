package notify

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	eventsx "github.com/tanpawarit/Chative-Concierge/pkg/events"
)

type fakeEvents struct {
	key string
	env eventsx.Envelope
	err error
}

func (f *fakeEvents) Publish(_ context.Context, key string, env eventsx.Envelope) error {
	f.key = key
	f.env = env
	return f.err
}

func TestBookedEventsPublishesAppointment(t *testing.T) {
	t.Parallel()

	pub := &fakeEvents{}
	hook, err := NewBookedEvents(pub, "")
	if err != nil {
		t.Fatalf("NewBookedEvents() error = %v", err)
	}

	appt := contractx.Appointment{ID: "a1", TenantID: "loja", SlotDate: "2026-10-20", SlotLabel: "14:00"}
	if err := hook.OnBooked(context.Background(), appt); err != nil {
		t.Fatalf("OnBooked() error = %v", err)
	}

	if pub.key != eventsx.TypeAppointmentBooked {
		t.Fatalf("key = %q, want %q", pub.key, eventsx.TypeAppointmentBooked)
	}
	if pub.env.Meta.Type != eventsx.TypeAppointmentBooked || pub.env.Meta.CorrelationID != "a1" {
		t.Fatalf("meta = %+v, want appointment.booked correlated to a1", pub.env.Meta)
	}
	got, ok := pub.env.Data.(contractx.Appointment)
	if !ok || got != appt {
		t.Fatalf("data = %#v, want %#v", pub.env.Data, appt)
	}
}

func TestBookedEventsWrapsPublishError(t *testing.T) {
	t.Parallel()

	hook, err := NewBookedEvents(&fakeEvents{err: errors.New("channel closed")}, "bookings")
	if err != nil {
		t.Fatalf("NewBookedEvents() error = %v", err)
	}

	err = hook.OnBooked(context.Background(), contractx.Appointment{ID: "a1"})
	if !errors.Is(err, contractx.ErrExternalService) {
		t.Fatalf("OnBooked() error = %v, want ErrExternalService", err)
	}
}
