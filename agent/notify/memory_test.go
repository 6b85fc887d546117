package notify

import (
	"context"
	"testing"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

type fakeMemoryWriter struct {
	calls      int
	customerID string
	text       string
	source     contractx.MemorySource
}

func (f *fakeMemoryWriter) AddMemory(_ context.Context, customerID, text string, source contractx.MemorySource, _ float64) (contractx.MemoryFact, error) {
	f.calls++
	f.customerID, f.text, f.source = customerID, text, source
	return contractx.MemoryFact{ID: "m1"}, nil
}

func TestInterestRecorderStoresProduct(t *testing.T) {
	t.Parallel()

	w := &fakeMemoryWriter{}
	rec, err := NewInterestRecorder(w)
	if err != nil {
		t.Fatalf("NewInterestRecorder() error = %v", err)
	}

	appt := contractx.Appointment{ID: "a1", CustomerID: "c1", ProductInterest: " geladeira frost free "}
	if err := rec.OnBooked(context.Background(), appt); err != nil {
		t.Fatalf("OnBooked() error = %v", err)
	}
	if w.customerID != "c1" || w.text != "Interesse em geladeira frost free" || w.source != contractx.SourceConversation {
		t.Fatalf("AddMemory(%q, %q, %q)", w.customerID, w.text, w.source)
	}
}

func TestInterestRecorderSkipsEmptyProduct(t *testing.T) {
	t.Parallel()

	w := &fakeMemoryWriter{}
	rec, err := NewInterestRecorder(w)
	if err != nil {
		t.Fatalf("NewInterestRecorder() error = %v", err)
	}

	if err := rec.OnBooked(context.Background(), contractx.Appointment{ID: "a1", CustomerID: "c1"}); err != nil {
		t.Fatalf("OnBooked() error = %v", err)
	}
	if w.calls != 0 {
		t.Fatalf("AddMemory calls = %d, want 0", w.calls)
	}
}
