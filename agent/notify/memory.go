package notify

import (
	"context"
	"errors"
	"strings"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

const productInterestConfidence = 0.8

// MemoryWriter is satisfied by *memory.Store.
type MemoryWriter interface {
	AddMemory(ctx context.Context, customerID, text string, source contractx.MemorySource, confidence float64) (contractx.MemoryFact, error)
}

var _ contractx.BookingHook = (*InterestRecorder)(nil)

// InterestRecorder remembers the product a customer asked about when booking.
type InterestRecorder struct {
	memories MemoryWriter
}

func NewInterestRecorder(memories MemoryWriter) (*InterestRecorder, error) {
	if memories == nil {
		return nil, errors.New("memory writer is required")
	}
	return &InterestRecorder{memories: memories}, nil
}

func (r *InterestRecorder) OnBooked(ctx context.Context, appt contractx.Appointment) error {
	product := strings.TrimSpace(appt.ProductInterest)
	if product == "" || appt.CustomerID == "" {
		return nil
	}
	_, err := r.memories.AddMemory(ctx, appt.CustomerID, "Interesse em "+product, contractx.SourceConversation, productInterestConfidence)
	return err
}
