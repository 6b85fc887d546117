package contract

import (
	"context"
	"time"
)

// DateTimeParser resolves free text. ParseDate interprets relative words and
// the past-date cutoff against today in loc, the tenant's timezone.
type DateTimeParser interface {
	ParseDate(text string, loc *time.Location) (time.Time, bool)
	MatchTime(text string, slots []Slot) (Slot, bool)
}

type SlotScheduler interface {
	GetAvailableSlots(ctx context.Context, tenantID string, date time.Time) ([]Slot, error)
	Capacity(ctx context.Context, tenantID string, slot Slot) (int, error)
	// Location is the tenant's business-hours timezone.
	Location(ctx context.Context, tenantID string) (*time.Location, error)
}

// BookingRepository counts and creates appointments. CreateAppointment must
// fail with ErrCapacityConflict when the slot is full at commit time.
type BookingRepository interface {
	CountBooked(ctx context.Context, tenantID string, date string) (map[string]int, error)
	CreateAppointment(ctx context.Context, req BookingRequest) (Appointment, error)
}

type AssignmentRepository interface {
	ListUnassigned(ctx context.Context, tenantID string) ([]Appointment, error)
	ListActiveStaff(ctx context.Context, tenantID string) ([]StaffLoad, error)
	// AssignStaff links staff to the appointment only if it is still unassigned.
	AssignStaff(ctx context.Context, appointmentID string, staffID string) (bool, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorIndex interface {
	Insert(ctx context.Context, fact MemoryFact) error
	Nearest(ctx context.Context, customerID string, query []float32, k int, maxDistance float64) ([]Neighbor, error)
	Recent(ctx context.Context, customerID string, limit int) ([]MemoryFact, error)
}

// BookingHook runs after an appointment has been committed.
type BookingHook interface {
	OnBooked(ctx context.Context, appt Appointment) error
}
