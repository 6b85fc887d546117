package contract

import (
	"time"
)

// DateLayout is the canonical calendar-date encoding used in sessions and storage.
const DateLayout = "2006-01-02"

// Slot is a bookable (date, time-label) pair. Capacity and Booked are
// excluded from JSON so they never reach persisted sessions or rendered text.
type Slot struct {
	Date     string    `json:"date"`
	Label    string    `json:"label"`
	Start    time.Time `json:"start"`
	Capacity int       `json:"-"`
	Booked   int       `json:"-"`
}

// MinuteOfDay returns the slot start as minutes after local midnight.
func (s Slot) MinuteOfDay() int {
	return s.Start.Hour()*60 + s.Start.Minute()
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Open reports whether the status counts toward slot capacity and staff load.
func (s AppointmentStatus) Open() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

type Appointment struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"`
	CustomerID      string            `json:"customer_id"`
	StaffID         string            `json:"staff_id,omitempty"` // empty = unassigned
	StaffName       string            `json:"staff_name,omitempty"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	SlotDate        string            `json:"slot_date"`
	SlotLabel       string            `json:"slot_label"`
	Status          AppointmentStatus `json:"status"`
	ProductInterest string            `json:"product_interest,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// BookingRequest is what the orchestrator hands to the appointment-creation
// collaborator. Capacity is the configured limit the create must enforce atomically.
type BookingRequest struct {
	TenantID        string
	Phone           string
	DisplayName     string
	Slot            Slot
	Capacity        int
	ProductInterest string
	Notes           string
}

// StaffLoad is an active staff member with the count of their open appointments.
type StaffLoad struct {
	StaffID string
	Name    string
	Load    int
}

type MemorySource string

const (
	SourceConversation MemorySource = "conversation"
	SourceFeedback     MemorySource = "feedback"
	SourceManual       MemorySource = "manual"
)

func (s MemorySource) Valid() bool {
	switch s {
	case SourceConversation, SourceFeedback, SourceManual:
		return true
	default:
		return false
	}
}

type MemoryFact struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id"`
	Text       string       `json:"text"`
	Source     MemorySource `json:"source"`
	Confidence float64      `json:"confidence"`
	Embedding  []float32    `json:"-"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Neighbor is a MemoryFact returned by a nearest-neighbor search, with its
// cosine distance to the query (similarity = 1 - distance).
type Neighbor struct {
	MemoryFact
	Distance float64 `json:"distance"`
}

func (n Neighbor) Similarity() float64 {
	return 1 - n.Distance
}
