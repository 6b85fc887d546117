package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// DialogueState is the position of a booking negotiation.
//
//	NoSession -> AwaitingDate -> AwaitingTime -> AwaitingProduct -> Completed
//
// Completed is transient: the session is deleted once the appointment is
// committed, which puts the customer back at NoSession.
type DialogueState string

const (
	StateNoSession       DialogueState = "no_session"
	StateAwaitingDate    DialogueState = "awaiting_date"
	StateAwaitingTime    DialogueState = "awaiting_time"
	StateAwaitingProduct DialogueState = "awaiting_product"
	StateCompleted       DialogueState = "completed"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrInvalidState      = errors.New("invalid session state")
)

// Key identifies the single session a customer may hold with a tenant.
type Key struct {
	TenantID string
	Phone    string
}

// NewKey builds the canonical key for a customer: the tenant id normalized
// and the phone trimmed. Locks and stored sessions both use it.
func NewKey(tenantID, phone string) Key {
	return Key{
		TenantID: contractx.NormalizeTenantID(tenantID),
		Phone:    strings.TrimSpace(phone),
	}
}

func (k Key) String() string {
	return k.TenantID + ":" + k.Phone
}

func (k Key) Valid() bool {
	return strings.TrimSpace(k.TenantID) != "" && strings.TrimSpace(k.Phone) != ""
}

// BookingSession is one customer's in-progress booking dialogue.
// Fields guaranteed per state:
//   - AwaitingDate: none beyond identity.
//   - AwaitingTime: PreferredDate and a non-empty AvailableSlots.
//   - AwaitingProduct: PreferredDate, PreferredTime, and AvailableSlots
//     containing the chosen slot.
type BookingSession struct {
	TenantID        string           `json:"tenant_id"`
	Phone           string           `json:"phone"`
	State           DialogueState    `json:"state"`
	DisplayName     string           `json:"display_name,omitempty"`
	PreferredDate   string           `json:"preferred_date,omitempty"`
	PreferredTime   string           `json:"preferred_time,omitempty"`
	AvailableSlots  []contractx.Slot `json:"available_slots,omitempty"`
	ProductInterest string           `json:"product_interest,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func NewBookingSession(key Key, displayName string, now time.Time) *BookingSession {
	return &BookingSession{
		TenantID:    key.TenantID,
		Phone:       key.Phone,
		State:       StateAwaitingDate,
		DisplayName: strings.TrimSpace(displayName),
		UpdatedAt:   now.UTC(),
	}
}

func (s *BookingSession) Key() Key {
	return Key{TenantID: s.TenantID, Phone: s.Phone}
}

func (s *BookingSession) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Clone returns a deep copy so a turn can mutate freely and be discarded on error.
func (s *BookingSession) Clone() *BookingSession {
	if s == nil {
		return nil
	}
	cp := *s
	if s.AvailableSlots != nil {
		cp.AvailableSlots = append([]contractx.Slot(nil), s.AvailableSlots...)
	}
	return &cp
}

// OfferSlots records the chosen date and the slots offered for it.
func (s *BookingSession) OfferSlots(date string, slots []contractx.Slot, now time.Time) error {
	if s.State != StateAwaitingDate && s.State != StateAwaitingTime && s.State != StateAwaitingProduct {
		return fmt.Errorf("%w: offer slots from %s", ErrInvalidTransition, s.State)
	}
	if strings.TrimSpace(date) == "" || len(slots) == 0 {
		return fmt.Errorf("%w: offer requires a date and slots", ErrInvalidTransition)
	}
	s.State = StateAwaitingTime
	s.PreferredDate = date
	s.PreferredTime = ""
	s.AvailableSlots = append([]contractx.Slot(nil), slots...)
	s.Touch(now)
	return nil
}

// ChooseTime records the slot picked from the offered list.
func (s *BookingSession) ChooseTime(slot contractx.Slot, now time.Time) error {
	if s.State != StateAwaitingTime {
		return fmt.Errorf("%w: choose time from %s", ErrInvalidTransition, s.State)
	}
	if _, ok := s.offered(slot.Label); !ok {
		return fmt.Errorf("%w: slot %q was not offered", ErrInvalidTransition, slot.Label)
	}
	s.State = StateAwaitingProduct
	s.PreferredTime = slot.Label
	s.Touch(now)
	return nil
}

// ResetToDate drops the date and slot choice, asking for a new day.
func (s *BookingSession) ResetToDate(now time.Time) {
	s.State = StateAwaitingDate
	s.PreferredDate = ""
	s.PreferredTime = ""
	s.AvailableSlots = nil
	s.Touch(now)
}

// SelectedSlot returns the slot chosen at the AwaitingTime step.
func (s *BookingSession) SelectedSlot() (contractx.Slot, bool) {
	if s == nil || s.PreferredTime == "" {
		return contractx.Slot{}, false
	}
	return s.offered(s.PreferredTime)
}

func (s *BookingSession) offered(label string) (contractx.Slot, bool) {
	for _, sl := range s.AvailableSlots {
		if sl.Label == label {
			return sl, true
		}
	}
	return contractx.Slot{}, false
}

func (s *BookingSession) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil session", ErrInvalidState)
	}
	if !s.Key().Valid() {
		return fmt.Errorf("%w: tenant and phone are required", ErrInvalidState)
	}
	switch s.State {
	case StateAwaitingDate:
		return nil
	case StateAwaitingTime:
		if s.PreferredDate == "" || len(s.AvailableSlots) == 0 {
			return fmt.Errorf("%w: awaiting_time requires date and slots", ErrInvalidState)
		}
		return nil
	case StateAwaitingProduct:
		if s.PreferredDate == "" || s.PreferredTime == "" {
			return fmt.Errorf("%w: awaiting_product requires date and time", ErrInvalidState)
		}
		if _, ok := s.SelectedSlot(); !ok {
			return fmt.Errorf("%w: chosen time %q not among offered slots", ErrInvalidState, s.PreferredTime)
		}
		return nil
	default:
		return fmt.Errorf("%w: state=%q cannot be persisted", ErrInvalidState, s.State)
	}
}
