package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// BookingCounter reports non-cancelled appointments per time label for a date.
type BookingCounter interface {
	CountBooked(ctx context.Context, tenantID string, date string) (map[string]int, error)
}

var _ contractx.SlotScheduler = (*Scheduler)(nil)

type Scheduler struct {
	hours    HoursProvider
	bookings BookingCounter
	now      func() time.Time
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func New(hours HoursProvider, bookings BookingCounter, opts ...Option) (*Scheduler, error) {
	if hours == nil {
		return nil, errors.New("hours provider is required")
	}
	if bookings == nil {
		return nil, errors.New("booking counter is required")
	}
	s := &Scheduler{hours: hours, bookings: bookings, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// GetAvailableSlots returns the open slots for date in chronological order.
// An empty list means closed or fully booked; a tenant without hours is an
// ErrConfiguration error. Slots on today's date that already started are
// not offered.
func (s *Scheduler) GetAvailableSlots(ctx context.Context, tenantID string, date time.Time) ([]contractx.Slot, error) {
	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	loc := hours.Location
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	labels, capacity, open := hours.Day(day.Weekday())
	if !open {
		return []contractx.Slot{}, nil
	}

	dateKey := day.Format(contractx.DateLayout)
	booked, err := s.bookings.CountBooked(ctx, tenantID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("count booked for %s: %w", dateKey, err)
	}

	now := s.now().In(loc)
	slots := make([]contractx.Slot, 0, len(labels))
	for _, label := range labels {
		minute, _ := hours.minuteOf(day.Weekday(), label)
		start := day.Add(time.Duration(minute) * time.Minute)
		if start.Before(now) {
			continue
		}
		n := booked[label]
		if n >= capacity {
			continue
		}
		slots = append(slots, contractx.Slot{
			Date:     dateKey,
			Label:    label,
			Start:    start,
			Capacity: capacity,
			Booked:   n,
		})
	}
	return slots, nil
}

func (s *Scheduler) Location(ctx context.Context, tenantID string) (*time.Location, error) {
	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return hours.Location, nil
}

// Capacity returns the configured capacity of the slot's (date, label).
func (s *Scheduler) Capacity(ctx context.Context, tenantID string, slot contractx.Slot) (int, error) {
	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	day, err := time.ParseInLocation(contractx.DateLayout, slot.Date, hours.Location)
	if err != nil {
		return 0, fmt.Errorf("%w: slot date %q: %v", contractx.ErrValidation, slot.Date, err)
	}
	_, capacity, open := hours.Day(day.Weekday())
	if !open {
		return 0, fmt.Errorf("%w: %s is closed", contractx.ErrNoAvailability, slot.Date)
	}
	if _, ok := hours.minuteOf(day.Weekday(), slot.Label); !ok {
		return 0, fmt.Errorf("%w: %s has no slot %q", contractx.ErrNoAvailability, slot.Date, slot.Label)
	}
	return capacity, nil
}
