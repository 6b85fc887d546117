package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

var (
	_ contractx.BookingRepository    = (*Memory)(nil)
	_ contractx.AssignmentRepository = (*Memory)(nil)
)

// Staff is a member of a tenant's sales team.
type Staff struct {
	ID       string
	TenantID string
	Name     string
	Active   bool
}

// Memory is a process-local repository. One mutex guards everything, which
// makes the capacity check and insert in CreateAppointment a single step.
type Memory struct {
	mu           sync.Mutex
	now          func() time.Time
	newID        func() string
	customers    map[string]string // tenant|phone -> customer id
	appointments []*contractx.Appointment
	staff        []Staff
}

type MemoryOption func(*Memory)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func WithMemoryIDs(newID func() string) MemoryOption {
	return func(m *Memory) {
		if newID != nil {
			m.newID = newID
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:       time.Now,
		newID:     uuid.NewString,
		customers: make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// AddStaff registers staff members; list order is the balancer's tie-break order.
func (m *Memory) AddStaff(staff ...Staff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range staff {
		s.TenantID = contractx.NormalizeTenantID(s.TenantID)
		m.staff = append(m.staff, s)
	}
}

// Seed stores existing appointments as-is.
func (m *Memory) Seed(appts ...contractx.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range appts {
		a := appts[i]
		a.TenantID = contractx.NormalizeTenantID(a.TenantID)
		m.appointments = append(m.appointments, &a)
	}
}

// Appointments returns a copy of the tenant's appointments in insertion order.
func (m *Memory) Appointments(tenantID string) []contractx.Appointment {
	tenantID = contractx.NormalizeTenantID(tenantID)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []contractx.Appointment
	for _, a := range m.appointments {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out
}

func (m *Memory) CountBooked(ctx context.Context, tenantID string, date string) (map[string]int, error) {
	tenantID = contractx.NormalizeTenantID(tenantID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, a := range m.appointments {
		if a.TenantID == tenantID && a.SlotDate == date && a.Status.Open() {
			counts[a.SlotLabel]++
		}
	}
	return counts, nil
}

func (m *Memory) CreateAppointment(ctx context.Context, req contractx.BookingRequest) (contractx.Appointment, error) {
	req = normalizeBookingRequest(req)
	if err := validateBookingRequest(req); err != nil {
		return contractx.Appointment{}, err
	}
	if err := ctx.Err(); err != nil {
		return contractx.Appointment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	booked := 0
	for _, a := range m.appointments {
		if a.TenantID == req.TenantID && a.SlotDate == req.Slot.Date && a.SlotLabel == req.Slot.Label && a.Status.Open() {
			booked++
		}
	}
	if booked >= req.Capacity {
		return contractx.Appointment{}, fmt.Errorf("%w: %s %s has %d/%d booked",
			contractx.ErrCapacityConflict, req.Slot.Date, req.Slot.Label, booked, req.Capacity)
	}

	ck := req.TenantID + "|" + req.Phone
	customerID, ok := m.customers[ck]
	if !ok {
		customerID = m.newID()
		m.customers[ck] = customerID
	}

	appt := &contractx.Appointment{
		ID:              m.newID(),
		TenantID:        req.TenantID,
		CustomerID:      customerID,
		ScheduledAt:     req.Slot.Start.UTC(),
		SlotDate:        req.Slot.Date,
		SlotLabel:       req.Slot.Label,
		Status:          contractx.AppointmentPending,
		ProductInterest: req.ProductInterest,
		Notes:           req.Notes,
		CreatedAt:       m.now().UTC(),
	}
	m.appointments = append(m.appointments, appt)
	return *appt, nil
}

func (m *Memory) ListUnassigned(ctx context.Context, tenantID string) ([]contractx.Appointment, error) {
	tenantID = contractx.NormalizeTenantID(tenantID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []contractx.Appointment
	for _, a := range m.appointments {
		if a.TenantID == tenantID && a.StaffID == "" && a.Status.Open() {
			out = append(out, *a)
		}
	}
	slices.SortStableFunc(out, func(a, b contractx.Appointment) int {
		return a.ScheduledAt.Compare(b.ScheduledAt)
	})
	return out, nil
}

func (m *Memory) ListActiveStaff(ctx context.Context, tenantID string) ([]contractx.StaffLoad, error) {
	tenantID = contractx.NormalizeTenantID(tenantID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []contractx.StaffLoad
	for _, s := range m.staff {
		if s.TenantID != tenantID || !s.Active {
			continue
		}
		load := 0
		for _, a := range m.appointments {
			if a.StaffID == s.ID && a.Status.Open() {
				load++
			}
		}
		out = append(out, contractx.StaffLoad{StaffID: s.ID, Name: s.Name, Load: load})
	}
	return out, nil
}

func (m *Memory) AssignStaff(ctx context.Context, appointmentID string, staffID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := slices.IndexFunc(m.appointments, func(a *contractx.Appointment) bool { return a.ID == appointmentID })
	if idx < 0 {
		return false, fmt.Errorf("%w: appointment %s", contractx.ErrNotFound, appointmentID)
	}
	appt := m.appointments[idx]
	if appt.StaffID != "" {
		return false, nil
	}
	sIdx := slices.IndexFunc(m.staff, func(s Staff) bool { return s.ID == staffID && s.TenantID == appt.TenantID })
	if sIdx < 0 {
		return false, fmt.Errorf("%w: staff %s", contractx.ErrNotFound, staffID)
	}
	appt.StaffID = staffID
	appt.StaffName = m.staff[sIdx].Name
	return true, nil
}

func normalizeBookingRequest(req contractx.BookingRequest) contractx.BookingRequest {
	req.TenantID = contractx.NormalizeTenantID(req.TenantID)
	req.Phone = strings.TrimSpace(req.Phone)
	return req
}

func validateBookingRequest(req contractx.BookingRequest) error {
	switch {
	case strings.TrimSpace(req.TenantID) == "":
		return fmt.Errorf("%w: tenant id is required", contractx.ErrValidation)
	case strings.TrimSpace(req.Phone) == "":
		return fmt.Errorf("%w: phone is required", contractx.ErrValidation)
	case req.Slot.Date == "" || req.Slot.Label == "":
		return fmt.Errorf("%w: slot date and label are required", contractx.ErrValidation)
	case req.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be > 0", contractx.ErrValidation)
	}
	if _, err := time.Parse(contractx.DateLayout, req.Slot.Date); err != nil {
		return fmt.Errorf("%w: slot date %q: %v", contractx.ErrValidation, req.Slot.Date, err)
	}
	return nil
}

