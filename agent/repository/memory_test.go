package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s%d", prefix, n.Add(1))
	}
}

func slotAt(date, label string) contractx.Slot {
	day, _ := time.Parse(contractx.DateLayout, date)
	var h, m int
	fmt.Sscanf(label, "%d:%d", &h, &m)
	return contractx.Slot{Date: date, Label: label, Start: day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)}
}

func TestMemoryCreateAppointmentEnforcesCapacityUnderContention(t *testing.T) {
	t.Parallel()

	repo := NewMemory(WithMemoryIDs(sequentialIDs("id")))
	const capacity = 3
	const callers = 20

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		conflicts atomic.Int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.CreateAppointment(context.Background(), contractx.BookingRequest{
				TenantID: "t1",
				Phone:    fmt.Sprintf("+55119%04d", i),
				Slot:     slotAt("2026-10-20", "14:00"),
				Capacity: capacity,
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, contractx.ErrCapacityConflict):
				conflicts.Add(1)
			default:
				t.Errorf("CreateAppointment() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := succeeded.Load(); got != capacity {
		t.Fatalf("succeeded = %d, want %d", got, capacity)
	}
	if got := conflicts.Load(); got != callers-capacity {
		t.Fatalf("conflicts = %d, want %d", got, callers-capacity)
	}

	counts, err := repo.CountBooked(context.Background(), "t1", "2026-10-20")
	if err != nil {
		t.Fatalf("CountBooked() error = %v", err)
	}
	if counts["14:00"] != capacity {
		t.Fatalf("CountBooked()[14:00] = %d, want %d", counts["14:00"], capacity)
	}
}

func TestMemoryCountBookedIgnoresClosedAndOtherTenants(t *testing.T) {
	t.Parallel()

	repo := NewMemory()
	repo.Seed(
		contractx.Appointment{ID: "a1", TenantID: "t1", SlotDate: "2026-10-20", SlotLabel: "09:00", Status: contractx.AppointmentPending},
		contractx.Appointment{ID: "a2", TenantID: "t1", SlotDate: "2026-10-20", SlotLabel: "09:00", Status: contractx.AppointmentConfirmed},
		contractx.Appointment{ID: "a3", TenantID: "t1", SlotDate: "2026-10-20", SlotLabel: "09:00", Status: contractx.AppointmentCancelled},
		contractx.Appointment{ID: "a4", TenantID: "t1", SlotDate: "2026-10-20", SlotLabel: "10:00", Status: contractx.AppointmentCompleted},
		contractx.Appointment{ID: "a5", TenantID: "t2", SlotDate: "2026-10-20", SlotLabel: "09:00", Status: contractx.AppointmentPending},
		contractx.Appointment{ID: "a6", TenantID: "t1", SlotDate: "2026-10-21", SlotLabel: "09:00", Status: contractx.AppointmentPending},
	)

	counts, err := repo.CountBooked(context.Background(), "t1", "2026-10-20")
	if err != nil {
		t.Fatalf("CountBooked() error = %v", err)
	}
	if len(counts) != 1 || counts["09:00"] != 2 {
		t.Fatalf("CountBooked() = %v, want map[09:00:2]", counts)
	}
}

func TestMemoryCreateAppointmentReusesCustomer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemory(WithMemoryIDs(sequentialIDs("id")))
	req := contractx.BookingRequest{TenantID: "t1", Phone: "555", Slot: slotAt("2026-10-20", "09:00"), Capacity: 5, ProductInterest: "geladeira"}

	first, err := repo.CreateAppointment(ctx, req)
	if err != nil {
		t.Fatalf("CreateAppointment() error = %v", err)
	}
	req.Slot = slotAt("2026-10-21", "10:00")
	second, err := repo.CreateAppointment(ctx, req)
	if err != nil {
		t.Fatalf("CreateAppointment() error = %v", err)
	}
	if first.CustomerID != second.CustomerID {
		t.Fatalf("customer ids = %q, %q; want the same customer", first.CustomerID, second.CustomerID)
	}
	if first.Status != contractx.AppointmentPending || first.StaffID != "" {
		t.Fatalf("new appointment = %+v, want pending and unassigned", first)
	}
	if first.ProductInterest != "geladeira" {
		t.Fatalf("ProductInterest = %q, want geladeira", first.ProductInterest)
	}
	if !first.ScheduledAt.Equal(slotAt("2026-10-20", "09:00").Start) {
		t.Fatalf("ScheduledAt = %v, want slot start", first.ScheduledAt)
	}
}

func TestMemoryCreateAppointmentValidation(t *testing.T) {
	t.Parallel()

	repo := NewMemory()
	cases := []struct {
		name string
		req  contractx.BookingRequest
	}{
		{name: "no tenant", req: contractx.BookingRequest{Phone: "1", Slot: slotAt("2026-10-20", "09:00"), Capacity: 1}},
		{name: "no phone", req: contractx.BookingRequest{TenantID: "t1", Slot: slotAt("2026-10-20", "09:00"), Capacity: 1}},
		{name: "no slot", req: contractx.BookingRequest{TenantID: "t1", Phone: "1", Capacity: 1}},
		{name: "zero capacity", req: contractx.BookingRequest{TenantID: "t1", Phone: "1", Slot: slotAt("2026-10-20", "09:00")}},
		{name: "bad date", req: contractx.BookingRequest{TenantID: "t1", Phone: "1", Slot: contractx.Slot{Date: "20/10/2026", Label: "09:00"}, Capacity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.CreateAppointment(context.Background(), tc.req)
			if !errors.Is(err, contractx.ErrValidation) {
				t.Fatalf("CreateAppointment() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestMemoryListUnassignedOrderedBySchedule(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	repo := NewMemory()
	repo.Seed(
		contractx.Appointment{ID: "late", TenantID: "t1", ScheduledAt: base.Add(3 * time.Hour), Status: contractx.AppointmentPending},
		contractx.Appointment{ID: "early", TenantID: "t1", ScheduledAt: base, Status: contractx.AppointmentConfirmed},
		contractx.Appointment{ID: "taken", TenantID: "t1", ScheduledAt: base, Status: contractx.AppointmentPending, StaffID: "s1"},
		contractx.Appointment{ID: "done", TenantID: "t1", ScheduledAt: base, Status: contractx.AppointmentCompleted},
		contractx.Appointment{ID: "other", TenantID: "t2", ScheduledAt: base, Status: contractx.AppointmentPending},
	)

	got, err := repo.ListUnassigned(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ListUnassigned() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "early" || got[1].ID != "late" {
		t.Fatalf("ListUnassigned() = %+v, want [early late]", got)
	}
}

func TestMemoryListActiveStaffWithLoad(t *testing.T) {
	t.Parallel()

	repo := NewMemory()
	repo.AddStaff(
		Staff{ID: "s1", TenantID: "t1", Name: "Bruna", Active: true},
		Staff{ID: "s2", TenantID: "t1", Name: "Caio", Active: false},
		Staff{ID: "s3", TenantID: "t1", Name: "Davi", Active: true},
		Staff{ID: "s4", TenantID: "t2", Name: "Eva", Active: true},
	)
	repo.Seed(
		contractx.Appointment{ID: "a1", TenantID: "t1", StaffID: "s1", Status: contractx.AppointmentPending},
		contractx.Appointment{ID: "a2", TenantID: "t1", StaffID: "s1", Status: contractx.AppointmentConfirmed},
		contractx.Appointment{ID: "a3", TenantID: "t1", StaffID: "s1", Status: contractx.AppointmentCompleted},
		contractx.Appointment{ID: "a4", TenantID: "t1", StaffID: "s3", Status: contractx.AppointmentPending},
	)

	got, err := repo.ListActiveStaff(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ListActiveStaff() error = %v", err)
	}
	want := []contractx.StaffLoad{{StaffID: "s1", Name: "Bruna", Load: 2}, {StaffID: "s3", Name: "Davi", Load: 1}}
	if len(got) != len(want) {
		t.Fatalf("ListActiveStaff() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListActiveStaff()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMemoryAssignStaffIsConditional(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemory()
	repo.AddStaff(
		Staff{ID: "s1", TenantID: "t1", Name: "Bruna", Active: true},
		Staff{ID: "s2", TenantID: "t1", Name: "Caio", Active: true},
	)
	repo.Seed(contractx.Appointment{ID: "a1", TenantID: "t1", Status: contractx.AppointmentPending})

	ok, err := repo.AssignStaff(ctx, "a1", "s1")
	if err != nil || !ok {
		t.Fatalf("AssignStaff() = %v, %v; want true, nil", ok, err)
	}
	ok, err = repo.AssignStaff(ctx, "a1", "s2")
	if err != nil || ok {
		t.Fatalf("second AssignStaff() = %v, %v; want false, nil", ok, err)
	}
	appts := repo.Appointments("t1")
	if appts[0].StaffID != "s1" || appts[0].StaffName != "Bruna" {
		t.Fatalf("appointment = %+v, want assigned to s1/Bruna", appts[0])
	}

	if _, err := repo.AssignStaff(ctx, "missing", "s1"); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("AssignStaff(missing) error = %v, want ErrNotFound", err)
	}
}
