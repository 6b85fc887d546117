package assign

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/repository"
)

type staticTenants []string

func (s staticTenants) Tenants() []string { return s }

func TestRunnerRunAll(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemory()
	repo.AddStaff(
		repository.Staff{ID: "s1", TenantID: "t1", Name: "Bruna", Active: true},
		repository.Staff{ID: "s9", TenantID: "t2", Name: "Eva", Active: true},
	)
	seedUnassigned(repo, "t1", 2)
	seedUnassigned(repo, "t2", 1)
	seedUnassigned(repo, "t3", 1) // no staff

	b, _ := New(repo)
	r, err := NewRunner(b, staticTenants{"t1", "t2", "t3"}, RunnerConfig{Schedule: "@every 1h", Concurrency: 2})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	got := r.RunAll(context.Background())
	if got["t1"].Assigned != 2 || got["t2"].Assigned != 1 {
		t.Fatalf("RunAll() = %+v, want t1:2 t2:1", got)
	}
	if _, ok := got["t3"]; ok {
		t.Fatalf("RunAll() reported t3 = %+v, want it omitted after failure", got["t3"])
	}
}

func TestRunnerTriggerReportsNoStaff(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemory()
	seedUnassigned(repo, "t1", 1)
	b, _ := New(repo)
	r, err := NewRunner(b, staticTenants{"t1"}, RunnerConfig{Schedule: "*/5 * * * *"})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	if _, err := r.Trigger(context.Background(), "t1"); !errors.Is(err, contractx.ErrNoStaffAvailable) {
		t.Fatalf("Trigger() error = %v, want ErrNoStaffAvailable", err)
	}
}

func TestNewRunnerRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	b, _ := New(repository.NewMemory())
	_, err := NewRunner(b, staticTenants{}, RunnerConfig{Schedule: "every tuesday"})
	if !errors.Is(err, contractx.ErrConfiguration) {
		t.Fatalf("NewRunner() error = %v, want ErrConfiguration", err)
	}
}

func TestRunnerStartStop(t *testing.T) {
	t.Parallel()

	b, _ := New(repository.NewMemory())
	r, err := NewRunner(b, staticTenants{"t1"}, RunnerConfig{Schedule: "@every 1h"})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.Start()
	r.Stop(context.Background())
}
