package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	postgresx "github.com/tanpawarit/Chative-Concierge/pkg/postgres"
)

// newOfflinePostgres returns a repository whose queries can be rendered but
// never executed; no server is contacted.
func newOfflinePostgres(t *testing.T) *Postgres {
	t.Helper()

	db, err := postgresx.Open(postgresx.Config{DSN: "postgres://u:p@127.0.0.1:1/concierge?sslmode=disable"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db)
}

func assertContains(t *testing.T, query string, parts ...string) {
	t.Helper()
	for _, part := range parts {
		if !strings.Contains(query, part) {
			t.Fatalf("query %q does not contain %q", query, part)
		}
	}
}

func TestPostgresCountBookedQuery(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	got := repo.countBookedQuery("t1", "2026-10-20").String()
	assertContains(t, got,
		`FROM "appointments" AS "a"`,
		"a.tenant_id = 't1'",
		"a.slot_date = '2026-10-20'",
		"a.status IN ('pending', 'confirmed')",
		"count(*) AS n",
		"GROUP BY",
	)
}

func TestPostgresUnassignedQuery(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	var rows []appointmentModel
	got := repo.unassignedQuery("t1", &rows).String()
	assertContains(t, got,
		"a.staff_id IS NULL",
		"a.status IN ('pending', 'confirmed')",
		"ORDER BY a.scheduled_at ASC",
	)
}

func TestPostgresActiveStaffQuery(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	got := repo.activeStaffQuery("t1").String()
	assertContains(t, got,
		"count(a.id) AS open_count",
		"LEFT JOIN appointments AS a ON a.staff_id = s.id AND a.status IN ('pending', 'confirmed')",
		"s.tenant_id = 't1'",
		"s.active",
	)
}

func TestPostgresAssignQueryIsConditional(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	got := repo.assignQuery("appt-1", "staff-9").String()
	assertContains(t, got,
		`UPDATE "appointments"`,
		"staff_id = 'staff-9'",
		"a.id = 'appt-1'",
		"a.staff_id IS NULL",
	)
}

func TestPostgresUpsertCustomerQuery(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	c := &customerModel{ID: "c1", TenantID: "t1", Phone: "555", DisplayName: "Ana"}
	got := upsertCustomerQuery(repo.db.NewInsert(), c).String()
	assertContains(t, got,
		`INSERT INTO "customers"`,
		"ON CONFLICT (tenant_id, phone) DO UPDATE",
		"EXCLUDED.display_name",
		"RETURNING id",
	)
}

func TestPostgresUpsertStaffQuery(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	rows := repo.staffRows([]Staff{{ID: "s1", TenantID: " Loja-Centro ", Name: "Bia", Active: true}})
	if rows[0].TenantID != "loja-centro" {
		t.Fatalf("staff tenant = %q, want loja-centro", rows[0].TenantID)
	}

	got := upsertStaffQuery(repo.db.NewInsert(), &rows).String()
	assertContains(t, got,
		`INSERT INTO "staff"`,
		"ON CONFLICT (id) DO UPDATE",
		"tenant_id = EXCLUDED.tenant_id",
		"name = EXCLUDED.name",
		"active = EXCLUDED.active",
	)
	if strings.Contains(got, "created_at = EXCLUDED") {
		t.Fatalf("upsert overwrites created_at: %s", got)
	}
}

func TestPostgresNearestQueryUsesCosineDistance(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	var rows []memoryFactModel
	got := repo.nearestQuery("c1", []float32{1, 0}, 3, 0.4, &rows).String()
	assertContains(t, got,
		"m.embedding <=> '[1,0]' AS distance",
		"m.customer_id = 'c1'",
		"<= 0.4",
		"ORDER BY distance ASC",
		"LIMIT 3",
	)
}

func TestPostgresRecentQuery(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	var rows []memoryFactModel
	got := repo.recentQuery("c1", 5, &rows).String()
	assertContains(t, got,
		"m.customer_id = 'c1'",
		"ORDER BY m.created_at DESC",
		"LIMIT 5",
	)
}

func TestMemoryFactsDDL(t *testing.T) {
	t.Parallel()

	assertContains(t, memoryFactsDDL(768), "CREATE TABLE IF NOT EXISTS memory_facts", "embedding vector(768) NOT NULL")
}

func TestMigrateRejectsBadDimensions(t *testing.T) {
	t.Parallel()

	if err := Migrate(context.Background(), nil, 0); !errors.Is(err, contractx.ErrConfiguration) {
		t.Fatalf("Migrate(dims=0) error = %v, want ErrConfiguration", err)
	}
}

func TestPostgresCreateAppointmentValidatesBeforeQuery(t *testing.T) {
	t.Parallel()

	repo := newOfflinePostgres(t)
	_, err := repo.CreateAppointment(context.Background(), contractx.BookingRequest{TenantID: "t1"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("CreateAppointment() error = %v, want ErrValidation", err)
	}
}

func TestSlotLockKey(t *testing.T) {
	t.Parallel()

	if got := slotLockKey("t1", "2026-10-20", "14:00"); got != "slot:t1:2026-10-20:14:00" {
		t.Fatalf("slotLockKey() = %q", got)
	}
}
