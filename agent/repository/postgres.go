package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

var (
	_ contractx.BookingRepository    = (*Postgres)(nil)
	_ contractx.AssignmentRepository = (*Postgres)(nil)
	_ contractx.VectorIndex          = (*Postgres)(nil)
)

var openStatuses = []string{
	string(contractx.AppointmentPending),
	string(contractx.AppointmentConfirmed),
}

// Postgres implements the booking, assignment and memory repositories on bun.
type Postgres struct {
	db    *bun.DB
	now   func() time.Time
	newID func() string
}

func NewPostgres(db *bun.DB) *Postgres {
	return &Postgres{db: db, now: time.Now, newID: uuid.NewString}
}

// Migrate creates the schema if missing. dims is the embedding dimension.
func Migrate(ctx context.Context, db *bun.DB, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be > 0", contractx.ErrConfiguration)
	}
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	for _, model := range []any{
		(*customerModel)(nil),
		(*staffModel)(nil),
		(*appointmentModel)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	if _, err := db.ExecContext(ctx, memoryFactsDDL(dims)); err != nil {
		return fmt.Errorf("create memory_facts: %w", err)
	}
	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*appointmentModel)(nil), "appointments_slot_idx", []string{"tenant_id", "slot_date", "slot_label"}},
		{(*appointmentModel)(nil), "appointments_staff_idx", []string{"staff_id"}},
		{(*memoryFactModel)(nil), "memory_facts_customer_idx", []string{"customer_id", "created_at"}},
	}
	for _, ix := range indexes {
		if _, err := db.NewCreateIndex().Model(ix.model).Index(ix.name).IfNotExists().Column(ix.columns...).Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}

func memoryFactsDDL(dims int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_facts (
	id varchar PRIMARY KEY,
	customer_id varchar NOT NULL,
	text varchar NOT NULL,
	source varchar NOT NULL,
	confidence double precision NOT NULL,
	embedding vector(%d) NOT NULL,
	created_at timestamptz NOT NULL DEFAULT current_timestamp
)`, dims)
}

// AddStaff upserts staff members by id, so the roster can be re-applied on
// every boot. An existing row keeps its created_at and with it its place in
// the balancer's tie-break order.
func (r *Postgres) AddStaff(ctx context.Context, staff ...Staff) error {
	if len(staff) == 0 {
		return nil
	}
	rows := r.staffRows(staff)
	if _, err := upsertStaffQuery(r.db.NewInsert(), &rows).Exec(ctx); err != nil {
		return externalErr("upsert staff", err)
	}
	return nil
}

func (r *Postgres) staffRows(staff []Staff) []staffModel {
	now := r.now().UTC()
	rows := make([]staffModel, 0, len(staff))
	for _, s := range staff {
		id := s.ID
		if id == "" {
			id = r.newID()
		}
		rows = append(rows, staffModel{
			ID:        id,
			TenantID:  contractx.NormalizeTenantID(s.TenantID),
			Name:      s.Name,
			Active:    s.Active,
			CreatedAt: now,
		})
	}
	return rows
}

func upsertStaffQuery(q *bun.InsertQuery, rows *[]staffModel) *bun.InsertQuery {
	return q.Model(rows).
		On("CONFLICT (id) DO UPDATE").
		Set("tenant_id = EXCLUDED.tenant_id").
		Set("name = EXCLUDED.name").
		Set("active = EXCLUDED.active")
}

type slotCount struct {
	SlotLabel string `bun:"slot_label"`
	N         int    `bun:"n"`
}

func (r *Postgres) countBookedQuery(tenantID, date string) *bun.SelectQuery {
	return r.db.NewSelect().
		Model((*appointmentModel)(nil)).
		ColumnExpr("a.slot_label").
		ColumnExpr("count(*) AS n").
		Where("a.tenant_id = ?", tenantID).
		Where("a.slot_date = ?", date).
		Where("a.status IN (?)", bun.In(openStatuses)).
		Group("a.slot_label")
}

func (r *Postgres) CountBooked(ctx context.Context, tenantID string, date string) (map[string]int, error) {
	var rows []slotCount
	if err := r.countBookedQuery(contractx.NormalizeTenantID(tenantID), date).Scan(ctx, &rows); err != nil {
		return nil, externalErr("count booked", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.SlotLabel] = row.N
	}
	return counts, nil
}

// CreateAppointment serializes commits per (tenant, date, label) with a
// transaction-scoped advisory lock, then re-checks capacity before inserting.
func (r *Postgres) CreateAppointment(ctx context.Context, req contractx.BookingRequest) (contractx.Appointment, error) {
	req = normalizeBookingRequest(req)
	if err := validateBookingRequest(req); err != nil {
		return contractx.Appointment{}, err
	}

	now := r.now().UTC()
	appt := appointmentModel{
		ID:              r.newID(),
		TenantID:        req.TenantID,
		ScheduledAt:     req.Slot.Start.UTC(),
		SlotDate:        req.Slot.Date,
		SlotLabel:       req.Slot.Label,
		Status:          string(contractx.AppointmentPending),
		ProductInterest: req.ProductInterest,
		Notes:           req.Notes,
		CreatedAt:       now,
	}

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		lockKey := slotLockKey(req.TenantID, req.Slot.Date, req.Slot.Label)
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", lockKey); err != nil {
			return externalErr("lock slot", err)
		}

		booked, err := tx.NewSelect().
			Model((*appointmentModel)(nil)).
			Where("a.tenant_id = ?", req.TenantID).
			Where("a.slot_date = ?", req.Slot.Date).
			Where("a.slot_label = ?", req.Slot.Label).
			Where("a.status IN (?)", bun.In(openStatuses)).
			Count(ctx)
		if err != nil {
			return externalErr("count slot", err)
		}
		if booked >= req.Capacity {
			return fmt.Errorf("%w: %s %s has %d/%d booked",
				contractx.ErrCapacityConflict, req.Slot.Date, req.Slot.Label, booked, req.Capacity)
		}

		customer := &customerModel{
			ID:          r.newID(),
			TenantID:    req.TenantID,
			Phone:       req.Phone,
			DisplayName: req.DisplayName,
			CreatedAt:   now,
		}
		if _, err := upsertCustomerQuery(tx.NewInsert(), customer).Exec(ctx); err != nil {
			return externalErr("upsert customer", err)
		}

		appt.CustomerID = customer.ID
		if _, err := tx.NewInsert().Model(&appt).Exec(ctx); err != nil {
			return externalErr("insert appointment", err)
		}
		return nil
	})
	if err != nil {
		return contractx.Appointment{}, err
	}
	return appt.toContract(), nil
}

// upsertCustomerQuery keeps the first id for a (tenant, phone) and refreshes
// a non-empty display name. RETURNING id scans the surviving id into c.
func upsertCustomerQuery(q *bun.InsertQuery, c *customerModel) *bun.InsertQuery {
	return q.Model(c).
		On("CONFLICT (tenant_id, phone) DO UPDATE").
		Set("display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), c.display_name)").
		Returning("id")
}

func slotLockKey(tenantID, date, label string) string {
	return "slot:" + tenantID + ":" + date + ":" + label
}

func (r *Postgres) unassignedQuery(tenantID string, dst *[]appointmentModel) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(dst).
		Where("a.tenant_id = ?", tenantID).
		Where("a.staff_id IS NULL").
		Where("a.status IN (?)", bun.In(openStatuses)).
		OrderExpr("a.scheduled_at ASC, a.created_at ASC, a.id ASC")
}

func (r *Postgres) ListUnassigned(ctx context.Context, tenantID string) ([]contractx.Appointment, error) {
	var rows []appointmentModel
	if err := r.unassignedQuery(contractx.NormalizeTenantID(tenantID), &rows).Scan(ctx); err != nil {
		return nil, externalErr("list unassigned", err)
	}
	out := make([]contractx.Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toContract())
	}
	return out, nil
}

type staffLoadRow struct {
	ID        string `bun:"id"`
	Name      string `bun:"name"`
	OpenCount int    `bun:"open_count"`
}

func (r *Postgres) activeStaffQuery(tenantID string) *bun.SelectQuery {
	return r.db.NewSelect().
		Model((*staffModel)(nil)).
		ColumnExpr("s.id, s.name").
		ColumnExpr("count(a.id) AS open_count").
		Join("LEFT JOIN appointments AS a ON a.staff_id = s.id AND a.status IN (?)", bun.In(openStatuses)).
		Where("s.tenant_id = ?", tenantID).
		Where("s.active").
		Group("s.id", "s.name").
		OrderExpr("s.created_at ASC, s.id ASC")
}

func (r *Postgres) ListActiveStaff(ctx context.Context, tenantID string) ([]contractx.StaffLoad, error) {
	var rows []staffLoadRow
	if err := r.activeStaffQuery(contractx.NormalizeTenantID(tenantID)).Scan(ctx, &rows); err != nil {
		return nil, externalErr("list active staff", err)
	}
	out := make([]contractx.StaffLoad, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.StaffLoad{StaffID: row.ID, Name: row.Name, Load: row.OpenCount})
	}
	return out, nil
}

func (r *Postgres) assignQuery(appointmentID, staffID string) *bun.UpdateQuery {
	return r.db.NewUpdate().
		Model((*appointmentModel)(nil)).
		Set("staff_id = ?", staffID).
		Where("a.id = ?", appointmentID).
		Where("a.staff_id IS NULL")
}

func (r *Postgres) AssignStaff(ctx context.Context, appointmentID string, staffID string) (bool, error) {
	res, err := r.assignQuery(appointmentID, staffID).Exec(ctx)
	if err != nil {
		return false, externalErr("assign staff", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, externalErr("assign staff rows", err)
	}
	return n == 1, nil
}

func (r *Postgres) Insert(ctx context.Context, fact contractx.MemoryFact) error {
	row := &memoryFactModel{
		ID:         fact.ID,
		CustomerID: fact.CustomerID,
		Text:       fact.Text,
		Source:     string(fact.Source),
		Confidence: fact.Confidence,
		Embedding:  pgvector.NewVector(fact.Embedding),
		CreatedAt:  fact.CreatedAt.UTC(),
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return externalErr("insert memory fact", err)
	}
	return nil
}

func (r *Postgres) nearestQuery(customerID string, query []float32, k int, maxDistance float64, dst *[]memoryFactModel) *bun.SelectQuery {
	vec := pgvector.NewVector(query)
	return r.db.NewSelect().
		Model(dst).
		ColumnExpr("m.*").
		ColumnExpr("m.embedding <=> ? AS distance", vec).
		Where("m.customer_id = ?", customerID).
		Where("m.embedding <=> ? <= ?", vec, maxDistance).
		OrderExpr("distance ASC, m.created_at DESC").
		Limit(k)
}

func (r *Postgres) Nearest(ctx context.Context, customerID string, query []float32, k int, maxDistance float64) ([]contractx.Neighbor, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	var rows []memoryFactModel
	if err := r.nearestQuery(customerID, query, k, maxDistance, &rows).Scan(ctx); err != nil {
		return nil, externalErr("nearest memory facts", err)
	}
	out := make([]contractx.Neighbor, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.Neighbor{MemoryFact: row.toContract(), Distance: row.Distance})
	}
	return out, nil
}

func (r *Postgres) recentQuery(customerID string, limit int, dst *[]memoryFactModel) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(dst).
		Where("m.customer_id = ?", customerID).
		OrderExpr("m.created_at DESC, m.id DESC").
		Limit(limit)
}

func (r *Postgres) Recent(ctx context.Context, customerID string, limit int) ([]contractx.MemoryFact, error) {
	var rows []memoryFactModel
	if err := r.recentQuery(customerID, limit, &rows).Scan(ctx); err != nil {
		return nil, externalErr("recent memory facts", err)
	}
	out := make([]contractx.MemoryFact, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toContract())
	}
	return out, nil
}

func externalErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", contractx.ErrExternalService, op, strings.TrimSpace(err.Error()))
}
