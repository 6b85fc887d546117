package assign

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"golang.org/x/sync/errgroup"
)

// Result reports one balancer pass. TotalUnassigned is the size of the
// snapshot taken at the start of the pass.
type Result struct {
	Assigned        int `json:"assigned"`
	TotalUnassigned int `json:"total_unassigned"`
}

// Balancer spreads unassigned appointments over active staff, least loaded first.
type Balancer struct {
	repo contractx.AssignmentRepository
}

func New(repo contractx.AssignmentRepository) (*Balancer, error) {
	if repo == nil {
		return nil, errors.New("assignment repository is required")
	}
	return &Balancer{repo: repo}, nil
}

// AutoAssign assigns every appointment in the tenant's unassigned snapshot,
// earliest first, to the staff member with the smallest load at that moment.
// Ties go to the staff member listed first. Appointments claimed by someone
// else mid-pass are skipped.
func (b *Balancer) AutoAssign(ctx context.Context, tenantID string) (Result, error) {
	tenantID = contractx.NormalizeTenantID(tenantID)
	if tenantID == "" {
		return Result{}, fmt.Errorf("%w: tenant id is required", contractx.ErrValidation)
	}

	var (
		pending []contractx.Appointment
		staff   []contractx.StaffLoad
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pending, err = b.repo.ListUnassigned(gCtx, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		staff, err = b.repo.ListActiveStaff(gCtx, tenantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, snapshotErr(err)
	}

	res := Result{TotalUnassigned: len(pending)}
	if len(pending) == 0 {
		return res, nil
	}
	if len(staff) == 0 {
		return res, fmt.Errorf("%w: tenant %s has %d unassigned appointments", contractx.ErrNoStaffAvailable, tenantID, len(pending))
	}

	load := make(map[string]int, len(staff))
	for _, s := range staff {
		load[s.StaffID] = s.Load
	}

	logger := log.With().Str("tenant_id", tenantID).Logger()
	for _, appt := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		pick := leastLoaded(staff, load)
		ok, err := b.repo.AssignStaff(ctx, appt.ID, pick.StaffID)
		if err != nil {
			return res, snapshotErr(err)
		}
		if !ok {
			logger.Debug().Str("appointment_id", appt.ID).Msg("appointment already assigned, skipping")
			continue
		}
		load[pick.StaffID]++
		res.Assigned++
		logger.Info().
			Str("appointment_id", appt.ID).
			Str("staff_id", pick.StaffID).
			Int("staff_load", load[pick.StaffID]).
			Msg("appointment assigned")
	}
	return res, nil
}

func leastLoaded(staff []contractx.StaffLoad, load map[string]int) contractx.StaffLoad {
	best := staff[0]
	for _, s := range staff[1:] {
		if load[s.StaffID] < load[best.StaffID] {
			best = s
		}
	}
	return best
}

func snapshotErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, contractx.ErrExternalService) {
		return err
	}
	return fmt.Errorf("%w: %v", contractx.ErrExternalService, err)
}
