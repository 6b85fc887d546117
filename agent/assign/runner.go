package assign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"golang.org/x/sync/errgroup"
)

// cronParser accepts 5-field cron expressions and descriptors such as @every 1m.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TenantLister supplies the tenants the runner balances on every tick.
type TenantLister interface {
	Tenants() []string
}

type RunnerConfig struct {
	Schedule    string        `split_words:"true" default:"*/5 * * * *"`
	RunTimeout  time.Duration `split_words:"true" default:"1m"`
	Concurrency int           `split_words:"true" default:"4"`
}

// Runner triggers AutoAssign for every tenant on a cron schedule, and on
// demand through Trigger.
type Runner struct {
	balancer *Balancer
	tenants  TenantLister
	cfg      RunnerConfig
	cron     *cron.Cron

	mu      sync.Mutex
	running map[string]bool
}

func NewRunner(balancer *Balancer, tenants TenantLister, cfg RunnerConfig) (*Runner, error) {
	if balancer == nil || tenants == nil {
		return nil, errors.New("balancer and tenant lister are required")
	}
	if _, err := cronParser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("%w: balancer schedule %q: %v", contractx.ErrConfiguration, cfg.Schedule, err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	r := &Runner{
		balancer: balancer,
		tenants:  tenants,
		cfg:      cfg,
		cron:     cron.New(cron.WithParser(cronParser)),
		running:  make(map[string]bool),
	}
	if _, err := r.cron.AddFunc(cfg.Schedule, func() { r.RunAll(context.Background()) }); err != nil {
		return nil, fmt.Errorf("%w: schedule balancer: %v", contractx.ErrConfiguration, err)
	}
	return r, nil
}

func (r *Runner) Start() {
	r.cron.Start()
	log.Info().Str("schedule", r.cfg.Schedule).Msg("assignment runner started")
}

// Stop halts the schedule and waits for a running tick to finish or ctx to end.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunAll balances every tenant, at most Concurrency at a time. Per-tenant
// failures are logged and do not stop the others.
func (r *Runner) RunAll(ctx context.Context) map[string]Result {
	tenants := r.tenants.Tenants()
	results := make(map[string]Result, len(tenants))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, tenantID := range tenants {
		g.Go(func() error {
			res, err := r.Trigger(gCtx, tenantID)
			if err != nil {
				return nil
			}
			mu.Lock()
			results[tenantID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Trigger runs one pass for tenantID unless one is already in flight for it.
func (r *Runner) Trigger(ctx context.Context, tenantID string) (Result, error) {
	tenantID = contractx.NormalizeTenantID(tenantID)
	if !r.begin(tenantID) {
		log.Debug().Str("tenant_id", tenantID).Msg("balancer pass already running, skipping")
		return Result{}, nil
	}
	defer r.end(tenantID)

	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	res, err := r.balancer.AutoAssign(ctx, tenantID)
	switch {
	case errors.Is(err, contractx.ErrNoStaffAvailable):
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("no staff available for assignment")
	case err != nil:
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("assignment pass failed")
	case res.Assigned > 0:
		log.Info().Str("tenant_id", tenantID).Int("assigned", res.Assigned).Int("total_unassigned", res.TotalUnassigned).Msg("assignment pass finished")
	}
	return res, err
}

func (r *Runner) begin(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[tenantID] {
		return false
	}
	r.running[tenantID] = true
	return true
}

func (r *Runner) end(tenantID string) {
	r.mu.Lock()
	delete(r.running, tenantID)
	r.mu.Unlock()
}
