package schedule

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	configx "github.com/tanpawarit/Chative-Concierge/pkg/config"
)

// HoursProvider resolves a tenant's business-hours configuration.
type HoursProvider interface {
	BusinessHours(ctx context.Context, tenantID string) (*Hours, error)
}

// DayConfig describes one weekday, either as explicit labels or as an
// open/close range stepped by StepMinutes.
type DayConfig struct {
	Labels      []string `mapstructure:"labels"`
	Open        string   `mapstructure:"open"`
	Close       string   `mapstructure:"close"`
	StepMinutes int      `mapstructure:"step_minutes"`
	Capacity    int      `mapstructure:"capacity"`
}

// TenantConfig is the file representation of one tenant's hours.
type TenantConfig struct {
	Timezone string               `mapstructure:"timezone"`
	Days     map[string]DayConfig `mapstructure:"days"`
}

type dayHours struct {
	labels   []string
	minutes  []int
	capacity int
}

// Hours is a validated, resolved business-hours table for one tenant.
type Hours struct {
	Location *time.Location
	days     [7]*dayHours
}

// Day returns the ordered labels and per-slot capacity for a weekday; ok is
// false when the business is closed that day.
func (h *Hours) Day(wd time.Weekday) (labels []string, capacity int, ok bool) {
	if h == nil {
		return nil, 0, false
	}
	d := h.days[wd]
	if d == nil || len(d.labels) == 0 {
		return nil, 0, false
	}
	return append([]string(nil), d.labels...), d.capacity, true
}

func (h *Hours) minuteOf(wd time.Weekday, label string) (int, bool) {
	d := h.days[wd]
	if d == nil {
		return 0, false
	}
	for i, l := range d.labels {
		if l == label {
			return d.minutes[i], true
		}
	}
	return 0, false
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NewHours validates cfg and expands ranges into labels.
func NewHours(cfg TenantConfig) (*Hours, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", contractx.ErrConfiguration, tz, err)
		}
		loc = l
	}

	h := &Hours{Location: loc}
	for name, dc := range cfg.Days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", contractx.ErrConfiguration, name)
		}
		d, err := resolveDay(dc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		h.days[wd] = d
	}
	return h, nil
}

func resolveDay(dc DayConfig) (*dayHours, error) {
	if dc.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be >= 1", contractx.ErrConfiguration)
	}

	var minutes []int
	if len(dc.Labels) > 0 {
		for _, l := range dc.Labels {
			m, err := parseClock(l)
			if err != nil {
				return nil, err
			}
			minutes = append(minutes, m)
		}
	} else {
		open, err := parseClock(dc.Open)
		if err != nil {
			return nil, err
		}
		closing, err := parseClock(dc.Close)
		if err != nil {
			return nil, err
		}
		step := dc.StepMinutes
		if step <= 0 {
			step = 60
		}
		if closing <= open {
			return nil, fmt.Errorf("%w: close %q must be after open %q", contractx.ErrConfiguration, dc.Close, dc.Open)
		}
		for m := open; m+step <= closing; m += step {
			minutes = append(minutes, m)
		}
	}

	sort.Ints(minutes)
	d := &dayHours{capacity: dc.Capacity}
	for i, m := range minutes {
		if i > 0 && minutes[i-1] == m {
			continue
		}
		d.minutes = append(d.minutes, m)
		d.labels = append(d.labels, formatClock(m))
	}
	return d, nil
}

func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: invalid time %q, want HH:MM", contractx.ErrConfiguration, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour in %q", contractx.ErrConfiguration, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute in %q", contractx.ErrConfiguration, s)
	}
	return h*60 + m, nil
}

func formatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

var _ HoursProvider = (*StaticHours)(nil)

// StaticHours serves business hours from an in-memory table.
type StaticHours struct {
	mu      sync.RWMutex
	tenants map[string]*Hours
}

func NewStaticHours() *StaticHours {
	return &StaticHours{tenants: make(map[string]*Hours)}
}

func (s *StaticHours) Set(tenantID string, h *Hours) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[normalizeTenant(tenantID)] = h
}

func (s *StaticHours) BusinessHours(ctx context.Context, tenantID string) (*Hours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.tenants[normalizeTenant(tenantID)]
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: no business hours for tenant %q", contractx.ErrConfiguration, tenantID)
	}
	return h, nil
}

// Tenants lists configured tenant ids in sorted order.
func (s *StaticHours) Tenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadHoursFile reads a YAML/JSON/TOML file with a top-level "tenants" map.
// Tenant ids are matched case-insensitively.
func LoadHoursFile(path string) (*StaticHours, error) {
	var raw map[string]TenantConfig
	if err := configx.ReadSection(path, "tenants", &raw); err != nil {
		return nil, fmt.Errorf("%w: hours file: %v", contractx.ErrConfiguration, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: hours file %s has no tenants", contractx.ErrConfiguration, path)
	}

	out := NewStaticHours()
	for tenantID, cfg := range raw {
		h, err := NewHours(cfg)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, err)
		}
		out.Set(tenantID, h)
	}
	return out, nil
}

func normalizeTenant(id string) string {
	return contractx.NormalizeTenantID(id)
}
