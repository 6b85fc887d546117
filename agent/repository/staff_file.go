package repository

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	configx "github.com/tanpawarit/Chative-Concierge/pkg/config"
)

type staffEntry struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Inactive bool   `mapstructure:"inactive"`
}

// LoadStaffFile reads the "staff" section of the tenant file: a map of
// tenant id to team members. Tenant ids are lowercased like business hours.
func LoadStaffFile(path string) ([]Staff, error) {
	var raw map[string][]staffEntry
	if err := configx.ReadSection(path, "staff", &raw); err != nil {
		return nil, fmt.Errorf("%w: staff file: %v", contractx.ErrConfiguration, err)
	}

	var out []Staff
	for tenantID, entries := range raw {
		tenantID = contractx.NormalizeTenantID(tenantID)
		for _, e := range entries {
			if strings.TrimSpace(e.ID) == "" {
				return nil, fmt.Errorf("%w: tenant %s has a staff entry without id", contractx.ErrConfiguration, tenantID)
			}
			out = append(out, Staff{
				ID:       strings.TrimSpace(e.ID),
				TenantID: tenantID,
				Name:     strings.TrimSpace(e.Name),
				Active:   !e.Inactive,
			})
		}
	}
	return out, nil
}
