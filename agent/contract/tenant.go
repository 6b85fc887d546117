package contract

import "strings"

// NormalizeTenantID is the canonical form of a tenant id: trimmed and
// lowercased. Every lookup and every stored row uses this form.
func NormalizeTenantID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
