package sales

import "strings"

// VIPPolicy reassigns the displayed agent of clients handled as a dedicated
// account. The zero value matches nothing.
type VIPPolicy struct {
	Pattern string
	Label   string
}

// DefaultVIP returns the dedicated-account rule used by the sales dashboard.
func DefaultVIP() VIPPolicy {
	return VIPPolicy{Pattern: "iherb", Label: "Iherb (獨立客戶)"}
}

// Matches reports whether client contains the pattern, ignoring case.
func (p VIPPolicy) Matches(client string) bool {
	pattern := strings.ToLower(strings.TrimSpace(p.Pattern))
	if pattern == "" || client == "" {
		return false
	}
	return strings.Contains(strings.ToLower(client), pattern)
}

// DisplayAgent returns the agent name shown for a client's transaction.
func (p VIPPolicy) DisplayAgent(client, agent string) string {
	if p.Matches(client) {
		return p.Label
	}
	return agent
}
