package fx

import "strings"

var (
	localCountryTokens    = []string{"taiwan", "台灣", "tw"}
	overseasCountryTokens = []string{"overseas", "海外", "foreign"}
)

// IsLocalMarket classifies a sale as home-market from its country label,
// falling back to the currency when the country is inconclusive. A sale with
// neither country nor currency is local, matching the local default for a
// missing currency.
func (p Policy) IsLocalMarket(country, currency string) bool {
	c := strings.ToLower(strings.TrimSpace(country))
	for _, token := range localCountryTokens {
		if strings.Contains(c, token) {
			return true
		}
	}
	for _, token := range overseasCountryTokens {
		if strings.Contains(c, token) {
			return false
		}
	}
	return p.IsLocal(currency)
}
