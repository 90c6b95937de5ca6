package sales

import "sort"

// DefaultClientLimit caps the client ranking.
const DefaultClientLimit = 50

// Rankings are the ordered group lists of a view.
type Rankings struct {
	Agents     []AgentGroup    `json:"agents"`
	Industries []IndustryGroup `json:"industries"`
	Clients    []ClientGroup   `json:"clients"`
}

// Ranker orders rollups by revenue. Ranks are relative to the view being ranked.
type Ranker struct {
	clientLimit int
}

// NewRanker builds a Ranker truncating clients to clientLimit (DefaultClientLimit when <= 0).
func NewRanker(clientLimit int) *Ranker {
	if clientLimit <= 0 {
		clientLimit = DefaultClientLimit
	}
	return &Ranker{clientLimit: clientLimit}
}

// Rank sorts the groups of agg. Ties keep their first-encounter order.
func (r *Ranker) Rank(agg Aggregate) Rankings {
	agents := rankByRevenue(agg.Agents, func(g AgentGroup) float64 { return g.Revenue }, func(g *AgentGroup, rank int) { g.Rank = rank })
	industries := rankByRevenue(agg.Industries, func(g IndustryGroup) float64 { return g.Revenue }, func(g *IndustryGroup, rank int) { g.Rank = rank })
	clients := rankByRevenue(agg.Clients, func(g ClientGroup) float64 { return g.Revenue }, func(g *ClientGroup, rank int) { g.Rank = rank })
	if len(clients) > r.clientLimit {
		clients = clients[:r.clientLimit]
	}
	return Rankings{Agents: agents, Industries: industries, Clients: clients}
}

func rankByRevenue[T any](groups []T, revenue func(T) float64, setRank func(*T, int)) []T {
	out := make([]T, len(groups))
	copy(out, groups)
	sort.SliceStable(out, func(i, j int) bool {
		return revenue(out[i]) > revenue(out[j])
	})
	for i := range out {
		setRank(&out[i], i+1)
	}
	return out
}
