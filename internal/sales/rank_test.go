package sales

import (
	"fmt"
	"testing"
)

func TestRankerSortsDescendingWithStableTies(t *testing.T) {
	agg := Aggregate{
		Agents: []AgentGroup{
			{Name: "first", Revenue: 10},
			{Name: "big", Revenue: 99},
			{Name: "second", Revenue: 10},
			{Name: "third", Revenue: 10},
		},
	}
	ranked := NewRanker(0).Rank(agg)
	want := []string{"big", "first", "second", "third"}
	for i, g := range ranked.Agents {
		if g.Name != want[i] {
			t.Fatalf("position %d: got %s want %s", i, g.Name, want[i])
		}
		if g.Rank != i+1 {
			t.Fatalf("expected rank %d got %d", i+1, g.Rank)
		}
	}
	if agg.Agents[0].Rank != 0 {
		t.Fatalf("ranker mutated its input")
	}
}

func TestRankerTruncatesClients(t *testing.T) {
	var agg Aggregate
	for i := 0; i < 75; i++ {
		agg.Clients = append(agg.Clients, ClientGroup{Name: fmt.Sprintf("c%02d", i), Revenue: float64(i)})
		agg.Industries = append(agg.Industries, IndustryGroup{Name: fmt.Sprintf("i%02d", i), Revenue: float64(i)})
	}
	ranked := NewRanker(DefaultClientLimit).Rank(agg)
	if len(ranked.Clients) != DefaultClientLimit {
		t.Fatalf("expected %d clients got %d", DefaultClientLimit, len(ranked.Clients))
	}
	if ranked.Clients[0].Name != "c74" {
		t.Fatalf("expected highest client first, got %s", ranked.Clients[0].Name)
	}
	if len(ranked.Industries) != 75 {
		t.Fatalf("expected industries untruncated, got %d", len(ranked.Industries))
	}
	for i := 1; i < len(ranked.Clients); i++ {
		if ranked.Clients[i-1].Revenue < ranked.Clients[i].Revenue {
			t.Fatalf("clients not sorted at %d", i)
		}
	}
}

func TestRankIsRelativeToView(t *testing.T) {
	records := []RawRecord{
		{"Date": "2024-01-02", "Amount": "100", "Agent": "Mia"},
		{"Date": "2024-01-03", "Amount": "500", "Agent": "Leo"},
		{"Date": "2023-01-03", "Amount": "900", "Agent": "Leo"},
	}
	opts := DefaultOptions()
	full := Run(records, opts)
	if full.Agents[0].Name != "Leo" || full.Agents[0].Rank != 1 {
		t.Fatalf("expected Leo first in full view, got %+v", full.Agents)
	}
	opts.Filter = Filter{Agent: "Mia"}
	view := Run(records, opts)
	if len(view.Agents) != 1 || view.Agents[0].Name != "Mia" || view.Agents[0].Rank != 1 {
		t.Fatalf("expected Mia ranked 1 in filtered view, got %+v", view.Agents)
	}
}
