package sales

import (
	"errors"
	"testing"
	"time"
)

func enriched(date string, agent, industry string, status CustomerStatus) EnrichedTransaction {
	var d Date
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			panic(err)
		}
		d = DateOf(parsed)
	}
	return EnrichedTransaction{
		Transaction:      Transaction{Date: d, AgentName: agent, Industry: industry},
		DisplayAgentName: agent,
		CustomerStatus:   status,
	}
}

func TestFilterYearAndQuarter(t *testing.T) {
	txns := []EnrichedTransaction{
		enriched("2024-01-15", "Mia", "Retail", CustomerNew),
		enriched("2024-04-01", "Mia", "Retail", CustomerNew),
		enriched("2023-01-15", "Mia", "Retail", CustomerNew),
	}
	f, err := ParseFilter(FilterInput{Year: "2024", Quarter: "1"})
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	out := f.Apply(txns)
	if len(out) != 1 || out[0].Date.String() != "2024-01-15" {
		t.Fatalf("expected only 2024-01-15, got %+v", out)
	}
}

func TestFilterNoConstraintIsIdentity(t *testing.T) {
	txns := []EnrichedTransaction{
		enriched("2024-05-01", "B", "Food", CustomerRepeat),
		enriched("2023-02-01", "A", "Tech", CustomerNew),
		enriched("2024-01-01", "C", "", CustomerNew),
	}
	f, err := ParseFilter(FilterInput{Year: "All", Quarter: "all", Month: "", Status: "All", Agent: "All", Industry: "All"})
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if !f.IsZero() {
		t.Fatalf("expected zero filter, got %+v", f)
	}
	out := f.Apply(txns)
	if len(out) != len(txns) {
		t.Fatalf("expected identity, got %d of %d", len(out), len(txns))
	}
	for i := range txns {
		if out[i].DisplayAgentName != txns[i].DisplayAgentName {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestFilterDropsUndated(t *testing.T) {
	txns := []EnrichedTransaction{
		enriched("", "A", "Tech", CustomerNew),
		enriched("2024-01-01", "A", "Tech", CustomerNew),
	}
	if out := (Filter{}).Apply(txns); len(out) != 1 {
		t.Fatalf("expected undated transaction to be dropped, got %d", len(out))
	}
}

func TestFilterPredicatesAreANDed(t *testing.T) {
	txns := []EnrichedTransaction{
		enriched("2024-02-10", "Mia", "Retail", CustomerRepeat),
		enriched("2024-02-11", "Mia", "Tech", CustomerRepeat),
		enriched("2024-02-12", "Leo", "Retail", CustomerRepeat),
		enriched("2024-02-13", "Mia", "Retail", CustomerNew),
		enriched("2024-03-13", "Mia", "Retail", CustomerRepeat),
	}
	f := Filter{Year: "2024", Month: 2, Status: CustomerRepeat, Agent: "Mia", Industry: "Retail"}
	out := f.Apply(txns)
	if len(out) != 1 || out[0].Date.Day != 10 {
		t.Fatalf("expected one match, got %+v", out)
	}
}

func TestParseFilterRejectsOutOfRange(t *testing.T) {
	bad := []FilterInput{
		{Quarter: "5"},
		{Month: "0"},
		{Month: "13"},
		{Year: "24"},
		{Year: "20x4"},
		{Status: "vip"},
	}
	for _, in := range bad {
		if _, err := ParseFilter(in); !errors.Is(err, ErrInvalidFilter) {
			t.Fatalf("expected ErrInvalidFilter for %+v, got %v", in, err)
		}
	}
}

func TestParseFilterStatusLabels(t *testing.T) {
	f, err := ParseFilter(FilterInput{Status: "續約客戶"})
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if f.Status != CustomerRepeat {
		t.Fatalf("expected repeat status, got %q", f.Status)
	}
}
