package sales

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NoConstraint is the sentinel a caller sends to disable a filter field.
const NoConstraint = "All"

// ErrInvalidFilter reports a filter value outside its domain.
var ErrInvalidFilter = errors.New("sales: invalid filter")

// Filter holds independent, optional predicates. The zero value of a field
// places no constraint on it.
type Filter struct {
	Year     string         `json:"year,omitempty"`
	Quarter  int            `json:"quarter,omitempty"`
	Month    int            `json:"month,omitempty"`
	Status   CustomerStatus `json:"status,omitempty"`
	Agent    string         `json:"agent,omitempty"`
	Industry string         `json:"industry,omitempty"`
}

// FilterInput is the string form of a Filter as sent by a dashboard.
type FilterInput struct {
	Year     string
	Quarter  string
	Month    string
	Status   string
	Agent    string
	Industry string
}

// ParseFilter converts string input, treating "" and "All" as no constraint.
func ParseFilter(in FilterInput) (Filter, error) {
	var f Filter
	if v, ok := constraint(in.Year); ok {
		if len(v) != 4 {
			return Filter{}, fmt.Errorf("%w: year %q", ErrInvalidFilter, v)
		}
		if _, err := strconv.Atoi(v); err != nil {
			return Filter{}, fmt.Errorf("%w: year %q", ErrInvalidFilter, v)
		}
		f.Year = v
	}
	if v, ok := constraint(in.Quarter); ok {
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 || q > 4 {
			return Filter{}, fmt.Errorf("%w: quarter %q", ErrInvalidFilter, v)
		}
		f.Quarter = q
	}
	if v, ok := constraint(in.Month); ok {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return Filter{}, fmt.Errorf("%w: month %q", ErrInvalidFilter, v)
		}
		f.Month = m
	}
	if v, ok := constraint(in.Status); ok {
		status, known := ParseCustomerStatus(v)
		if !known {
			return Filter{}, fmt.Errorf("%w: status %q", ErrInvalidFilter, v)
		}
		f.Status = status
	}
	if v, ok := constraint(in.Agent); ok {
		f.Agent = v
	}
	if v, ok := constraint(in.Industry); ok {
		f.Industry = v
	}
	return f, nil
}

func constraint(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, NoConstraint) {
		return "", false
	}
	return v, true
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Matches reports whether t passes every active predicate. Undated
// transactions never match.
func (f Filter) Matches(t EnrichedTransaction) bool {
	if t.Date.IsZero() {
		return false
	}
	if f.Year != "" && t.Date.YearKey() != f.Year {
		return false
	}
	if f.Quarter != 0 && t.Date.Quarter() != f.Quarter {
		return false
	}
	if f.Month != 0 && int(t.Date.Month) != f.Month {
		return false
	}
	if f.Status != "" && t.CustomerStatus != f.Status {
		return false
	}
	if f.Agent != "" && t.DisplayAgentName != f.Agent {
		return false
	}
	if f.Industry != "" && t.Industry != f.Industry {
		return false
	}
	return true
}

// Apply returns the matching transactions in their original order.
func (f Filter) Apply(txns []EnrichedTransaction) []EnrichedTransaction {
	out := make([]EnrichedTransaction, 0, len(txns))
	for _, t := range txns {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}
