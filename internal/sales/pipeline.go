package sales

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/salesroom/salesroom/internal/sales/customers"
	"github.com/salesroom/salesroom/internal/sales/fx"
)

// DefaultMonthWindow is the number of months kept in the time series.
const DefaultMonthWindow = 6

// Options parameterise one pipeline run.
type Options struct {
	// Rate is the reporting-currency price of one foreign unit; unusable
	// values fall back to fx.FallbackRate.
	Rate        float64
	Filter      Filter
	Permissions Permissions
	Mask        MaskPolicy
	// VIP reassigns the displayed agent of matching clients. The zero value
	// disables the override.
	VIP         VIPPolicy
	Currency    fx.Policy
	Aliases     []AliasRule
	Location    *time.Location
	ClientLimit int
	MonthWindow int
}

// DefaultOptions returns the dashboard defaults at the fallback rate.
func DefaultOptions() Options {
	return Options{
		Rate:        fx.FallbackRate,
		Mask:        DefaultMaskPolicy(),
		VIP:         DefaultVIP(),
		Currency:    fx.DefaultPolicy(),
		ClientLimit: DefaultClientLimit,
		MonthWindow: DefaultMonthWindow,
	}
}

// Stats describes the input of a run.
type Stats struct {
	Records  int `json:"records"`
	Undated  int `json:"undated"`
	Foreign  int `json:"foreign"`
	Filtered int `json:"filtered"`
}

// Report is the renderable output of the pipeline.
type Report struct {
	Empty        bool                  `json:"empty"`
	Rate         float64               `json:"rate"`
	Filter       Filter                `json:"filter"`
	Summary      Summary               `json:"summary"`
	Transactions []EnrichedTransaction `json:"transactions"`
	Agents       []AgentGroup          `json:"agents"`
	Industries   []IndustryGroup       `json:"industries"`
	Clients      []ClientGroup         `json:"clients"`
	Monthly      []MonthBucket         `json:"monthly"`
	Region       RegionSplit           `json:"region"`
	Customers    CustomerSplit         `json:"customers"`
	Stats        Stats                 `json:"stats"`
}

// Run executes the whole pipeline over records.
func Run(records []RawRecord, opts Options) Report {
	return Summarize(Prepare(records, opts), opts)
}

// Prepare normalizes, masks and enriches records. The result does not depend
// on the filter and can be summarised under several filters.
func Prepare(records []RawRecord, opts Options) []EnrichedTransaction {
	normalizer := NewNormalizer(WithAliases(opts.Aliases), WithLocation(opts.Location))
	txns := maskPolicy(opts).ApplyAll(opts.Permissions, normalizer.NormalizeAll(records))
	return Enrich(txns, fx.NewConverter(opts.Currency, opts.Rate), opts.VIP)
}

// Enrich derives converted amounts, regions, customer status and display
// agents. Customer status is computed over the full txns slice.
func Enrich(txns []Transaction, converter *fx.Converter, vip VIPPolicy) []EnrichedTransaction {
	keys := make([]string, len(txns))
	for i, t := range txns {
		keys[i] = ClientIdentity(t)
	}
	classifier := customers.NewClassifier(keys)
	policy := converter.Policy()

	out := make([]EnrichedTransaction, len(txns))
	for i, t := range txns {
		conv := converter.Convert(t.Currency, t.Amount)
		e := EnrichedTransaction{
			Transaction:      t,
			Client:           keys[i],
			FinalAmount:      conv.Amount,
			IsForeign:        conv.IsForeign,
			Region:           RegionOverseas,
			CustomerStatus:   CustomerNew,
			DisplayAgentName: vip.DisplayAgent(keys[i], t.AgentName),
		}
		if policy.IsLocalMarket(t.Country, t.Currency) {
			e.Region = RegionLocal
		}
		if classifier.IsRepeat(keys[i]) {
			e.CustomerStatus = CustomerRepeat
		}
		out[i] = e
	}
	return out
}

// Summarize filters, aggregates and ranks an enriched set.
func Summarize(enriched []EnrichedTransaction, opts Options) Report {
	filtered := opts.Filter.Apply(enriched)
	agg := NewAggregator(opts.VIP).Aggregate(filtered)
	ranked := NewRanker(opts.ClientLimit).Rank(agg)

	window := opts.MonthWindow
	if window <= 0 {
		window = DefaultMonthWindow
	}

	stats := Stats{Records: len(enriched), Filtered: len(filtered)}
	for _, e := range enriched {
		if e.Date.IsZero() {
			stats.Undated++
		}
		if e.IsForeign {
			stats.Foreign++
		}
	}

	return Report{
		Empty:        len(enriched) == 0,
		Rate:         fx.EffectiveRate(opts.Rate),
		Filter:       opts.Filter,
		Summary:      agg.Summary,
		Transactions: filtered,
		Agents:       nonNil(ranked.Agents),
		Industries:   nonNil(ranked.Industries),
		Clients:      nonNil(ranked.Clients),
		Monthly:      nonNil(RecentMonths(agg.Months, window)),
		Region:       agg.Region,
		Customers:    agg.Customers,
		Stats:        stats,
	}
}

func maskPolicy(opts Options) MaskPolicy {
	if len(opts.Mask.Maskable) == 0 {
		return DefaultMaskPolicy()
	}
	return opts.Mask
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// FilterOptions lists the values a dashboard can offer in its filter controls.
type FilterOptions struct {
	Years      []string         `json:"years"`
	Agents     []string         `json:"agents"`
	Industries []string         `json:"industries"`
	Statuses   []CustomerStatus `json:"statuses"`
}

// AvailableOptions collects filter values from the unfiltered enriched set.
// Years are newest first; other lists are sorted ascending.
func AvailableOptions(enriched []EnrichedTransaction) FilterOptions {
	years := map[string]struct{}{}
	agents := map[string]struct{}{}
	industries := map[string]struct{}{}
	statuses := map[CustomerStatus]struct{}{}
	for _, e := range enriched {
		if y := e.Date.YearKey(); y != "" {
			years[y] = struct{}{}
		}
		if e.DisplayAgentName != "" {
			agents[e.DisplayAgentName] = struct{}{}
		}
		if e.Industry != "" {
			industries[e.Industry] = struct{}{}
		}
		statuses[e.CustomerStatus] = struct{}{}
	}
	opts := FilterOptions{
		Years:      sortedKeys(years),
		Agents:     sortedKeys(agents),
		Industries: sortedKeys(industries),
		Statuses:   []CustomerStatus{},
	}
	sort.Sort(sort.Reverse(sort.StringSlice(opts.Years)))
	for _, s := range []CustomerStatus{CustomerNew, CustomerRepeat} {
		if _, ok := statuses[s]; ok {
			opts.Statuses = append(opts.Statuses, s)
		}
	}
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dimension selects the rollup a drill-down expands.
type Dimension string

const (
	DimensionAgent    Dimension = "agent"
	DimensionIndustry Dimension = "industry"
	DimensionClient   Dimension = "client"
	DimensionStatus   Dimension = "status"
	DimensionAll      Dimension = "all"
)

// ErrUnknownDimension is returned for an unsupported drill-down dimension.
var ErrUnknownDimension = errors.New("sales: unknown dimension")

// Detail lists the transactions behind one rollup group.
type Detail struct {
	Dimension    Dimension             `json:"dimension"`
	Key          string                `json:"key"`
	Transactions []EnrichedTransaction `json:"transactions"`
	Revenue      float64               `json:"revenue"`
	Count        int                   `json:"count"`
}

// Drilldown selects the transactions of one group, newest first. Group keys
// use the same fallbacks as the rollups.
func Drilldown(txns []EnrichedTransaction, dim Dimension, key string) (Detail, error) {
	var match func(EnrichedTransaction) bool
	switch dim {
	case DimensionAgent:
		match = func(t EnrichedTransaction) bool { return orDefault(t.DisplayAgentName, UnknownClient) == key }
	case DimensionIndustry:
		match = func(t EnrichedTransaction) bool { return orDefault(t.Industry, UncategorizedIndustry) == key }
	case DimensionClient:
		match = func(t EnrichedTransaction) bool { return t.Client == key }
	case DimensionStatus:
		status, ok := ParseCustomerStatus(key)
		if !ok {
			return Detail{}, fmt.Errorf("%w: status %q", ErrInvalidFilter, key)
		}
		match = func(t EnrichedTransaction) bool { return t.CustomerStatus == status }
	case DimensionAll:
		match = func(EnrichedTransaction) bool { return true }
	default:
		return Detail{}, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	detail := Detail{Dimension: dim, Key: key, Transactions: []EnrichedTransaction{}}
	for _, t := range txns {
		if match(t) {
			detail.Transactions = append(detail.Transactions, t)
		}
	}
	sort.SliceStable(detail.Transactions, func(i, j int) bool {
		return detail.Transactions[j].Date.Before(detail.Transactions[i].Date)
	})
	detail.Revenue = NewAggregator(VIPPolicy{}).Aggregate(detail.Transactions).Summary.Revenue
	detail.Count = len(detail.Transactions)
	return detail, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
