package sales

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// RAW INPUT
// ============================================================================

// RawRecord is one untyped row from the sales feed, keyed by column label.
type RawRecord map[string]any

// ============================================================================
// DATES
// ============================================================================

// Date is a calendar date without a time-of-day or location. The zero value
// means the source date could not be parsed.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is empty.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Quarter returns 1-4 for a valid date and 0 for the zero date.
func (d Date) Quarter() int {
	if d.IsZero() {
		return 0
	}
	return (int(d.Month) + 2) / 3
}

// YearKey returns the four digit year prefix used by year filters.
func (d Date) YearKey() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d", d.Year)
}

// MonthKey returns the YYYY-MM bucket key.
func (d Date) MonthKey() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes YYYY-MM-DD; an empty input yields the zero date.
func (d *Date) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("sales: parse date %q: %w", s, err)
	}
	*d = DateOf(t)
	return nil
}

// ============================================================================
// TRANSACTIONS
// ============================================================================

// Transaction is the canonical form of one sales record.
type Transaction struct {
	Date        Date    `json:"date"`
	RawDate     string  `json:"raw_date"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	AgentName   string  `json:"agent_name"`
	BrandName   string  `json:"brand_name"`
	ProjectName string  `json:"project_name"`
	Industry    string  `json:"industry"`
	Status      string  `json:"status"`
	Country     string  `json:"country"`
}

// UnknownClient identifies records that carry neither brand nor project.
const UnknownClient = "Unknown"

// ClientIdentity returns the key used for occurrence counting, customer
// classification and client rollups.
func ClientIdentity(t Transaction) string {
	if t.BrandName != "" {
		return t.BrandName
	}
	if t.ProjectName != "" {
		return t.ProjectName
	}
	return UnknownClient
}

// Region separates home-market revenue from overseas revenue.
type Region string

const (
	RegionLocal    Region = "local"
	RegionOverseas Region = "overseas"
)

// Label returns the dashboard label for the region.
func (r Region) Label() string {
	if r == RegionLocal {
		return "台灣"
	}
	return "海外"
}

// CustomerStatus is the new/repeat lifecycle classification of a client.
type CustomerStatus string

const (
	CustomerNew    CustomerStatus = "new"
	CustomerRepeat CustomerStatus = "repeat"
)

// Label returns the dashboard label for the status.
func (s CustomerStatus) Label() string {
	switch s {
	case CustomerNew:
		return "新客戶"
	case CustomerRepeat:
		return "續約客戶"
	default:
		return ""
	}
}

// ParseCustomerStatus accepts the machine value or the dashboard label.
func ParseCustomerStatus(v string) (CustomerStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(CustomerNew), CustomerNew.Label():
		return CustomerNew, true
	case string(CustomerRepeat), CustomerRepeat.Label():
		return CustomerRepeat, true
	default:
		return "", false
	}
}

// EnrichedTransaction is a Transaction with the fields derived for the
// current rate and record set.
type EnrichedTransaction struct {
	Transaction
	Client           string         `json:"client"`
	FinalAmount      float64        `json:"final_amount"`
	IsForeign        bool           `json:"is_foreign"`
	Region           Region         `json:"region"`
	CustomerStatus   CustomerStatus `json:"customer_status"`
	DisplayAgentName string         `json:"display_agent_name"`
}
