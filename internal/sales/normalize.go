package sales

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/width"

	"github.com/salesroom/salesroom/internal/sales/fx"
)

var (
	markupPattern = regexp.MustCompile(`<[^>]*>?`)
	numberPrefix  = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
	lineBreaks    = strings.NewReplacer(`\n`, " ", "\r\n", " ", "\n", " ", "\r", " ")
)

// dateLayouts are tried in order. Layouts carrying an offset are converted into
// the normalizer location before the calendar date is taken.
var dateLayouts = []struct {
	layout string
	zoned  bool
}{
	{"2006-01-02", false},
	{"2006/01/02", false},
	{"2006-1-2", false},
	{"2006/1/2", false},
	{"2006-01-02 15:04:05", false},
	{"2006/01/02 15:04:05", false},
	{"2006-01-02T15:04:05", false},
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
}

// DefaultLocation is the reporting timezone used when none is configured.
const DefaultLocation = "Asia/Taipei"

// Normalizer turns raw feed rows into canonical transactions. It never fails:
// missing or malformed values become the zero value of their field.
type Normalizer struct {
	aliases []AliasRule
	loc     *time.Location
}

// NormalizerOption customises a Normalizer.
type NormalizerOption func(*Normalizer)

// WithAliases replaces the column alias rules.
func WithAliases(rules []AliasRule) NormalizerOption {
	return func(n *Normalizer) {
		if len(rules) > 0 {
			n.aliases = rules
		}
	}
}

// WithLocation sets the timezone used to derive calendar dates from timestamps.
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// NewNormalizer builds a Normalizer with the default aliases and location.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{aliases: DefaultAliases(), loc: defaultLocation()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultLocation)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Normalize converts one raw record.
func (n *Normalizer) Normalize(rec RawRecord) Transaction {
	var t Transaction
	for _, rule := range n.aliases {
		v, ok := rule.Lookup(rec)
		if !ok {
			continue
		}
		switch rule.Field {
		case FieldDate:
			date, shifted := parseDate(v, n.loc)
			t.Date = date
			t.RawDate = displayDate(v)
			if shifted {
				t.RawDate = date.String()
			}
		case FieldAmount:
			t.Amount = CleanNumber(v)
		case FieldCurrency:
			t.Currency = fx.Canonical(CleanText(v))
		case FieldAgentName:
			t.AgentName = CleanText(v)
		case FieldBrandName:
			t.BrandName = CleanText(v)
		case FieldProjectName:
			t.ProjectName = CleanText(v)
		case FieldIndustry:
			t.Industry = CleanText(v)
		case FieldStatus:
			t.Status = CleanText(v)
		case FieldCountry:
			t.Country = CleanText(v)
		}
	}
	return t
}

// NormalizeAll converts every record, preserving order.
func (n *Normalizer) NormalizeAll(recs []RawRecord) []Transaction {
	out := make([]Transaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, n.Normalize(rec))
	}
	return out
}

// CleanText strips markup and line breaks from a display value.
func CleanText(v any) string {
	if !truthy(v) {
		return ""
	}
	s := markupPattern.ReplaceAllString(stringify(v), "")
	s = lineBreaks.Replace(s)
	return strings.TrimSpace(s)
}

// CleanNumber parses an amount, ignoring thousands separators, currency
// symbols and whitespace. Unparseable input yields 0.
func CleanNumber(v any) float64 {
	if !truthy(v) {
		return 0
	}
	if f, ok := toFloat(v); ok {
		return finite(f)
	}
	s, ok := v.(string)
	if !ok {
		s = stringify(v)
	}
	s = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, width.Fold.String(s))
	prefix := numberPrefix.FindString(s)
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// parseDate reports whether the value carried an instant that was converted
// into loc, in which case the source text may name a different calendar day.
func parseDate(v any, loc *time.Location) (Date, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return Date{}, false
		}
		return DateOf(val.In(loc)), true
	case string:
		s := strings.TrimSpace(val)
		for _, l := range dateLayouts {
			t, err := time.Parse(l.layout, s)
			if err != nil {
				continue
			}
			if l.zoned {
				return DateOf(t.In(loc)), true
			}
			return DateOf(t), false
		}
	}
	return Date{}, false
}

func displayDate(v any) string {
	s, ok := v.(string)
	if !ok {
		if t, isTime := v.(time.Time); isTime {
			return t.Format("2006-01-02")
		}
		return ""
	}
	runes := []rune(s)
	if len(runes) >= 10 {
		return string(runes[:10])
	}
	return s
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case time.Time:
		return !val.IsZero()
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case interface{ Float64() (float64, error) }:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
