package sales

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// UncategorizedIndustry labels transactions without an industry.
const UncategorizedIndustry = "未分類"

// Summary carries the headline totals of a view.
type Summary struct {
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// AgentGroup is the rollup of one displayed agent.
type AgentGroup struct {
	Rank         int      `json:"rank"`
	Name         string   `json:"name"`
	Revenue      float64  `json:"revenue"`
	Count        int      `json:"count"`
	Projects     []string `json:"projects"`
	ProjectCount int      `json:"project_count"`
}

// IndustryGroup is the rollup of one industry with its revenue share.
type IndustryGroup struct {
	Rank    int     `json:"rank"`
	Name    string  `json:"name"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
	Share   float64 `json:"share"`
}

// ClientGroup is the rollup of one client identity.
type ClientGroup struct {
	Rank           int            `json:"rank"`
	Name           string         `json:"name"`
	Revenue        float64        `json:"revenue"`
	Count          int            `json:"count"`
	CustomerStatus CustomerStatus `json:"customer_status"`
}

// MonthBucket is one calendar month of revenue split by region and customer status.
type MonthBucket struct {
	Month    string  `json:"month"`
	Label    string  `json:"label"`
	Total    float64 `json:"total"`
	Local    float64 `json:"local"`
	Overseas float64 `json:"overseas"`
	New      float64 `json:"new"`
	Repeat   float64 `json:"repeat"`
	Count    int     `json:"count"`
}

// Split is one side of a two-way revenue breakdown.
type Split struct {
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	Revenue  float64 `json:"revenue"`
	Count    int     `json:"count"`
	Share    int     `json:"share"`
	AvgDeal  float64 `json:"avg_deal"`
	Projects int     `json:"projects"`
}

// RegionSplit compares home-market and overseas revenue.
type RegionSplit struct {
	Local    Split `json:"local"`
	Overseas Split `json:"overseas"`
}

// CustomerSplit compares new and repeat customer revenue.
type CustomerSplit struct {
	New    Split `json:"new"`
	Repeat Split `json:"repeat"`
}

// Aggregate is the single-pass rollup of a filtered view. Groups are listed in
// first-encounter order and months in chronological order.
type Aggregate struct {
	Summary    Summary
	Agents     []AgentGroup
	Industries []IndustryGroup
	Clients    []ClientGroup
	Months     []MonthBucket
	Region     RegionSplit
	Customers  CustomerSplit
}

type group struct {
	name     string
	revenue  decimal.Decimal
	count    int
	status   CustomerStatus
	projects map[string]struct{}
	order    []string
}

func (g *group) add(amount decimal.Decimal, project string) {
	g.revenue = g.revenue.Add(amount)
	g.count++
	if project == "" {
		return
	}
	if g.projects == nil {
		g.projects = make(map[string]struct{})
	}
	if _, seen := g.projects[project]; !seen {
		g.projects[project] = struct{}{}
		g.order = append(g.order, project)
	}
}

type groupSet struct {
	index map[string]*group
	order []*group
}

func newGroupSet() *groupSet {
	return &groupSet{index: make(map[string]*group)}
}

func (s *groupSet) get(name string) *group {
	if g, ok := s.index[name]; ok {
		return g
	}
	g := &group{name: name}
	s.index[name] = g
	s.order = append(s.order, g)
	return g
}

type monthAcc struct {
	date     Date
	total    decimal.Decimal
	local    decimal.Decimal
	overseas decimal.Decimal
	fresh    decimal.Decimal
	repeat   decimal.Decimal
	count    int
}

type splitAcc struct {
	group
	vipRevenue decimal.Decimal
	vipCount   int
}

// Aggregator folds a filtered view into totals and rollups.
type Aggregator struct {
	vip VIPPolicy
}

// NewAggregator builds an Aggregator. Clients matching vip are excluded from
// average deal sizes.
func NewAggregator(vip VIPPolicy) *Aggregator {
	return &Aggregator{vip: vip}
}

// Aggregate computes every rollup in one pass over txns.
func (a *Aggregator) Aggregate(txns []EnrichedTransaction) Aggregate {
	total := decimal.Zero
	agents := newGroupSet()
	industries := newGroupSet()
	clients := newGroupSet()
	months := make(map[string]*monthAcc)
	var local, overseas, fresh, repeat splitAcc

	for _, t := range txns {
		amount := decimal.NewFromFloat(finite(t.FinalAmount))
		total = total.Add(amount)

		agentName := t.DisplayAgentName
		if agentName == "" {
			agentName = UnknownClient
		}
		agents.get(agentName).add(amount, t.ProjectName)

		industry := t.Industry
		if industry == "" {
			industry = UncategorizedIndustry
		}
		industries.get(industry).add(amount, "")

		client := clients.get(t.Client)
		client.add(amount, "")
		client.status = t.CustomerStatus

		if key := t.Date.MonthKey(); key != "" {
			m, ok := months[key]
			if !ok {
				m = &monthAcc{date: t.Date}
				months[key] = m
			}
			m.total = m.total.Add(amount)
			m.count++
			if t.Region == RegionLocal {
				m.local = m.local.Add(amount)
			} else {
				m.overseas = m.overseas.Add(amount)
			}
			if t.CustomerStatus == CustomerRepeat {
				m.repeat = m.repeat.Add(amount)
			} else {
				m.fresh = m.fresh.Add(amount)
			}
		}

		vip := a.vip.Matches(ClientIdentity(t.Transaction))
		if t.Region == RegionLocal {
			local.addDeal(amount, t.ProjectName, vip)
		} else {
			overseas.addDeal(amount, t.ProjectName, vip)
		}
		if t.CustomerStatus == CustomerRepeat {
			repeat.addDeal(amount, t.ProjectName, vip)
		} else {
			fresh.addDeal(amount, t.ProjectName, vip)
		}
	}

	out := Aggregate{Summary: Summary{Revenue: total.InexactFloat64(), Count: len(txns)}}
	for _, g := range agents.order {
		projects := append([]string(nil), g.order...)
		sort.Strings(projects)
		out.Agents = append(out.Agents, AgentGroup{
			Name:         g.name,
			Revenue:      g.revenue.InexactFloat64(),
			Count:        g.count,
			Projects:     projects,
			ProjectCount: len(projects),
		})
	}
	for _, g := range industries.order {
		out.Industries = append(out.Industries, IndustryGroup{
			Name:    g.name,
			Revenue: g.revenue.InexactFloat64(),
			Count:   g.count,
			Share:   sharePercent(g.revenue, total, 1).InexactFloat64(),
		})
	}
	for _, g := range clients.order {
		out.Clients = append(out.Clients, ClientGroup{
			Name:           g.name,
			Revenue:        g.revenue.InexactFloat64(),
			Count:          g.count,
			CustomerStatus: g.status,
		})
	}
	out.Months = monthBuckets(months)

	regionTotal := local.revenue.Add(overseas.revenue)
	out.Region = RegionSplit{
		Local:    local.split(string(RegionLocal), RegionLocal.Label(), regionTotal),
		Overseas: overseas.split(string(RegionOverseas), RegionOverseas.Label(), regionTotal),
	}
	statusTotal := fresh.revenue.Add(repeat.revenue)
	out.Customers = CustomerSplit{
		New:    fresh.split(string(CustomerNew), CustomerNew.Label(), statusTotal),
		Repeat: repeat.split(string(CustomerRepeat), CustomerRepeat.Label(), statusTotal),
	}
	return out
}

func (s *splitAcc) addDeal(amount decimal.Decimal, project string, vip bool) {
	s.add(amount, project)
	if vip {
		s.vipRevenue = s.vipRevenue.Add(amount)
		s.vipCount++
	}
}

func (s *splitAcc) split(key, label string, total decimal.Decimal) Split {
	out := Split{
		Key:      key,
		Label:    label,
		Revenue:  s.revenue.InexactFloat64(),
		Count:    s.count,
		Share:    int(sharePercent(s.revenue, total, 0).IntPart()),
		Projects: len(s.order),
	}
	if deals := s.count - s.vipCount; deals > 0 {
		avg := s.revenue.Sub(s.vipRevenue).Div(decimal.NewFromInt(int64(deals))).Round(0)
		out.AvgDeal = avg.InexactFloat64()
	}
	return out
}

func sharePercent(part, total decimal.Decimal, places int32) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).Round(places)
}

func monthBuckets(months map[string]*monthAcc) []MonthBucket {
	keys := make([]string, 0, len(months))
	for key := range months {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]MonthBucket, 0, len(keys))
	for _, key := range keys {
		m := months[key]
		out = append(out, MonthBucket{
			Month:    key,
			Label:    fmt.Sprintf("%d年%d月", m.date.Year, int(m.date.Month)),
			Total:    m.total.InexactFloat64(),
			Local:    m.local.InexactFloat64(),
			Overseas: m.overseas.InexactFloat64(),
			New:      m.fresh.InexactFloat64(),
			Repeat:   m.repeat.InexactFloat64(),
			Count:    m.count,
		})
	}
	return out
}

// RecentMonths keeps the last n buckets of a chronological series.
func RecentMonths(months []MonthBucket, n int) []MonthBucket {
	if n <= 0 || len(months) <= n {
		return months
	}
	return months[len(months)-n:]
}
