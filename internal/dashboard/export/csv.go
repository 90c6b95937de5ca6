// Package export renders dashboard reports as downloadable files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/salesroom/salesroom/internal/sales"
)

// WriteSummaryCSV serialises the headline metrics of a report.
func WriteSummaryCSV(w io.Writer, report sales.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Revenue", formatFloat(report.Summary.Revenue)},
		{"Transactions", strconv.Itoa(report.Summary.Count)},
		{"Exchange Rate", formatFloat(report.Rate)},
		{report.Region.Local.Label, formatFloat(report.Region.Local.Revenue)},
		{report.Region.Overseas.Label, formatFloat(report.Region.Overseas.Revenue)},
		{report.Customers.New.Label, formatFloat(report.Customers.New.Revenue)},
		{report.Customers.Repeat.Label, formatFloat(report.Customers.Repeat.Revenue)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAgentsCSV emits the agent ranking.
func WriteAgentsCSV(w io.Writer, agents []sales.AgentGroup) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Rank", "Agent", "Revenue", "Deals", "Projects"}); err != nil {
		return err
	}
	for _, agent := range agents {
		if err := writer.Write([]string{
			strconv.Itoa(agent.Rank),
			agent.Name,
			formatFloat(agent.Revenue),
			strconv.Itoa(agent.Count),
			strconv.Itoa(agent.ProjectCount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteIndustriesCSV emits the industry ranking with revenue shares.
func WriteIndustriesCSV(w io.Writer, industries []sales.IndustryGroup) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Rank", "Industry", "Revenue", "Deals", "Share %"}); err != nil {
		return err
	}
	for _, industry := range industries {
		if err := writer.Write([]string{
			strconv.Itoa(industry.Rank),
			industry.Name,
			formatFloat(industry.Revenue),
			strconv.Itoa(industry.Count),
			strconv.FormatFloat(industry.Share, 'f', 1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteClientsCSV emits the client ranking.
func WriteClientsCSV(w io.Writer, clients []sales.ClientGroup) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Rank", "Client", "Revenue", "Deals", "Status"}); err != nil {
		return err
	}
	for _, client := range clients {
		if err := writer.Write([]string{
			strconv.Itoa(client.Rank),
			client.Name,
			formatFloat(client.Revenue),
			strconv.Itoa(client.Count),
			client.CustomerStatus.Label(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMonthlyCSV emits the monthly revenue series.
func WriteMonthlyCSV(w io.Writer, months []sales.MonthBucket) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Month", "Total", "Local", "Overseas", "New", "Repeat", "Deals"}); err != nil {
		return err
	}
	for _, m := range months {
		if err := writer.Write([]string{
			m.Month,
			formatFloat(m.Total),
			formatFloat(m.Local),
			formatFloat(m.Overseas),
			formatFloat(m.New),
			formatFloat(m.Repeat),
			strconv.Itoa(m.Count),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteReportCSV writes every section of report separated by blank lines.
func WriteReportCSV(w io.Writer, report sales.Report) error {
	sections := []func(io.Writer) error{
		func(w io.Writer) error { return WriteSummaryCSV(w, report) },
		func(w io.Writer) error { return WriteAgentsCSV(w, report.Agents) },
		func(w io.Writer) error { return WriteIndustriesCSV(w, report.Industries) },
		func(w io.Writer) error { return WriteClientsCSV(w, report.Clients) },
		func(w io.Writer) error { return WriteMonthlyCSV(w, report.Monthly) },
	}
	for i, section := range sections {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := section(w); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
