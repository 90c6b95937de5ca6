package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/salesroom/salesroom/internal/feed/file"
	"github.com/salesroom/salesroom/internal/sales"
	"github.com/salesroom/salesroom/internal/sales/fx"
)

// Exit codes returned by ReportCommand.
const (
	ExitOK    = 0
	ExitError = 1
	ExitEmpty = 10
)

const topRows = 5

// ReportOptions defines available flags for the report command.
type ReportOptions struct {
	File        string
	Sheet       string
	Rate        float64
	Year        string
	Quarter     string
	Month       string
	Status      string
	Agent       string
	Industry    string
	Permissions string
	Timezone    string
	JSONOutput  bool
	Stdout      io.Writer
	Stderr      io.Writer
}

// ParseReportArgs reads report flags from args.
func ParseReportArgs(args []string, stderr io.Writer) (ReportOptions, error) {
	opts := ReportOptions{Stderr: stderr}
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.File, "file", "", "CSV or XLSX export of the sales feed")
	fs.StringVar(&opts.Sheet, "sheet", "", "worksheet name for XLSX files")
	fs.Float64Var(&opts.Rate, "rate", fx.FallbackRate, "reporting-currency price of one foreign unit")
	fs.StringVar(&opts.Year, "year", "", "four digit year")
	fs.StringVar(&opts.Quarter, "quarter", "", "quarter 1-4")
	fs.StringVar(&opts.Month, "month", "", "month 1-12")
	fs.StringVar(&opts.Status, "status", "", "customer status (new or repeat)")
	fs.StringVar(&opts.Agent, "agent", "", "displayed agent name")
	fs.StringVar(&opts.Industry, "industry", "", "industry")
	fs.StringVar(&opts.Permissions, "permissions", "all", "comma separated visible fields")
	fs.StringVar(&opts.Timezone, "tz", sales.DefaultLocation, "reporting timezone")
	fs.BoolVar(&opts.JSONOutput, "json", false, "print the full report as JSON")
	if err := fs.Parse(args); err != nil {
		return ReportOptions{}, err
	}
	return opts, nil
}

// ReportSummary is the JSON shape printed with --json.
type ReportSummary struct {
	Source string       `json:"source"`
	Report sales.Report `json:"report"`
}

// ReportCommand runs the pipeline over a local export and prints the outcome.
func ReportCommand(ctx context.Context, opts ReportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if strings.TrimSpace(opts.File) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "report: --file is required")
		return ExitError
	}
	filter, err := sales.ParseFilter(sales.FilterInput{
		Year:     opts.Year,
		Quarter:  opts.Quarter,
		Month:    opts.Month,
		Status:   opts.Status,
		Agent:    opts.Agent,
		Industry: opts.Industry,
	})
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return ExitError
	}
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: invalid timezone %q\n", opts.Timezone)
		return ExitError
	}

	loaderOpts := []file.Option{file.WithAliases(sales.DefaultAliases())}
	if opts.Sheet != "" {
		loaderOpts = append(loaderOpts, file.WithSheet(opts.Sheet))
	}
	loader, err := file.NewLoader(opts.File, loaderOpts...)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return ExitError
	}
	records, err := loader.Fetch(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return ExitError
	}

	pipeline := sales.DefaultOptions()
	pipeline.Rate = opts.Rate
	pipeline.Filter = filter
	pipeline.Permissions = sales.ParsePermissions(opts.Permissions)
	pipeline.Location = loc
	report := sales.Run(records, pipeline)

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(ReportSummary{Source: opts.File, Report: report}); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "report: encode json: %v\n", err)
			return ExitError
		}
	} else {
		renderReportHuman(opts.Stdout, opts.File, report)
	}
	if report.Empty {
		return ExitEmpty
	}
	return ExitOK
}

func renderReportHuman(out io.Writer, source string, report sales.Report) {
	_, _ = fmt.Fprintf(out, "Sales report for %s at rate %.4g\n", source, report.Rate)
	if report.Empty {
		_, _ = fmt.Fprintln(out, "No records found.")
		return
	}
	_, _ = fmt.Fprintf(out, "Records: %d (%d undated, %d foreign), %d after filters\n",
		report.Stats.Records, report.Stats.Undated, report.Stats.Foreign, report.Stats.Filtered)
	_, _ = fmt.Fprintf(out, "Revenue: %.2f over %d transactions\n", report.Summary.Revenue, report.Summary.Count)

	_, _ = fmt.Fprintln(out, "Top agents:")
	for _, a := range head(report.Agents) {
		_, _ = fmt.Fprintf(out, " %d. %s %.2f (%d deals, %d projects)\n", a.Rank, a.Name, a.Revenue, a.Count, a.ProjectCount)
	}
	_, _ = fmt.Fprintln(out, "Top industries:")
	for _, i := range head(report.Industries) {
		_, _ = fmt.Fprintf(out, " %d. %s %.2f (%.1f%%)\n", i.Rank, i.Name, i.Revenue, i.Share)
	}
	_, _ = fmt.Fprintln(out, "Top clients:")
	for _, c := range head(report.Clients) {
		_, _ = fmt.Fprintf(out, " %d. %s %.2f (%s)\n", c.Rank, c.Name, c.Revenue, c.CustomerStatus.Label())
	}
	_, _ = fmt.Fprintf(out, "Region: %s %d%% / %s %d%%\n",
		report.Region.Local.Label, report.Region.Local.Share, report.Region.Overseas.Label, report.Region.Overseas.Share)
	_, _ = fmt.Fprintf(out, "Customers: %s %d%% / %s %d%%\n",
		report.Customers.New.Label, report.Customers.New.Share, report.Customers.Repeat.Label, report.Customers.Repeat.Share)
	if len(report.Monthly) > 0 {
		_, _ = fmt.Fprintln(out, "Monthly:")
		for _, m := range report.Monthly {
			_, _ = fmt.Fprintf(out, " %s %.2f (%d)\n", m.Label, m.Total, m.Count)
		}
	}
}

func head[T any](rows []T) []T {
	if len(rows) > topRows {
		return rows[:topRows]
	}
	return rows
}
