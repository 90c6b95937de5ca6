// Package dashboard serves permission-aware sales reports built from the
// cached feed and the current exchange rate.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/salesroom/salesroom/internal/feed"
	"github.com/salesroom/salesroom/internal/feed/sheet"
	"github.com/salesroom/salesroom/internal/observability"
	"github.com/salesroom/salesroom/internal/rates"
	"github.com/salesroom/salesroom/internal/sales"
)

// Snapshots serves the current feed snapshot.
type Snapshots interface {
	Snapshot(ctx context.Context) (feed.Snapshot, error)
	Refresh(ctx context.Context) (feed.Snapshot, error)
}

// RateSource serves the current exchange rate.
type RateSource interface {
	Current(ctx context.Context) rates.Quote
	Refresh(ctx context.Context) rates.Quote
}

// UserDirectory resolves caller emails to directory users.
type UserDirectory interface {
	LookupUser(ctx context.Context, email string) (sheet.User, error)
}

// Config carries the pipeline settings shared by every request.
type Config struct {
	Pipeline sales.Options
}

// Service coordinates feed, rate and directory lookups with the pipeline.
type Service struct {
	snapshots Snapshots
	rates     RateSource
	users     UserDirectory
	cfg       Config
	metrics   *observability.PipelineMetrics
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewService wires the dashboard collaborators.
func NewService(snapshots Snapshots, rateSource RateSource, users UserDirectory, cfg Config, metrics *observability.PipelineMetrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		snapshots: snapshots,
		rates:     rateSource,
		users:     users,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Caller is the resolved identity of a request.
type Caller struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Permissions string `json:"permissions"`
}

// SnapshotInfo describes the feed snapshot a result was built from.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Report states.
const (
	StateOK     = "ok"
	StateNoData = "no_data"
)

// Result is a report together with its provenance.
type Result struct {
	sales.Report
	State    string       `json:"state"`
	Caller   Caller       `json:"caller"`
	Quote    rates.Quote  `json:"quote"`
	Snapshot SnapshotInfo `json:"snapshot"`
}

// OptionsResult lists the filter values available to the caller.
type OptionsResult struct {
	sales.FilterOptions
	Snapshot SnapshotInfo `json:"snapshot"`
}

// RefreshResult reports a completed refresh.
type RefreshResult struct {
	Snapshot SnapshotInfo `json:"snapshot"`
	Records  int          `json:"records"`
	Quote    rates.Quote  `json:"quote"`
}

type loaded struct {
	caller   Caller
	perms    sales.Permissions
	snapshot feed.Snapshot
	quote    rates.Quote
}

// Report builds the dashboard report for q.
func (s *Service) Report(ctx context.Context, q Query) (Result, error) {
	q, filter, err := s.parse(q)
	if err != nil {
		return Result{}, err
	}
	data, err := s.load(ctx, q.Email, true)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	opts := s.options(data, filter)
	report := sales.Run(data.snapshot.Records, opts)
	s.observe("report", report.Stats, time.Since(start), data.quote)
	state := StateOK
	if report.Empty {
		state = StateNoData
	}
	return Result{Report: report, State: state, Caller: data.caller, Quote: data.quote, Snapshot: info(data.snapshot)}, nil
}

// Options lists filter values for the caller over the unfiltered feed.
func (s *Service) Options(ctx context.Context, email string) (OptionsResult, error) {
	q, _, err := s.parse(Query{Email: email})
	if err != nil {
		return OptionsResult{}, err
	}
	data, err := s.load(ctx, q.Email, false)
	if err != nil {
		return OptionsResult{}, err
	}
	enriched := sales.Prepare(data.snapshot.Records, s.options(data, sales.Filter{}))
	return OptionsResult{FilterOptions: sales.AvailableOptions(enriched), Snapshot: info(data.snapshot)}, nil
}

// Details lists the transactions behind one group of the filtered view.
func (s *Service) Details(ctx context.Context, dq DetailQuery) (sales.Detail, error) {
	dq.Query = dq.Query.normalized()
	if dq.Email == "" {
		return sales.Detail{}, ErrUnauthenticated
	}
	if err := s.validate.Struct(dq); err != nil {
		return sales.Detail{}, validationError(err)
	}
	filter, err := dq.filter()
	if err != nil {
		return sales.Detail{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	data, err := s.load(ctx, dq.Email, true)
	if err != nil {
		return sales.Detail{}, err
	}
	start := time.Now()
	opts := s.options(data, filter)
	view := filter.Apply(sales.Prepare(data.snapshot.Records, opts))
	detail, err := sales.Drilldown(view, sales.Dimension(dq.Dimension), dq.Key)
	if err != nil {
		return sales.Detail{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	s.observe("details", sales.Stats{Records: len(data.snapshot.Records), Filtered: len(view)}, time.Since(start), data.quote)
	return detail, nil
}

// Authorize resolves email against the user directory.
func (s *Service) Authorize(ctx context.Context, email string) (Caller, error) {
	q, _, err := s.parse(Query{Email: email})
	if err != nil {
		return Caller{}, err
	}
	user, err := s.users.LookupUser(ctx, q.Email)
	if err != nil {
		return Caller{}, directoryError(err, q.Email)
	}
	return Caller{Email: user.Email, Name: user.Name, Permissions: user.Permissions}, nil
}

// Refresh drops the cached feed snapshot and quote and fetches both again.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	var (
		snap  feed.Snapshot
		quote rates.Quote
	)
	g.Go(func() error {
		var err error
		snap, err = s.snapshots.Refresh(gctx)
		return err
	})
	g.Go(func() error {
		quote = s.rates.Refresh(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return RefreshResult{}, fmt.Errorf("dashboard: refresh: %w", err)
	}
	s.logger.Info("dashboard data refreshed",
		slog.String("snapshot", snap.ID),
		slog.Int("records", len(snap.Records)),
		slog.Float64("rate", quote.Rate),
		slog.String("rate_source", quote.Source))
	return RefreshResult{Snapshot: info(snap), Records: len(snap.Records), Quote: quote}, nil
}

func (s *Service) parse(q Query) (Query, sales.Filter, error) {
	q = q.normalized()
	if q.Email == "" {
		return q, sales.Filter{}, ErrUnauthenticated
	}
	if err := s.validate.Struct(q); err != nil {
		return q, sales.Filter{}, validationError(err)
	}
	filter, err := q.filter()
	if err != nil {
		return q, sales.Filter{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return q, filter, nil
}

// load resolves the caller, the snapshot and, when withRate is set, the rate
// concurrently.
func (s *Service) load(ctx context.Context, email string, withRate bool) (loaded, error) {
	var data loaded
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		user, err := s.users.LookupUser(gctx, email)
		if err != nil {
			return directoryError(err, email)
		}
		data.caller = Caller{Email: user.Email, Name: user.Name, Permissions: user.Permissions}
		data.perms = sales.ParsePermissions(user.Permissions)
		return nil
	})
	g.Go(func() error {
		snap, err := s.snapshots.Snapshot(gctx)
		if err != nil {
			return err
		}
		data.snapshot = snap
		return nil
	})
	if withRate {
		g.Go(func() error {
			data.quote = s.rates.Current(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return loaded{}, err
	}
	return data, nil
}

func (s *Service) options(data loaded, filter sales.Filter) sales.Options {
	opts := s.cfg.Pipeline
	opts.Rate = data.quote.Rate
	opts.Filter = filter
	opts.Permissions = data.perms
	return opts
}

func (s *Service) observe(operation string, stats sales.Stats, elapsed time.Duration, quote rates.Quote) {
	s.metrics.ObserveRun(operation, observability.RunStats{
		Records:  stats.Records,
		Undated:  stats.Undated,
		Foreign:  stats.Foreign,
		Filtered: stats.Filtered,
	}, elapsed)
	s.metrics.ObserveRate(quote.Source, quote.Rate, quote.Fallback())
	s.logger.Debug("pipeline run",
		slog.String("operation", operation),
		slog.Int("records", stats.Records),
		slog.Int("filtered", stats.Filtered),
		slog.Duration("duration", elapsed))
}

func directoryError(err error, email string) error {
	if errors.Is(err, sheet.ErrUnknownUser) {
		return fmt.Errorf("%w: %s", ErrForbidden, email)
	}
	return err
}

func info(snap feed.Snapshot) SnapshotInfo {
	return SnapshotInfo{ID: snap.ID, Source: snap.Source, FetchedAt: snap.FetchedAt}
}
