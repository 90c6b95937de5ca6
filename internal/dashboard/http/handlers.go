package dashboardhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/salesroom/salesroom/internal/dashboard"
	"github.com/salesroom/salesroom/internal/dashboard/export"
	"github.com/salesroom/salesroom/internal/feed"
	"github.com/salesroom/salesroom/internal/platform/httpx"
	"github.com/salesroom/salesroom/internal/sales"
)

// UserHeader carries the caller email set by the authenticating proxy.
const UserHeader = "X-User-Email"

const defaultRequestTimeout = 20 * time.Second

// DashboardService defines the dashboard data contract used by the handler.
type DashboardService interface {
	Report(ctx context.Context, q dashboard.Query) (dashboard.Result, error)
	Options(ctx context.Context, email string) (dashboard.OptionsResult, error)
	Details(ctx context.Context, q dashboard.DetailQuery) (sales.Detail, error)
	Authorize(ctx context.Context, email string) (dashboard.Caller, error)
	Refresh(ctx context.Context) (dashboard.RefreshResult, error)
}

// RefreshEnqueuer schedules a background feed refresh.
type RefreshEnqueuer interface {
	EnqueueFeedRefresh(ctx context.Context, reason string) (string, error)
}

// Handler coordinates HTTP requests for the sales dashboard API.
type Handler struct {
	logger   *slog.Logger
	service  DashboardService
	enqueuer RefreshEnqueuer
	timeout  time.Duration
	csvPool  sync.Pool
	now      func() time.Time
}

// NewHandler constructs the dashboard HTTP handler. A nil enqueuer makes
// refreshes run synchronously.
func NewHandler(logger *slog.Logger, service DashboardService, enqueuer RefreshEnqueuer, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	h := &Handler{
		logger:   logger,
		service:  service,
		enqueuer: enqueuer,
		timeout:  timeout,
		now:      time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.service.Report(ctx, parseQuery(r))
	if err != nil {
		h.respondError(w, "load report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	opts, err := h.service.Options(ctx, callerEmail(r))
	if err != nil {
		h.respondError(w, "load options", err)
		return
	}
	httpx.JSON(w, http.StatusOK, opts)
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	values := r.URL.Query()
	detail, err := h.service.Details(ctx, dashboard.DetailQuery{
		Query:     parseQuery(r),
		Dimension: strings.TrimSpace(values.Get("dimension")),
		Key:       strings.TrimSpace(values.Get("key")),
	})
	if err != nil {
		h.respondError(w, "load details", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.service.Report(ctx, parseQuery(r))
	if err != nil {
		h.respondError(w, "load report", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WriteReportCSV(buf, result.Report); err != nil {
		h.respondError(w, "write report csv", err)
		return
	}

	filename := fmt.Sprintf("sales-report-%s.csv", h.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, err := h.service.Authorize(ctx, callerEmail(r))
	if err != nil {
		h.respondError(w, "authorize refresh", err)
		return
	}

	if h.enqueuer != nil {
		taskID, err := h.enqueuer.EnqueueFeedRefresh(ctx, "manual:"+caller.Email)
		if err != nil {
			h.respondError(w, "enqueue refresh", err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
		return
	}

	result, err := h.service.Refresh(ctx)
	if err != nil {
		h.respondError(w, "refresh", err)
		return
	}
	h.logger.Info("dashboard refreshed", slog.String("caller", caller.Email), slog.Int("records", result.Records))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, dashboard.ErrUnauthenticated):
		httpx.RespondError(w, fmt.Errorf("%w: %s header required", httpx.ErrUnauthorized, UserHeader))
	case errors.Is(err, dashboard.ErrForbidden):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrForbidden, err))
	case errors.Is(err, dashboard.ErrValidation):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, feed.ErrUpstream):
		h.logError(op, err)
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
	case errors.Is(err, context.DeadlineExceeded):
		h.logError(op, err)
		httpx.RespondError(w, httpx.ErrRequestTimeout)
	default:
		h.logError(op, err)
		httpx.RespondError(w, err)
	}
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

func callerEmail(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func parseQuery(r *http.Request) dashboard.Query {
	values := r.URL.Query()
	return dashboard.Query{
		Email:    callerEmail(r),
		Year:     values.Get("year"),
		Quarter:  values.Get("quarter"),
		Month:    values.Get("month"),
		Status:   values.Get("status"),
		Agent:    values.Get("agent"),
		Industry: values.Get("industry"),
	}
}
