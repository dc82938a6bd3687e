package hook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultSlowThreshold = time.Second
	DefaultInfoThreshold = 100 * time.Millisecond
)

// Observer is the built-in half of every hook: it logs each query and records its
// duration.
type Observer struct {
	logger    *slog.Logger
	slow      time.Duration
	info      time.Duration
	durations *prometheus.HistogramVec
}

// ObserverOptions configures an Observer. Zero values select the defaults.
type ObserverOptions struct {
	Logger        *slog.Logger
	Registerer    prometheus.Registerer
	SlowThreshold time.Duration
	InfoThreshold time.Duration
}

// NewObserver creates an observer. The duration histogram is registered with
// opts.Registerer when one is given; an identical collector already registered is reused.
func NewObserver(opts ObserverOptions) (*Observer, error) {
	o := &Observer{
		logger: opts.Logger,
		slow:   opts.SlowThreshold,
		info:   opts.InfoThreshold,
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sqlmodel",
			Name:      "query_duration_seconds",
			Help:      "Duration of model queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model_name", "action"}),
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.slow <= 0 {
		o.slow = DefaultSlowThreshold
	}
	if o.info <= 0 {
		o.info = DefaultInfoThreshold
	}

	if opts.Registerer != nil {
		if err := opts.Registerer.Register(o.durations); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				return nil, err
			}
			o.durations = existing
		}
	}
	return o, nil
}

func (o *Observer) Logger() *slog.Logger { return o.logger }

// level buckets a query duration.
func (o *Observer) level(elapsed time.Duration) slog.Level {
	switch {
	case elapsed > o.slow:
		return slog.LevelWarn
	case elapsed > o.info:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func (o *Observer) attrs(qc *QueryContext, elapsed time.Duration) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("query_id", qc.ID.String()),
		slog.String("model_name", qc.Model),
		slog.String("action", string(qc.Action)),
		slog.String("query", qc.Query),
		slog.Duration("elapsed", elapsed),
	}
	if qc.Tag != "" {
		attrs = append(attrs, slog.String("tag", qc.Tag))
	}
	return attrs
}

func (o *Observer) observe(qc *QueryContext, elapsed time.Duration) {
	o.durations.WithLabelValues(qc.Model, string(qc.Action)).Observe(elapsed.Seconds())
}

// AfterScan logs a read query with its row count, at a level chosen by its duration.
func (o *Observer) AfterScan(ctx context.Context, qc *QueryContext) {
	if qc.Cancelled {
		return
	}
	elapsed := qc.Elapsed()
	o.observe(qc, elapsed)

	if qc.Err != nil {
		attrs := append(o.attrs(qc, elapsed), slog.String("error", qc.Err.Error()))
		o.logger.LogAttrs(ctx, slog.LevelError, "query failed", attrs...)
		return
	}
	level := o.level(elapsed)
	attrs := append(o.attrs(qc, elapsed), slog.Int("rows", qc.Rows))
	if level == slog.LevelDebug {
		attrs = append(attrs, slog.String("arguments", qc.FormatArgs()))
	}
	o.logger.LogAttrs(ctx, level, "query finished", attrs...)
}

// AfterMutation logs a write. Failures are logged at error level; a successful
// delete is always logged as a warning.
func (o *Observer) AfterMutation(ctx context.Context, qc *QueryContext) {
	if qc.Cancelled {
		return
	}
	elapsed := qc.Elapsed()
	o.observe(qc, elapsed)

	attrs := append(o.attrs(qc, elapsed), slog.Int64("rows_affected", qc.RowsAffected))
	switch {
	case !qc.Success:
		if qc.Err != nil {
			attrs = append(attrs, slog.String("error", qc.Err.Error()))
		}
		o.logger.LogAttrs(ctx, slog.LevelError, "failed to "+string(qc.Action)+" a model", attrs...)
	case qc.Action == Delete:
		o.logger.LogAttrs(ctx, slog.LevelWarn, "model deleted", attrs...)
	default:
		level := o.level(elapsed)
		if level == slog.LevelDebug {
			attrs = append(attrs, slog.String("arguments", qc.FormatArgs()))
		}
		o.logger.LogAttrs(ctx, level, "model "+string(qc.Action)+" finished", attrs...)
	}
}

// HookFailed logs an error returned by an after hook. Such errors never replace the
// result of the statement.
func (o *Observer) HookFailed(ctx context.Context, qc *QueryContext, err error) {
	o.logger.LogAttrs(ctx, slog.LevelError, "after hook failed",
		slog.String("query_id", qc.ID.String()),
		slog.String("model_name", qc.Model),
		slog.String("action", string(qc.Action)),
		slog.String("error", err.Error()))
}
