package hook

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestObserver(t *testing.T, reg prometheus.Registerer) (*Observer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o, err := NewObserver(ObserverOptions{Logger: logger, Registerer: reg})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	return o, &buf
}

func TestObserverLevels(t *testing.T) {
	o, _ := newTestObserver(t, nil)

	tests := []struct {
		elapsed time.Duration
		want    slog.Level
	}{
		{10 * time.Millisecond, slog.LevelDebug},
		{100 * time.Millisecond, slog.LevelDebug},
		{150 * time.Millisecond, slog.LevelInfo},
		{time.Second, slog.LevelInfo},
		{2 * time.Second, slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			if got := o.level(tt.elapsed); got != tt.want {
				t.Errorf("level(%v) = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestObserverAfterScan(t *testing.T) {
	o, buf := newTestObserver(t, nil)

	qc := NewContext("Task", Scan, "SELECT id FROM task WHERE name = ?", []any{"a"})
	qc.Rows = 3
	qc.Success = true
	o.AfterScan(context.Background(), qc)

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "model_name=Task", "rows=3", `arguments="[\"a\"]"`, "query_id=" + qc.ID.String()} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q should contain %q", out, want)
		}
	}
	if n := testutil.CollectAndCount(o.durations); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}
}

func TestObserverAfterMutation(t *testing.T) {
	tests := []struct {
		name      string
		action    Action
		err       error
		wantLevel string
		wantMsg   string
	}{
		{"failed insert", Insert, errors.New("constraint violation"), "level=ERROR", "failed to insert a model"},
		{"successful delete", Delete, nil, "level=WARN", "model deleted"},
		{"successful update", Update, nil, "level=DEBUG", "model update finished"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, buf := newTestObserver(t, nil)
			qc := NewContext("Task", tt.action, "DELETE FROM task", nil)
			if tt.err != nil {
				qc.RecordError(tt.err)
			} else {
				qc.SetResult(1, 0)
			}
			o.AfterMutation(context.Background(), qc)

			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) || !strings.Contains(out, tt.wantMsg) {
				t.Errorf("log output %q should contain %q and %q", out, tt.wantLevel, tt.wantMsg)
			}
		})
	}
}

func TestObserverSkipsCancelled(t *testing.T) {
	o, buf := newTestObserver(t, nil)
	qc := NewContext("Task", Insert, "INSERT", nil)
	qc.RecordError(context.Canceled)
	if !qc.Cancelled {
		t.Fatal("RecordError(context.Canceled) should mark the query cancelled")
	}
	o.AfterMutation(context.Background(), qc)
	if buf.Len() != 0 {
		t.Errorf("cancelled queries should not be logged, got %q", buf.String())
	}
}

func TestObserverSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, _ := newTestObserver(t, reg)
	second, _ := newTestObserver(t, reg)
	if first.durations != second.durations {
		t.Error("observers on one registry should share the histogram")
	}
}

type recorder struct {
	calls  []string
	before error
}

func (r *recorder) BeforeInsert(ctx context.Context, qc *QueryContext) error {
	r.calls = append(r.calls, "before_insert")
	return r.before
}

func (r *recorder) AfterInsert(ctx context.Context, qc *QueryContext, success bool) error {
	if success {
		r.calls = append(r.calls, "after_insert:ok")
	} else {
		r.calls = append(r.calls, "after_insert:failed")
	}
	return nil
}

func TestBeforeAfter(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	qc := NewContext("Recorder", Insert, "", nil)

	if err := Before(ctx, Insert, r, qc); err != nil {
		t.Fatalf("Before() error = %v", err)
	}
	qc.RecordError(errors.New("boom"))
	if err := After(ctx, Insert, r, qc); err != nil {
		t.Fatalf("After() error = %v", err)
	}
	// hooks the model does not implement are no-ops
	if err := Before(ctx, Delete, r, qc); err != nil {
		t.Fatalf("Before(Delete) error = %v", err)
	}

	want := []string{"before_insert", "after_insert:failed"}
	if strings.Join(r.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", r.calls, want)
	}
}

func TestFormatArgs(t *testing.T) {
	qc := NewContext("Task", Scan, "", []any{nil, "x", int64(3), []byte{1, 2}, true})
	if got, want := qc.FormatArgs(), `[NULL, "x", 3, <2 bytes>, true]`; got != want {
		t.Errorf("FormatArgs() = %s, want %s", got, want)
	}
}
