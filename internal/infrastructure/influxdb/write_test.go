package influxdb

import (
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/config"
)

// recordedPoint is a written point broken into its parts.
type recordedPoint struct {
	name   string
	tags   map[string]string
	fields map[string]any
}

// fakeWriter collects points.
type fakeWriter struct {
	mu      sync.Mutex
	points  []recordedPoint
	flushed int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	rec := recordedPoint{name: p.Name(), tags: map[string]string{}, fields: map[string]any{}}
	for _, tag := range p.TagList() {
		rec.tags[tag.Key] = tag.Value
	}
	for _, field := range p.FieldList() {
		rec.fields[field.Key] = field.Value
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, rec)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushed++
}

func newFakeClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w, connected: true}, w
}

func TestWriteStatementMetric(t *testing.T) {
	c, w := newFakeClient()

	c.WriteStatementMetric("select", "testcases", 2500*time.Microsecond, OutcomeOK)
	c.WriteStatementMetric("pragma", "", time.Millisecond, OutcomeError)

	if len(w.points) != 2 {
		t.Fatalf("wrote %d points, want 2", len(w.points))
	}
	first := w.points[0]
	if first.name != "sql_statements" {
		t.Errorf("measurement = %q, want sql_statements", first.name)
	}
	wantTags := map[string]string{"kind": "select", "outcome": "ok", "table": "testcases"}
	for k, v := range wantTags {
		if first.tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, first.tags[k], v)
		}
	}
	if first.fields["duration_ms"] != 2.5 {
		t.Errorf("duration_ms = %v, want 2.5", first.fields["duration_ms"])
	}
	if _, ok := w.points[1].tags["table"]; ok {
		t.Errorf("point %+v has a table tag, want none", w.points[1])
	}
}

func TestWriteLockRetryAndRows(t *testing.T) {
	c, w := newFakeClient()

	c.WriteLockRetry(3)
	c.WriteTableRows("modules", 42)

	if len(w.points) != 2 {
		t.Fatalf("wrote %d points, want 2", len(w.points))
	}
	retry := w.points[0]
	if retry.name != "sql_lock_retries" || len(retry.tags) != 0 || retry.fields["attempt"] != int64(3) {
		t.Errorf("lock retry point = %+v", retry)
	}
	rows := w.points[1]
	if rows.name != "table_rows" || rows.tags["table"] != "modules" || rows.fields["rows"] != int64(42) {
		t.Errorf("rows point = %+v", rows)
	}
}

func TestWrite_Disconnected(t *testing.T) {
	c, w := newFakeClient()
	c.connected = false

	c.WriteStatementMetric("select", "tests", time.Millisecond, OutcomeOK)
	c.WriteLockRetry(1)
	c.Flush()

	if len(w.points) != 0 || w.flushed != 0 {
		t.Errorf("disconnected client wrote %d points and flushed %d times", len(w.points), w.flushed)
	}
}

func TestFlush(t *testing.T) {
	c, w := newFakeClient()
	c.Flush()
	if w.flushed != 1 {
		t.Errorf("flushed %d times, want 1", w.flushed)
	}
	(&Client{}).Flush() // no write API
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name              string
		batch, flush      int
		wantBatch, wantFl int
	}{
		{"configured", 500, 5, 500, 5},
		{"zero", 0, 0, defaultBatchSize, defaultFlushInterval},
		{"negative", -1, -1, defaultBatchSize, defaultFlushInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, f := batchSettings(config.InfluxDBConfig{BatchSize: tt.batch, FlushInterval: tt.flush})
			if b != tt.wantBatch || f != tt.wantFl {
				t.Errorf("batchSettings() = %d, %d, want %d, %d", b, f, tt.wantBatch, tt.wantFl)
			}
		})
	}
}

func TestOnError(t *testing.T) {
	c, _ := newFakeClient()
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- ErrConnectionFailed
	close(errs)
	c.handleWriteErrors(errs)

	select {
	case err := <-got:
		if err != ErrConnectionFailed {
			t.Errorf("callback error = %v", err)
		}
	default:
		t.Error("callback not invoked")
	}
}
