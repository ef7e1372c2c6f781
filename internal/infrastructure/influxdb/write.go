package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementStatements = "sql_statements"
	measurementLockRetry  = "sql_lock_retries"
	measurementTableRows  = "table_rows"
)

// Statement outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeLocked = "locked"
	OutcomeError  = "error"
)

// WriteStatementMetric records one statement attempt.
//
// kind is the leading SQL keyword (select, insert, ...), table is the
// physical table when known, and outcome is one of the Outcome constants.
//
//	client.WriteStatementMetric("select", "testcases", 3*time.Millisecond, influxdb.OutcomeOK)
func (c *Client) WriteStatementMetric(kind, table string, duration time.Duration, outcome string) {
	tags := map[string]string{
		"kind":    kind,
		"outcome": outcome,
	}
	if table != "" {
		tags["table"] = table
	}
	c.writePoint(measurementStatements, tags, map[string]interface{}{
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}, time.Now())
}

// WriteLockRetry records that a statement was retried because the
// database was locked. attempt counts from 1.
func (c *Client) WriteLockRetry(attempt int) {
	c.writePoint(measurementLockRetry, nil, map[string]interface{}{
		"attempt": attempt,
	}, time.Now())
}

// WriteTableRows records a table's row count, as gathered by analyze.
func (c *Client) WriteTableRows(table string, rows int64) {
	c.writePoint(measurementTableRows, map[string]string{"table": table}, map[string]interface{}{
		"rows": rows,
	}, time.Now())
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
