// Package influxdb records SQL executor telemetry in InfluxDB.
//
// It wraps influxdb-client-go v2 with batched, non-blocking writes for
// three measurements:
//   - sql_statements: one point per statement attempt, tagged by kind,
//     table and outcome, with duration_ms
//   - sql_lock_retries: one point per retry of a locked statement
//   - table_rows: row counts gathered by the analyze command
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteStatementMetric("update", "dvrs", elapsed, influxdb.OutcomeOK)
//
// Writes on a closed or disconnected client are dropped. Batch failures
// are reported through SetOnError.
package influxdb
