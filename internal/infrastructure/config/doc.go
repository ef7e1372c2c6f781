// Package config loads the vimqa configuration file.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then VIMQA_* environment variables. Validate reports every problem in one
// error rather than stopping at the first.
//
// The executor section controls lock handling for the shared test-case
// database: how long to wait between attempts while another process holds
// the lock, and how many attempts to make before giving up (0 never gives up).
//
// Keep broker passwords and the InfluxDB token out of the file; set
// VIMQA_MQTT_PASSWORD and VIMQA_INFLUXDB_TOKEN instead.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	exec := database.NewExecutor(database.Options{RetryDelay: cfg.GetRetryDelay()})
package config
