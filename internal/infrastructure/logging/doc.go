// Package logging builds the slog logger shared by every vimqa component.
//
// Entries carry service and version fields. Output is JSON or text, on
// stdout or stderr, filtered by level:
//
//	logging:
//	  level: "info"      # trace, debug, info, warn, error
//	  format: "json"
//	  output: "stdout"
//
// Trace sits below debug and is where the executor reports each statement
// with its SQL text and handle number. Bound parameter values are never
// logged, only how many there were.
//
//	logger := logging.New(cfg.Logging, version)
//	exec.SetLogger(logger)
package logging
