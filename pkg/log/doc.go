// Package log is the structured logging facade used across RocketSpeed
// components. Long-lived components (sockets, subscribers, the log
// tailer, the control room) hold a Logger tagged with
// Component(<name>) and log lifecycle transitions at Info, per-event
// conditions (reconnects, drops, gap classification) at Debug or Warn.
//
// Construction:
//
//	logger := log.NewLogger(
//	    log.WithLevel(log.DebugLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	logger.Info("socket open", log.Str("addr", addr), log.Int("streams", 0))
//
// The facade is bridged onto log/slog via a custom slog.Handler, so code
// holding a *slog.Logger (or the stdlib log package, via RedirectStdLog)
// shares the same formatter and outputs. NewNopLogger returns a Logger
// that discards everything; it is the default wherever a component takes
// an optional Logger.
package log
