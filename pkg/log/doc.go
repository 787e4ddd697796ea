// Package log provides structured logging for triage services.
//
// It wraps log/slog with a small Field-based API so call sites stay
// compact and components can be tagged once:
//
//	logger := log.NewLogger(log.WithLevel(log.InfoLevel))
//	logger = logger.With(log.Component("store"))
//	logger.Info("item created", log.Str("id", it.ID))
//
// Output format (text or JSON) and level are usually applied from
// configuration via ApplyConfig.
package log
