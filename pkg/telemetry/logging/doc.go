// Package logging configures structured logging for the balancer.
//
// The package wraps log/slog with the output formats and levels from
// config.LoggingConfig. Handlers redact well-known secret attribute
// keys so that API credentials never reach log output regardless of
// call-site discipline.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Config{
//		Level:  "info",
//		Format: logging.FormatJSON,
//	})
//	if err != nil {
//		return err
//	}
//	slog.SetDefault(logger.Slog())
//
// Components derive scoped loggers with a component attribute:
//
//	poolLog := logger.With("component", "keypool")
package logging
