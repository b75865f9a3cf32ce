// Package logging builds the engine's zap logger and scrubs credentials
// from anything query execution wants to log: connection strings, driver
// errors and SQL text.
package logging

import (
	"go.uber.org/zap"
)

// New builds the process logger for the given environment. Local and test
// environments get the human-readable development encoder at debug level;
// everything else gets production JSON.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "local", "test":
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return cfg.Build()
	default:
		return zap.NewProduction()
	}
}
