package logger

import (
	"go.uber.org/zap"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentTest        = "test"
	EnvironmentDevelopment = "development"
)

var logger *zap.Logger

// NewLogger builds a zap logger for the given environment: production JSON,
// example output for tests, and the development console encoder otherwise.
func NewLogger(environment string) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	switch environment {
	case EnvironmentProduction, "prod":
		l, err = zap.NewProduction()
	case EnvironmentTest:
		l = zap.NewExample()
	default:
		l, err = zap.NewDevelopment()
	}

	return l, err
}

func InitLogger(environment string) (*zap.Logger, error) {
	var err error
	logger, err = NewLogger(environment)
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// GetLogger returns the process logger, falling back to a no-op logger when
// InitLogger was never called.
func GetLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}
