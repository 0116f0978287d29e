package logger

import (
	"go.uber.org/zap"
)

// New builds a zap logger for the given level. Development mode gets the
// human readable console encoder.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zapcfg := zap.NewProductionConfig()
	if development {
		zapcfg = zap.NewDevelopmentConfig()
	}
	zapcfg.Level = lvl

	return zapcfg.Build()
}
