// Package logging builds the zap loggers used across the service.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a zap.Logger. The development profile uses the console encoder
// for readable local output; the production profile emits JSON and stamps
// every entry with the service name.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.InitialFields = map[string]any{"service": "catalog-scraper"}
	}
	cfg.EncoderConfig.TimeKey = "ts"

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
