package main

import "go.uber.org/zap"

// newLogger builds the structured logger that main and the
// request-logging middleware use instead of the standard log package (see SPEC_FULL.md's ambient
// stack: zap grounded on the tikv/pd pack repo).
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}
