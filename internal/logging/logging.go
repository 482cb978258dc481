// Package logging constructs the structured logger used across the engine,
// replacing the teacher's bare log.Printf/fmt.Printf calls with zap fields
// (table name, level index, batch offset) so a multi-table, multi-level run
// stays debuggable. Grounded on
// other_examples/arwahdevops-dbsync__orchestrator.go, which logs an
// equivalent multi-table sync run with zap.String/zap.Int/zap.Duration
// fields.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console-friendly zap logger. verbose enables debug-level
// output; otherwise info and above are logged.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}
