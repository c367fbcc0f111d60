// Package logging builds the zap logger shared by the query service and the ledger CLI.
package logging

import (
	"strings"

	"github.com/canopy-network/tokenscope/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger tagged with service.
// LOG_LEVEL picks debug|info|warn|error (default info), LOG_ENCODING picks json|console.
func New(service string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = encoding(utils.Env("LOG_ENCODING", "json"))
	cfg.Level = zap.NewAtomicLevelAt(level(utils.Env("LOG_LEVEL", "info")))
	if cfg.Level.Level() == zap.DebugLevel {
		cfg.Development = true
		cfg.Sampling = nil
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if service != "" {
		cfg.InitialFields = map[string]interface{}{"service": service}
	}

	return cfg.Build()
}

func level(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func encoding(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "console") {
		return "console"
	}
	return "json"
}
