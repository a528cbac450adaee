package internal

import (
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestMain installs a console logger for the package. Builds log at debug
// level, so the default stays at warn unless APPFORGE_TEST_LOG_LEVEL says otherwise.
func TestMain(m *testing.M) {
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if raw, ok := os.LookupEnv("APPFORGE_TEST_LOG_LEVEL"); ok {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level.SetLevel(parsed)
		}
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{"stdout"}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)

	exitCode := m.Run()

	// os.Exit skips deferred calls
	_ = logger.Sync()
	os.Exit(exitCode)
}
