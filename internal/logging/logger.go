// Package logging provides categorized zap loggers for sentinel.
// Each category writes to its own file under <run_dir>/logs/ when debug
// logging is enabled; otherwise loggers are no-ops so production runs stay
// silent. The CLI wires its own console logger separately.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup and run initialization
	CategoryTrace      Category = "trace"      // Trace store operations
	CategoryEvidence   Category = "evidence"   // Claim extraction and binding
	CategoryBoundary   Category = "boundary"   // Boundary detection
	CategoryPolicy     Category = "policy"     // Intervention policy evaluation
	CategorySupervisor Category = "supervisor" // Hook orchestration
	CategoryPackets    Category = "packets"    // Escalation packet generation
	CategoryGitHub     Category = "github"     // GitHub client and cache
	CategoryAgent      Category = "agent"      // PRD agent loop
)

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*zap.SugaredLogger)
	logsDir string
	debug   bool
)

// Initialize sets up the logging directory. When debugMode is false every
// category logger is a no-op. Safe to call more than once; the last call wins.
func Initialize(runDir string, debugMode bool) error {
	mu.Lock()
	defer mu.Unlock()

	loggers = make(map[Category]*zap.SugaredLogger)
	debug = debugMode
	if !debug {
		return nil
	}

	logsDir = filepath.Join(runDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	loggers[cat] = build(cat)
	return loggers[cat]
}

func build(cat Category) *zap.SugaredLogger {
	if !debug || logsDir == "" {
		return zap.NewNop().Sugar()
	}

	path := filepath.Join(logsDir, string(cat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		return zap.NewNop().Sugar()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(f),
		zapcore.DebugLevel,
	)
	return zap.New(core).Named(string(cat)).Sugar()
}

// Convenience helpers for the busiest categories. These mirror call sites
// like logging.Supervisor("...") so hot paths stay terse.

func Trace(format string, args ...interface{})      { Get(CategoryTrace).Infof(format, args...) }
func Evidence(format string, args ...interface{})   { Get(CategoryEvidence).Infof(format, args...) }
func Policy(format string, args ...interface{})     { Get(CategoryPolicy).Infof(format, args...) }
func Supervisor(format string, args ...interface{}) { Get(CategorySupervisor).Infof(format, args...) }
func GitHub(format string, args ...interface{})     { Get(CategoryGitHub).Infof(format, args...) }
func Agent(format string, args ...interface{})      { Get(CategoryAgent).Infof(format, args...) }

// Sync flushes all category loggers. Called before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
}
