// Package logging provides config-driven categorized file-based logging for codemend.
// Logs are written to .codemend/logs/ with separate files per category.
// Logging is controlled by debug_mode in .codemend/config.yaml - when false, no logs are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codemend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot   Category = "boot"   // Startup, config loading
	CategoryRepair Category = "repair" // Pipeline stages and learner
	CategorySyntax Category = "syntax" // Parser diagnostics
	CategoryStore  Category = "store"  // SQLite correction log
	CategoryWatch  Category = "watch"  // File watcher
	CategoryCLI    Category = "cli"    // Command execution
)

// Logger is a category logger. The zero value discards everything.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	close    func()
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	cfg       config.LoggingConfig
	cfgMu     sync.RWMutex

	// core, when set, receives every category regardless of debug_mode.
	core zapcore.Core
)

// Initialize sets up the logging directory for a workspace.
// Should be called once at startup. It is a no-op unless debug_mode is set.
func Initialize(workspace string, c config.LoggingConfig) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	CloseAll()
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
	loggersMu.Lock()
	logsDir = ""
	loggersMu.Unlock()

	if !c.DebugMode {
		return nil
	}

	dir := filepath.Join(workspace, config.Dir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	loggersMu.Lock()
	logsDir = dir
	loggersMu.Unlock()

	boot := Get(CategoryBoot)
	boot.Info("=== codemend logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Logs directory: %s", dir)
	boot.Info("Log level: %s", c.Level)
	if len(c.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}
	for name, enabled := range c.Categories {
		boot.Debug("Category '%s': %v", name, enabled)
	}
	return nil
}

// UseCore routes every category to c, for tests and for embedding codemend in
// a host with its own zap setup. The returned func restores file logging.
func UseCore(c zapcore.Core) func() {
	CloseAll()
	loggersMu.Lock()
	core = c
	loggersMu.Unlock()
	return func() {
		CloseAll()
		loggersMu.Lock()
		core = nil
		loggersMu.Unlock()
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[category]
	override, dir := core, logsDir
	loggersMu.RUnlock()
	if ok {
		return l
	}

	if override == nil && (dir == "" || !IsCategoryEnabled(category)) {
		return &Logger{category: category}
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	if override != nil {
		l = &Logger{category: category, sugar: zap.New(override).Named(string(category)).Sugar()}
		loggers[category] = l
		return l
	}

	// Date prefix for easy rotation
	name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	sink, closeSink, err := zap.Open(filepath.Join(dir, name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", name, err)
		return &Logger{category: category}
	}
	fileCore := zapcore.NewCore(encoder(), sink, level())
	l = &Logger{
		category: category,
		sugar:    zap.New(fileCore).Named(string(category)).Sugar(),
		close:    closeSink,
	}
	loggers[category] = l
	return l
}

func encoder() zapcore.Encoder {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.JSONFormat {
		return zapcore.NewJSONEncoder(ec)
	}
	return zapcore.NewConsoleEncoder(ec)
}

func level() zapcore.Level {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Errorf(format, args...)
	}
}

// With returns a logger that adds key-value context to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.close != nil {
			l.close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// BootWarn logs warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// Repair logs to the repair category
func Repair(format string, args ...interface{}) {
	Get(CategoryRepair).Info(format, args...)
}

// RepairDebug logs debug to the repair category
func RepairDebug(format string, args ...interface{}) {
	Get(CategoryRepair).Debug(format, args...)
}

// RepairWarn logs warning to the repair category
func RepairWarn(format string, args ...interface{}) {
	Get(CategoryRepair).Warn(format, args...)
}

// RepairError logs error to the repair category
func RepairError(format string, args ...interface{}) {
	Get(CategoryRepair).Error(format, args...)
}

// SyntaxDebug logs debug to the syntax category
func SyntaxDebug(format string, args ...interface{}) {
	Get(CategorySyntax).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// StoreWarn logs warning to the store category
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warn(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchDebug logs debug to the watch category
func WatchDebug(format string, args ...interface{}) {
	Get(CategoryWatch).Debug(format, args...)
}

// WatchError logs error to the watch category
func WatchError(format string, args ...interface{}) {
	Get(CategoryWatch).Error(format, args...)
}

// CLI logs to the cli category
func CLI(format string, args ...interface{}) {
	Get(CategoryCLI).Info(format, args...)
}

// CLIDebug logs debug to the cli category
func CLIDebug(format string, args ...interface{}) {
	Get(CategoryCLI).Debug(format, args...)
}

// =============================================================================
// PERFORMANCE TIMING
// =============================================================================

// Timer tracks operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
