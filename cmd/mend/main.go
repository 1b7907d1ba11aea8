// Command mend repairs Python sources that fail to parse.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"codemend/internal/config"
	"codemend/internal/logging"
	"codemend/internal/syntax"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes.
const (
	exitOK       = 0
	exitUnfixed  = 1
	exitUsageErr = 2
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func unfixed(format string, args ...interface{}) error {
	return &exitError{code: exitUnfixed, msg: fmt.Sprintf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUsageErr
}

// app holds global flags and the state built by the root pre-run hook.
type app struct {
	verbose    bool
	workspace  string
	configPath string

	logger *zap.Logger
	cfg    *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mend",
		Short: "Repair Python sources that fail to parse",
		Long: `mend runs a repair pipeline over Python files: formatting, structural
fixes for indentation, brackets and quotes, then contextual fixes that add
missing imports and placeholder assignments. A file counts as fixed only if it
parses after the last tier.

Exit codes: 0 all files parse, 1 some file is still unparseable, 2 usage error.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			logging.CloseAll()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&a.workspace, "workspace", "w", "", "Workspace directory (default: current)")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: <workspace>/.codemend/config.yaml)")

	root.AddCommand(
		a.fixCmd(),
		a.checkCmd(),
		a.statsCmd(),
		a.watchCmd(),
		a.configCmd(),
	)
	return root
}

// setup builds the logger, loads configuration and initializes file logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	zc := zap.NewProductionConfig()
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	if a.workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve workspace: %w", err)
		}
		a.workspace = wd
	}
	if a.configPath == "" {
		a.configPath = config.DefaultPath(a.workspace)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", a.configPath, err)
	}
	a.cfg = cfg

	if err := logging.Initialize(a.workspace, cfg.Logging); err != nil {
		a.logger.Warn("file logging disabled", zap.Error(err))
	}
	logging.Boot("mend %s starting", cmd.Name())
	if _, err := os.Stat(a.configPath); err != nil {
		logging.BootDebug("no config at %s, using defaults", a.configPath)
	} else {
		logging.BootDebug("config loaded from %s", a.configPath)
	}
	if cfg.Repair.Parser == syntax.ParserBuiltin {
		logging.BootWarn("builtin parser selected; it accepts some code CPython rejects")
	}
	logging.CLIDebug("command %s, workspace %s", cmd.Name(), a.workspace)
	return nil
}

// dbPath resolves the correction log path against the workspace.
func (a *app) dbPath() string {
	p := a.cfg.Store.DatabasePath
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.workspace, p)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
