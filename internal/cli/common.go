package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danieljhkim/voltron/internal/clock"
	"github.com/danieljhkim/voltron/internal/config"
	"github.com/danieljhkim/voltron/internal/engine"
	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
	"github.com/danieljhkim/voltron/internal/installer"
)

// ExitDataErr is the exit status for an aborted install (EX_DATAERR).
const ExitDataErr = 65

// newEngine creates a new engine with real implementations of all dependencies.
func newEngine() (*engine.Engine, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	cfgPath := paths.Config
	if configFile != "" {
		cfgPath = configFile
	}
	cfg, err := config.Load(cfgPath, paths)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return engine.New(
		fsops.NewRealFS(),
		hash.NewSHA1Hasher(),
		&clock.RealClock{},
		*paths,
		cfg,
		logger,
		reg,
	), nil
}

// newLogger builds the stderr logger. --log-level wins over config.yaml.
func newLogger(cfg config.Config) (*logrus.Logger, error) {
	levelName := cfg.LogLevel
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	logger := logrus.New()
	logger.SetOutput(errOut)
	logger.SetLevel(level)
	if jsonOutput {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
		})
	}
	return logger, nil
}

// signalContext derives a context cancelled on SIGINT or SIGTERM, so an
// interrupted install still unwinds its partial state.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatError formats an error for display on stderr.
func FormatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case installer.ShouldAbort(err):
		return ExitDataErr
	default:
		return 1
	}
}
