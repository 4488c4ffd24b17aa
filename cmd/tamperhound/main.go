package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/IvanShishkin/tamperhound/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorOrange = "\033[38;5;208m"
	colorGray   = "\033[38;5;245m"
)

// Process exit codes
const (
	exitClean      = 0
	exitTampered   = 1
	exitIncomplete = 2
	exitError      = 3
)

var version = "0.1.0"

// exitCodeError carries a non-zero exit code out of a command that otherwise
// succeeded
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app holds global flags and the process streams
type app struct {
	verbose    bool
	configFile string
	stdout     io.Writer
	stderr     io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	rootCmd := a.rootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return exitClean
	}

	var exit *exitCodeError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tamperhound",
		Short: "Tamperhound - file integrity verification against a trusted baseline",
		Long: `Verifies that monitored files have not changed since a trusted baseline
was recorded, using cryptographic content hashes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Config file (YAML, JSON or TOML)")

	// Add commands
	rootCmd.AddCommand(a.scanCmd())
	rootCmd.AddCommand(a.baselineCmd())
	rootCmd.AddCommand(a.hashCmd())
	rootCmd.AddCommand(a.algorithmsCmd())

	return rootCmd
}

// loadConfig reads configuration and builds the logger it asks for
func (a *app) loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return nil, nil, err
	}

	logger, err := a.newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// newLogger returns a development logger when verbose, otherwise a quiet
// JSON logger on stderr
func (a *app) newLogger(level string) (*zap.Logger, error) {
	if a.verbose {
		return zap.NewDevelopment()
	}

	lvl := zapcore.ErrorLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "json",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    zap.NewProductionEncoderConfig(),
	}
	return cfg.Build()
}
