// Package main is the CLI entry point for pointgate.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/pointgate/internal/daemon"
	"github.com/eliteGoblin/focusd/pointgate/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const binaryName = "pointgate"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Pay for distraction with productivity",
	Long: `pointgate watches which applications you use. Productive apps earn points,
entertainment apps spend them. When the balance runs out, the entertainment
app is closed and a challenge is shown that can lift the block early.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the engine as a background daemon",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon (lifts all blocks)",
	RunE:  runStop,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine in the foreground, logging to stderr",
	RunE:  runForeground,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec when spawning the daemon
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	dataDirFlag string
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default $"+infra.DataDirEnv+" or ~/.pointgate)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
}

// dataDir resolves --data-dir, then the environment, then ~/.pointgate.
func dataDir() (string, error) {
	return infra.ResolveDataDir(dataDirFlag)
}

func runStart(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	if st, ok := daemon.Running(infra.NewJSONStateStore(dir), pm, time.Now()); ok {
		fmt.Printf("%s is already running (pid %d)\n", binaryName, st.PID)
		return nil
	}

	pid, err := daemon.StartDaemon(dir)
	if err != nil {
		return err
	}

	// Wait a moment for the daemon to publish its state
	time.Sleep(500 * time.Millisecond)

	fmt.Printf("\n=== %s Started ===\n", binaryName)
	fmt.Printf("PID: %d\n", pid)
	fmt.Printf("Data directory: %s\n", dir)
	fmt.Printf("Log: %s\n", filepath.Join(dir, binaryName+".log"))
	fmt.Println("\nRun 'pointgate status' to see your balance.")
	fmt.Println("=====================")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	st, ok := daemon.Running(infra.NewJSONStateStore(dir), infra.NewProcessManager(), time.Now())
	if !ok {
		fmt.Println("Status: NOT RUNNING")
		return nil
	}
	if err := syscall.Kill(st.PID, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal daemon: %w", err)
	}
	fmt.Printf("Sent stop signal to daemon (pid %d)\n", st.PID)
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}

	// Set up logger (writes to <data-dir>/pointgate.log)
	logger := createLogger(dir)
	defer func() { _ = logger.Sync() }()

	return serve(dir, logger)
}

func runForeground(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	if st, ok := daemon.Running(infra.NewJSONStateStore(dir), infra.NewProcessManager(), time.Now()); ok {
		return fmt.Errorf("a daemon is already running (pid %d); run 'pointgate stop' first", st.PID)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return serve(dir, logger)
}

// serve builds the engine and runs it until SIGINT/SIGTERM.
func serve(dir string, logger *zap.Logger) error {
	engine, err := daemon.NewEngine(daemon.Options{
		DataDir:  dir,
		SelfName: filepath.Base(os.Args[0]),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build engine", zap.Error(err))
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("failed to close engine", zap.Error(err))
		}
	}()

	d, err := engine.Daemon()
	if err != nil {
		logger.Error("failed to assemble daemon", zap.Error(err))
		return err
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createLogger(dir string) *zap.Logger {
	if err := os.MkdirAll(dir, 0700); err != nil {
		logger, _ := zap.NewProduction()
		return logger
	}

	config := zap.NewProductionConfig()
	config.OutputPaths = []string{filepath.Join(dir, binaryName+".log")}
	config.ErrorOutputPaths = []string{filepath.Join(dir, binaryName+".error.log")}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// cliLogger is used by one-shot commands; warnings go to stderr.
func cliLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("%s %s (commit: %s, built: %s)\n",
			binaryName, Version, Commit, BuildTime)
	}
}
