package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/config"
	"github.com/eliteGoblin/focusd/pointgate/internal/daemon"
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
	"github.com/eliteGoblin/focusd/pointgate/internal/economy"
	"github.com/eliteGoblin/focusd/pointgate/internal/infra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show balance, streak, blocks and what the daemon is tracking",
	RunE:  runStatus,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List visible windows and how each one is classified",
	RunE:  runScan,
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List installed applications and their category",
	RunE:  runApps,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show per-day points and per-app usage",
	RunE:  runReport,
}

var reportDays int

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "Number of days to include")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(reportCmd)
}

// openEconomy loads config and the ledger without starting anything.
func openEconomy(dir string, logger *zap.Logger) (*economy.Economy, func(), error) {
	cfg := config.Load(filepath.Join(dir, daemon.ConfigFile), logger).Current()
	store, err := daemon.OpenLedger(dir, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {}
	if c, ok := store.(interface{ Close() error }); ok {
		closeFn = func() { _ = c.Close() }
	}
	return economy.New(cfg, store, logger), closeFn, nil
}

// newOneShotEngine wires the engine for commands that run without the daemon.
func newOneShotEngine(dir string, logger *zap.Logger) (*daemon.Engine, error) {
	return daemon.NewEngine(daemon.Options{
		DataDir:        dir,
		SelfName:       filepath.Base(os.Args[0]),
		Logger:         logger,
		DisableJournal: true,
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	eco, closeFn, err := openEconomy(dir, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	stats := eco.Snapshot()

	fmt.Printf("\n=== %s Status ===\n\n", binaryName)

	st, running := daemon.Running(infra.NewJSONStateStore(dir), infra.NewProcessManager(), time.Now())
	if running {
		fmt.Printf("Daemon:     RUNNING (pid %d, up since %s)\n", st.PID, humanize.Time(st.StartedAt))
		fmt.Printf("Windows:    %d via %s\n", st.Windows, st.WindowSource)
		if st.DroppedEvents > 0 {
			fmt.Printf("Dropped:    %s window events\n", humanize.Comma(st.DroppedEvents))
		}
	} else {
		fmt.Println("Daemon:     NOT RUNNING")
	}

	fmt.Printf("Points:     %s\n", humanize.Comma(int64(stats.Points)))
	fmt.Printf("Streak:     %d (x%.1f)\n", stats.Streak, stats.Multiplier)
	fmt.Printf("Today:      +%s earned, -%s spent, %d productive min, %d entertainment min\n",
		humanize.Comma(int64(stats.Today.PointsEarned)),
		humanize.Comma(int64(stats.Today.PointsSpent)),
		stats.Today.ProductiveMinutes,
		stats.Today.EntertainmentMinutes)

	if !running {
		fmt.Println()
		return nil
	}

	if st.Current != nil {
		fmt.Printf("\nTracking:   %s (%s) since %s\n", st.Current.App, st.Current.Category, humanize.Time(st.Current.Since))
		if st.Current.Title != "" {
			fmt.Printf("            %q\n", st.Current.Title)
		}
	}

	if len(st.Blocked) > 0 {
		fmt.Println("\nBlocked:")
		for _, b := range st.Blocked {
			if b.Indefinite {
				fmt.Printf("  %-24s indefinitely\n", b.App)
				continue
			}
			fmt.Printf("  %-24s %s left\n", b.App, time.Duration(b.RemainingSeconds)*time.Second)
		}
	}
	if st.Challenge != "" {
		fmt.Printf("\nChallenge pending for %s. Answer with 'pointgate challenge'.\n", st.Challenge)
	}
	fmt.Println()
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	engine, err := newOneShotEngine(dir, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	engine.Observer.Tick(ctx)

	windows := engine.Observer.Snapshot()
	names := make([]string, 0, len(windows))
	for name := range windows {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Window source: %s\n\n", engine.WindowSourceName())
	if len(names) == 0 {
		fmt.Println("No windows found.")
		return nil
	}
	fmt.Printf("%-24s %-14s %-8s %s\n", "APP", "CATEGORY", "PID", "TITLE")
	for _, name := range names {
		w := windows[name]
		fmt.Printf("%-24s %-14s %-8d %s\n", name, engine.Classifier.Categorize(w.Title, name), w.PID, w.Title)
	}
	return nil
}

func runApps(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	engine, err := newOneShotEngine(dir, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	apps := engine.Enforcer.InstalledApps(ctx)
	if len(apps) == 0 {
		fmt.Println("No installed applications found.")
		return nil
	}
	for _, app := range apps {
		fmt.Printf("%-32s %s\n", app, engine.Classifier.Categorize("", app))
	}
	fmt.Printf("\n%s applications\n", humanize.Comma(int64(len(apps))))
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	dir, err := dataDir()
	if err != nil {
		return err
	}
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	eco, closeFn, err := openEconomy(dir, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	ledger := eco.Snapshot().Ledger

	now := time.Now()
	fmt.Printf("\n=== Last %d days ===\n\n", reportDays)
	fmt.Printf("%-12s %8s %8s %10s %10s\n", "DAY", "EARNED", "SPENT", "PROD MIN", "FUN MIN")
	for i := reportDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(economy.DayLayout)
		s := ledger.DailyStats[day]
		fmt.Printf("%-12s %8s %8s %10d %10d\n", day,
			humanize.Comma(int64(s.PointsEarned)),
			humanize.Comma(int64(s.PointsSpent)),
			s.ProductiveMinutes,
			s.EntertainmentMinutes)
	}

	journal, err := infra.OpenJournal(dir)
	if err != nil {
		fmt.Printf("\nActivity journal unavailable: %v\n", err)
		return nil
	}
	defer journal.Close()

	y, m, d := now.AddDate(0, 0, -(reportDays - 1)).Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	usage, err := journal.Usage(cmd.Context(), since)
	if err != nil {
		return err
	}
	printUsage(usage)
	return nil
}

func printUsage(usage []domain.AppUsage) {
	fmt.Println("\nBy app:")
	if len(usage) == 0 {
		fmt.Println("  no recorded activity")
		return
	}
	for _, u := range usage {
		fmt.Printf("  %-24s %-14s %10s  +%s/-%s\n", u.App, u.Category,
			(time.Duration(u.Seconds) * time.Second).String(),
			humanize.Comma(int64(u.Earned)),
			humanize.Comma(int64(u.Spent)))
	}
}
