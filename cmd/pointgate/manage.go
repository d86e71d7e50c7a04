package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/pointgate/internal/classify"
	"github.com/eliteGoblin/focusd/pointgate/internal/config"
	"github.com/eliteGoblin/focusd/pointgate/internal/daemon"
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
	"github.com/eliteGoblin/focusd/pointgate/internal/infra"
	"github.com/eliteGoblin/focusd/pointgate/internal/policy"
)

var blockCmd = &cobra.Command{
	Use:   "block <app>",
	Short: "Block an application now",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlock,
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <app>",
	Short: "Lift a block",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnblock,
}

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Answer the pending challenge (three lines, read from stdin)",
	RunE:  runChallenge,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage productive and entertainment apps",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show both registries",
	RunE:  runCategoriesList,
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <productive|entertainment> <app>...",
	Short: "Add apps to a category (moves them out of the other)",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCategoriesAdd,
}

var categoriesRemoveCmd = &cobra.Command{
	Use:   "remove <app>...",
	Short: "Remove apps from both categories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCategoriesRemove,
}

var categoriesPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List built-in app presets",
	RunE:  runCategoriesPresets,
}

var categoriesPresetCmd = &cobra.Command{
	Use:   "preset <id>...",
	Short: "Apply built-in presets (e.g. steam, dota2, editors)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCategoriesPreset,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration value (takes effect on next start)",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Maintain the encrypted points ledger",
}

var ledgerRotateKeyCmd = &cobra.Command{
	Use:   "rotate-key",
	Short: "Re-encrypt ledger.db under a new key (daemon must be stopped)",
	RunE:  runLedgerRotateKey,
}

var (
	blockMinutes    int
	blockIndefinite bool
	challengeAnswer string
)

func init() {
	blockCmd.Flags().IntVar(&blockMinutes, "minutes", 0, "Block duration in minutes (default from config)")
	blockCmd.Flags().BoolVar(&blockIndefinite, "indefinite", false, "Block until explicitly unblocked")
	challengeCmd.Flags().StringVar(&challengeAnswer, "response", "", "Response text instead of stdin (lines separated by \\n)")

	categoriesCmd.AddCommand(categoriesListCmd, categoriesAddCmd, categoriesRemoveCmd, categoriesPresetsCmd, categoriesPresetCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd)
	ledgerCmd.AddCommand(ledgerRotateKeyCmd)

	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(unblockCmd)
	rootCmd.AddCommand(challengeCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(ledgerCmd)
}

// submit queues cmd for the running daemon.
func submit(cmd domain.Command) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	if _, ok := daemon.Running(infra.NewJSONStateStore(dir), infra.NewProcessManager(), time.Now()); !ok {
		return fmt.Errorf("daemon is not running; start it with '%s start'", binaryName)
	}
	cmd.IssuedAt = time.Now()
	return infra.NewFileCommandQueue(dir).Submit(cmd)
}

func runBlock(cmd *cobra.Command, args []string) error {
	if blockIndefinite && blockMinutes != 0 {
		return fmt.Errorf("--minutes and --indefinite are mutually exclusive")
	}
	if blockMinutes < 0 {
		return fmt.Errorf("--minutes must be positive")
	}
	minutes := blockMinutes
	if blockIndefinite {
		minutes = -1
	}
	if err := submit(domain.Command{Kind: domain.CommandBlock, App: args[0], Minutes: minutes}); err != nil {
		return err
	}
	fmt.Printf("Block requested for %s\n", args[0])
	return nil
}

func runUnblock(cmd *cobra.Command, args []string) error {
	if err := submit(domain.Command{Kind: domain.CommandUnblock, App: args[0]}); err != nil {
		return err
	}
	fmt.Printf("Unblock requested for %s\n", args[0])
	return nil
}

func runChallenge(cmd *cobra.Command, args []string) error {
	response := strings.ReplaceAll(challengeAnswer, `\n`, "\n")
	if response == "" {
		fmt.Fprintln(os.Stderr, "Type three non-empty lines explaining why you need this app:")
		var err error
		response, err = readLines(cmd.InOrStdin(), 3)
		if err != nil {
			return err
		}
	}
	if err := submit(domain.Command{Kind: domain.CommandChallenge, Response: response}); err != nil {
		return err
	}
	fmt.Println("Response submitted. Run 'pointgate status' to check the result.")
	return nil
}

// readLines reads up to n lines from r.
func readLines(r io.Reader, n int) (string, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for len(lines) < n && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

func openClassifier() (*classify.Classifier, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return classify.NewClassifier(infra.NewJSONCategoryStore(dir), cliLogger()), nil
}

func runCategoriesList(cmd *cobra.Command, args []string) error {
	c, err := openClassifier()
	if err != nil {
		return err
	}
	reg := c.Registry()
	printList := func(title string, apps []string) {
		fmt.Printf("%s (%d):\n", title, len(apps))
		if len(apps) == 0 {
			fmt.Println("  (none)")
		}
		for _, app := range apps {
			fmt.Printf("  %s\n", app)
		}
	}
	printList("Productive", reg.Productive)
	printList("Entertainment", reg.Entertainment)
	return nil
}

func runCategoriesAdd(cmd *cobra.Command, args []string) error {
	c, err := openClassifier()
	if err != nil {
		return err
	}
	var add func(string) error
	switch domain.Category(args[0]) {
	case domain.CategoryProductive:
		add = c.AddProductive
	case domain.CategoryEntertainment:
		add = c.AddEntertainment
	default:
		return fmt.Errorf("unknown category %q (want %s or %s)", args[0], domain.CategoryProductive, domain.CategoryEntertainment)
	}
	for _, app := range args[1:] {
		if err := add(app); err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", domain.NormalizeApp(app), args[0])
	}
	return nil
}

func runCategoriesRemove(cmd *cobra.Command, args []string) error {
	c, err := openClassifier()
	if err != nil {
		return err
	}
	for _, app := range args {
		if err := c.RemoveProductive(app); err != nil {
			return err
		}
		if err := c.RemoveEntertainment(app); err != nil {
			return err
		}
		fmt.Printf("%s removed\n", domain.NormalizeApp(app))
	}
	return nil
}

func runCategoriesPresets(cmd *cobra.Command, args []string) error {
	for _, p := range policy.NewRegistry().GetAll() {
		fmt.Printf("%-10s %-24s %-14s %s\n", p.ID(), p.Name(), p.Category(), strings.Join(p.ProcessPatterns(), ", "))
	}
	return nil
}

func runCategoriesPreset(cmd *cobra.Command, args []string) error {
	c, err := openClassifier()
	if err != nil {
		return err
	}
	reg := policy.NewRegistry()
	for _, id := range args {
		p, err := reg.Get(id)
		if err != nil {
			return err
		}
		added, err := policy.Apply(p, c)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d apps filed as %s\n", p.Name(), len(added), p.Category())
	}
	return nil
}

func openConfig() (*config.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return config.Load(filepath.Join(dir, daemon.ConfigFile), cliLogger()), nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(store.Current())
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", store.Path(), data)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}
	cfg, err := setConfigValue(store.Current(), args[0], args[1])
	if err != nil {
		return err
	}
	if err := store.Update(cfg); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", args[0], args[1])
	fmt.Printf("Restart the daemon ('%s stop' then '%s start') to apply.\n", binaryName, binaryName)
	return nil
}

// setConfigValue round-trips cfg through a YAML map so keys match the file.
func setConfigValue(cfg config.Config, key, value string) (config.Config, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, err
	}
	fields := map[string]any{}
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return cfg, err
	}
	if _, ok := fields[key]; !ok {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return cfg, fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(keys, ", "))
	}

	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return cfg, fmt.Errorf("invalid value %q: %w", value, err)
	}
	fields[key] = parsed

	data, err = yaml.Marshal(fields)
	if err != nil {
		return cfg, err
	}
	var out config.Config
	if err := yaml.Unmarshal(data, &out); err != nil {
		return cfg, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return out, nil
}

func runLedgerRotateKey(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	if st, ok := daemon.Running(infra.NewJSONStateStore(dir), infra.NewProcessManager(), time.Now()); ok {
		return fmt.Errorf("daemon is running (pid %d); run '%s stop' first", st.PID, binaryName)
	}
	if err := daemon.RotateLedgerKey(dir); err != nil {
		return err
	}
	fmt.Printf("Ledger re-encrypted, new key in %s\n", infra.NewFileKeyProvider(dir).Path())
	return nil
}
