// Package cmd wires the switchyard CLI.
package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/switchyard/internal/config"
	"github.com/zjrosen/switchyard/internal/git/application"
	"github.com/zjrosen/switchyard/internal/git/gogit"
	"github.com/zjrosen/switchyard/internal/github"
	"github.com/zjrosen/switchyard/internal/infrastructure/sqlite"
	"github.com/zjrosen/switchyard/internal/log"
	"github.com/zjrosen/switchyard/internal/mru"
	"github.com/zjrosen/switchyard/internal/orchestrator"
	"github.com/zjrosen/switchyard/internal/paths"
	"github.com/zjrosen/switchyard/internal/telemetry"
	"github.com/zjrosen/switchyard/internal/terminal"
	"github.com/zjrosen/switchyard/internal/tracker"
	"github.com/zjrosen/switchyard/internal/ui/panel"
)

// cfg is the loaded configuration, shared by all subcommands.
var cfg config.Config

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "switchyard",
	Short: "A most-recently-used branch panel with terminal command dispatch",
	Long: `Switchyard tracks the branches you visit across repositories, keeps a
ranked most-recently-used list, and dispatches switch/pull/merge commands
into a single reusable tmux window so every git operation stays visible.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default ~/.switchyard/config.yaml)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	}
}

// loadConfig reads the YAML config over the compiled-in defaults. A missing
// file is fine; a malformed one is not.
func loadConfig() error {
	cfg = config.Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigFile(paths.ConfigPath())
	}
	v.SetEnvPrefix("SWITCHYARD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(err) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	store, db := openStore()
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	provider, err := gogit.NewProvider()
	if err != nil {
		return fmt.Errorf("starting git provider: %w", err)
	}
	defer func() { _ = provider.Close() }()

	if err := openRepositories(provider); err != nil {
		return err
	}

	tr := tracker.New(store, cfg.Git.Remote)
	host := terminal.NewTmuxHost(cfg.Terminal.TmuxSession)
	dispatcher := terminal.NewDispatcher(host, cfg.Terminal.Name)
	orch := orchestrator.New(provider, tr, dispatcher, host, cfg.Templates, cfg.Git.Remote)
	go orch.Run(ctx)

	deps := panel.Deps{
		Tracker:      tr,
		Actions:      orch,
		PullRequests: github.NewClient(cfg.GitHub),
		Sink:         log.Default(),
		Remote:       cfg.Git.Remote,
		LevelFilter:  log.Level(cfg.Logs.LevelFilter),
	}
	if db != nil {
		deps.Snapshots = db.Snapshots()
	}

	lipgloss.SetColorProfile(termenv.ColorProfile())
	zone.NewGlobal()
	program := tea.NewProgram(panel.New(deps), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running panel: %w", err)
	}
	return nil
}

// openStore opens the SQLite-backed MRU store, degrading to an in-memory
// store when the database cannot be opened. The returned DB is nil in the
// degraded case.
func openStore() (*mru.Store, *sqlite.DB) {
	db, err := sqlite.NewDB(paths.DatabasePath())
	if err != nil {
		log.ErrorErr(log.CatDB, "Database unavailable, branch history will not persist", err)
		return mru.NewStore(mru.NewMemoryPersistence()), nil
	}
	return mru.NewStore(db.MRU()), db
}

// openRepositories opens the configured repositories, or the working
// directory when none are configured. At least one must open.
func openRepositories(provider application.Provider) error {
	roots := cfg.Git.Repositories
	if len(roots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		roots = []string{cwd}
	}

	opened := 0
	for _, root := range roots {
		if _, err := provider.Open(paths.ExpandHome(root)); err != nil {
			log.Warn(log.CatGit, "Skipping repository", "path", root, "error", err)
			continue
		}
		opened++
	}
	if opened == 0 {
		return fmt.Errorf("none of the configured repositories could be opened")
	}
	return nil
}
