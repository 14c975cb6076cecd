package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cohortly-dev/tracker/pkg/config"
	"github.com/cohortly-dev/tracker/pkg/github"
	"github.com/cohortly-dev/tracker/pkg/pipeline"
	"github.com/cohortly-dev/tracker/pkg/store"
)

var rootCmd = &cobra.Command{
	Use:           "tracker",
	Short:         "Track cohort contribution activity across GitHub forks.",
	Long:          `Tracker polls GitHub activity for a cohort of learners, stores per-day metrics, and builds leaderboards, daily views, and alerts.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(dailyCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(statusCmd)

	rootCmd.PersistentFlags().String("token", "", "GitHub personal access token (falls back to the gh CLI)")
	rootCmd.PersistentFlags().String("app-id", "", "GitHub App ID for App authentication")
	rootCmd.PersistentFlags().String("app-key", "", "Path to the GitHub App private key PEM")
	rootCmd.PersistentFlags().String("db-backend", string(store.SQLiteBackend), "Store backend: sqlite or mysql or postgresql")
	rootCmd.PersistentFlags().String("db-connect", "", "Database connection string (sqlite file path, or DSN for mysql/postgresql)")
	rootCmd.PersistentFlags().String("run-config", "", "Path to a key=value run configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output with detailed diagnostics")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		slog.Error("Error binding root flags", "error", err)
		os.Exit(1)
	}

	backfillCmd.Flags().String("from", "", "First day to backfill (YYYY-MM-DD)")
	backfillCmd.Flags().String("to", "", "Last day to backfill (YYYY-MM-DD, default today)")
	if err := viper.BindPFlags(backfillCmd.Flags()); err != nil {
		slog.Error("Error binding backfill flags", "error", err)
		os.Exit(1)
	}
}

// initConfig wires environment variables into Viper.
func initConfig() {
	viper.SetEnvPrefix("TRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// setup builds the pipeline and its collaborators from the resolved
// configuration. The returned cleanup closes the store.
func setup(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	logLevel := slog.LevelInfo
	if viper.GetBool("verbose") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	source := newFileConfigSource(viper.GetString("run-config"))
	kv, err := source.ConfigValues(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read run config: %w", err)
	}
	cfg, err := config.Parse(kv)
	if err != nil {
		return nil, nil, err
	}

	client, err := newClient(ctx)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(store.Backend(viper.GetString("db-backend")), viper.GetString("db-connect"))
	if err != nil {
		return nil, nil, err
	}

	sink := pipeline.NewConsoleSink(os.Stdout)
	p := pipeline.New(client, st, sink, cfg)
	cleanup := func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}
	return p, cleanup, nil
}

// newClient builds the GitHub client: App auth when an App ID is set,
// otherwise a token from the flag/env or the gh CLI.
func newClient(ctx context.Context) (*github.Client, error) {
	cfg := github.Config{
		HTTPTimeout: 30 * time.Second,
		CacheTTL:    30 * time.Minute,
	}

	if appID := viper.GetString("app-id"); appID != "" {
		cfg.UseAppAuth = true
		cfg.AppID = appID
		cfg.AppKeyPath = viper.GetString("app-key")
		return github.New(ctx, cfg)
	}

	token := viper.GetString("token")
	if token == "" {
		var err error
		token, err = ghCLIToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("no token configured and gh CLI lookup failed: %w", err)
		}
	}
	cfg.Token = token
	return github.New(ctx, cfg)
}

// ghCLIToken retrieves the GitHub token from the gh CLI.
func ghCLIToken(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", "auth", "token")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get GitHub token: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}
