package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/sentinel/internal/output"
	"github.com/joescharf/sentinel/internal/predictor"
	"github.com/joescharf/sentinel/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - pull request triage models",
	Long: `sentinel generates a synthetic pull request dataset, trains three
classifiers on it (review feedback, triage priority, acceptance) and
serves their predictions over HTTP and MCP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/sentinel/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SENTINEL")
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config default rooted at dataDir.
func setDefaults(dataDir string) {
	viper.SetDefault("data_dir", dataDir)
	viper.SetDefault("dataset_path", filepath.Join(dataDir, "synthetic_pr_data.csv"))
	viper.SetDefault("artifact_dir", filepath.Join(dataDir, "artifacts"))
	viper.SetDefault("db_path", filepath.Join(dataDir, "sentinel.db"))
	viper.SetDefault("port", 8000)
	viper.SetDefault("generate.rows", 5000)
	viper.SetDefault("generate.seed", 42)
	viper.SetDefault("generate.strategy", "rules")
	viper.SetDefault("train.seed", 42)
	viper.SetDefault("train.test_size", 0.2)
	viper.SetDefault("train.cv_folds", 3)
	viper.SetDefault("train.workers", runtime.NumCPU())
	viper.SetDefault("train.search", true)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store and predictor are opened lazily so config/version run without them.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// loadPredictor loads the artifact bundle from the configured directory.
func loadPredictor() (*predictor.Service, error) {
	dir := viper.GetString("artifact_dir")
	svc, err := predictor.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'sentinel train' to create artifacts in %s)", err, dir)
	}
	return svc, nil
}

// flagOverrides copies explicitly set flags into viper. Several commands
// share a config key, so flags are applied per command instead of bound.
func flagOverrides(cmd *cobra.Command, flagToKey map[string]string) {
	for flag, key := range flagToKey {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			viper.Set(key, f.Value.String())
		}
	}
}
