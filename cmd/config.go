package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sentinel"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage sentinel configuration.

Running bare 'sentinel config' is the same as 'sentinel config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# sentinel configuration
# See: sentinel config show (for effective values and sources)

# Data directory (default: ~/.config/sentinel)
# data_dir: {{ .DataDir }}

# Generated dataset, trained artifacts and run registry
# dataset_path: {{ .DatasetPath }}
# artifact_dir: {{ .ArtifactDir }}
# db_path: {{ .DBPath }}

# Prediction server port (default: 8000)
port: {{ .Port }}

# Dataset generation
generate:
  rows: {{ .Rows }}
  seed: {{ .GenerateSeed }}
  # "rules" derives labels from features, "random" samples them independently
  strategy: "{{ .Strategy }}"

# Training
train:
  seed: {{ .TrainSeed }}
  test_size: {{ .TestSize }}
  cv_folds: {{ .CVFolds }}
  # Cross-validated grid search (default: true)
  search: {{ .Search }}

# Anthropic API, used by 'sentinel predict --explain'
anthropic:
  # api_key: sk-ant-...
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	DataDir        string
	DatasetPath    string
	ArtifactDir    string
	DBPath         string
	Port           int
	Rows           int
	GenerateSeed   int
	Strategy       string
	TrainSeed      int
	TestSize       float64
	CVFolds        int
	Search         bool
	AnthropicModel string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DataDir:        viper.GetString("data_dir"),
		DatasetPath:    viper.GetString("dataset_path"),
		ArtifactDir:    viper.GetString("artifact_dir"),
		DBPath:         viper.GetString("db_path"),
		Port:           viper.GetInt("port"),
		Rows:           viper.GetInt("generate.rows"),
		GenerateSeed:   viper.GetInt("generate.seed"),
		Strategy:       viper.GetString("generate.strategy"),
		TrainSeed:      viper.GetInt("train.seed"),
		TestSize:       viper.GetFloat64("train.test_size"),
		CVFolds:        viper.GetInt("train.cv_folds"),
		Search:         viper.GetBool("train.search"),
		AnthropicModel: viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "data_dir", EnvVar: "SENTINEL_DATA_DIR"},
	{Key: "dataset_path", EnvVar: "SENTINEL_DATASET_PATH"},
	{Key: "artifact_dir", EnvVar: "SENTINEL_ARTIFACT_DIR"},
	{Key: "db_path", EnvVar: "SENTINEL_DB_PATH"},
	{Key: "port", EnvVar: "SENTINEL_PORT"},
	{Key: "generate.rows", EnvVar: "SENTINEL_GENERATE_ROWS"},
	{Key: "generate.seed", EnvVar: "SENTINEL_GENERATE_SEED"},
	{Key: "generate.strategy", EnvVar: "SENTINEL_GENERATE_STRATEGY"},
	{Key: "train.seed", EnvVar: "SENTINEL_TRAIN_SEED"},
	{Key: "train.test_size", EnvVar: "SENTINEL_TRAIN_TEST_SIZE"},
	{Key: "train.cv_folds", EnvVar: "SENTINEL_TRAIN_CV_FOLDS"},
	{Key: "train.workers", EnvVar: "SENTINEL_TRAIN_WORKERS"},
	{Key: "train.search", EnvVar: "SENTINEL_TRAIN_SEARCH"},
	{Key: "anthropic.api_key", EnvVar: "SENTINEL_ANTHROPIC_API_KEY"},
	{Key: "anthropic.model", EnvVar: "SENTINEL_ANTHROPIC_MODEL"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Key == "anthropic.api_key" && viper.GetString(k.Key) != "" {
			val = "********"
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'sentinel config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
