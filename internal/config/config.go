// Package config handles configuration loading and management for meanbrain.
// It supports XDG config paths, project-level overrides, environment
// variables and command-line flags bound by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/meanbrain/internal/levels"
)

// ProjectFileName is the project-level configuration file name.
const ProjectFileName = ".meanbrain.yaml"

// StateDirName is the per-run bookkeeping directory inside the output directory.
const StateDirName = ".meanbrain"

// Config holds all configuration for meanbrain.
type Config struct {
	OutDir    string          `mapstructure:"out_dir"`
	Inputs    InputsConfig    `mapstructure:"inputs"`
	Stages    StagesConfig    `mapstructure:"stages"`
	Levels    LevelsConfig    `mapstructure:"levels"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// InputsConfig names the datasets the pipeline starts from.
type InputsConfig struct {
	// Dsets are the subject datasets.
	Dsets []string `mapstructure:"dsets"`
	// Manifest is an optional YAML subject list merged into Dsets and Warpsets.
	Manifest string `mapstructure:"manifest"`
	// InitBase is the initial registration target.
	InitBase string `mapstructure:"init_base"`
	// ResizeBase is the fixed dataset means are resized onto. Defaults to
	// the affine mean.
	ResizeBase string `mapstructure:"resize_base"`
	// Warpsets seed the warps of a partial nonlinear run, one per subject.
	Warpsets []string `mapstructure:"warpsets"`
}

// StagesConfig toggles pipeline stages.
type StagesConfig struct {
	Center     bool `mapstructure:"center"`
	SkullStrip bool `mapstructure:"skullstrip"`
	// Automask replaces skull stripping with a dilated automask.
	Automask        bool `mapstructure:"automask"`
	Unifize         bool `mapstructure:"unifize"`
	Rigid           bool `mapstructure:"rigid"`
	Affine          bool `mapstructure:"affine"`
	Nonlinear       bool `mapstructure:"nonlinear"`
	AnisoSmooth     bool `mapstructure:"anisosmooth"`
	UnifizeTemplate bool `mapstructure:"unifize_template"`
	PrepOnly        bool `mapstructure:"prep_only"`
	RigidOnly       bool `mapstructure:"rigid_only"`
	AffineOnly      bool `mapstructure:"affine_only"`
	NLOnly          bool `mapstructure:"nl_only"`
}

// LevelsConfig selects nonlinear levels. -1 means unset.
type LevelsConfig struct {
	NLLevelOnly   int `mapstructure:"nl_level_only"`
	UpsampleLevel int `mapstructure:"upsample_level"`
	TypicalLevel  int `mapstructure:"typical_level"`
	AnisoIters    int `mapstructure:"aniso_iters"`
}

// ExecutionConfig controls how tasks run.
type ExecutionConfig struct {
	OKToExist   bool `mapstructure:"ok_to_exist"`
	Overwrite   bool `mapstructure:"overwrite"`
	KeepRmFiles bool `mapstructure:"keep_rm_files"`
	DryRun      bool `mapstructure:"dry_run"`
	// MaxWorkers bounds concurrent tasks; 0 means one per CPU.
	MaxWorkers int `mapstructure:"max_workers"`
	// FailFast stops the whole run at the first failed task instead of
	// only skipping that task's dependents.
	FailFast bool `mapstructure:"fail_fast"`
}

// LedgerConfig holds run ledger settings.
type LedgerConfig struct {
	// Path of the sqlite database; empty means <out_dir>/.meanbrain/state.db.
	Path string `mapstructure:"path"`
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver        string `mapstructure:"driver"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// New returns a viper instance with defaults set. Callers bind command-line
// flags to it before passing it to LoadViper.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (MEANBRAIN_EXECUTION_DRY_RUN, ...)
// 2. Project config (.meanbrain.yaml in current directory or parent)
// 3. User config (~/.config/meanbrain/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	return LoadViper(New())
}

// LoadViper is Load over a caller-prepared viper instance, so flags bound
// on v take precedence over every file and environment source.
func LoadViper(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix("MEANBRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := New()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize applies the implications between stage flags.
func (c *Config) normalize() {
	// Without affine there is no rigid either.
	if !c.Stages.Affine {
		c.Stages.Rigid = false
	}
	if c.Levels.NLLevelOnly != levels.None {
		c.Stages.NLOnly = true
	}
	c.OutDir = os.ExpandEnv(c.OutDir)
	c.Ledger.Path = os.ExpandEnv(c.Ledger.Path)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("out_dir", "iterative_template_dir")

	v.SetDefault("inputs.dsets", []string{})
	v.SetDefault("inputs.manifest", "")
	v.SetDefault("inputs.init_base", "")
	v.SetDefault("inputs.resize_base", "")
	v.SetDefault("inputs.warpsets", []string{})

	v.SetDefault("stages.center", true)
	v.SetDefault("stages.skullstrip", true)
	v.SetDefault("stages.automask", false)
	v.SetDefault("stages.unifize", true)
	v.SetDefault("stages.rigid", true)
	v.SetDefault("stages.affine", true)
	v.SetDefault("stages.nonlinear", true)
	v.SetDefault("stages.anisosmooth", false)
	v.SetDefault("stages.unifize_template", false)
	v.SetDefault("stages.prep_only", false)
	v.SetDefault("stages.rigid_only", false)
	v.SetDefault("stages.affine_only", false)
	v.SetDefault("stages.nl_only", false)

	v.SetDefault("levels.nl_level_only", levels.None)
	v.SetDefault("levels.upsample_level", levels.None)
	v.SetDefault("levels.typical_level", levels.None)
	v.SetDefault("levels.aniso_iters", 3)

	v.SetDefault("execution.ok_to_exist", false)
	v.SetDefault("execution.overwrite", false)
	v.SetDefault("execution.keep_rm_files", false)
	v.SetDefault("execution.dry_run", false)
	v.SetDefault("execution.max_workers", 0)
	v.SetDefault("execution.fail_fast", false)

	v.SetDefault("ledger.path", "")
	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.retention_days", 30)

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for meanbrain.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "meanbrain")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "meanbrain")
	}
	return filepath.Join(home, ".config", "meanbrain")
}

// findProjectConfig searches for .meanbrain.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	cfg := &Config{
		OutDir: "iterative_template_dir",
		Stages: StagesConfig{
			Center:     true,
			SkullStrip: true,
			Unifize:    true,
			Rigid:      true,
			Affine:     true,
			Nonlinear:  true,
		},
		Levels: LevelsConfig{
			NLLevelOnly:   levels.None,
			UpsampleLevel: levels.None,
			TypicalLevel:  levels.None,
			AnisoIters:    3,
		},
		Ledger: LedgerConfig{
			Driver:        "sqlite",
			RetentionDays: 30,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
	return cfg
}

// StartLevel is the first nonlinear level the run executes.
func (c *Config) StartLevel() int {
	if c.Levels.NLLevelOnly == levels.None {
		return 0
	}
	return c.Levels.NLLevelOnly
}

// Workers returns the effective concurrency limit.
func (c *Config) Workers() int {
	if c.Execution.MaxWorkers > 0 {
		return c.Execution.MaxWorkers
	}
	return runtime.NumCPU()
}

// StateDir is the bookkeeping directory inside the output directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.OutDir, StateDirName)
}

// LedgerPath returns the run ledger database path.
func (c *Config) LedgerPath() string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.StateDir(), "state.db")
}

// RetentionPeriod is how long finished runs stay in the ledger.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.Ledger.RetentionDays) * 24 * time.Hour
}
