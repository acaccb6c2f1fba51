package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/meanbrain/internal/config"
)

var configUser bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Show or change configuration",
	Long: `View or modify meanbrain configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the project
.meanbrain.yaml, or in ~/.config/meanbrain/config.yaml with --user.

Examples:
  meanbrain config
  meanbrain config execution.max_workers
  meanbrain config execution.max_workers 8
  meanbrain config --user ledger.retention_days 90`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configUser, "user", false, "Write to the user configuration instead of the project one")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if len(args) == 2 {
		path := config.GetProjectConfigPath()
		if configUser {
			path = config.GetUserConfigPath()
		} else if path == "" {
			path = config.ProjectFileName
		}
		if err := setConfigValue(path, args[0], args[1]); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Set %s in %s", args[0], path), colorOK)
		return nil
	}

	v := config.New()
	bindFlags(cmd, v)
	if _, err := config.LoadViper(v); err != nil {
		return err
	}
	if len(args) == 1 {
		if err := checkKey(args[0]); err != nil {
			return err
		}
		return writeYAML(cmd.OutOrStdout(), v.Get(args[0]))
	}
	return writeYAML(cmd.OutOrStdout(), v.AllSettings())
}

// checkKey rejects keys that are not configuration settings.
func checkKey(key string) error {
	if !slices.Contains(config.New().AllKeys(), key) {
		return config.Errorf(key, "unknown configuration key")
	}
	return nil
}

// setConfigValue sets key in the YAML file at path, creating it if
// needed. The value is parsed as YAML so numbers, booleans and lists keep
// their types.
func setConfigValue(path, key, raw string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("parse value %q: %w", raw, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeYAML(w io.Writer, value any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return err
	}
	return enc.Close()
}
