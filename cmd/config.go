package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/config"
)

// configKeys lists the keys accepted by config get/set.
var configKeys = []string{
	"supabase_url",
	"supabase_anon_key",
	"powersync_url",
	"database_url",
	"database_schema",
	"data_dir",
	"log.level",
	"log.format",
	"log.file",
	"sync.auto",
	"sync.timeout",
	"sync.debounce",
	"sync.interval",
	"sync.backoff_min",
	"sync.backoff_max",
}

func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage tdo configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if !slices.Contains(configKeys, key) {
			return fmt.Errorf("unknown config key %q (valid: %v)", key, configKeys)
		}
		path, err := configPath(cmd)
		if err != nil {
			return err
		}
		if err := config.Set(path, key, val); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", key, val)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a config key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !slices.Contains(configKeys, args[0]) {
			return fmt.Errorf("unknown config key %q", args[0])
		}
		path, err := configPath(cmd)
		if err != nil {
			return err
		}
		v, err := config.Get(path, args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath(cmd)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd, configGetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
