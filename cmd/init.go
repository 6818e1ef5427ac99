package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/db"
	"github.com/marcus/tdo/internal/output"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Create the local database",
	Long:    `Creates the data directory and the SQLite database that holds todos and the upload queue.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(db.Path(cfg.DataDir)); err == nil {
			output.Warning("%s already exists", db.Path(cfg.DataDir))
			return nil
		}

		database, err := db.Initialize(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer database.Close()

		fmt.Printf("INITIALIZED %s\n", db.Path(cfg.DataDir))
		if cfg.RequireAuth() != nil {
			fmt.Println("Set supabase_url and supabase_anon_key with 'tdo config set' to enable sync.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
