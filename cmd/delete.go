package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/output"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"rm"},
	Short:   "Delete todos",
	GroupID: "core",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		var failed int
		for _, id := range args {
			todo, err := database.DeleteTodo(cmd.Context(), id)
			if err != nil {
				output.Error("%s: %v", id, err)
				failed++
				continue
			}
			output.Success("DELETED %s %s", output.ShortID(todo.ID), todo.Description)
		}
		return failedCount(failed, len(args))
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
