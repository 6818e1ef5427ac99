package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/output"
)

var editCmd = &cobra.Command{
	Use:     "edit <id> <description...>",
	Short:   "Change a todo's description",
	GroupID: "core",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		todo, err := database.EditTodo(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		output.Success("UPDATED %s", output.ShortID(todo.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
