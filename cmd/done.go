package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/output"
)

func setCompleted(cmd *cobra.Command, ids []string, done bool) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	by := ""
	if done {
		by = currentUser()
	}

	var failed int
	for _, id := range ids {
		todo, err := database.SetCompleted(cmd.Context(), id, done, by)
		if err != nil {
			output.Error("%s: %v", id, err)
			failed++
			continue
		}
		if done {
			output.Success("DONE %s %s", output.ShortID(todo.ID), todo.Description)
		} else {
			output.Success("REOPENED %s %s", output.ShortID(todo.ID), todo.Description)
		}
	}
	return failedCount(failed, len(ids))
}

var doneCmd = &cobra.Command{
	Use:     "done <id>...",
	Aliases: []string{"complete"},
	Short:   "Mark todos completed",
	GroupID: "core",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCompleted(cmd, args, true)
	},
}

var undoneCmd = &cobra.Command{
	Use:     "undone <id>...",
	Aliases: []string{"reopen"},
	Short:   "Mark todos not completed",
	GroupID: "core",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCompleted(cmd, args, false)
	},
}

func init() {
	rootCmd.AddCommand(doneCmd, undoneCmd)
}
