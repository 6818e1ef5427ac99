package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/db"
	"github.com/marcus/tdo/internal/input"
	"github.com/marcus/tdo/internal/models"
	"github.com/marcus/tdo/internal/output"
)

var addCmd = &cobra.Command{
	Use:     "add <description...>",
	Aliases: []string{"a"},
	Short:   "Add a todo",
	Example: `  tdo add buy milk
  tdo add --list Work "write the report"
  tdo add --batch @groceries.txt
  pbpaste | tdo add --batch -`,
	GroupID: "core",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptions := []string{strings.Join(args, " ")}
		if batch, _ := cmd.Flags().GetBool("batch"); batch {
			var err error
			if descriptions, err = input.Lines(args, os.Stdin); err != nil {
				return err
			}
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		ctx := cmd.Context()

		listRef, _ := cmd.Flags().GetString("list")
		jsonOut, _ := cmd.Flags().GetBool("json")
		user := currentUser()

		var added []models.Todo
		for _, desc := range descriptions {
			todo, err := database.AddTodo(ctx, db.NewTodo{
				ListRef:     listRef,
				Description: desc,
				CreatedBy:   user,
			})
			if err != nil {
				return listHint(ctx, database, listRef, err)
			}
			added = append(added, *todo)
			if !jsonOut {
				output.Success("ADDED %s %s", output.ShortID(todo.ID), todo.Description)
			}
		}

		if jsonOut {
			if len(added) == 1 {
				return output.JSON(added[0])
			}
			return output.JSON(added)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("list", "l", "", "list name or id (default Inbox)")
	addCmd.Flags().BoolP("batch", "b", false, "add one todo per argument; - reads lines from stdin, @file from a file")
	addCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(addCmd)
}
