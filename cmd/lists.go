package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/models"
	"github.com/marcus/tdo/internal/output"
)

var listsCmd = &cobra.Command{
	Use:     "lists",
	Short:   "Manage lists",
	GroupID: "lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listsLsCmd.RunE(cmd, args)
	},
}

var listsLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "Show lists with todo counts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		lists, err := database.ListLists(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			if lists == nil {
				lists = []models.ListSummary{}
			}
			return output.JSON(lists)
		}
		if len(lists) == 0 {
			fmt.Println("No lists")
			return nil
		}
		for i := range lists {
			fmt.Println(output.FormatListSummary(&lists[i]))
		}
		return nil
	},
}

var listsCreateCmd = &cobra.Command{
	Use:     "create <name...>",
	Aliases: []string{"new"},
	Short:   "Create a list",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		l, err := database.CreateList(cmd.Context(), strings.Join(args, " "), currentUser())
		if err != nil {
			return err
		}
		output.Success("CREATED list %s %s", output.ShortID(l.ID), l.Name)
		return nil
	},
}

var listsRenameCmd = &cobra.Command{
	Use:   "rename <list> <name...>",
	Short: "Rename a list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		l, err := database.RenameList(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return listHint(cmd.Context(), database, args[0], err)
		}
		output.Success("RENAMED list %s to %s", output.ShortID(l.ID), l.Name)
		return nil
	},
}

var listsDeleteCmd = &cobra.Command{
	Use:     "delete <list>",
	Aliases: []string{"rm"},
	Short:   "Delete a list and its todos",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		l, removed, err := database.DeleteList(cmd.Context(), args[0])
		if err != nil {
			return listHint(cmd.Context(), database, args[0], err)
		}
		output.Success("DELETED list %s (%d todos)", l.Name, removed)
		return nil
	},
}

func init() {
	listsCmd.Flags().Bool("json", false, "output JSON")
	listsLsCmd.Flags().Bool("json", false, "output JSON")
	listsCmd.AddCommand(listsLsCmd, listsCreateCmd, listsRenameCmd, listsDeleteCmd)
	rootCmd.AddCommand(listsCmd)
}
