package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/models"
	"github.com/marcus/tdo/internal/output"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List todos",
	GroupID: "core",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		ctx := cmd.Context()

		var filter models.TodoFilter
		filter.IncludeDone, _ = cmd.Flags().GetBool("all")
		filter.OnlyDone, _ = cmd.Flags().GetBool("done")
		filter.Search, _ = cmd.Flags().GetString("search")

		var list *models.List
		if ref, _ := cmd.Flags().GetString("list"); ref != "" {
			if list, err = database.GetList(ctx, ref); err != nil {
				return listHint(ctx, database, ref, err)
			}
			filter.ListID = list.ID
		}

		todos, err := database.ListTodos(ctx, filter)
		if err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			if todos == nil {
				todos = []models.Todo{}
			}
			return output.JSON(todos)
		}

		if list != nil {
			fmt.Println(output.SectionHeader(list.Name))
		}
		if len(todos) == 0 {
			fmt.Println("No todos")
			return nil
		}
		for i := range todos {
			fmt.Println(output.FormatTodoShort(&todos[i]))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show a todo",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		todo, err := database.GetTodo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(todo)
		}
		list, _ := database.GetList(cmd.Context(), todo.ListID)
		fmt.Print(output.FormatTodoLong(todo, list))
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("list", "l", "", "only todos in this list")
	listCmd.Flags().BoolP("all", "a", false, "include completed todos")
	listCmd.Flags().Bool("done", false, "only completed todos")
	listCmd.Flags().StringP("search", "s", "", "filter by description")
	listCmd.Flags().Bool("json", false, "output JSON")
	showCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(listCmd, showCmd)
}
