package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// errReported marks a failure already shown to the user.
var errReported = errors.New("reported")

func (a *app) showCmd() *cobra.Command {
	var (
		search string
		more   []string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Fetch the tasks and draw the board",
		Long: `Fetch the tasks and draw the board.

Examples:
  board show
  board show --search login
  board show --more backlog --more backlog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.board.Refresh(cmd.Context()); err != nil {
				return err
			}
			a.board.Search(search)
			for _, raw := range more {
				col, err := model.ParseColumn(raw)
				if err != nil {
					return err
				}
				a.board.LoadMore(col)
			}
			a.print()
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only show tasks whose title or description contains TEXT")
	cmd.Flags().StringArrayVar(&more, "more", nil, "load another page of COLUMN (repeatable)")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	var d board.Draft
	var column string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.board.OpenCreate()
			d.Column = model.Column(column)
			if err := a.save(cmd, d); err != nil {
				return err
			}
			a.settleAndPrint()
			return nil
		},
	}
	cmd.Flags().StringVarP(&d.Title, "title", "t", "", "task title")
	cmd.Flags().StringVarP(&d.Description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&column, "column", "c", string(model.ColumnBacklog), "backlog, inprogress, review or done")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var title, description, column string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task's title, description or column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.findTask(cmd, args[0])
			if err != nil {
				return err
			}
			a.board.OpenEdit(task)

			d := a.board.Draft()
			if cmd.Flags().Changed("title") {
				d.Title = title
			}
			if cmd.Flags().Changed("description") {
				d.Description = description
			}
			if cmd.Flags().Changed("column") {
				d.Column = model.Column(column)
			}
			if err := a.save(cmd, d); err != nil {
				return err
			}
			a.settleAndPrint()
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&column, "column", "c", "", "new column")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.board.Delete(cmd.Context(), id); err != nil {
				return err
			}
			a.settleAndPrint()
			return nil
		},
	}
}

func (a *app) moveCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "move ID COLUMN",
		Short: "Drag a task into COLUMN",
		Long: `Drag a task into COLUMN, at --index or at the end.

Examples:
  board move 12 review
  board move 12 review --index 0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.findTask(cmd, args[0])
			if err != nil {
				return err
			}
			col, err := model.ParseColumn(args[1])
			if err != nil {
				return err
			}

			target := board.DropAtEnd(col)
			if index >= 0 {
				target = board.DropAt(col, index)
			}
			a.board.DragStart(task)
			a.board.DragOver(col, target.Index)
			if !a.board.Drop(cmd.Context(), target) {
				return fmt.Errorf("task %d could not be moved", task.ID)
			}

			a.settleAndPrint()
			return nil
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", board.AtEnd, "insert position within the column (default: end)")
	return cmd
}

func (a *app) save(cmd *cobra.Command, d board.Draft) error {
	err := a.board.Save(cmd.Context(), d)
	if errors.Is(err, board.ErrEmptyTitle) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Please enter a task title")
		a.board.CloseModal()
		return errReported
	}
	return err
}

// settleAndPrint waits for the refetch queued by a mutation and draws the
// board.
func (a *app) settleAndPrint() {
	a.settle()
	a.print()
}

func (a *app) findTask(cmd *cobra.Command, raw string) (model.Task, error) {
	id, err := parseID(raw)
	if err != nil {
		return model.Task{}, err
	}
	if err := a.board.Refresh(cmd.Context()); err != nil {
		return model.Task{}, err
	}
	for _, t := range a.board.Store().Tasks() {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("task %d not found", id)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}
