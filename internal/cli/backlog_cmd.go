package cli

import (
	"fmt"

	"github.com/alexanderramin/strata/internal/cli/formatter"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/spf13/cobra"
)

func newBacklogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "Manage backlog items under a high-level requirement",
	}

	cmd.AddCommand(
		newBacklogAddCmd(app),
		newBacklogMoveCmd(app),
		newBacklogDuplicateCmd(app),
		newBacklogListCmd(app),
	)

	return cmd
}

func newBacklogAddCmd(app *App) *cobra.Command {
	var hlrID, name, iWant, soThat string
	var points int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a backlog item to a requirement",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &domain.Backlog{HLRID: hlrID, Name: name, IWant: iWant, SoThat: soThat}
			b.TenantID = app.Tenant
			if cmd.Flags().Changed("points") {
				b.StoryPoints = &points
			}
			if err := app.Backlogs.Create(app.context(cmd), b); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created backlog item %s at %d [%s]\n", b.Name, b.OrderIndex, b.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&hlrID, "hlr", "", "Requirement ID")
	cmd.Flags().StringVar(&name, "name", "", "Item name")
	cmd.Flags().StringVar(&iWant, "i-want", "", "\"I want\" clause of the story")
	cmd.Flags().StringVar(&soThat, "so-that", "", "\"So that\" clause of the story")
	cmd.Flags().IntVar(&points, "points", 0, "Story points")
	_ = cmd.MarkFlagRequired("hlr")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBacklogMoveCmd(app *App) *cobra.Command {
	var order int

	cmd := &cobra.Command{
		Use:   "move ID",
		Short: "Place a backlog item at a position within its requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Backlogs.Move(app.context(cmd), args[0], order); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved backlog item to %d\n", order)
			return nil
		},
	}

	cmd.Flags().IntVar(&order, "to", 0, "Target position")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newBacklogDuplicateCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "duplicate ID",
		Short: "Copy a backlog item to the end of its requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := app.Backlogs.Duplicate(app.context(cmd), args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created backlog item %s at %d [%s]\n", b.Name, b.OrderIndex, b.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name of the copy (defaults to the source name)")

	return cmd
}

func newBacklogListCmd(app *App) *cobra.Command {
	var hlrID, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a requirement's backlog in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			listed, err := app.Backlogs.ListOrdered(app.context(cmd), app.Tenant, hlrID, search)
			if err != nil {
				return err
			}
			if len(listed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backlog items.")
				return nil
			}
			rows := make([][]string, 0, len(listed))
			for _, l := range listed {
				b := l.Node
				points := formatter.Dim("--")
				if b.StoryPoints != nil {
					points = fmt.Sprint(*b.StoryPoints)
				}
				rows = append(rows, []string{fmt.Sprint(b.OrderIndex), b.Name, points, formatter.TruncID(b.ID)})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable([]string{"#", "NAME", "POINTS", "ID"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&hlrID, "hlr", "", "Requirement ID")
	cmd.Flags().StringVar(&search, "search", "", "Only items whose name contains this text")
	_ = cmd.MarkFlagRequired("hlr")

	return cmd
}
