package cli

import (
	"fmt"

	"github.com/alexanderramin/strata/internal/cli/formatter"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Manage a project's task statuses",
	}

	cmd.AddCommand(
		newStatusAddCmd(app),
		newStatusMoveCmd(app),
		newStatusDeleteCmd(app),
		newStatusListCmd(app),
	)

	return cmd
}

func newStatusAddCmd(app *App) *cobra.Command {
	var projectRef, name, description, parent, colour string
	var order, rottingDays int
	var rebase, final bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a status to a project's workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			projectID, err := resolveProjectID(ctx, app, projectRef)
			if err != nil {
				return err
			}
			st := &domain.TaskStatus{
				ProjectID:   projectID,
				ParentID:    domain.StrPtr(parent),
				Name:        name,
				Description: description,
				OrderIndex:  order,
				RottingDays: rottingDays,
				FinalStage:  final,
				Colour:      colour,
			}
			st.TenantID = app.Tenant

			if err := app.Statuses.Create(ctx, st, rebase); err != nil {
				return err
			}
			label, err := app.StatusTree.FullOrderLabel(ctx, st.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created status %s at %s [%s]\n",
				st.Name, formatter.Position(label, st.OrderIndex), st.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectRef, "project", "", "Project ID or prefix")
	cmd.Flags().StringVar(&name, "name", "", "Status name")
	cmd.Flags().StringVar(&description, "description", "", "Status description")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent status ID")
	cmd.Flags().StringVar(&colour, "colour", "", "Display colour")
	cmd.Flags().IntVar(&order, "order", 0, "Position among siblings (0 appends)")
	cmd.Flags().IntVar(&rottingDays, "rotting-days", 0, "Days before a task in this status goes stale")
	cmd.Flags().BoolVar(&rebase, "rebase", false, "Shift siblings at --order and after down by one")
	cmd.Flags().BoolVar(&final, "final", false, "Mark as the final stage of its group")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newStatusMoveCmd(app *App) *cobra.Command {
	var order int
	var parent string

	cmd := &cobra.Command{
		Use:   "move ID",
		Short: "Reorder or reparent a status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			st, err := app.Statuses.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("parent") {
				st.ParentID = domain.StrPtr(parent)
			}
			if cmd.Flags().Changed("to") {
				st.OrderIndex = order
			}
			if err := app.Statuses.Update(ctx, st, cmd.Flags().Changed("to")); err != nil {
				return err
			}
			label, err := app.StatusTree.FullOrderLabel(ctx, st.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved status %s to %s\n", st.Name, formatter.Position(label, st.OrderIndex))
			return nil
		},
	}

	cmd.Flags().IntVar(&order, "to", 0, "Target position among siblings")
	cmd.Flags().StringVar(&parent, "parent", "", "New parent status ID (empty for top level)")

	return cmd
}

func newStatusDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Tombstone a status and move its tasks to unassigned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			moved, err := app.Statuses.Delete(app.context(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted status %s; %d tasks moved to %s\n",
				args[0], moved, domain.UnassignedStatusName)
			return nil
		},
	}
}

func newStatusListCmd(app *App) *cobra.Command {
	var projectRef, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's statuses in workflow order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			projectID, err := resolveProjectID(ctx, app, projectRef)
			if err != nil {
				return err
			}
			listed, err := app.Statuses.ListOrdered(ctx, app.Tenant, projectID, search)
			if err != nil {
				return err
			}
			rows := make([]formatter.StatusRow, 0, len(listed))
			for _, l := range listed {
				rows = append(rows, formatter.StatusRow{Status: l.Node, Label: l.Label, Depth: l.Depth})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatStatusList(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectRef, "project", "", "Project ID or prefix")
	cmd.Flags().StringVar(&search, "search", "", "Only statuses whose name contains this text")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
