package cli

import (
	"fmt"

	"github.com/alexanderramin/strata/internal/cli/formatter"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/service"
	"github.com/spf13/cobra"
)

func newProjectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		newProjectCreateCmd(app),
		newProjectListCmd(app),
		newProjectShowCmd(app),
		newProjectDuplicateCmd(app),
		newProjectRescheduleCmd(app),
		newProjectHLRCmd(app),
	)

	return cmd
}

func newProjectCreateCmd(app *App) *cobra.Command {
	var name, description, start string
	var template bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project with the default workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			started, err := app.parseTimePtr(start)
			if err != nil {
				return err
			}
			p := &domain.Project{Name: name, Description: description, Started: started}
			p.TenantID = app.Tenant
			p.Template = template

			if err := app.Projects.Create(app.context(cmd), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s [%s]\n", p.Name, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().StringVar(&start, "start", "", "Start (YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339)")
	cmd.Flags().BoolVar(&template, "template", false, "Create the project as a template")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newProjectListCmd(app *App) *cobra.Command {
	var templates bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := app.Projects.List(app.context(cmd), app.Tenant, templates)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatProjectList(projects, app.Location))
			return nil
		},
	}

	cmd.Flags().BoolVar(&templates, "templates", false, "Include templates")

	return cmd
}

func newProjectShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show project details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			id, err := resolveProjectID(ctx, app, args[0])
			if err != nil {
				return err
			}
			p, err := app.Projects.GetByID(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatProject(p, app.Location))
			return nil
		},
	}
}

func newProjectDuplicateCmd(app *App) *cobra.Command {
	var name, start string
	var template, fromTemplate bool

	cmd := &cobra.Command{
		Use:   "duplicate ID",
		Short: "Copy a project with its workflow, backlog and tasks",
		Long: "Copy a project with its workflow, backlog and tasks. Task dates move by the\n" +
			"difference between --start and the source start. Use --from-template to\n" +
			"instantiate a template and --template to save a copy as one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			id, err := resolveProjectID(ctx, app, args[0])
			if err != nil {
				return err
			}
			started, err := app.parseTimePtr(start)
			if err != nil {
				return err
			}
			res, err := app.Clones.DuplicateProject(ctx, id, service.DuplicateProjectOptions{
				Name:             name,
				Started:          started,
				Template:         template,
				IncludeTemplates: fromTemplate,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatProjectCopy(res.Project,
				len(res.Statuses), len(res.TaskTypes), len(res.HLRs), len(res.Backlogs), len(res.Tasks), res.Links.Len()))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name of the copy (defaults to the source name)")
	cmd.Flags().StringVar(&start, "start", "", "Start of the copy; task dates shift with it")
	cmd.Flags().BoolVar(&template, "template", false, "Save the copy as a template")
	cmd.Flags().BoolVar(&fromTemplate, "from-template", false, "Read template rows from the source")

	return cmd
}

func newProjectRescheduleCmd(app *App) *cobra.Command {
	var start string
	var cascade bool

	cmd := &cobra.Command{
		Use:   "reschedule ID",
		Short: "Move a project's start date",
		Long: "Move a project's start date. Tasks starting before the new date are\n" +
			"conflicts; --cascade shifts every task by the same delta instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			id, err := resolveProjectID(ctx, app, args[0])
			if err != nil {
				return err
			}
			newStart, err := app.parseTime(start)
			if err != nil {
				return err
			}
			res, err := app.Projects.Reschedule(ctx, id, newStart, cascade)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project %s now starts %s (moved %s)\n",
				res.Project.Name, formatter.Stamp(res.Project.Started, app.Location), res.Delta)
			if len(res.Shifted) > 0 {
				fmt.Fprint(out, formatter.FormatShifted("Shifted tasks", res.Shifted, app.Location))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "New start")
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Shift all tasks by the same delta")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newProjectHLRCmd(app *App) *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "hlr ID",
		Short: "Add a high-level requirement to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			id, err := resolveProjectID(ctx, app, args[0])
			if err != nil {
				return err
			}
			h := &domain.HLR{ProjectID: id, Name: name, Description: description}
			h.TenantID = app.Tenant
			if err := app.Projects.CreateHLR(ctx, h); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created HLR %s [%s]\n", h.Name, h.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Requirement name")
	cmd.Flags().StringVar(&description, "description", "", "Requirement description")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
