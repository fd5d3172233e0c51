package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the top-level "strata" command and registers all
// subcommands against the provided App. --tenant and --user override the
// App defaults for one invocation.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "strata",
		Short:         "Hierarchical task ordering, scheduling and recurrence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&app.Tenant, "tenant", app.Tenant, "Tenant the command acts in")
	root.PersistentFlags().StringVar(&app.User, "user", app.User, "User stamped on writes")

	root.AddCommand(
		newProjectCmd(app),
		newStatusCmd(app),
		newTaskCmd(app),
		newBacklogCmd(app),
	)

	return root
}
