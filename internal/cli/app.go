package cli

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/strata/internal/artifact"
	"github.com/alexanderramin/strata/internal/db"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/recurrence"
	"github.com/alexanderramin/strata/internal/repository"
	"github.com/alexanderramin/strata/internal/service"
	"github.com/spf13/cobra"
)

// App holds the services the commands call plus the invocation defaults
// that the global flags override.
type App struct {
	Projects   service.ProjectService
	Statuses   service.TaskStatusService
	Tasks      service.TaskService
	Backlogs   service.BacklogService
	Schedule   service.ScheduleService
	Recurrence service.RecurrenceService
	Clones     service.CloneService
	TaskTree   service.HierarchyService[*domain.Task]
	StatusTree service.HierarchyService[*domain.TaskStatus]

	Tenant   string
	User     string
	Location *time.Location
	// Confirm, when set, is asked before a date conflict fails a command.
	Confirm ConfirmFunc
}

// WireOptions carries everything Wire needs besides the connection.
type WireOptions struct {
	Tenant         string
	User           string
	Location       *time.Location
	MaxRecurrences int
	Sink           artifact.Sink
	Observers      []service.UseCaseObserver
	Confirm        ConfirmFunc
}

// Wire builds an App over one database.
func Wire(conn *sql.DB, opts WireOptions) *App {
	projects := repository.NewSQLiteProjectRepo(conn)
	statuses := repository.NewSQLiteTaskStatusRepo(conn)
	catalog := repository.NewSQLiteCatalogRepo(conn)
	backlogs := repository.NewSQLiteBacklogRepo(conn)
	tasks := repository.NewSQLiteTaskRepo(conn)
	links := repository.NewSQLiteTaskLinkRepo(conn)
	uow := db.NewSQLiteUnitOfWork(conn)
	rules := recurrence.NewRRuleEvaluator()
	obs := opts.Observers

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &App{
		Projects: service.NewProjectService(projects, catalog, uow, obs...),
		Statuses: service.NewTaskStatusService(statuses, uow, obs...),
		Tasks: service.NewTaskService(service.TaskServiceDeps{
			Projects:       projects,
			Statuses:       statuses,
			Catalog:        catalog,
			Tasks:          tasks,
			Rules:          rules,
			MaxRecurrences: opts.MaxRecurrences,
			Sink:           opts.Sink,
			UoW:            uow,
		}, obs...),
		Backlogs:   service.NewBacklogService(backlogs, catalog, uow, obs...),
		Schedule:   service.NewScheduleService(tasks, uow, obs...),
		Recurrence: service.NewRecurrenceService(rules, uow, opts.MaxRecurrences, obs...),
		Clones:     service.NewCloneService(projects, statuses, catalog, backlogs, tasks, links, uow, obs...),
		TaskTree:   service.NewTaskHierarchyService(tasks, uow, obs...),
		StatusTree: service.NewTaskStatusHierarchyService(statuses, uow, obs...),

		Tenant:   opts.Tenant,
		User:     opts.User,
		Location: loc,
		Confirm:  opts.Confirm,
	}
}

// context returns the command context stamped with the acting user.
func (a *App) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.User != "" {
		ctx = service.WithActor(ctx, a.User)
	}
	return ctx
}

var localLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// parseTime accepts RFC 3339 or a local date/minute in the app's zone.
func (a *App) parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, a.Location); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339, YYYY-MM-DD or YYYY-MM-DDTHH:MM", s)
}

func (a *App) parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := a.parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// resolveProjectID matches input against project ids in the tenant: an exact
// id first, then a unique prefix.
func resolveProjectID(ctx context.Context, app *App, input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("project ID is required")
	}
	projects, err := app.Projects.List(ctx, app.Tenant, true)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, p := range projects {
		if p.ID == input {
			return p.ID, nil
		}
		if strings.HasPrefix(p.ID, input) {
			matches = append(matches, p.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", domain.NotFound("project", input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("project ID prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}

// resolveStatusID accepts a status id or a case-insensitive name; top-level
// statuses win over nested ones with the same name.
func resolveStatusID(ctx context.Context, app *App, projectID, input string) (*string, error) {
	if input == "" {
		return nil, nil
	}
	rows, err := app.Statuses.ListOrdered(ctx, app.Tenant, projectID, "")
	if err != nil {
		return nil, err
	}
	var best *domain.TaskStatus
	bestDepth := 0
	for _, r := range rows {
		st := r.Node
		if st.ID == input {
			return &st.ID, nil
		}
		if strings.EqualFold(st.Name, input) && (best == nil || r.Depth < bestDepth) {
			best, bestDepth = st, r.Depth
		}
	}
	if best == nil {
		return nil, domain.NotFound("status", input)
	}
	return &best.ID, nil
}
