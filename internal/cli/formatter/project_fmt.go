package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/strata/internal/domain"
)

// FormatProjectList renders projects in a bordered table.
func FormatProjectList(projects []*domain.Project, loc *time.Location) string {
	headers := []string{"ID", "NAME", "STARTED", "KIND"}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		kind := StyleGreen.Render("project")
		if p.Template {
			kind = StylePurple.Render("template")
		}
		rows = append(rows, []string{TruncID(p.ID), Bold(p.Name), Stamp(p.Started, loc), kind})
	}
	return RenderBox("Projects", RenderTable(headers, rows))
}

// FormatProject renders a single project card.
func FormatProject(p *domain.Project, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(StyleBold.Render(p.Name) + "\n\n")
	fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("ID     "), p.ID)
	fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("TENANT "), p.TenantID)
	fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("START  "), Stamp(p.Started, loc))
	if p.Template {
		fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("KIND   "), StylePurple.Render("template"))
	}
	if p.Description != "" {
		b.WriteString("\n" + p.Description + "\n")
	}
	return RenderBox("", strings.TrimRight(b.String(), "\n"))
}

// FormatProjectCopy summarises a project duplication.
func FormatProjectCopy(p *domain.Project, statuses, types, hlrs, backlogs, tasks, links int) string {
	return fmt.Sprintf("Created %s %s [%s]: %d statuses, %d task types, %d HLRs, %d backlog items, %d tasks, %d links",
		kindOf(p), Bold(p.Name), TruncID(p.ID), statuses, types, hlrs, backlogs, tasks, links)
}

func kindOf(p *domain.Project) string {
	if p.Template {
		return "template"
	}
	return "project"
}
