package formatter

import (
	"fmt"

	"github.com/alexanderramin/strata/internal/domain"
)

// StatusRow is one entry of an ordered status listing.
type StatusRow struct {
	Status *domain.TaskStatus
	Label  string
	Depth  int
}

// FormatStatusList renders a project's workflow as a tree.
func FormatStatusList(rows []StatusRow) string {
	if len(rows) == 0 {
		return Dim("No statuses.") + "\n"
	}
	items := make([]TreeItem, 0, len(rows))
	for _, r := range rows {
		st := r.Status
		title := StatusStyle(st.Name, st.FinalStage).Render(st.Name)
		var detail string
		switch {
		case st.Protected:
			detail = "protected"
		case st.FinalStage:
			detail = "final"
		case st.RottingDays > 0:
			detail = fmt.Sprintf("rots after %dd", st.RottingDays)
		}
		items = append(items, TreeItem{
			Label:  Position(r.Label, st.OrderIndex),
			Title:  title,
			Level:  r.Depth,
			Detail: detail,
		})
	}
	MarkLast(items)
	return Header("Statuses") + "\n" + RenderTree(items)
}
