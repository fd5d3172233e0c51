package formatter

import (
	"errors"
	"strings"

	"github.com/alexanderramin/strata/internal/domain"
)

// FormatError renders err as "Error: CODE: message", adding the offending
// field and conflicting ids when the error carries them. Wrapping context is
// dropped for domain errors.
func FormatError(err error) string {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		return StyleRedBold.Render("Error:") + " " + err.Error()
	}
	var b strings.Builder
	b.WriteString(StyleRedBold.Render("Error:") + " " + derr.Error())
	if derr.Field != "" {
		b.WriteString("\n  " + Dim("field: ") + derr.Field)
	}
	if len(derr.ConflictIDs) > 0 {
		b.WriteString("\n  " + Dim("conflicts: ") + strings.Join(derr.ConflictIDs, ", "))
	}
	return b.String()
}
