package validation

import (
	"fmt"
	"strings"

	"github.com/conneroisu/winforge/internal/types"
)

const reportBanner = "=================================================="

// RenderReport formats a validation result as the fixed-layout text report
// shown by the validate and build commands. Sections always render in the
// same order: status, errors, warnings, suggestions.
func RenderReport(result *types.ValidationResult) string {
	var b strings.Builder

	b.WriteString(reportBanner + "\n")
	b.WriteString("  Answer File Validation Report\n")
	b.WriteString(reportBanner + "\n")

	if result.Valid {
		b.WriteString("Status: ✅ VALID\n")
	} else {
		b.WriteString("Status: ❌ INVALID\n")
	}

	if len(result.Errors) > 0 {
		b.WriteString(fmt.Sprintf("\nErrors (%d):\n", len(result.Errors)))
		for _, msg := range result.Errors {
			b.WriteString("  ❌ " + msg + "\n")
		}
	}

	if len(result.Warnings) > 0 {
		b.WriteString(fmt.Sprintf("\nWarnings (%d):\n", len(result.Warnings)))
		for _, msg := range result.Warnings {
			b.WriteString("  ⚠️  " + msg + "\n")
		}
	}

	if len(result.Suggestions) > 0 {
		b.WriteString(fmt.Sprintf("\nSuggestions (%d):\n", len(result.Suggestions)))
		for _, msg := range result.Suggestions {
			b.WriteString("  💡 " + msg + "\n")
		}
	}

	b.WriteString(reportBanner + "\n")
	return b.String()
}
