package output

import (
	"fmt"
	"strings"

	"github.com/namelens/draftprune/internal/core"
)

// TextFormatter renders one line per item.
type TextFormatter struct{}

// FormatPage renders "Identifier: <id> | Created: <time>" lines.
func (f *TextFormatter) FormatPage(page *core.Page) (string, error) {
	if page.Empty() {
		return "", nil
	}
	lines := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		lines = append(lines, fmt.Sprintf("Identifier: %s | Created: %s", valueOrNA(item.Identifier), valueOrNA(item.CreationTime)))
	}
	return strings.Join(lines, "\n"), nil
}

// FormatDeletions renders one line per journal entry.
func (f *TextFormatter) FormatDeletions(records []core.DeletionRecord) (string, error) {
	lines := make([]string, 0, len(records))
	for _, record := range records {
		line := fmt.Sprintf("%s %s %s", record.RecordedAt.UTC().Format("2006-01-02T15:04:05Z"), record.Status, record.Identifier)
		if record.Message != "" {
			line += " (" + record.Message + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
