package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/namelens/draftprune/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatPage renders a page as a table.
func (f *TableFormatter) FormatPage(page *core.Page) (string, error) {
	if page.Empty() {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Identifier", "Created", "Expires", "Ready", "Public"})

	for _, item := range page.Items {
		t.AppendRow(table.Row{
			valueOrNA(item.Identifier),
			valueOrNA(item.CreationTime),
			valueOrNA(item.ExpiryTime),
			yesNo(item.Ready),
			yesNo(item.Public),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d of %d", len(page.Items), page.TotalCount)})
	return t.Render(), nil
}

// FormatDeletions renders journal entries as a table.
func (f *TableFormatter) FormatDeletions(records []core.DeletionRecord) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Recorded", "Run", "Identifier", "Status", "Code", "Message"})

	deleted := 0
	for _, record := range records {
		code := "-"
		if record.StatusCode != 0 {
			code = strconv.Itoa(record.StatusCode)
		}
		if record.Status == core.DeletionDeleted {
			deleted++
		}
		t.AppendRow(table.Row{
			record.RecordedAt.UTC().Format(time.RFC3339),
			shortRunID(record.RunID),
			record.Identifier,
			string(record.Status),
			code,
			record.Message,
		})
	}

	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d/%d deleted", deleted, len(records)), "", ""})
	return t.Render(), nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
