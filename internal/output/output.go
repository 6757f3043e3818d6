package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/namelens/draftprune/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter renders pages of comparisons and journal entries.
type Formatter interface {
	FormatPage(page *core.Page) (string, error)
	FormatDeletions(records []core.DeletionRecord) (string, error)
}

// ParseFormat validates and normalizes a format string. An empty value
// resolves to fallback.
func ParseFormat(value string, fallback Format) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "":
		return fallback, nil
	case string(FormatText):
		return FormatText, nil
	case string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatTable:
		return &TableFormatter{}
	default:
		return &TextFormatter{}
	}
}

// PageWriter adapts a formatter to the driver's page renderer signature.
func PageWriter(format Format) func(w io.Writer, page *core.Page) error {
	formatter := NewFormatter(format)
	return func(w io.Writer, page *core.Page) error {
		rendered, err := formatter.FormatPage(page)
		if err != nil {
			return err
		}
		if rendered == "" {
			return nil
		}
		if !strings.HasSuffix(rendered, "\n") {
			rendered += "\n"
		}
		_, err = io.WriteString(w, rendered)
		return err
	}
}

// SummaryLine is the closing line of a run.
func SummaryLine(summary core.Summary) string {
	if summary.Mode == core.ModeList {
		return fmt.Sprintf("Done. Total comparisons listed: %d", summary.Listed)
	}
	return fmt.Sprintf("Done. Total comparisons deleted: %d", summary.Deleted)
}

func valueOrNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}
