package output

import (
	"encoding/json"

	"github.com/namelens/draftprune/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatPage renders the raw server objects of a page as JSON.
func (f *JSONFormatter) FormatPage(page *core.Page) (string, error) {
	if page.Empty() {
		return "", nil
	}

	items := make([]any, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Raw != nil {
			items = append(items, item.Raw)
			continue
		}
		items = append(items, item)
	}

	return f.marshal(map[string]any{
		"count":   page.TotalCount,
		"results": items,
	})
}

// FormatDeletions renders journal entries as JSON.
func (f *JSONFormatter) FormatDeletions(records []core.DeletionRecord) (string, error) {
	if records == nil {
		records = []core.DeletionRecord{}
	}
	return f.marshal(records)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
