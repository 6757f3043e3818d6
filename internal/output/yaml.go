package output

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/namelens/draftprune/internal/core"
)

// YAMLFormatter renders results as YAML documents.
type YAMLFormatter struct{}

// FormatPage renders the raw server objects of a page as YAML.
func (f *YAMLFormatter) FormatPage(page *core.Page) (string, error) {
	if page.Empty() {
		return "", nil
	}

	items := make([]map[string]any, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Raw != nil {
			items = append(items, item.Raw)
			continue
		}
		items = append(items, map[string]any{
			"identifier":    item.Identifier,
			"creation_time": item.CreationTime,
		})
	}

	return marshalYAML(map[string]any{
		"count":   page.TotalCount,
		"results": items,
	})
}

// FormatDeletions renders journal entries as YAML.
func (f *YAMLFormatter) FormatDeletions(records []core.DeletionRecord) (string, error) {
	if records == nil {
		records = []core.DeletionRecord{}
	}
	return marshalYAML(records)
}

func marshalYAML(value any) (string, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
