// Package bankformat recognizes which bank produced a receipt and extracts
// payment fields from its OCR text using per-bank templates.
package bankformat

import (
	_ "embed"
	"fmt"
	"slices"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// LoadTemplates parses and validates a YAML template list.
// Rules are sorted by ascending priority; declaration order of templates is kept.
func LoadTemplates(data []byte) ([]model.BankTemplate, error) {
	var templates []model.BankTemplate
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidTemplate, err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: no templates defined", common.ErrInvalidTemplate)
	}

	seen := make(map[string]bool, len(templates))
	for i := range templates {
		tmpl := &templates[i]
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidTemplate, err)
		}
		if seen[tmpl.ID] {
			return nil, fmt.Errorf("%w: duplicate template id %q", common.ErrInvalidTemplate, tmpl.ID)
		}
		seen[tmpl.ID] = true

		for field, rules := range tmpl.Rules {
			slices.SortStableFunc(rules, func(a, b model.ExtractionRule) int {
				return a.Priority - b.Priority
			})
			tmpl.Rules[field] = rules
		}
	}
	return templates, nil
}

// DefaultTemplates returns the built-in template set.
func DefaultTemplates() ([]model.BankTemplate, error) {
	return LoadTemplates(defaultTemplates)
}
