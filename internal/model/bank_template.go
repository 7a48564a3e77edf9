package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Field names a value that template rules extract.
type Field string

// Extractable fields.
const (
	FieldRecipient Field = "recipient"
	FieldAccount   Field = "account"
	FieldAmount    Field = "amount"

	// Optional fields; absence never fails an extraction.
	FieldTransactionID Field = "transaction_id"
	FieldDate          Field = "date"
)

// NameCase controls how recipient names are cased.
type NameCase string

// Name case options.
const (
	CaseUpper    NameCase = "upper"
	CaseTitle    NameCase = "title"
	CasePreserve NameCase = "preserve"
)

// ExtractionRule is one prioritized regular expression for a single field.
type ExtractionRule struct {
	compiled   *regexp.Regexp
	Pattern    string  `yaml:"pattern"`
	Group      string  `yaml:"group,omitempty"`
	Priority   int     `yaml:"priority"`
	Confidence float64 `yaml:"confidence"`
}

// Regexp returns the compiled pattern. Compile must have been called.
func (r *ExtractionRule) Regexp() *regexp.Regexp {
	return r.compiled
}

// Compile compiles the rule pattern and checks the named group exists.
func (r *ExtractionRule) Compile() error {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
	}
	if r.Group != "" && re.SubexpIndex(r.Group) < 0 {
		return fmt.Errorf("pattern %q has no group %q", r.Pattern, r.Group)
	}
	if re.NumSubexp() == 0 {
		return fmt.Errorf("pattern %q has no capture group", r.Pattern)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("pattern %q confidence must be between 0 and 1", r.Pattern)
	}
	r.compiled = re
	return nil
}

// NameFormat describes how a bank renders recipient names.
type NameFormat struct {
	Case          NameCase `yaml:"case,omitempty"`
	InitialPeriod string   `yaml:"initial_period,omitempty"` // "add", "remove" or empty
	Separators    []string `yaml:"separators,omitempty"`
	MaxLength     int      `yaml:"max_length,omitempty"`
}

// BankTemplate is static per-bank extraction configuration.
// Templates are loaded once at startup and never mutated afterwards.
type BankTemplate struct {
	Rules          map[Field][]ExtractionRule `yaml:"rules"`
	ID             string                     `yaml:"id"`
	Name           string                     `yaml:"name"`
	Keywords       []string                   `yaml:"keywords"`
	NameFormat     NameFormat                 `yaml:"name_format"`
	BaseConfidence float64                    `yaml:"base_confidence"`
}

// Validate compiles every rule and checks the template is usable.
func (t *BankTemplate) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("template id is required")
	}
	if len(t.Keywords) == 0 {
		return fmt.Errorf("template %s: at least one keyword is required", t.ID)
	}
	if t.BaseConfidence <= 0 || t.BaseConfidence > 1 {
		return fmt.Errorf("template %s: base confidence must be in (0,1]", t.ID)
	}
	for _, field := range []Field{FieldRecipient, FieldAccount} {
		if len(t.Rules[field]) == 0 {
			return fmt.Errorf("template %s: no rules for %s", t.ID, field)
		}
	}
	for field, rules := range t.Rules {
		for i := range rules {
			if err := rules[i].Compile(); err != nil {
				return fmt.Errorf("template %s field %s: %w", t.ID, field, err)
			}
		}
	}
	switch t.NameFormat.Case {
	case "", CaseUpper, CaseTitle, CasePreserve:
	default:
		return fmt.Errorf("template %s: unknown name case %q", t.ID, t.NameFormat.Case)
	}
	switch t.NameFormat.InitialPeriod {
	case "", "add", "remove":
	default:
		return fmt.Errorf("template %s: unknown initial_period %q", t.ID, t.NameFormat.InitialPeriod)
	}
	return nil
}
