package bankformat

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/shopspring/decimal"
)

// Field weights for the running extraction confidence.
const (
	recipientWeight = 0.5
	accountWeight   = 0.3
	amountWeight    = 0.2

	maxExtractionConfidence = 0.95

	minNameLength    = 2
	minAccountDigits = 8
	maxAccountDigits = 20
)

var maxAmount = decimal.NewFromInt(100_000_000)

// DefaultLocalCurrency is used when no currency marker is found.
const DefaultLocalCurrency = "KHR"

type keywordMatcher struct {
	re     *regexp.Regexp
	needle string
	weight int
}

func (k keywordMatcher) matches(text, folded string) bool {
	if k.re != nil {
		return k.re.MatchString(text)
	}
	return strings.Contains(folded, k.needle)
}

// BankScore is the detection score of one template against a text.
type BankScore struct {
	ID    string
	Name  string
	Score int
}

// Recognizer detects banks and applies their extraction templates.
// It is safe for concurrent use.
type Recognizer struct {
	byID          map[string]int
	localCurrency string
	templates     []model.BankTemplate
	keywords      [][]keywordMatcher
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLocalCurrency sets the currency assumed when a receipt carries no marker.
func WithLocalCurrency(code string) Option {
	return func(r *Recognizer) {
		if code != "" {
			r.localCurrency = strings.ToUpper(code)
		}
	}
}

// New builds a Recognizer from validated templates.
func New(templates []model.BankTemplate, opts ...Option) (*Recognizer, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("at least one template is required")
	}
	r := &Recognizer{
		templates:     templates,
		byID:          make(map[string]int, len(templates)),
		keywords:      make([][]keywordMatcher, len(templates)),
		localCurrency: DefaultLocalCurrency,
	}
	for _, opt := range opts {
		opt(r)
	}

	for i, tmpl := range templates {
		r.byID[tmpl.ID] = i
		for _, kw := range tmpl.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			m := keywordMatcher{needle: strings.ToLower(kw), weight: utf8.RuneCountInString(kw)}
			// Scripts without word spacing match as substrings.
			if !hasNonSpacedScript(kw) {
				m.re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
			}
			r.keywords[i] = append(r.keywords[i], m)
		}
	}
	return r, nil
}

// Default builds a Recognizer over the built-in templates.
func Default(opts ...Option) (*Recognizer, error) {
	templates, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	return New(templates, opts...)
}

// MustDefault is Default that panics on a broken built-in template set.
func MustDefault(opts ...Option) *Recognizer {
	r, err := Default(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func hasNonSpacedScript(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Khmer, unicode.Thai, unicode.Lao) {
			return true
		}
	}
	return false
}

// Templates returns the loaded templates in declaration order.
func (r *Recognizer) Templates() []model.BankTemplate {
	out := make([]model.BankTemplate, len(r.templates))
	copy(out, r.templates)
	return out
}

// Template returns the template with the given id.
func (r *Recognizer) Template(id string) (*model.BankTemplate, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return &r.templates[i], true
}

// LocalCurrency is the fallback currency code.
func (r *Recognizer) LocalCurrency() string {
	return r.localCurrency
}

// Scores returns every template's keyword score, highest first.
// Ties keep template declaration order.
func (r *Recognizer) Scores(text string) []BankScore {
	text = NormalizeText(text)
	folded := strings.ToLower(text)

	scores := make([]BankScore, len(r.templates))
	for i, tmpl := range r.templates {
		scores[i] = BankScore{ID: tmpl.ID, Name: tmpl.Name}
		for _, kw := range r.keywords[i] {
			if kw.matches(text, folded) {
				scores[i].Score += kw.weight
			}
		}
	}
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].Score > scores[b].Score
	})
	return scores
}

// DetectBank returns the id of the best scoring bank, or false when no keyword hits.
func (r *Recognizer) DetectBank(text string) (string, bool) {
	scores := r.Scores(text)
	if scores[0].Score == 0 {
		return "", false
	}
	return scores[0].ID, true
}

// Recognize detects the bank and extracts fields with its template.
func (r *Recognizer) Recognize(text string) model.ExtractionResult {
	if strings.TrimSpace(text) == "" {
		return model.FailedExtraction(model.SourceBankFormat, "no text to recognize")
	}
	id, ok := r.DetectBank(text)
	if !ok {
		return model.FailedExtraction(model.SourceBankFormat, "bank not detected")
	}
	tmpl, _ := r.Template(id)
	return r.Extract(text, tmpl)
}

// Extract applies a template's rules to text. It never fails hard; an
// unusable receipt yields Success=false with the reason in Error.
func (r *Recognizer) Extract(text string, tmpl *model.BankTemplate) model.ExtractionResult {
	if tmpl == nil {
		return model.FailedExtraction(model.SourceBankFormat, "no template")
	}
	text = NormalizeText(text)
	result := model.ExtractionResult{
		Source:   model.SourceBankFormat,
		BankName: tmpl.Name,
	}

	var confidence float64
	var amountText string

	if raw, conf, ok := applyRules(text, tmpl.Rules[model.FieldRecipient]); ok {
		result.RecipientName = NormalizeName(raw, tmpl.NameFormat)
		confidence += recipientWeight * conf
	}
	if raw, conf, ok := applyRules(text, tmpl.Rules[model.FieldAccount]); ok {
		result.AccountNumber = NormalizeAccount(raw)
		confidence += accountWeight * conf
	}
	if raw, conf, ok := applyRules(text, tmpl.Rules[model.FieldAmount]); ok {
		amountText = raw
		confidence += amountWeight * conf
		if amt, err := ParseAmount(raw); err == nil {
			result.Amount = &amt
		} else {
			confidence *= 1 - amountWeight
		}
	}
	if raw, _, ok := applyRules(text, tmpl.Rules[model.FieldTransactionID]); ok {
		result.TransactionID = raw
	}
	if raw, _, ok := applyRules(text, tmpl.Rules[model.FieldDate]); ok {
		if t, ok := ParseDate(raw); ok {
			result.TransactionDate = &t
		}
	}
	result.Currency = InferCurrency(amountText, text, r.localCurrency)

	confidence = PostValidate(&result, confidence)
	confidence = math.Min(maxExtractionConfidence, confidence) * tmpl.BaseConfidence
	result.Confidence = model.ClampConfidence(confidence)

	var missing []string
	if result.RecipientName == "" {
		missing = append(missing, string(model.FieldRecipient))
	}
	if result.AccountNumber == "" {
		missing = append(missing, string(model.FieldAccount))
	}
	if len(missing) > 0 {
		result.Error = fmt.Sprintf("%s: missing %s", tmpl.ID, strings.Join(missing, ", "))
		return result
	}
	result.Success = true
	return result
}

// applyRules returns the first rule match with a non-trivial value.
// Rules are expected in ascending priority order.
func applyRules(text string, rules []model.ExtractionRule) (string, float64, bool) {
	for i := range rules {
		rule := &rules[i]
		re := rule.Regexp()
		if re == nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		idx := 1
		if rule.Group != "" {
			idx = re.SubexpIndex(rule.Group)
		}
		if idx < 0 || idx >= len(m) {
			continue
		}
		value := strings.TrimSpace(m[idx])
		if utf8.RuneCountInString(value) <= 1 {
			continue
		}
		return value, rule.Confidence, true
	}
	return "", 0, false
}

// PostValidate discards implausible fields from any extraction. Each discard
// scales the remaining confidence by the share of the discarded field instead
// of zeroing it.
func PostValidate(result *model.ExtractionResult, confidence float64) float64 {
	if name := result.RecipientName; name != "" {
		if utf8.RuneCountInString(name) < minNameLength || isNumeric(name) {
			result.RecipientName = ""
			confidence *= 1 - recipientWeight
		}
	}
	if acct := result.AccountNumber; acct != "" {
		if n := len(acct); n < minAccountDigits || n > maxAccountDigits {
			result.AccountNumber = ""
			confidence *= 1 - accountWeight
		}
	}
	if amt := result.Amount; amt != nil {
		if !amt.IsPositive() || amt.GreaterThan(maxAmount) {
			result.Amount = nil
			confidence *= 1 - amountWeight
		}
	}
	return confidence
}

func isNumeric(s string) bool {
	hasDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r) || unicode.IsPunct(r):
		default:
			return false
		}
	}
	return hasDigit
}

// FieldScore is the weighted share of the recipient, account and amount
// fields present in r, in [0,1].
func FieldScore(r model.ExtractionResult) float64 {
	var score float64
	if r.RecipientName != "" {
		score += recipientWeight
	}
	if r.AccountNumber != "" {
		score += accountWeight
	}
	if r.Amount != nil {
		score += amountWeight
	}
	return score
}
