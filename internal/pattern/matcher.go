package pattern

import (
	"slices"
	"strings"
	"unicode"

	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/agext/levenshtein"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Similarity weights and thresholds.
const (
	nameWeight    = 0.6
	accountWeight = 0.4

	// FuzzyMatchThreshold is the minimum combined similarity for a fuzzy match.
	FuzzyMatchThreshold = 0.75
	// AmountHistoryTolerance is the relative distance to a past amount that still counts.
	AmountHistoryTolerance = 0.10
)

var upper = cases.Upper(language.Und)

// Honorifics dropped from the front of names. Longer entries come first.
var titles = [][]string{
	{"LOK", "SREY"},
	{"LOK", "CHUMTEAV"},
	{"MRS"},
	{"MR"},
	{"MS"},
	{"MISS"},
	{"DR"},
	{"LOK"},
	{"NEAK"},
}

// NormalizeName prepares a recipient name for comparison: uppercase,
// punctuation stripped, whitespace collapsed, leading titles removed.
func NormalizeName(name string) string {
	name = upper.String(norm.NFKC.String(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '.' || r == '\'' || r == '’':
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	tokens := strings.Fields(b.String())

	for stripped := true; stripped; {
		stripped = false
		for _, title := range titles {
			if len(tokens) > len(title) && slices.Equal(tokens[:len(title)], title) {
				tokens = tokens[len(title):]
				stripped = true
				break
			}
		}
	}
	return strings.Join(tokens, " ")
}

// NormalizeAccount keeps only the digits of an account number.
func NormalizeAccount(account string) string {
	var b strings.Builder
	for _, r := range account {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TokenSortSimilarity compares names independent of word order.
func TokenSortSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(sortTokens(a), sortTokens(b), nil)
}

func sortTokens(s string) string {
	tokens := strings.Fields(upper.String(s))
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

// AccountSimilarity compares account digit strings.
func AccountSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

// Similarity is the combined name and account similarity of two signatures.
func Similarity(nameA, accountA, nameB, accountB string) float64 {
	return nameWeight*TokenSortSimilarity(nameA, nameB) + accountWeight*AccountSimilarity(accountA, accountB)
}

// Agreement scores an extracted signature against an invoice's expected
// recipient. Only the expected values that are present take part.
func Agreement(name, account, expectedName, expectedAccount string) float64 {
	name, expectedName = NormalizeName(name), NormalizeName(expectedName)
	account, expectedAccount = NormalizeAccount(account), NormalizeAccount(expectedAccount)

	switch {
	case expectedName != "" && expectedAccount != "":
		return Similarity(name, account, expectedName, expectedAccount)
	case expectedName != "":
		return TokenSortSimilarity(name, expectedName)
	case expectedAccount != "":
		return AccountSimilarity(account, expectedAccount)
	default:
		return 0
	}
}

// bestMatch returns the most similar pattern and its similarity, or nil.
func bestMatch(name, account string, patterns []model.RecipientPattern) (*model.RecipientPattern, float64) {
	var best *model.RecipientPattern
	var bestScore float64
	for i := range patterns {
		score := Similarity(name, account, patterns[i].RecipientName, patterns[i].AccountNumber)
		if score > bestScore {
			best, bestScore = &patterns[i], score
		}
	}
	return best, bestScore
}

// amountSeen reports whether amount is within tolerance of any recorded amount.
func amountSeen(amount decimal.Decimal, history []model.AmountRecord) bool {
	tolerance := decimal.NewFromFloat(AmountHistoryTolerance)
	for _, rec := range history {
		if !rec.Amount.IsPositive() {
			continue
		}
		if amount.Sub(rec.Amount).Abs().LessThanOrEqual(rec.Amount.Mul(tolerance)) {
			return true
		}
	}
	return false
}
