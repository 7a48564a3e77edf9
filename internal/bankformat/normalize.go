package bankformat

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	upperCaser = cases.Upper(language.Und)
	titleCaser = cases.Title(language.Und)

	multiSpace = regexp.MustCompile(`[ \t]+`)

	errNoDigits = errors.New("no digits in amount")
)

// khmerDigits maps ០-៩ to their ASCII equivalents.
var khmerDigits = strings.NewReplacer(
	"០", "0", "១", "1", "២", "2", "៣", "3", "៤", "4",
	"៥", "5", "៦", "6", "៧", "7", "៨", "8", "៩", "9",
)

// NormalizeText prepares raw OCR output for rule matching.
func NormalizeText(text string) string {
	text = norm.NFKC.String(text)
	text = khmerDigits.Replace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// NormalizeName applies a bank's name format to an extracted recipient name.
func NormalizeName(name string, format model.NameFormat) string {
	name = strings.TrimSpace(norm.NFKC.String(name))

	for _, sep := range format.Separators {
		name = strings.ReplaceAll(name, sep, " "+sep+" ")
	}
	name = strings.TrimSpace(multiSpace.ReplaceAllString(name, " "))

	switch format.InitialPeriod {
	case "add":
		name = mapTokens(name, func(tok string) string {
			if utf8.RuneCountInString(tok) == 1 && isLetter(tok) {
				return tok + "."
			}
			return tok
		})
	case "remove":
		name = mapTokens(name, func(tok string) string {
			if utf8.RuneCountInString(tok) == 2 && strings.HasSuffix(tok, ".") && isLetter(tok) {
				return strings.TrimSuffix(tok, ".")
			}
			return tok
		})
	}

	switch format.Case {
	case model.CasePreserve:
	case model.CaseTitle:
		name = titleCaser.String(strings.ToLower(name))
	default:
		name = upperCaser.String(name)
	}

	if format.MaxLength > 0 && utf8.RuneCountInString(name) > format.MaxLength {
		name = strings.TrimSpace(string([]rune(name)[:format.MaxLength]))
	}
	return name
}

func mapTokens(s string, fn func(string) string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		tokens[i] = fn(tok)
	}
	return strings.Join(tokens, " ")
}

func isLetter(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r)
}

// NormalizeAccount strips every non-digit character.
func NormalizeAccount(account string) string {
	var b strings.Builder
	for _, r := range account {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var currencyMarkers = regexp.MustCompile(`(?i)US\$|USD|KHR|RIELS?|[$៛]|រៀល`)

// ParseAmount reads an amount such as "1,234.56", "1 234", "-100,000 KHR" or "$25.50".
// The sign is dropped; receipts show outgoing transfers as negative.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := currencyMarkers.ReplaceAllString(raw, "")
	s = strings.NewReplacer("-", "", "+", "", " ", "", "\u00a0", "").Replace(s)
	if s == "" {
		return decimal.Zero, errNoDigits
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot < 0 && len(s)-lastComma-1 <= 2 && strings.Count(s, ",") == 1:
		// 25,50
		s = strings.Replace(s, ",", ".", 1)
	case lastComma < 0 && dotGrouped.MatchString(s):
		// 100.000
		s = strings.ReplaceAll(s, ".", "")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	return decimal.NewFromString(s)
}

var dotGrouped = regexp.MustCompile(`^[0-9]{1,3}(?:\.[0-9]{3})+$`)

var (
	usdMarker = regexp.MustCompile(`(?i)US\$|\bUSD\b|\$`)
	khrMarker = regexp.MustCompile(`(?i)\bKHR\b|\bRIELS?\b|៛|រៀល`)
)

// InferCurrency looks for a currency marker in the amount text, then in the full text.
func InferCurrency(amountText, fullText, fallback string) string {
	for _, s := range []string{amountText, fullText} {
		if s == "" {
			continue
		}
		usd := usdMarker.FindStringIndex(s)
		khr := khrMarker.FindStringIndex(s)
		switch {
		case usd != nil && khr != nil:
			if usd[0] < khr[0] {
				return "USD"
			}
			return "KHR"
		case usd != nil:
			return "USD"
		case khr != nil:
			return "KHR"
		}
	}
	return fallback
}

var dateLayouts = []string{
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04",
	"2-1-2006",
	"2 Jan 2006 3:04 PM",
	"2 Jan 2006 3:04PM",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
}

// ParseDate parses a receipt timestamp in any known layout.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(multiSpace.ReplaceAllString(raw, " "))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
