package engine

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/Veraticus/slipcheck/internal/bankformat"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/ocr"
)

// Fallback extractor confidence ceilings. They stay under any bank template
// so a recognized bank format always reads as the stronger evidence.
const (
	maxOCRFieldsConfidence = 0.8
	maxHeuristicConfidence = 0.4
)

// ExtractionInput is everything an extractor may read.
type ExtractionInput struct {
	// OCR is nil when the OCR service was not called or failed.
	OCR  *ocr.Result
	Text string
}

// Extractor is one strategy in the extraction chain.
type Extractor interface {
	Source() model.ExtractionSource
	Extract(in ExtractionInput) model.ExtractionResult
}

// extract runs the chain and returns the first successful result. When every
// strategy fails the last failure is returned with all errors joined.
func extract(chain []Extractor, in ExtractionInput) model.ExtractionResult {
	var errs []string
	last := model.FailedExtraction(model.SourceOCRHeuristic, "no extractors")
	for _, ex := range chain {
		result := ex.Extract(in)
		if result.Success {
			return result
		}
		last = result
		if result.Error != "" {
			errs = append(errs, fmt.Sprintf("%s: %s", ex.Source(), result.Error))
		}
	}
	if len(errs) > 0 {
		last.Error = strings.Join(errs, "; ")
	}
	return last
}

// bankFormatExtractor applies the matching bank template to the OCR text.
type bankFormatExtractor struct {
	recognizer FormatRecognizer
}

func (e bankFormatExtractor) Source() model.ExtractionSource { return model.SourceBankFormat }

func (e bankFormatExtractor) Extract(in ExtractionInput) model.ExtractionResult {
	return e.recognizer.Recognize(in.Text)
}

// ocrFieldsExtractor trusts the structured fields some OCR models return.
type ocrFieldsExtractor struct {
	localCurrency string
}

func (e ocrFieldsExtractor) Source() model.ExtractionSource { return model.SourceOCRFields }

func (e ocrFieldsExtractor) Extract(in ExtractionInput) model.ExtractionResult {
	if in.OCR == nil || in.OCR.Fields.Empty() {
		return model.FailedExtraction(model.SourceOCRFields, "no structured fields")
	}
	f := in.OCR.Fields

	result := model.ExtractionResult{
		Source:        model.SourceOCRFields,
		RecipientName: bankformat.NormalizeName(f.RecipientName, model.NameFormat{}),
		AccountNumber: bankformat.NormalizeAccount(f.AccountNumber),
		TransactionID: strings.TrimSpace(f.TransactionID),
		BankName:      strings.TrimSpace(f.BankName),
	}
	if f.Amount != "" {
		if amt, err := bankformat.ParseAmount(f.Amount); err == nil {
			result.Amount = &amt
		}
	}
	result.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	if result.Currency == "" {
		result.Currency = bankformat.InferCurrency(f.Amount, in.Text, e.localCurrency)
	}

	confidence := bankformat.FieldScore(result) * in.OCR.Confidence
	confidence = bankformat.PostValidate(&result, confidence)
	result.Confidence = math.Min(maxOCRFieldsConfidence, confidence)
	return finishFallback(result)
}

var (
	heuristicLabeledName = regexp.MustCompile(`(?i)(?:\bto\b|recipient|receiver|payee|beneficiary|name)\s*:\s*([A-Za-z][A-Za-z .&\-]*[A-Za-z.])`)
	heuristicCapsName    = regexp.MustCompile(`(?m)^\s*([A-Z][A-Z.&'\-]*(?: +[A-Z][A-Z.&'\-]*)+)\s*$`)
	heuristicAccount     = regexp.MustCompile(`(?m)^([^0-9\n]*?)([0-9][0-9 \-]{6,28}[0-9])\s*$`)
	heuristicDateLabel   = regexp.MustCompile(`(?i)\b(?:date|time)\b`)
	heuristicDateShape   = regexp.MustCompile(`^(?:[0-9]{1,2}[ \-][0-9]{1,2}[ \-][0-9]{4}|[0-9]{4}[ \-][0-9]{1,2}[ \-][0-9]{1,2})$`)
	heuristicAmount      = regexp.MustCompile(`(?i)((?:US\$|\$|៛)\s*[0-9][0-9,]*(?:\.[0-9]{3})*(?:\.[0-9]{1,2})?|[0-9][0-9,]*(?:\.[0-9]{3})*(?:\.[0-9]{1,2})?\s*(?:KHR|USD|RIELS?|៛|\$))`)
)

// heuristicExtractor is the catch-all: unlabeled text scanned for anything
// shaped like a name, an account number and an amount.
type heuristicExtractor struct {
	localCurrency string
}

func (e heuristicExtractor) Source() model.ExtractionSource { return model.SourceOCRHeuristic }

func (e heuristicExtractor) Extract(in ExtractionInput) model.ExtractionResult {
	text := bankformat.NormalizeText(in.Text)
	if strings.TrimSpace(text) == "" {
		return model.FailedExtraction(model.SourceOCRHeuristic, "no text")
	}

	result := model.ExtractionResult{Source: model.SourceOCRHeuristic}
	if m := heuristicLabeledName.FindStringSubmatch(text); m != nil {
		result.RecipientName = bankformat.NormalizeName(m[1], model.NameFormat{})
	} else if m := heuristicCapsName.FindStringSubmatch(text); m != nil {
		result.RecipientName = bankformat.NormalizeName(m[1], model.NameFormat{})
	}
	result.AccountNumber = findHeuristicAccount(text)

	var amountText string
	if m := heuristicAmount.FindStringSubmatch(text); m != nil {
		amountText = m[1]
		if amt, err := bankformat.ParseAmount(amountText); err == nil {
			result.Amount = &amt
		}
	}
	result.Currency = bankformat.InferCurrency(amountText, text, e.localCurrency)

	confidence := bankformat.PostValidate(&result, bankformat.FieldScore(result))
	result.Confidence = math.Min(maxHeuristicConfidence, confidence*maxHeuristicConfidence)
	return finishFallback(result)
}

// findHeuristicAccount returns the first bare digit run that is not a date.
func findHeuristicAccount(text string) string {
	for _, m := range heuristicAccount.FindAllStringSubmatch(text, -1) {
		if heuristicDateLabel.MatchString(m[1]) || heuristicDateShape.MatchString(m[2]) {
			continue
		}
		return bankformat.NormalizeAccount(m[2])
	}
	return ""
}

// finishFallback marks a fallback result successful when it found an amount
// and at least one way to identify the recipient.
func finishFallback(result model.ExtractionResult) model.ExtractionResult {
	switch {
	case result.Amount == nil:
		result.Error = "missing amount"
	case result.RecipientName == "" && result.AccountNumber == "":
		result.Error = "missing recipient and account"
	default:
		result.Success = true
	}
	return result
}

// DefaultExtractors is the standard chain: bank template, then OCR fields,
// then the heuristic catch-all.
func DefaultExtractors(recognizer FormatRecognizer) []Extractor {
	local := recognizer.LocalCurrency()
	return []Extractor{
		bankFormatExtractor{recognizer: recognizer},
		ocrFieldsExtractor{localCurrency: local},
		heuristicExtractor{localCurrency: local},
	}
}
