package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/slipcheck/internal/bankformat"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/charmbracelet/lipgloss"
)

const emptyCell = "—"

// RenderDecision draws one verification decision with its signal breakdown.
func RenderDecision(d *model.VerificationDecision) string {
	status := StatusStyle(d.Status).Bold(true).
		Render(fmt.Sprintf("%s %s", StatusIcon(d.Status), d.Status))

	var lines []string
	lines = append(lines,
		status,
		kv("Invoice", d.InvoiceID),
		kv("Confidence", percent(d.Confidence)),
		kv("Reason", d.Reason),
	)
	if d.QueueID != "" {
		lines = append(lines, kv("Queue ID", d.QueueID))
	}

	lines = append(lines, "", BoldStyle.Render("Extracted"),
		kv("Source", string(d.Extraction.Source)),
		kv("Bank", d.Extraction.BankName),
		kv("Recipient", d.Extraction.RecipientName),
		kv("Account", d.Extraction.AccountNumber),
		kv("Amount", formatAmount(d.Extraction)),
	)
	if d.Extraction.TransactionID != "" {
		lines = append(lines, kv("Transaction", d.Extraction.TransactionID))
	}
	if !d.Extraction.Success && d.Extraction.Error != "" {
		lines = append(lines, kv("Error", ErrorStyle.Render(d.Extraction.Error)))
	}

	b := d.Breakdown
	lines = append(lines, "", BoldStyle.Render("Signals"),
		bar("Bank", b.Bank),
		bar("Pattern", b.Pattern),
		bar("Amount", b.Amount),
		bar("OCR", b.OCR),
	)

	return RenderBox("Payment "+d.ID, strings.Join(lines, "\n"))
}

// RenderDecisionLine is the one-line form used in batch output.
func RenderDecisionLine(index int, d *model.VerificationDecision) string {
	return fmt.Sprintf("%3d  %s  %-12s %6s  %s",
		index+1,
		StatusStyle(d.Status).Render(fmt.Sprintf("%-22s", d.Status)),
		d.InvoiceID,
		percent(d.Confidence),
		SubtleStyle.Render(d.Reason))
}

// RenderQueue draws pending review entries as a table.
func RenderQueue(entries []model.ReviewQueueEntry) string {
	if len(entries) == 0 {
		return FormatInfo("Review queue is empty")
	}

	rows := [][]string{{"ID", "Priority", "Invoice", "Customer", "Recipient", "Amount", "Confidence"}}
	for _, e := range entries {
		rows = append(rows, []string{
			e.ID,
			PriorityStyle(e.Priority).Render(string(e.Priority)),
			e.InvoiceID,
			e.CustomerID,
			orEmpty(e.Extracted.RecipientName),
			formatAmount(e.Extracted),
			percent(e.Breakdown.Combined),
		})
	}
	return FormatTitle(fmt.Sprintf("%s Pending reviews (%d)", ReviewIcon, len(entries))) + "\n" + table(rows)
}

// RenderStats draws a tenant's learning statistics.
func RenderStats(s model.LearningStatistics) string {
	lines := []string{
		kv("Patterns", fmt.Sprintf("%d", s.TotalPatterns)),
		kv("Auto-approvable", fmt.Sprintf("%d (%s)", s.AutoApprovable, percent(s.AutoApprovalRate))),
		kv("Avg confidence", percent(s.AvgConfidence)),
		kv("High confidence", percent(s.HighConfidenceRate)),
	}
	return RenderBox(fmt.Sprintf("%s Learning statistics: %s", ChartIcon, s.TenantID), strings.Join(lines, "\n"))
}

// RenderBanks lists the supported bank templates.
func RenderBanks(templates []model.BankTemplate) string {
	rows := [][]string{{"ID", "Name", "Keywords", "Base"}}
	for _, t := range templates {
		rows = append(rows, []string{t.ID, t.Name, strings.Join(t.Keywords, ", "), fmt.Sprintf("%.2f", t.BaseConfidence)})
	}
	return FormatTitle(BankIcon+" Supported banks") + "\n" + table(rows)
}

// RenderBankScores shows the detection score of every bank that scored.
// Scores are expected best first.
func RenderBankScores(scores []bankformat.BankScore) string {
	rows := [][]string{{"Bank", "Score"}}
	for _, s := range scores {
		if s.Score == 0 {
			continue
		}
		name := s.Name
		if len(rows) == 1 {
			name = SuccessStyle.Render(name)
		}
		rows = append(rows, []string{name, fmt.Sprintf("%d", s.Score)})
	}
	if len(rows) == 1 {
		return FormatWarning("No bank detected")
	}
	return table(rows)
}

func kv(label, value string) string {
	return SubtleStyle.Render(fmt.Sprintf("%-12s", label)) + " " + orEmpty(value)
}

func bar(label string, value float64) string {
	const width = 20
	filled := int(value*width + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return SubtleStyle.Render(fmt.Sprintf("%-12s", label)) + " " +
		InfoStyle.Render(strings.Repeat("█", filled)) +
		SubtleStyle.Render(strings.Repeat("░", width-filled)) +
		" " + percent(value)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func formatAmount(r model.ExtractionResult) string {
	if r.Amount == nil {
		return emptyCell
	}
	amount := r.Amount.StringFixed(2)
	if r.Amount.IsInteger() {
		amount = r.Amount.String()
	}
	if r.Currency == "" {
		return amount
	}
	return amount + " " + r.Currency
}

func orEmpty(s string) string {
	if s == "" {
		return emptyCell
	}
	return s
}

// table lays rows out in padded columns; the first row is the header.
func table(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var lines []string
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := TableCellStyle.Width(widths[i] + 2)
			if r == 0 {
				cells[i] = style.Inherit(BoldStyle).Render(cell)
				continue
			}
			cells[i] = style.Render(cell)
		}
		line := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
		if r == 0 {
			line = TableHeaderStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
