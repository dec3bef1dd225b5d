package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"rechnungen/internal/core"
	"rechnungen/internal/extract"
)

var (
	accent = lipgloss.Color("#2F6FDF")
	dim    = lipgloss.Color("#6B7280")
	green  = lipgloss.Color("#22C55E")
	orange = lipgloss.Color("#F59E0B")
	red    = lipgloss.Color("#EF4444")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(dim)
	paidStyle   = lipgloss.NewStyle().Foreground(green)
	unpaidStyle = lipgloss.NewStyle().Foreground(orange)
	failStyle   = lipgloss.NewStyle().Foreground(red)
	barStyle    = lipgloss.NewStyle().Foreground(accent)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

const barCells = 30

// RenderSummary draws the dashboard figures: totals and the category chart.
func RenderSummary(s core.Summary) string {
	var b strings.Builder

	kpis := []string{
		kpi("Gesamt", s.Total, s.Count, lipgloss.NewStyle().Bold(true)),
		kpi("Bezahlt", s.Paid, s.PaidCount, paidStyle.Bold(true)),
		kpi("Offen", s.Unpaid, s.UnpaidCount, unpaidStyle.Bold(true)),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, kpis...))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Nach Kategorie"))
	b.WriteString("\n")
	if len(s.ByCategory) == 0 {
		b.WriteString(dimStyle.Render("  keine Rechnungen"))
		b.WriteString("\n")
		return b.String()
	}

	var top int64
	labelWidth := 0
	for _, c := range s.ByCategory {
		if c.Amount.Cents > top {
			top = c.Amount.Cents
		}
		labelWidth = max(labelWidth, lipgloss.Width(c.Category.Label()))
	}
	for _, c := range s.ByCategory {
		cells := 0
		if top > 0 && c.Amount.Cents > 0 {
			cells = max(1, int(c.Amount.Cents*barCells/top))
		}
		fmt.Fprintf(&b, "  %s  %s%s  %s\n",
			padRight(c.Category.Label(), labelWidth),
			barStyle.Render(strings.Repeat("█", cells)),
			strings.Repeat(" ", barCells-cells),
			padLeft(c.Amount.String(), 14))
	}
	return b.String()
}

func kpi(label string, amount core.Money, count int, style lipgloss.Style) string {
	body := dimStyle.Render(label) + "\n" +
		style.Render(amount.String()) + "\n" +
		dimStyle.Render(fmt.Sprintf("%d Rechnungen", count))
	return boxStyle.Render(body)
}

// RenderInvoices draws one line per invoice with a total line at the end.
func RenderInvoices(list []core.Record) string {
	if len(list) == 0 {
		return dimStyle.Render("Keine Rechnungen vorhanden.") + "\n"
	}

	header := []string{"Nr.", "Datum", "Lieferant", "Kategorie", "Betrag", "Status"}
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		row := []string{deref(r.InvoiceNumber), "", deref(r.Supplier), "", "", "offen"}
		if r.InvoiceDate != nil {
			row[1] = r.InvoiceDate.German()
		}
		if r.Category != nil {
			row[3] = r.Category.Label()
		}
		if r.Amount != nil {
			row[4] = r.Amount.String()
		}
		if r.IsPaid() {
			row[5] = "bezahlt"
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(formatRow(header, widths)))
	b.WriteString("\n")
	for _, row := range rows {
		status := unpaidStyle.Render(row[5])
		if row[5] == "bezahlt" {
			status = paidStyle.Render(row[5])
		}
		b.WriteString(formatRow(row[:5], widths) + "  " + status)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render(fmt.Sprintf("%d Rechnungen, Summe", len(list))),
		headerStyle.Render(core.TotalAmount(list).String()))
	return b.String()
}

// formatRow pads every cell to its column width. The amount column is right
// aligned; the last cell is left unpadded.
func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		switch {
		case i == len(cells)-1 && i != 4:
			parts[i] = c
		case i == 4:
			parts[i] = padLeft(c, widths[i])
		default:
			parts[i] = padRight(c, widths[i])
		}
	}
	return strings.Join(parts, "  ")
}

// RenderExtraction lists every schema field with its outcome and value.
func RenderExtraction(schema extract.Schema, res extract.Result) string {
	var b strings.Builder
	values := res.Values()
	width := 0
	for _, name := range schema.Names() {
		width = max(width, len(name))
	}
	for _, name := range schema.Names() {
		status := res.Status(name)
		var mark string
		switch status {
		case extract.StatusPresent:
			mark = paidStyle.Render("✓")
		case extract.StatusAbsent:
			mark = dimStyle.Render("–")
		default:
			mark = failStyle.Render("✗")
		}
		fmt.Fprintf(&b, "%s %s  %s\n", mark, padRight(string(name), width), fieldValue(values, name, status))
	}
	fmt.Fprintf(&b, "\n%d erkannt, %d nicht vorhanden, %d fehlerhaft\n",
		len(res.Present()), len(res.Absent()), len(res.Failed()))
	return b.String()
}

func fieldValue(f core.Fields, name core.Field, status extract.Status) string {
	if status != extract.StatusPresent {
		return dimStyle.Render(status.String())
	}
	switch name {
	case core.FieldInvoiceNumber:
		return deref(f.InvoiceNumber)
	case core.FieldInvoiceDate:
		return f.InvoiceDate.German()
	case core.FieldAmount:
		return f.Amount.String()
	case core.FieldSupplier:
		return deref(f.Supplier)
	case core.FieldCategory:
		return f.Category.Label()
	case core.FieldPaid:
		if *f.Paid {
			return "ja"
		}
		return "nein"
	case core.FieldPaymentDate:
		return f.PaymentDate.German()
	case core.FieldNotes:
		return deref(f.Notes)
	}
	return ""
}

func padRight(s string, width int) string {
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}

func padLeft(s string, width int) string {
	return strings.Repeat(" ", max(0, width-lipgloss.Width(s))) + s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
