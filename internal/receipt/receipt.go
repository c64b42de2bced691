// Package receipt renders a committed sale as a printable document.
package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/domain"
)

const (
	title     = "PHARMACY INVOICE"
	footer    = "Thank you for dealing with Pharma Pro."
	lineWidth = 40
	nameWidth = 17
)

var (
	escposInit = []byte{0x1b, 0x40}
	escposCut  = []byte{0x1d, 0x56, 0x41, 0x10}
)

type Row struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

type Document struct {
	SaleID   int64
	Cashier  string
	Date     time.Time
	Rows     []Row
	Total    decimal.Decimal
	Text     string
	ESCPOS   []byte
	HTML     string
	FileName string
}

// Build renders sale for printing. Lines drawn from several batches of the
// same medicine at the same price are merged into one row.
func Build(sale domain.Sale, cashier string) (Document, error) {
	if cashier == "" {
		cashier = sale.Username
	}
	if cashier == "" {
		cashier = domain.DefaultAdminUsername
	}

	doc := Document{
		SaleID:   sale.ID,
		Cashier:  cashier,
		Date:     sale.CreatedAt,
		Rows:     mergeRows(sale.Lines),
		Total:    sale.Total,
		FileName: "invoice_" + strconv.FormatInt(sale.ID, 10),
	}

	lines := textLines(doc)
	doc.Text = strings.Join(lines, "\n")

	escpos := append([]byte{}, escposInit...)
	for _, line := range lines {
		escpos = append(escpos, line...)
		escpos = append(escpos, '\n')
	}
	doc.ESCPOS = append(escpos, escposCut...)

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, doc); err != nil {
		return Document{}, fmt.Errorf("render receipt %d: %w", sale.ID, err)
	}
	doc.HTML = buf.String()
	return doc, nil
}

func mergeRows(lines []domain.SaleLine) []Row {
	rows := make([]Row, 0, len(lines))
	for _, l := range lines {
		name := l.MedicineName
		if name == "" {
			name = "#" + strconv.FormatInt(l.MedicineID, 10)
		}
		if n := len(rows); n > 0 && rows[n-1].Name == name && rows[n-1].UnitPrice.Equal(l.UnitPrice) {
			rows[n-1].Quantity += l.Quantity
			rows[n-1].Total = rows[n-1].Total.Add(l.LineTotal)
			continue
		}
		rows = append(rows, Row{Name: name, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Total: l.LineTotal})
	}
	return rows
}

func textLines(doc Document) []string {
	rule := strings.Repeat("=", lineWidth)
	dash := strings.Repeat("-", lineWidth)
	lines := []string{
		center(title),
		rule,
		"Invoice #: " + strconv.FormatInt(doc.SaleID, 10),
		"Date: " + doc.Date.Format("2006-01-02 15:04:05"),
		"Cashier: " + doc.Cashier,
		dash,
		fmt.Sprintf("%-*s %4s %8s %8s", nameWidth, "Item", "Qty", "Price", "Total"),
		dash,
	}
	for _, r := range doc.Rows {
		lines = append(lines, fmt.Sprintf("%-*s %4d %8s %8s", nameWidth, clip(r.Name, nameWidth), r.Quantity, r.UnitPrice.StringFixed(2), r.Total.StringFixed(2)))
	}
	lines = append(lines,
		dash,
		fmt.Sprintf("%-*s%*s", lineWidth/2, "GRAND TOTAL:", lineWidth/2, doc.Total.StringFixed(2)),
		rule,
		center(footer),
		"",
	)
	return lines
}

func clip(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func center(s string) string {
	pad := (lineWidth - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

var htmlTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.SaleID}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em; }
h1 { text-align: center; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #999; padding: 4px 8px; text-align: center; }
th { background: #dcdcdc; }
.total { text-align: right; font-weight: bold; margin-top: 1em; }
footer { text-align: center; font-style: italic; margin-top: 3em; }
</style>
</head>
<body>
<h1>` + title + `</h1>
<p>Invoice #: {{.SaleID}}<br>Date: {{stamp .Date}}<br>Cashier: {{.Cashier}}</p>
<table>
<tr><th>Item Name</th><th>Qty</th><th>Price</th><th>Total</th></tr>
{{range .Rows}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{money .UnitPrice}}</td><td>{{money .Total}}</td></tr>
{{end}}</table>
<p class="total">GRAND TOTAL: {{money .Total}}</p>
<footer>` + footer + `</footer>
</body>
</html>
`))
