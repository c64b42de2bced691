package receipt

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapos/backend/internal/domain"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleSale() domain.Sale {
	return domain.Sale{
		ID:        42,
		Username:  "rana",
		Total:     price("26.00"),
		CreatedAt: time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC),
		Lines: []domain.SaleLine{
			{MedicineID: 1, MedicineName: "Paracetamol 500mg", BatchID: 1, Quantity: 5, UnitPrice: price("2.50"), LineTotal: price("12.50")},
			{MedicineID: 1, MedicineName: "Paracetamol 500mg", BatchID: 2, Quantity: 3, UnitPrice: price("2.50"), LineTotal: price("7.50")},
			{MedicineID: 2, MedicineName: "Amoxicillin <Forte> Suspension 250mg", BatchID: 5, Quantity: 1, UnitPrice: price("6.00"), LineTotal: price("6.00")},
		},
	}
}

func TestBuildMergesBatchLines(t *testing.T) {
	doc, err := Build(sampleSale(), "")
	require.NoError(t, err)

	require.Len(t, doc.Rows, 2)
	assert.Equal(t, 8, doc.Rows[0].Quantity)
	assert.True(t, doc.Rows[0].Total.Equal(price("20.00")))
	assert.Equal(t, "rana", doc.Cashier)
	assert.Equal(t, "invoice_42", doc.FileName)
}

func TestBuildText(t *testing.T) {
	doc, err := Build(sampleSale(), "admin")
	require.NoError(t, err)

	assert.Contains(t, doc.Text, "Invoice #: 42")
	assert.Contains(t, doc.Text, "Date: 2025-03-15 09:30:00")
	assert.Contains(t, doc.Text, "Cashier: admin")
	assert.Contains(t, doc.Text, "Amoxicillin <F...")
	assert.Contains(t, doc.Text, "26.00")
	for _, line := range strings.Split(doc.Text, "\n") {
		assert.LessOrEqual(t, len(line), lineWidth, line)
	}
}

func TestBuildESCPOSFraming(t *testing.T) {
	doc, err := Build(sampleSale(), "admin")
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc.ESCPOS, escposInit))
	assert.True(t, bytes.HasSuffix(doc.ESCPOS, escposCut))
	assert.True(t, bytes.Contains(doc.ESCPOS, []byte("GRAND TOTAL:")))
}

func TestBuildHTMLEscapesNames(t *testing.T) {
	doc, err := Build(sampleSale(), "admin")
	require.NoError(t, err)

	assert.Contains(t, doc.HTML, "Amoxicillin &lt;Forte&gt; Suspension 250mg")
	assert.NotContains(t, doc.HTML, "<Forte>")
	assert.Contains(t, doc.HTML, "GRAND TOTAL: 26.00")
}
