package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/internal/models"
)

// ReceiptRenderer turns a settlement into a printable half-page PDF receipt.
type ReceiptRenderer struct {
	schoolName string
	city       string
}

// NewReceiptRenderer constructs a renderer with the school letterhead.
func NewReceiptRenderer(schoolName, city string) *ReceiptRenderer {
	return &ReceiptRenderer{schoolName: schoolName, city: city}
}

// Render produces the receipt PDF.
func (r *ReceiptRenderer) Render(receipt models.Receipt) ([]byte, error) {
	if len(receipt.Lines) == 0 {
		return nil, fmt.Errorf("receipt has no lines")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, r.schoolName, "", 1, "C", false, 0, "")
	if r.city != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, r.city, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "RECIBO DE PAGO", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, "Nro. "+receipt.ReceiptNumber, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(30, 6, "Fecha:", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 6, receipt.PaymentDate, "", 1, "", false, 0, "")
	pdf.CellFormat(30, 6, "Estudiante:", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 6, receipt.StudentName, "", 1, "", false, 0, "")
	if receipt.StudentDoc != "" {
		pdf.CellFormat(30, 6, "Documento:", "", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, receipt.StudentDoc, "", 1, "", false, 0, "")
	}
	if receipt.PaymentMethod != "" {
		pdf.CellFormat(30, 6, "Forma de pago:", "", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, receipt.PaymentMethod, "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(90, 7, "Concepto", "1", 0, "", false, 0, "")
	pdf.CellFormat(34, 7, "Importe (Gs)", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, line := range receipt.Lines {
		pdf.CellFormat(90, 7, line.Concept, "1", 0, "", false, 0, "")
		pdf.CellFormat(34, 7, ledger.FormatGs(line.Amount), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 8, "TOTAL", "1", 0, "", false, 0, "")
	pdf.CellFormat(34, 8, ledger.FormatGs(receipt.Total), "1", 1, "R", false, 0, "")

	if receipt.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 4, "Obs.: "+receipt.Notes, "", "", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
