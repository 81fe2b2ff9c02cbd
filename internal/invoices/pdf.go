package invoices

import (
	"bytes"
	_ "embed"
	"fmt"
	"unicode"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// Renderer turns a Document into file bytes.
type Renderer interface {
	Render(d Document) ([]byte, error)
	ContentType() string
	Ext() string
}

// DejaVu carries Latin and Arabic glyphs, so seller and buyer names print as
// written.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
)

const fontFamily = "DejaVu"

type PDFRenderer struct{}

func (PDFRenderer) ContentType() string { return "application/pdf" }
func (PDFRenderer) Ext() string         { return "pdf" }

func (PDFRenderer) Render(d Document) ([]byte, error) {
	png, err := qrcode.Encode(d.QR, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr symbol: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(fontFamily, "", fontRegular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", fontBold)
	pdf.SetTitle("Tax Invoice "+d.Number, true)
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 18)
	pdf.CellFormat(0, 10, "Tax Invoice", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.CellFormat(0, 6, "Invoice No: "+d.Number, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Order No: "+d.OrderNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+d.IssuedAt.UTC().Format("2006-01-02 15:04 UTC"), "", 1, "L", false, 0, "")

	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pdf.ImageOptions("qr", 160, 10, 40, 40, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.Ln(6)
	party := func(title string, p Party) {
		pdf.SetFont(fontFamily, "B", 11)
		pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 10)
		text(pdf, 0, 5, p.Name, "", 1)
		if p.VATNumber != "" {
			pdf.CellFormat(0, 5, "VAT No: "+p.VATNumber, "", 1, "L", false, 0, "")
		}
		if p.Email != "" {
			pdf.CellFormat(0, 5, p.Email, "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}
	party("Seller", d.Seller)
	party("Buyer", d.Buyer)

	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(235, 235, 235)
	widths := []float64{95, 20, 35, 40}
	for i, h := range []string{"Description", "Qty", "Unit price", "Amount"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(fontFamily, "", 10)
	for _, l := range d.Lines {
		text(pdf, widths[0], 7, l.Description, "1", 0)
		pdf.CellFormat(widths[1], 7, fmt.Sprint(l.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, money(l.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(l.Amount), "1", 1, "R", false, 0, "")
	}

	total := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont(fontFamily, style, 10)
		pdf.CellFormat(150, 7, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, value, "1", 1, "R", false, 0, "")
	}
	pdf.Ln(2)
	total("Subtotal", money(d.Subtotal), false)
	if d.DiscountAmount > 0 {
		total("Discount ("+d.DiscountCode+")", "-"+money(d.DiscountAmount), false)
	}
	total(fmt.Sprintf("VAT %s%%", percent(d.VATPercent)), money(d.VATAmount), false)
	total("Total ("+d.Currency+")", money(d.Total), true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// text writes one cell, right to left when s holds Arabic.
func text(pdf *gofpdf.Fpdf, w, h float64, s, border string, ln int) {
	if !hasArabic(s) {
		pdf.CellFormat(w, h, s, border, ln, "L", false, 0, "")
		return
	}
	pdf.RTL()
	pdf.CellFormat(w, h, s, border, ln, "R", false, 0, "")
	pdf.LTR()
}

func hasArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

func money(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }

func percent(v float64) string { return decimal.NewFromFloat(v).String() }
