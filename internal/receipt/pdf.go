package receipt

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"guto-paylink/internal/models"
)

// GeneratePDF produces a printable A5 receipt from the same PaidReceipt the
// image renderer consumes.
func GeneratePDF(rcpt *models.PaidReceipt, profile models.UserProfile, link string, theme Theme) ([]byte, error) {
	th := theme.withDefaults()

	pdf := gofpdf.New("P", "mm", "A5", "")
	// Truncated references carry an ellipsis, which the core fonts need
	// translated from UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, th.BrandName)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, "Payment receipt")
	pdf.Ln(12)

	// Amount
	pdf.SetFont("Arial", "B", 24)
	pdf.Cell(0, 12, FormatAmount(rcpt.Amount))
	pdf.Ln(14)

	// Recipient block
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 7, "Paid To:")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 11)
	recipient := rcpt.RecipientName
	if recipient == "" {
		recipient = profile.Name
	}
	pdf.Cell(0, 6, tr(recipient))
	pdf.Ln(6)
	if profile.Handle != "" {
		pdf.Cell(0, 6, "@"+profile.Handle)
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, rcpt.RecipientPhone)
	pdf.Ln(12)

	// Detail table
	pdf.SetFont("Arial", "", 10)
	row := func(label, value string) {
		pdf.Cell(40, 6, label)
		pdf.Cell(0, 6, tr(value))
		pdf.Ln(6)
	}
	row("Date:", FormatPaidAt(rcpt.PaidAt))
	row("Reference:", TruncateRef(rcpt.TransactionReference))
	if rcpt.ProviderReference != "" {
		row("Provider ref:", TruncateRef(rcpt.ProviderReference))
	}
	row("From:", rcpt.PayerPhone)
	pdf.Ln(8)

	// Status line
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(35, 150, 60)
	pdf.Cell(0, 8, "PAID")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 5, link)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate receipt PDF: %v", err)
	}
	return buf.Bytes(), nil
}
