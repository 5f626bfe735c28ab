package receipt

import (
	"bytes"
	"encoding/base64"
	"sync"

	svg "github.com/ajstarks/svgo"

	"guto-paylink/internal/models"
)

// Size is the fixed edge length of the square receipt image.
const Size = 1080

// DownloadFilename is the fixed name used for the PNG download fallback.
const DownloadFilename = "guto-receipt.png"

// Theme carries the brand colors painted onto the receipt.
type Theme struct {
	BrandName  string
	Background string
	Card       string
	Accent     string
	Text       string
}

// DefaultTheme is used when the caller passes a zero Theme.
var DefaultTheme = Theme{
	BrandName:  "Guto",
	Background: "#0B1020",
	Card:       "#151B2E",
	Accent:     "#7C5CFF",
	Text:       "#FFFFFF",
}

func (t Theme) withDefaults() Theme {
	d := DefaultTheme
	if t.BrandName != "" {
		d.BrandName = t.BrandName
	}
	if t.Background != "" {
		d.Background = t.Background
	}
	if t.Card != "" {
		d.Card = t.Card
	}
	if t.Accent != "" {
		d.Accent = t.Accent
	}
	if t.Text != "" {
		d.Text = t.Text
	}
	return d
}

// Output is a rendered receipt. The SVG form is available immediately and
// serves as the preview; the raster form arrives later via Rasterize and
// gates the share/download affordances.
type Output struct {
	svgData []byte

	mu       sync.Mutex
	building bool
	raster   *RasterHandle
}

// Render composes the fixed-size vector receipt. It never fails: every
// field degrades to an empty line rather than blocking the preview.
func Render(rcpt *models.PaidReceipt, profile models.UserProfile, link string, theme Theme) *Output {
	th := theme.withDefaults()

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Startview(Size, Size, 0, 0, Size, Size)

	// Backdrop and brand band
	canvas.Rect(0, 0, Size, Size, "fill:"+th.Background)
	canvas.Rect(0, 0, Size, 14, "fill:"+th.Accent)
	canvas.Text(72, 96, th.BrandName, "font-family:sans-serif;font-size:44px;font-weight:bold;fill:"+th.Accent)

	// PAID badge
	canvas.Roundrect(Size-260, 52, 188, 64, 32, 32, "fill:"+th.Accent)
	canvas.Text(Size-166, 95, "PAID", "font-family:sans-serif;font-size:34px;font-weight:bold;fill:"+th.Text+";text-anchor:middle")

	// Card
	canvas.Roundrect(72, 180, Size-144, 700, 28, 28, "fill:"+th.Card)

	// Amount
	canvas.Text(Size/2, 330, FormatAmount(rcpt.Amount), "font-family:sans-serif;font-size:84px;font-weight:bold;fill:"+th.Text+";text-anchor:middle")

	// Recipient
	recipient := rcpt.RecipientName
	if recipient == "" {
		recipient = profile.Name
	}
	canvas.Text(Size/2, 420, "to "+recipient, "font-family:sans-serif;font-size:42px;fill:"+th.Text+";text-anchor:middle")
	if profile.Handle != "" {
		canvas.Text(Size/2, 472, "@"+profile.Handle, "font-family:sans-serif;font-size:34px;fill:"+th.Accent+";text-anchor:middle")
	}

	// Timestamp
	canvas.Text(Size/2, 550, FormatPaidAt(rcpt.PaidAt), "font-family:sans-serif;font-size:30px;fill:"+th.Text+";text-anchor:middle;opacity:0.8")

	// Detail lines
	y := 630
	lineGap := 54
	detail := func(label, value string) {
		canvas.Text(140, y, label, "font-family:sans-serif;font-size:28px;fill:"+th.Text+";opacity:0.6")
		canvas.Text(Size-140, y, value, "font-family:monospace;font-size:28px;fill:"+th.Text+";text-anchor:end")
		y += lineGap
	}
	detail("Reference", TruncateRef(rcpt.TransactionReference))
	if rcpt.ProviderReference != "" {
		detail("Provider ref", TruncateRef(rcpt.ProviderReference))
	}
	detail("From", rcpt.PayerPhone)

	// Paylink footer
	canvas.Text(Size/2, 980, link, "font-family:sans-serif;font-size:32px;fill:"+th.Accent+";text-anchor:middle")

	canvas.End()

	return &Output{svgData: buf.Bytes()}
}

// SVG returns the vector form, usable as a preview with no async step.
func (o *Output) SVG() []byte {
	return o.svgData
}

// DataURL returns the vector form as an embeddable data URL.
func (o *Output) DataURL() string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(o.svgData)
}
