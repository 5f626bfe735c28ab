package receipt

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// refDisplayLength bounds how much of a transaction reference the receipt
// shows before an ellipsis.
const refDisplayLength = 15

var printer = message.NewPrinter(language.English)

// FormatAmount renders a whole-UGX amount with locale-aware grouping,
// e.g. "UGX 1,500,000".
func FormatAmount(amount int64) string {
	return printer.Sprintf("UGX %v", number.Decimal(amount))
}

// FormatPaidAt renders the paid timestamp in a long, human-readable form.
func FormatPaidAt(t time.Time) string {
	return t.Format("Monday, 2 January 2006 at 3:04 PM")
}

// TruncateRef bounds a reference to refDisplayLength characters, marking
// the cut with a single ellipsis character. Shorter references pass
// through unchanged.
func TruncateRef(ref string) string {
	runes := []rune(ref)
	if len(runes) <= refDisplayLength {
		return ref
	}
	return string(runes[:refDisplayLength]) + "…"
}
