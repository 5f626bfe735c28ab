package phone

import "strings"

// CountryCode is the dialing prefix every canonical number carries.
const CountryCode = "256"

// Canonical is a digits-only mobile number with the country code prefix and
// no separators, e.g. "256712345678".
type Canonical = string

// Normalize validates a raw user-entered mobile number and rewrites it into
// canonical form. It accepts three shapes of the same 9-digit subscriber
// number beginning with 7: "07XXXXXXXX", "2567XXXXXXXX" and "+2567XXXXXXXX".
// Separators (spaces, dashes, dots, parentheses) are stripped before
// matching. The second return value is false for anything else; there is no
// partial normalization.
func Normalize(input string) (Canonical, bool) {
	cleaned := strip(input)

	switch {
	case len(cleaned) == 10 && strings.HasPrefix(cleaned, "07"):
		return CountryCode + cleaned[1:], true
	case len(cleaned) == 12 && strings.HasPrefix(cleaned, CountryCode+"7"):
		return cleaned, true
	case len(cleaned) == 13 && strings.HasPrefix(cleaned, "+"+CountryCode+"7"):
		return cleaned[1:], true
	}
	return "", false
}

// strip removes every character that is not a digit, keeping a plus sign
// only in the leading position.
func strip(input string) string {
	var b strings.Builder
	for i, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Carrier names the mobile network a canonical number belongs to, keyed on
// the two digits after the country code. Best-effort UI hint only; an
// unrecognized prefix maps to "unknown" and must never block a payment.
func Carrier(c Canonical) string {
	if len(c) < len(CountryCode)+2 {
		return "unknown"
	}
	switch c[len(CountryCode) : len(CountryCode)+2] {
	case "76", "77", "78":
		return "MTN"
	case "70", "74", "75":
		return "Airtel"
	}
	return "unknown"
}
