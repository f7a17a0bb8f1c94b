package extraction

import "regexp"

var (
	// Banking boleto line: 47 digits grouped 5-5-5-6-5-6-1-14, dots or spaces between groups.
	// The surrounding non-digit guards keep the match from starting or ending inside a longer digit run.
	bankingLinePattern = regexp.MustCompile(
		`(?:^|\D)(\d{5}[.\s]?\d{5}[.\s]?\d{5}[.\s]?\d{6}[.\s]?\d{5}[.\s]?\d{6}[.\s]?\d[.\s]?\d{14})(?:\D|$)`)

	// Utility/tax (convênio) line: 48 digits as four blocks of 11 digits, each followed by a check digit.
	utilityLinePattern = regexp.MustCompile(
		`(?:^|\D)(\d{11}[-\s]?\d[-\s]?\d{11}[-\s]?\d[-\s]?\d{11}[-\s]?\d[-\s]?\d{11}[-\s]?\d)(?:\D|$)`)

	// PIX BR Code: payload format indicator 000201 up to the CRC field 6304XXXX.
	// (?s) lets the payload span the line breaks that mail clients inject.
	pixPattern = regexp.MustCompile(`(?s)000201.*?6304[0-9A-Fa-f]{4}`)

	// Brazilian currency: R$ 1.234,56 or R$1234,56
	amountPattern = regexp.MustCompile(`R\$\s?((?:\d{1,3}(?:\.\d{3})+|\d+),\d{2})`)

	nonDigitPattern   = regexp.MustCompile(`\D`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// DigitsOnly removes every non-digit character from s
func DigitsOnly(s string) string {
	return nonDigitPattern.ReplaceAllString(s, "")
}

// StripWhitespace removes all whitespace from s
func StripWhitespace(s string) string {
	return whitespacePattern.ReplaceAllString(s, "")
}
