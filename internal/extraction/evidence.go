package extraction

// Evidence holds the raw payment primitives found in a single document.
// Absent fields are left empty.
type Evidence struct {
	PaymentLine string   // digits only
	PixPayload  string   // whitespace removed
	AmountTexts []string // document order, e.g. "1.234,56"
}

// HasPaymentCode reports whether a payment line or a PIX payload was found
func (e Evidence) HasPaymentCode() bool {
	return e.PaymentLine != "" || e.PixPayload != ""
}

// FromPaymentLine builds evidence from a payment line captured outside of any
// document, such as a code copied to the clipboard on a billing portal.
func FromPaymentLine(line string) Evidence {
	return Evidence{PaymentLine: DigitsOnly(line)}
}
