package extraction

import "regexp"

// Extract scans text for a payment line, a PIX payload and every currency
// amount. A miss is not an error: the corresponding field is left empty.
func Extract(text string) Evidence {
	var evidence Evidence
	if text == "" {
		return evidence
	}

	evidence.PaymentLine = findPaymentLine(text)

	if match := pixPattern.FindString(text); match != "" {
		evidence.PixPayload = StripWhitespace(match)
	}

	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		evidence.AmountTexts = append(evidence.AmountTexts, m[1])
	}

	return evidence
}

// findPaymentLine returns the first banking line in text, falling back to the
// first utility line. The result contains digits only.
func findPaymentLine(text string) string {
	for _, pattern := range []*regexp.Regexp{bankingLinePattern, utilityLinePattern} {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return DigitsOnly(m[1])
		}
	}
	return ""
}
