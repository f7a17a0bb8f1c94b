package extraction

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// minPositionalLength is the shortest line the positional decode accepts
	minPositionalLength = 44

	// Convênio lines (leading 8) carry the amount at a fixed offset
	utilityAmountOffset = 12
	utilityAmountWidth  = 4

	// Bank boletos carry the amount in the trailing digits
	bankingAmountWidth = 10
)

// DecodeAmount derives the amount due from the evidence. The payment line is
// tried first; when it yields nothing usable the largest textual amount wins,
// since bills list several line items and the total is the biggest figure.
func DecodeAmount(e Evidence) (decimal.Decimal, bool) {
	if amount, ok := amountFromLine(e.PaymentLine); ok {
		return amount, true
	}
	return maxTextAmount(e.AmountTexts)
}

// amountFromLine reads the amount, in cents, embedded in a payment line
func amountFromLine(line string) (decimal.Decimal, bool) {
	if len(line) < minPositionalLength {
		return decimal.Zero, false
	}

	var field string
	if line[0] == '8' {
		field = line[utilityAmountOffset : utilityAmountOffset+utilityAmountWidth]
	} else {
		field = line[len(line)-bankingAmountWidth:]
	}
	if !isDigits(field) {
		return decimal.Zero, false
	}

	cents, err := decimal.NewFromString(field)
	if err != nil {
		return decimal.Zero, false
	}
	amount := cents.Shift(-2)
	if !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

// maxTextAmount parses Brazilian-formatted amounts and returns the largest one
func maxTextAmount(texts []string) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, text := range texts {
		amount, err := ParseBRL(text)
		if err != nil {
			continue
		}
		if !found || amount.GreaterThan(best) {
			best = amount
			found = true
		}
	}
	return best, found
}

// ParseBRL parses an amount written as "1.234,56" (an optional "R$" prefix is tolerated)
func ParseBRL(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "R$"))
	text = strings.ReplaceAll(text, ".", "")
	text = strings.Replace(text, ",", ".", 1)
	return decimal.NewFromString(text)
}

// FormatBRL renders an amount with two decimals, "," as decimal separator and
// "." between thousands.
func FormatBRL(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "," + fracPart
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
