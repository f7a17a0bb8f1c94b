package bill

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zombor/boleto-tracker/internal/extraction"
)

const (
	minLineLength = 44
	maxLineLength = 48
	pixPrefix     = "000201"
)

var referenceMonthPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{4}$`)

// Normalize assembles a bill from extraction evidence, the decoded amount and
// the caller's metadata. It never fails: values that do not hold their shape
// are left out of the bill.
func Normalize(e extraction.Evidence, amount decimal.Decimal, hasAmount bool, meta Metadata) *Bill {
	b := &Bill{
		Source: strings.TrimSpace(meta.Source),
		Title:  strings.TrimSpace(meta.Title),
	}

	if line := extraction.DigitsOnly(e.PaymentLine); line != "" {
		if len(line) >= minLineLength && len(line) <= maxLineLength {
			b.PaymentLine = line
		} else {
			slog.Warn("Discarding payment line with unexpected length", "source", b.Source, "length", len(line))
		}
	}

	if pix := extraction.StripWhitespace(e.PixPayload); strings.HasPrefix(pix, pixPrefix) {
		b.PixPayload = pix
	}

	if hasAmount && !amount.IsNegative() {
		b.Amount = extraction.FormatBRL(amount)
	}

	month := strings.TrimSpace(meta.ReferenceMonth)
	if referenceMonthPattern.MatchString(month) {
		b.ReferenceMonth = month
	} else if month != "" {
		slog.Warn("Ignoring malformed reference month", "source", b.Source, "reference_month", month)
	}

	return b
}

// HasPaymentData reports whether the bill carries any payment primitive: a
// payment line, a PIX payload or an amount
func (b *Bill) HasPaymentData() bool {
	return b.PaymentLine != "" || b.PixPayload != "" || b.Amount != ""
}
