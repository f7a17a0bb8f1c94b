package bill

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/boleto-tracker/internal/extraction"
)

var _ = Describe("Normalize", func() {
	var (
		evidence  extraction.Evidence
		amount    decimal.Decimal
		hasAmount bool
		meta      Metadata
		bill      *Bill
	)

	BeforeEach(func() {
		evidence = extraction.Evidence{PaymentLine: bankingDigits}
		amount = decimal.RequireFromString("130.00")
		hasAmount = true
		meta = Metadata{Source: "  Finances/Luz ", Title: " Conta de luz  ", ReferenceMonth: "05/2024"}
	})

	JustBeforeEach(func() {
		bill = Normalize(evidence, amount, hasAmount, meta)
	})

	It("should build an unpaid bill without an ID", func() {
		Expect(bill.ID).To(BeZero())
		Expect(bill.Paid).To(BeFalse())
	})

	It("should trim the metadata", func() {
		Expect(bill.Source).To(Equal("Finances/Luz"))
		Expect(bill.Title).To(Equal("Conta de luz"))
	})

	It("should format the amount in Brazilian notation", func() {
		Expect(bill.Amount).To(Equal("130,00"))
	})

	When("the payment line still carries separators", func() {
		BeforeEach(func() {
			evidence.PaymentLine = bankingLine
		})

		It("should keep the digits only", func() {
			Expect(bill.PaymentLine).To(Equal(bankingDigits))
		})
	})

	When("the payment line is too short", func() {
		BeforeEach(func() {
			evidence.PaymentLine = "1234567890"
		})

		It("should drop it", func() {
			Expect(bill.PaymentLine).To(BeEmpty())
		})

		It("should still carry the amount as payment data", func() {
			Expect(bill.HasPaymentData()).To(BeTrue())
		})
	})

	When("the PIX payload was wrapped across lines", func() {
		BeforeEach(func() {
			evidence.PixPayload = pixPayload[:40] + "\n  " + pixPayload[40:]
		})

		It("should remove the whitespace", func() {
			Expect(bill.PixPayload).To(Equal(pixPayload))
		})
	})

	When("the PIX payload lacks the BR Code header", func() {
		BeforeEach(func() {
			evidence.PixPayload = "123" + pixPayload
		})

		It("should drop it", func() {
			Expect(bill.PixPayload).To(BeEmpty())
		})
	})

	When("no amount was decoded", func() {
		BeforeEach(func() {
			hasAmount = false
		})

		It("should leave the amount absent", func() {
			Expect(bill.Amount).To(BeEmpty())
		})
	})

	When("the amount is negative", func() {
		BeforeEach(func() {
			amount = decimal.RequireFromString("-10.00")
		})

		It("should leave the amount absent", func() {
			Expect(bill.Amount).To(BeEmpty())
		})
	})

	DescribeTable("payment data",
		func(e extraction.Evidence, decoded bool, want bool) {
			Expect(Normalize(e, amount, decoded, meta).HasPaymentData()).To(Equal(want))
		},
		Entry("payment line", extraction.Evidence{PaymentLine: bankingDigits}, false, true),
		Entry("PIX payload", extraction.Evidence{PixPayload: pixPayload}, false, true),
		Entry("amount only", extraction.Evidence{}, true, true),
		Entry("nothing", extraction.Evidence{}, false, false),
	)

	DescribeTable("reference month",
		func(month, want string) {
			meta.ReferenceMonth = month
			Expect(Normalize(evidence, amount, hasAmount, meta).ReferenceMonth).To(Equal(want))
		},
		Entry("keeps MM/YYYY", "12/2023", "12/2023"),
		Entry("trims whitespace", " 01/2024 ", "01/2024"),
		Entry("drops month 13", "13/2024", ""),
		Entry("drops month 00", "00/2024", ""),
		Entry("drops other layouts", "2024-05", ""),
		Entry("keeps absent", "", ""),
	)
})
