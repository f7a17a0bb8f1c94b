package bill

import (
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newBill := func() *Bill {
		return &Bill{
			Source:         "Finances/Luz",
			Title:          "Sua conta CPFL",
			PaymentLine:    bankingDigits,
			Amount:         "130,00",
			ReferenceMonth: "05/2024",
			CreatedAt:      time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		}
	}

	Describe("Admit", func() {
		var (
			bill      *Bill
			admission Admission
			err       error
		)

		BeforeEach(func() {
			bill = newBill()
		})

		JustBeforeEach(func() {
			admission, err = db.Admit(bill)
		})

		When("the bill is new", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should admit it with the first ID", func() {
				Expect(admission.Admitted).To(BeTrue())
				Expect(admission.ID).To(Equal(uint64(1)))
				Expect(bill.ID).To(Equal(uint64(1)))
			})

			It("should persist the bill", func() {
				saved, getErr := db.GetBill(admission.ID)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.PaymentLine).To(Equal(bankingDigits))
				Expect(saved.Amount).To(Equal("130,00"))
				Expect(saved.Paid).To(BeFalse())
			})
		})

		When("the same bill is admitted twice", func() {
			var second Admission

			JustBeforeEach(func() {
				var secondErr error
				second, secondErr = db.Admit(newBill())
				Expect(secondErr).NotTo(HaveOccurred())
			})

			It("should reject the second admission", func() {
				Expect(second.Admitted).To(BeFalse())
				Expect(second.DuplicateOf).To(Equal(admission.ID))
			})

			It("should report the payment line as the match", func() {
				Expect(second.Match).To(Equal(MatchLine))
			})

			It("should keep a single record", func() {
				bills, listErr := db.ListBills(Filter{})
				Expect(listErr).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(1))
			})
		})

		When("the same PIX arrives through another channel", func() {
			var second Admission

			BeforeEach(func() {
				bill = &Bill{Source: "Finances/Gás", Title: "Fatura por email", PixPayload: pixPayload}
			})

			JustBeforeEach(func() {
				var secondErr error
				second, secondErr = db.Admit(&Bill{Source: "portal", Title: "Fatura no portal", PixPayload: pixPayload})
				Expect(secondErr).NotTo(HaveOccurred())
			})

			It("should be a duplicate by PIX", func() {
				Expect(second.Admitted).To(BeFalse())
				Expect(second.Match).To(Equal(MatchPix))
			})
		})

		When("a new code is issued for a source and month already stored", func() {
			var second Admission

			JustBeforeEach(func() {
				other := newBill()
				other.PaymentLine = "846400000002997200000000000000000000012345600001"
				var secondErr error
				second, secondErr = db.Admit(other)
				Expect(secondErr).NotTo(HaveOccurred())
			})

			It("should be a duplicate by source and reference month", func() {
				Expect(second.Admitted).To(BeFalse())
				Expect(second.Match).To(Equal(MatchPeriod))
			})
		})

		When("bills carry only source and reference month", func() {
			var second Admission

			BeforeEach(func() {
				bill = &Bill{Source: "Finances/Condomínio", ReferenceMonth: "05/2024", Amount: "450,00"}
			})

			JustBeforeEach(func() {
				var secondErr error
				second, secondErr = db.Admit(&Bill{Source: "Finances/Condomínio", ReferenceMonth: "05/2024", Amount: "455,00"})
				Expect(secondErr).NotTo(HaveOccurred())
			})

			It("should admit the first", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(admission.Admitted).To(BeTrue())
			})

			It("should be a duplicate by source and reference month", func() {
				Expect(second.Admitted).To(BeFalse())
				Expect(second.DuplicateOf).To(Equal(admission.ID))
				Expect(second.Match).To(Equal(MatchPeriod))
			})
		})

		When("amount-only bills have no reference month", func() {
			var second Admission

			BeforeEach(func() {
				bill = &Bill{Source: "Finances/Condomínio", Amount: "450,00"}
			})

			JustBeforeEach(func() {
				var secondErr error
				second, secondErr = db.Admit(&Bill{Source: "Finances/Condomínio", Amount: "450,00"})
				Expect(secondErr).NotTo(HaveOccurred())
			})

			It("should admit both, having no fingerprint to compare", func() {
				Expect(second.Admitted).To(BeTrue())
			})
		})

		When("bills share nothing but empty fields", func() {
			var second Admission

			BeforeEach(func() {
				bill = &Bill{Source: "Finances/Luz", PixPayload: pixPayload}
			})

			JustBeforeEach(func() {
				var secondErr error
				second, secondErr = db.Admit(&Bill{Source: "Finances/Luz", PixPayload: otherPixPayload})
				Expect(secondErr).NotTo(HaveOccurred())
			})

			It("should admit both", func() {
				Expect(second.Admitted).To(BeTrue())
				Expect(second.ID).To(Equal(uint64(2)))
			})
		})

		When("the database is closed", func() {
			BeforeEach(func() {
				db.Close()
			})

			It("returns an error", func() {
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("admitting bill"))
			})
		})
	})

	Describe("concurrent Admit", func() {
		It("should admit a fingerprint exactly once", func() {
			const workers = 16
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				admitted int
			)

			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					admission, err := db.Admit(newBill())
					Expect(err).NotTo(HaveOccurred())
					if admission.Admitted {
						mu.Lock()
						admitted++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Expect(admitted).To(Equal(1))
			bills, err := db.ListBills(Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(1))
		})
	})

	Describe("FindDuplicate", func() {
		BeforeEach(func() {
			_, err := db.Admit(newBill())
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the stored bill", func() {
			found, match, err := db.FindDuplicate(&Bill{PaymentLine: bankingDigits})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).NotTo(BeNil())
			Expect(found.ID).To(Equal(uint64(1)))
			Expect(match).To(Equal(MatchLine))
		})

		It("should return nil for an unknown bill", func() {
			found, match, err := db.FindDuplicate(&Bill{PixPayload: pixPayload})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeNil())
			Expect(match).To(Equal(MatchNone))
		})
	})

	Describe("GetBill", func() {
		When("the bill does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := db.GetBill(99)
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListBills", func() {
		BeforeEach(func() {
			for _, b := range []*Bill{
				{Source: "Finances/Luz", PixPayload: pixPayload, ReferenceMonth: "04/2024"},
				{Source: "Finances/Água", PixPayload: otherPixPayload, ReferenceMonth: "05/2024"},
				{Source: "Finances/Gás", PaymentLine: bankingDigits, ReferenceMonth: "05/2024"},
			} {
				_, err := db.Admit(b)
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := db.SetPaid(2, true, time.Now())
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return every bill in ID order", func() {
			bills, err := db.ListBills(Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(3))
			Expect(bills[0].ID).To(Equal(uint64(1)))
			Expect(bills[2].ID).To(Equal(uint64(3)))
		})

		It("should filter by paid flag", func() {
			paid := true
			bills, err := db.ListBills(Filter{Paid: &paid})
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(1))
			Expect(bills[0].Source).To(Equal("Finances/Água"))
		})

		It("should filter by reference month", func() {
			bills, err := db.ListBills(Filter{ReferenceMonth: "05/2024"})
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(2))
		})
	})

	Describe("SetPaid", func() {
		var (
			id   uint64
			at   time.Time
			bill *Bill
			err  error
		)

		BeforeEach(func() {
			admission, admitErr := db.Admit(newBill())
			Expect(admitErr).NotTo(HaveOccurred())
			id = admission.ID
			at = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
		})

		JustBeforeEach(func() {
			bill, err = db.SetPaid(id, true, at)
		})

		When("the bill exists", func() {
			It("should persist the flag", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(bill.Paid).To(BeTrue())

				saved, getErr := db.GetBill(id)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Paid).To(BeTrue())
				Expect(saved.UpdatedAt.Equal(at)).To(BeTrue())
			})
		})

		When("the bill does not exist", func() {
			BeforeEach(func() {
				id = 42
			})

			It("returns ErrNotFound", func() {
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("Reset", func() {
		BeforeEach(func() {
			_, err := db.Admit(newBill())
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Reset()).To(Succeed())
		})

		It("should remove every bill", func() {
			bills, err := db.ListBills(Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(BeEmpty())
		})

		It("should forget the fingerprints", func() {
			admission, err := db.Admit(newBill())
			Expect(err).NotTo(HaveOccurred())
			Expect(admission.Admitted).To(BeTrue())
		})

		It("should restart the ID sequence", func() {
			admission, err := db.Admit(newBill())
			Expect(err).NotTo(HaveOccurred())
			Expect(admission.ID).To(Equal(uint64(1)))
		})
	})

	Describe("persistence", func() {
		It("should keep fingerprints across reopen", func() {
			_, err := db.Admit(newBill())
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Close()).To(Succeed())

			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			admission, err := db.Admit(newBill())
			Expect(err).NotTo(HaveOccurred())
			Expect(admission.Admitted).To(BeFalse())
		})
	})
})
