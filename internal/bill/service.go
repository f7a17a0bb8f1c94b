package bill

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/zombor/boleto-tracker/internal/extraction"
	"github.com/zombor/boleto-tracker/internal/scanning"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Status describes what happened to a submitted document
type Status string

const (
	StatusAdmitted      Status = "admitted"
	StatusDuplicate     Status = "duplicate"
	StatusNoPaymentData Status = "no_payment_data"
)

// Result is the outcome of processing one document
type Result struct {
	Status      Status `json:"status"`
	Bill        *Bill  `json:"bill"`
	DuplicateOf uint64 `json:"duplicate_of,omitempty"`
	Match       Match  `json:"match,omitempty"`
}

// Attachment is a file attached to an email
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Email is a message fetched from a mailbox folder
type Email struct {
	Folder         string       `json:"folder"`
	Subject        string       `json:"subject"`
	ReferenceMonth string       `json:"reference_month,omitempty"`
	Text           string       `json:"text"`
	HTML           string       `json:"html"`
	Attachments    []Attachment `json:"attachments"`
}

// Service turns documents into bills and tracks their payment
type Service struct {
	db         DB
	scanner    scanning.Scanner
	storage    Storage
	timeSource TimeSource
}

// NewService creates a new Service with the default time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, timeSrc TimeSource) *Service {
	return &Service{
		db:         db,
		scanner:    scanner,
		storage:    storage,
		timeSource: timeSrc,
	}
}

// ProcessText extracts a bill from a text blob such as an email body or the
// text layer of a PDF.
func (s *Service) ProcessText(meta Metadata, text string) (*Result, error) {
	return s.admit(extraction.Extract(text), meta, "", "")
}

// ProcessPaymentLine records a payment line captured without a document,
// e.g. copied from a billing portal.
func (s *Service) ProcessPaymentLine(meta Metadata, line string) (*Result, error) {
	return s.admit(extraction.FromPaymentLine(line), meta, "", "")
}

// ProcessFile reads a PDF or image, extracts a bill and archives the file
// when the bill is new. Documents the scanner cannot read fail with
// ErrUnreadableDocument.
func (s *Service) ProcessFile(meta Metadata, filename string, data []byte, contentType string) (*Result, error) {
	contentType = detectContentType(filename, contentType)
	text, err := s.scanner.ScanText(data, contentType)
	if err != nil {
		slog.Error("Failed to scan document",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	return s.admitDocument(extraction.Extract(text), meta, filename, data, contentType)
}

// ProcessEmail extracts a bill from an email. The body is searched first;
// attachments are only scanned when the body carries neither a payment line
// nor a PIX payload, and the first attachment that does wins. Without any
// payment code, the bill falls back to the amount of the body, then to the
// amount of the first attachment that has one.
func (s *Service) ProcessEmail(email Email) (*Result, error) {
	meta := Metadata{
		Source:         email.Folder,
		Title:          email.Subject,
		ReferenceMonth: email.ReferenceMonth,
	}

	body := extraction.Extract(email.Text + "\n" + extraction.HTMLText(email.HTML))
	if body.HasPaymentCode() {
		return s.admit(body, meta, "", "")
	}

	var (
		amountOnly     *Attachment
		amountEvidence extraction.Evidence
		amountType     string
	)
	for i, att := range email.Attachments {
		contentType := detectContentType(att.Filename, att.ContentType)
		if !isScannable(contentType) {
			continue
		}
		text, err := s.scanner.ScanText(att.Data, contentType)
		if err != nil {
			slog.Warn("Skipping unreadable attachment", "subject", email.Subject, "filename", att.Filename, "error", err)
			continue
		}
		evidence := extraction.Extract(text)
		if evidence.HasPaymentCode() {
			return s.admitDocument(evidence, meta, att.Filename, att.Data, contentType)
		}
		if amountOnly == nil && len(evidence.AmountTexts) > 0 {
			amountOnly = &email.Attachments[i]
			amountEvidence = evidence
			amountType = contentType
		}
	}

	if len(body.AmountTexts) == 0 && amountOnly != nil {
		return s.admitDocument(amountEvidence, meta, amountOnly.Filename, amountOnly.Data, amountType)
	}
	return s.admit(body, meta, "", "")
}

// admitDocument archives the source document and admits the bill, removing the
// archived copy again when nothing new was stored.
func (s *Service) admitDocument(evidence extraction.Evidence, meta Metadata, filename string, data []byte, contentType string) (*Result, error) {
	bill := s.prepare(evidence, meta)
	if !bill.HasPaymentData() {
		return s.noPaymentData(bill), nil
	}

	savedPath, err := s.storage.Save(s.documentName(filename), data)
	if err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	bill.DocumentPath = savedPath
	bill.DocumentType = contentType

	result, err := s.store(bill)
	if err != nil || result.Status != StatusAdmitted {
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			slog.Warn("Failed to delete document", "path", savedPath, "error", delErr)
		}
	}
	if err != nil {
		return nil, err
	}
	if result.Status != StatusAdmitted {
		result.Bill.DocumentPath = ""
		result.Bill.DocumentType = ""
	}
	return result, nil
}

// admit decodes, normalizes and offers the bill to the store
func (s *Service) admit(evidence extraction.Evidence, meta Metadata, documentPath, documentType string) (*Result, error) {
	bill := s.prepare(evidence, meta)
	if !bill.HasPaymentData() {
		return s.noPaymentData(bill), nil
	}
	bill.DocumentPath = documentPath
	bill.DocumentType = documentType
	return s.store(bill)
}

// prepare builds the normalized bill stamped with the current time
func (s *Service) prepare(evidence extraction.Evidence, meta Metadata) *Bill {
	amount, hasAmount := extraction.DecodeAmount(evidence)
	bill := Normalize(evidence, amount, hasAmount, meta)
	now := s.timeSource.Now()
	bill.CreatedAt = now
	bill.UpdatedAt = now
	return bill
}

func (s *Service) noPaymentData(bill *Bill) *Result {
	slog.Info("No payment data found", "source", bill.Source, "title", bill.Title)
	return &Result{Status: StatusNoPaymentData, Bill: bill}
}

// store offers a prepared bill to the deduplication gate
func (s *Service) store(bill *Bill) (*Result, error) {
	admission, err := s.db.Admit(bill)
	if err != nil {
		return nil, fmt.Errorf("saving bill: %w", err)
	}

	if !admission.Admitted {
		slog.Info("Duplicate bill skipped",
			"source", bill.Source,
			"title", bill.Title,
			"duplicate_of", admission.DuplicateOf,
			"match", admission.Match,
		)
		return &Result{
			Status:      StatusDuplicate,
			Bill:        bill,
			DuplicateOf: admission.DuplicateOf,
			Match:       admission.Match,
		}, nil
	}

	bill.ID = admission.ID
	slog.Info("Bill admitted", "id", bill.ID, "source", bill.Source, "title", bill.Title, "amount", bill.Amount)
	return &Result{Status: StatusAdmitted, Bill: bill}, nil
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(id uint64) (*Bill, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return bill, nil
}

// ListBills returns the bills matching the filter
func (s *Service) ListBills(filter Filter) ([]*Bill, error) {
	bills, err := s.db.ListBills(filter)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return bills, nil
}

// MarkPaid flags a bill as paid
func (s *Service) MarkPaid(id uint64) (*Bill, error) {
	return s.setPaid(id, true)
}

// MarkUnpaid clears the paid flag of a bill
func (s *Service) MarkUnpaid(id uint64) (*Bill, error) {
	return s.setPaid(id, false)
}

func (s *Service) setPaid(id uint64, paid bool) (*Bill, error) {
	bill, err := s.db.SetPaid(id, paid, s.timeSource.Now())
	if err != nil {
		return nil, fmt.Errorf("updating bill %d: %w", id, err)
	}
	slog.Info("Bill payment updated", "id", id, "paid", paid)
	return bill, nil
}

// Reset removes every bill. Archived documents are kept on disk.
func (s *Service) Reset() error {
	if err := s.db.Reset(); err != nil {
		return fmt.Errorf("resetting bills: %w", err)
	}
	slog.Warn("All bills removed")
	return nil
}

// GetBillFile retrieves the archived document of a bill
func (s *Service) GetBillFile(id uint64) ([]byte, string, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}
	if bill.DocumentPath == "" {
		return nil, "", fmt.Errorf("bill %d has no document: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(bill.DocumentPath)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill document: %w", err)
	}

	contentType := bill.DocumentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and truncates long mail-client names
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "boleto"
	}
	return base + ext
}

// documentName places documents in a per-month directory with a unique prefix
func (s *Service) documentName(filename string) string {
	now := s.timeSource.Now()
	return fmt.Sprintf("%s/%d_%s", now.Format("2006-01"), now.UnixNano(), sanitizeFilename(filename))
}

// detectContentType fills in a content type from the file extension when the
// sender left it empty or generic.
func detectContentType(filename, contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// isScannable reports whether a document type can hold a bill
func isScannable(contentType string) bool {
	return strings.HasPrefix(contentType, "application/pdf") || strings.HasPrefix(contentType, "image/")
}
