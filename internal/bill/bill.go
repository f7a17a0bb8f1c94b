package bill

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a bill does not exist in the store
	ErrNotFound = errors.New("bill not found")

	// ErrUnreadableDocument is returned when no text could be read from a submitted document
	ErrUnreadableDocument = errors.New("document could not be read")
)

// Bill is a recurring household bill discovered in an email, a PDF or a
// billing portal. Empty optional fields mean the value is unknown.
type Bill struct {
	ID             uint64    `json:"id,omitempty"` // assigned by the store on insert
	Source         string    `json:"source"`
	Title          string    `json:"title"`
	PaymentLine    string    `json:"payment_line,omitempty"` // 44-48 digits
	PixPayload     string    `json:"pix_payload,omitempty"`  // starts with 000201
	Amount         string    `json:"amount,omitempty"`       // e.g. "1.234,56"
	ReferenceMonth string    `json:"reference_month,omitempty"`
	Paid           bool      `json:"paid"`
	DocumentPath   string    `json:"document_path,omitempty"`
	DocumentType   string    `json:"document_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Metadata is the context a collaborator supplies alongside a document
type Metadata struct {
	Source         string `json:"source"`
	Title          string `json:"title"`
	ReferenceMonth string `json:"reference_month,omitempty"`
}

// Match names the fingerprint that identified a duplicate
type Match string

const (
	MatchNone   Match = ""
	MatchPix    Match = "pix"
	MatchLine   Match = "payment_line"
	MatchPeriod Match = "source_reference_month"
)

// Admission is the outcome of offering a bill to the store
type Admission struct {
	Admitted    bool   `json:"admitted"`
	ID          uint64 `json:"id,omitempty"`
	DuplicateOf uint64 `json:"duplicate_of,omitempty"`
	Match       Match  `json:"match,omitempty"`
}

// Filter narrows a bill listing. Zero values match everything.
type Filter struct {
	Paid           *bool
	ReferenceMonth string
}

func (f Filter) matches(b *Bill) bool {
	if f.Paid != nil && b.Paid != *f.Paid {
		return false
	}
	if f.ReferenceMonth != "" && b.ReferenceMonth != f.ReferenceMonth {
		return false
	}
	return true
}
