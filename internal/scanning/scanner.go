package scanning

import "errors"

// ErrNoText is returned when a document yields no readable text
var ErrNoText = errors.New("no text found in document")

// Scanner turns a bill document (PDF or image) into plain text
type Scanner interface {
	// ScanText returns the text content of the document
	ScanText(data []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
