package scanning

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PDFText reads the embedded text layer of PDF documents. Images and scanned
// PDFs without a text layer yield ErrNoText.
type PDFText struct{}

// NewPDFText creates a PDFText scanner
func NewPDFText() *PDFText {
	return &PDFText{}
}

// ScanText concatenates the text of every page
func (p *PDFText) ScanText(data []byte, contentType string) (string, error) {
	if normalizeMimeType(contentType) != "application/pdf" {
		return "", fmt.Errorf("%w: %s has no text layer", ErrNoText, contentType)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	var text strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		pageText, err := doc.Text(page)
		if err != nil {
			return "", fmt.Errorf("reading text of page %d: %w", page+1, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", ErrNoText
	}
	return text.String(), nil
}

// Close is a no-op
func (p *PDFText) Close() error {
	return nil
}
