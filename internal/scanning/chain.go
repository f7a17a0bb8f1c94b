package scanning

import (
	"errors"
	"log/slog"
	"strings"
)

// Chain tries each scanner in order and returns the first non-blank text.
// It lets the cheap PDF text layer run before a transcription model.
type Chain struct {
	scanners []Scanner
}

// NewChain creates a Chain over scanners, skipping nil entries
func NewChain(scanners ...Scanner) *Chain {
	c := &Chain{}
	for _, s := range scanners {
		if s != nil {
			c.scanners = append(c.scanners, s)
		}
	}
	return c
}

// ScanText returns the text of the first scanner that reads the document
func (c *Chain) ScanText(data []byte, contentType string) (string, error) {
	var errs []error
	for _, s := range c.scanners {
		text, err := s.ScanText(data, contentType)
		if err != nil {
			slog.Debug("Scanner could not read document", "content_type", contentType, "error", err)
			errs = append(errs, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	if len(errs) == 0 {
		return "", ErrNoText
	}
	return "", errors.Join(errs...)
}

// Close closes every scanner in the chain
func (c *Chain) Close() error {
	var errs []error
	for _, s := range c.scanners {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
