package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcriptionPrompt is shared by the LLM transcribers. The model only
// transcribes; payment data is located by the extraction rules afterwards.
const transcriptionPrompt = `You are transcribing a Brazilian bill (boleto, conta de consumo or fatura). Read every piece of text in the image and copy it verbatim.

Pay special attention to:
1. The "linha digitável": a sequence of 47 or 48 digits printed in groups, e.g. "23793.38128 60007.827136 95000.063305 9 84410000013000" or "84640000000-2 99720000000-0 00000000000-0 01234560000-1". Copy every digit and keep the group separators.
2. The "Pix Copia e Cola" code: a long string starting with 000201 and ending with 6304 followed by 4 hexadecimal characters. Copy it exactly, character by character.
3. Monetary values written as R$ 1.234,56. Keep the Brazilian format.

Return ONLY valid JSON in this exact format:
{
  "text": "full transcription, lines separated by \n"
}

Important:
- Do not summarize, translate or correct the text
- Do not invent digits you cannot read
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// normalizeMimeType lowercases and trims a content type, defaulting to JPEG
func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

// pdfToImage renders the first page of a PDF as PNG. Bills put the payment
// stub on the first page.
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// imageToPNG converts a photo of a bill to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Phone photos are often HEIC, which the standard image package cannot decode
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData converts any supported document to PNG for the vision models
func prepareImageData(data []byte, contentType string) ([]byte, error) {
	mimeType := normalizeMimeType(contentType)

	switch {
	case mimeType == "application/pdf":
		pngData, err := pdfToImage(data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, nil
	case mimeType == "image/png" && !isHEICFormat(data):
		return data, nil
	default:
		pngData, err := imageToPNG(data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, nil
	}
}
