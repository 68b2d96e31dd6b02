// Package ocr extracts text from images with the Tesseract engine.
package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Extract runs OCR over the image at path and returns the recognized
// text, trimmed. An empty result means the engine found no text.
func Extract(path string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(path); err != nil {
		return "", fmt.Errorf("ocr: set image %s: %w", path, err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognize %s: %w", path, err)
	}
	return strings.TrimSpace(text), nil
}
