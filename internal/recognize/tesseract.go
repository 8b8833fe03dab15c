package recognize

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs OCR on image files through the gosseract client. A fresh
// client is created per call; gosseract clients are not safe for concurrent
// use and setup cost is negligible next to recognition itself.
type Tesseract struct {
	languages []string
}

// NewTesseract constructs a Tesseract engine with optional language hints
// (e.g. "eng", "deu").
func NewTesseract(languages ...string) *Tesseract {
	return &Tesseract{languages: languages}
}

// Recognize performs OCR on the image at path and returns the trimmed text.
func (t *Tesseract) Recognize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImage(path); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if len(t.languages) > 0 {
		if err := client.SetLanguage(t.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
