package recognize

import (
	"context"
	"path/filepath"
	"strings"
)

// Selector routes each file to the engine that understands it: PDFs go to the
// text extractor, everything else to the image OCR engine.
type Selector struct {
	Image Recognizer
	PDF   Recognizer
}

// Default wires the stock engines with the given OCR language hints.
func Default(languages ...string) Selector {
	return Selector{
		Image: NewTesseract(languages...),
		PDF:   PDF{},
	}
}

// Recognize dispatches to the engine matching the file extension.
func (s Selector) Recognize(ctx context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return s.PDF.Recognize(ctx, path)
	}
	return s.Image.Recognize(ctx, path)
}
