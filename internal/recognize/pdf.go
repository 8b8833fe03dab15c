package recognize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// PDF extracts embedded plain text from PDF files. Scanned PDFs without a text
// layer produce empty output, which the batch runner records as-is.
type PDF struct{}

// Recognize reads the PDF at path and returns its concatenated page text.
func (PDF) Recognize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := reader.NumPage()
	for page := 1; page <= total; page++ {
		p := reader.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String()), nil
}
