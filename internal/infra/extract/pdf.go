// Package extract turns statement PDFs into the linearized text the parser
// consumes. Extraction quality is guarded: garbage from image-only or
// custom-font PDFs is rejected instead of being handed to the parser.
package extract

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/dal01/financas/internal/port"
)

var _ port.TextExtractor = (*PDFExtractor)(nil)

// markerWords appear on every Banco do Brasil credit-card statement. Text
// containing none of them is treated as undecodable.
var markerWords = []string{
	"fatura", "vencimento", "total", "cartao", "cartão",
	"lancamentos", "lançamentos", "pagamento", "final",
}

// PDFExtractor reads statement PDFs via ledongthuc/pdf.
type PDFExtractor struct {
	logger *zap.Logger
}

// NewPDFExtractor creates a PDF text extractor.
func NewPDFExtractor(logger *zap.Logger) *PDFExtractor {
	return &PDFExtractor{logger: logger}
}

// ExtractText returns the full text of the PDF, one line per text row,
// pages separated by blank lines.
func (e *PDFExtractor) ExtractText(path string) (string, error) {
	pages, err := extractPages(path)
	if err != nil {
		e.logger.Warn("pdf extraction failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return "", fmt.Errorf("pdf extraction failed for %s: %w", path, err)
	}

	text := strings.Join(pages, "\n\n")
	if !isReadable(text) {
		return "", fmt.Errorf("no readable text in %s: the file may be image-based or use custom font encodings", path)
	}

	e.logger.Debug("pdf extracted",
		zap.String("path", path),
		zap.Int("pages", len(pages)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

// extractPages walks the document row by row. The library panics on some
// malformed files, so the whole walk runs under a recover.
func extractPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			pages = append(pages, strings.Join(lines, "\n"))
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf yielded no text rows")
	}
	return pages, nil
}

// isReadable requires enough text, a mostly-printable character mix and at
// least one statement marker word. unicode.IsPrint alone is too lenient for
// identity-encoded fonts, hence the explicit ratio check.
func isReadable(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= 50 {
		return false
	}

	total, readable := 0, 0
	for _, r := range trimmed {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
			strings.ContainsRune(".,-/:;()$%*", r) {
			readable++
		}
	}
	if float64(readable)/float64(total) <= 0.6 {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, word := range markerWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
