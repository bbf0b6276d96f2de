// Пакет extractor: извлечение текста из PDF.
// Ошибки и паники парсера не прерывают загрузку: вызывающий получает пустой текст.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyInput: пустые данные.
var ErrEmptyInput = errors.New("пустой файл")

// PDFExtractor извлекает plain text из PDF-документов.
type PDFExtractor struct {
	logger *slog.Logger
}

// NewPDFExtractor создаёт экстрактор.
func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	return &PDFExtractor{logger: logger.With(slog.String("component", "pdf_extractor"))}
}

// ExtractText возвращает текст всех страниц документа.
// Паника внутри парсера преобразуется в ошибку.
func (e *PDFExtractor) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("паника парсера PDF: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("открытие PDF: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("извлечение текста: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("чтение текста: %w", err)
	}

	text = strings.TrimSpace(b.String())
	e.logger.Debug("Текст извлечён",
		slog.Int("pages", r.NumPage()),
		slog.Int("chars", len([]rune(text))),
	)
	return text, nil
}
