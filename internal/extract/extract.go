// Package extract converts uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// Extractor converts raw document bytes of one format into plain text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// Registry maps document formats to their extractors.
type Registry struct {
	extractors map[domain.Format]Extractor
}

// NewRegistry creates a registry with the built-in txt, md and html extractors.
func NewRegistry() *Registry {
	return &Registry{
		extractors: map[domain.Format]Extractor{
			domain.FormatText:     plainText{},
			domain.FormatMarkdown: plainText{},
			domain.FormatHTML:     htmlText{},
		},
	}
}

// Extract dispatches to the extractor registered for format.
func (r *Registry) Extract(format domain.Format, data []byte) (string, error) {
	ex, ok := r.extractors[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
	return ex.Extract(data)
}

// DetectFormat maps a filename extension to a document format.
func DetectFormat(filename string) (domain.Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return domain.FormatText, nil
	case ".md", ".markdown":
		return domain.FormatMarkdown, nil
	case ".html", ".htm":
		return domain.FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

// plainText passes text through after UTF-8 validation.
type plainText struct{}

func (plainText) Extract(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrExtraction)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: document is empty", domain.ErrExtraction)
	}
	return text, nil
}

// htmlText extracts readable article text from HTML markup.
type htmlText struct{}

func (htmlText) Extract(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrExtraction)
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("%w: no readable text found", domain.ErrExtraction)
	}
	return text, nil
}
