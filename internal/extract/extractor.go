// Package extract converts uploaded document bytes into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedMediaType indicates the declared MIME type (and the
	// filename extension fallback) is not one of PDF, plain text, DOCX.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrExtractionFailed indicates the document could not be parsed.
	ErrExtractionFailed = errors.New("text extraction failed")
)

const (
	mimePDF  = "application/pdf"
	mimeText = "text/plain"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extract returns the plain text of a document given its raw bytes, the
// declared MIME type and the original filename. The filename extension
// is consulted only when the MIME type is missing or generic, so
// octet-stream uploads of known formats still work.
func Extract(data []byte, mimeType, filename string) (string, error) {
	switch resolveFormat(mimeType, filename) {
	case "pdf":
		return extractPDF(data)
	case "txt":
		return extractPlainText(data)
	case "docx":
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mimeType)
	}
}

func resolveFormat(mimeType, filename string) string {
	// Strip any parameters like "text/plain; charset=utf-8".
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case mimePDF:
		return "pdf"
	case mimeText:
		return "txt"
	case mimeDOCX:
		return "docx"
	case "", "application/octet-stream":
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".pdf":
			return "pdf"
		case ".txt":
			return "txt"
		case ".docx":
			return "docx"
		}
	}
	return ""
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: plain text is not valid UTF-8", ErrExtractionFailed)
	}
	return string(data), nil
}
