package session

import (
	"errors"

	"docchat/internal/extract"
)

// Input validation errors are detected locally and returned before any
// provider call, so no embedding or generation cost is spent on bad input.
var (
	// ErrUnsupportedMediaType mirrors the extractor's rejection of
	// anything that is not PDF, plain text, or DOCX.
	ErrUnsupportedMediaType = extract.ErrUnsupportedMediaType

	// ErrExtractionFailed mirrors extractor parse failures.
	ErrExtractionFailed = extract.ErrExtractionFailed

	// ErrEmptyDocument means extraction produced no usable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrDocumentTooLarge means the upload exceeds the configured limit.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")

	// ErrEmptyMessage means a chat message was empty or whitespace-only.
	ErrEmptyMessage = errors.New("message must not be empty")

	// ErrEmptyNamespace means a delete request carried no document id.
	ErrEmptyNamespace = errors.New("document id must not be empty")
)
