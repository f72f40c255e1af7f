// Package models defines the shared domain and wire types.
package models

// Segment is one chunk of a document's extracted text, the unit of
// embedding and retrieval. Segments are immutable once stored and
// belong to exactly one namespace.
type Segment struct {
	ID        string                 `json:"id"`
	Namespace string                 `json:"namespace"`
	Index     int                    `json:"index"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SourceDocument is a retrieved segment cited alongside a grounded answer.
type SourceDocument struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type ChatRequest struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId,omitempty"`
}

type ChatResponse struct {
	Response        string           `json:"response"`
	SourceDocuments []SourceDocument `json:"sourceDocuments,omitempty"`
}

type UploadResponse struct {
	DocumentID   string `json:"documentId"`
	OriginalName string `json:"originalName"`
}

type DeleteResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
