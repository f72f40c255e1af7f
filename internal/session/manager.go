// Package session orchestrates document ingestion and grounded or
// ungrounded chat over the extractor, chunker, embedder, vector store
// and LLM.
package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"docchat/internal/chunker"
	"docchat/internal/embeddings"
	"docchat/internal/extract"
	"docchat/internal/models"
	"docchat/internal/storage"
)

// NoRelevantInfoReply is returned for grounded chat when retrieval
// finds nothing in the namespace. The LLM is not invoked in that case.
const NoRelevantInfoReply = "I could not find any relevant information in the uploaded document for that question."

// Namespace is the opaque partition key scoping one uploaded document's
// stored vectors. Its internal format is not part of any contract;
// callers only round-trip it.
type Namespace string

// NewNamespace mints a fresh, collision-free namespace identifier.
// Concurrent ingests therefore never contend for the same partition.
func NewNamespace() Namespace {
	return Namespace("doc-" + uuid.New().String())
}

// Interfaces for dependency injection
type EmbedderInterface interface {
	Embed(text string, intent embeddings.Intent) ([]float32, error)
}

type LLMInterface interface {
	Answer(question, context string) (string, error)
}

// Manager is the document session core: it turns an upload into a
// queryable namespace and answers chat turns against one.
type Manager struct {
	embedder EmbedderInterface
	store    storage.VectorStore
	llm      LLMInterface
	splitter *chunker.Chunker
	maxBytes int64
	topK     int
}

func NewManager(embedder EmbedderInterface, store storage.VectorStore, llm LLMInterface, splitter *chunker.Chunker, maxBytes int64, topK int) *Manager {
	return &Manager{
		embedder: embedder,
		store:    store,
		llm:      llm,
		splitter: splitter,
		maxBytes: maxBytes,
		topK:     topK,
	}
}

// Ingest extracts, chunks, embeds and stores a document under a fresh
// namespace. The namespace is returned only after the store write has
// completed, so a returned id is fully queryable. Partial writes left
// behind by a mid-ingest failure are not rolled back.
func (m *Manager) Ingest(data []byte, mimeType, filename string) (Namespace, error) {
	if m.maxBytes > 0 && int64(len(data)) > m.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrDocumentTooLarge, len(data), m.maxBytes)
	}

	text, err := extract.Extract(data, mimeType, filename)
	if err != nil {
		return "", err
	}

	// Checked before any embedding work is attempted.
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}

	namespace := NewNamespace()

	chunks := m.splitter.Split(text)
	segments := make([]models.Segment, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		vec, err := m.embedder.Embed(chunk, embeddings.IntentDocument)
		if err != nil {
			return "", fmt.Errorf("embedding segment %d: %w", i, err)
		}
		segments[i] = models.Segment{
			Namespace: string(namespace),
			Index:     i,
			Content:   chunk,
			Metadata: map[string]interface{}{
				"source": filename,
				"index":  i,
			},
		}
		vectors[i] = vec
	}

	if err := m.store.AddSegments(string(namespace), segments, vectors); err != nil {
		return "", fmt.Errorf("storing segments: %w", err)
	}

	return namespace, nil
}

// Chat answers a message. A non-empty namespace selects grounded mode:
// the answer is constrained to segments retrieved from that namespace
// and the segments come back as sources in rank order. An empty
// namespace selects ungrounded mode with no sources.
func (m *Manager) Chat(message string, namespace Namespace) (string, []models.SourceDocument, error) {
	if strings.TrimSpace(message) == "" {
		return "", nil, ErrEmptyMessage
	}

	if namespace == "" {
		answer, err := m.llm.Answer(message, "")
		if err != nil {
			return "", nil, fmt.Errorf("generating answer: %w", err)
		}
		return answer, nil, nil
	}

	queryVec, err := m.embedder.Embed(message, embeddings.IntentQuery)
	if err != nil {
		return "", nil, fmt.Errorf("embedding question: %w", err)
	}

	segments, err := m.store.SearchNamespace(string(namespace), queryVec, m.topK)
	if err != nil {
		return "", nil, fmt.Errorf("searching namespace: %w", err)
	}

	// Empty or unknown namespace is a defined non-error outcome.
	if len(segments) == 0 {
		return NoRelevantInfoReply, []models.SourceDocument{}, nil
	}

	texts := make([]string, len(segments))
	sources := make([]models.SourceDocument, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Content
		sources[i] = models.SourceDocument{
			Content:  seg.Content,
			Metadata: seg.Metadata,
		}
	}

	answer, err := m.llm.Answer(message, strings.Join(texts, "\n\n"))
	if err != nil {
		return "", nil, fmt.Errorf("generating answer: %w", err)
	}

	return answer, sources, nil
}

// DeleteDocument removes a namespace from the store. Removing a
// namespace that holds nothing succeeds with a zero count; only a store
// failure is an error, so the two are never conflated.
func (m *Manager) DeleteDocument(namespace Namespace) (int, error) {
	if strings.TrimSpace(string(namespace)) == "" {
		return 0, ErrEmptyNamespace
	}

	removed, err := m.store.DeleteNamespace(string(namespace))
	if err != nil {
		return 0, fmt.Errorf("deleting namespace: %w", err)
	}
	return removed, nil
}
