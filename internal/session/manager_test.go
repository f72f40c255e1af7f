package session

import (
	"strings"
	"sync"
	"testing"

	"docchat/internal/chunker"
	"docchat/internal/embeddings"
	"docchat/internal/models"
	"docchat/internal/storage"
)

// Mock implementations for testing

// wordEmbedder produces deterministic bag-of-words vectors over a fixed
// vocabulary so cosine ranking in the memory store behaves predictably.
type wordEmbedder struct {
	mu      sync.Mutex
	calls   int
	intents []embeddings.Intent
	fail    bool
}

var testVocabulary = []string{"sky", "blue", "grass", "green", "color", "weather"}

func (e *wordEmbedder) Embed(text string, intent embeddings.Intent) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.intents = append(e.intents, intent)
	fail := e.fail
	e.mu.Unlock()

	if fail {
		return nil, &providerError{"mock embedding error"}
	}

	lower := strings.ToLower(text)
	vec := make([]float32, len(testVocabulary))
	for i, word := range testVocabulary {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec, nil
}

func (e *wordEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type mockLLM struct {
	mu       sync.Mutex
	calls    int
	contexts []string
	fail     bool
	reply    string
}

func (l *mockLLM) Answer(question, context string) (string, error) {
	l.mu.Lock()
	l.calls++
	l.contexts = append(l.contexts, context)
	fail := l.fail
	reply := l.reply
	l.mu.Unlock()

	if fail {
		return "", &providerError{"mock LLM error"}
	}
	if reply != "" {
		return reply, nil
	}
	return "Mock answer for: " + question, nil
}

func (l *mockLLM) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type providerError struct {
	message string
}

func (e *providerError) Error() string {
	return e.message
}

func newTestManager(t *testing.T) (*Manager, *wordEmbedder, *mockLLM, *storage.MemoryVectorStore) {
	t.Helper()

	embedder := &wordEmbedder{}
	llmClient := &mockLLM{}
	store := storage.NewMemoryVectorStore()

	splitter, err := chunker.New(20, 0)
	if err != nil {
		t.Fatalf("Failed to create chunker: %v", err)
	}

	manager := NewManager(embedder, store, llmClient, splitter, 10<<20, 4)
	return manager, embedder, llmClient, store
}

func TestIngestUnsupportedTypeSkipsEmbedding(t *testing.T) {
	manager, embedder, _, _ := newTestManager(t)

	_, err := manager.Ingest([]byte("data"), "image/png", "photo.png")
	if err == nil {
		t.Fatal("Expected error for unsupported media type")
	}
	if !strings.Contains(err.Error(), "unsupported media type") {
		t.Errorf("Expected unsupported media type error, got: %v", err)
	}
	if embedder.callCount() != 0 {
		t.Errorf("Expected 0 embedder calls, got %d", embedder.callCount())
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	manager, embedder, _, store := newTestManager(t)

	for _, content := range []string{"", "   \n\t  "} {
		_, err := manager.Ingest([]byte(content), "text/plain", "empty.txt")
		if err != ErrEmptyDocument {
			t.Errorf("Expected ErrEmptyDocument for %q, got %v", content, err)
		}
	}
	if embedder.callCount() != 0 {
		t.Errorf("Expected 0 embedder calls, got %d", embedder.callCount())
	}

	// Store must not contain any stray partition.
	results, err := store.SearchNamespace("doc-anything", []float32{1}, 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no stored segments, got %d", len(results))
	}
}

func TestIngestTooLarge(t *testing.T) {
	embedder := &wordEmbedder{}
	llmClient := &mockLLM{}
	store := storage.NewMemoryVectorStore()
	splitter, _ := chunker.New(20, 0)
	manager := NewManager(embedder, store, llmClient, splitter, 8, 4)

	_, err := manager.Ingest([]byte("far too many bytes"), "text/plain", "big.txt")
	if err == nil || !strings.Contains(err.Error(), "maximum size") {
		t.Errorf("Expected ErrDocumentTooLarge, got %v", err)
	}
	if embedder.callCount() != 0 {
		t.Errorf("Expected 0 embedder calls, got %d", embedder.callCount())
	}
}

func TestIngestStoresSegmentsWithDocumentIntent(t *testing.T) {
	manager, embedder, _, _ := newTestManager(t)

	namespace, err := manager.Ingest([]byte("The sky is blue. Grass is green."), "text/plain", "facts.txt")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if namespace == "" {
		t.Fatal("Expected non-empty namespace")
	}
	if embedder.callCount() == 0 {
		t.Fatal("Expected embedder calls during ingest")
	}
	for _, intent := range embedder.intents {
		if intent != embeddings.IntentDocument {
			t.Errorf("Expected document intent during ingest, got %q", intent)
		}
	}
}

func TestIngestNamespaceUniqueness(t *testing.T) {
	manager, _, _, _ := newTestManager(t)

	const trials = 50
	var mu sync.Mutex
	seen := make(map[Namespace]bool)
	var wg sync.WaitGroup

	for i := 0; i < trials; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ns, err := manager.Ingest([]byte("sky blue grass"), "text/plain", "doc.txt")
			if err != nil {
				t.Errorf("Ingest failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[ns] {
				t.Errorf("Duplicate namespace minted: %s", ns)
			}
			seen[ns] = true
		}()
	}
	wg.Wait()

	if len(seen) != trials {
		t.Errorf("Expected %d distinct namespaces, got %d", trials, len(seen))
	}
}

func TestChatEmptyMessage(t *testing.T) {
	manager, embedder, llmClient, _ := newTestManager(t)

	for _, ns := range []Namespace{"", "doc-something"} {
		for _, msg := range []string{"", "   ", "\n\t"} {
			_, _, err := manager.Chat(msg, ns)
			if err != ErrEmptyMessage {
				t.Errorf("Expected ErrEmptyMessage for %q with namespace %q, got %v", msg, ns, err)
			}
		}
	}
	if embedder.callCount() != 0 || llmClient.callCount() != 0 {
		t.Error("Expected no provider calls for empty messages")
	}
}

func TestChatUngroundedHasNoSources(t *testing.T) {
	manager, embedder, llmClient, _ := newTestManager(t)

	answer, sources, err := manager.Chat("What is the weather like?", "")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if answer == "" {
		t.Error("Expected non-empty answer")
	}
	if sources != nil {
		t.Errorf("Expected nil sources in ungrounded mode, got %v", sources)
	}
	if embedder.callCount() != 0 {
		t.Errorf("Expected no embedding in ungrounded mode, got %d calls", embedder.callCount())
	}
	if llmClient.contexts[0] != "" {
		t.Errorf("Expected empty context in ungrounded mode, got %q", llmClient.contexts[0])
	}
}

func TestChatEmptyNamespaceReturnsCannedReply(t *testing.T) {
	manager, _, llmClient, _ := newTestManager(t)

	answer, sources, err := manager.Chat("what color is the sky", "doc-never-ingested")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if answer != NoRelevantInfoReply {
		t.Errorf("Expected canned reply, got %q", answer)
	}
	if sources == nil || len(sources) != 0 {
		t.Errorf("Expected empty (non-nil) source list, got %v", sources)
	}
	if llmClient.callCount() != 0 {
		t.Errorf("Expected no LLM call for empty retrieval, got %d", llmClient.callCount())
	}
}

func TestChatGroundedSourcesInRankOrder(t *testing.T) {
	manager, _, llmClient, store := newTestManager(t)

	segs := []models.Segment{
		{Index: 0, Content: "The sky is blue."},
		{Index: 1, Content: "Grass is green."},
		{Index: 2, Content: "The weather is mild."},
	}
	embedder := &wordEmbedder{}
	vectors := make([][]float32, len(segs))
	for i, seg := range segs {
		vec, _ := embedder.Embed(seg.Content, embeddings.IntentDocument)
		vectors[i] = vec
	}
	if err := store.AddSegments("doc-test", segs, vectors); err != nil {
		t.Fatalf("AddSegments failed: %v", err)
	}

	llmClient.reply = "The sky is blue."
	answer, sources, err := manager.Chat("What color is the sky?", "doc-test")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if answer != "The sky is blue." {
		t.Errorf("Unexpected answer %q", answer)
	}
	if len(sources) == 0 {
		t.Fatal("Expected grounded sources")
	}

	// The sky sentence shares the most vocabulary with the question, so
	// it must rank first and the grounding context must include it.
	if !strings.Contains(sources[0].Content, "sky") {
		t.Errorf("Expected sky sentence as top source, got %q", sources[0].Content)
	}
	lastContext := llmClient.contexts[len(llmClient.contexts)-1]
	if !strings.Contains(lastContext, "The sky is blue.") {
		t.Errorf("Expected context to include sky sentence, got %q", lastContext)
	}
	if !strings.Contains(lastContext, "\n\n") && len(sources) > 1 {
		t.Errorf("Expected blank-line separated context, got %q", lastContext)
	}
}

func TestChatRoundTrip(t *testing.T) {
	manager, _, llmClient, _ := newTestManager(t)

	namespace, err := manager.Ingest([]byte("The sky is blue. Grass is green."), "text/plain", "facts.txt")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	_, sources, err := manager.Chat("What color is the sky?", namespace)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if len(sources) == 0 {
		t.Fatal("Expected sources from grounded chat")
	}

	found := false
	for _, src := range sources {
		if strings.Contains(src.Content, "sky") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the sky sentence among sources, got %v", sources)
	}
	if llmClient.callCount() != 1 {
		t.Errorf("Expected exactly 1 LLM call, got %d", llmClient.callCount())
	}
}

func TestChatQueryUsesQueryIntent(t *testing.T) {
	manager, embedder, _, _ := newTestManager(t)

	_, _, err := manager.Chat("what color is the sky", "doc-empty")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if len(embedder.intents) != 1 || embedder.intents[0] != embeddings.IntentQuery {
		t.Errorf("Expected a single query-intent embedding, got %v", embedder.intents)
	}
}

func TestChatProviderFailures(t *testing.T) {
	manager, embedder, llmClient, _ := newTestManager(t)

	embedder.fail = true
	if _, _, err := manager.Chat("a question", "doc-x"); err == nil {
		t.Error("Expected error when embedder fails")
	}
	embedder.fail = false

	llmClient.fail = true
	if _, _, err := manager.Chat("a question", ""); err == nil {
		t.Error("Expected error when LLM fails")
	}
}

func TestDeleteDocument(t *testing.T) {
	manager, _, _, _ := newTestManager(t)

	if _, err := manager.DeleteDocument(""); err != ErrEmptyNamespace {
		t.Errorf("Expected ErrEmptyNamespace, got %v", err)
	}

	// Deleting an unknown namespace is success with zero count, never an error.
	removed, err := manager.DeleteDocument("doc-not-there")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected 0 removed, got %d", removed)
	}

	namespace, err := manager.Ingest([]byte("sky blue grass green"), "text/plain", "facts.txt")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	removed, err = manager.DeleteDocument(namespace)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed == 0 {
		t.Error("Expected at least one segment removed")
	}

	// After deletion the namespace retrieves nothing.
	answer, _, err := manager.Chat("what color is the sky", namespace)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if answer != NoRelevantInfoReply {
		t.Errorf("Expected canned reply after deletion, got %q", answer)
	}
}

func TestNamespaceIsOpaqueButDistinct(t *testing.T) {
	a := NewNamespace()
	b := NewNamespace()
	if a == b {
		t.Error("Expected distinct namespaces")
	}
	if a == "" || b == "" {
		t.Error("Expected non-empty namespaces")
	}
}
