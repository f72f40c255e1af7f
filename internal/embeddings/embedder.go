// Package embeddings turns text into vectors via the Ollama embeddings API.
package embeddings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Intent declares what an embedding will be used for. nomic-embed-text
// is trained with task prefixes, so indexing and querying use different
// prefixes while producing vectors of the same shape.
type Intent string

const (
	IntentDocument Intent = "search_document"
	IntentQuery    Intent = "search_query"
)

type Embedder struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewEmbedder(baseURL, model string, timeout time.Duration) *Embedder {
	return &Embedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Embed returns the embedding vector for text under the given intent.
func (e *Embedder) Embed(text string, intent Intent) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model":  e.model,
		"prompt": string(intent) + ": " + text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Post(e.baseURL+"/api/embeddings", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings API returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return result.Embedding, nil
}
