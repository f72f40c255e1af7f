// Package llm generates answers via the Ollama completion API.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Answer generates a completion for the question. A non-empty context
// block switches to the grounded prompt, which confines the model to
// the supplied context; an empty block produces a plain chat prompt.
func (o *OllamaClient) Answer(question, context string) (string, error) {
	prompt := buildPrompt(question, context)

	reqBody := map[string]interface{}{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	resp, err := o.client.Post(o.baseURL+"/api/generate", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate API returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	return result.Response, nil
}

func buildPrompt(question, context string) string {
	var b strings.Builder

	if context == "" {
		b.WriteString("You are a helpful assistant. Answer the user's question clearly and concisely.\n")
		b.WriteString("\nQuestion: ")
		b.WriteString(question)
		b.WriteString("\n\nAnswer: ")
		return b.String()
	}

	b.WriteString("You are a helpful assistant that answers questions about an uploaded document.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer the question based ONLY on the information in the context above. ")
	b.WriteString("If the context does not contain enough information to answer, say so explicitly.\n\nAnswer: ")

	return b.String()
}
