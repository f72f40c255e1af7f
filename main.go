// DocChat is a document-question-answering chat service: uploads are
// extracted, chunked, embedded and stored per-document; chat turns are
// answered grounded against one document or ungrounded.
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"docchat/internal/api"
	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/embeddings"
	"docchat/internal/llm"
	"docchat/internal/session"
	"docchat/internal/storage"
)

func main() {
	log.Println("Starting DocChat...")

	// .env is optional; real environment variables still win via koanf.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	vectorStore, err := storage.NewSQLiteVectorStore(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to initialize vector store:", err)
	}
	defer func() {
		if err := vectorStore.Close(); err != nil {
			log.Printf("Error closing vector store: %v", err)
		}
	}()

	ollamaTimeout := time.Duration(cfg.Services.Ollama.Timeout) * time.Second
	embedder := embeddings.NewEmbedder(cfg.Services.Ollama.BaseURL, cfg.Services.Ollama.EmbeddingModel, ollamaTimeout)
	generator := llm.NewOllamaClient(cfg.Services.Ollama.BaseURL, cfg.Services.Ollama.LLMModel, ollamaTimeout)

	splitter, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		log.Fatal("Invalid chunking configuration:", err)
	}

	manager := session.NewManager(embedder, vectorStore, generator, splitter, cfg.Ingest.MaxUploadBytes, cfg.Chat.TopK)
	server := api.NewServer(manager, cfg.Ingest.MaxUploadBytes)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	log.Printf("Server starting on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Printf("Failed to start server: %v", err)
		return
	}
}
