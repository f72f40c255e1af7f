package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/ory/herodot"

	"docchat/internal/models"
	"docchat/internal/session"
)

// SessionManager is the slice of the session core the server needs,
// kept as an interface for dependency injection in tests.
type SessionManager interface {
	Ingest(data []byte, mimeType, filename string) (session.Namespace, error)
	Chat(message string, namespace session.Namespace) (string, []models.SourceDocument, error)
	DeleteDocument(namespace session.Namespace) (int, error)
}

type Server struct {
	mux      *http.ServeMux
	manager  SessionManager
	writer   *herodot.JSONWriter
	maxBytes int64
}

func NewServer(manager SessionManager, maxBytes int64) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		manager:  manager,
		writer:   herodot.NewJSONWriter(nil),
		maxBytes: maxBytes,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/upload-document", s.uploadDocument)
	s.mux.HandleFunc("/chat", s.chat)
	s.mux.HandleFunc("/delete-document/", s.deleteDocument)
	s.mux.HandleFunc("/health", s.healthCheck)
	s.mux.Handle("/", http.FileServerFS(staticFiles()))
}

func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.mux)
}

func (s *Server) Run(addr string) error {
	log.Printf("Server starting on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	// Cap the whole request body a little above the document limit to
	// leave room for multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+(64<<10))

	file, header, err := r.FormFile("document")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Uploaded file exceeds the maximum allowed size"))
			return
		}
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("No file uploaded in the 'document' field"))
		return
	}
	defer func() { _ = file.Close() }()

	// Spool the upload through a temp file that is removed on every
	// path, success and failure alike.
	tmp, err := os.CreateTemp("", "docchat-upload-*")
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to buffer upload"))
		return
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, file); err != nil {
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to read uploaded file"))
		return
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to read uploaded file"))
		return
	}

	namespace, err := s.manager.Ingest(data, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		s.writeIngestError(w, r, err)
		return
	}

	response := &models.UploadResponse{
		DocumentID:   string(namespace),
		OriginalName: header.Filename,
	}
	s.writer.Write(w, r, response)
}

func (s *Server) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrUnsupportedMediaType):
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Unsupported file type: only PDF, TXT and DOCX are accepted"))
	case errors.Is(err, session.ErrEmptyDocument):
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("The document contains no extractable text"))
	case errors.Is(err, session.ErrDocumentTooLarge):
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Uploaded file exceeds the maximum allowed size"))
	default:
		log.Printf("Ingest failed: %v", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to process document"))
	}
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	answer, sources, err := s.manager.Chat(req.Message, session.Namespace(req.DocumentID))
	if err != nil {
		if errors.Is(err, session.ErrEmptyMessage) {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Message must not be empty"))
			return
		}
		log.Printf("Chat failed: %v", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to generate a response"))
		return
	}

	response := &models.ChatResponse{
		Response:        answer,
		SourceDocuments: sources,
	}
	s.writer.Write(w, r, response)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	documentID := strings.TrimPrefix(r.URL.Path, "/delete-document/")
	removed, err := s.manager.DeleteDocument(session.Namespace(documentID))
	if err != nil {
		if errors.Is(err, session.ErrEmptyNamespace) {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Document id is required"))
			return
		}
		log.Printf("Delete failed for %q: %v", documentID, err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to delete document"))
		return
	}

	message := "Document deletion processed"
	if removed == 0 {
		message = "Document deletion processed (no stored segments found)"
	}
	s.writer.Write(w, r, &models.DeleteResponse{Message: message})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	s.writer.Write(w, r, &models.HealthResponse{Status: "healthy"})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s %s", r.Method, r.RequestURI, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
