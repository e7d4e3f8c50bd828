package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vitaehq/vitae/pkg/ingest"
	"github.com/vitaehq/vitae/pkg/llm"
	"github.com/vitaehq/vitae/pkg/store"
)

const defaultNamespace = "default"

// Multipart forms buffer up to this many bytes in memory before
// spilling to disk.
const maxUploadMemory = 32 << 20

type chatRequest struct {
	Namespace string `json:"namespace"`
	Question  string `json:"question"`
}

type sourceDocument struct {
	Text string `json:"text"`
	Page int    `json:"page"`
}

type chatResponse struct {
	Answer  string           `json:"answer"`
	Sources []sourceDocument `json:"sources"`
}

type uploadResponse struct {
	Message     string `json:"message"`
	Namespace   string `json:"namespace"`
	ChunksCount int    `json:"chunks_count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "resume chat api is running",
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are supported")
		return
	}

	namespace := r.FormValue("namespace")
	if namespace == "" {
		namespace = defaultNamespace
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	count, err := s.pipeline.Ingest(r.Context(), namespace, header.Filename, data)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:     fmt.Sprintf("resume %q ingested", header.Filename),
		Namespace:   namespace,
		ChunksCount: count,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question cannot be empty")
		return
	}
	if req.Namespace == "" {
		req.Namespace = defaultNamespace
	}

	answer, err := s.pipeline.Ask(r.Context(), req.Namespace, req.Question)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := chatResponse{
		Answer:  answer.Text,
		Sources: make([]sourceDocument, 0, len(answer.Sources)),
	}
	for _, src := range answer.Sources {
		resp.Sources = append(resp.Sources, sourceDocument{Text: src.Text, Page: src.Page})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	namespace := strings.TrimPrefix(r.URL.Path, "/reset/")
	if namespace == "" || strings.Contains(namespace, "/") {
		writeError(w, http.StatusBadRequest, "namespace is required")
		return
	}

	if err := s.pipeline.Reset(r.Context(), namespace); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("namespace %q cleared", namespace),
	})
}

// writeDomainError maps pipeline failures onto HTTP statuses: caller
// mistakes are 4xx, upstream service failures are 502.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var ingestionErr *ingest.IngestionError
	var embeddingErr *llm.EmbeddingError
	var retrievalErr *store.RetrievalError
	var generationErr *llm.GenerationError

	switch {
	case errors.As(err, &ingestionErr):
		writeError(w, http.StatusUnprocessableEntity, ingestionErr.Error())
	case errors.As(err, &embeddingErr):
		if embeddingErr.BadInput() {
			writeError(w, http.StatusBadRequest, embeddingErr.Error())
		} else {
			writeError(w, http.StatusBadGateway, embeddingErr.Error())
		}
	case errors.As(err, &retrievalErr):
		writeError(w, http.StatusBadGateway, retrievalErr.Error())
	case errors.As(err, &generationErr):
		writeError(w, http.StatusBadGateway, generationErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
