package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitaehq/vitae/internal/models"
	"github.com/vitaehq/vitae/pkg/ingest"
	"github.com/vitaehq/vitae/pkg/llm"
	"github.com/vitaehq/vitae/pkg/rag"
	"github.com/vitaehq/vitae/pkg/store"
	"github.com/vitaehq/vitae/server"
)

const testDimension = 8

// textIngestor treats the uploaded bytes as plain text, one chunk per
// line, so handler tests need no real PDF fixtures.
type textIngestor struct{}

func (textIngestor) Process(data []byte, source string) ([]models.Chunk, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, &ingest.IngestionError{Source: source, Reason: "no extractable text"}
	}

	var chunks []models.Chunk
	for i, line := range strings.Split(text, "\n") {
		chunks = append(chunks, models.Chunk{
			ID:     source + "-" + line,
			Source: source,
			Page:   i + 1,
			Index:  i,
			Size:   len([]rune(line)),
			Text:   line,
		})
	}
	return chunks, nil
}

// hashClient embeds deterministically so equal texts land on equal
// vectors.
type hashClient struct {
	err error
}

func (c hashClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New32a()
		h.Write([]byte(text))
		seed := h.Sum32()

		vector := make([]float32, testDimension)
		for j := range vector {
			seed = seed*1664525 + 1013904223
			vector[j] = float32(seed%1000) / 1000
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// echoCompletion parrots the system prompt so tests can see exactly
// which sections were retrieved.
type echoCompletion struct {
	err error
}

func (c echoCompletion) Complete(ctx context.Context, system, user string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return system, nil
}

type failingStore struct {
	*store.MemoryStore
	queryErr error
}

func (f *failingStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.ScoredChunk, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.MemoryStore.Query(ctx, namespace, vector, k)
}

func newTestPipeline(t *testing.T) *rag.Pipeline {
	t.Helper()

	memStore := store.NewMemoryStore()
	require.NoError(t, memStore.EnsureIndex(context.Background(), testDimension))

	return &rag.Pipeline{
		Ingestor: textIngestor{},
		Embedder: llm.NewEmbedderWithClient(llm.EmbedderConfig{
			Dimension: testDimension,
			RateLimit: 1000,
		}, hashClient{}),
		Store:     memStore,
		Generator: llm.NewWithClient(llm.ChatConfig{}, echoCompletion{}),
		TopK:      4,
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return server.New("127.0.0.1:0", newTestPipeline(t)).Handler()
}

func doRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, namespace, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	if namespace != "" {
		require.NoError(t, mw.WriteField("namespace", namespace))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func chatRequest(t *testing.T, namespace, question string) *http.Request {
	t.Helper()

	body, err := json.Marshal(map[string]string{
		"namespace": namespace,
		"question":  question,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "resume chat api is running", body["message"])
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUpload(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, uploadRequest(t, "resume.pdf", "",
		"5 years of backend development\nBSc Computer Science"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Message     string `json:"message"`
		Namespace   string `json:"namespace"`
		ChunksCount int    `json:"chunks_count"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, `resume "resume.pdf" ingested`, body.Message)
	assert.Equal(t, "default", body.Namespace)
	assert.Equal(t, 2, body.ChunksCount)
}

func TestUpload_CustomNamespace(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, uploadRequest(t, "cv.pdf", "alice", "Go developer"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Namespace string `json:"namespace"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "alice", body.Namespace)
}

func TestUpload_RejectsNonPDF(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, uploadRequest(t, "resume.txt", "", "plain text"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "only PDF files are supported", body["error"])
}

func TestUpload_MissingFile(t *testing.T) {
	handler := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("namespace", "default"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := doRequest(handler, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "file field is required", body["error"])
}

func TestUpload_NotMultipart(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("raw bytes"))
	rec := doRequest(handler, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_NoExtractableText(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, uploadRequest(t, "blank.pdf", "", "   "))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "no extractable text")
}

func TestChat(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, uploadRequest(t, "resume.pdf", "",
		"5 years of experience in backend development"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(handler, chatRequest(t, "", "How many years of backend experience?"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Answer  string `json:"answer"`
		Sources []struct {
			Text string `json:"text"`
			Page int    `json:"page"`
		} `json:"sources"`
	}
	decodeBody(t, rec, &body)

	assert.Contains(t, body.Answer, "5 years of experience in backend development")
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "5 years of experience in backend development", body.Sources[0].Text)
	assert.Equal(t, 1, body.Sources[0].Page)
}

func TestChat_BlankQuestion(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, chatRequest(t, "default", "   "))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "question cannot be empty", body["error"])
}

func TestChat_InvalidJSON(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec := doRequest(handler, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "invalid JSON body", body["error"])
}

func TestChat_EmptyNamespace(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, chatRequest(t, "nobody-here", "Where did they study?"))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Body.String(), "No relevant sections found in the resume.")
	assert.Contains(t, rec.Body.String(), `"sources":[]`)
}

func TestChat_RetrievalError(t *testing.T) {
	pipeline := newTestPipeline(t)
	pipeline.Store = &failingStore{
		MemoryStore: store.NewMemoryStore(),
		queryErr:    &store.RetrievalError{Op: "query", Err: errors.New("connection refused")},
	}
	handler := server.New("127.0.0.1:0", pipeline).Handler()

	rec := doRequest(handler, chatRequest(t, "default", "anything"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestChat_GenerationError(t *testing.T) {
	pipeline := newTestPipeline(t)
	pipeline.Generator = llm.NewWithClient(llm.ChatConfig{}, echoCompletion{err: errors.New("model overloaded")})
	handler := server.New("127.0.0.1:0", pipeline).Handler()

	rec := doRequest(handler, chatRequest(t, "default", "anything"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestChat_EmbeddingBackendError(t *testing.T) {
	pipeline := newTestPipeline(t)
	pipeline.Embedder = llm.NewEmbedderWithClient(llm.EmbedderConfig{
		Dimension: testDimension,
		RateLimit: 1000,
	}, hashClient{err: errors.New("ollama unreachable")})
	handler := server.New("127.0.0.1:0", pipeline).Handler()

	rec := doRequest(handler, chatRequest(t, "default", "anything"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestReset(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, uploadRequest(t, "resume.pdf", "", "Go developer"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(handler, httptest.NewRequest(http.MethodDelete, "/reset/default", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, `namespace "default" cleared`, body["message"])

	// the namespace is gone, questions fall back
	rec = doRequest(handler, chatRequest(t, "default", "What do they do?"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No relevant sections found in the resume.")

	// resetting again still succeeds
	rec = doRequest(handler, httptest.NewRequest(http.MethodDelete, "/reset/default", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReset_MissingNamespace(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, httptest.NewRequest(http.MethodDelete, "/reset/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReset_MethodNotAllowed(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, httptest.NewRequest(http.MethodGet, "/reset/default", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadReplacesNamespace(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(handler, uploadRequest(t, "old.pdf", "", "Java developer since 2010"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(handler, uploadRequest(t, "new.pdf", "", "Go developer since 2019"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(handler, chatRequest(t, "", "What do they work with?"))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Body.String(), "Go developer since 2019")
	assert.NotContains(t, rec.Body.String(), "Java developer since 2010")
}
