package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitaehq/vitae/pkg/client"
)

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"message": "resume chat api is running",
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL + "/")
	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "resume chat api is running", health.Message)
}

func TestClient_Upload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF fake content"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "resume.pdf", header.Filename)
		assert.Equal(t, "alice", r.FormValue("namespace"))

		json.NewEncoder(w).Encode(map[string]any{
			"message":      `resume "resume.pdf" ingested`,
			"namespace":    "alice",
			"chunks_count": 7,
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	res, err := c.Upload(context.Background(), path, "alice")
	require.NoError(t, err)
	assert.Equal(t, `resume "resume.pdf" ingested`, res.Message)
	assert.Equal(t, "alice", res.Namespace)
	assert.Equal(t, 7, res.ChunksCount)
}

func TestClient_Upload_MissingFile(t *testing.T) {
	c := client.New("http://localhost:0")
	_, err := c.Upload(context.Background(), "/does/not/exist.pdf", "default")
	assert.ErrorContains(t, err, "failed to open")
}

func TestClient_Ask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "default", req["namespace"])
		assert.Equal(t, "How much experience?", req["question"])

		json.NewEncoder(w).Encode(map[string]any{
			"answer": "5 years",
			"sources": []map[string]any{
				{"text": "5 years of Go", "page": 2},
			},
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	res, err := c.Ask(context.Background(), "default", "How much experience?")
	require.NoError(t, err)
	assert.Equal(t, "5 years", res.Answer)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "5 years of Go", res.Sources[0].Text)
	assert.Equal(t, 2, res.Sources[0].Page)
}

func TestClient_Reset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/reset/alice", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]string{
			"message": `namespace "alice" cleared`,
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	msg, err := c.Reset(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, `namespace "alice" cleared`, msg)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "ingest resume.pdf: no extractable text",
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.Ask(context.Background(), "default", "anything")
	require.Error(t, err)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "ingest resume.pdf: no extractable text", apiErr.Message)
}

func TestClient_APIError_NoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.Health(context.Background())

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}
