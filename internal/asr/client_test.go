package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStubServer returns a minimal OpenAI-compatible endpoint surface:
// a model listing and a transcription endpoint that records what it saw.
func newStubServer(t *testing.T, modelIDs []string) (*httptest.Server, *stubState) {
	t.Helper()

	state := &stubState{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]any, 0, len(modelIDs))
		for _, id := range modelIDs {
			data = append(data, map[string]any{"id": id, "object": "model"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		state.gotModel = r.FormValue("model")

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		state.gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "hello from the stub"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, state
}

type stubState struct {
	gotModel    string
	gotFilename string
}

func TestModels(t *testing.T) {
	server, _ := newStubServer(t, []string{"whisper-large-v3", "voxtral-mini"})

	client := New(Config{BaseURL: server.URL})

	ids, err := client.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"whisper-large-v3", "voxtral-mini"}, ids)
}

func TestFirstModel(t *testing.T) {
	server, _ := newStubServer(t, []string{"whisper-large-v3"})

	client := New(Config{BaseURL: server.URL})

	id, ok, err := client.FirstModel(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "whisper-large-v3", id)
}

func TestFirstModelEmptyList(t *testing.T) {
	server, _ := newStubServer(t, nil)

	client := New(Config{BaseURL: server.URL})

	_, ok, err := client.FirstModel(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModelsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "engine not initialized", "type": "server_error"}}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})

	_, err := client.Models(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine not initialized")
}

func TestTranscribeReader(t *testing.T) {
	server, state := newStubServer(t, []string{"whisper-large-v3"})

	client := New(Config{BaseURL: server.URL})

	text, err := client.TranscribeReader(context.Background(),
		"whisper-large-v3", strings.NewReader("RIFF-ish payload"), "sample.wav")
	require.NoError(t, err)

	assert.Equal(t, "hello from the stub", text)
	assert.Equal(t, "whisper-large-v3", state.gotModel)
	assert.Equal(t, "sample.wav", state.gotFilename)
}

func TestTranscribeReaderDefaultFilename(t *testing.T) {
	server, state := newStubServer(t, []string{"m"})

	client := New(Config{BaseURL: server.URL})

	_, err := client.TranscribeReader(context.Background(), "m", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "audio.wav", state.gotFilename)
}

func TestAPIBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://127.0.0.1:8000", "http://127.0.0.1:8000/v1"},
		{"http://127.0.0.1:8000/", "http://127.0.0.1:8000/v1"},
		{"http://127.0.0.1:8000/v1", "http://127.0.0.1:8000/v1"},
		{"http://localhost:9000/v1/", "http://localhost:9000/v1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, apiBase(tt.in), "apiBase(%q)", tt.in)
	}
}
