package bench

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/soundcheck/internal/asr"
	"github.com/felixgeelhaar/soundcheck/internal/audio"
)

// newUpstream returns a stub OpenAI-compatible transcription server.
func newUpstream(t *testing.T, modelIDs []string, transcript string) *httptest.Server {
	t.Helper()

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
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": transcript})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newBench(t *testing.T, upstreamURL, model string) *Server {
	t.Helper()
	return New(Options{
		Listen: "127.0.0.1:0",
		Client: asr.New(asr.Config{BaseURL: upstreamURL}),
		Model:  model,
	})
}

// silenceWAV returns the bytes of a one-second generated fixture.
func silenceWAV(t *testing.T) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	require.NoError(t, audio.WriteSilenceWAV(path, 1.0, audio.DefaultSampleRate))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func postTranscribe(t *testing.T, handler http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	upstream := newUpstream(t, []string{"m"}, "")
	srv := newBench(t, upstream.URL, "m")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
}

func TestIndexServesRecorderPage(t *testing.T) {
	upstream := newUpstream(t, []string{"m"}, "")
	srv := newBench(t, upstream.URL, "m")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "soundcheck bench")
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	upstream := newUpstream(t, []string{"m"}, "")
	srv := newBench(t, upstream.URL, "m")

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "not found"}`, rec.Body.String())
}

func TestTranscribe(t *testing.T) {
	upstream := newUpstream(t, []string{"whisper-large-v3"}, "one two three")
	srv := newBench(t, upstream.URL, "")

	wav := silenceWAV(t)
	rec := postTranscribe(t, srv.Handler(), map[string]string{
		"wav_base64": base64.StdEncoding.EncodeToString(wav),
		"filename":   "take1.wav",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp transcribeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "whisper-large-v3", resp.Model)
	assert.Equal(t, "one two three", resp.Text)
	require.NotNil(t, resp.AudioSeconds)
	assert.InDelta(t, 1.0, *resp.AudioSeconds, 0.01)
	require.NotNil(t, resp.RTF)
	assert.Greater(t, *resp.RTF, 0.0)
}

func TestTranscribePinnedModelSkipsLookup(t *testing.T) {
	// The upstream serves nothing, so a lookup would fail: the pinned
	// model must be used as-is.
	upstream := newUpstream(t, nil, "pinned ok")
	srv := newBench(t, upstream.URL, "my-model")

	rec := postTranscribe(t, srv.Handler(), map[string]string{
		"wav_base64": base64.StdEncoding.EncodeToString(silenceWAV(t)),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp transcribeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "my-model", resp.Model)
}

func TestTranscribeUnreadableWAVStillTranscribes(t *testing.T) {
	upstream := newUpstream(t, []string{"m"}, "garbled but transcribed")
	srv := newBench(t, upstream.URL, "m")

	rec := postTranscribe(t, srv.Handler(), map[string]string{
		"wav_base64": base64.StdEncoding.EncodeToString([]byte("not a wav")),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp transcribeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "garbled but transcribed", resp.Text)
	assert.Nil(t, resp.AudioSeconds)
	assert.Nil(t, resp.RTF)
}

func TestTranscribeMissingPayload(t *testing.T) {
	upstream := newUpstream(t, []string{"m"}, "")
	srv := newBench(t, upstream.URL, "m")

	rec := postTranscribe(t, srv.Handler(), map[string]string{"filename": "x.wav"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "missing wav_base64"}`, rec.Body.String())
}

func TestTranscribeInvalidBase64(t *testing.T) {
	upstream := newUpstream(t, []string{"m"}, "")
	srv := newBench(t, upstream.URL, "m")

	rec := postTranscribe(t, srv.Handler(), map[string]string{"wav_base64": "!!! not base64 !!!"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "invalid base64"}`, rec.Body.String())
}

func TestTranscribeInvalidJSON(t *testing.T) {
	upstream := newUpstream(t, []string{"m"}, "")
	srv := newBench(t, upstream.URL, "m")

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "invalid json"}`, rec.Body.String())
}

func TestTranscribePayloadTooLarge(t *testing.T) {
	upstream := newUpstream(t, []string{"m"}, "")
	srv := New(Options{
		Listen:       "127.0.0.1:0",
		Client:       asr.New(asr.Config{BaseURL: upstream.URL}),
		Model:        "m",
		MaxUploadMiB: 1,
	})

	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	rec := postTranscribe(t, srv.Handler(), map[string]string{
		"wav_base64": base64.StdEncoding.EncodeToString(big),
	})

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error": "payload too large"}`, rec.Body.String())
}

func TestTranscribeUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "engine crashed", "type": "server_error"}}`))
	}))
	defer upstream.Close()

	srv := newBench(t, upstream.URL, "m")

	rec := postTranscribe(t, srv.Handler(), map[string]string{
		"wav_base64": base64.StdEncoding.EncodeToString(silenceWAV(t)),
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "engine crashed")
}

func TestTranscribeNoModelsUpstream(t *testing.T) {
	upstream := newUpstream(t, nil, "")
	srv := newBench(t, upstream.URL, "")

	rec := postTranscribe(t, srv.Handler(), map[string]string{
		"wav_base64": base64.StdEncoding.EncodeToString(silenceWAV(t)),
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "no models")
}
