package bench

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/felixgeelhaar/soundcheck/internal/audio"
	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

var errNoModels = stderrors.New("upstream serves no models")

// transcribeRequest is the JSON body the recorder page posts.
type transcribeRequest struct {
	WAVBase64 string `json:"wav_base64"`
	Filename  string `json:"filename"`
}

// transcribeResponse mirrors the response shape the page renders. The
// key names are a contract with existing callers; audio_seconds and rtf
// are null when the payload's WAV header is unreadable.
type transcribeResponse struct {
	Model        string   `json:"model"`
	Text         string   `json:"text"`
	AudioSeconds *float64 `json:"audio_seconds"`
	VLLMSeconds  float64  `json:"vllm_seconds"`
	RTF          *float64 `json:"rtf"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.WAVBase64 == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing wav_base64"})
		return
	}

	wavBytes, err := base64.StdEncoding.Strict().DecodeString(req.WAVBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid base64"})
		return
	}

	filename := req.Filename
	if filename == "" {
		filename = "recording.wav"
	}

	// Duration comes from the WAV header alone. Browsers occasionally
	// send payloads we cannot read; the transcription still proceeds,
	// only the RTF math is skipped.
	var audioSeconds *float64
	if seconds, err := audio.DurationBytes(wavBytes); err == nil && seconds > 0 {
		audioSeconds = &seconds
	}

	ctx := r.Context()

	model, err := s.modelID(ctx)
	if err != nil {
		s.logger.WithError(errors.NewBenchUpstreamError(err)).Error("model resolution failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	// Audio never reaches the logs; the digest is enough to correlate a
	// request with a probe run on the same recording.
	s.logger.Info("transcribing",
		"model", model,
		"filename", filename,
		"bytes", len(wavBytes),
		"audio_digest", audio.DigestBytes(wavBytes),
	)

	start := time.Now()
	text, err := s.client.TranscribeReader(ctx, model, bytes.NewReader(wavBytes), filename)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.WithError(errors.NewBenchUpstreamError(err)).Error("upstream transcription failed",
			"elapsed", elapsed.String(),
		)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	resp := transcribeResponse{
		Model:       model,
		Text:        text,
		VLLMSeconds: elapsed.Seconds(),
	}
	if audioSeconds != nil {
		resp.AudioSeconds = audioSeconds
		rtf := resp.VLLMSeconds / *audioSeconds
		resp.RTF = &rtf
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
