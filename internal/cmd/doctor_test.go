package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/soundcheck/internal/audio"
	"github.com/felixgeelhaar/soundcheck/internal/config"
)

func newDoctorReport() *DoctorReport {
	return &DoctorReport{
		Issues:    []string{},
		Warnings:  []string{},
		NextSteps: []string{},
	}
}

func TestCheckConfig(t *testing.T) {
	t.Run("defaults when no file", func(t *testing.T) {
		cmdCtx := &CommandContext{}
		report := newDoctorReport()

		t.Chdir(t.TempDir())
		cfg := checkConfig(cmdCtx, report)

		require.NotNil(t, cfg)
		assert.Equal(t, "ok", report.Config.Status)
		assert.Empty(t, report.Issues)
	})

	t.Run("broken file is an issue", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "soundcheck.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

		cmdCtx := &CommandContext{ConfigPath: path}
		report := newDoctorReport()

		cfg := checkConfig(cmdCtx, report)

		require.NotNil(t, cfg) // defaults keep the other checks running
		assert.Equal(t, "error", report.Config.Status)
		assert.NotEmpty(t, report.Issues)
	})
}

func TestCheckExecutable(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		cfg := config.Default()
		cfg.Server.Command = []string{"sh", "-c", "true"}
		report := newDoctorReport()

		checkExecutable(cfg, report)

		assert.Equal(t, "ok", report.Executable.Status)
		assert.Empty(t, report.Warnings)
	})

	t.Run("missing is a warning, not an issue", func(t *testing.T) {
		cfg := config.Default()
		cfg.Server.Command = []string{"soundcheck-no-such-binary"}
		report := newDoctorReport()

		checkExecutable(cfg, report)

		assert.Equal(t, "missing", report.Executable.Status)
		assert.NotEmpty(t, report.Warnings)
		assert.Empty(t, report.Issues)
	})
}

func TestCheckAudio(t *testing.T) {
	t.Run("unset means a placeholder", func(t *testing.T) {
		cfg := config.Default()
		cfg.Probe.Audio = ""
		report := newDoctorReport()

		checkAudio(cfg, report)

		assert.Equal(t, "ok", report.Audio.Status)
	})

	t.Run("readable fixture", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sample.wav")
		require.NoError(t, audio.WriteSilenceWAV(path, 0.5, audio.DefaultSampleRate))

		cfg := config.Default()
		cfg.Probe.Audio = path
		report := newDoctorReport()

		checkAudio(cfg, report)

		assert.Equal(t, "ok", report.Audio.Status)
		assert.InDelta(t, 0.5, report.Audio.Details["seconds"], 0.01)
	})

	t.Run("unreadable fixture is an issue", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "noise.wav")
		require.NoError(t, os.WriteFile(path, []byte("not a wav"), 0o644))

		cfg := config.Default()
		cfg.Probe.Audio = path
		report := newDoctorReport()

		checkAudio(cfg, report)

		assert.Equal(t, "error", report.Audio.Status)
		assert.NotEmpty(t, report.Issues)
	})
}

const openAPIWithBothPaths = `{
  "openapi": "3.1.0",
  "info": {"title": "stub", "version": "1"},
  "paths": {
    "/v1/models": {"get": {"responses": {"200": {"description": "ok"}}}},
    "/v1/audio/transcriptions": {"post": {"responses": {"200": {"description": "ok"}}}}
  }
}`

const openAPIModelsOnly = `{
  "openapi": "3.1.0",
  "info": {"title": "stub", "version": "1"},
  "paths": {
    "/v1/models": {"get": {"responses": {"200": {"description": "ok"}}}}
  }
}`

func openAPIServer(t *testing.T, doc string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckEndpoints(t *testing.T) {
	t.Run("both paths declared", func(t *testing.T) {
		srv := openAPIServer(t, openAPIWithBothPaths)
		report := newDoctorReport()

		checkEndpoints(context.Background(), srv.URL, report)

		assert.Equal(t, "ok", report.Endpoints.Status)
		assert.Empty(t, report.Warnings)
	})

	t.Run("transcription path missing", func(t *testing.T) {
		srv := openAPIServer(t, openAPIModelsOnly)
		report := newDoctorReport()

		checkEndpoints(context.Background(), srv.URL, report)

		assert.Equal(t, "warning", report.Endpoints.Status)
		assert.Contains(t, report.Endpoints.Message, "/v1/audio/transcriptions")
	})

	t.Run("no openapi document", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(srv.Close)
		report := newDoctorReport()

		checkEndpoints(context.Background(), srv.URL, report)

		assert.Equal(t, "warning", report.Endpoints.Status)
	})
}

func TestCheckModels(t *testing.T) {
	t.Run("lists served models", func(t *testing.T) {
		srv := probeUpstream(t, []string{"qwen3-asr"}, "")
		report := newDoctorReport()

		checkModels(context.Background(), srv.URL, report)

		assert.Equal(t, "ok", report.Models.Status)
		assert.Contains(t, report.Models.Message, "qwen3-asr")
	})

	t.Run("empty listing", func(t *testing.T) {
		srv := probeUpstream(t, nil, "")
		report := newDoctorReport()

		checkModels(context.Background(), srv.URL, report)

		assert.Equal(t, "warning", report.Models.Status)
	})
}
