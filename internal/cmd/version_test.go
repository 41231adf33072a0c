package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/soundcheck/internal/version"
)

func TestVersionCommand(t *testing.T) {
	t.Run("short output", func(t *testing.T) {
		buf := new(bytes.Buffer)
		versionCmd.SetOut(buf)
		t.Cleanup(func() { versionCmd.SetOut(nil) })

		require.NoError(t, runVersion(versionCmd, nil))

		out := strings.TrimSpace(buf.String())
		assert.True(t, strings.HasPrefix(out, "soundcheck "), "got %q", out)
	})

	t.Run("json output", func(t *testing.T) {
		buf := new(bytes.Buffer)
		versionCmd.SetOut(buf)
		versionJSON = true
		t.Cleanup(func() {
			versionCmd.SetOut(nil)
			versionJSON = false
		})

		require.NoError(t, runVersion(versionCmd, nil))

		var info version.Info
		require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
		assert.NotEmpty(t, info.Version)
		assert.NotEmpty(t, info.GoVersion)
	})

	t.Run("long output", func(t *testing.T) {
		buf := new(bytes.Buffer)
		versionCmd.SetOut(buf)
		versionVerbose = true
		t.Cleanup(func() {
			versionCmd.SetOut(nil)
			versionVerbose = false
		})

		require.NoError(t, runVersion(versionCmd, nil))

		out := buf.String()
		assert.Contains(t, out, "soundcheck")
		assert.Contains(t, out, "built")
	})
}
