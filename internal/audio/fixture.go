package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

// Fixture describes the audio file a probe will send upstream.
type Fixture struct {
	// Path is the location of the WAV file on disk.
	Path string

	// Seconds is the playback length, used for RTF computation.
	Seconds float64

	// Generated is true when the file is a placeholder written by us
	// rather than supplied by the caller.
	Generated bool
}

// EnsureFixture returns a usable audio fixture. An existing file at path
// is used as-is; otherwise a silent placeholder of defaultSeconds is
// written there. Either way the returned duration comes from the actual
// file header, not from the request.
func EnsureFixture(path string, defaultSeconds float64) (Fixture, error) {
	if path == "" {
		return Fixture{}, errors.New(errors.ErrCodeAudioFixture, "fixture path is empty")
	}

	if _, err := os.Stat(path); err == nil {
		seconds, err := Duration(path)
		if err != nil {
			return Fixture{}, err
		}
		return Fixture{Path: path, Seconds: seconds}, nil
	} else if !os.IsNotExist(err) {
		return Fixture{}, errors.NewAudioFixtureError(path, err)
	}

	if defaultSeconds <= 0 {
		defaultSeconds = DefaultFixtureSeconds
	}

	if err := WriteSilenceWAV(path, defaultSeconds, DefaultSampleRate); err != nil {
		return Fixture{}, err
	}

	seconds, err := Duration(path)
	if err != nil {
		return Fixture{}, err
	}

	return Fixture{Path: path, Seconds: seconds, Generated: true}, nil
}

// Digest returns the blake3 content digest of the file at path.
// Logs reference audio by digest so recordings never land in log lines.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewAudioFixtureError(path, err)
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.NewAudioFixtureError(path, err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// DigestBytes returns the blake3 content digest of an in-memory payload.
func DigestBytes(data []byte) string {
	hasher := blake3.New()
	_, _ = hasher.Write(data)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
