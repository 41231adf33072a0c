// Package audio provides the smoke-test audio fixture: a placeholder
// WAV generator and a header-only duration reader. Nothing here decodes
// samples; probes only need a file path and its length in seconds.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

const (
	// DefaultSampleRate is the sample rate used for generated fixtures.
	// Speech models are commonly trained on 16 kHz mono input.
	DefaultSampleRate = 16000

	// DefaultFixtureSeconds is the length of a generated placeholder.
	DefaultFixtureSeconds = 1.0

	numChannels    = 1
	bitsPerSample  = 16
	wavHeaderBytes = 44
)

// WriteSilenceWAV writes a silent PCM WAV file (mono, 16-bit) of the
// given length. It is a placeholder fixture: long enough to exercise the
// transcription path, with a known duration for RTF math.
func WriteSilenceWAV(path string, seconds float64, sampleRate int) error {
	if seconds <= 0 {
		return errors.New(errors.ErrCodeAudioFixture, fmt.Sprintf("fixture length must be positive, got %gs", seconds))
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	frames := int(float64(sampleRate) * seconds)
	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataLen := frames * blockAlign

	f, err := os.Create(path)
	if err != nil {
		return errors.NewAudioFixtureError(path, err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderBytes)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], numChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	if _, err := f.Write(header); err != nil {
		return errors.NewAudioFixtureError(path, err)
	}

	// Silence is all-zero samples; write in chunks to keep memory flat.
	zeros := make([]byte, 32*1024)
	remaining := dataLen
	for remaining > 0 {
		n := len(zeros)
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(zeros[:n]); err != nil {
			return errors.NewAudioFixtureError(path, err)
		}
		remaining -= n
	}

	return nil
}

// Duration returns the playback length in seconds of a PCM WAV file,
// computed from the header alone (data bytes / byte rate).
func Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.NewAudioFixtureError(path, err)
	}
	defer f.Close()

	return durationFrom(f, path)
}

// DurationBytes is Duration for an in-memory WAV payload.
func DurationBytes(data []byte) (float64, error) {
	return durationFrom(bytes.NewReader(data), "<memory>")
}

func durationFrom(r io.ReadSeeker, name string) (float64, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return 0, errors.Wrap(errors.ErrCodeAudioBadWAV, fmt.Sprintf("not a WAV file: %s", name), err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, errors.New(errors.ErrCodeAudioBadWAV, fmt.Sprintf("not a WAV file: %s", name))
	}

	var byteRate uint32
	var dataLen uint32
	var haveFmt, haveData bool

	// Walk chunks until both fmt and data are seen. Chunk sizes are
	// padded to even lengths per the RIFF spec.
	for !(haveFmt && haveData) {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			return 0, errors.Wrap(errors.ErrCodeAudioBadWAV, fmt.Sprintf("truncated WAV file: %s", name), err)
		}

		chunkID := string(chunkHeader[0:4])
		chunkLen := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			var fmtChunk [16]byte
			if _, err := io.ReadFull(r, fmtChunk[:]); err != nil {
				return 0, errors.Wrap(errors.ErrCodeAudioBadWAV, fmt.Sprintf("truncated fmt chunk: %s", name), err)
			}
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
			haveFmt = true

			if rest := int64(chunkLen) - 16; rest > 0 {
				if _, err := r.Seek(pad(rest), io.SeekCurrent); err != nil {
					return 0, errors.Wrap(errors.ErrCodeAudioBadWAV, name, err)
				}
			}
		case "data":
			dataLen = chunkLen
			haveData = true

			if !haveFmt {
				if _, err := r.Seek(pad(int64(chunkLen)), io.SeekCurrent); err != nil {
					return 0, errors.Wrap(errors.ErrCodeAudioBadWAV, name, err)
				}
			}
		default:
			if _, err := r.Seek(pad(int64(chunkLen)), io.SeekCurrent); err != nil {
				return 0, errors.Wrap(errors.ErrCodeAudioBadWAV, name, err)
			}
		}
	}

	if byteRate == 0 {
		return 0, errors.New(errors.ErrCodeAudioBadWAV, fmt.Sprintf("WAV header has zero byte rate: %s", name))
	}

	return float64(dataLen) / float64(byteRate), nil
}

func pad(n int64) int64 {
	if n%2 == 1 {
		return n + 1
	}
	return n
}
