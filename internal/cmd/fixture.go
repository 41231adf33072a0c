package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/soundcheck/internal/audio"
	"github.com/felixgeelhaar/soundcheck/internal/ux"
)

var fixtureCmd = &cobra.Command{
	Use:   "fixture",
	Short: "Generate a placeholder audio fixture",
	Long: `Write a silent WAV file with a known duration, for probing servers
without a real recording at hand. The probe only needs a file path and
its length in seconds; silence exercises the full transcription path.

Examples:
  # One second of 16 kHz silence
  soundcheck fixture --out sample.wav

  # A longer fixture for RTF measurements
  soundcheck fixture --out long.wav --seconds 30`,
	RunE: runFixture,
}

var (
	fixtureOut     string
	fixtureSeconds float64
	fixtureRate    int
)

// fixtureInfo is what the command reports about the written file.
type fixtureInfo struct {
	Path    string  `json:"path" yaml:"path"`
	Seconds float64 `json:"seconds" yaml:"seconds"`
	Rate    int     `json:"sample_rate" yaml:"sample_rate"`
	Digest  string  `json:"digest" yaml:"digest"`
}

func (i fixtureInfo) String() string {
	return fmt.Sprintf("wrote %s (%.3fs @ %d Hz, blake3 %.16s)", i.Path, i.Seconds, i.Rate, i.Digest)
}

func init() {
	f := fixtureCmd.Flags()
	f.StringVar(&fixtureOut, "out", "soundcheck-fixture.wav", "output path")
	f.Float64Var(&fixtureSeconds, "seconds", audio.DefaultFixtureSeconds, "fixture length in seconds")
	f.IntVar(&fixtureRate, "rate", audio.DefaultSampleRate, "sample rate in Hz")

	rootCmd.AddCommand(fixtureCmd)
}

func runFixture(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	if err := audio.WriteSilenceWAV(fixtureOut, fixtureSeconds, fixtureRate); err != nil {
		return err
	}

	// Report the duration the header actually encodes, not the request.
	seconds, err := audio.Duration(fixtureOut)
	if err != nil {
		return err
	}

	digest, err := audio.Digest(fixtureOut)
	if err != nil {
		return err
	}

	formatter, err := ux.NewFormatter(cmdCtx.Format, &ux.FormatterOptions{
		Writer:  cmd.OutOrStdout(),
		NoColor: cmdCtx.NoColor,
	})
	if err != nil {
		return err
	}

	return formatter.Format(fixtureInfo{
		Path:    fixtureOut,
		Seconds: seconds,
		Rate:    fixtureRate,
		Digest:  digest,
	})
}
