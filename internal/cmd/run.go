package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/soundcheck/internal/asr"
	"github.com/felixgeelhaar/soundcheck/internal/audio"
	"github.com/felixgeelhaar/soundcheck/internal/config"
	"github.com/felixgeelhaar/soundcheck/internal/errors"
	"github.com/felixgeelhaar/soundcheck/internal/harness"
	"github.com/felixgeelhaar/soundcheck/internal/log"
	"github.com/felixgeelhaar/soundcheck/internal/probe"
	"github.com/felixgeelhaar/soundcheck/internal/report"
	"github.com/felixgeelhaar/soundcheck/internal/tui"
	"github.com/felixgeelhaar/soundcheck/internal/ux"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the speech server, wait for readiness, run one probe",
	Long: `Run one full smoke-test invocation: launch the configured server
(or attach to a running one with --attach), poll until it is ready, run
a single probe against it, print the result, and tear the server down.

The stdout lines are stable and script-friendly:

  MODEL: <served model id>
  AUDIO_SECONDS: <fixture length>
  ELAPSED_SECONDS: <probe wall time>
  RTF: <elapsed / audio>
  TEXT: <transcript>

Exit codes: 0 success, 2 never ready, 3 probe failed, 4 crashed right
after readiness, 1 anything else, 130 interrupted.

Examples:
  # Launch vLLM with the configured model and probe it
  soundcheck run

  # Probe a server somebody else started
  soundcheck run --attach --host 127.0.0.1 --port 8000

  # Use a real recording and leave the server running afterwards
  soundcheck run --audio sample.wav --keep-alive

  # A demo server without a model listing
  soundcheck run --server-cmd "qwen-asr-demo" --readiness reachable --probe none

  # Watch the lifecycle live
  soundcheck run --watch`,
	RunE: runRun,
}

var (
	runModel           string
	runServedModelName string
	runHost            string
	runPort            int
	runWorkdir         string
	runEnv             []string
	runOffline         bool
	runGPUMemUtil      float64
	runMaxModelLen     int
	runServerCmd       string
	runAttach          bool
	runKeepAlive       bool
	runTimeout         time.Duration
	runPollInterval    time.Duration
	runReadiness       string
	runGrace           time.Duration
	runAudio           string
	runFixtureSeconds  float64
	runProbeMode       string
	runRequestTimeout  time.Duration
	runWatch           bool
)

func init() {
	f := runCmd.Flags()

	f.StringVar(&runModel, "model", "", "model path or hub id to serve")
	f.StringVar(&runServedModelName, "served-model-name", "", "model id the server announces")
	f.StringVar(&runHost, "host", "", "server bind host")
	f.IntVar(&runPort, "port", 0, "server bind port")
	f.StringVar(&runWorkdir, "workdir", "", "working directory for the server process")
	f.StringArrayVar(&runEnv, "env", nil, "environment overlay for the server, KEY=VALUE (repeatable)")
	f.BoolVar(&runOffline, "offline", false, "set HF_HUB_OFFLINE=1 and TRANSFORMERS_OFFLINE=1 for the server")
	f.Float64Var(&runGPUMemUtil, "gpu-memory-utilization", 0, "vLLM GPU memory fraction")
	f.IntVar(&runMaxModelLen, "max-model-len", 0, "vLLM max model length")
	f.StringVar(&runServerCmd, "server-cmd", "", "full server command, split on whitespace (overrides the assembled vllm line)")
	f.BoolVar(&runAttach, "attach", false, "probe an already-running server instead of launching one")
	f.BoolVar(&runKeepAlive, "keep-alive", false, "leave the launched server running afterwards")
	f.DurationVar(&runTimeout, "timeout", 0, "total readiness wait budget")
	f.DurationVar(&runPollInterval, "poll-interval", 0, "pause between readiness attempts")
	f.StringVar(&runReadiness, "readiness", "", "readiness predicate: models or reachable")
	f.DurationVar(&runGrace, "grace", 0, "post-readiness watch window for early crashes")
	f.StringVar(&runAudio, "audio", "", "WAV fixture path (empty generates a silence placeholder)")
	f.Float64Var(&runFixtureSeconds, "fixture-seconds", 0, "length of the generated placeholder fixture")
	f.StringVar(&runProbeMode, "probe", "transcribe", "probe to run once ready: transcribe, models, or none")
	f.DurationVar(&runRequestTimeout, "request-timeout", 0, "transcription request timeout")
	f.BoolVar(&runWatch, "watch", false, "render the lifecycle in a live terminal view")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	cfg, err := cmdCtx.LoadConfig()
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	switch runProbeMode {
	case "transcribe", "models", "none":
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("--probe %q must be \"transcribe\", \"models\", or \"none\"", runProbeMode))
	}

	opts := runOptions{
		Attach:    runAttach,
		KeepAlive: runKeepAlive,
		ProbeMode: runProbeMode,
	}

	if runWatch {
		return runWatched(cmd.Context(), cmdCtx, cfg, opts)
	}

	logger := cmdCtx.Logger()
	log.SetDefaultLogger(logger)

	h := harness.New(harness.Options{
		Logger:       logger,
		GracefulWait: cfg.Server.ShutdownGrace.Std(),
	})

	rep, runErr := executeRun(cmd.Context(), h, cfg, opts)
	if err := emitReport(cmdCtx, rep); err != nil {
		return err
	}
	return runErr
}

// runWatched drives the same invocation behind a live Bubble Tea view.
// The server's own output and our logs are discarded while the view
// owns the terminal.
func runWatched(ctx context.Context, cmdCtx *CommandContext, cfg *config.Config, opts runOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	command := ""
	if !opts.Attach {
		command = strings.Join(cfg.LaunchCommand(), " ")
	}

	program := tea.NewProgram(tui.NewWatchModel(cfg.BaseURL(), command, cancel))

	quietLog := log.New(log.Config{Level: log.LevelError, Output: log.NewOutput(io.Discard)})

	h := harness.New(harness.Options{
		Logger:       quietLog,
		GracefulWait: cfg.Server.ShutdownGrace.Std(),
		Stdout:       io.Discard,
		Stderr:       io.Discard,
		OnPhase: func(p harness.Phase) {
			program.Send(tui.PhaseMsg{Phase: p})
		},
		OnPoll: func(attempt int, res *probe.Result) {
			program.Send(tui.PollMsg{
				Attempt: attempt,
				Ready:   res.IsReady(),
				Message: res.Message,
				Latency: res.Latency,
			})
		},
	})

	var (
		rep    *report.Report
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		rep, runErr = executeRun(ctx, h, cfg, opts)
		program.Send(tui.ResultMsg{Report: rep})
	}()

	finalModel, err := program.Run()
	if err != nil {
		cancel()
		<-done
		return err
	}
	if m, ok := finalModel.(tui.WatchModel); ok && m.Cancelled() {
		// Block until the lifecycle goroutine has unwound through its
		// deferred shutdown; returning earlier would race os.Exit
		// against the TERM-then-KILL escalation.
		<-done
		return context.Canceled
	}
	<-done

	if err := emitReport(cmdCtx, rep); err != nil {
		return err
	}
	return runErr
}

// runOptions are the per-invocation switches that are not part of the
// launch configuration.
type runOptions struct {
	Attach    bool
	KeepAlive bool
	ProbeMode string
}

// executeRun is the whole lifecycle: launch (or attach), await
// readiness, grace-watch, probe, and guaranteed teardown. It always
// returns a report; the error is the taxonomy failure for exit-code
// mapping, nil on success.
func executeRun(ctx context.Context, h *harness.Harness, cfg *config.Config, opts runOptions) (*report.Report, error) {
	target := cfg.BaseURL()
	rep := report.New(target)

	var handle *harness.Handle
	if !opts.Attach {
		spec := harness.LaunchSpec{
			Command: cfg.LaunchCommand(),
			Dir:     cfg.Server.Workdir,
			Env:     cfg.LaunchEnv(),
			Host:    cfg.Server.Host,
			Port:    cfg.Server.Port,
		}

		var err error
		handle, err = h.Start(ctx, spec)
		if err != nil {
			rep.Fail(err, 0)
			h.Shutdown(handle, false)
			return rep, err
		}
	}

	// Teardown on every path out, including panics below. Keep-alive
	// detaches instead of killing.
	defer h.Shutdown(handle, opts.KeepAlive)

	readinessClient := asr.New(asr.Config{
		BaseURL:        target,
		RequestTimeout: harness.DefaultAttemptTimeout,
	})

	var p probe.Probe
	switch cfg.Probe.Readiness {
	case "reachable":
		p = probe.NewReachable(target, 0)
	default:
		p = probe.NewModels(readinessClient)
	}

	ready, err := h.AwaitReady(ctx, handle, p, cfg.Probe.Timeout.Std(), cfg.Probe.PollInterval.Std())
	if err != nil {
		rep.Fail(err, 0)
		return rep, err
	}

	if err := h.GraceWait(ctx, handle, cfg.Probe.Grace.Std()); err != nil {
		rep.Fail(err, 0)
		return rep, err
	}

	// Prefer the id the readiness probe saw over the configured name.
	model := cfg.Server.ServedModelName
	if id, ok := ready.Details["model"].(string); ok && id != "" {
		model = id
	}

	if opts.ProbeMode == "none" {
		rep.Model = model
		rep.Finish("", 0)
		return rep, nil
	}

	probeClient := asr.New(asr.Config{
		BaseURL:        target,
		RequestTimeout: cfg.Probe.RequestTimeout.Std(),
	})

	var text string
	action, err := buildProbeAction(opts.ProbeMode, cfg, rep, probeClient, &model, &text)
	if err != nil {
		rep.Fail(err, 0)
		return rep, err
	}

	result := h.RunProbe(ctx, handle, action)
	rep.Model = model
	if result.Err != nil {
		rep.Fail(result.Err, result.Elapsed)
		if result.ProcessExitCode != nil {
			rep.ProcessExitCode = result.ProcessExitCode
		}
		return rep, result.Err
	}

	rep.Finish(text, result.Elapsed)
	return rep, nil
}

// buildProbeAction prepares the probe closure. The transcribe probe
// needs its fixture before timing starts; model resolution happens
// inside the action so its failures count as probe failures.
func buildProbeAction(mode string, cfg *config.Config, rep *report.Report, client *asr.Client, model *string, text *string) (func(context.Context) error, error) {
	if mode == "models" {
		return func(ctx context.Context) error {
			ids, err := client.Models(ctx)
			if err != nil {
				return err
			}
			*text = strings.Join(ids, ", ")
			if *model == "" && len(ids) > 0 {
				*model = ids[0]
			}
			return nil
		}, nil
	}

	audioPath := cfg.Probe.Audio
	if audioPath == "" {
		audioPath = filepath.Join(os.TempDir(), "soundcheck-fixture.wav")
	}

	fixture, err := audio.EnsureFixture(audioPath, cfg.Probe.FixtureSeconds)
	if err != nil {
		return nil, err
	}

	digest := ""
	if d, err := audio.Digest(fixture.Path); err == nil {
		digest = d
	}
	rep.SetAudio(fixture.Path, fixture.Seconds, digest)

	return func(ctx context.Context) error {
		id := *model
		if id == "" {
			resolved, ok, err := client.FirstModel(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("server became ready but serves no models")
			}
			id = resolved
			*model = resolved
		}

		got, err := client.Transcribe(ctx, id, fixture.Path)
		if err != nil {
			return err
		}
		*text = got
		return nil
	}, nil
}

// emitReport writes the run outcome: the stable key lines on stdout in
// text mode (plus a styled summary on stderr), or the full report via
// the requested formatter.
func emitReport(cmdCtx *CommandContext, rep *report.Report) error {
	if rep == nil {
		return nil
	}

	if cmdCtx.Format == "json" || cmdCtx.Format == "yaml" {
		formatter, err := ux.NewFormatter(cmdCtx.Format, &ux.FormatterOptions{NoColor: cmdCtx.NoColor})
		if err != nil {
			return err
		}
		return formatter.Format(rep)
	}

	if err := rep.WriteKeyValues(os.Stdout); err != nil {
		return err
	}
	if !cmdCtx.Quiet {
		fmt.Fprintln(os.Stderr, rep.Summary())
	}
	return nil
}

// applyRunFlags overlays explicitly-set flags onto the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	if f.Changed("model") {
		cfg.Server.Model = runModel
	}
	if f.Changed("served-model-name") {
		cfg.Server.ServedModelName = runServedModelName
	}
	if f.Changed("host") {
		cfg.Server.Host = runHost
	}
	if f.Changed("port") {
		cfg.Server.Port = runPort
	}
	if f.Changed("workdir") {
		cfg.Server.Workdir = runWorkdir
	}
	if f.Changed("offline") {
		cfg.Server.Offline = runOffline
	}
	if f.Changed("gpu-memory-utilization") {
		cfg.Server.GPUMemoryUtilization = runGPUMemUtil
	}
	if f.Changed("max-model-len") {
		cfg.Server.MaxModelLen = runMaxModelLen
	}
	if f.Changed("server-cmd") {
		cfg.Server.Command = strings.Fields(runServerCmd)
	}
	if f.Changed("timeout") {
		cfg.Probe.Timeout = config.Duration(runTimeout)
	}
	if f.Changed("poll-interval") {
		cfg.Probe.PollInterval = config.Duration(runPollInterval)
	}
	if f.Changed("readiness") {
		cfg.Probe.Readiness = runReadiness
	}
	if f.Changed("grace") {
		cfg.Probe.Grace = config.Duration(runGrace)
	}
	if f.Changed("audio") {
		cfg.Probe.Audio = runAudio
	}
	if f.Changed("fixture-seconds") {
		cfg.Probe.FixtureSeconds = runFixtureSeconds
	}
	if f.Changed("request-timeout") {
		cfg.Probe.RequestTimeout = config.Duration(runRequestTimeout)
	}

	if f.Changed("env") {
		overlay, err := parseEnvOverrides(runEnv)
		if err != nil {
			return err
		}
		if cfg.Server.Env == nil {
			cfg.Server.Env = make(map[string]string, len(overlay))
		}
		for k, v := range overlay {
			cfg.Server.Env[k] = v
		}
	}

	return nil
}

// parseEnvOverrides parses repeated KEY=VALUE flags.
func parseEnvOverrides(pairs []string) (map[string]string, error) {
	overlay := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, errors.NewConfigInvalidError(fmt.Sprintf("--env %q must be KEY=VALUE", pair))
		}
		overlay[name] = value
	}
	return overlay, nil
}
