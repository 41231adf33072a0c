// Package config layers soundcheck configuration: built-in defaults,
// then an optional YAML file, then SOUNDCHECK_* environment variables.
// Command-line flags are applied on top by the commands themselves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

// FileName is the config file looked up in the working directory.
const FileName = "soundcheck.yaml"

// ServerConfig describes the server process the harness launches.
type ServerConfig struct {
	// Command overrides the built-in vLLM launch command. Empty means
	// the run command assembles `vllm serve ...` from the fields below.
	Command []string `yaml:"command,omitempty" env:"SOUNDCHECK_SERVER_COMMAND"`

	// Model is the local path or hub id to serve.
	Model string `yaml:"model" env:"SOUNDCHECK_MODEL"`

	// ServedModelName is the id the server announces on /v1/models.
	ServedModelName string `yaml:"served_model_name" env:"SOUNDCHECK_SERVED_MODEL_NAME"`

	Host string `yaml:"host" env:"SOUNDCHECK_HOST"`
	Port int    `yaml:"port" env:"SOUNDCHECK_PORT"`

	// Workdir is the working directory for the launched process.
	Workdir string `yaml:"workdir,omitempty" env:"SOUNDCHECK_WORKDIR"`

	// Env is overlaid onto the inherited environment.
	Env map[string]string `yaml:"env,omitempty"`

	// Offline adds HF_HUB_OFFLINE=1 and TRANSFORMERS_OFFLINE=1 to the
	// overlay so local model loads skip hub traffic.
	Offline bool `yaml:"offline" env:"SOUNDCHECK_OFFLINE"`

	GPUMemoryUtilization float64 `yaml:"gpu_memory_utilization" env:"SOUNDCHECK_GPU_MEMORY_UTILIZATION"`
	MaxModelLen          int     `yaml:"max_model_len" env:"SOUNDCHECK_MAX_MODEL_LEN"`

	// ShutdownGrace is how long teardown waits between the termination
	// signal and the force kill.
	ShutdownGrace Duration `yaml:"shutdown_grace" env:"SOUNDCHECK_SHUTDOWN_GRACE"`
}

// ProbeConfig describes readiness polling and the transcription probe.
type ProbeConfig struct {
	// Audio is the WAV fixture path. Empty generates a short silence
	// fixture.
	Audio string `yaml:"audio,omitempty" env:"SOUNDCHECK_AUDIO"`

	// FixtureSeconds is the generated fixture length.
	FixtureSeconds float64 `yaml:"fixture_seconds" env:"SOUNDCHECK_FIXTURE_SECONDS"`

	// Timeout bounds the whole readiness wait.
	Timeout Duration `yaml:"timeout" env:"SOUNDCHECK_TIMEOUT"`

	// PollInterval is the pause between readiness attempts.
	PollInterval Duration `yaml:"poll_interval" env:"SOUNDCHECK_POLL_INTERVAL"`

	// Readiness selects the predicate: "models" requires a non-empty
	// /v1/models list, "reachable" accepts any HTTP response.
	Readiness string `yaml:"readiness" env:"SOUNDCHECK_READINESS"`

	// Grace keeps watching the process for this window after readiness
	// before probing. Zero disables the watch.
	Grace Duration `yaml:"grace" env:"SOUNDCHECK_GRACE"`

	// RequestTimeout bounds the transcription round trip.
	RequestTimeout Duration `yaml:"request_timeout" env:"SOUNDCHECK_REQUEST_TIMEOUT"`
}

// BenchConfig describes the local bench web server.
type BenchConfig struct {
	// Listen is the bench server bind address.
	Listen string `yaml:"listen" env:"SOUNDCHECK_BENCH_LISTEN"`

	// Upstream is the speech server base URL the bench proxies to.
	Upstream string `yaml:"upstream" env:"SOUNDCHECK_BENCH_UPSTREAM"`

	// Model pins the model id sent upstream. Empty resolves it lazily
	// from /v1/models on first use.
	Model string `yaml:"model,omitempty" env:"SOUNDCHECK_BENCH_MODEL"`

	// MaxUploadMiB caps the /api/transcribe request body.
	MaxUploadMiB int `yaml:"max_upload_mib" env:"SOUNDCHECK_BENCH_MAX_UPLOAD_MIB"`

	// RequestTimeout bounds one upstream transcription.
	RequestTimeout Duration `yaml:"request_timeout" env:"SOUNDCHECK_BENCH_REQUEST_TIMEOUT"`
}

// Config is the root configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Probe  ProbeConfig  `yaml:"probe"`
	Bench  BenchConfig  `yaml:"bench"`
}

// Default returns the built-in configuration. The values mirror the
// vLLM serve defaults this tool grew up against.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Model:                "./model/Qwen3-ASR-0.6B",
			ServedModelName:      "qwen3-asr",
			Host:                 "127.0.0.1",
			Port:                 8000,
			Offline:              true,
			GPUMemoryUtilization: 0.80,
			MaxModelLen:          2048,
			ShutdownGrace:        Duration(30 * time.Second),
		},
		Probe: ProbeConfig{
			FixtureSeconds: 1.0,
			Timeout:        Duration(600 * time.Second),
			PollInterval:   Duration(time.Second),
			Readiness:      "models",
			RequestTimeout: Duration(300 * time.Second),
		},
		Bench: BenchConfig{
			Listen:         "127.0.0.1:7860",
			Upstream:       "http://127.0.0.1:8000",
			MaxUploadMiB:   50,
			RequestTimeout: Duration(600 * time.Second),
		},
	}
}

// Load builds the effective configuration. An explicit path must
// exist; otherwise soundcheck.yaml in the working directory is used
// when present. SOUNDCHECK_* variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, explicit := path, path != ""
	if !explicit {
		resolved = FileName
	}

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigParseError(resolved, err)
		}
	case os.IsNotExist(err):
		if explicit {
			return nil, errors.NewConfigNotFoundError(resolved)
		}
	default:
		return nil, errors.NewConfigParseError(resolved, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid SOUNDCHECK_* environment variable", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.NewConfigInvalidError(fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.GPUMemoryUtilization < 0 || c.Server.GPUMemoryUtilization > 1 {
		return errors.NewConfigInvalidError(fmt.Sprintf("server.gpu_memory_utilization %.2f must be within 0..1", c.Server.GPUMemoryUtilization))
	}
	if c.Probe.Timeout <= 0 {
		return errors.NewConfigInvalidError("probe.timeout must be positive")
	}
	if c.Probe.PollInterval <= 0 {
		return errors.NewConfigInvalidError("probe.poll_interval must be positive")
	}
	if c.Probe.PollInterval > c.Probe.Timeout {
		return errors.NewConfigInvalidError("probe.poll_interval must not exceed probe.timeout")
	}
	switch c.Probe.Readiness {
	case "models", "reachable":
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("probe.readiness %q must be \"models\" or \"reachable\"", c.Probe.Readiness))
	}
	if c.Bench.Listen == "" {
		return errors.NewConfigInvalidError("bench.listen must not be empty")
	}
	if c.Bench.Upstream == "" {
		return errors.NewConfigInvalidError("bench.upstream must not be empty")
	}
	if c.Bench.MaxUploadMiB <= 0 {
		return errors.NewConfigInvalidError("bench.max_upload_mib must be positive")
	}
	return nil
}

// Write saves the configuration as YAML. Used by the init wizard.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "failed to encode configuration", err)
	}

	header := []byte("# soundcheck configuration\n# Values are overridden by SOUNDCHECK_* environment variables and flags.\n")
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, "failed to create config directory", err)
		}
	}
	return os.WriteFile(path, append(header, data...), 0o644)
}

// BaseURL returns the URL readiness and probes should target. An
// unroutable bind address is swapped for loopback.
func (c *Config) BaseURL() string {
	host := c.Server.Host
	if host == "0.0.0.0" || host == "::" || host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// LaunchEnv returns the environment overlay for the server process.
func (c *Config) LaunchEnv() map[string]string {
	overlay := make(map[string]string, len(c.Server.Env)+2)
	if c.Server.Offline {
		overlay["HF_HUB_OFFLINE"] = "1"
		overlay["TRANSFORMERS_OFFLINE"] = "1"
	}
	for k, v := range c.Server.Env {
		overlay[k] = v
	}
	return overlay
}

// LaunchCommand returns the argv for the server process: the
// configured command verbatim, or the assembled vLLM serve line.
func (c *Config) LaunchCommand() []string {
	if len(c.Server.Command) > 0 {
		return append([]string(nil), c.Server.Command...)
	}

	cmd := []string{
		"vllm", "serve", c.Server.Model,
		"--host", c.Server.Host,
		"--port", fmt.Sprintf("%d", c.Server.Port),
		"--trust-remote-code",
		"--served-model-name", c.Server.ServedModelName,
		"--gpu-memory-utilization", fmt.Sprintf("%g", c.Server.GPUMemoryUtilization),
	}
	if c.Server.MaxModelLen > 0 {
		cmd = append(cmd, "--max-model-len", fmt.Sprintf("%d", c.Server.MaxModelLen))
	}
	return cmd
}
