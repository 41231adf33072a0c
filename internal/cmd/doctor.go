package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/soundcheck/internal/asr"
	"github.com/felixgeelhaar/soundcheck/internal/audio"
	"github.com/felixgeelhaar/soundcheck/internal/config"
	"github.com/felixgeelhaar/soundcheck/internal/probe"
	"github.com/felixgeelhaar/soundcheck/internal/ux"
	"github.com/felixgeelhaar/soundcheck/internal/version"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run environment diagnostics",
	Long: `Check whether soundcheck can do its job here.

Checks include:
  - configuration file validity
  - server executable on PATH
  - audio fixture readability
  - upstream server reachability and model listing
  - endpoint surface of the upstream's OpenAPI document

Examples:
  # Human-readable diagnostics
  soundcheck doctor

  # JSON for CI
  soundcheck doctor --format json`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// DoctorReport is the complete diagnostics result.
type DoctorReport struct {
	Config     *DoctorCheck `json:"config" yaml:"config"`
	Executable *DoctorCheck `json:"executable" yaml:"executable"`
	Audio      *DoctorCheck `json:"audio" yaml:"audio"`
	Upstream   *DoctorCheck `json:"upstream" yaml:"upstream"`
	Models     *DoctorCheck `json:"models,omitempty" yaml:"models,omitempty"`
	Endpoints  *DoctorCheck `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`

	Issues    []string `json:"issues" yaml:"issues"`
	Warnings  []string `json:"warnings" yaml:"warnings"`
	NextSteps []string `json:"next_steps" yaml:"next_steps"`
	Healthy   bool     `json:"healthy" yaml:"healthy"`
}

// DoctorCheck is a single diagnostic result.
type DoctorCheck struct {
	Name    string                 `json:"name" yaml:"name"`
	Status  string                 `json:"status" yaml:"status"` // "ok", "warning", "error", "missing"
	Message string                 `json:"message" yaml:"message"`
	Details map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	report := &DoctorReport{
		Issues:    []string{},
		Warnings:  []string{},
		NextSteps: []string{},
	}

	cfg := checkConfig(cmdCtx, report)
	checkExecutable(cfg, report)
	checkAudio(cfg, report)
	checkUpstream(cmd.Context(), cfg, report)

	report.Healthy = len(report.Issues) == 0

	return outputDoctorReport(cmdCtx, report)
}

// checkConfig loads the configuration; the other checks run against the
// defaults when it is broken so the report stays complete.
func checkConfig(cmdCtx *CommandContext, report *DoctorReport) *config.Config {
	cfg, err := config.Load(cmdCtx.ConfigPath)
	if err != nil {
		report.Config = &DoctorCheck{
			Name:    "Config",
			Status:  "error",
			Message: err.Error(),
		}
		report.Issues = append(report.Issues, "configuration is invalid")
		report.NextSteps = append(report.NextSteps, "Regenerate the config with 'soundcheck init --force'")
		return config.Default()
	}

	path := cmdCtx.ConfigPath
	if path == "" {
		path = config.FileName
	}
	report.Config = &DoctorCheck{
		Name:    "Config",
		Status:  "ok",
		Message: fmt.Sprintf("configuration valid (%s or defaults)", path),
		Details: map[string]interface{}{
			"target":    cfg.BaseURL(),
			"readiness": cfg.Probe.Readiness,
		},
	}
	return cfg
}

func checkExecutable(cfg *config.Config, report *DoctorReport) {
	executable := cfg.LaunchCommand()[0]

	path, err := exec.LookPath(executable)
	if err != nil {
		report.Executable = &DoctorCheck{
			Name:    "Server executable",
			Status:  "missing",
			Message: fmt.Sprintf("%s not found on PATH", executable),
		}
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s is not installed; only --attach runs will work", executable))
		report.NextSteps = append(report.NextSteps, fmt.Sprintf("Install %s or set server.command in %s", executable, config.FileName))
		return
	}

	report.Executable = &DoctorCheck{
		Name:    "Server executable",
		Status:  "ok",
		Message: fmt.Sprintf("%s found at %s", executable, path),
		Details: map[string]interface{}{"path": path},
	}
}

func checkAudio(cfg *config.Config, report *DoctorReport) {
	if cfg.Probe.Audio == "" {
		report.Audio = &DoctorCheck{
			Name:    "Audio fixture",
			Status:  "ok",
			Message: fmt.Sprintf("no fixture configured, a %.1fs silence placeholder will be generated", cfg.Probe.FixtureSeconds),
		}
		return
	}

	seconds, err := audio.Duration(cfg.Probe.Audio)
	if err != nil {
		report.Audio = &DoctorCheck{
			Name:    "Audio fixture",
			Status:  "error",
			Message: fmt.Sprintf("%s is not a readable WAV file", cfg.Probe.Audio),
		}
		report.Issues = append(report.Issues, "configured audio fixture is unreadable")
		report.NextSteps = append(report.NextSteps, "Generate a placeholder with 'soundcheck fixture'")
		return
	}

	report.Audio = &DoctorCheck{
		Name:    "Audio fixture",
		Status:  "ok",
		Message: fmt.Sprintf("%s (%.3fs)", cfg.Probe.Audio, seconds),
		Details: map[string]interface{}{"seconds": seconds},
	}
}

// checkUpstream probes the configured target once and, when something
// answers, inspects its model listing and OpenAPI surface.
func checkUpstream(ctx context.Context, cfg *config.Config, report *DoctorReport) {
	target := cfg.BaseURL()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res := probe.NewReachable(target, 3*time.Second).Check(checkCtx)
	if !res.IsReady() {
		report.Upstream = &DoctorCheck{
			Name:    "Upstream",
			Status:  "warning",
			Message: fmt.Sprintf("nothing answering at %s", target),
			Details: map[string]interface{}{"target": target},
		}
		report.Warnings = append(report.Warnings, "no server is running at the configured address; 'soundcheck run' will launch one")
		return
	}

	report.Upstream = &DoctorCheck{
		Name:    "Upstream",
		Status:  "ok",
		Message: fmt.Sprintf("%s (%s)", res.Message, res.Latency.Round(time.Millisecond)),
		Details: map[string]interface{}{"target": target},
	}

	checkModels(checkCtx, target, report)
	checkEndpoints(checkCtx, target, report)
}

func checkModels(ctx context.Context, target string, report *DoctorReport) {
	client := asr.New(asr.Config{BaseURL: target, RequestTimeout: 3 * time.Second})

	ids, err := client.Models(ctx)
	switch {
	case err != nil:
		report.Models = &DoctorCheck{
			Name:    "Model listing",
			Status:  "warning",
			Message: fmt.Sprintf("GET /v1/models failed: %v", err),
		}
		report.Warnings = append(report.Warnings, "the upstream answers HTTP but not the model listing; use --readiness reachable")
	case len(ids) == 0:
		report.Models = &DoctorCheck{
			Name:    "Model listing",
			Status:  "warning",
			Message: "the server answers but serves no models yet",
		}
	default:
		report.Models = &DoctorCheck{
			Name:    "Model listing",
			Status:  "ok",
			Message: fmt.Sprintf("%d model(s), first is %s", len(ids), ids[0]),
			Details: map[string]interface{}{"models": ids},
		}
	}
}

// checkEndpoints fetches the upstream's OpenAPI document and verifies
// the two paths a probe run depends on are declared.
func checkEndpoints(ctx context.Context, target string, report *DoctorReport) {
	doc, err := fetchOpenAPI(ctx, target)
	if err != nil {
		report.Endpoints = &DoctorCheck{
			Name:    "Endpoint surface",
			Status:  "warning",
			Message: fmt.Sprintf("could not read the OpenAPI document: %v", err),
		}
		return
	}

	required := []string{"/v1/models", "/v1/audio/transcriptions"}
	missing := []string{}
	for _, path := range required {
		if doc.Paths == nil || doc.Paths.Find(path) == nil {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		report.Endpoints = &DoctorCheck{
			Name:    "Endpoint surface",
			Status:  "warning",
			Message: fmt.Sprintf("OpenAPI document does not declare %v", missing),
			Details: map[string]interface{}{"missing": missing},
		}
		report.Warnings = append(report.Warnings, "the upstream may not support audio transcription")
		return
	}

	report.Endpoints = &DoctorCheck{
		Name:    "Endpoint surface",
		Status:  "ok",
		Message: "declares /v1/models and /v1/audio/transcriptions",
	}
}

func fetchOpenAPI(ctx context.Context, target string) (*openapi3.T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"/openapi.json", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	return loader.LoadFromData(data)
}

func outputDoctorReport(cmdCtx *CommandContext, report *DoctorReport) error {
	if cmdCtx.Format == "json" || cmdCtx.Format == "yaml" {
		formatter, err := ux.NewFormatter(cmdCtx.Format, &ux.FormatterOptions{NoColor: cmdCtx.NoColor})
		if err != nil {
			return err
		}
		if err := formatter.Format(report); err != nil {
			return err
		}
		if !report.Healthy {
			return fmt.Errorf("diagnostics found issues")
		}
		return nil
	}

	fmt.Println()
	fmt.Println("Diagnostics:")
	for _, check := range []*DoctorCheck{
		report.Config, report.Executable, report.Audio,
		report.Upstream, report.Models, report.Endpoints,
	} {
		if check != nil {
			printDoctorCheck(check)
		}
	}
	fmt.Println()

	if len(report.Issues) > 0 {
		fmt.Println("Issues:")
		for _, issue := range report.Issues {
			fmt.Printf("  • %s\n", issue)
		}
		fmt.Println()
	}

	if len(report.Warnings) > 0 {
		fmt.Println("Warnings:")
		for _, warning := range report.Warnings {
			fmt.Printf("  • %s\n", warning)
		}
		fmt.Println()
	}

	if len(report.NextSteps) > 0 {
		fmt.Println("Next steps:")
		for i, step := range report.NextSteps {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
		fmt.Println()
	}

	if report.Healthy {
		fmt.Println("✅ Ready to run")
		return nil
	}

	fmt.Println("❌ Issues need attention before a run can succeed")
	return fmt.Errorf("diagnostics found issues")
}

func printDoctorCheck(check *DoctorCheck) {
	icon := " "
	switch check.Status {
	case "ok":
		icon = "✓"
	case "warning":
		icon = "⚠"
	case "error":
		icon = "✗"
	case "missing":
		icon = "○"
	}

	fmt.Printf("  %s %s: %s\n", icon, check.Name, check.Message)
}
