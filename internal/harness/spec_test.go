package harness

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

func TestLaunchSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    LaunchSpec
		wantErr bool
	}{
		{
			name:    "valid",
			spec:    LaunchSpec{Command: []string{"vllm", "serve"}, Host: "127.0.0.1", Port: 8000},
			wantErr: false,
		},
		{
			name:    "no command",
			spec:    LaunchSpec{Port: 8000},
			wantErr: true,
		},
		{
			name:    "empty executable",
			spec:    LaunchSpec{Command: []string{""}, Port: 8000},
			wantErr: true,
		},
		{
			name:    "port out of range",
			spec:    LaunchSpec{Command: []string{"vllm"}, Port: 70000},
			wantErr: true,
		},
		{
			name:    "zero port is allowed",
			spec:    LaunchSpec{Command: []string{"vllm"}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errors.CodeOf(err) != errors.ErrCodeLaunchBadSpec {
				t.Errorf("CodeOf() = %s, want %s", errors.CodeOf(err), errors.ErrCodeLaunchBadSpec)
			}
		})
	}
}

func TestLaunchSpecAddr(t *testing.T) {
	spec := LaunchSpec{Command: []string{"vllm"}, Host: "0.0.0.0", Port: 8000}
	if got := spec.Addr(); got != "0.0.0.0:8000" {
		t.Errorf("Addr() = %s, want 0.0.0.0:8000", got)
	}

	spec.Host = ""
	if got := spec.Addr(); got != "127.0.0.1:8000" {
		t.Errorf("Addr() with empty host = %s, want 127.0.0.1:8000", got)
	}

	if got := spec.BaseURL(); got != "http://127.0.0.1:8000" {
		t.Errorf("BaseURL() = %s, want http://127.0.0.1:8000", got)
	}
}

func TestLaunchSpecEnviron(t *testing.T) {
	t.Setenv("SOUNDCHECK_TEST_KEEP", "inherited")
	t.Setenv("SOUNDCHECK_TEST_SHADOW", "parent")

	spec := LaunchSpec{
		Command: []string{"vllm"},
		Env: map[string]string{
			"SOUNDCHECK_TEST_SHADOW": "overlay",
			"HF_HUB_OFFLINE":         "1",
		},
	}

	env := spec.environ()

	var keep, shadow, offline string
	shadowCount := 0
	for _, kv := range env {
		switch {
		case strings.HasPrefix(kv, "SOUNDCHECK_TEST_KEEP="):
			keep = kv
		case strings.HasPrefix(kv, "SOUNDCHECK_TEST_SHADOW="):
			shadow = kv
			shadowCount++
		case strings.HasPrefix(kv, "HF_HUB_OFFLINE="):
			offline = kv
		}
	}

	if keep != "SOUNDCHECK_TEST_KEEP=inherited" {
		t.Errorf("parent variable not inherited: %q", keep)
	}
	if shadow != "SOUNDCHECK_TEST_SHADOW=overlay" {
		t.Errorf("overlay did not win: %q", shadow)
	}
	if shadowCount != 1 {
		t.Errorf("shadowed variable appears %d times, want 1", shadowCount)
	}
	if offline != "HF_HUB_OFFLINE=1" {
		t.Errorf("overlay-only variable missing: %q", offline)
	}
}

func TestLaunchSpecEnvironNoOverlay(t *testing.T) {
	spec := LaunchSpec{Command: []string{"vllm"}}
	if len(spec.environ()) == 0 {
		t.Error("environ() without overlay should return the parent environment")
	}
}

func TestLaunchSpecCloneIsDeep(t *testing.T) {
	spec := LaunchSpec{
		Command: []string{"vllm", "serve", "model-a"},
		Env:     map[string]string{"KEY": "one"},
	}

	snapshot := spec.clone()

	spec.Command[2] = "model-b"
	spec.Env["KEY"] = "two"

	if snapshot.Command[2] != "model-a" {
		t.Errorf("clone shares command slice: %v", snapshot.Command)
	}
	if snapshot.Env["KEY"] != "one" {
		t.Errorf("clone shares env map: %v", snapshot.Env)
	}
}
