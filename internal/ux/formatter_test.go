package ux

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type stringerPayload struct {
	Name string  `json:"name" yaml:"name"`
	RTF  float64 `json:"rtf" yaml:"rtf"`
}

func (p stringerPayload) String() string {
	return "name=" + p.Name
}

func TestNewFormatterUnknown(t *testing.T) {
	_, err := NewFormatter("xml", nil)
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "xml") {
		t.Errorf("error should name the bad format: %v", err)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter("json", &FormatterOptions{Writer: &buf})
	if err != nil {
		t.Fatalf("NewFormatter: %v", err)
	}

	payload := stringerPayload{Name: "whisper", RTF: 0.042}
	if err := f.Format(payload); err != nil {
		t.Fatalf("Format: %v", err)
	}

	var decoded stringerPayload
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Name != "whisper" {
		t.Errorf("Name = %q, want whisper", decoded.Name)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter("yaml", &FormatterOptions{Writer: &buf})
	if err != nil {
		t.Fatalf("NewFormatter: %v", err)
	}

	if err := f.Format(stringerPayload{Name: "whisper"}); err != nil {
		t.Fatalf("Format: %v", err)
	}

	if !strings.Contains(buf.String(), "name: whisper") {
		t.Errorf("unexpected yaml output: %s", buf.String())
	}
}

func TestTextFormatterStringer(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter("text", &FormatterOptions{Writer: &buf})
	if err != nil {
		t.Fatalf("NewFormatter: %v", err)
	}

	if err := f.Format(stringerPayload{Name: "whisper"}); err != nil {
		t.Fatalf("Format: %v", err)
	}

	if strings.TrimSpace(buf.String()) != "name=whisper" {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestTextFormatterRejectsOpaque(t *testing.T) {
	var buf bytes.Buffer
	f, _ := NewFormatter("text", &FormatterOptions{Writer: &buf})

	if err := f.Format(struct{ X int }{1}); err == nil {
		t.Error("expected error for non-Stringer payload")
	}
}

func TestDefaultFormatIsText(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter("", &FormatterOptions{Writer: &buf})
	if err != nil {
		t.Fatalf("NewFormatter: %v", err)
	}

	if _, ok := f.(*TextFormatter); !ok {
		t.Errorf("empty format should yield TextFormatter, got %T", f)
	}
}
