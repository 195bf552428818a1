package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCurrentVersion(t *testing.T) {
	t.Parallel()

	info := currentVersion()
	if info.Version == "" || info.Commit == "" || info.Date == "" {
		t.Errorf("expected every field to be set, got %+v", info)
	}
	if getVersion() != info.Version {
		t.Errorf("getVersion() = %q, want %q", getVersion(), info.Version)
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints full version", func(t *testing.T) {
		t.Parallel()

		cmd := NewVersionCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{"siteaudit version", "commit:", "built:"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("prints short version", func(t *testing.T) {
		t.Parallel()

		cmd := NewVersionCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--short"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.TrimSpace(buf.String()); got != currentVersion().Version {
			t.Errorf("expected %q, got %q", currentVersion().Version, got)
		}
	})
}
