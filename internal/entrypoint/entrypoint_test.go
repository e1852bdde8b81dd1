package entrypoint

import (
	"path/filepath"
	"testing"
)

func TestExecuteHelp(t *testing.T) {
	code, err := Execute([]string{"siteclone", "--help"})
	if err != nil || code != 0 {
		t.Fatalf("expected clean help, got code=%d err=%v", code, err)
	}
}

func TestExecuteExitCodes(t *testing.T) {
	code, err := Execute([]string{"siteclone", "clone", "--nope"})
	if err == nil || code != 2 {
		t.Fatalf("expected usage exit 2, got code=%d err=%v", code, err)
	}

	missing := filepath.Join(t.TempDir(), "missing.json5")
	code, err = Execute([]string{"siteclone", "--config", missing, "clone", "https://example.com"})
	if err == nil || code != 2 {
		t.Fatalf("expected config exit 2, got code=%d err=%v", code, err)
	}
}
