package tui

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"siteclone/internal/config"
)

func TestParseInt(t *testing.T) {
	v, err := parseInt(" 42 ")
	if err != nil || v != 42 {
		t.Fatalf("expected 42, got %d (err=%v)", v, err)
	}
	if _, err := parseInt("bad"); err == nil {
		t.Fatalf("expected error for non-integer")
	}
	if _, err := parseInt("  "); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestParsePositiveInt(t *testing.T) {
	if _, err := parsePositiveInt("0", "must be positive"); err == nil || err.Error() != "must be positive" {
		t.Fatalf("expected custom error, got %v", err)
	}
	if v, err := parsePositiveInt("7", "x"); err != nil || v != 7 {
		t.Fatalf("got (%d,%v)", v, err)
	}
}

func TestValidateIntString(t *testing.T) {
	v := validateIntString(0, 10)
	if err := v("5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v("-1"); err == nil {
		t.Fatalf("expected error for below range")
	}
	if err := v("11"); err == nil {
		t.Fatalf("expected error for above range")
	}
	if err := v("nope"); err == nil {
		t.Fatal("expected type error")
	}
}

func TestValidateNewFilename(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "taken.json5")
	if err := os.WriteFile(existing, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := validateNewFilename(""); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := validateNewFilename(filepath.Join(dir, "bad?.json5")); err == nil {
		t.Fatal("expected error for invalid characters")
	}
	if err := validateNewFilename(filepath.Join(dir, "taken")); err == nil {
		t.Fatal("expected error for existing file")
	}
	if err := validateNewFilename(filepath.Join(dir, "fresh")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureJSON5Extension(t *testing.T) {
	tests := map[string]string{
		"a":       "a.json5",
		"a.json5": "a.json5",
		"a.json":  "a.json",
	}
	for in, want := range tests {
		if got := ensureJSON5Extension(in); got != want {
			t.Fatalf("ensureJSON5Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a:3000, ,http://b ")
	want := []string{"http://a:3000", "http://b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitList = %#v", got)
	}
	if splitList("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestFromConfigRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Model = "gpt-4.1"
	cfg.Provider = "openai"
	state := newFormState()
	state.fromConfig(cfg)
	state.finalAction = "serve"

	res, err := buildResult(state)
	if err != nil {
		t.Fatalf("buildResult: %v", err)
	}
	if res.SaveConfig || !res.ServeNow {
		t.Fatalf("unexpected actions: %#v", res)
	}
	if res.Config.Provider != "openai" || res.Config.Model != "gpt-4.1" {
		t.Fatalf("unexpected config: %#v", res.Config)
	}
	if !reflect.DeepEqual(res.Config.Server.AllowedOrigins, cfg.Server.AllowedOrigins) {
		t.Fatalf("origins changed: %#v", res.Config.Server.AllowedOrigins)
	}
}

func TestBuildResultWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "mine.json5")
	state := newFormState()
	state.strategy = "rendered"
	state.headless = false
	state.maxCharsStr = "5000"
	state.configPath = path
	state.finalAction = "save_and_serve"

	res, err := buildResult(state)
	if err != nil {
		t.Fatalf("buildResult: %v", err)
	}
	if !res.SaveConfig || !res.ServeNow {
		t.Fatalf("unexpected actions: %#v", res)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Strategy != "rendered" || loaded.Prompt.MaxChars != 5000 {
		t.Fatalf("unexpected loaded config: %#v", loaded)
	}
	if loaded.Headless == nil || *loaded.Headless {
		t.Fatalf("headless=false not persisted")
	}
}

func TestBuildResultRejectsBadNumbers(t *testing.T) {
	state := newFormState()
	state.timeoutSecStr = "0"
	if _, err := buildResult(state); err == nil || !strings.Contains(err.Error(), "fetch timeout") {
		t.Fatalf("expected timeout error, got %v", err)
	}

	state = newFormState()
	state.maxCharsStr = "lots"
	if _, err := buildResult(state); err == nil {
		t.Fatal("expected prompt budget error")
	}
}

func TestExecuteConfigAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.json5")
	if err := os.WriteFile(path, []byte(`{provider: "anthropic", /* c */ strategy: "rendered",}`), 0600); err != nil {
		t.Fatal(err)
	}
	state := newFormState()
	done, err := executeConfigAction("load", path, state)
	if err != nil || !done {
		t.Fatalf("load: done=%v err=%v", done, err)
	}
	if state.provider != "anthropic" || state.strategy != "rendered" || state.configPath != path || !state.overwrite {
		t.Fatalf("state not loaded: %#v", state)
	}

	if done, err := executeConfigAction("back", path, state); err != nil || done {
		t.Fatalf("back: done=%v err=%v", done, err)
	}
}

func TestListConfigFilesSkipsLocal(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range []string{"a.json5", "a.local.json5", "notes.txt"} {
		if err := os.WriteFile(name, []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	files, err := listConfigFiles()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range files {
		if strings.HasSuffix(f, ".local.json5") {
			t.Fatalf("local override listed: %v", files)
		}
		if filepath.Base(f) == "a.json5" {
			found = true
		}
	}
	if !found {
		t.Fatalf("a.json5 not listed: %v", files)
	}
}
