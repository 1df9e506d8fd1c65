package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linanwx/labmate/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestGenerateConfig(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	out := filepath.Join(dir, "docs", "site", "js", "config.js")
	writeFile(t, env, "# lab key\nOTHER=1\nGEMINI_API_KEY=abc123\n")

	if err := generateConfig(env, out); err != nil {
		t.Fatalf("generateConfig: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "// Generated from .env\nconst CONFIG = {\n    GEMINI_API_KEY: \"abc123\"\n};\n"
	if string(got) != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestGenerateConfigErrors(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "config.js")

	err := generateConfig(filepath.Join(dir, "missing.env"), out)
	if !errors.Is(err, config.ErrEnvFileMissing) {
		t.Fatalf("missing file err = %v", err)
	}
	if msg := genconfigMessage(err); msg != "Error: .env file not found!" {
		t.Fatalf("message = %q", msg)
	}

	for name, content := range map[string]string{
		"no key":    "OTHER=1\n",
		"empty key": "GEMINI_API_KEY=\n",
	} {
		env := filepath.Join(dir, strings.ReplaceAll(name, " ", "-")+".env")
		writeFile(t, env, content)
		err := generateConfig(env, out)
		if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY not found") {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output must not be written on failure")
	}
}

func TestRenderConfigJSEscapes(t *testing.T) {
	got, err := renderConfigJS(`a"b\c`)
	if err != nil {
		t.Fatalf("renderConfigJS: %v", err)
	}
	if !strings.Contains(got, `GEMINI_API_KEY: "a\"b\\c"`) {
		t.Fatalf("key not escaped:\n%s", got)
	}
}

func TestEnvWatcherRegenerates(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	out := filepath.Join(dir, "config.js")
	writeFile(t, env, "GEMINI_API_KEY=first\n")

	w, err := newEnvWatcher(env, out)
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updated := make(chan error, 4)
	go w.run(ctx, func(err error) { updated <- err })

	writeFile(t, env, "GEMINI_API_KEY=second\n")

	select {
	case err := <-updated:
		if err != nil {
			t.Fatalf("regeneration failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no regeneration after .env change")
	}
	got, _ := os.ReadFile(out)
	if !strings.Contains(string(got), `"second"`) {
		t.Fatalf("output = %q", got)
	}
}
