package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	for _, key := range []string{"GS_FOO", "GS_QUOTED", "GS_EXPORTED"} {
		os.Unsetenv(key)
		t.Cleanup(func() { os.Unsetenv(key) })
	}
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "" +
		"# comment\n" +
		"GS_FOO=bar\n" +
		"GS_QUOTED=\"baz\"\n" +
		"export GS_EXPORTED='qux'\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := LoadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("GS_FOO"); got != "bar" {
		t.Fatalf("GS_FOO expected bar, got %q", got)
	}
	if got := os.Getenv("GS_QUOTED"); got != "baz" {
		t.Fatalf("GS_QUOTED expected baz, got %q", got)
	}
	if got := os.Getenv("GS_EXPORTED"); got != "qux" {
		t.Fatalf("GS_EXPORTED expected qux, got %q", got)
	}
}

func TestLoadEnvDoesNotOverrideExisting(t *testing.T) {
	t.Setenv("GS_FOO", "existing")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("GS_FOO=bar\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := LoadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("GS_FOO"); got != "existing" {
		t.Fatalf("expected existing value preserved, got %q", got)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}
