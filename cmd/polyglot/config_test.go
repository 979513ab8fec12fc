package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kornysietsma/polyglot-code-scanner/internal/config"
)

func TestConfigInitShowValidate(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := execute(t, "config", "init", dir); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	path := config.Path(dir)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, _, err := execute(t, "config", "init", dir); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, _, err := execute(t, "config", "init", dir, "--force"); err != nil {
		t.Errorf("init --force error = %v", err)
	}

	stdout, _, err := execute(t, "config", "show", dir)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(stdout, "bucketDays = 91") {
		t.Errorf("config show output:\n%s", stdout)
	}

	stdout, _, err = execute(t, "config", "show", dir, "--format", "json")
	if err != nil {
		t.Fatalf("config show --format json error = %v", err)
	}
	if !strings.Contains(stdout, `"minRatio": 0.8`) {
		t.Errorf("config show json output:\n%s", stdout)
	}

	stdout, _, err = execute(t, "config", "validate", path)
	if err != nil {
		t.Fatalf("config validate error = %v", err)
	}
	if !strings.Contains(stdout, "is valid") {
		t.Errorf("validate output = %q", stdout)
	}
}

func TestConfigValidate_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("version = 1\n[coupling]\nminRatoi = 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, "config", "validate", path); err == nil {
		t.Error("validate should reject unknown keys")
	}
}

func TestFormatConfig_UnknownFormat(t *testing.T) {
	if _, err := formatConfig(config.DefaultConfig(), "xml"); err == nil {
		t.Error("formatConfig(xml) should fail")
	}
}
