package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kornysietsma/polyglot-code-scanner/internal/config"
	"github.com/kornysietsma/polyglot-code-scanner/internal/testutil"
	"github.com/kornysietsma/polyglot-code-scanner/internal/version"
)

var jane = testutil.Person{Name: "Jane", Email: "jane@example.com"}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func diskRepo(t *testing.T) string {
	t.Helper()
	r, dir := testutil.NewDiskRepo(t)
	at := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	r.Write("src/main.go", "package main\n")
	r.Write("docs/README.md", "# hi\n")
	r.Commit("init", jane, at)
	r.Write("src/main.go", "package main\n\nfunc main() {}\n")
	r.Commit("main", jane, at.Add(time.Hour))
	return dir
}

type document struct {
	Version  string          `json:"version"`
	Name     string          `json:"name"`
	ID       string          `json:"id"`
	Features map[string]bool `json:"features"`
	Tree     json.RawMessage `json:"tree"`
	Metadata struct {
		Git *struct {
			Users []json.RawMessage `json:"users"`
		} `json:"git"`
	} `json:"metadata"`
}

func TestScan_WritesDocumentToStdout(t *testing.T) {
	dir := diskRepo(t)

	stdout, _, err := execute(t, "scan", dir, "--id", "fixed", "--name", "project", "-q")
	if err != nil {
		t.Fatalf("scan error = %v", err)
	}

	var doc document
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if doc.Version != version.DataFormatVersion || doc.ID != "fixed" || doc.Name != "project" {
		t.Errorf("header = %q %q %q", doc.Version, doc.ID, doc.Name)
	}
	if !doc.Features["git"] || !doc.Features["git_details"] || doc.Features["coupling"] {
		t.Errorf("features = %v", doc.Features)
	}
	if doc.Metadata.Git == nil || len(doc.Metadata.Git.Users) != 1 {
		t.Errorf("metadata.git = %+v", doc.Metadata.Git)
	}
	if !strings.Contains(string(doc.Tree), `"path":"src/main.go"`) {
		t.Errorf("tree does not contain src/main.go: %s", doc.Tree)
	}
}

func TestScan_CompressedFileAndSQLite(t *testing.T) {
	dir := diskRepo(t)
	out := filepath.Join(t.TempDir(), "scan.json.gz")
	db := filepath.Join(t.TempDir(), "scan.db")

	if _, _, err := execute(t, "scan", dir, "-o", out, "--sqlite", db, "--coupling", "-q"); err != nil {
		t.Fatalf("scan error = %v", err)
	}
	for _, p := range []string{out, db} {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Errorf("%s was not written: %v", p, err)
		}
	}
}

func TestScan_YAMLWithoutGit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "scan", dir, "--no-git", "--format", "yaml", "-q")
	if err != nil {
		t.Fatalf("scan error = %v", err)
	}
	for _, want := range []string{"version: " + version.DataFormatVersion, "git: false", "path: a.txt"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestScan_FeatureConflicts(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"coupling without git", []string{"scan", dir, "--no-git", "--coupling"}},
		{"details without git", []string{"scan", dir, "--no-git", "--git-details"}},
		{"bad ratio", []string{"scan", dir, "--coupling-min-ratio", "1.5"}},
		{"bad backend", []string{"scan", dir, "--backend", "svn"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), "config error") {
				t.Errorf("error = %v, want a config error", err)
			}
		})
	}
}

func TestScan_NotARepository(t *testing.T) {
	_, _, err := execute(t, "scan", t.TempDir(), "-q")
	if err == nil || !strings.Contains(err.Error(), "REPOSITORY_ACCESS") {
		t.Errorf("scan error = %v, want REPOSITORY_ACCESS", err)
	}
}

func TestApplyScanFlags_Redact(t *testing.T) {
	tests := []struct {
		name string
		args []string
		from string
		want string
	}{
		{"unset keeps config", nil, config.PrivacyRedacted, config.PrivacyRedacted},
		{"enable", []string{"--redact"}, config.PrivacyNormal, config.PrivacyRedacted},
		{"disable overrides config", []string{"--redact=false"}, config.PrivacyRedacted, config.PrivacyNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newScanCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			redact, err := cmd.Flags().GetBool("redact")
			if err != nil {
				t.Fatal(err)
			}
			cfg := config.DefaultConfig()
			cfg.Privacy.Mode = tt.from

			if err := applyScanFlags(cmd, &scanOptions{redact: redact}, cfg); err != nil {
				t.Fatalf("applyScanFlags() error = %v", err)
			}
			if cfg.Privacy.Mode != tt.want {
				t.Errorf("Privacy.Mode = %q, want %q", cfg.Privacy.Mode, tt.want)
			}
		})
	}
}

func TestApplyScanFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cmd := newScanCmd()
	if err := cmd.ParseFlags([]string{"--coupling-min-ratio", "0.5"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Coupling.BucketDays = 30
	opts := &scanOptions{minRatio: 0.5, bucketDays: 91}

	if err := applyScanFlags(cmd, opts, cfg); err != nil {
		t.Fatalf("applyScanFlags() error = %v", err)
	}
	if cfg.Coupling.MinRatio != 0.5 {
		t.Errorf("MinRatio = %v, want 0.5", cfg.Coupling.MinRatio)
	}
	if cfg.Coupling.BucketDays != 30 {
		t.Errorf("BucketDays = %d, want the config value 30", cfg.Coupling.BucketDays)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(stdout, version.DataFormatVersion) {
		t.Errorf("version output = %q", stdout)
	}
}
