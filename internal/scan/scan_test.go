package scan

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kornysietsma/polyglot-code-scanner/internal/backends/git"
	"github.com/kornysietsma/polyglot-code-scanner/internal/config"
	scanerrors "github.com/kornysietsma/polyglot-code-scanner/internal/errors"
	"github.com/kornysietsma/polyglot-code-scanner/internal/output"
	"github.com/kornysietsma/polyglot-code-scanner/internal/slogutil"
	"github.com/kornysietsma/polyglot-code-scanner/internal/testutil"
	"github.com/kornysietsma/polyglot-code-scanner/internal/tree"
	"github.com/kornysietsma/polyglot-code-scanner/internal/version"
)

var (
	jane = testutil.Person{Name: "Jane Smith", Email: "jane@example.com"}
	bob  = testutil.Person{Name: "Bob", Email: "bob@example.com"}
	now  = testutil.Epoch.AddDate(0, 1, 0)
)

func newScanner(t *testing.T, cfg *config.Config) *Scanner {
	t.Helper()
	s, err := NewScanner(cfg, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	return s
}

func runMemory(t *testing.T, cfg *config.Config, r *testutil.Repo, id string) *Result {
	t.Helper()
	res, err := newScanner(t, cfg).Run(context.Background(), Request{
		Root:   ".",
		Name:   "repo",
		ID:     id,
		Now:    now,
		Walker: git.NewNativeWalker(r.Repo, slogutil.NewDiscardLogger()),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func find(n *tree.Node, path string) *tree.Node {
	if n.Path == path {
		return n
	}
	for _, c := range n.Children {
		if path == c.Path || strings.HasPrefix(path, c.Path+"/") {
			return find(c, path)
		}
	}
	return nil
}

func renameHistory(t *testing.T) *testutil.Repo {
	t.Helper()
	r := testutil.NewMemoryRepo(t)
	r.Write("a.txt", "alpha\nbeta\ngamma\n")
	r.Write("b.txt", "one\n")
	r.Commit("add", jane, testutil.Epoch)

	r.Move("a.txt", "c.txt")
	r.Commit("rename a to c", jane, testutil.Epoch.Add(time.Hour))

	r.Write("b.txt", "one\ntwo\n")
	r.Commit("edit b\n\nCo-authored-by: Bob <bob@example.com>\r\n", jane, testutil.Epoch.Add(2*time.Hour))

	r.Move("c.txt", "d.txt")
	r.Commit("rename c to d", jane, testutil.Epoch.Add(3*time.Hour))
	return r
}

func TestRun_RenameChainAccumulatesHistory(t *testing.T) {
	res := runMemory(t, config.DefaultConfig(), renameHistory(t), "fixed")
	doc := res.Document

	if doc.Version != version.DataFormatVersion || doc.Name != "repo" || doc.ID != "fixed" {
		t.Errorf("header = %q %q %q", doc.Version, doc.Name, doc.ID)
	}
	if !doc.Features.Git || !doc.Features.GitDetails || doc.Features.Coupling {
		t.Errorf("Features = %+v", doc.Features)
	}

	if n := find(doc.Tree, "a.txt"); n != nil {
		t.Errorf("renamed-away path a.txt should not be in the tree")
	}
	d := find(doc.Tree, "d.txt")
	if d == nil || d.Data == nil || d.Data.Git == nil {
		t.Fatalf("d.txt has no git data: %+v", d)
	}
	commits := 0
	for _, det := range d.Data.Git.Details {
		commits += det.CommitCount
	}
	if commits != 3 {
		t.Errorf("d.txt commit count = %d, want 3 across all names", commits)
	}
	if got, want := d.Data.Git.CreationDate, testutil.Epoch.Unix(); got != want {
		t.Errorf("CreationDate = %d, want %d", got, want)
	}
	if got, want := d.Data.Git.LastUpdate, testutil.Epoch.Add(3*time.Hour).Unix(); got != want {
		t.Errorf("LastUpdate = %d, want %d", got, want)
	}
	if d.Data.Git.AgeInDays != 0 {
		t.Errorf("AgeInDays = %d, want 0 relative to the latest commit", d.Data.Git.AgeInDays)
	}

	b := find(doc.Tree, "b.txt")
	if b == nil || b.Data == nil || b.Data.Git == nil {
		t.Fatalf("b.txt has no git data")
	}
	if b.Data.Git.UserCount != 2 {
		t.Errorf("b.txt UserCount = %d, want 2 with co-author", b.Data.Git.UserCount)
	}

	if doc.Tree.Data == nil || doc.Tree.Data.GitRepo == nil || doc.Tree.Data.GitRepo.Head == "" {
		t.Errorf("root has no repository data")
	}
	if doc.Metadata.Git == nil || len(doc.Metadata.Git.Users) != 2 {
		t.Fatalf("metadata.git = %+v", doc.Metadata.Git)
	}
	if doc.Metadata.Git.ReferenceTime != testutil.Epoch.Add(3*time.Hour).Unix() {
		t.Errorf("ReferenceTime = %d", doc.Metadata.Git.ReferenceTime)
	}
	if doc.Metadata.Git.HorizonStart != now.AddDate(-3, 0, 0).Unix() {
		t.Errorf("HorizonStart = %d", doc.Metadata.Git.HorizonStart)
	}

	if res.Report.Walked != 4 || res.Report.Files != 2 || res.Report.Edges != 0 {
		t.Errorf("Report = %+v", res.Report)
	}
}

func couplingConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Coupling.Enabled = true
	cfg.Coupling.BucketDays = 1
	cfg.Coupling.MinBursts = 1
	cfg.Coupling.MinDistance = 0
	cfg.Coupling.MinRatio = 0.5
	return cfg
}

func couplingHistory(t *testing.T) *testutil.Repo {
	t.Helper()
	r := testutil.NewMemoryRepo(t)
	for day := 0; day < 3; day++ {
		at := testutil.Epoch.AddDate(0, 0, day)
		r.Write("src/a.go", strings.Repeat("a\n", day+1))
		r.Write("test/a_test.go", strings.Repeat("t\n", day+1))
		r.Commit("change a", jane, at)
		r.Write("README.md", strings.Repeat("r\n", day+1))
		r.Commit("docs", bob, at.Add(6*time.Hour))
	}
	return r
}

func TestRun_Coupling(t *testing.T) {
	res := runMemory(t, couplingConfig(), couplingHistory(t), "fixed")
	doc := res.Document

	if !doc.Features.Coupling {
		t.Errorf("coupling feature not reported")
	}
	if len(doc.Coupling) != 2 {
		t.Fatalf("Coupling = %+v, want the pair in both directions", doc.Coupling)
	}
	if doc.Coupling[0].From != "src/a.go" || doc.Coupling[0].To != "test/a_test.go" || doc.Coupling[0].Ratio != 1 {
		t.Errorf("Coupling[0] = %+v", doc.Coupling[0])
	}
	if doc.Coupling[0].SharedBuckets != 3 {
		t.Errorf("SharedBuckets = %d, want 3", doc.Coupling[0].SharedBuckets)
	}

	a := find(doc.Tree, "src/a.go")
	if a == nil || a.Data == nil || a.Data.Coupling == nil || len(a.Data.Coupling.Links) != 1 {
		t.Fatalf("src/a.go coupling data missing")
	}
	if doc.Metadata.Coupling == nil || doc.Metadata.Coupling.BucketCount != 3 {
		t.Errorf("metadata.coupling = %+v", doc.Metadata.Coupling)
	}
}

func TestRun_CouplingWithoutEdgesEncodesEmptyList(t *testing.T) {
	cfg := couplingConfig()
	cfg.Coupling.MinRatio = 1
	cfg.Coupling.MinDistance = 5
	res := runMemory(t, cfg, couplingHistory(t), "fixed")

	data, err := output.DeterministicEncode(res.Document)
	if err != nil {
		t.Fatalf("DeterministicEncode() error = %v", err)
	}
	if !strings.Contains(string(data), `"coupling":[]`) {
		t.Errorf("expected an empty coupling list in %s", data)
	}
}

func TestRun_ZeroActivityGapSplitsEveryChange(t *testing.T) {
	r := testutil.NewMemoryRepo(t)
	for i := 0; i < 3; i++ {
		r.Write("src/a.go", fmt.Sprintf("package src // %d\n", i))
		r.Write("test/a_test.go", fmt.Sprintf("package test // %d\n", i))
		r.Commit(fmt.Sprintf("edit %d", i), jane, testutil.Epoch.Add(time.Duration(i)*10*time.Minute))
	}

	tests := []struct {
		gap       int
		bursts    int
		wantEdges int
	}{
		{gap: 0, bursts: 3, wantEdges: 2},
		{gap: 60, bursts: 1, wantEdges: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("gap %d", tt.gap), func(t *testing.T) {
			cfg := couplingConfig()
			cfg.History.Detailed = true
			cfg.Coupling.MinActivityGapMinutes = tt.gap
			cfg.Coupling.MinBursts = 3
			doc := runMemory(t, cfg, r, "fixed").Document

			a := find(doc.Tree, "src/a.go")
			if a == nil || a.Data == nil || a.Data.Git == nil {
				t.Fatalf("src/a.go has no git data")
			}
			if len(a.Data.Git.Details) != tt.bursts {
				t.Errorf("Details = %+v, want %d bursts", a.Data.Git.Details, tt.bursts)
			}
			if len(doc.Coupling) != tt.wantEdges {
				t.Errorf("Coupling = %+v, want %d edges", doc.Coupling, tt.wantEdges)
			}
			if doc.Metadata.Coupling == nil || doc.Metadata.Coupling.MinActivityGapMinutes != tt.gap {
				t.Errorf("metadata.coupling = %+v, want gap %d", doc.Metadata.Coupling, tt.gap)
			}
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := couplingConfig()

	first, err := output.DeterministicEncode(runMemory(t, cfg, couplingHistory(t), "fixed").Document)
	if err != nil {
		t.Fatalf("DeterministicEncode() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := output.DeterministicEncode(runMemory(t, cfg, couplingHistory(t), "fixed").Document)
		if err != nil {
			t.Fatalf("DeterministicEncode() error = %v", err)
		}
		if string(first) != string(again) {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, again, first)
		}
	}

	other, err := output.DeterministicEncode(runMemory(t, cfg, couplingHistory(t), "").Document)
	if err != nil {
		t.Fatalf("DeterministicEncode() error = %v", err)
	}
	if ok, msg := testutil.CompareSnapshots(first, other); !ok {
		t.Errorf("snapshots differ beyond id: %s", msg)
	}
}

func TestRun_RedactedEmails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Privacy.Mode = config.PrivacyRedacted
	res := runMemory(t, cfg, renameHistory(t), "fixed")

	for _, e := range res.Document.Metadata.Git.Users {
		if strings.Contains(e.User.Email, "@") {
			t.Errorf("email not redacted: %+v", e)
		}
	}
}

func TestRun_DiskRepositoryByPath(t *testing.T) {
	r, dir := testutil.NewDiskRepo(t)
	r.Write("main.go", "package main\n")
	r.Commit("init", jane, testutil.Epoch)

	res, err := newScanner(t, config.DefaultConfig()).Run(context.Background(), Request{Root: dir, Now: now})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Document.Name != filepath.Base(dir) {
		t.Errorf("Name = %q, want %q", res.Document.Name, filepath.Base(dir))
	}
	if res.Document.ID == "" {
		t.Errorf("ID should default to a generated id")
	}
	n := find(res.Document.Tree, "main.go")
	if n == nil || n.Data == nil || n.Data.Git == nil {
		t.Fatalf("main.go has no git data")
	}
}

func TestRun_SubdirectoryOfRepository(t *testing.T) {
	r, dir := testutil.NewDiskRepo(t)
	for day := 0; day < 3; day++ {
		at := testutil.Epoch.AddDate(0, 0, day)
		r.Write("sub/a.go", fmt.Sprintf("package sub // %d\n", day))
		r.Write("sub/x/c.go", fmt.Sprintf("package x // %d\n", day))
		r.Write("other/b.go", fmt.Sprintf("package other // %d\n", day))
		r.Commit(fmt.Sprintf("day %d", day), jane, at)
	}

	for _, backend := range []string{config.BackendNative, config.BackendCLI} {
		t.Run(backend, func(t *testing.T) {
			if backend == config.BackendCLI {
				if _, err := exec.LookPath("git"); err != nil {
					t.Skip("git binary not available")
				}
			}
			cfg := couplingConfig()
			cfg.History.Backend = backend
			res, err := newScanner(t, cfg).Run(context.Background(), Request{
				Root: filepath.Join(dir, "sub"),
				ID:   "fixed",
				Now:  now,
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			doc := res.Document

			if doc.Name != "sub" {
				t.Errorf("Name = %q, want sub", doc.Name)
			}
			for _, c := range doc.Tree.Children {
				if c.Name == "other" || c.Name == "sub" {
					t.Errorf("root has child %q from outside the scanned directory", c.Name)
				}
			}
			if res.Report.Files != 2 {
				t.Errorf("Report.Files = %d, want 2", res.Report.Files)
			}
			for _, path := range []string{"a.go", "x/c.go"} {
				n := find(doc.Tree, path)
				if n == nil || n.Data == nil || n.Data.Git == nil {
					t.Fatalf("%s has no git data", path)
				}
				if n.Data.Git.CreationDate != testutil.Epoch.Unix() {
					t.Errorf("%s CreationDate = %d, want %d", path, n.Data.Git.CreationDate, testutil.Epoch.Unix())
				}
			}
			if len(doc.Coupling) != 2 {
				t.Fatalf("Coupling = %+v, want a.go and x/c.go in both directions", doc.Coupling)
			}
			for _, e := range doc.Coupling {
				if strings.Contains(e.From, "other") || strings.Contains(e.To, "other") {
					t.Errorf("edge %+v leaves the scanned directory", e)
				}
			}
			if doc.Coupling[0].From != "a.go" || doc.Coupling[0].To != "x/c.go" {
				t.Errorf("Coupling[0] = %+v", doc.Coupling[0])
			}
		})
	}
}

func TestScopePrefix(t *testing.T) {
	top := t.TempDir()
	tests := []struct {
		name    string
		dir     string
		want    string
		wantErr bool
	}{
		{"top", top, "", false},
		{"nested", filepath.Join(top, "a", "b"), "a/b", false},
		{"outside", filepath.Dir(top), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scopePrefix(top, tt.dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("scopePrefix() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("scopePrefix() = %q, want %q", got, tt.want)
			}
		})
	}
	if got, _ := scopePrefix("", top); got != "" {
		t.Errorf("scopePrefix(\"\", dir) = %q, want empty", got)
	}
}

func TestRun_NotARepository(t *testing.T) {
	_, err := newScanner(t, config.DefaultConfig()).Run(context.Background(), Request{Root: t.TempDir(), Now: now})
	if !scanerrors.IsCode(err, scanerrors.RepositoryAccess) {
		t.Errorf("Run() error = %v, want %s", err, scanerrors.RepositoryAccess)
	}
}

func TestRun_HistoryDisabled(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"main.go", "pkg/util.go"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("package x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.History.Enabled = false
	res, err := newScanner(t, cfg).Run(context.Background(), Request{Root: dir, Name: "plain", ID: "x"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	doc := res.Document
	if doc.Features.Git || doc.Features.GitDetails {
		t.Errorf("Features = %+v", doc.Features)
	}
	if doc.Tree.Name != "plain" || find(doc.Tree, "pkg/util.go") == nil {
		t.Errorf("tree = %+v", doc.Tree)
	}
	if doc.Metadata.Git != nil {
		t.Errorf("metadata.git should be absent")
	}
}

func TestNewScanner_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.History.Enabled = false
	cfg.Coupling.Enabled = true
	if _, err := NewScanner(cfg, slogutil.NewDiscardLogger()); err == nil {
		t.Error("NewScanner() should reject coupling without history")
	}
}
