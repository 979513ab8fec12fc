package identity

import (
	"reflect"
	"testing"

	"github.com/kornysietsma/polyglot-code-scanner/internal/backends/git"
)

func TestScopePaths(t *testing.T) {
	paths := []string{"other/b.go", "sub/a.go", "sub/x/c.go", "subway.go", "sub"}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"", paths},
		{"sub", []string{"a.go", "x/c.go"}},
		{"sub/", []string{"a.go", "x/c.go"}},
		{"sub/x", []string{"c.go"}},
		{"missing", nil},
	}
	for _, tt := range tests {
		if got := ScopePaths(paths, tt.prefix); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ScopePaths(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}

func TestResolution_Within(t *testing.T) {
	c1 := &git.Commit{ID: "c1"}
	c2 := &git.Commit{ID: "c2"}
	res := &Resolution{
		Commits: []ResolvedCommit{
			{Commit: c1, Changes: []ResolvedChange{{Path: "sub/a.go", Created: true}, {Path: "other/b.go"}}},
			{Commit: c2, Changes: []ResolvedChange{{Path: "other/b.go"}}},
		},
		Ambiguities: 1,
		Dropped:     2,
	}

	got := res.Within("sub")
	want := &Resolution{
		Commits: []ResolvedCommit{
			{Commit: c1, Changes: []ResolvedChange{{Path: "a.go", Created: true}}},
		},
		Ambiguities: 1,
		Dropped:     2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Within(sub) = %+v, want %+v", got, want)
	}
	if res.Within("") != res {
		t.Errorf("Within(\"\") should return the resolution unchanged")
	}
}
