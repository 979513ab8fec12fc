package git

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// parseLogRecord parses one record written with logFormat followed by the
// --raw lines of that commit.
func parseLogRecord(record string, dec *decoder) (Commit, error) {
	header, raw, ok := strings.Cut(record, bodyEnd)
	if !ok {
		return Commit{}, fmt.Errorf("record has no body terminator")
	}

	fields := strings.SplitN(header, fieldSep, 9)
	if len(fields) != 9 {
		return Commit{}, fmt.Errorf("expected 9 header fields, got %d", len(fields))
	}
	id := strings.TrimSpace(fields[0])
	if len(id) < 40 {
		return Commit{}, fmt.Errorf("invalid commit id %q", id)
	}

	authorTime, err := parseUnix(fields[4])
	if err != nil {
		return Commit{}, fmt.Errorf("author time: %w", err)
	}
	commitTime, err := parseUnix(fields[7])
	if err != nil {
		return Commit{}, fmt.Errorf("committer time: %w", err)
	}

	c := Commit{
		ID:        id,
		Parents:   strings.Fields(fields[1]),
		Author:    dec.signature(Signature{Name: fields[2], Email: fields[3], When: authorTime}),
		Committer: dec.signature(Signature{Name: fields[5], Email: fields[6], When: commitTime}),
		Message:   dec.text(fields[8]),
	}

	if c.IsMerge() {
		return c, nil
	}

	changes, err := parseRaw(strings.Split(raw, "\n"))
	if err != nil {
		return Commit{}, err
	}
	diff := ParentDiff{Changes: dec.changes(changes)}
	if len(c.Parents) == 1 {
		diff.Parent = c.Parents[0]
	}
	c.Diffs = []ParentDiff{diff}
	return c, nil
}

func parseUnix(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

// parseRaw parses lines in git's --raw diff format:
//
//	:100644 100644 <sha> <sha> M	path
//	:100644 100644 <sha> <sha> R087	old	new
func parseRaw(lines []string) ([]Change, error) {
	var changes []Change
	for _, line := range lines {
		if !strings.HasPrefix(line, ":") {
			continue
		}
		meta, rest, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("raw line has no path: %q", line)
		}
		metaFields := strings.Fields(meta)
		if len(metaFields) < 5 {
			return nil, fmt.Errorf("raw line has %d fields: %q", len(metaFields), line)
		}
		status := metaFields[4]

		paths := strings.Split(rest, "\t")
		for i, p := range paths {
			unq, err := unquotePath(p)
			if err != nil {
				return nil, err
			}
			paths[i] = unq
		}

		change, err := rawChange(status, paths)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	sortChanges(changes)
	return changes, nil
}

func rawChange(status string, paths []string) (Change, error) {
	if status == "" {
		return Change{}, fmt.Errorf("empty status")
	}
	switch status[0] {
	case 'A':
		return Change{Kind: Added, Path: paths[0]}, nil
	case 'M', 'T':
		return Change{Kind: Modified, Path: paths[0]}, nil
	case 'D':
		return Change{Kind: Deleted, Path: paths[0]}, nil
	case 'R', 'C':
		if len(paths) != 2 {
			return Change{}, fmt.Errorf("status %s needs two paths, got %d", status, len(paths))
		}
		kind := Renamed
		if status[0] == 'C' {
			kind = Copied
		}
		return Change{Kind: kind, Path: paths[1], OldPath: paths[0]}, nil
	default:
		return Change{}, fmt.Errorf("unsupported status %q", status)
	}
}

// unquotePath reverses git's C-style quoting of unusual path names.
func unquotePath(p string) (string, error) {
	if len(p) < 2 || p[0] != '"' || p[len(p)-1] != '"' {
		return p, nil
	}
	unq, err := strconv.Unquote(p)
	if err != nil {
		return "", fmt.Errorf("bad quoted path %s: %w", p, err)
	}
	return unq, nil
}

// parseLsTree parses `git ls-tree -r -z` output into sorted blob paths.
func parseLsTree(out string, followSymlinks bool, dec *decoder) []string {
	var paths []string
	for _, entry := range strings.Split(out, "\x00") {
		meta, path, ok := strings.Cut(entry, "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) < 3 {
			continue
		}
		mode, kind := fields[0], fields[1]
		if kind != "blob" {
			continue
		}
		if mode == "120000" && !followSymlinks {
			continue
		}
		paths = append(paths, dec.text(path))
	}
	sort.Strings(paths)
	return paths
}
