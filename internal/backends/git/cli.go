package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	scanerrors "github.com/kornysietsma/polyglot-code-scanner/internal/errors"
)

const (
	recordSep = '\x1e'
	fieldSep  = "\x1f"
	bodyEnd   = "\x1d"

	logFormat = "--format=%x1e%H%x1f%P%x1f%an%x1f%ae%x1f%at%x1f%cn%x1f%ce%x1f%ct%x1f%B%x1d"

	maxRecordSize = 64 * 1024 * 1024
)

// CLIWalker walks history by running the git binary.
type CLIWalker struct {
	repoRoot string
	logger   *slog.Logger
}

// NewCLIWalker verifies that repoRoot is inside a work tree and returns a
// walker rooted at its top level.
func NewCLIWalker(ctx context.Context, repoRoot string, logger *slog.Logger) (*CLIWalker, error) {
	w := &CLIWalker{repoRoot: repoRoot, logger: logger}
	top, err := w.executeGitCommand(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, repositoryAccessError(repoRoot, err)
	}
	w.repoRoot = strings.TrimSpace(top)
	return w, nil
}

// Root returns the top level of the work tree.
func (w *CLIWalker) Root() string {
	return w.repoRoot
}

// Walk implements Walker.
func (w *CLIWalker) Walk(ctx context.Context, opts WalkOptions) (*History, error) {
	headOut, err := w.executeGitCommand(ctx, "rev-parse", "--verify", "-q", "HEAD")
	if err != nil || strings.TrimSpace(headOut) == "" {
		w.logger.Warn("Repository has no commits")
		return &History{}, nil
	}
	head := strings.TrimSpace(headOut)

	dec := &decoder{}
	hist := &History{Head: head, Info: RepoInfo{Head: head}}

	if remote, err := w.executeGitCommand(ctx, "config", "--get", "remote.origin.url"); err == nil {
		hist.Info.RemoteURL = strings.TrimSpace(remote)
	}

	tree, err := w.executeGitCommand(ctx, "ls-tree", "-r", "-z", "HEAD")
	if err != nil {
		return nil, err
	}
	hist.LivePaths = parseLsTree(tree, opts.FollowSymlinks, dec)

	if err := w.streamLog(ctx, opts, dec, hist); err != nil {
		return nil, err
	}

	hist.Stats.Walked = len(hist.Commits)
	hist.Stats.LossyDecodes = dec.lossy
	w.logger.Info("Walked git history",
		"head", hist.Head,
		"commits", hist.Stats.Walked,
		"skipped", hist.Stats.Skipped,
		"livePaths", len(hist.LivePaths),
	)
	return hist, nil
}

func (w *CLIWalker) streamLog(ctx context.Context, opts WalkOptions, dec *decoder, hist *History) error {
	args := []string{
		"-c", "core.quotepath=off",
		"log", "--raw", "-M", "-C", "--no-abbrev",
		"--topo-order", "--reverse", "--no-color",
		logFormat,
	}
	if !opts.Since.IsZero() {
		args = append(args, fmt.Sprintf("--since=%d", opts.Since.Unix()))
	}
	args = append(args, "HEAD")

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = w.repoRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return w.commandError(args, "", err)
	}
	if err := cmd.Start(); err != nil {
		return w.commandError(args, "", err)
	}

	parseErr := w.readLog(ctx, stdout, dec, hist)
	// Drain so the process can exit when parsing stopped early.
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		return w.commandError(args, stderr.String(), err)
	}
	return parseErr
}

func (w *CLIWalker) readLog(ctx context.Context, r io.Reader, dec *decoder, hist *History) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxRecordSize)
	scanner.Split(splitRecords)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		record := scanner.Text()
		if strings.TrimSpace(record) == "" {
			continue
		}
		commit, err := parseLogRecord(record, dec)
		if err != nil {
			hist.Stats.Skipped++
			w.logger.Warn("Skipping malformed commit",
				"error", scanerrors.NewScanError(scanerrors.MalformedCommit, "cannot parse log record", err, nil),
			)
			continue
		}
		if commit.IsMerge() {
			if err := w.mergeDiffs(ctx, &commit, dec); err != nil {
				hist.Stats.Skipped++
				w.logger.Warn("Skipping malformed commit",
					"commit", commit.ID,
					"error", scanerrors.NewScanError(scanerrors.MalformedCommit, "cannot diff merge", err, nil),
				)
				continue
			}
		}
		hist.Commits = append(hist.Commits, commit)
	}
	return scanner.Err()
}

// mergeDiffs fills one diff per parent; git log prints no raw output for
// merge commits.
func (w *CLIWalker) mergeDiffs(ctx context.Context, c *Commit, dec *decoder) error {
	c.Diffs = c.Diffs[:0]
	for _, parent := range c.Parents {
		out, err := w.executeGitCommand(ctx, "-c", "core.quotepath=off",
			"diff-tree", "-r", "-M", "-C", "--no-abbrev", "--raw", parent, c.ID)
		if err != nil {
			return err
		}
		changes, err := parseRaw(strings.Split(out, "\n"))
		if err != nil {
			return err
		}
		c.Diffs = append(c.Diffs, ParentDiff{Parent: parent, Changes: dec.changes(changes)})
	}
	return nil
}

// executeGitCommand runs a git command in the repository and returns stdout.
func (w *CLIWalker) executeGitCommand(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = w.repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", w.commandError(args, stderr.String(), err)
	}
	return stdout.String(), nil
}

func (w *CLIWalker) commandError(args []string, stderr string, cause error) error {
	return scanerrors.NewScanError(
		scanerrors.GitCommandFailed,
		"git command failed",
		cause,
		scanerrors.GetSuggestedFixes(scanerrors.GitCommandFailed),
	).WithDetails(map[string]interface{}{
		"args":   strings.Join(args, " "),
		"stderr": strings.TrimSpace(stderr),
	})
}

func splitRecords(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := 0
	if data[0] == recordSep {
		start = 1
	}
	if i := bytes.IndexByte(data[start:], recordSep); i >= 0 {
		return start + i, data[start : start+i], nil
	}
	if atEOF {
		return len(data), data[start:], nil
	}
	return 0, nil, nil
}
