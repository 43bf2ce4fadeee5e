package gitremote

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-hclog"

	"github.com/plugsmith/plugsmith/internal/core/ports"
)

// MinimumGitVersion is the oldest git client the remote layer supports.
const MinimumGitVersion = "2.20.0"

var gitVersionRE = regexp.MustCompile(`git version (\d+\.\d+(?:\.\d+)?)`)

// Client implements ports.GitClient by shelling out to the installed git
// binary. All error text leaving this type passes through Redact.
type Client struct {
	gitPath string
	logger  hclog.Logger
}

// NewClient creates a git client. The binary is resolved lazily so
// availability checks can report absence instead of failing construction.
func NewClient(logger hclog.Logger) *Client {
	return &Client{gitPath: "git", logger: logger.Named("gitremote")}
}

// CheckAvailability probes for the git binary and compares its version
// against MinimumGitVersion. Absence is reported, not returned as an error.
func (c *Client) CheckAvailability(ctx context.Context) ports.GitAvailability {
	out, err := exec.CommandContext(ctx, c.gitPath, "--version").Output()
	if err != nil {
		return ports.GitAvailability{
			Message: "git client not found; install git " + MinimumGitVersion + " or newer",
		}
	}
	m := gitVersionRE.FindStringSubmatch(string(out))
	if m == nil {
		return ports.GitAvailability{
			Available: true,
			Message:   "could not determine git version",
		}
	}
	version := m[1]
	current, err := semver.NewVersion(version)
	if err != nil {
		return ports.GitAvailability{Available: true, Version: version, Message: "unparsable git version"}
	}
	minimum := semver.MustParse(MinimumGitVersion)
	if current.LessThan(minimum) {
		return ports.GitAvailability{
			Available: true,
			Version:   version,
			Message:   fmt.Sprintf("git %s is below the required minimum %s", version, MinimumGitVersion),
		}
	}
	return ports.GitAvailability{Available: true, Version: version, MeetsMinimum: true}
}

// run executes git in dir and returns trimmed stdout. Stderr is folded
// into the error after credential redaction.
func (c *Client) run(ctx context.Context, dir, token string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.gitPath, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		c.logger.Debug("git command failed", "args", Redact(strings.Join(args, " "), token), "error", Redact(detail, token))
		return "", fmt.Errorf("git %s: %s", args[0], Redact(detail, token))
	}
	return strings.TrimSpace(stdout.String()), nil
}

var cloneProgressRE = regexp.MustCompile(`(Receiving|Resolving|Counting|Compressing) [a-z]+:\s+(\d+)%`)

// Clone removes any pre-existing destination, performs an authenticated
// clone, and publishes validating/cloning/complete progress. Percentages
// parsed from git's own progress output are mapped into a monotonic
// 10-95 window.
func (c *Client) Clone(ctx context.Context, remoteURL, token, dest string, sink ports.ProgressSink) error {
	if sink == nil {
		sink = ports.NopSink{}
	}
	sink.Publish(ports.ProgressEvent{Stage: ports.StageValidating, Percent: 0, Message: "preparing destination"})

	if err := os.RemoveAll(dest); err != nil {
		msg := Redact(fmt.Sprintf("failed to clear destination: %v", err), token)
		sink.Publish(ports.ProgressEvent{Stage: ports.StageError, Percent: 0, Message: msg})
		return fmt.Errorf("%s", msg)
	}
	sink.Publish(ports.ProgressEvent{Stage: ports.StageValidating, Percent: 5, Message: "starting clone"})

	authURL := remoteURL
	if token != "" {
		authURL = injectToken(remoteURL, token)
	}

	cmd := exec.CommandContext(ctx, c.gitPath, "clone", "--progress", authURL, dest)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to clone output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		msg := Redact(err.Error(), token)
		sink.Publish(ports.ProgressEvent{Stage: ports.StageError, Percent: 5, Message: msg})
		return fmt.Errorf("git clone: %s", msg)
	}

	last := 10
	sink.Publish(ports.ProgressEvent{Stage: ports.StageCloning, Percent: last, Message: "cloning repository"})
	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		line := scanner.Text()
		tail = append(tail, line)
		if len(tail) > 5 {
			tail = tail[1:]
		}
		if m := cloneProgressRE.FindStringSubmatch(line); m != nil {
			pct := 10 + atoiClamped(m[2])*85/100
			if pct > last {
				last = pct
				sink.Publish(ports.ProgressEvent{Stage: ports.StageCloning, Percent: pct, Message: strings.TrimSpace(line)})
			}
		}
	}
	if err := cmd.Wait(); err != nil {
		msg := Redact(strings.TrimSpace(strings.Join(tail, "; ")), token)
		if msg == "" {
			msg = Redact(err.Error(), token)
		}
		sink.Publish(ports.ProgressEvent{Stage: ports.StageError, Percent: last, Message: msg})
		// A failed clone must not leave a partial tree behind.
		os.RemoveAll(dest)
		return fmt.Errorf("git clone: %s", msg)
	}

	if token != "" {
		// The working clone must not retain the credential-bearing URL.
		if _, err := c.run(ctx, dest, token, "remote", "set-url", "origin", remoteURL); err != nil {
			// run already redacted the error text; the stream still needs
			// its terminal stage.
			sink.Publish(ports.ProgressEvent{Stage: ports.StageError, Percent: last, Message: err.Error()})
			return err
		}
	}
	sink.Publish(ports.ProgressEvent{Stage: ports.StageComplete, Percent: 100, Message: "clone complete"})
	return nil
}

// Pull fetches and merges upstream changes. The remote URL carries the
// credential only inside this call; restoration happens in a deferred
// cleanup so failure paths cannot leak it.
func (c *Client) Pull(ctx context.Context, repoDir, token string) error {
	restore, err := c.authenticateRemote(ctx, repoDir, token)
	if err != nil {
		return err
	}
	defer restore()
	_, err = c.run(ctx, repoDir, token, "pull", "--ff-only")
	return err
}

// Fetch updates remote tracking refs without merging.
func (c *Client) Fetch(ctx context.Context, repoDir, token string) error {
	restore, err := c.authenticateRemote(ctx, repoDir, token)
	if err != nil {
		return err
	}
	defer restore()
	_, err = c.run(ctx, repoDir, token, "fetch", "origin")
	return err
}

// authenticateRemote temporarily rewrites origin to embed the token. The
// returned func restores the unauthenticated URL unconditionally.
func (c *Client) authenticateRemote(ctx context.Context, repoDir, token string) (func(), error) {
	if token == "" {
		return func() {}, nil
	}
	cleanURL, err := c.run(ctx, repoDir, token, "remote", "get-url", "origin")
	if err != nil {
		return nil, err
	}
	if _, err := c.run(ctx, repoDir, token, "remote", "set-url", "origin", injectToken(cleanURL, token)); err != nil {
		return nil, err
	}
	return func() {
		// Best effort with a fresh context: the operation's context may
		// already be done, but the URL must still be restored.
		restoreCmd := exec.Command(c.gitPath, "remote", "set-url", "origin", cleanURL)
		restoreCmd.Dir = repoDir
		if err := restoreCmd.Run(); err != nil {
			c.logger.Warn("failed to restore remote url", "dir", repoDir, "error", Redact(err.Error(), token))
		}
	}, nil
}

// DefaultBranch probes for a conventional primary branch, falling back to
// the first remote branch, falling back to "main".
func (c *Client) DefaultBranch(ctx context.Context, repoDir string) (string, error) {
	for _, candidate := range []string{"main", "master"} {
		if _, err := c.run(ctx, repoDir, "", "rev-parse", "--verify", "origin/"+candidate); err == nil {
			return candidate, nil
		}
	}
	out, err := c.run(ctx, repoDir, "", "branch", "-r", "--format=%(refname:short)")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "HEAD") {
			continue
		}
		return strings.TrimPrefix(line, "origin/"), nil
	}
	return "main", nil
}

// ChangedFiles lists paths differing between local HEAD and the upstream
// branch tip with their name-status letters.
func (c *Client) ChangedFiles(ctx context.Context, repoDir, branch string) ([]ports.NameStatus, error) {
	out, err := c.run(ctx, repoDir, "", "diff", "--name-status", "HEAD", "origin/"+branch)
	if err != nil {
		return nil, err
	}
	var changes []ports.NameStatus
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := string(fields[0][0])
		ns := ports.NameStatus{Status: status, Path: fields[1]}
		if status == "R" && len(fields) >= 3 {
			ns.PriorPath = fields[1]
			ns.Path = fields[2]
		}
		changes = append(changes, ns)
	}
	return changes, nil
}

// IsDirty reports uncommitted working-tree modifications for one path.
func (c *Client) IsDirty(ctx context.Context, repoDir, path string) (bool, error) {
	out, err := c.run(ctx, repoDir, "", "status", "--porcelain", "--", path)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// ShowFile returns the content of path at ref, e.g. "origin/main:plugin.yaml".
func (c *Client) ShowFile(ctx context.Context, repoDir, ref, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.gitPath, "show", ref+":"+path)
	cmd.Dir = repoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("git show %s:%s: %s", ref, path, Redact(detail, ""))
	}
	return stdout.Bytes(), nil
}

// DiffFile returns a unified diff of one path against the upstream tip.
func (c *Client) DiffFile(ctx context.Context, repoDir, branch, path string) (string, error) {
	out, err := c.run(ctx, repoDir, "", "diff", "HEAD", "origin/"+branch, "--", path)
	if err != nil {
		return "", err
	}
	return out, nil
}

// injectToken embeds a credential into an HTTPS remote URL.
func injectToken(remoteURL, token string) string {
	if !strings.HasPrefix(remoteURL, "https://") || token == "" {
		return remoteURL
	}
	rest := strings.TrimPrefix(remoteURL, "https://")
	if at := strings.Index(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return "https://x-access-token:" + token + "@" + rest
}

func atoiClamped(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	if n > 100 {
		n = 100
	}
	return n
}

// scanCRLines splits on both \n and \r so git's in-place progress updates
// surface as separate lines.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
