// Package git wraps the external git client behind a narrow interface
// so the rotation loop can be tested without a real repository.
package git

import (
	"context"
	"os/exec"
	"strings"

	"github.com/linkrotd/linkrotd/internal/errors"
)

// Markers in `git status` output that classify the working tree as
// dirty. Exit codes decide success; these strings decide dirtiness.
const (
	markerNotStaged = "Changes not staged for commit"
	markerUntracked = "Untracked files"
)

// Client is the subset of git operations the rotation loop needs.
type Client interface {
	// Status returns the raw `git status` output for the working tree.
	Status(ctx context.Context) (string, error)
	// IsDirty reports whether the tree has unstaged or untracked changes.
	IsDirty(ctx context.Context) (bool, error)
	// Add stages the given path (relative to the working tree).
	Add(ctx context.Context, path string) error
	// Commit creates a commit with the given message.
	Commit(ctx context.Context, message string) error
	// Push pushes the given branch to the given remote.
	Push(ctx context.Context, remote, branch string) error
	// CurrentBranch returns the checked-out branch name.
	CurrentBranch(ctx context.Context) (string, error)
	// SetIdentity configures user.name and user.email for the tree.
	SetIdentity(ctx context.Context, name, email string) error
}

// CLI runs git as a subprocess with the working tree as its directory.
type CLI struct {
	dir string
}

var _ Client = (*CLI)(nil)

// NewCLI returns a Client operating on the given working tree.
func NewCLI(dir string) *CLI {
	return &CLI{dir: dir}
}

// run executes a git command in the working tree and returns its
// combined output. A non-zero exit becomes an error carrying the
// output, which usually holds git's own diagnostic.
func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.ExternalErrorf(err, "git %s: %s", args[0], strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *CLI) Status(ctx context.Context) (string, error) {
	return c.run(ctx, "status")
}

func (c *CLI) IsDirty(ctx context.Context) (bool, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	return IsDirtyStatus(status), nil
}

func (c *CLI) Add(ctx context.Context, path string) error {
	_, err := c.run(ctx, "add", path)
	return err
}

func (c *CLI) Commit(ctx context.Context, message string) error {
	_, err := c.run(ctx, "commit", "-m", message)
	return err
}

func (c *CLI) Push(ctx context.Context, remote, branch string) error {
	_, err := c.run(ctx, "push", remote, branch)
	return err
}

func (c *CLI) CurrentBranch(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (c *CLI) SetIdentity(ctx context.Context, name, email string) error {
	if _, err := c.run(ctx, "config", "user.name", name); err != nil {
		return err
	}
	_, err := c.run(ctx, "config", "user.email", email)
	return err
}

// DetectRepo checks that dir is inside a git working tree.
func DetectRepo(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		return errors.ConfigErrorf("not a git repository: %s", dir)
	}
	return nil
}

// IsDirtyStatus reports whether raw `git status` output describes a
// tree with unstaged or untracked changes.
func IsDirtyStatus(status string) bool {
	return strings.Contains(status, markerNotStaged) ||
		strings.Contains(status, markerUntracked)
}
