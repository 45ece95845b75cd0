// Package loop drives the rotate/commit/push cycle. The testable step
// (RunOnce) is separated from the sleeping driver (Run) so tests never
// wait on real time.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/linkrotd/linkrotd/internal/config"
	"github.com/linkrotd/linkrotd/internal/git"
	"github.com/linkrotd/linkrotd/internal/rotate"
)

// Outcome classifies one cycle. Every cycle produces an outcome; no
// error escapes RunOnce.
type Outcome int

const (
	// OutcomeRotated - the file was rewritten, committed, and pushed
	OutcomeRotated Outcome = iota
	// OutcomeSkippedDirty - the tree already had uncommitted changes
	OutcomeSkippedDirty
	// OutcomeAmbiguous - more than one identifier present, no mutation
	OutcomeAmbiguous
	// OutcomeNotFound - no configured identifier present, no mutation
	OutcomeNotFound
	// OutcomeGitFailed - the git client failed; retried next cycle
	OutcomeGitFailed
	// OutcomeIOFailed - reading or writing the target file failed
	OutcomeIOFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRotated:
		return "rotated"
	case OutcomeSkippedDirty:
		return "skipped-dirty"
	case OutcomeAmbiguous:
		return "ambiguous"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeGitFailed:
		return "git-failed"
	case OutcomeIOFailed:
		return "io-failed"
	default:
		return "unknown"
	}
}

// Rotation records the last completed substitution. Advisory only;
// never persisted.
type Rotation struct {
	Old string
	New string
	At  time.Time
}

// Controller owns one rotation loop over a single working tree.
type Controller struct {
	cfg *config.Config
	git git.Client
	rot *rotate.Rotator
	log *slog.Logger

	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	last *Rotation
}

// New builds a Controller. rng drives the sleep interval draw; pass
// nil for a time-seeded source. The same source should be handed to
// the Rotator so one seed fixes a whole run.
func New(cfg *config.Config, client git.Client, rot *rotate.Rotator, logger *slog.Logger, rng *rand.Rand) *Controller {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Controller{
		cfg:   cfg,
		git:   client,
		rot:   rot,
		log:   logger,
		rng:   rng,
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// LastRotation returns the most recent substitution, or nil if none
// has happened yet this run.
func (c *Controller) LastRotation() *Rotation {
	return c.last
}

// RunOnce performs a single cycle: dirty-tree pre-check, detect,
// substitute, write, stage, commit, push. Failures end the cycle
// without retry; the next scheduled cycle starts from scratch.
func (c *Controller) RunOnce(ctx context.Context) Outcome {
	dirty, err := c.git.IsDirty(ctx)
	if err != nil {
		c.log.Error("git status failed", "err", err)
		return OutcomeGitFailed
	}
	if dirty {
		c.log.Warn("working tree has uncommitted changes, skipping cycle")
		return OutcomeSkippedDirty
	}

	target := c.cfg.TargetPath()
	content, err := os.ReadFile(target)
	if err != nil {
		c.log.Error("failed to read target file", "path", target, "err", err)
		return OutcomeIOFailed
	}

	result, err := c.rot.Rotate(string(content))
	switch {
	case errors.Is(err, rotate.ErrAmbiguous):
		c.log.Error("ambiguous state, refusing to rotate", "err", err)
		return OutcomeAmbiguous
	case errors.Is(err, rotate.ErrNotFound):
		c.log.Warn("no configured identifier found, nothing to rotate")
		return OutcomeNotFound
	case err != nil:
		c.log.Error("rotation failed", "err", err)
		return OutcomeIOFailed
	}

	// In-place overwrite. A crash mid-write can corrupt the file;
	// acceptable for this content.
	if err := os.WriteFile(target, []byte(result.Content), 0644); err != nil {
		c.log.Error("failed to write target file", "path", target, "err", err)
		return OutcomeIOFailed
	}
	c.last = &Rotation{Old: result.Old, New: result.New, At: c.now()}
	c.log.Info("rotated identifier", "old", result.Old, "new", result.New)

	if c.cfg.Commit.Name != "" && c.cfg.Commit.Email != "" {
		if err := c.git.SetIdentity(ctx, c.cfg.Commit.Name, c.cfg.Commit.Email); err != nil {
			c.log.Error("failed to set commit identity", "err", err)
			return OutcomeGitFailed
		}
	}

	if err := c.git.Add(ctx, c.cfg.File); err != nil {
		c.log.Error("git add failed", "err", err)
		return OutcomeGitFailed
	}

	message := c.commitMessage()
	if err := c.git.Commit(ctx, message); err != nil {
		c.log.Error("git commit failed", "err", err)
		return OutcomeGitFailed
	}

	branch, err := c.git.CurrentBranch(ctx)
	if err != nil {
		c.log.Error("failed to resolve current branch", "err", err)
		return OutcomeGitFailed
	}
	if err := c.git.Push(ctx, c.cfg.Remote, branch); err != nil {
		c.log.Error("git push failed", "remote", c.cfg.Remote, "branch", branch, "err", err)
		return OutcomeGitFailed
	}

	c.log.Info("pushed", "remote", c.cfg.Remote, "branch", branch, "message", message)
	return OutcomeRotated
}

// Run cycles until ctx is cancelled, sleeping a random interval after
// every cycle regardless of its outcome. Cancellation is a clean stop.
func (c *Controller) Run(ctx context.Context) error {
	for {
		outcome := c.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		delay := c.nextDelay()
		c.log.Info("cycle complete", "outcome", outcome.String(), "next_check_in", delay.String())
		if err := c.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func (c *Controller) commitMessage() string {
	return c.cfg.Commit.Prefix + " (" + c.now().Format("2006-01-02 15:04:05") + ")"
}

// nextDelay draws a duration uniformly from the configured
// [interval_min, interval_max] minute range, at second granularity.
func (c *Controller) nextDelay() time.Duration {
	minSec := c.cfg.IntervalMin * 60
	maxSec := c.cfg.IntervalMax * 60
	return time.Duration(minSec+c.rng.Intn(maxSec-minSec+1)) * time.Second
}

// sleepCtx blocks for d or until ctx is cancelled, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
