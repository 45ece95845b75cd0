package loop

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/linkrotd/linkrotd/internal/config"
	"github.com/linkrotd/linkrotd/internal/rotate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGit records calls and returns configured errors. It stands in
// for the subprocess client so cycles run without a repository.
type fakeGit struct {
	dirty     bool
	branch    string
	statusErr error
	addErr    error
	commitErr error
	pushErr   error
	branchErr error

	identities [][2]string
	adds       []string
	commits    []string
	pushes     [][2]string
}

func (f *fakeGit) Status(ctx context.Context) (string, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if f.dirty {
		return "Changes not staged for commit", nil
	}
	return "nothing to commit, working tree clean", nil
}

func (f *fakeGit) IsDirty(ctx context.Context) (bool, error) {
	if f.statusErr != nil {
		return false, f.statusErr
	}
	return f.dirty, nil
}

func (f *fakeGit) Add(ctx context.Context, path string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.adds = append(f.adds, path)
	return nil
}

func (f *fakeGit) Commit(ctx context.Context, message string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, message)
	return nil
}

func (f *fakeGit) Push(ctx context.Context, remote, branch string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, [2]string{remote, branch})
	return nil
}

func (f *fakeGit) CurrentBranch(ctx context.Context) (string, error) {
	if f.branchErr != nil {
		return "", f.branchErr
	}
	if f.branch == "" {
		return "main", nil
	}
	return f.branch, nil
}

func (f *fakeGit) SetIdentity(ctx context.Context, name, email string) error {
	f.identities = append(f.identities, [2]string{name, email})
	return nil
}

// newTestController builds a controller over a temp working tree whose
// target file holds the given content.
func newTestController(t *testing.T, content string, fake *fakeGit) (*Controller, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte(content), 0644))

	cfg := config.Default()
	cfg.WorkTree = dir
	cfg.Identifiers = []string{"1111111111", "2222222222"}
	cfg.IntervalMin = 1
	cfg.IntervalMax = 2

	rng := rand.New(rand.NewSource(1))
	rot, err := rotate.New(cfg.Template, cfg.Identifiers, rng)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return New(cfg, fake, rot, logger, rng), cfg
}

func readTarget(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := os.ReadFile(cfg.TargetPath())
	require.NoError(t, err)
	return string(data)
}

func TestRunOnceRotates(t *testing.T) {
	fake := &fakeGit{}
	ctrl, cfg := newTestController(t, "link: https://t.me/jiso?start=a_1111111111\n", fake)

	outcome := ctrl.RunOnce(context.Background())

	assert.Equal(t, OutcomeRotated, outcome)

	content := readTarget(t, cfg)
	assert.Contains(t, content, "a_2222222222")
	assert.NotContains(t, content, "a_1111111111")

	require.Equal(t, []string{"README.md"}, fake.adds)
	require.Len(t, fake.commits, 1)
	assert.Regexp(t, regexp.MustCompile(`^Update links \(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\)$`), fake.commits[0])
	require.Equal(t, [][2]string{{"origin", "main"}}, fake.pushes)

	last := ctrl.LastRotation()
	require.NotNil(t, last)
	assert.Equal(t, "1111111111", last.Old)
	assert.Equal(t, "2222222222", last.New)
	assert.False(t, last.At.IsZero())
}

func TestRunOnceSkipsDirtyTree(t *testing.T) {
	fake := &fakeGit{dirty: true}
	original := "link: https://t.me/jiso?start=a_1111111111\n"
	ctrl, cfg := newTestController(t, original, fake)

	outcome := ctrl.RunOnce(context.Background())

	assert.Equal(t, OutcomeSkippedDirty, outcome)
	assert.Equal(t, original, readTarget(t, cfg), "dirty tree must not be mutated")
	assert.Empty(t, fake.adds)
	assert.Empty(t, fake.commits)
	assert.Nil(t, ctrl.LastRotation())
}

func TestRunOnceAmbiguousState(t *testing.T) {
	fake := &fakeGit{}
	original := "https://t.me/jiso?start=a_1111111111\nhttps://t.me/jiso?start=a_2222222222\n"
	ctrl, cfg := newTestController(t, original, fake)

	outcome := ctrl.RunOnce(context.Background())

	assert.Equal(t, OutcomeAmbiguous, outcome)
	assert.Equal(t, original, readTarget(t, cfg), "ambiguous state must not be mutated")
	assert.Empty(t, fake.adds)
	assert.Empty(t, fake.commits)
	assert.Empty(t, fake.pushes)
}

func TestRunOnceNotFound(t *testing.T) {
	fake := &fakeGit{}
	original := "no links here\n"
	ctrl, cfg := newTestController(t, original, fake)

	outcome := ctrl.RunOnce(context.Background())

	assert.Equal(t, OutcomeNotFound, outcome)
	assert.Equal(t, original, readTarget(t, cfg))
	assert.Empty(t, fake.commits)
}

func TestRunOncePushFailureContained(t *testing.T) {
	fake := &fakeGit{pushErr: assert.AnError}
	ctrl, _ := newTestController(t, "https://t.me/jiso?start=a_1111111111\n", fake)

	// Must not panic or propagate; the cycle just ends
	outcome := ctrl.RunOnce(context.Background())
	assert.Equal(t, OutcomeGitFailed, outcome)

	// The commit was still created locally
	require.Len(t, fake.commits, 1)

	// The next cycle starts from scratch without issue
	fake.pushErr = nil
	outcome = ctrl.RunOnce(context.Background())
	assert.Equal(t, OutcomeRotated, outcome)
}

func TestRunOnceStatusFailure(t *testing.T) {
	fake := &fakeGit{statusErr: assert.AnError}
	original := "https://t.me/jiso?start=a_1111111111\n"
	ctrl, cfg := newTestController(t, original, fake)

	outcome := ctrl.RunOnce(context.Background())

	assert.Equal(t, OutcomeGitFailed, outcome)
	assert.Equal(t, original, readTarget(t, cfg))
}

func TestRunOnceMissingFile(t *testing.T) {
	fake := &fakeGit{}
	ctrl, cfg := newTestController(t, "https://t.me/jiso?start=a_1111111111\n", fake)
	require.NoError(t, os.Remove(cfg.TargetPath()))

	outcome := ctrl.RunOnce(context.Background())
	assert.Equal(t, OutcomeIOFailed, outcome)
}

func TestRunOnceSetsIdentity(t *testing.T) {
	fake := &fakeGit{}
	ctrl, cfg := newTestController(t, "https://t.me/jiso?start=a_1111111111\n", fake)
	cfg.Commit.Name = "Rotator Bot"
	cfg.Commit.Email = "bot@example.com"

	outcome := ctrl.RunOnce(context.Background())

	assert.Equal(t, OutcomeRotated, outcome)
	require.Equal(t, [][2]string{{"Rotator Bot", "bot@example.com"}}, fake.identities)
}

func TestRunSleepsBetweenCycles(t *testing.T) {
	fake := &fakeGit{}
	ctrl, _ := newTestController(t, "https://t.me/jiso?start=a_1111111111\n", fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sleeps []time.Duration
	ctrl.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	require.NoError(t, ctrl.Run(ctx))

	require.Len(t, sleeps, 3)
	for _, d := range sleeps {
		// interval_min=1, interval_max=2 minutes
		assert.GreaterOrEqual(t, d, 1*time.Minute)
		assert.LessOrEqual(t, d, 2*time.Minute)
	}
}

func TestRunContinuesAfterFailedCycles(t *testing.T) {
	// A file with no identifiers keeps producing not-found cycles; the
	// driver must keep scheduling regardless
	fake := &fakeGit{}
	ctrl, _ := newTestController(t, "nothing here\n", fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	ctrl.sleep = func(ctx context.Context, d time.Duration) error {
		cycles++
		if cycles == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	require.NoError(t, ctrl.Run(ctx))
	assert.Equal(t, 2, cycles)
}

func TestNextDelayDeterministicWithSeed(t *testing.T) {
	fake := &fakeGit{}
	a, _ := newTestController(t, "x", fake)
	b, _ := newTestController(t, "x", fake)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.nextDelay(), b.nextDelay())
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "rotated", OutcomeRotated.String())
	assert.Equal(t, "skipped-dirty", OutcomeSkippedDirty.String())
	assert.Equal(t, "ambiguous", OutcomeAmbiguous.String())
	assert.Equal(t, "not-found", OutcomeNotFound.String())
	assert.Equal(t, "git-failed", OutcomeGitFailed.String())
	assert.Equal(t, "io-failed", OutcomeIOFailed.String())
}
