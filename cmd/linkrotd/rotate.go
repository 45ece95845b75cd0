package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/linkrotd/linkrotd/internal/git"
	"github.com/linkrotd/linkrotd/internal/logging"
	"github.com/linkrotd/linkrotd/internal/loop"
	"github.com/linkrotd/linkrotd/internal/rotate"
	"github.com/spf13/cobra"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate <worktree> <file>",
	Short: "Run exactly one rotation cycle and exit",
	Long: `Performs a single check/rotate/commit/push cycle and exits. Intended
for external schedulers (cron, systemd timers) that own the interval
themselves. Exits 0 only when a rotation was committed and pushed.`,
	Args: cobra.ExactArgs(2),
	RunE: runRotate,
}

func init() {
	addRotationFlags(rotateCmd)
}

func runRotate(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd, args)
	if err := cfg.ValidateErr(); err != nil {
		return err
	}

	ctx := context.Background()
	if err := git.DetectRepo(ctx, cfg.WorkTree); err != nil {
		return err
	}

	slogger, err := logging.New(logging.Config{Debug: verbose})
	if err != nil {
		return err
	}
	defer slogger.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rotator, err := rotate.New(cfg.Template, cfg.Identifiers, rng)
	if err != nil {
		return err
	}

	ctrl := loop.New(cfg, git.NewCLI(cfg.WorkTree), rotator, slogger.Logger, rng)
	outcome := ctrl.RunOnce(ctx)
	if outcome != loop.OutcomeRotated {
		return fmt.Errorf("cycle did not rotate: %s", outcome)
	}

	last := ctrl.LastRotation()
	fmt.Printf("Rotated %s -> %s\n", last.Old, last.New)
	return nil
}
