package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/linkrotd/linkrotd/internal/config"
	"github.com/linkrotd/linkrotd/internal/git"
	"github.com/linkrotd/linkrotd/internal/logging"
	"github.com/linkrotd/linkrotd/internal/loop"
	"github.com/linkrotd/linkrotd/internal/rotate"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <worktree> <file>",
	Short: "Run the rotation loop until interrupted",
	Long: `Runs the rotate/commit/push cycle indefinitely, sleeping a random
interval between cycles. The working tree must be a git repository and
the target file must already exist.

Interrupt (Ctrl-C) or SIGTERM stops the loop cleanly with exit code 0.`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	addRotationFlags(runCmd)
	runCmd.Flags().String("log-file", "", "append structured logs to this file")
}

// addRotationFlags registers the flags shared by run, rotate, and status.
func addRotationFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("id", nil, "identifier to rotate between (repeat, at least 2)")
	cmd.Flags().String("template", "", "link template with one %s slot for the identifier")
	cmd.Flags().Int("min-interval", 0, "minimum sleep between cycles in minutes (default 60)")
	cmd.Flags().Int("max-interval", 0, "maximum sleep between cycles in minutes (default 120)")
	cmd.Flags().String("remote", "", "git remote to push to (default origin)")
	cmd.Flags().String("commit-prefix", "", "commit message prefix")
}

// applyOverrides copies positional args and set flags onto the loaded
// config. Flags beat config file values, which beat defaults.
func applyOverrides(cmd *cobra.Command, args []string) {
	cfg.WorkTree = args[0]
	cfg.File = args[1]

	flags := cmd.Flags()
	if flags.Changed("id") {
		cfg.Identifiers, _ = flags.GetStringArray("id")
	}
	if flags.Changed("template") {
		cfg.Template, _ = flags.GetString("template")
	}
	if flags.Changed("min-interval") {
		cfg.IntervalMin, _ = flags.GetInt("min-interval")
	}
	if flags.Changed("max-interval") {
		cfg.IntervalMax, _ = flags.GetInt("max-interval")
	}
	if flags.Changed("remote") {
		cfg.Remote, _ = flags.GetString("remote")
	}
	if flags.Changed("commit-prefix") {
		cfg.Commit.Prefix, _ = flags.GetString("commit-prefix")
	}
	if f := flags.Lookup("log-file"); f != nil && f.Changed {
		cfg.Log.File, _ = flags.GetString("log-file")
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd, args)
	if err := cfg.ValidateErr(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := git.DetectRepo(ctx, cfg.WorkTree); err != nil {
		return err
	}

	slogger, err := logging.New(logging.Config{
		Debug:      verbose,
		OutputFile: cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer slogger.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rotator, err := rotate.New(cfg.Template, cfg.Identifiers, rng)
	if err != nil {
		return err
	}

	printBanner(cfg)

	ctrl := loop.New(cfg, git.NewCLI(cfg.WorkTree), rotator, slogger.Logger, rng)
	if err := ctrl.Run(ctx); err != nil {
		return err
	}

	logger.Info("stopped")
	return nil
}

func printBanner(cfg *config.Config) {
	fmt.Printf("=== linkrotd ===\n")
	fmt.Printf("Working tree: %s\n", cfg.WorkTree)
	fmt.Printf("Target file:  %s\n", cfg.TargetPath())
	fmt.Printf("Identifiers:  %s\n", strings.Join(cfg.Identifiers, ", "))
	fmt.Printf("Interval:     %d-%d minutes\n", cfg.IntervalMin, cfg.IntervalMax)
	fmt.Printf("%s\n", strings.Repeat("-", 50))
}
