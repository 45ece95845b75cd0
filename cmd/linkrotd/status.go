package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/linkrotd/linkrotd/internal/git"
	"github.com/linkrotd/linkrotd/internal/rotate"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <worktree> <file>",
	Short: "Report detection state without mutating anything",
	Long: `Reads the target file and reports which configured identifier is
present (or that the state is ambiguous or empty), plus whether the
working tree is dirty. Never writes.`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func init() {
	addRotationFlags(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd, args)
	if err := cfg.ValidateErr(); err != nil {
		return err
	}

	ctx := context.Background()
	if err := git.DetectRepo(ctx, cfg.WorkTree); err != nil {
		return err
	}

	rotator, err := rotate.New(cfg.Template, cfg.Identifiers, nil)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(cfg.TargetPath())
	if err != nil {
		return fmt.Errorf("failed to read target file: %w", err)
	}

	fmt.Printf("linkrotd status\n")
	fmt.Printf("%s\n", strings.Repeat("-", 50))
	fmt.Printf("Target file: %s\n", cfg.TargetPath())
	fmt.Printf("Identifiers: %s\n", strings.Join(cfg.Identifiers, ", "))

	id, err := rotator.Detect(string(content))
	switch {
	case err == nil:
		fmt.Printf("Detection:   single identifier present: %s\n", id)
	case errors.Is(err, rotate.ErrAmbiguous):
		fmt.Printf("Detection:   AMBIGUOUS - %v\n", err)
	case errors.Is(err, rotate.ErrNotFound):
		fmt.Printf("Detection:   none of the configured identifiers present\n")
	default:
		return err
	}

	dirty, err := git.NewCLI(cfg.WorkTree).IsDirty(ctx)
	if err != nil {
		return fmt.Errorf("git status failed: %w", err)
	}
	if dirty {
		fmt.Printf("Work tree:   dirty (next cycle would be skipped)\n")
	} else {
		fmt.Printf("Work tree:   clean\n")
	}

	return nil
}
