package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/linkrotd/linkrotd/internal/errors"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	return sb.String()
}

// Validate performs the pre-flight checks required before the loop may
// start. Any failure is a fatal configuration error: the loop is never
// entered with an invalid setup.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	if c.WorkTree == "" {
		result.AddError("working tree path is required")
	} else if info, err := os.Stat(c.WorkTree); err != nil {
		result.AddError("working tree path does not exist: %s", c.WorkTree)
	} else if !info.IsDir() {
		result.AddError("working tree path is not a directory: %s", c.WorkTree)
	}

	if c.File == "" {
		result.AddError("target file is required")
	} else if c.WorkTree != "" {
		if info, err := os.Stat(c.TargetPath()); err != nil {
			result.AddError("target file does not exist: %s", c.TargetPath())
		} else if info.IsDir() {
			result.AddError("target file is a directory: %s", c.TargetPath())
		}
	}

	distinct := make(map[string]struct{})
	for _, id := range c.Identifiers {
		if id == "" {
			result.AddError("identifier set contains an empty token")
			continue
		}
		distinct[id] = struct{}{}
	}
	if len(distinct) < 2 {
		result.AddError("at least 2 distinct identifiers are required, got %d", len(distinct))
	}

	if strings.Count(c.Template, "%s") != 1 {
		result.AddError("template must contain exactly one %%s slot: %q", c.Template)
	}

	if c.IntervalMin < 1 {
		result.AddError("interval_min must be at least 1 minute, got %d", c.IntervalMin)
	}
	if c.IntervalMax < 1 {
		result.AddError("interval_max must be at least 1 minute, got %d", c.IntervalMax)
	}
	if c.IntervalMin >= 1 && c.IntervalMax >= 1 && c.IntervalMin > c.IntervalMax {
		result.AddError("interval_min (%d) must not exceed interval_max (%d)", c.IntervalMin, c.IntervalMax)
	}

	if (c.Commit.Name == "") != (c.Commit.Email == "") {
		result.AddError("commit.name and commit.email must be set together")
	}

	return result
}

// ValidateErr runs Validate and converts failures into a fatal
// configuration error suitable for a command's error return.
func (c *Config) ValidateErr() error {
	if result := c.Validate(); result.HasErrors() {
		return errors.New(errors.ErrorTypeConfig, result.Error())
	}
	return nil
}
