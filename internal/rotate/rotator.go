// Package rotate implements detection and substitution of affiliate
// identifiers embedded in a URL template inside text content.
package rotate

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

var (
	// ErrAmbiguous is returned when more than one configured identifier
	// is present in the content. No mutation is performed in this state.
	ErrAmbiguous = errors.New("multiple configured identifiers present")

	// ErrNotFound is returned when no configured identifier is present.
	ErrNotFound = errors.New("no configured identifier present")
)

// Result describes one completed rotation.
type Result struct {
	Content string // content after substitution
	Old     string // identifier that was present
	New     string // identifier it was replaced with
}

// Rotator swaps one identifier for another inside a URL template.
// Detection matches the fully populated template, never the bare
// token, so an identifier appearing elsewhere in the file does not
// count.
type Rotator struct {
	template    string
	identifiers []string
	rng         *rand.Rand
}

// New creates a Rotator for the given template and identifier set.
// The template must contain exactly one %s slot and the set must hold
// at least two distinct identifiers. rng drives the replacement choice
// when the set has more than two members; pass nil for a time-seeded
// source.
func New(template string, identifiers []string, rng *rand.Rand) (*Rotator, error) {
	if strings.Count(template, "%s") != 1 {
		return nil, fmt.Errorf("template must contain exactly one %%s slot: %q", template)
	}
	seen := make(map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		if id == "" {
			return nil, fmt.Errorf("empty identifier in set")
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 2 {
		return nil, fmt.Errorf("identifier set needs at least 2 distinct members, got %d", len(seen))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Rotator{
		template:    template,
		identifiers: identifiers,
		rng:         rng,
	}, nil
}

// Link returns the template populated with the given identifier.
func (r *Rotator) Link(id string) string {
	return fmt.Sprintf(r.template, id)
}

// Detect classifies the content: it returns the single configured
// identifier present, ErrAmbiguous if more than one is present, or
// ErrNotFound if none is. Detection has no side effects and is
// idempotent.
func (r *Rotator) Detect(content string) (string, error) {
	var present []string
	seen := make(map[string]struct{})
	for _, id := range r.identifiers {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if strings.Contains(content, r.Link(id)) {
			present = append(present, id)
		}
	}
	switch len(present) {
	case 0:
		return "", ErrNotFound
	case 1:
		return present[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguous, strings.Join(present, ", "))
	}
}

// Rotate detects the current identifier, picks a different one from
// the set, and substitutes every occurrence of the old populated
// template with the new one. The original content is untouched on
// error.
func (r *Rotator) Rotate(content string) (Result, error) {
	old, err := r.Detect(content)
	if err != nil {
		return Result{}, err
	}

	next := r.pick(old)
	updated := strings.ReplaceAll(content, r.Link(old), r.Link(next))

	return Result{Content: updated, Old: old, New: next}, nil
}

// pick selects the replacement identifier. With exactly two members
// this is deterministic; otherwise it is a uniform choice among the
// remaining members.
func (r *Rotator) pick(current string) string {
	var others []string
	seen := make(map[string]struct{})
	for _, id := range r.identifiers {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if id != current {
			others = append(others, id)
		}
	}
	if len(others) == 1 {
		return others[0]
	}
	return others[r.rng.Intn(len(others))]
}

// Identifiers returns the configured identifier set.
func (r *Rotator) Identifiers() []string {
	return r.identifiers
}
