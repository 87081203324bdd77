// Package matcher defines the structural pattern matcher boundary: the
// external collaborator that enumerates code constructs from source files.
// The detection pipeline consumes matches as a stream and never assumes a
// particular matcher implementation.
package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/aledlie/dedup/internal/types"
)

// Match is one enumerated construct.
type Match struct {
	// FilePath is relative to the scanned project root
	FilePath string

	// StartLine and EndLine are 1-indexed and inclusive
	StartLine int
	EndLine   int

	// Text is the construct source exactly as it appears on disk
	Text string

	// AST is the matcher's node tree for the match (JSON), when available.
	// Empty for purely textual matchers.
	AST string
}

// Request describes one enumeration call.
type Request struct {
	ProjectRoot string
	Language    types.Language
	Kind        types.ConstructKind
}

// ErrStopEnumeration is returned by a MatchFunc to stop the stream early
// (e.g., a max-constructs cap was reached). The matcher treats it as a
// clean termination, not a failure.
var ErrStopEnumeration = errors.New("stop enumeration")

// MatchFunc receives one match at a time. Returning an error stops the
// stream; ErrStopEnumeration stops it without reporting failure.
type MatchFunc func(Match) error

// Matcher enumerates constructs from a project. Implementations stream
// matches through fn rather than materializing them, so callers can bound
// memory on large projects.
type Matcher interface {
	// Enumerate streams every construct of the requested kind to fn.
	// Matcher unavailability or mid-stream failure is returned as a
	// *types.CollaboratorError; matches already delivered remain valid.
	Enumerate(ctx context.Context, req Request, fn MatchFunc) error

	// Name identifies the matcher in errors and reports
	Name() string
}

// collabErr wraps err as a matcher collaborator failure.
func collabErr(err error) error {
	return &types.CollaboratorError{Collaborator: "matcher", Err: err}
}

// validate checks the request before any work happens.
func (r Request) validate() error {
	if r.ProjectRoot == "" {
		return fmt.Errorf("project root is required")
	}
	if !r.Language.IsValid() {
		return fmt.Errorf("invalid language: %q", r.Language)
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid construct kind: %q", r.Kind)
	}
	return nil
}
