// Package pipeline runs a complete merge: load → regenerate → parse →
// merge → validate → serialize.
//
// This package is the single entry point used by the CLI and the HTTP
// service, so both apply the same defaults, caching and instrumentation.
//
// # Architecture
//
// One call to [Runner.Merge] owns all per-run state: the id counter shared
// by every input, the namespace registry and the package table. Nothing is
// kept between runs, so several merges may execute concurrently on one
// Runner.
//
//  1. Regenerate: rewrite every "oval:" id with a globally unique suffix
//  2. Parse: build the tree and id index of each regenerated text
//  3. Merge: resolve closures, apply priority, assemble the output
//  4. Validate and serialize
//
// [Runner.Execute] wraps the run with a result cache keyed by the content
// of the inputs and the options that affect the output.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	inputs, err := pipeline.LoadFiles([]string{"base.xml", "vendor.xml"})
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Execute(ctx, inputs, pipeline.Options{})
//	if err != nil {
//	    return err
//	}
//	os.Stdout.Write(result.Output)
package pipeline

import (
	"io"
	"time"

	"github.com/beevik/etree"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/ovalmerge/pkg/cache"
	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/merge"
	"github.com/matzehuels/ovalmerge/pkg/regen"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultScheme is the id prefix that gets regenerated.
	DefaultScheme = regen.DefaultScheme

	// DefaultWidth is the zero-padded width of regenerated suffixes.
	DefaultWidth = regen.DefaultWidth

	// DefaultIndent is the number of spaces per level in the output.
	DefaultIndent = xmldoc.DefaultIndent

	// MaxWidth bounds the suffix width; a uint64 counter has at most 20 digits.
	MaxWidth = 20

	// MaxIndent bounds output indentation.
	MaxIndent = 16
)

// =============================================================================
// Inputs, Options and Results
// =============================================================================

// Input is one document to merge. Inputs are passed in increasing priority.
type Input struct {
	Name string
	Text string
}

// Options contains all configuration for a merge run.
// This struct supports JSON serialization for API requests.
type Options struct {
	Scheme  string `json:"scheme,omitempty"`
	Width   int    `json:"width,omitempty"`
	Indent  int    `json:"indent,omitempty"`
	Workers int    `json:"workers,omitempty"` // 0 = one per CPU
	Refresh bool   `json:"refresh,omitempty"` // Recompute even on a cache hit

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a merge run.
type Result struct {
	// Output is the serialized merged document.
	Output []byte

	// Hash is the SHA-256 of Output.
	Hash string

	// Report summarizes the run.
	Report *merge.Report

	// Tree, Merger and Namespaces are only set when the merge actually ran;
	// a cache hit leaves them nil.
	Tree       *etree.Document
	Merger     *merge.Merger
	Namespaces *xmldoc.Namespaces

	// Warnings lists duplicate ids found in the inputs.
	Warnings []regen.DuplicateIDWarning

	// Stats contains timing and size information.
	Stats Stats

	// CacheHit reports whether Output came from the cache.
	CacheHit bool
}

// Stats contains merge execution statistics.
type Stats struct {
	Documents  int
	InputBytes int
	IDs        int
	RegenTime  time.Duration
	MergeTime  time.Duration
	WriteTime  time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks option ranges and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Scheme == "" {
		o.Scheme = DefaultScheme
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Indent == 0 {
		o.Indent = DefaultIndent
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}

	if o.Width < 1 || o.Width > MaxWidth {
		return errors.New(errors.ErrCodeInvalidInput, "width must be between 1 and %d, got %d", MaxWidth, o.Width)
	}
	if o.Indent < 1 || o.Indent > MaxIndent {
		return errors.New(errors.ErrCodeInvalidInput, "indent must be between 1 and %d, got %d", MaxIndent, o.Indent)
	}
	if o.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workers must not be negative, got %d", o.Workers)
	}
	o.validated = true
	return nil
}

// RegenOptions returns the regenerator configuration for these options.
func (o *Options) RegenOptions() regen.Options {
	return regen.Options{
		Scheme:  o.Scheme,
		Width:   o.Width,
		Workers: o.Workers,
		Logger:  o.Logger,
	}
}

// MergeKeyOpts returns cache key options for merged documents.
func (o *Options) MergeKeyOpts() cache.MergeKeyOpts {
	return cache.MergeKeyOpts{
		Scheme: o.Scheme,
		Width:  o.Width,
		Indent: o.Indent,
	}
}

// ValidateInputs checks that there is at least one input and that every
// input is named.
func ValidateInputs(inputs []Input) error {
	if len(inputs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one document is required")
	}
	for i, in := range inputs {
		if in.Name == "" {
			return errors.New(errors.ErrCodeInvalidInput, "input %d has no name", i+1)
		}
	}
	return nil
}
