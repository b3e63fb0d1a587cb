// Package regen rewrites OVAL element identifiers in raw document text so
// that several independently authored documents can be merged without id
// collisions.
//
// # Algorithm
//
// Regeneration runs in two phases over the unparsed text:
//
//  1. [Regenerator.BuildTable] scans the text sequentially for id="..."
//     attributes of the configured scheme. The first occurrence of each
//     distinct value mints a new id: the original value followed by a
//     fixed-width, zero-padded number taken from a shared [Counter].
//     A value defined twice produces a [DuplicateIDWarning]; the first
//     mapping is kept. A counter value that no longer fits in Width digits
//     is an error.
//  2. [Regenerator.Rewrite] replaces every occurrence of a mapped id (the
//     defining attribute, *_ref attributes and reference element text
//     alike). The table is read-only by then, so the text is split into
//     line chunks and rewritten by a bounded pool of workers.
//
// Because the suffix always has the same width, the original id is the
// regenerated id minus its last Width characters, which makes the mapping
// injective across documents that share a Counter.
//
// # Usage
//
//	counter := regen.NewCounter()
//	r := regen.New(counter, regen.Options{Logger: logger})
//	for _, f := range files {
//	    res, err := r.Regenerate(ctx, f.Name, f.Text)
//	    ...
//	}
package regen

import (
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/ovalmerge/pkg/errors"
)

const (
	// DefaultScheme is the id prefix recognised in OVAL feeds.
	DefaultScheme = "oval:"

	// DefaultWidth is the number of decimal digits appended to each id.
	// 16 digits cover more than 2^48 ids.
	DefaultWidth = 16
)

// Counter is a process-wide, monotonically increasing source of id
// suffixes. One Counter must be shared by every document of a merge run.
// It is safe for concurrent use.
type Counter struct {
	next atomic.Uint64
}

// NewCounter returns a counter whose first value is 1.
func NewCounter() *Counter {
	return NewCounterFrom(1)
}

// NewCounterFrom returns a counter whose first value is seed.
func NewCounterFrom(seed uint64) *Counter {
	c := &Counter{}
	c.next.Store(seed)
	return c
}

// Next returns the next value. Values never repeat.
func (c *Counter) Next() uint64 {
	return c.next.Add(1) - 1
}

// Peek returns the value the next call to Next will return.
func (c *Counter) Peek() uint64 {
	return c.next.Load()
}

// Table maps original ids to regenerated ids for one document.
type Table map[string]string

// DuplicateIDWarning reports an id defined more than once in one document.
// It is a data quality warning, not an error: every reference to the id
// still resolves to the first mapping.
type DuplicateIDWarning struct {
	Document    string
	ID          string
	Occurrences int
}

// String implements fmt.Stringer.
func (w DuplicateIDWarning) String() string {
	return fmt.Sprintf("duplicate element id %s in %s (%d definitions)", w.ID, w.Document, w.Occurrences)
}

// Options configures a Regenerator.
type Options struct {
	// Scheme is the id prefix to regenerate (default "oval:").
	Scheme string
	// Width is the zero-padded suffix width (default 16).
	Width int
	// Workers bounds the rewrite worker pool (default runtime.NumCPU()).
	Workers int
	// Logger receives warnings and debug output (default: discard).
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Scheme == "" {
		o.Scheme = DefaultScheme
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Regenerator rewrites ids of one scheme using a shared Counter.
type Regenerator struct {
	counter *Counter
	opts    Options

	defRe   *regexp.Regexp // id="<scheme>..." definitions
	tokenRe *regexp.Regexp // any id-shaped token of the scheme
}

// New creates a Regenerator drawing suffixes from counter.
func New(counter *Counter, opts Options) *Regenerator {
	if counter == nil {
		counter = NewCounter()
	}
	opts = opts.withDefaults()
	scheme := regexp.QuoteMeta(opts.Scheme)
	return &Regenerator{
		counter: counter,
		opts:    opts,
		defRe:   regexp.MustCompile(`(?:^|\s)id\s*=\s*(?:"(` + scheme + `[^"]*)"|'(` + scheme + `[^']*)')`),
		tokenRe: regexp.MustCompile(scheme + `[^"'<>&\s]+`),
	}
}

// Result is the outcome of regenerating one document.
type Result struct {
	Text     string
	Table    Table
	Warnings []DuplicateIDWarning
}

// Regenerate builds the id table for text and rewrites it.
// name identifies the document in warnings and log lines.
func (r *Regenerator) Regenerate(ctx context.Context, name, text string) (*Result, error) {
	r.opts.Logger.Debug("regenerating ids", "document", name)
	table, warnings, err := r.BuildTable(name, text)
	if err != nil {
		return nil, err
	}
	out, err := r.Rewrite(ctx, text, table)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", name, err)
	}
	r.opts.Logger.Debug("regenerated ids", "document", name, "ids", len(table), "duplicates", len(warnings))
	return &Result{Text: out, Table: table, Warnings: warnings}, nil
}

// BuildTable scans text for id definitions in document order and mints a
// regenerated id for the first occurrence of each. It must complete before
// any rewriting, because references may precede or follow their definition.
//
// It fails with INVALID_INPUT when the counter runs past the largest value
// that fits in Width digits.
func (r *Regenerator) BuildTable(name, text string) (Table, []DuplicateIDWarning, error) {
	limit := maxSuffix(r.opts.Width)
	table := make(Table)
	seen := make(map[string]int)
	var order []string

	for _, m := range r.defRe.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if id == "" {
			id = m[2]
		}
		seen[id]++
		if seen[id] > 1 {
			continue
		}
		n := r.counter.Next()
		if n > limit {
			return nil, nil, errors.New(errors.ErrCodeInvalidInput,
				"%s: id suffix width %d exceeded at %s (counter %d)", name, r.opts.Width, id, n)
		}
		order = append(order, id)
		table[id] = fmt.Sprintf("%s%0*d", id, r.opts.Width, n)
	}

	var warnings []DuplicateIDWarning
	for _, id := range order {
		if n := seen[id]; n > 1 {
			w := DuplicateIDWarning{Document: name, ID: id, Occurrences: n}
			r.opts.Logger.Warn("duplicate element id", "document", name, "id", id, "count", n)
			warnings = append(warnings, w)
		}
	}
	return table, warnings, nil
}

// maxSuffix returns the largest counter value printable in width digits.
// Every uint64 fits in 20 digits.
func maxSuffix(width int) uint64 {
	if width >= 20 {
		return math.MaxUint64
	}
	limit := uint64(1)
	for range width {
		limit *= 10
	}
	return limit - 1
}

// Rewrite replaces every id token found in table. Tokens are matched whole,
// so an id that is a textual prefix of another id is never touched by the
// longer one's mapping. The text is split into line-aligned chunks that are
// rewritten concurrently and joined back in their original order.
func (r *Regenerator) Rewrite(ctx context.Context, text string, table Table) (string, error) {
	if len(table) == 0 || text == "" {
		return text, nil
	}

	chunks := splitChunks(text, r.opts.Workers)
	out := make([]string, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = r.rewriteChunk(chunk, table)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(out, ""), nil
}

func (r *Regenerator) rewriteChunk(chunk string, table Table) string {
	return r.tokenRe.ReplaceAllStringFunc(chunk, func(tok string) string {
		if repl, ok := table[tok]; ok {
			return repl
		}
		return tok
	})
}

// splitChunks partitions text into at most n contiguous groups of whole
// lines. Line terminators stay attached so joining the chunks restores the
// input exactly.
func splitChunks(text string, n int) []string {
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if n < 1 {
		n = 1
	}
	size := (len(lines) + n - 1) / n

	chunks := make([]string, 0, n)
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		chunks = append(chunks, strings.Join(lines[start:end], ""))
	}
	return chunks
}
