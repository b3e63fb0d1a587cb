package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/ovalmerge/pkg/cache"
	"github.com/matzehuels/ovalmerge/pkg/merge"
	"github.com/matzehuels/ovalmerge/pkg/observability"
	"github.com/matzehuels/ovalmerge/pkg/regen"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

// Runner encapsulates merge execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store merge results. Multiple goroutines can safely use the same
// Runner with different inputs.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// cachedMerge is the cache entry for a merged document.
type cachedMerge struct {
	Output []byte        `json:"output"`
	Report *merge.Report `json:"report"`
}

// Execute runs the merge with caching. On a hit only Output, Hash and
// Report are set.
func (r *Runner) Execute(ctx context.Context, inputs []Input, opts Options) (*Result, error) {
	if err := ValidateInputs(inputs); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	cacheKey := r.Keyer.MergeKey(inputHashes(inputs), opts.MergeKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var entry cachedMerge
			if err := json.Unmarshal(data, &entry); err == nil {
				observability.Cache().OnCacheHit(ctx, "merge")
				opts.Logger.Debug("cache hit", "key", cacheKey)
				return &Result{
					Output:   entry.Output,
					Hash:     cache.Hash(entry.Output),
					Report:   entry.Report,
					CacheHit: true,
					Stats:    Stats{Documents: len(inputs), InputBytes: inputSize(inputs)},
				}, nil
			}
			// If deserialization fails, fall through to recompute
		} else if err != nil {
			opts.Logger.Warn("cache read failed", "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "merge")
	}

	result, err := r.Merge(ctx, inputs, opts)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cachedMerge{Output: result.Output, Report: result.Report}); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLMerge); err != nil {
			opts.Logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "merge", len(data))
		}
	}
	return result, nil
}

// Merge runs the full merge without consulting the cache. Every piece of
// per-run state is created here and dropped when it returns.
func (r *Runner) Merge(ctx context.Context, inputs []Input, opts Options) (*Result, error) {
	if err := ValidateInputs(inputs); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := opts.Logger
	hooks := observability.Pipeline()

	result := &Result{
		Namespaces: &xmldoc.Namespaces{},
		Stats:      Stats{Documents: len(inputs), InputBytes: inputSize(inputs)},
	}

	// Stage 1+2: regenerate and parse, in priority order
	regenStart := time.Now()
	rg := regen.New(regen.NewCounter(), opts.RegenOptions())
	docs := make([]*xmldoc.Document, 0, len(inputs))
	for _, in := range inputs {
		result.Namespaces.RegisterText(in.Name, in.Text)

		start := time.Now()
		hooks.OnRegenerateStart(ctx, in.Name)
		res, err := rg.Regenerate(ctx, in.Name, in.Text)
		ids := 0
		if res != nil {
			ids = len(res.Table)
		}
		hooks.OnRegenerateComplete(ctx, in.Name, ids, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("regenerate %s: %w", in.Name, err)
		}
		result.Warnings = append(result.Warnings, res.Warnings...)
		result.Stats.IDs += ids

		doc, err := xmldoc.Parse(in.Name, res.Text)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		logger.Debug("loaded document", "document", in.Name, "ids", doc.Len())
	}
	for _, o := range result.Namespaces.Overrides() {
		logger.Warn("namespace prefix rebound", "prefix", o.Prefix, "old", o.Old, "new", o.New, "document", o.Source)
	}
	result.Stats.RegenTime = time.Since(regenStart)

	// Stage 3: merge and validate
	mergeStart := time.Now()
	hooks.OnMergeStart(ctx, len(docs))
	m := merge.New(merge.Options{
		Logger: logger,
		OnSupersede: func(key, from, to string) {
			hooks.OnSupersede(ctx, key, from, to)
		},
	})
	out, err := mergeDocuments(m, docs, result.Namespaces)
	elements := 0
	if err == nil {
		elements = m.Report(out).Output.Total()
	}
	hooks.OnMergeComplete(ctx, len(docs), elements, time.Since(mergeStart), err)
	if err != nil {
		return nil, err
	}
	result.Tree = out
	result.Merger = m
	result.Stats.MergeTime = time.Since(mergeStart)

	// Stage 4: serialize
	writeStart := time.Now()
	text, err := xmldoc.Serialize(out, xmldoc.WriteOptions{Indent: opts.Indent})
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	result.Output = []byte(text)
	result.Hash = cache.Hash(result.Output)
	result.Stats.WriteTime = time.Since(writeStart)

	result.Report = m.Report(out)
	result.Report.Warnings = reportWarnings(result)

	logger.Info("merged documents",
		"documents", len(docs),
		"packages", result.Report.Packages,
		"superseded", result.Report.Superseded,
		"elements", result.Report.Output.Total(),
		"duration", result.Stats.RegenTime+result.Stats.MergeTime+result.Stats.WriteTime)

	return result, nil
}

func mergeDocuments(m *merge.Merger, docs []*xmldoc.Document, ns *xmldoc.Namespaces) (*etree.Document, error) {
	for _, doc := range docs {
		if err := m.Add(doc); err != nil {
			return nil, err
		}
	}
	out, err := m.Assemble(ns)
	if err != nil {
		return nil, err
	}
	if err := merge.Validate(out.Root()); err != nil {
		return nil, err
	}
	return out, nil
}

// Regenerate rewrites the ids of a single input, as the first stage of a
// merge would. It is exposed for debugging feeds.
func (r *Runner) Regenerate(ctx context.Context, in Input, opts Options) (*regen.Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return regen.New(regen.NewCounter(), opts.RegenOptions()).Regenerate(ctx, in.Name, in.Text)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func inputHashes(inputs []Input) []string {
	hashes := make([]string, len(inputs))
	for i, in := range inputs {
		hashes[i] = cache.Hash([]byte(in.Text))
	}
	return hashes
}

func inputSize(inputs []Input) int {
	n := 0
	for _, in := range inputs {
		n += len(in.Text)
	}
	return n
}

func reportWarnings(result *Result) []string {
	var out []string
	for _, w := range result.Warnings {
		out = append(out, w.String())
	}
	for _, o := range result.Namespaces.Overrides() {
		out = append(out, fmt.Sprintf("%s: namespace prefix %q rebound from %s to %s", o.Source, o.Prefix, o.Old, o.New))
	}
	return out
}
