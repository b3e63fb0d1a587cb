package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ovalmerge/pkg/cache"
	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/observability"
	"github.com/matzehuels/ovalmerge/pkg/pipeline"
	"github.com/matzehuels/ovalmerge/pkg/refgraph"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

type graphOpts struct {
	format   string
	output   string
	detailed bool
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		flags mergeFlags
		gopts = graphOpts{format: refgraph.FormatDOT}
	)

	cmd := &cobra.Command{
		Use:   "graph SOURCE...",
		Short: "Draw the reference graph of the merged document",
		Long: `Merge the given documents and draw the references between the
definitions, tests, objects, states and variables of the result.

DOT output can be piped to Graphviz; --format svg renders it directly.`,
		Example: `  ovalmerge graph base.xml vendor.xml | dot -Tpng > refs.png
  ovalmerge graph --format svg --detailed -o refs.svg base.xml vendor.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if gopts.format != refgraph.FormatDOT && gopts.format != refgraph.FormatSVG {
				return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: dot, svg)", gopts.format)
			}
			opts := c.mergeOptions()
			flags.apply(cmd, &opts)
			return c.runGraph(cmd.Context(), args, opts, gopts, flags.noCache)
		},
	}

	cmd.Flags().StringVarP(&gopts.format, "format", "f", gopts.format, "output format: dot (default), svg")
	cmd.Flags().StringVarP(&gopts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&gopts.detailed, "detailed", false, "label nodes with element tag and package title")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, paths []string, opts pipeline.Options, gopts graphOpts, noCache bool) error {
	inputs, err := c.loadInputs(ctx, paths, noCache)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	result, err := runner.Execute(ctx, inputs, opts)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	variant := gopts.format
	if gopts.detailed {
		variant += "+detailed"
	}
	key := runner.Keyer.GraphKey(result.Hash, variant)

	data, hit, err := runner.Cache.Get(ctx, key)
	if err != nil {
		c.Logger.Warn("cache read failed", "err", err)
	}
	if hit && !opts.Refresh {
		observability.Cache().OnCacheHit(ctx, "graph")
	} else {
		observability.Cache().OnCacheMiss(ctx, "graph")
		data, err = c.renderGraph(ctx, result, gopts)
		if err != nil {
			return err
		}
		if err := runner.Cache.Set(ctx, key, data, cache.TTLGraph); err != nil {
			c.Logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "graph", len(data))
		}
	}

	if err := c.writeOutput(gopts.output, data); err != nil {
		return err
	}
	if gopts.output != "" {
		printSuccess("Rendered reference graph")
		printFile(gopts.output)
	}
	return nil
}

// renderGraph builds the graph from the merged tree. A cached merge has no
// tree, so its output is parsed again.
func (c *CLI) renderGraph(ctx context.Context, result *pipeline.Result, gopts graphOpts) ([]byte, error) {
	tree := result.Tree
	if tree == nil {
		doc, err := xmldoc.Parse("merged", string(result.Output))
		if err != nil {
			return nil, err
		}
		tree = doc.Tree()
	}

	g := refgraph.Build(tree.Root())
	if dangling := g.Dangling(); len(dangling) > 0 {
		c.Logger.Warn("graph has dangling edges", "count", len(dangling))
	}
	c.Logger.Debug("built reference graph", "nodes", len(g.Nodes), "edges", len(g.Edges))
	return refgraph.Render(ctx, g, gopts.format, refgraph.Options{Detailed: gopts.detailed})
}
