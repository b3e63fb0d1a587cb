package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ovalmerge/pkg/pipeline"
)

// mergeFlags holds the flags shared by commands that run a merge.
type mergeFlags struct {
	noCache bool
	refresh bool
	workers int
	indent  int
}

func (f *mergeFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel id rewrite workers (default: one per CPU)")
	cmd.Flags().IntVar(&f.indent, "indent", 0, "spaces per indentation level (default 2)")
}

// apply overrides config defaults with flags the user actually set.
func (f *mergeFlags) apply(cmd *cobra.Command, opts *pipeline.Options) {
	if cmd.Flags().Changed("workers") {
		opts.Workers = f.workers
	}
	if cmd.Flags().Changed("indent") {
		opts.Indent = f.indent
	}
	opts.Refresh = f.refresh
}

// mergeCommand creates the merge command.
func (c *CLI) mergeCommand() *cobra.Command {
	var (
		flags  mergeFlags
		output string
		report bool
	)

	cmd := &cobra.Command{
		Use:   "merge SOURCE...",
		Short: "Merge OVAL documents, later files taking priority",
		Long: `Merge OVAL documents into one.

Files are given in increasing priority: when two documents define the same
package, the definition from the later file wins along with the tests,
objects, states and variables it references.

The result is written to stdout unless -o is given. The output file is only
created once the merge has succeeded.

Sources may be local files or http(s) URLs; downloads are retried and
cached, and expired entries are revalidated with the server.

Results are cached locally for faster subsequent runs.`,
		Example: `  ovalmerge merge base.xml vendor.xml -o merged.xml
  ovalmerge merge --report --indent 4 *.xml > merged.xml
  ovalmerge merge https://example.com/rhel-9.oval.xml local-fixes.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.mergeOptions()
			flags.apply(cmd, &opts)
			return c.runMerge(cmd.Context(), args, opts, output, flags.noCache, report)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&report, "report", false, "print a per-document report to stderr")
	flags.register(cmd)

	return cmd
}

// runMerge loads the inputs, merges them and writes the result.
func (c *CLI) runMerge(ctx context.Context, paths []string, opts pipeline.Options, output string, noCache, report bool) error {
	prog := newProgress(c.Logger)

	inputs, err := c.loadInputs(ctx, paths, noCache)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	var spinner *Spinner
	if output != "" {
		spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Merging %d documents...", len(inputs)))
		spinner.Start()
	}
	result, err := runner.Execute(ctx, inputs, opts)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	if err := c.writeOutput(output, result.Output); err != nil {
		return err
	}

	if output != "" {
		printSuccess("Merged %d documents", len(inputs))
		printStats(result.Report, result.CacheHit)
		printFile(output)
	}
	if report {
		printReport(result.Report)
	} else if output != "" {
		for _, w := range result.Report.Warnings {
			printWarning("%s", w)
		}
	}
	prog.done(fmt.Sprintf("Merged %d documents", len(inputs)))
	return nil
}

// writeOutput writes data to path, or to stdout when path is empty. Files
// are written to a temporary sibling and renamed, so a failed write never
// leaves a partial document behind.
func (c *CLI) writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := c.out.Write(data)
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
