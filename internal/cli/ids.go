package cli

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ovalmerge/pkg/pipeline"
	"github.com/matzehuels/ovalmerge/pkg/regen"
)

// idsCommand creates the ids command, which runs id regeneration alone.
func (c *CLI) idsCommand() *cobra.Command {
	var (
		output    string
		showTable bool
		width     int
	)

	cmd := &cobra.Command{
		Use:   "ids FILE",
		Short: "Rewrite the ids of one document as a merge would",
		Long: `Rewrite every "oval:" id of a single document with a unique numeric
suffix, exactly as the first stage of a merge does, and print the result.

This is a debugging aid for feeds whose merge fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := pipeline.LoadFile(args[0])
			if err != nil {
				return err
			}
			opts := c.mergeOptions()
			if cmd.Flags().Changed("width") {
				opts.Width = width
			}

			res, err := pipeline.NewRunner(nil, nil, c.Logger).Regenerate(cmd.Context(), in, opts)
			if err != nil {
				return fmt.Errorf("regenerate: %w", err)
			}
			for _, w := range res.Warnings {
				printWarning("%s", w)
			}
			if showTable {
				printIDTable(res.Table)
			}
			if err := c.writeOutput(output, []byte(res.Text)); err != nil {
				return err
			}
			if output != "" {
				printSuccess("Rewrote %d ids", len(res.Table))
				printFile(output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&showTable, "table", false, "print the old → new id table to stderr")
	cmd.Flags().IntVar(&width, "width", 0, "zero-padded width of the numeric suffix (default 16)")

	return cmd
}

func printIDTable(t regen.Table) {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	rows := make([][]string, len(ids))
	for i, id := range ids {
		rows[i] = []string{id, t[id]}
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Original", "Regenerated").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			return StyleValue
		})
	fmt.Fprintln(uiOut, tbl.Render())
}
