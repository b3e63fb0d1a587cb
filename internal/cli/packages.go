package cli

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ovalmerge/pkg/merge"
	"github.com/matzehuels/ovalmerge/pkg/oval"
	"github.com/matzehuels/ovalmerge/pkg/pipeline"
)

// packageRow is one surviving package as shown by "packages".
type packageRow struct {
	Key      string
	Document string
	ID       string
	Counts   merge.Counts
}

func packageRows(m *merge.Merger) []packageRow {
	entries := m.Entries()
	rows := make([]packageRow, len(entries))
	for i, e := range entries {
		rows[i] = packageRow{
			Key:      e.Key,
			Document: e.Doc.Name(),
			ID:       e.ID(),
			Counts: merge.Counts{
				Definitions: e.Closure.Count(oval.Definition),
				Tests:       e.Closure.Count(oval.Test),
				Objects:     e.Closure.Count(oval.Object),
				States:      e.Closure.Count(oval.State),
				Variables:   e.Closure.Count(oval.Variable),
			},
		}
	}
	return rows
}

// packagesCommand creates the packages command.
func (c *CLI) packagesCommand() *cobra.Command {
	var (
		flags       mergeFlags
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "packages SOURCE...",
		Short: "List surviving packages and the documents that own them",
		Long: `Merge the given documents and list every package in the result, in the
order it was first seen, with the document whose definition won and the
size of that definition's closure.

Use -i to browse the list interactively.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := c.loadInputs(cmd.Context(), args, false)
			if err != nil {
				return err
			}
			opts := c.mergeOptions()
			flags.apply(cmd, &opts)

			// The package table is only available from a fresh run.
			result, err := pipeline.NewRunner(nil, nil, c.Logger).Merge(cmd.Context(), inputs, opts)
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			rows := packageRows(result.Merger)

			if interactive {
				_, err := tea.NewProgram(NewPackageListModel(rows), tea.WithContext(cmd.Context())).Run()
				return err
			}
			fmt.Fprintln(c.out, renderPackageTable(rows))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse packages interactively")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "parallel id rewrite workers (default: one per CPU)")

	return cmd
}

func renderPackageTable(rows []packageRow) string {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{
			r.Key,
			r.Document,
			r.ID,
			strconv.Itoa(r.Counts.Tests),
			strconv.Itoa(r.Counts.Objects),
			strconv.Itoa(r.Counts.States),
			strconv.Itoa(r.Counts.Variables),
		}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Package", "Document", "Definition", "Tests", "Objects", "States", "Variables").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col >= 3 {
				return StyleNumber.Align(lipgloss.Right)
			}
			return StyleValue
		}).
		Render()
}
