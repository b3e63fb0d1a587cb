package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// PackageListModel - Interactive package browser
// =============================================================================

// PackageListModel is the bubbletea model behind "packages -i". Enter
// toggles the closure detail of the package under the cursor.
type PackageListModel struct {
	Rows     []packageRow
	Cursor   int
	Height   int
	Offset   int
	Expanded bool
	Filter   string
	filtered []int
	typing   bool
}

// NewPackageListModel creates a new package list model.
func NewPackageListModel(rows []packageRow) PackageListModel {
	m := PackageListModel{Rows: rows, Height: 15}
	m.applyFilter()
	return m
}

func (m *PackageListModel) applyFilter() {
	m.filtered = nil
	needle := strings.ToLower(m.Filter)
	for i, r := range m.Rows {
		if needle == "" || strings.Contains(strings.ToLower(r.Key), needle) {
			m.filtered = append(m.filtered, i)
		}
	}
	m.Cursor = 0
	m.Offset = 0
}

// Current returns the row under the cursor.
func (m PackageListModel) Current() (packageRow, bool) {
	if len(m.filtered) == 0 {
		return packageRow{}, false
	}
	return m.Rows[m.filtered[m.Cursor]], true
}

func (m PackageListModel) Init() tea.Cmd {
	return nil
}

func (m PackageListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.typing {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "/":
			m.typing = true
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.filtered)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			m.Expanded = !m.Expanded
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 10
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m PackageListModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter, tea.KeyEsc:
		m.typing = false
	case tea.KeyBackspace:
		if m.Filter != "" {
			m.Filter = m.Filter[:len(m.Filter)-1]
			m.applyFilter()
		}
	case tea.KeyRunes:
		m.Filter += string(msg.Runes)
		m.applyFilter()
	}
	return m, nil
}

func (m PackageListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Packages"))
	b.WriteString("\n")
	if m.typing || m.Filter != "" {
		b.WriteString(listDimStyle.Render("filter: ") + StyleValue.Render(m.Filter))
	} else {
		b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  / filter  q quit"))
	}
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.filtered))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Rows[m.filtered[i]]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, r.Key, r.Document, fmt.Sprintf("%d", r.Counts.Total())})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Document", "Closure").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.filtered)), len(m.filtered))))

	if r, ok := m.Current(); ok && m.Expanded {
		b.WriteString("\n\n")
		b.WriteString(StyleValue.Render(r.ID))
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render(fmt.Sprintf(
			"  %d definitions  %d tests  %d objects  %d states  %d variables",
			r.Counts.Definitions, r.Counts.Tests, r.Counts.Objects, r.Counts.States, r.Counts.Variables)))
	}
	return b.String()
}
