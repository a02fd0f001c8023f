package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// Browser screens.
const (
	screenCategories = iota
	screenRoots
	screenNode
)

type browseModel struct {
	load func() (*models.TreeIndex, error)

	idx      *models.TreeIndex
	screen   int
	cursor   int
	category int
	// trail is the path of visited nodes; the last one is on screen.
	trail  []*models.ConversationNode
	width  int
	height int

	loading bool
	err     error
}

// treeLoadedMsg carries the loaded tree index back to the model.
type treeLoadedMsg struct {
	idx *models.TreeIndex
	err error
}

var (
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	tileStyle   = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func newBrowseModel(load func() (*models.TreeIndex, error)) browseModel {
	return browseModel{load: load, loading: true}
}

func (m browseModel) Init() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		idx, err := load()
		return treeLoadedMsg{idx: idx, err: err}
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc", "backspace", "left", "h":
			if m.screen == screenCategories {
				if msg.String() == "esc" {
					return m, tea.Quit
				}
				return m, nil
			}
			m.back()
			return m, nil
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < m.optionCount()-1 {
				m.cursor++
			}
			return m, nil
		case "enter", "right", "l":
			m.choose()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case treeLoadedMsg:
		m.loading = false
		m.idx = msg.idx
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m *browseModel) tree() *models.ConversationTree {
	return &m.idx.ConversationTrees[m.category]
}

func (m *browseModel) current() *models.ConversationNode {
	return m.trail[len(m.trail)-1]
}

func (m browseModel) optionCount() int {
	if m.idx == nil {
		return 0
	}
	switch m.screen {
	case screenCategories:
		return len(m.idx.ConversationTrees)
	case screenRoots:
		return len(m.tree().RootResponses)
	case screenNode:
		return len(m.current().FollowUps)
	}
	return 0
}

func (m *browseModel) choose() {
	if m.optionCount() == 0 {
		return
	}
	switch m.screen {
	case screenCategories:
		m.category = m.cursor
		m.screen = screenRoots
	case screenRoots:
		node, ok := m.idx.Node(m.tree().RootResponses[m.cursor])
		if !ok {
			return
		}
		m.trail = []*models.ConversationNode{node}
		m.screen = screenNode
	case screenNode:
		node, ok := m.idx.Node(m.current().FollowUps[m.cursor].NextRecordRef)
		if !ok {
			return
		}
		m.trail = append(m.trail, node)
	}
	m.cursor = 0
}

func (m *browseModel) back() {
	switch m.screen {
	case screenRoots:
		m.screen = screenCategories
		m.cursor = m.category
	case screenNode:
		m.trail = m.trail[:len(m.trail)-1]
		if len(m.trail) == 0 {
			m.screen = screenRoots
		}
		m.cursor = 0
	}
}

func (m browseModel) View() string {
	title := titleStyle.Render(" TinkyBink Conversation Browser ")
	help := mutedStyle.Render("↑/↓: move | enter: open | esc: back | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading tree index...\n", title)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	var b strings.Builder
	switch m.screen {
	case screenCategories:
		b.WriteString(headerStyle.Render(fmt.Sprintf("%d categories", len(m.idx.ConversationTrees))))
		b.WriteString("\n\n")
		for i, tree := range m.idx.ConversationTrees {
			b.WriteString(m.option(i, fmt.Sprintf("%s (%d roots)", tree.Category, len(tree.RootResponses))))
		}

	case screenRoots:
		tree := m.tree()
		b.WriteString(headerStyle.Render(tree.Category + " › layer 1"))
		b.WriteString("\n\n")
		for i, id := range tree.RootResponses {
			label := id
			if node, ok := m.idx.Node(id); ok {
				label = node.Record.Input
			}
			b.WriteString(m.option(i, label))
		}

	case screenNode:
		node := m.current()
		crumbs := []string{m.tree().Category}
		for _, n := range m.trail {
			crumbs = append(crumbs, n.Record.Input)
		}
		b.WriteString(headerStyle.Render(strings.Join(crumbs, " › ")))
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  layer %d/%d", node.Layer, models.MaxLayer)))
		b.WriteString("\n\n")

		tiles := make([]string, 0, len(node.Record.AACResponse.Tiles))
		for _, t := range node.Record.AACResponse.Tiles {
			tiles = append(tiles, tileStyle.Render(t.Emoji+" "+t.Words))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("🔊 " + node.Record.AACResponse.SpokenSentence))
		b.WriteString("\n\n")

		if len(node.FollowUps) == 0 {
			b.WriteString(mutedStyle.Render("  No follow-ups from here."))
			b.WriteString("\n")
		}
		for i, f := range node.FollowUps {
			label := f.NextRecordRef
			if next, ok := m.idx.Node(f.NextRecordRef); ok {
				label = next.Record.Input
			}
			b.WriteString(m.option(i, fmt.Sprintf("%s → %s", f.TriggerPhrase, label)))
		}
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, b.String(), help)
}

func (m browseModel) option(i int, label string) string {
	if i == m.cursor {
		return cursorStyle.Render("> "+label) + "\n"
	}
	return "  " + label + "\n"
}

var browseTrees string

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Walk the conversation trees interactively",
	Long: `Open a terminal browser over the tree index: pick a category, then a
first-layer response, then follow any tile's follow-up down to layer 4.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		path := orDefault(browseTrees, treesPath)
		m := newBrowseModel(func() (*models.TreeIndex, error) { return readTreeIndexFile(path) })
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running browser: %w", err)
		}
		return nil
	},
}

func init() {
	browseCmd.Flags().StringVar(&browseTrees, "trees", "", "Tree index to browse (default: the build output)")
	rootCmd.AddCommand(browseCmd)
}
