package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProtocolItem is one protocol entry in the browse list.
type ProtocolItem struct {
	Name       string
	PhaseCount int
	Desc       string
}

func (i ProtocolItem) Title() string { return i.Name }

func (i ProtocolItem) Description() string {
	if i.Desc == "" {
		return fmt.Sprintf("%d phases", i.PhaseCount)
	}
	return fmt.Sprintf("%d phases · %s", i.PhaseCount, i.Desc)
}

func (i ProtocolItem) FilterValue() string { return i.Name }

// BrowseModel is an interactive protocol picker. Enter selects, q quits.
type BrowseModel struct {
	list     list.Model
	selected string
	quitting bool
}

// NewBrowseModel builds the picker from the given items.
func NewBrowseModel(items []ProtocolItem) BrowseModel {
	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = item
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(ColorPrimary).BorderForeground(ColorPrimary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(ColorMuted).BorderForeground(ColorPrimary)

	l := list.New(listItems, delegate, 0, 0)
	l.Title = "Protocols"
	l.Styles.Title = TitleStyle
	l.SetShowStatusBar(false)

	return BrowseModel{list: l}
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := lipgloss.NewStyle().Margin(1, 2).GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
		return m, nil

	case tea.KeyMsg:
		// Don't intercept keys while the user is filtering.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(ProtocolItem); ok {
				m.selected = item.Name
			}
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m BrowseModel) View() string {
	if m.quitting {
		return ""
	}
	return lipgloss.NewStyle().Margin(1, 2).Render(m.list.View())
}

// Selected returns the protocol chosen with enter, or "" if none.
func (m BrowseModel) Selected() string {
	return m.selected
}
