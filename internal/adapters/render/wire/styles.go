package wire

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	branch    lipgloss.Style
	key       lipgloss.Style
	kind      lipgloss.Style
	plain     lipgloss.Style
	date      lipgloss.Style
	reference lipgloss.Style
	class     lipgloss.Style
	snapshot  lipgloss.Style
	errorCode lipgloss.Style
	detail    lipgloss.Style
	empty     lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		branch:    lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		key:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		kind:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		plain:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		date:      lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		reference: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		class:     lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		snapshot:  lipgloss.NewStyle().Faint(true),
		errorCode: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		detail:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		empty:     lipgloss.NewStyle().Faint(true),
	}
}
