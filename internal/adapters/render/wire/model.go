package wire

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	response Response
	opts     RenderOptions
	styles   styles
	output   string
}

func newModel(response Response, opts RenderOptions) model {
	return model{
		response: response,
		opts:     opts,
		styles:   newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = renderView(m.response, m.opts, m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

func Render(response Response, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(response, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

// RenderJSON decodes a raw response line and renders it.
func RenderJSON(raw []byte, opts RenderOptions) (string, error) {
	response, err := Decode(raw)
	if err != nil {
		return "", err
	}

	return Render(response, opts)
}
