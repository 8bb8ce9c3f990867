package wire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	// Location formats dates; UTC when nil.
	Location *time.Location
}

// Response is one decoded bridge reply: a wire value or an error.
type Response struct {
	Value *domain.WireValue
	Error *domain.ErrorResponse
}

func Decode(raw []byte) (Response, error) {
	var head struct {
		Type domain.Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	if head.Type == domain.KindError {
		var resp domain.ErrorResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return Response{}, fmt.Errorf("decode error response: %w", err)
		}
		return Response{Error: &resp}, nil
	}

	var value domain.WireValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return Response{}, fmt.Errorf("decode wire value: %w", err)
	}

	return Response{Value: &value}, nil
}

func renderView(resp Response, opts RenderOptions, s styles) string {
	switch {
	case resp.Error != nil:
		return renderError(*resp.Error, s)
	case resp.Value != nil:
		lines := []string{s.title.Render("Bridge response")}
		lines = append(lines, renderTree(*resp.Value, opts, s)...)
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	default:
		return s.empty.Render("No response.")
	}
}

func renderError(resp domain.ErrorResponse, s styles) string {
	lines := []string{
		s.errorCode.Render(fmt.Sprintf("error %s", resp.Code)),
		s.detail.Render(resp.Message),
	}
	if resp.Command != "" {
		lines = append(lines, s.header.Render(fmt.Sprintf("command: %s", resp.Command)))
	}
	if resp.HostCode != nil {
		lines = append(lines, s.header.Render(fmt.Sprintf("host code: %d", *resp.HostCode)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTree(value domain.WireValue, opts RenderOptions, s styles) []string {
	lines := []string{nodeLabel(value, opts, s)}
	appendChildren(&lines, value, "", opts, s)
	return lines
}

func appendChildren(lines *[]string, value domain.WireValue, indent string, opts RenderOptions, s styles) {
	keys, children := childrenOf(value)
	for i, child := range children {
		last := i == len(children)-1
		connector, nextIndent := "├─ ", indent+"│  "
		if last {
			connector, nextIndent = "└─ ", indent+"   "
		}

		line := s.branch.Render(indent+connector) + s.key.Render(keys[i]+":") + " " + nodeLabel(child, opts, s)
		*lines = append(*lines, line)
		appendChildren(lines, child, nextIndent, opts, s)
	}
}

func childrenOf(value domain.WireValue) ([]string, []domain.WireValue) {
	switch value.Kind {
	case domain.KindArray:
		keys := make([]string, len(value.Items))
		for i := range value.Items {
			keys[i] = fmt.Sprintf("[%d]", i)
		}
		return keys, value.Items
	case domain.KindDict:
		keys := make([]string, 0, len(value.Fields))
		for key := range value.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		children := make([]domain.WireValue, len(keys))
		for i, key := range keys {
			children[i] = value.Fields[key]
		}
		return keys, children
	default:
		return nil, nil
	}
}

func nodeLabel(value domain.WireValue, opts RenderOptions, s styles) string {
	switch value.Kind {
	case domain.KindPlain:
		return s.plain.Render(formatPlain(value.Data))
	case domain.KindDate:
		loc := opts.Location
		if loc == nil {
			loc = time.UTC
		}
		return s.kind.Render("date ") + s.date.Render(value.Time().In(loc).Format(time.RFC3339))
	case domain.KindArray:
		return s.kind.Render(fmt.Sprintf("array[%d]", len(value.Items)))
	case domain.KindDict:
		return s.kind.Render(fmt.Sprintf("dict{%d}", len(value.Fields)))
	case domain.KindReference:
		parts := []string{
			s.reference.Render(fmt.Sprintf("#%d", value.Ref.ObjID)),
			s.class.Render(value.Ref.ClassName),
		}
		if value.Ref.PlainRepr != nil {
			parts = append(parts, s.snapshot.Render("= "+formatPlain(value.Ref.PlainRepr)))
		}
		return strings.Join(parts, " ")
	default:
		return s.empty.Render(string(value.Kind))
	}
}

func formatPlain(data any) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprint(data)
	}
	return string(encoded)
}
