package memory

import (
	"context"
	"fmt"
	"time"
)

// Demo returns a host with a small Finder-like application, used by
// `osab serve` when no other host is configured.
func Demo() *Host {
	home := NewNode("folder").
		WithReadOnly("name", "home").
		WithReadOnly("path", "/Users/demo")

	windows := []*Node{
		NewNode("window").With("name", "Documents").With("index", int64(1)).With("visible", true).With("target", home),
		NewNode("window").With("name", "Downloads").With("index", int64(2)).With("visible", false),
	}

	finder := NewApplication("Finder").
		WithReadOnly("version", "15.1").
		With("frontmost", false).
		With("home", home).
		With("selection", NewNode("text").WithValue("README.md")).
		With("desktopBounds", map[string]any{"x": int64(0), "y": int64(0), "width": int64(1512), "height": int64(982)}).
		With("startupDate", time.Date(2026, 1, 2, 8, 30, 0, 0, time.UTC)).
		WithElements("windows", "window", windows...).
		WithMethod("activate", func(_ context.Context, self *Node, _ []any, _ map[string]any) (any, error) {
			self.properties["frontmost"] = true
			return nil, nil
		}).
		WithMethod("reveal", func(_ context.Context, _ *Node, args []any, kwargs map[string]any) (any, error) {
			if len(args) == 0 {
				return nil, &ScriptError{Number: errBadArgument, Message: "reveal: missing item"}
			}
			return map[string]any{"revealed": fmt.Sprint(args[0]), "options": kwargs}, nil
		})

	return NewHost().Register("Finder", finder)
}
