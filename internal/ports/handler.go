package ports

import "context"

// CommandHandler answers one JSON command with one JSON response.
type CommandHandler interface {
	Call(ctx context.Context, input string) string
}
