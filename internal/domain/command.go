package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type CommandName string

const (
	CommandAcquireRoot    CommandName = "acquireRoot"
	CommandGetProperties  CommandName = "getProperties"
	CommandSetProperties  CommandName = "setProperties"
	CommandInvokeMethod   CommandName = "invokeMethod"
	CommandInvokeCallable CommandName = "invokeCallable"
	CommandRelease        CommandName = "release"
	CommandEvalSnippet    CommandName = "evalSnippet"
)

var commandAliases = map[string]CommandName{
	"getApplication":      CommandAcquireRoot,
	"setPropertyValues":   CommandSetProperties,
	"callMethod":          CommandInvokeMethod,
	"runMethod":           CommandInvokeMethod,
	"callSelf":            CommandInvokeCallable,
	"releaseObject":       CommandRelease,
	"releaseObjectWithId": CommandRelease,
	"evalCodeSnippet":     CommandEvalSnippet,
	"evalJXACodeSnippet":  CommandEvalSnippet,
}

// Canonical maps revision-specific names onto the current operation set.
func (n CommandName) Canonical() CommandName {
	if alias, ok := commandAliases[string(n)]; ok {
		return alias
	}
	return n
}

type Command struct {
	Name   CommandName     `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

func ParseCommand(input []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(input, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if strings.TrimSpace(string(cmd.Name)) == "" {
		return Command{}, fmt.Errorf("%w: name is required", ErrMalformedCommand)
	}

	return cmd, nil
}

type ErrorResponse struct {
	Type     Kind        `json:"type"`
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Command  CommandName `json:"command,omitempty"`
	HostCode *int        `json:"hostCode,omitempty"`
}

func NewErrorResponse(command CommandName, err error) ErrorResponse {
	resp := ErrorResponse{
		Type:    KindError,
		Code:    CodeOf(err),
		Message: err.Error(),
		Command: command,
	}

	var hostErr *HostError
	if errors.As(err, &hostErr) && hostErr.HasCode {
		code := hostErr.Code
		resp.HostCode = &code
	}

	return resp
}
