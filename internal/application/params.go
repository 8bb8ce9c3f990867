package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bnema/osabridge/internal/domain"
)

// commandParams holds decoded but not yet unwrapped parameters, so each
// operation resolves only the references it actually uses.
type commandParams map[string]domain.WireValue

func decodeParams(raw json.RawMessage) (commandParams, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return commandParams{}, nil
	}

	value, err := decodeLoose(trimmed)
	if err != nil {
		return nil, err
	}

	return paramsFromWire(value)
}

func paramsFromWire(value domain.WireValue) (commandParams, error) {
	switch value.Kind {
	case domain.KindDict:
		return commandParams(value.Fields), nil
	case domain.KindPlain:
		if value.Data == nil {
			return commandParams{}, nil
		}
	}

	return nil, fmt.Errorf("%w: params must be a dict, got %s", domain.ErrMalformedCommand, value.Kind)
}

// decodeLoose accepts tagged wire values as well as bare JSON, in which
// tagged values may appear at any depth.
func decodeLoose(raw json.RawMessage) (domain.WireValue, error) {
	if domain.IsTagged(raw) {
		var value domain.WireValue
		if err := json.Unmarshal(raw, &value); err != nil {
			return domain.WireValue{}, err
		}
		return value, nil
	}

	switch firstNonSpace(raw) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return domain.WireValue{}, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
		}
		out := make([]domain.WireValue, len(items))
		for i, item := range items {
			decoded, err := decodeLoose(item)
			if err != nil {
				return domain.WireValue{}, err
			}
			out[i] = decoded
		}
		return domain.Array(out...), nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return domain.WireValue{}, fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
		}
		out := make(map[string]domain.WireValue, len(fields))
		for key, field := range fields {
			decoded, err := decodeLoose(field)
			if err != nil {
				return domain.WireValue{}, err
			}
			out[key] = decoded
		}
		return domain.Dict(out), nil
	default:
		data, err := domain.DecodePlain(raw)
		if err != nil {
			return domain.WireValue{}, err
		}
		return domain.Plain(data), nil
	}
}

func firstNonSpace(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func (p commandParams) lookup(keys ...string) (domain.WireValue, string, bool) {
	for _, key := range keys {
		if value, ok := p[key]; ok {
			return value, key, true
		}
	}
	return domain.WireValue{}, "", false
}

func (p commandParams) stringParam(keys ...string) (string, error) {
	value, key, ok := p.lookup(keys...)
	if !ok {
		return "", fmt.Errorf("%w: %s is required", domain.ErrMalformedCommand, strings.Join(keys, " or "))
	}

	s, ok := value.Data.(string)
	if value.Kind != domain.KindPlain || !ok {
		return "", fmt.Errorf("%w: %s must be a string", domain.ErrMalformedCommand, key)
	}

	return s, nil
}

func (p commandParams) stringsParam(keys ...string) ([]string, error) {
	value, key, ok := p.lookup(keys...)
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", domain.ErrMalformedCommand, strings.Join(keys, " or "))
	}

	if value.Kind == domain.KindPlain {
		if s, ok := value.Data.(string); ok {
			return []string{s}, nil
		}
		if items, ok := value.Data.([]any); ok {
			return plainStrings(key, items)
		}
	}
	if value.Kind != domain.KindArray {
		return nil, fmt.Errorf("%w: %s must be a list of strings", domain.ErrMalformedCommand, key)
	}

	out := make([]string, 0, len(value.Items))
	for _, item := range value.Items {
		s, ok := item.Data.(string)
		if item.Kind != domain.KindPlain || !ok {
			return nil, fmt.Errorf("%w: %s must be a list of strings", domain.ErrMalformedCommand, key)
		}
		out = append(out, s)
	}

	return out, nil
}

func plainStrings(key string, items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a list of strings", domain.ErrMalformedCommand, key)
		}
		out = append(out, s)
	}
	return out, nil
}

// objectID reads a target id given either as an integer or as a reference.
func (p commandParams) objectID(keys ...string) (domain.ObjectID, error) {
	value, key, ok := p.lookup(keys...)
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrMalformedCommand, strings.Join(keys, " or "))
	}

	switch value.Kind {
	case domain.KindReference:
		return value.Ref.ObjID, nil
	case domain.KindPlain:
		if id, ok := integral(value.Data); ok {
			return domain.ObjectID(id), nil
		}
	}

	return 0, fmt.Errorf("%w: %s must be an object id or reference", domain.ErrMalformedCommand, key)
}

func integral(data any) (int64, bool) {
	switch v := data.(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	}
	return 0, false
}
