package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

type Kind string

const (
	KindPlain     Kind = "plain"
	KindDate      Kind = "date"
	KindArray     Kind = "array"
	KindDict      Kind = "dict"
	KindReference Kind = "reference"
	KindError     Kind = "error"

	// Tags used by earlier protocol revisions. Accepted on input only.
	kindLegacyValue     Kind = "value"
	kindLegacyContainer Kind = "container"
)

type ObjectID int64

type Reference struct {
	ObjID     ObjectID
	ClassName string
	// PlainRepr is a JSON-safe snapshot of the referenced value, nil when
	// the reference carries none.
	PlainRepr any
}

// WireValue is the tagged envelope exchanged with the controller. Only the
// field matching Kind is meaningful.
type WireValue struct {
	Kind   Kind
	Data   any
	Date   float64
	Items  []WireValue
	Fields map[string]WireValue
	Ref    Reference
}

func Plain(data any) WireValue {
	return WireValue{Kind: KindPlain, Data: data}
}

func Date(t time.Time) WireValue {
	return WireValue{Kind: KindDate, Date: float64(t.UnixMilli()) / 1000}
}

func Array(items ...WireValue) WireValue {
	if items == nil {
		items = []WireValue{}
	}
	return WireValue{Kind: KindArray, Items: items}
}

func Dict(fields map[string]WireValue) WireValue {
	if fields == nil {
		fields = map[string]WireValue{}
	}
	return WireValue{Kind: KindDict, Fields: fields}
}

func Ref(id ObjectID, className string, plainRepr any) WireValue {
	return WireValue{Kind: KindReference, Ref: Reference{ObjID: id, ClassName: className, PlainRepr: plainRepr}}
}

// Time converts a date payload back to a point in time, millisecond precision.
func (w WireValue) Time() time.Time {
	return time.UnixMilli(int64(math.Round(w.Date * 1000))).UTC()
}

type wireJSON struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	ObjID     *ObjectID       `json:"objId,omitempty"`
	ClassName string          `json:"className,omitempty"`
	PlainRepr json.RawMessage `json:"plainRepr,omitempty"`
}

func (w WireValue) MarshalJSON() ([]byte, error) {
	out := wireJSON{Type: w.Kind}

	var (
		data any
		err  error
	)
	switch w.Kind {
	case KindPlain:
		data = w.Data
	case KindDate:
		data = w.Date
	case KindArray:
		items := w.Items
		if items == nil {
			items = []WireValue{}
		}
		data = items
	case KindDict:
		fields := w.Fields
		if fields == nil {
			fields = map[string]WireValue{}
		}
		data = fields
	case KindReference:
		id := w.Ref.ObjID
		out.ObjID = &id
		out.ClassName = w.Ref.ClassName
		if w.Ref.PlainRepr != nil {
			if out.PlainRepr, err = json.Marshal(w.Ref.PlainRepr); err != nil {
				return nil, fmt.Errorf("encode plain repr: %w", err)
			}
		}
		return json.Marshal(out)
	default:
		return nil, fmt.Errorf("encode wire value: %w: kind %q", ErrUnknownType, w.Kind)
	}

	if out.Data, err = json.Marshal(data); err != nil {
		return nil, fmt.Errorf("encode %s data: %w", w.Kind, err)
	}

	return json.Marshal(out)
}

func (w *WireValue) UnmarshalJSON(raw []byte) error {
	var in wireJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	kind := in.Type
	switch kind {
	case kindLegacyValue:
		kind = KindPlain
	case kindLegacyContainer:
		kind = KindDict
		if first := firstByte(in.Data); first == '[' {
			kind = KindArray
		}
	}

	switch kind {
	case KindPlain:
		data, err := DecodePlain(in.Data)
		if err != nil {
			return err
		}
		*w = Plain(data)
	case KindDate:
		var seconds float64
		if err := json.Unmarshal(in.Data, &seconds); err != nil {
			return fmt.Errorf("%w: date payload: %v", ErrMalformedCommand, err)
		}
		*w = WireValue{Kind: KindDate, Date: seconds}
	case KindArray:
		var items []WireValue
		if err := json.Unmarshal(in.Data, &items); err != nil {
			return fmt.Errorf("%w: array payload: %v", ErrMalformedCommand, err)
		}
		*w = Array(items...)
	case KindDict:
		var fields map[string]WireValue
		if err := json.Unmarshal(in.Data, &fields); err != nil {
			return fmt.Errorf("%w: dict payload: %v", ErrMalformedCommand, err)
		}
		*w = Dict(fields)
	case KindReference:
		if in.ObjID == nil {
			return fmt.Errorf("%w: reference without objId", ErrMalformedCommand)
		}
		repr, err := DecodePlain(in.PlainRepr)
		if err != nil {
			return err
		}
		*w = Ref(*in.ObjID, in.ClassName, repr)
	default:
		return fmt.Errorf("%w: unknown wire type %q", ErrMalformedCommand, in.Type)
	}

	return nil
}

// IsTagged reports whether raw is a JSON object carrying a known wire tag.
func IsTagged(raw json.RawMessage) bool {
	if firstByte(raw) != '{' {
		return false
	}

	var probe struct {
		Type *Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Type == nil {
		return false
	}

	switch *probe.Type {
	case KindPlain, KindDate, KindArray, KindDict, KindReference, kindLegacyValue, kindLegacyContainer:
		return true
	default:
		return false
	}
}

// DecodePlain decodes untagged JSON, keeping integers as int64.
func DecodePlain(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: plain payload: %v", ErrMalformedCommand, err)
	}

	return normalizeNumbers(value), nil
}

func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = normalizeNumbers(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalizeNumbers(v[k])
		}
		return v
	default:
		return value
	}
}

func firstByte(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
