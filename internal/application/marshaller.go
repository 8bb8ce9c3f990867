package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
)

// Marshaller converts between host values and wire values, pooling every
// host object that cannot travel as data.
type Marshaller struct {
	pool       *ObjectPool
	classifier *Classifier
}

func NewMarshaller(pool *ObjectPool, classifier *Classifier) *Marshaller {
	return &Marshaller{pool: pool, classifier: classifier}
}

func (m *Marshaller) Pool() *ObjectPool {
	return m.pool
}

// Wrap encodes value. On failure every id allocated during this call is
// released again so the pool is left as it was.
func (m *Marshaller) Wrap(ctx context.Context, value any) (domain.WireValue, error) {
	w := &wrapPass{m: m}

	out, err := w.wrap(ctx, value, 0)
	if err != nil {
		for _, id := range w.created {
			_ = m.pool.Release(id)
		}
		return domain.WireValue{}, err
	}

	return out, nil
}

type wrapPass struct {
	m       *Marshaller
	created []domain.ObjectID
}

func (w *wrapPass) wrap(ctx context.Context, value any, depth int) (domain.WireValue, error) {
	if depth > maxClassifyDepth {
		return domain.WireValue{}, fmt.Errorf("wrap %T: nested deeper than %d: %w", value, maxClassifyDepth, domain.ErrUnknownType)
	}

	cat, err := w.m.classifier.Classify(ctx, value)
	if err != nil {
		return domain.WireValue{}, err
	}

	switch cat.Kind {
	case domain.KindPlain:
		return domain.Plain(cat.Value), nil
	case domain.KindDate:
		return domain.Date(cat.Value.(time.Time)), nil
	case domain.KindArray:
		items := make([]domain.WireValue, len(cat.Items))
		for i, item := range cat.Items {
			wrapped, err := w.wrap(ctx, item, depth+1)
			if err != nil {
				return domain.WireValue{}, fmt.Errorf("wrap item %d: %w", i, err)
			}
			items[i] = wrapped
		}
		return domain.Array(items...), nil
	case domain.KindDict:
		// Sorted so pool ids are assigned deterministically.
		keys := make([]string, 0, len(cat.Fields))
		for key := range cat.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fields := make(map[string]domain.WireValue, len(cat.Fields))
		for _, key := range keys {
			wrapped, err := w.wrap(ctx, cat.Fields[key], depth+1)
			if err != nil {
				return domain.WireValue{}, fmt.Errorf("wrap field %q: %w", key, err)
			}
			fields[key] = wrapped
		}
		return domain.Dict(fields), nil
	case domain.KindReference:
		id, created, err := w.m.pool.intern(cat.Value, cat.ClassName)
		if err != nil {
			return domain.WireValue{}, err
		}
		if created {
			w.created = append(w.created, id)
		}
		return domain.Ref(id, cat.ClassName, cat.PlainRepr), nil
	default:
		return domain.WireValue{}, fmt.Errorf("wrap %T: %w", value, domain.ErrUnknownType)
	}
}

// Unwrap decodes a wire value into host data, resolving references through
// the pool.
func (m *Marshaller) Unwrap(value domain.WireValue) (any, error) {
	switch value.Kind {
	case domain.KindPlain:
		return value.Data, nil
	case domain.KindDate:
		return value.Time(), nil
	case domain.KindArray:
		items := make([]any, len(value.Items))
		for i, item := range value.Items {
			unwrapped, err := m.Unwrap(item)
			if err != nil {
				return nil, fmt.Errorf("unwrap item %d: %w", i, err)
			}
			items[i] = unwrapped
		}
		return items, nil
	case domain.KindDict:
		fields := make(map[string]any, len(value.Fields))
		for key, field := range value.Fields {
			unwrapped, err := m.Unwrap(field)
			if err != nil {
				return nil, fmt.Errorf("unwrap field %q: %w", key, err)
			}
			fields[key] = unwrapped
		}
		return fields, nil
	case domain.KindReference:
		return m.pool.Resolve(value.Ref.ObjID)
	default:
		return nil, fmt.Errorf("unwrap %q: %w", value.Kind, domain.ErrMalformedCommand)
	}
}

// BoundMethod is a method read off an object, fixed to that object so the
// controller can invoke it later through its pooled id.
type BoundMethod struct {
	Name     string
	Receiver any
	Method   ports.Method
	key      any
}

var _ ports.Callable = (*BoundMethod)(nil)
var _ ports.Identifiable = (*BoundMethod)(nil)

type boundKey struct {
	receiver any
	method   any
	name     string
}

func BindMethod(name string, receiver any, method ports.Method) *BoundMethod {
	bound := &BoundMethod{Name: name, Receiver: receiver, Method: method}

	receiverKey, rerr := identityKey(receiver)
	methodKey, merr := identityKey(method)
	if rerr == nil && merr == nil {
		bound.key = boundKey{receiver: receiverKey, method: methodKey, name: name}
	} else {
		bound.key = bound
	}

	return bound
}

func (b *BoundMethod) Call(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return b.Method.Invoke(ctx, b.Receiver, args, kwargs)
}

// Identity makes repeated reads of the same method on the same receiver
// share one pooled id.
func (b *BoundMethod) Identity() any {
	return b.key
}
