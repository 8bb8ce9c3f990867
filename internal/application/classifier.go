package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
)

const (
	applicationClass = "application"
	functionClass    = "function"
	objectClass      = "object"

	maxClassifyDepth = 64
)

type ClassifierConfig struct {
	// CollectionCapabilities are the query capabilities a specifier must
	// all respond to before it is treated as a collection.
	CollectionCapabilities []string
	ArrayClassPrefix       string
	SpeculativeEvaluation  bool
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		CollectionCapabilities: []string{"whose", "at"},
		ArrayClassPrefix:       "array::",
		SpeculativeEvaluation:  true,
	}
}

// Category is the classifier's verdict for one host value. Value holds the
// normalized plain data, the time.Time of a date, or the object to pool for
// a reference. Containers expose their members unclassified.
type Category struct {
	Kind      domain.Kind
	Value     any
	Items     []any
	Fields    map[string]any
	ClassName string
	PlainRepr any
}

type classifyRule struct {
	name     string
	classify func(ctx context.Context, c *Classifier, value any, depth int) (Category, bool, error)
}

type Classifier struct {
	cfg   ClassifierConfig
	rules []classifyRule
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.ArrayClassPrefix == "" {
		cfg.ArrayClassPrefix = DefaultClassifierConfig().ArrayClassPrefix
	}

	// Rules run in order; the first match wins.
	return &Classifier{
		cfg: cfg,
		rules: []classifyRule{
			{name: "plain", classify: classifyPlain},
			{name: "date", classify: classifyDate},
			{name: "array", classify: classifyArray},
			{name: "dict", classify: classifyDict},
			{name: "specifier", classify: classifySpecifier},
			{name: "function", classify: classifyFunction},
			{name: "object", classify: classifyObject},
		},
	}
}

func (c *Classifier) Classify(ctx context.Context, value any) (Category, error) {
	return c.classify(ctx, value, 0)
}

func (c *Classifier) classify(ctx context.Context, value any, depth int) (Category, error) {
	if depth > maxClassifyDepth {
		return Category{}, fmt.Errorf("classify %T: evaluation nested deeper than %d: %w", value, maxClassifyDepth, domain.ErrUnknownType)
	}
	if err := ctx.Err(); err != nil {
		return Category{}, err
	}

	for _, rule := range c.rules {
		cat, ok, err := rule.classify(ctx, c, value, depth)
		if err != nil {
			return Category{}, fmt.Errorf("classify %s: %w", rule.name, err)
		}
		if ok {
			return cat, nil
		}
	}

	return Category{}, fmt.Errorf("classify %T: %w", value, domain.ErrUnknownType)
}

// IsCollection reports whether spec exposes every configured collection
// capability. It never evaluates spec.
func (c *Classifier) IsCollection(spec ports.Specifier) bool {
	if len(c.cfg.CollectionCapabilities) == 0 {
		return false
	}
	for _, capability := range c.cfg.CollectionCapabilities {
		if !spec.RespondsTo(capability) {
			return false
		}
	}
	return true
}

func isHostValue(value any) bool {
	switch value.(type) {
	case ports.Object, ports.Callable, ports.Method:
		return true
	default:
		return false
	}
}

func classifyPlain(_ context.Context, _ *Classifier, value any, _ int) (Category, bool, error) {
	if data, ok := plainScalar(value); ok {
		return Category{Kind: domain.KindPlain, Value: data}, true, nil
	}
	return Category{}, false, nil
}

// plainScalar normalizes JSON primitives, including named Go types built on
// them. Typed nils count as null.
func plainScalar(value any) (any, bool) {
	if value == nil {
		return nil, true
	}

	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return finite(f), true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return nil, true
		}
	}
	if isHostValue(value) {
		return nil, false
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float()), true
	default:
		return nil, false
	}
}

// finite maps NaN and infinities to null, which is what JSON can carry.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func classifyDate(_ context.Context, _ *Classifier, value any, _ int) (Category, bool, error) {
	switch v := value.(type) {
	case time.Time:
		return Category{Kind: domain.KindDate, Value: v}, true, nil
	case *time.Time:
		return Category{Kind: domain.KindDate, Value: *v}, true, nil
	default:
		return Category{}, false, nil
	}
}

func classifyArray(_ context.Context, _ *Classifier, value any, _ int) (Category, bool, error) {
	if isHostValue(value) {
		return Category{}, false, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Category{}, false, nil
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	return Category{Kind: domain.KindArray, Items: items}, true, nil
}

func classifyDict(_ context.Context, _ *Classifier, value any, _ int) (Category, bool, error) {
	if isHostValue(value) {
		return Category{}, false, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map {
		return Category{}, false, nil
	}
	if rv.Type().Key().Kind() != reflect.String {
		return Category{}, false, fmt.Errorf("map keyed by %s: %w", rv.Type().Key(), domain.ErrUnknownType)
	}

	fields := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		fields[iter.Key().String()] = iter.Value().Interface()
	}

	return Category{Kind: domain.KindDict, Fields: fields}, true, nil
}

func classifySpecifier(ctx context.Context, c *Classifier, value any, depth int) (Category, bool, error) {
	spec, ok := value.(ports.Specifier)
	if !ok {
		return Category{}, false, nil
	}

	if c.IsCollection(spec) {
		class, err := spec.ClassOf(ctx)
		if err != nil {
			return Category{}, false, domain.NewHostError("class of collection", err)
		}
		return Category{Kind: domain.KindReference, Value: spec, ClassName: c.cfg.ArrayClassPrefix + class}, true, nil
	}

	class, err := spec.ClassOf(ctx)
	if errors.Is(err, domain.ErrNotSpecifier) {
		evaluated, err := spec.Evaluate(ctx)
		if err != nil {
			return Category{}, false, domain.NewHostError("evaluate specifier", err)
		}
		cat, err := c.classify(ctx, evaluated, depth+1)
		return cat, err == nil, err
	}
	if err != nil {
		return Category{}, false, domain.NewHostError("class of specifier", err)
	}

	cat := Category{Kind: domain.KindReference, Value: spec, ClassName: class}
	if class == applicationClass || !c.cfg.SpeculativeEvaluation {
		return cat, true, nil
	}

	// A failed or non-plain evaluation only costs the snapshot.
	if evaluated, err := spec.Evaluate(ctx); err == nil {
		if repr, ok := plainSnapshot(evaluated, 0); ok {
			cat.PlainRepr = repr
		}
	}

	return cat, true, nil
}

func classifyFunction(_ context.Context, _ *Classifier, value any, _ int) (Category, bool, error) {
	switch value.(type) {
	case ports.Callable, ports.Method:
		return Category{Kind: domain.KindReference, Value: value, ClassName: functionClass}, true, nil
	default:
		return Category{}, false, nil
	}
}

func classifyObject(_ context.Context, _ *Classifier, value any, _ int) (Category, bool, error) {
	if _, ok := value.(ports.Object); !ok {
		return Category{}, false, nil
	}

	class := objectClass
	if classed, ok := value.(ports.Classed); ok && classed.ClassName() != "" {
		class = classed.ClassName()
	}

	return Category{Kind: domain.KindReference, Value: value, ClassName: class}, true, nil
}

// plainSnapshot converts value to JSON data when every leaf is a JSON
// primitive. Dates and host objects make the whole value non-plain.
func plainSnapshot(value any, depth int) (any, bool) {
	if depth > maxClassifyDepth {
		return nil, false
	}
	if data, ok := plainScalar(value); ok {
		return data, true
	}
	if isHostValue(value) {
		return nil, false
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			item, ok := plainSnapshot(rv.Index(i).Interface(), depth+1)
			if !ok {
				return nil, false
			}
			items[i] = item
		}
		return items, true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		fields := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			field, ok := plainSnapshot(iter.Value().Interface(), depth+1)
			if !ok {
				return nil, false
			}
			fields[iter.Key().String()] = field
		}
		return fields, true
	default:
		return nil, false
	}
}
