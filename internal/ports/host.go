package ports

import "context"

// Host is the scripting environment whose live objects the bridge exposes.
// Implementations return domain.ErrRootNotFound when name is unknown.
type Host interface {
	Application(ctx context.Context, name string) (any, error)
}

// Object is a live host value with named properties.
type Object interface {
	Property(ctx context.Context, name string) (any, error)
	SetProperty(ctx context.Context, name string, value any) error
}

// Specifier is a lazy path into the host object graph. Evaluating it may be
// expensive or have side effects; ClassOf and RespondsTo must not evaluate.
type Specifier interface {
	Object
	// ClassOf reports the declared class, or domain.ErrNotSpecifier when the
	// specifier points at a primitive.
	ClassOf(ctx context.Context) (string, error)
	Evaluate(ctx context.Context) (any, error)
	RespondsTo(capability string) bool
}

// Callable is a host function already bound to whatever receiver it needs.
type Callable interface {
	Call(ctx context.Context, args []any, kwargs map[string]any) (any, error)
}

// Method is an unbound host function; the bridge binds it to the object it
// was read from before exposing it.
type Method interface {
	Invoke(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error)
}

// Evaluator is implemented by hosts that can run source snippets.
type Evaluator interface {
	Eval(ctx context.Context, source string, locals map[string]any) (any, error)
}

// Classed lets opaque host objects report a class label.
type Classed interface {
	ClassName() string
}

// Identifiable lets a host value name the key it is interned under, for
// values whose Go identity is not stable (wrapper structs and the like).
type Identifiable interface {
	Identity() any
}
