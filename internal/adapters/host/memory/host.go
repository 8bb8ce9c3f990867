package memory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
)

const (
	applicationClass = "application"

	capabilityWhose = "whose"
	capabilityAt    = "at"
)

// Error numbers follow the Apple event manager where one applies.
const (
	errNotRunning   = -600
	errInvalidIndex = -1719
	errCantGet      = -1728
	errBadArgument  = -1703
)

type ScriptError struct {
	Number  int
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Number)
}

func (e *ScriptError) HostCode() int {
	return e.Number
}

// Host is an in-memory object graph addressed through lazy specifiers.
type Host struct {
	mu          sync.RWMutex
	apps        map[string]*Node
	evaluations atomic.Int64
}

var (
	_ ports.Host         = (*Host)(nil)
	_ ports.Specifier    = (*Specifier)(nil)
	_ ports.Identifiable = (*Specifier)(nil)
	_ ports.Method       = (*method)(nil)
	_ ports.Method       = collectionMethod("")
)

func NewHost() *Host {
	return &Host{apps: make(map[string]*Node)}
}

func (h *Host) Register(name string, app *Node) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.apps[name] = app
	return h
}

// Evaluations counts how many times any specifier was forced.
func (h *Host) Evaluations() int64 {
	return h.evaluations.Load()
}

func (h *Host) Application(ctx context.Context, name string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	_, ok := h.apps[name]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("application %q: %w", name, domain.ErrRootNotFound)
	}

	return &Specifier{host: h, app: name, key: fmt.Sprintf("Application(%q)", name)}, nil
}

type stepKind int

const (
	stepProperty stepKind = iota
	stepIndex
	stepFilter
)

type step struct {
	kind   stepKind
	name   string
	index  int
	filter map[string]any
}

// Specifier is a path from an application root. Nothing is looked up until
// the specifier is used.
type Specifier struct {
	host       *Host
	app        string
	path       []step
	collection bool
	key        string
}

func (s *Specifier) String() string {
	return s.key
}

func (s *Specifier) Identity() any {
	return s.key
}

func (s *Specifier) child(st step, collection bool) *Specifier {
	path := make([]step, len(s.path), len(s.path)+1)
	copy(path, s.path)
	path = append(path, st)

	var suffix string
	switch st.kind {
	case stepProperty:
		suffix = "." + st.name
	case stepIndex:
		suffix = fmt.Sprintf("[%d]", st.index)
	case stepFilter:
		suffix = fmt.Sprintf(".whose(%v)", st.filter)
	}

	return &Specifier{
		host:       s.host,
		app:        s.app,
		path:       path,
		collection: collection,
		key:        s.key + suffix,
	}
}

type resolved struct {
	node         *Node
	value        any
	isCollection bool
	elementClass string
	items        []*Node
}

func (h *Host) resolve(s *Specifier) (resolved, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.resolveLocked(s)
}

func (h *Host) resolveLocked(s *Specifier) (resolved, error) {
	root, ok := h.apps[s.app]
	if !ok {
		return resolved{}, &ScriptError{Number: errNotRunning, Message: fmt.Sprintf("application %q isn't running", s.app)}
	}

	cur := resolved{node: root}
	for _, st := range s.path {
		switch st.kind {
		case stepProperty:
			if cur.node == nil {
				return resolved{}, cantGet(s)
			}
			if coll, ok := cur.node.collections[st.name]; ok {
				cur = resolved{isCollection: true, elementClass: coll.elementClass, items: coll.items}
				continue
			}
			value, ok := cur.node.properties[st.name]
			if !ok {
				return resolved{}, cantGet(s)
			}
			if child, ok := value.(*Node); ok {
				cur = resolved{node: child}
			} else {
				cur = resolved{value: value}
			}
		case stepIndex:
			if !cur.isCollection {
				return resolved{}, cantGet(s)
			}
			index := st.index
			if index < 0 {
				index += len(cur.items)
			}
			if index < 0 || index >= len(cur.items) {
				return resolved{}, &ScriptError{Number: errInvalidIndex, Message: fmt.Sprintf("invalid index: %s", s.key)}
			}
			cur = resolved{node: cur.items[index]}
		case stepFilter:
			if !cur.isCollection {
				return resolved{}, cantGet(s)
			}
			var items []*Node
			for _, item := range cur.items {
				if item.matches(st.filter) {
					items = append(items, item)
				}
			}
			cur = resolved{isCollection: true, elementClass: cur.elementClass, items: items}
		}
	}

	return cur, nil
}

func cantGet(s *Specifier) error {
	return &ScriptError{Number: errCantGet, Message: fmt.Sprintf("can't get %s", s.key)}
}

func (s *Specifier) ClassOf(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cur, err := s.host.resolve(s)
	if err != nil {
		return "", err
	}

	switch {
	case cur.isCollection:
		return cur.elementClass, nil
	case cur.node != nil:
		return cur.node.class, nil
	default:
		return "", fmt.Errorf("%s: %w", s.key, domain.ErrNotSpecifier)
	}
}

func (s *Specifier) RespondsTo(capability string) bool {
	if !s.collection {
		return false
	}
	return capability == capabilityWhose || capability == capabilityAt
}

func (s *Specifier) Evaluate(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.host.evaluations.Add(1)

	cur, err := s.host.resolve(s)
	if err != nil {
		return nil, err
	}

	switch {
	case cur.isCollection:
		items := make([]any, len(cur.items))
		for i := range cur.items {
			items[i] = s.child(step{kind: stepIndex, index: i}, false)
		}
		return items, nil
	case cur.node != nil:
		if cur.node.value != nil {
			return cur.node.value, nil
		}
		return s, nil
	default:
		return cur.value, nil
	}
}

// Property returns a specifier for name, or the method of that name. Unknown
// names read as nil.
func (s *Specifier) Property(ctx context.Context, name string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.host.mu.RLock()
	defer s.host.mu.RUnlock()

	cur, err := s.host.resolveLocked(s)
	if err != nil {
		return nil, err
	}

	if cur.isCollection {
		switch name {
		case "length":
			return int64(len(cur.items)), nil
		case capabilityAt, capabilityWhose:
			return collectionMethod(name), nil
		default:
			return nil, nil
		}
	}
	if cur.node == nil {
		return nil, nil
	}

	if m, ok := cur.node.methods[name]; ok {
		return m, nil
	}
	if _, ok := cur.node.collections[name]; ok {
		return s.child(step{kind: stepProperty, name: name}, true), nil
	}
	if _, ok := cur.node.properties[name]; ok {
		return s.child(step{kind: stepProperty, name: name}, false), nil
	}

	return nil, nil
}

func (s *Specifier) SetProperty(ctx context.Context, name string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.host.mu.Lock()
	defer s.host.mu.Unlock()

	cur, err := s.host.resolveLocked(s)
	if err != nil {
		return err
	}
	if cur.node == nil {
		return fmt.Errorf("set %s.%s: %w", s.key, name, domain.ErrPropertyNotWritable)
	}

	node := cur.node
	_, isCollection := node.collections[name]
	_, isMethod := node.methods[name]
	if node.readOnly[name] || isCollection || isMethod {
		return fmt.Errorf("set %s.%s: %w", s.key, name, domain.ErrPropertyNotWritable)
	}

	if spec, ok := value.(*Specifier); ok && spec.host == s.host {
		target, err := s.host.resolveLocked(spec)
		if err != nil {
			return err
		}
		switch {
		case target.node != nil:
			value = target.node
		case target.isCollection:
			return &ScriptError{Number: errBadArgument, Message: fmt.Sprintf("can't assign collection %s", spec.key)}
		default:
			value = target.value
		}
	}
	node.properties[name] = value

	return nil
}

// Invoke runs the method with the host write lock held, so method bodies
// may change their node but must not call back into the host.
func (m *method) Invoke(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	self, ok := receiver.(*Specifier)
	if !ok {
		return nil, &ScriptError{Number: errBadArgument, Message: fmt.Sprintf("%s: unsupported receiver %T", m.name, receiver)}
	}

	self.host.mu.Lock()
	defer self.host.mu.Unlock()

	cur, err := self.host.resolveLocked(self)
	if err != nil {
		return nil, err
	}
	if cur.node == nil {
		return nil, cantGet(self)
	}
	return m.fn(ctx, cur.node, args, kwargs)
}

// collectionMethod is one of the query methods every collection specifier
// exposes.
type collectionMethod string

func (m collectionMethod) Invoke(ctx context.Context, receiver any, args []any, _ map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec, ok := receiver.(*Specifier)
	if !ok || !spec.collection {
		return nil, &ScriptError{Number: errBadArgument, Message: fmt.Sprintf("%s needs a collection receiver", m)}
	}
	if len(args) != 1 {
		return nil, &ScriptError{Number: errBadArgument, Message: fmt.Sprintf("%s takes one argument, got %d", m, len(args))}
	}

	switch string(m) {
	case capabilityAt:
		index, ok := indexArg(args[0])
		if !ok {
			return nil, &ScriptError{Number: errBadArgument, Message: fmt.Sprintf("at: index must be an integer, got %T", args[0])}
		}
		return spec.child(step{kind: stepIndex, index: index}, false), nil
	case capabilityWhose:
		filter, ok := args[0].(map[string]any)
		if !ok {
			return nil, &ScriptError{Number: errBadArgument, Message: fmt.Sprintf("whose: filter must be a dict, got %T", args[0])}
		}
		return spec.child(step{kind: stepFilter, filter: filter}, true), nil
	default:
		return nil, &ScriptError{Number: errBadArgument, Message: "unknown collection method " + strings.TrimSpace(string(m))}
	}
}

func indexArg(arg any) (int, bool) {
	switch v := arg.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}
