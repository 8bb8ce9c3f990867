package memory

import (
	"context"
	"fmt"
)

// MethodFunc implements a node method. self is the node the method was
// read from.
type MethodFunc func(ctx context.Context, self *Node, args []any, kwargs map[string]any) (any, error)

type method struct {
	name string
	fn   MethodFunc
}

type collection struct {
	elementClass string
	items        []*Node
}

// Node is one live object in the graph. Properties hold primitives, maps,
// slices or other nodes.
type Node struct {
	class       string
	value       any
	properties  map[string]any
	readOnly    map[string]bool
	collections map[string]*collection
	methods     map[string]*method
}

func NewNode(class string) *Node {
	return &Node{
		class:       class,
		properties:  make(map[string]any),
		readOnly:    make(map[string]bool),
		collections: make(map[string]*collection),
		methods:     make(map[string]*method),
	}
}

// NewApplication returns an application root carrying its name.
func NewApplication(name string) *Node {
	return NewNode(applicationClass).WithReadOnly("name", name)
}

func (n *Node) Class() string {
	return n.class
}

// WithValue makes evaluating a specifier to this node yield value instead of
// the node itself, the way text objects evaluate to strings.
func (n *Node) WithValue(value any) *Node {
	n.value = value
	return n
}

func (n *Node) With(name string, value any) *Node {
	n.properties[name] = value
	return n
}

func (n *Node) WithReadOnly(name string, value any) *Node {
	n.properties[name] = value
	n.readOnly[name] = true
	return n
}

func (n *Node) WithElements(name, elementClass string, items ...*Node) *Node {
	n.collections[name] = &collection{elementClass: elementClass, items: items}
	return n
}

func (n *Node) WithMethod(name string, fn MethodFunc) *Node {
	n.methods[name] = &method{name: name, fn: fn}
	return n
}

// Get returns a property value as stored, for assertions.
func (n *Node) Get(name string) (any, bool) {
	value, ok := n.properties[name]
	return value, ok
}

func (n *Node) matches(filter map[string]any) bool {
	for key, want := range filter {
		got, ok := n.properties[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
