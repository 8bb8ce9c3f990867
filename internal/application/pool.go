package application

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
)

// PoolEntry describes a live pooled reference.
type PoolEntry struct {
	ID        domain.ObjectID
	ClassName string
	Created   time.Time
	LastUsed  time.Time
}

type poolEntry struct {
	PoolEntry
	object any
	key    any
}

// ObjectPool owns the id <-> object mapping for every host object handed to
// the controller. Entries live until released; nothing is evicted.
type ObjectPool struct {
	mu     sync.Mutex
	nextID domain.ObjectID
	byID   map[domain.ObjectID]*poolEntry
	byKey  map[any]domain.ObjectID
	clock  ports.Clock
	strict bool
}

type PoolOption func(*ObjectPool)

// WithStrictRelease makes Release of an unknown id fail with
// domain.ErrStaleReference instead of being a no-op.
func WithStrictRelease(strict bool) PoolOption {
	return func(p *ObjectPool) {
		p.strict = strict
	}
}

func WithPoolClock(clock ports.Clock) PoolOption {
	return func(p *ObjectPool) {
		if clock != nil {
			p.clock = clock
		}
	}
}

func NewObjectPool(opts ...PoolOption) *ObjectPool {
	p := &ObjectPool{
		byID:  make(map[domain.ObjectID]*poolEntry),
		byKey: make(map[any]domain.ObjectID),
		clock: ports.SystemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Intern returns the id registered for obj, allocating the next one when obj
// has not been seen. Objects are compared by identity.
func (p *ObjectPool) Intern(obj any) (domain.ObjectID, error) {
	id, _, err := p.intern(obj, "")
	return id, err
}

func (p *ObjectPool) intern(obj any, className string) (domain.ObjectID, bool, error) {
	key, err := identityKey(obj)
	if err != nil {
		return 0, false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byKey[key]; ok {
		entry := p.byID[id]
		entry.LastUsed = p.clock.Now()
		if entry.ClassName == "" {
			entry.ClassName = className
		}
		return id, false, nil
	}

	p.nextID++
	now := p.clock.Now()
	entry := &poolEntry{
		PoolEntry: PoolEntry{
			ID:        p.nextID,
			ClassName: className,
			Created:   now,
			LastUsed:  now,
		},
		object: obj,
		key:    key,
	}
	p.byID[entry.ID] = entry
	p.byKey[key] = entry.ID

	return entry.ID, true, nil
}

func (p *ObjectPool) Resolve(id domain.ObjectID) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("resolve object %d: %w", id, domain.ErrStaleReference)
	}
	entry.LastUsed = p.clock.Now()

	return entry.object, nil
}

func (p *ObjectPool) Release(id domain.ObjectID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.byID[id]
	if !ok {
		if p.strict {
			return fmt.Errorf("release object %d: %w", id, domain.ErrStaleReference)
		}
		return nil
	}

	delete(p.byID, id)
	delete(p.byKey, entry.key)

	return nil
}

func (p *ObjectPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.byID)
}

// Entries returns a snapshot of live entries ordered by id.
func (p *ObjectPool) Entries() []PoolEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]PoolEntry, 0, len(p.byID))
	for _, entry := range p.byID {
		entries = append(entries, entry.PoolEntry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})

	return entries
}

type pointerKey struct {
	typ reflect.Type
	ptr uintptr
}

type sliceKey struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// declaredKey scopes a declared identity to the type that declared it, so two
// object kinds reusing the same identity value never share an id.
type declaredKey struct {
	typ reflect.Type
	key any
}

func identityKey(obj any) (any, error) {
	if obj == nil {
		return nil, fmt.Errorf("intern nil value: %w", domain.ErrUnknownType)
	}

	if ident, ok := obj.(ports.Identifiable); ok {
		key := ident.Identity()
		if key == nil || !reflect.ValueOf(key).Comparable() {
			return nil, fmt.Errorf("intern %T: identity is not comparable: %w", obj, domain.ErrUnknownType)
		}
		return declaredKey{typ: reflect.TypeOf(obj), key: key}, nil
	}

	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return pointerKey{typ: v.Type(), ptr: v.Pointer()}, nil
	case reflect.Slice:
		return sliceKey{typ: v.Type(), ptr: v.Pointer(), len: v.Len()}, nil
	}

	if v.Comparable() {
		return obj, nil
	}

	return nil, fmt.Errorf("intern %T: value has no stable identity: %w", obj, domain.ErrUnknownType)
}
