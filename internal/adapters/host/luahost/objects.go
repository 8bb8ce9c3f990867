package luahost

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
	lua "github.com/yuin/gopher-lua"
)

// ScriptError is raised by Lua code calling error{number = n, message = m}.
type ScriptError struct {
	Number  int
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("lua error %d: %s", e.Number, e.Message)
}

func (e *ScriptError) HostCode() int {
	return e.Number
}

func scriptError(err error) error {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return err
	}

	if tbl, ok := apiErr.Object.(*lua.LTable); ok {
		if num, ok := tbl.RawGetString("number").(lua.LNumber); ok {
			return &ScriptError{
				Number:  int(num),
				Message: lua.LVAsString(tbl.RawGetString("message")),
			}
		}
	}

	return fmt.Errorf("lua: %s", strings.TrimSpace(apiErr.Object.String()))
}

// Object exposes a Lua table with a __class field. Functions stored on the
// table or its class read back as methods.
type Object struct {
	host         *Host
	table        *lua.LTable
	defaultClass string
}

var (
	_ ports.Object       = (*Object)(nil)
	_ ports.Classed      = (*Object)(nil)
	_ ports.Identifiable = (*Object)(nil)
)

func (o *Object) Identity() any {
	return o.table
}

func (o *Object) ClassName() string {
	o.host.mu.Lock()
	defer o.host.mu.Unlock()

	if class, ok := lookup(o.table, classField).(lua.LString); ok && class != "" {
		return string(class)
	}
	return o.defaultClass
}

func (o *Object) Property(ctx context.Context, name string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.HasPrefix(name, "__") {
		return nil, nil
	}

	o.host.mu.Lock()
	defer o.host.mu.Unlock()

	value := lookup(o.table, name)
	if fn, ok := value.(*lua.LFunction); ok {
		return &Method{host: o.host, fn: fn}, nil
	}
	return o.host.toGo(value, 0), nil
}

func (o *Object) SetProperty(ctx context.Context, name string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.host.mu.Lock()
	defer o.host.mu.Unlock()

	if strings.HasPrefix(name, "__") || o.readOnly(name) {
		return fmt.Errorf("set %q: %w", name, domain.ErrPropertyNotWritable)
	}
	if _, ok := lookup(o.table, name).(*lua.LFunction); ok {
		return fmt.Errorf("set %q: %w", name, domain.ErrPropertyNotWritable)
	}

	o.table.RawSetString(name, o.host.toLua(value))
	return nil
}

func (o *Object) readOnly(name string) bool {
	names, ok := lookup(o.table, readOnlyField).(*lua.LTable)
	if !ok {
		return false
	}
	return lua.LVAsBool(names.RawGetString(name))
}

type functionKey struct{ fn *lua.LFunction }

type methodKey struct{ fn *lua.LFunction }

// Function is a free-standing Lua function.
type Function struct {
	host *Host
	fn   *lua.LFunction
}

var (
	_ ports.Callable     = (*Function)(nil)
	_ ports.Identifiable = (*Function)(nil)
)

func (f *Function) Identity() any {
	return functionKey{fn: f.fn}
}

func (f *Function) Call(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.host.mu.Lock()
	defer f.host.mu.Unlock()

	return f.host.callLocked(ctx, f.fn, nil, args, kwargs)
}

// Method is a Lua function read from an object; the receiver is passed as
// self.
type Method struct {
	host *Host
	fn   *lua.LFunction
}

var (
	_ ports.Method       = (*Method)(nil)
	_ ports.Identifiable = (*Method)(nil)
)

func (m *Method) Identity() any {
	return methodKey{fn: m.fn}
}

func (m *Method) Invoke(ctx context.Context, receiver any, args []any, kwargs map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.host.mu.Lock()
	defer m.host.mu.Unlock()

	return m.host.callLocked(ctx, m.fn, m.host.toLua(receiver), args, kwargs)
}
