package luahost

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
	lua "github.com/yuin/gopher-lua"
)

const (
	applicationsGlobal = "applications"
	classField         = "__class"
	readOnlyField      = "__readonly"
	defaultRootClass   = "application"

	maxIndexDepth   = 16
	maxConvertDepth = 64
)

// Host runs a sandboxed Lua state whose global `applications` table holds
// the root objects. Tables carrying a __class field are exposed as live
// objects; other tables travel as data.
type Host struct {
	mu    sync.Mutex
	state *lua.LState
}

var (
	_ ports.Host      = (*Host)(nil)
	_ ports.Evaluator = (*Host)(nil)
)

func New() *Host {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("module", lua.LNil)

	osTbl := L.NewTable()
	L.SetField(osTbl, "time", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	L.SetGlobal("os", osTbl)

	L.SetGlobal(applicationsGlobal, L.NewTable())

	return &Host{state: L}
}

func (h *Host) LoadFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read lua script: %w", err)
	}
	if err := h.LoadString(string(source)); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (h *Host) LoadString(source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.state.DoString(source); err != nil {
		return scriptError(err)
	}
	return nil
}

func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.Close()
}

func (h *Host) Application(ctx context.Context, name string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	apps, ok := h.state.GetGlobal(applicationsGlobal).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("application %q: %w", name, domain.ErrRootNotFound)
	}
	root, ok := apps.RawGetString(name).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("application %q: %w", name, domain.ErrRootNotFound)
	}

	return &Object{host: h, table: root, defaultClass: defaultRootClass}, nil
}

func (h *Host) Eval(ctx context.Context, source string, locals map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	fn, err := h.state.LoadString("return " + source)
	if err != nil {
		if fn, err = h.state.LoadString(source); err != nil {
			return nil, fmt.Errorf("compile snippet: %w", scriptError(err))
		}
	}

	env := h.state.NewTable()
	for name, value := range locals {
		env.RawSetString(name, h.toLua(value))
	}
	meta := h.state.NewTable()
	meta.RawSetString("__index", h.state.G.Global)
	h.state.SetMetatable(env, meta)
	h.state.SetFEnv(fn, env)

	return h.callLocked(ctx, fn, nil, nil, nil)
}

// callLocked calls fn with self (when not nil) followed by args. Keyword
// arguments are passed as one trailing table.
func (h *Host) callLocked(ctx context.Context, fn *lua.LFunction, self lua.LValue, args []any, kwargs map[string]any) (any, error) {
	params := make([]lua.LValue, 0, len(args)+2)
	if self != nil {
		params = append(params, self)
	}
	for _, arg := range args {
		params = append(params, h.toLua(arg))
	}
	if len(kwargs) > 0 {
		params = append(params, h.toLua(kwargs))
	}

	h.state.SetContext(ctx)
	defer h.state.RemoveContext()

	if err := h.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, params...); err != nil {
		return nil, scriptError(err)
	}

	ret := h.state.Get(-1)
	h.state.Pop(1)

	return h.toGo(ret, 0), nil
}

func (h *Host) toGo(value lua.LValue, depth int) any {
	switch value.Type() {
	case lua.LTNil:
		return nil
	case lua.LTBool:
		return lua.LVAsBool(value)
	case lua.LTNumber:
		return number(float64(value.(lua.LNumber)))
	case lua.LTString:
		return value.String()
	case lua.LTFunction:
		return &Function{host: h, fn: value.(*lua.LFunction)}
	case lua.LTUserData:
		return value.(*lua.LUserData).Value
	case lua.LTTable:
		return h.tableToGo(value.(*lua.LTable), depth)
	default:
		return value
	}
}

func (h *Host) tableToGo(tbl *lua.LTable, depth int) any {
	if depth > maxConvertDepth || lookup(tbl, classField) != lua.LNil {
		return &Object{host: h, table: tbl}
	}

	// Only dense sequences 1..n become lists; sparse integer keys stay a
	// dict so a single large key cannot size the slice.
	isArray := true
	count := 0
	maxIdx := 0.0
	tbl.ForEach(func(key, _ lua.LValue) {
		count++
		if num, ok := key.(lua.LNumber); ok && float64(num) == math.Trunc(float64(num)) && num > 0 {
			maxIdx = math.Max(maxIdx, float64(num))
			return
		}
		isArray = false
	})

	if isArray && count > 0 && maxIdx == float64(count) {
		maxIdx := int(maxIdx)
		items := make([]any, maxIdx)
		tbl.ForEach(func(key, item lua.LValue) {
			items[int(key.(lua.LNumber))-1] = h.toGo(item, depth+1)
		})
		return items
	}

	fields := make(map[string]any)
	tbl.ForEach(func(key, item lua.LValue) {
		fields[tableKey(key)] = h.toGo(item, depth+1)
	})
	return fields
}

func tableKey(key lua.LValue) string {
	num, ok := key.(lua.LNumber)
	if !ok {
		return key.String()
	}
	if i, ok := number(float64(num)).(int64); ok {
		return strconv.FormatInt(i, 10)
	}
	return strconv.FormatFloat(float64(num), 'f', -1, 64)
}

func (h *Host) toLua(value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case time.Time:
		return lua.LNumber(float64(v.UnixMilli()) / 1000)
	case []any:
		tbl := h.state.NewTable()
		for i, item := range v {
			tbl.RawSetInt(i+1, h.toLua(item))
		}
		return tbl
	case map[string]any:
		tbl := h.state.NewTable()
		for key, item := range v {
			tbl.RawSetString(key, h.toLua(item))
		}
		return tbl
	case *Object:
		if v.host == h {
			return v.table
		}
	case *Function:
		if v.host == h {
			return v.fn
		}
	case *Method:
		if v.host == h {
			return v.fn
		}
	}

	ud := h.state.NewUserData()
	ud.Value = value
	return ud
}

// number keeps integral values as int64 so they encode without a fraction.
func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// lookup reads name from tbl, following __index tables the way Lua class
// idioms chain them.
func lookup(tbl *lua.LTable, name string) lua.LValue {
	for depth := 0; tbl != nil && depth < maxIndexDepth; depth++ {
		if value := tbl.RawGetString(name); value != lua.LNil {
			return value
		}
		meta, ok := tbl.Metatable.(*lua.LTable)
		if !ok {
			return lua.LNil
		}
		tbl, _ = meta.RawGetString("__index").(*lua.LTable)
	}
	return lua.LNil
}
