package luahost

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `
local Window = {}
Window.__index = Window

function Window:title()
  return "Window " .. self.name
end

local function window(name)
  return setmetatable({ __class = "window", name = name }, Window)
end

applications.Notes = {
  __class = "application",
  __readonly = { version = true },
  name = "Notes",
  version = "4.11",
  count = 2,
  ratio = 0.5,
  tags = { "a", "b" },
  bounds = { x = 1, y = 2 },
  front = window("Inbox"),
  greet = function(self, who, opts)
    local suffix = ""
    if opts and opts.loud then suffix = "!" end
    return "hello " .. who .. " from " .. self.name .. suffix
  end,
  fail = function(self)
    error({ number = -1728, message = "no such note" })
  end,
  crash = function(self)
    error("boom")
  end,
  maker = function(self)
    return function(a, b) return a + b end
  end,
}
`

func newTestHost(t *testing.T) *Host {
	t.Helper()

	host := New()
	t.Cleanup(host.Close)
	require.NoError(t, host.LoadString(testScript))

	return host
}

func TestApplication(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	app, err := host.Application(ctx, "Notes")
	require.NoError(t, err)

	obj, ok := app.(*Object)
	require.True(t, ok)
	assert.Equal(t, "application", obj.ClassName())

	again, err := host.Application(ctx, "Notes")
	require.NoError(t, err)
	assert.Equal(t, obj.Identity(), again.(*Object).Identity())

	_, err = host.Application(ctx, "Mail")
	require.ErrorIs(t, err, domain.ErrRootNotFound)
}

func TestObjectProperties(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	app, err := host.Application(ctx, "Notes")
	require.NoError(t, err)
	obj := app.(*Object)

	tests := []struct {
		name string
		prop string
		want any
	}{
		{name: "string", prop: "name", want: "Notes"},
		{name: "integral number", prop: "count", want: int64(2)},
		{name: "fraction", prop: "ratio", want: 0.5},
		{name: "sequence", prop: "tags", want: []any{"a", "b"}},
		{name: "record", prop: "bounds", want: map[string]any{"x": int64(1), "y": int64(2)}},
		{name: "missing", prop: "nope", want: nil},
		{name: "hidden field", prop: "__class", want: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := obj.Property(ctx, tc.prop)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNestedObjectAndClassMethod(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	app, err := host.Application(ctx, "Notes")
	require.NoError(t, err)

	front, err := app.(*Object).Property(ctx, "front")
	require.NoError(t, err)
	win, ok := front.(*Object)
	require.True(t, ok)
	assert.Equal(t, "window", win.ClassName())

	title, err := win.Property(ctx, "title")
	require.NoError(t, err)
	method, ok := title.(*Method)
	require.True(t, ok)

	got, err := method.Invoke(ctx, win, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Window Inbox", got)
}

func TestSetProperty(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	app, err := host.Application(ctx, "Notes")
	require.NoError(t, err)
	obj := app.(*Object)

	require.NoError(t, obj.SetProperty(ctx, "count", int64(7)))
	got, err := obj.Property(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	err = obj.SetProperty(ctx, "version", "5.0")
	require.ErrorIs(t, err, domain.ErrPropertyNotWritable)

	err = obj.SetProperty(ctx, "greet", "x")
	require.ErrorIs(t, err, domain.ErrPropertyNotWritable)

	err = obj.SetProperty(ctx, "__class", "x")
	require.ErrorIs(t, err, domain.ErrPropertyNotWritable)
}

func TestMethodInvoke(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	app, err := host.Application(ctx, "Notes")
	require.NoError(t, err)
	obj := app.(*Object)

	greet, err := obj.Property(ctx, "greet")
	require.NoError(t, err)
	method := greet.(*Method)

	got, err := method.Invoke(ctx, obj, []any{"Ada"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello Ada from Notes", got)

	got, err = method.Invoke(ctx, obj, []any{"Ada"}, map[string]any{"loud": true})
	require.NoError(t, err)
	assert.Equal(t, "hello Ada from Notes!", got)
}

func TestMethodErrors(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	app, err := host.Application(ctx, "Notes")
	require.NoError(t, err)
	obj := app.(*Object)

	fail, err := obj.Property(ctx, "fail")
	require.NoError(t, err)
	_, err = fail.(*Method).Invoke(ctx, obj, nil, nil)

	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, -1728, scriptErr.HostCode())
	assert.Equal(t, "no such note", scriptErr.Message)

	crash, err := obj.Property(ctx, "crash")
	require.NoError(t, err)
	_, err = crash.(*Method).Invoke(ctx, obj, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, errorsAsScript(err))
}

func TestReturnedFunctionIsCallable(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	app, err := host.Application(ctx, "Notes")
	require.NoError(t, err)
	obj := app.(*Object)

	maker, err := obj.Property(ctx, "maker")
	require.NoError(t, err)
	fn, err := maker.(*Method).Invoke(ctx, obj, nil, nil)
	require.NoError(t, err)

	adder, ok := fn.(*Function)
	require.True(t, ok)
	sum, err := adder.Call(ctx, []any{int64(2), int64(3)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum)

	assert.NotEqual(t, adder.Identity(), (&Method{host: host, fn: adder.fn}).Identity())
}

func TestEval(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		source  string
		locals  map[string]any
		want    any
		wantErr bool
	}{
		{name: "expression", source: "1 + 2", want: int64(3)},
		{name: "statement block", source: "local x = 4\nreturn x * 2", want: int64(8)},
		{name: "locals", source: "n * 10", locals: map[string]any{"n": int64(4)}, want: int64(40)},
		{name: "globals visible", source: "applications.Notes.name", want: "Notes"},
		{name: "list result", source: "{ 1, 2 }", want: []any{int64(1), int64(2)}},
		{name: "syntax error", source: "return (", wantErr: true},
		{name: "runtime error", source: "nil + 1", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := host.Eval(ctx, tc.source, tc.locals)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvalSparseTablesStayDicts(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		source string
		want   any
	}{
		{name: "single large key", source: "{[50000000] = 1}", want: map[string]any{"50000000": int64(1)}},
		{name: "key beyond int range", source: "{[2^60] = true}", want: map[string]any{"1152921504606846976": true}},
		{name: "gap", source: "{[1] = 'a', [3] = 'c'}", want: map[string]any{"1": "a", "3": "c"}},
		{name: "dense", source: "{[1] = 'a', [2] = 'b'}", want: []any{"a", "b"}},
		{name: "fractional key", source: "{[1.5] = 1}", want: map[string]any{"1.5": int64(1)}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := host.Eval(ctx, tc.source, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvalLocalsDoNotLeak(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	_, err := host.Eval(ctx, "secret", map[string]any{"secret": "x"})
	require.NoError(t, err)

	got, err := host.Eval(ctx, "secret", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSandboxRemovesFileAccess(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx := context.Background()

	for _, name := range []string{"dofile", "loadfile", "io", "require"} {
		got, err := host.Eval(ctx, name, nil)
		require.NoError(t, err)
		assert.Nil(t, got, name)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	host := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := host.Application(ctx, "Notes")
	require.ErrorIs(t, err, context.Canceled)

	_, err = host.Eval(ctx, "1", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "apps.lua")
	require.NoError(t, os.WriteFile(path, []byte(`applications.Demo = { __class = "application", name = "Demo" }`), 0o600))

	host := New()
	t.Cleanup(host.Close)
	require.NoError(t, host.LoadFile(path))

	_, err := host.Application(context.Background(), "Demo")
	require.NoError(t, err)

	err = host.LoadFile(filepath.Join(dir, "missing.lua"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.lua")
	require.NoError(t, os.WriteFile(bad, []byte("applications.X = ("), 0o600))
	err = host.LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.lua")
}

func errorsAsScript(err error) bool {
	_, ok := err.(*ScriptError)
	return ok
}
