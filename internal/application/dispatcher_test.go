package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bnema/osabridge/internal/adapters/host/memory"
	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestDispatcher(host *memory.Host, opts ...DispatcherOption) *Dispatcher {
	return NewDispatcher(host, newTestMarshaller(), opts...)
}

func TestDispatcherRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestDispatcher(memory.Demo())

	out := d.Call(ctx, `{"name":"acquireRoot","params":{"name":"Finder"}}`)
	assert.JSONEq(t, `{"type":"reference","objId":1,"className":"application"}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["name"]}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"name":{"type":"plain","data":"Finder"}}}`, out)

	out = d.Call(ctx, `{"name":"release","params":{"objId":1}}`)
	assert.JSONEq(t, `{"type":"plain","data":null}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["name"]}}`)
	resp := decodeErrorResponse(t, out)
	assert.Equal(t, domain.CodeStaleReference, resp.Code)
	assert.Equal(t, domain.CommandGetProperties, resp.Command)

	out = d.Call(ctx, `{"name":"release","params":{"objId":1}}`)
	assert.JSONEq(t, `{"type":"plain","data":null}`, out)
}

func TestDispatcherAcceptsTaggedParamsAndCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestDispatcher(memory.Demo())

	out := d.Call(ctx, `{"type":"dict","data":{"name":{"type":"plain","data":"getApplication"},"params":{"type":"dict","data":{"name":{"type":"plain","data":"Finder"}}}}}`)
	assert.JSONEq(t, `{"type":"reference","objId":1,"className":"application"}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"type":"dict","data":{"object":{"type":"reference","objId":1},"properties":{"type":"array","data":[{"type":"plain","data":"version"}]}}}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"version":{"type":"plain","data":"15.1"}}}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":{"type":"value","data":1},"names":{"type":"container","data":[{"type":"value","data":"frontmost"}]}}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"frontmost":{"type":"plain","data":false}}}`, out)
}

func TestDispatcherGetPropertiesClassifiesMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	host := memory.Demo()
	d := newTestDispatcher(host)
	d.Call(ctx, `{"name":"acquireRoot","params":{"name":"Finder"}}`)

	out := d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["windows"]}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"windows":{"type":"reference","objId":2,"className":"array::window"}}}`, out)
	assert.Zero(t, host.Evaluations())

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["selection","desktopBounds","startupDate","activate"]}}`)
	assert.JSONEq(t, `{"type":"dict","data":{
		"selection":{"type":"reference","objId":4,"className":"text","plainRepr":"README.md"},
		"desktopBounds":{"type":"dict","data":{"x":{"type":"plain","data":0},"y":{"type":"plain","data":0},"width":{"type":"plain","data":1512},"height":{"type":"plain","data":982}}},
		"startupDate":{"type":"date","data":1767342600},
		"activate":{"type":"reference","objId":3,"className":"function"}
	}}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["activate"]}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"activate":{"type":"reference","objId":3,"className":"function"}}}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["nonexistent"]}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"nonexistent":{"type":"plain","data":null}}}`, out)
}

func TestDispatcherSetProperties(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestDispatcher(memory.Demo())
	d.Call(ctx, `{"name":"acquireRoot","params":{"name":"Finder"}}`)

	out := d.Call(ctx, `{"name":"setProperties","params":{"objId":1,"keyValues":{"frontmost":true}}}`)
	assert.JSONEq(t, `{"type":"plain","data":null}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["frontmost"]}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"frontmost":{"type":"plain","data":true}}}`, out)

	out = d.Call(ctx, `{"name":"setPropertyValues","params":{"objId":1,"properties":{"version":"16"}}}`)
	resp := decodeErrorResponse(t, out)
	assert.Equal(t, domain.CodePropertyNotWritable, resp.Code)
	assert.Equal(t, domain.CommandName("setPropertyValues"), resp.Command)
}

func TestDispatcherInvokeMethod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestDispatcher(memory.Demo())
	d.Call(ctx, `{"name":"acquireRoot","params":{"name":"Finder"}}`)

	out := d.Call(ctx, `{"name":"invokeMethod","params":{"objId":1,"name":"reveal","args":["README.md"],"kwargs":{"select":true}}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"revealed":{"type":"plain","data":"README.md"},"options":{"type":"dict","data":{"select":{"type":"plain","data":true}}}}}`, out)

	out = d.Call(ctx, `{"name":"invokeMethod","params":{"objId":1,"name":"activate"}}`)
	assert.JSONEq(t, `{"type":"plain","data":null}`, out)

	tests := []struct {
		name     string
		input    string
		wantCode domain.ErrorCode
		hostCode *int
	}{
		{
			name:     "missing method",
			input:    `{"name":"invokeMethod","params":{"objId":1,"name":"quit"}}`,
			wantCode: domain.CodeMethodNotFound,
		},
		{
			name:     "property is not callable",
			input:    `{"name":"callMethod","params":{"objId":1,"name":"version"}}`,
			wantCode: domain.CodeNotCallable,
		},
		{
			name:     "host refuses",
			input:    `{"name":"invokeMethod","params":{"objId":1,"name":"reveal","args":[]}}`,
			wantCode: domain.CodeHostInvocation,
			hostCode: intPtr(-1703),
		},
		{
			name:     "stale target",
			input:    `{"name":"invokeMethod","params":{"objId":99,"name":"activate"}}`,
			wantCode: domain.CodeStaleReference,
		},
		{
			name:     "args must be a list",
			input:    `{"name":"invokeMethod","params":{"objId":1,"name":"reveal","args":"README.md"}}`,
			wantCode: domain.CodeMalformedCommand,
		},
	}

	for _, tc := range tests {
		resp := decodeErrorResponse(t, d.Call(ctx, tc.input))
		assert.Equal(t, tc.wantCode, resp.Code, tc.name)
		assert.Equal(t, tc.hostCode, resp.HostCode, tc.name)
	}
}

func TestDispatcherCollectionQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestDispatcher(memory.Demo())
	d.Call(ctx, `{"name":"acquireRoot","params":{"name":"Finder"}}`)
	d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["windows"]}}`)

	out := d.Call(ctx, `{"name":"invokeMethod","params":{"objId":2,"name":"at","args":[1]}}`)
	assert.JSONEq(t, `{"type":"reference","objId":3,"className":"window"}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":3,"names":["name","visible"]}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"name":{"type":"plain","data":"Downloads"},"visible":{"type":"plain","data":false}}}`, out)

	out = d.Call(ctx, `{"name":"invokeMethod","params":{"objId":2,"name":"whose","args":[{"visible":true}]}}`)
	assert.JSONEq(t, `{"type":"reference","objId":4,"className":"array::window"}`, out)

	out = d.Call(ctx, `{"name":"getProperties","params":{"objId":4,"names":["length"]}}`)
	assert.JSONEq(t, `{"type":"dict","data":{"length":{"type":"plain","data":1}}}`, out)
}

func TestDispatcherInvokeCallable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestDispatcher(memory.Demo())
	d.Call(ctx, `{"name":"acquireRoot","params":{"name":"Finder"}}`)
	d.Call(ctx, `{"name":"getProperties","params":{"objId":1,"names":["reveal","selection"]}}`)

	out := d.Call(ctx, `{"name":"invokeCallable","params":{"objId":2,"args":[{"type":"reference","objId":1}]}}`)
	resp := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "dict", resp["type"])

	out = d.Call(ctx, `{"name":"callSelf","params":{"objId":3}}`)
	assert.JSONEq(t, `{"type":"plain","data":"README.md"}`, out)

	out = d.Call(ctx, `{"name":"invokeCallable","params":{"objId":3,"args":[1]}}`)
	assert.Equal(t, domain.CodeNotCallable, decodeErrorResponse(t, out).Code)

	out = d.Call(ctx, `{"name":"invokeCallable","params":{"objId":1,"args":[{"type":"reference","objId":77}]}}`)
	assert.Equal(t, domain.CodeStaleReference, decodeErrorResponse(t, out).Code)
}

func TestDispatcherRequestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantCode domain.ErrorCode
	}{
		{name: "not json", input: `{"name":`, wantCode: domain.CodeMalformedCommand},
		{name: "missing name", input: `{"params":{}}`, wantCode: domain.CodeMalformedCommand},
		{name: "unknown command", input: `{"name":"explode"}`, wantCode: domain.CodeUnknownCommand},
		{name: "params not a dict", input: `{"name":"release","params":[1]}`, wantCode: domain.CodeMalformedCommand},
		{name: "missing target", input: `{"name":"getProperties","params":{"names":["x"]}}`, wantCode: domain.CodeMalformedCommand},
		{name: "names not strings", input: `{"name":"getProperties","params":{"objId":1,"names":[1]}}`, wantCode: domain.CodeMalformedCommand},
		{name: "unknown root", input: `{"name":"acquireRoot","params":{"name":"Mail"}}`, wantCode: domain.CodeNotFound},
		{name: "eval unsupported", input: `{"name":"evalSnippet","params":{"source":"1+1"}}`, wantCode: domain.CodeNotSupported},
		{name: "bad wire tag", input: `{"name":"release","params":{"objId":{"type":"blob"}}}`, wantCode: domain.CodeMalformedCommand},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := newTestDispatcher(memory.Demo())
			resp := decodeErrorResponse(t, d.Call(context.Background(), tc.input))
			assert.Equal(t, tc.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestDispatcherStrictRelease(t *testing.T) {
	t.Parallel()

	m := NewMarshaller(NewObjectPool(WithStrictRelease(true)), NewClassifier(DefaultClassifierConfig()))
	d := NewDispatcher(memory.Demo(), m)

	out := d.Call(context.Background(), `{"name":"releaseObjectWithId","params":{"id":5}}`)
	assert.Equal(t, domain.CodeStaleReference, decodeErrorResponse(t, out).Code)
}

func TestDispatcherRecoversFromHostPanic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	host := mocks.NewMockHost(t)
	host.EXPECT().Application(mock.Anything, "Boom").RunAndReturn(func(context.Context, string) (any, error) {
		panic("kaboom")
	})
	host.EXPECT().Application(mock.Anything, "Calm").Return(&fakeObject{class: "application"}, nil)

	d := NewDispatcher(host, newTestMarshaller())

	resp := decodeErrorResponse(t, d.Call(ctx, `{"name":"acquireRoot","params":{"name":"Boom"}}`))
	assert.Equal(t, domain.CodeHostInvocation, resp.Code)
	assert.Contains(t, resp.Message, "kaboom")

	out := d.Call(ctx, `{"name":"acquireRoot","params":{"name":"Calm"}}`)
	assert.JSONEq(t, `{"type":"reference","objId":1,"className":"application"}`, out)
}

func TestDispatcherValidatorRejectsBeforeParsing(t *testing.T) {
	t.Parallel()

	validator := mocks.NewMockCommandValidator(t)
	validator.EXPECT().Validate([]byte(`{"name":1}`)).
		Return(errors.Join(domain.ErrMalformedCommand, errors.New("name: Invalid type")))

	d := newTestDispatcher(memory.Demo(), WithValidator(validator))
	resp := decodeErrorResponse(t, d.Call(context.Background(), `{"name":1}`))
	assert.Equal(t, domain.CodeMalformedCommand, resp.Code)
	assert.Contains(t, resp.Message, "Invalid type")
}

func TestDispatcherLogsCommands(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().Return(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))

	d := newTestDispatcher(memory.Demo(), WithLogger(zap.New(core)), WithClock(clock), WithSessionID("session-1"))
	assert.Equal(t, "session-1", d.SessionID())

	d.Call(context.Background(), `{"name":"acquireRoot","params":{"name":"Finder"}}`)
	d.Call(context.Background(), `{"name":"getProperties","params":{"objId":7,"names":["name"]}}`)

	handled := logs.FilterMessage("command handled").All()
	require.Len(t, handled, 1)
	assert.Equal(t, zapcore.DebugLevel, handled[0].Level)
	assert.Equal(t, "session-1", handled[0].ContextMap()["session"])
	assert.Equal(t, "acquireRoot", handled[0].ContextMap()["command"])
	assert.Equal(t, int64(1), handled[0].ContextMap()["pool_size"])

	failed := logs.FilterMessage("command failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "StaleReference", failed[0].ContextMap()["code"])
}

func decodeErrorResponse(t *testing.T, out string) domain.ErrorResponse {
	t.Helper()

	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, domain.KindError, resp.Type, out)
	return resp
}

func intPtr(v int) *int {
	return &v
}
