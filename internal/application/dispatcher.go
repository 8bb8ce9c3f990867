package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type operation func(ctx context.Context, params commandParams) (any, error)

// Dispatcher is the bridge's only entry point: one JSON command in, one JSON
// wire value (or error envelope) out.
type Dispatcher struct {
	host       ports.Host
	marshaller *Marshaller
	validator  ports.CommandValidator
	logger     *zap.Logger
	clock      ports.Clock
	sessionID  string
	ops        map[domain.CommandName]operation
}

type DispatcherOption func(*Dispatcher)

func WithValidator(validator ports.CommandValidator) DispatcherOption {
	return func(d *Dispatcher) {
		d.validator = validator
	}
}

func WithLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithClock(clock ports.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func WithSessionID(id string) DispatcherOption {
	return func(d *Dispatcher) {
		if id != "" {
			d.sessionID = id
		}
	}
}

func NewDispatcher(host ports.Host, marshaller *Marshaller, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		host:       host,
		marshaller: marshaller,
		logger:     zap.NewNop(),
		clock:      ports.SystemClock{},
		sessionID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.ops = map[domain.CommandName]operation{
		domain.CommandAcquireRoot:    d.acquireRoot,
		domain.CommandGetProperties:  d.getProperties,
		domain.CommandSetProperties:  d.setProperties,
		domain.CommandInvokeMethod:   d.invokeMethod,
		domain.CommandInvokeCallable: d.invokeCallable,
		domain.CommandRelease:        d.release,
		domain.CommandEvalSnippet:    d.evalSnippet,
	}

	return d
}

func (d *Dispatcher) SessionID() string {
	return d.sessionID
}

func (d *Dispatcher) Pool() *ObjectPool {
	return d.marshaller.Pool()
}

// Call runs one command. Failures are reported in the returned string as an
// error envelope; Call itself never fails.
func (d *Dispatcher) Call(ctx context.Context, input string) string {
	start := d.clock.Now()

	name, result, err := d.execute(ctx, []byte(input))
	var encoded []byte
	if err == nil {
		encoded, err = json.Marshal(result)
		if err != nil {
			err = fmt.Errorf("encode response: %w", err)
		}
	}

	fields := []zap.Field{
		zap.String("session", d.sessionID),
		zap.String("command", string(name)),
		zap.Duration("duration", d.clock.Now().Sub(start)),
	}
	if err != nil {
		d.logger.Warn("command failed", append(fields,
			zap.String("code", string(domain.CodeOf(err))),
			zap.Error(err),
		)...)
		return encodeErrorResponse(name, err)
	}

	d.logger.Debug("command handled", append(fields, zap.Int("pool_size", d.Pool().Len()))...)
	return string(encoded)
}

func (d *Dispatcher) execute(ctx context.Context, input []byte) (name domain.CommandName, result domain.WireValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked",
				zap.String("session", d.sessionID),
				zap.String("command", string(name)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = domain.NewHostError(fmt.Sprintf("%s panicked", name), fmt.Errorf("%v", r))
		}
	}()

	if d.validator != nil {
		if err := d.validator.Validate(input); err != nil {
			return name, domain.WireValue{}, err
		}
	}

	name, params, err := parseRequest(input)
	if err != nil {
		return name, domain.WireValue{}, err
	}

	op, ok := d.ops[name.Canonical()]
	if !ok {
		return name, domain.WireValue{}, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, name)
	}

	value, err := op(ctx, params)
	if err != nil {
		return name, domain.WireValue{}, err
	}

	result, err = d.marshaller.Wrap(ctx, value)
	if err != nil {
		return name, domain.WireValue{}, fmt.Errorf("wrap result: %w", err)
	}

	return name, result, nil
}

// parseRequest accepts {"name", "params"} as well as a whole command sent as
// a tagged dict.
func parseRequest(input []byte) (domain.CommandName, commandParams, error) {
	if domain.IsTagged(input) {
		wrapped, err := decodeLoose(input)
		if err != nil {
			return "", nil, err
		}
		fields, err := paramsFromWire(wrapped)
		if err != nil {
			return "", nil, err
		}
		name, err := fields.stringParam("name")
		if err != nil {
			return "", nil, err
		}
		params := commandParams{}
		if raw, ok := fields["params"]; ok {
			if params, err = paramsFromWire(raw); err != nil {
				return domain.CommandName(name), nil, err
			}
		}
		return domain.CommandName(name), params, nil
	}

	cmd, err := domain.ParseCommand(input)
	if err != nil {
		return "", nil, err
	}

	params, err := decodeParams(cmd.Params)
	if err != nil {
		return cmd.Name, nil, err
	}

	return cmd.Name, params, nil
}

func encodeErrorResponse(name domain.CommandName, err error) string {
	encoded, merr := json.Marshal(domain.NewErrorResponse(name, err))
	if merr != nil {
		return fmt.Sprintf(`{"type":"error","code":%q,"message":%q}`, domain.CodeInternal, merr.Error())
	}
	return string(encoded)
}

func (d *Dispatcher) acquireRoot(ctx context.Context, params commandParams) (any, error) {
	name, err := params.stringParam("name", "appName")
	if err != nil {
		return nil, err
	}

	root, err := d.host.Application(ctx, name)
	if err != nil {
		return nil, domain.NewHostError(fmt.Sprintf("acquire root %q", name), err)
	}
	if root == nil {
		return nil, fmt.Errorf("acquire root %q: %w", name, domain.ErrRootNotFound)
	}

	return root, nil
}

func (d *Dispatcher) getProperties(ctx context.Context, params commandParams) (any, error) {
	target, err := d.target(params)
	if err != nil {
		return nil, err
	}
	names, err := params.stringsParam("names", "properties")
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(names))
	for _, name := range names {
		value, err := readProperty(ctx, target, name)
		if err != nil {
			return nil, err
		}
		if method, ok := value.(ports.Method); ok {
			value = BindMethod(name, target, method)
		}
		out[name] = value
	}

	return out, nil
}

func (d *Dispatcher) setProperties(ctx context.Context, params commandParams) (any, error) {
	target, err := d.target(params)
	if err != nil {
		return nil, err
	}

	raw, key, ok := params.lookup("keyValues", "properties")
	if !ok {
		return nil, fmt.Errorf("%w: keyValues is required", domain.ErrMalformedCommand)
	}
	values, err := d.unwrapMap(key, raw)
	if err != nil {
		return nil, err
	}

	for name, value := range values {
		if err := writeProperty(ctx, target, name, value); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func (d *Dispatcher) invokeMethod(ctx context.Context, params commandParams) (any, error) {
	target, err := d.target(params)
	if err != nil {
		return nil, err
	}
	name, err := params.stringParam("name", "method")
	if err != nil {
		return nil, err
	}
	args, kwargs, err := d.arguments(params)
	if err != nil {
		return nil, err
	}

	member, err := readProperty(ctx, target, name)
	if errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrStaleReference) {
		return nil, fmt.Errorf("invoke %q: %w", name, domain.ErrMethodNotFound)
	}
	if err != nil {
		return nil, err
	}

	switch fn := member.(type) {
	case nil:
		return nil, fmt.Errorf("invoke %q: %w", name, domain.ErrMethodNotFound)
	case ports.Method:
		result, err := fn.Invoke(ctx, target, args, kwargs)
		return result, domain.NewHostError(fmt.Sprintf("invoke %q", name), err)
	case ports.Callable:
		result, err := fn.Call(ctx, args, kwargs)
		return result, domain.NewHostError(fmt.Sprintf("invoke %q", name), err)
	default:
		return nil, fmt.Errorf("invoke %q (%T): %w", name, member, domain.ErrNotCallable)
	}
}

func (d *Dispatcher) invokeCallable(ctx context.Context, params commandParams) (any, error) {
	target, err := d.target(params)
	if err != nil {
		return nil, err
	}
	args, kwargs, err := d.arguments(params)
	if err != nil {
		return nil, err
	}

	switch fn := target.(type) {
	case ports.Callable:
		result, err := fn.Call(ctx, args, kwargs)
		return result, domain.NewHostError("call", err)
	case ports.Specifier:
		// Calling a specifier with no arguments resolves it.
		if len(args) == 0 && len(kwargs) == 0 {
			result, err := fn.Evaluate(ctx)
			return result, domain.NewHostError("evaluate", err)
		}
	}

	return nil, fmt.Errorf("call %T: %w", target, domain.ErrNotCallable)
}

func (d *Dispatcher) release(_ context.Context, params commandParams) (any, error) {
	id, err := params.objectID("objId", "object", "id")
	if err != nil {
		return nil, err
	}

	if err := d.Pool().Release(id); err != nil {
		return nil, err
	}

	return nil, nil
}

func (d *Dispatcher) evalSnippet(ctx context.Context, params commandParams) (any, error) {
	evaluator, ok := d.host.(ports.Evaluator)
	if !ok {
		return nil, fmt.Errorf("eval snippet: %w", domain.ErrNotSupported)
	}

	source, err := params.stringParam("source", "code")
	if err != nil {
		return nil, err
	}

	var locals map[string]any
	if raw, key, ok := params.lookup("locals"); ok {
		if locals, err = d.unwrapMap(key, raw); err != nil {
			return nil, err
		}
	}

	result, err := evaluator.Eval(ctx, source, locals)
	return result, domain.NewHostError("eval snippet", err)
}

func (d *Dispatcher) target(params commandParams) (any, error) {
	raw, key, ok := params.lookup("objId", "object", "target")
	if !ok {
		return nil, fmt.Errorf("%w: objId is required", domain.ErrMalformedCommand)
	}

	if raw.Kind == domain.KindPlain {
		id, ok := integral(raw.Data)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be an object id or reference", domain.ErrMalformedCommand, key)
		}
		return d.Pool().Resolve(domain.ObjectID(id))
	}

	return d.marshaller.Unwrap(raw)
}

func (d *Dispatcher) arguments(params commandParams) ([]any, map[string]any, error) {
	var args []any
	if raw, key, ok := params.lookup("args", "arguments"); ok {
		switch {
		case raw.Kind == domain.KindPlain && raw.Data == nil:
		case raw.Kind == domain.KindArray:
			unwrapped, err := d.marshaller.Unwrap(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("unwrap %s: %w", key, err)
			}
			args = unwrapped.([]any)
		default:
			return nil, nil, fmt.Errorf("%w: %s must be a list", domain.ErrMalformedCommand, key)
		}
	}

	var kwargs map[string]any
	if raw, key, ok := params.lookup("kwargs"); ok {
		if raw.Kind != domain.KindPlain || raw.Data != nil {
			unwrapped, err := d.unwrapMap(key, raw)
			if err != nil {
				return nil, nil, err
			}
			kwargs = unwrapped
		}
	}

	return args, kwargs, nil
}

func (d *Dispatcher) unwrapMap(key string, raw domain.WireValue) (map[string]any, error) {
	if raw.Kind != domain.KindDict {
		return nil, fmt.Errorf("%w: %s must be a dict", domain.ErrMalformedCommand, key)
	}

	unwrapped, err := d.marshaller.Unwrap(raw)
	if err != nil {
		return nil, fmt.Errorf("unwrap %s: %w", key, err)
	}

	return unwrapped.(map[string]any), nil
}

func readProperty(ctx context.Context, target any, name string) (any, error) {
	switch obj := target.(type) {
	case ports.Object:
		value, err := obj.Property(ctx, name)
		if err != nil {
			return nil, domain.NewHostError(fmt.Sprintf("get %q", name), err)
		}
		return value, nil
	case map[string]any:
		return obj[name], nil
	default:
		return nil, fmt.Errorf("get %q on %T: %w", name, target, domain.ErrNotSupported)
	}
}

func writeProperty(ctx context.Context, target any, name string, value any) error {
	switch obj := target.(type) {
	case ports.Object:
		if err := obj.SetProperty(ctx, name, value); err != nil {
			return domain.NewHostError(fmt.Sprintf("set %q", name), err)
		}
		return nil
	case map[string]any:
		obj[name] = value
		return nil
	default:
		return fmt.Errorf("set %q on %T: %w", name, target, domain.ErrPropertyNotWritable)
	}
}
