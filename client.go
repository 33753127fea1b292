// Package jsiihost is the host side of a jsii-style runtime client: it
// spawns a kernel child process, performs the version handshake, and
// drives a synchronous request/response loop over a line-delimited
// JSON pipe, dispatching any reentrant callback the kernel raises mid
// response back into host code.
//
// A typical caller never touches the internal/* packages directly:
// construct a Client with New, issue requests with Invoke/Get/Set/
// Create, and Close it when done. Generated language bindings are the
// expected caller of ToWire/FromWire and the raw Request method;
// hand-written code normally only needs Invoke/Get/Set/Create.
package jsiihost

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/jsiihost/internal/callback"
	"github.com/oriys/jsiihost/internal/config"
	"github.com/oriys/jsiihost/internal/descriptor"
	"github.com/oriys/jsiihost/internal/jerr"
	"github.com/oriys/jsiihost/internal/kernel"
	"github.com/oriys/jsiihost/internal/logging"
	"github.com/oriys/jsiihost/internal/marshal"
	"github.com/oriys/jsiihost/internal/metrics"
	"github.com/oriys/jsiihost/internal/observability"
	"github.com/oriys/jsiihost/internal/protocol"
	"github.com/oriys/jsiihost/internal/registry"
	"github.com/oriys/jsiihost/internal/typecache"
	"github.com/oriys/jsiihost/internal/wire"
	"github.com/oriys/jsiihost/internal/wireval"
)

// Client owns one kernel child process end to end: its supervision,
// its wire codec, the protocol engine driving the request/response and
// callback state machine, the handle registry, and the marshaler that
// translates values across the boundary.
type Client struct {
	cfg        *config.Config
	supervisor *kernel.Supervisor
	engine     *protocol.Engine
	registry   *registry.Registry
	marshaler  *marshal.Marshaler
	types      *typecache.Cache
	timeout    time.Duration
	log        *logging.Logger
}

// noopCallbackHandler rejects every callback with a clear message,
// installed when a Client is constructed without WithCallbackHandler.
type noopCallbackHandler struct{}

func (noopCallbackHandler) Invoke(any, string, []wireval.Value) (wireval.Value, error) {
	return wireval.Value{}, fmt.Errorf("jsiihost: no callback handler installed")
}
func (noopCallbackHandler) Get(any, string) (wireval.Value, error) {
	return wireval.Value{}, fmt.Errorf("jsiihost: no callback handler installed")
}
func (noopCallbackHandler) Set(any, string, wireval.Value) error {
	return fmt.Errorf("jsiihost: no callback handler installed")
}

// New spawns the kernel child process, performs the version handshake
// within the configured boot timeout, and returns a ready Client.
//
// If the handshake does not complete in time, the child is killed and
// an error is returned; New never leaves an orphaned process behind.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg

	reg := registry.New()
	handler := o.callbackHandler
	if handler == nil {
		handler = noopCallbackHandler{}
	}
	dispatcher := callback.New(reg, handler)

	c := &Client{
		cfg:       cfg,
		registry:  reg,
		marshaler: marshal.New(reg),
		types:     typecache.New(),
		timeout:   o.requestTimeout,
		log:       logging.Default(),
	}

	sup := kernel.New(kernel.Options{
		RuntimePathOverride: cfg.RuntimePathOverride,
		FallbackName:        cfg.FallbackName,
		Debug:               cfg.Debug,
		DebugSink:           o.debugSink,
		GracePeriod:         cfg.GracePeriod,
		OnExit: func(exitErr error, stderrTail string) {
			metrics.RecordKernelRestart()
			c.engine.Poison(&jerr.KernelTerminatedError{ExitErr: exitErr, StderrTail: stderrTail})
		},
	})
	c.supervisor = sup

	if err := sup.Start(ctx); err != nil {
		return nil, err
	}

	codec := wire.New(sup.Stdout(), sup.Stdin(), int(cfg.MaxLineBytes))
	c.engine = protocol.New(codec, reg, dispatcher, cfg.ExpectedVersion, sup.Kill)

	if err := c.handshake(ctx); err != nil {
		sup.Kill()
		return nil, err
	}

	return c, nil
}

// handshake blocks for the kernel's hello line, bounded by the
// configured boot timeout. The pipe read it waits on cannot be
// interrupted by ctx alone, so on timeout the kernel is killed to
// unblock it, exactly as RequestWithTimeout does for an in-flight
// request.
func (c *Client) handshake(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- c.engine.Handshake(ctx) }()

	if c.cfg.BootTimeout <= 0 {
		return <-done
	}

	select {
	case err := <-done:
		return err
	case <-time.After(c.cfg.BootTimeout):
		c.supervisor.Kill()
		<-done
		return fmt.Errorf("jsiihost: kernel handshake timed out after %s", c.cfg.BootTimeout)
	}
}

// Close stops the kernel child gracefully (closing its stdin, waiting
// up to the configured grace period, then killing it) and closes the
// request logger's output file, if one was configured.
func (c *Client) Close(ctx context.Context) error {
	defer c.log.Close()
	return c.supervisor.Stop(ctx)
}

// Pid reports the kernel child's process id, or 0 if it is not
// running.
func (c *Client) Pid() int { return c.supervisor.Pid() }

// Registry exposes the handle/proxy registry, for generated bindings
// that need to Track a host-originated object or Resolve a proxy
// directly rather than going through ToWire/FromWire.
func (c *Client) Registry() *registry.Registry { return c.registry }

// Types exposes the per-FQN method/property cache, for generated
// bindings that memoize what the kernel has told them about a class.
func (c *Client) Types() *typecache.Cache { return c.types }

// ToWire converts a host value to its wire representation per d.
func (c *Client) ToWire(v any, d descriptor.Descriptor) (wireval.Value, error) {
	w, err := c.marshaler.ToWire(v, d)
	if err != nil {
		metrics.RecordMarshalError("to-wire")
	}
	return w, err
}

// FromWire converts a wire value to a host value per d.
func (c *Client) FromWire(w wireval.Value, d descriptor.Descriptor) (any, error) {
	v, err := c.marshaler.FromWire(w, d)
	if err != nil {
		metrics.RecordMarshalError("from-wire")
	}
	return v, err
}

// Request sends one raw wire request (tag plus its IDL-defined
// payload) and returns the kernel's terminal ok value, dispatching any
// callback interrupts synchronously along the way. Generated bindings
// call this directly; Invoke/Get/Set/Create below wrap it for the
// common class-member shapes.
func (c *Client) Request(ctx context.Context, tag string, payload any) (wireval.Value, error) {
	requestID := uuid.NewString()
	start := time.Now()
	metrics.IncActiveRequests()
	defer metrics.DecActiveRequests()

	ctx, span := observability.StartSpan(ctx, "jsiihost.request",
		observability.AttrRequestTag.String(tag),
		observability.AttrRequestID.String(requestID),
	)
	defer span.End()

	var (
		result   wireval.Value
		err      error
		timedOut bool
	)
	if c.timeout > 0 {
		result, err = c.engine.RequestWithTimeout(ctx, c.timeout, tag, payload)
		timedOut = err != nil && isTimeout(err)
	} else {
		result, err = c.engine.Request(ctx, tag, payload)
	}

	duration := time.Since(start)
	span.SetAttributes(observability.AttrDurationMs.Int64(duration.Milliseconds()))
	if err != nil {
		observability.SetSpanError(span, err)
		metrics.RecordRequest(tag, duration.Milliseconds(), false)
	} else {
		observability.SetSpanOK(span)
		metrics.RecordRequest(tag, duration.Milliseconds(), true)
	}

	entry := &logging.CallLog{
		RequestID:  requestID,
		TraceID:    observability.GetTraceID(ctx),
		SpanID:     observability.GetSpanID(ctx),
		Tag:        tag,
		DurationMs: duration.Milliseconds(),
		Success:    err == nil,
		TimedOut:   timedOut,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.log.Log(entry)

	return result, err
}

func isTimeout(err error) bool {
	_, ok := err.(interface{ Timeout() bool })
	return ok
}

// invokePayload is the `invoke` request's wire shape.
type invokePayload struct {
	ObjRef string          `json:"objref"`
	Method string          `json:"method"`
	Args   []wireval.Value `json:"args"`
}

// getPayload/setPayload are the `get`/`set` requests' wire shapes.
type getPayload struct {
	ObjRef   string `json:"objref"`
	Property string `json:"property"`
}

type setPayload struct {
	ObjRef   string        `json:"objref"`
	Property string        `json:"property"`
	Value    wireval.Value `json:"value"`
}

// createPayload is the `create` request's wire shape.
type createPayload struct {
	FQN        string          `json:"fqn"`
	Args       []wireval.Value `json:"args"`
	Interfaces []string        `json:"interfaces,omitempty"`
}

// Invoke calls a method on a by-reference kernel object and returns its
// raw wire result; args must already be marshaled (see ToWire).
func (c *Client) Invoke(ctx context.Context, objref, method string, args []wireval.Value) (wireval.Value, error) {
	if args == nil {
		args = []wireval.Value{}
	}
	return c.Request(ctx, "invoke", invokePayload{ObjRef: objref, Method: method, Args: args})
}

// Get reads a property on a by-reference kernel object.
func (c *Client) Get(ctx context.Context, objref, property string) (wireval.Value, error) {
	return c.Request(ctx, "get", getPayload{ObjRef: objref, Property: property})
}

// Set writes a property on a by-reference kernel object.
func (c *Client) Set(ctx context.Context, objref, property string, value wireval.Value) error {
	_, err := c.Request(ctx, "set", setPayload{ObjRef: objref, Property: property, Value: value})
	return err
}

// Create constructs a new kernel-side instance of fqn and returns the
// by-reference proxy for it. interfaces lists any host-originated
// interface implementations passed among args, exactly as they were
// assigned handles via Registry().Track.
func (c *Client) Create(ctx context.Context, fqn string, args []wireval.Value, interfaces []string) (*registry.Proxy, error) {
	if args == nil {
		args = []wireval.Value{}
	}
	v, err := c.Request(ctx, "create", createPayload{FQN: fqn, Args: args, Interfaces: interfaces})
	if err != nil {
		return nil, err
	}
	if v.Tag != wireval.TagByRef {
		return nil, &jerr.ProtocolViolationError{Reason: "create did not return a $jsii.byref value"}
	}
	return c.registry.Resolve(v.Ref.Handle, v.Ref.Interfaces), nil
}

// Release drops the host's reference to a by-reference kernel object
// immediately, rather than waiting for its proxy to be garbage
// collected. Subsequent requests against the same handle will no
// longer find a tracked object.
func (c *Client) Release(ctx context.Context, objref string) error {
	if !c.registry.Release(objref) {
		return nil
	}
	_, err := c.Request(ctx, "del", map[string]string{"objref": objref})
	return err
}

// namingPayload is the `naming` request's wire shape: ask the kernel
// for one class/interface's member table.
type namingPayload struct {
	FQN string `json:"fqn"`
}

// Naming asks the kernel for fqn's method/property table and caches
// it in Types(), so a repeated call for the same FQN never touches
// the wire again. The cache is populated exactly once per FQN even
// under concurrent callers racing on the same miss (typecache.Cache's
// GetOrLoad).
func (c *Client) Naming(ctx context.Context, fqn string) (*typecache.ClassInfo, error) {
	return c.types.GetOrLoad(fqn, func() (*typecache.ClassInfo, error) {
		v, err := c.Request(ctx, "naming", namingPayload{FQN: fqn})
		if err != nil {
			return nil, err
		}
		return classInfoFromWire(fqn, v)
	})
}

func classInfoFromWire(fqn string, v wireval.Value) (*typecache.ClassInfo, error) {
	if v.Tag != wireval.TagMap {
		return nil, &jerr.ProtocolViolationError{Reason: "naming response was not a map"}
	}
	info := &typecache.ClassInfo{FQN: fqn, Members: map[string]typecache.Member{}}
	members, ok := v.Map["members"]
	if !ok || members.Tag != wireval.TagArray {
		return info, nil
	}
	for _, m := range members.Array {
		if m.Tag != wireval.TagMap {
			continue
		}
		name, _ := m.Map["name"].Primitive.(string)
		if name == "" {
			continue
		}
		isProperty, _ := m.Map["is_property"].Primitive.(bool)
		paramCount, _ := m.Map["param_count"].Primitive.(float64)
		info.Members[name] = typecache.Member{
			Name:       name,
			IsProperty: isProperty,
			ParamCount: int(paramCount),
		}
	}
	return info, nil
}

// Stats is the kernel's `stats` response body: live object-registry
// counts, useful for a diagnostic wrapper to report without the host
// tracking its own shadow copy of kernel state.
type Stats struct {
	ObjectCount int64
}

// Stats asks the kernel how many objects it is currently holding.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	v, err := c.Request(ctx, "stats", struct{}{})
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	if v.Tag == wireval.TagMap {
		if n, ok := v.Map["objectCount"].Primitive.(float64); ok {
			stats.ObjectCount = int64(n)
		}
	}
	return stats, nil
}

// LoadAssembly names an assembly tarball the kernel should load before
// any of its types can be created or invoked.
type LoadAssembly struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Tarball string `json:"tarball"`
}

// LoadResult reports what the kernel actually loaded.
type LoadResult struct {
	Assembly string
	Types    int64
}

// Load asks the kernel to load an assembly tarball, making its types
// available to subsequent Create/Invoke/Get/Set calls.
func (c *Client) Load(ctx context.Context, assembly LoadAssembly) (LoadResult, error) {
	v, err := c.Request(ctx, "load", assembly)
	if err != nil {
		return LoadResult{}, err
	}
	var res LoadResult
	if v.Tag == wireval.TagMap {
		if s, ok := v.Map["assembly"].Primitive.(string); ok {
			res.Assembly = s
		}
		if n, ok := v.Map["types"].Primitive.(float64); ok {
			res.Types = int64(n)
		}
	}
	return res, nil
}
