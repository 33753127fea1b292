// Package protocol drives the synchronous request/response loop against
// the kernel child process: the version handshake, the state machine
// that recognizes a callback interrupt mid-response, and the single
// serializing lock that keeps one request in flight on the wire at a
// time.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/oriys/jsiihost/internal/callback"
	"github.com/oriys/jsiihost/internal/jerr"
	"github.com/oriys/jsiihost/internal/logging"
	"github.com/oriys/jsiihost/internal/metrics"
	"github.com/oriys/jsiihost/internal/registry"
	"github.com/oriys/jsiihost/internal/wire"
	"github.com/oriys/jsiihost/internal/wireval"
)

// State names one point in the engine's lifecycle.
type State int

const (
	StateUnstarted State = iota
	StateHandshaking
	StateReady
	StateAwaitingResponse
	StateInCallback
	StatePoisoned
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateInCallback:
		return "in-callback"
	case StatePoisoned:
		return "poisoned"
	default:
		return "unknown"
	}
}

// Request is one wire request: a single top-level key naming the
// request tag (invoke, get, del, complete, ...) with its IDL-defined
// payload underneath.
type Request struct {
	Tag     string
	Payload any
}

func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{r.Tag: r.Payload})
}

// responseEnvelope decodes any of the four response shapes; exactly one
// field is populated per spec.
type responseEnvelope struct {
	Hello    *string          `json:"hello,omitempty"`
	OK       *json.RawMessage `json:"ok,omitempty"`
	Error    *string          `json:"error,omitempty"`
	Stack    string           `json:"stack,omitempty"`
	Callback *wireCallback    `json:"callback,omitempty"`
}

type wireCallback struct {
	CBID   string          `json:"cbid"`
	Cookie json.RawMessage `json:"cookie,omitempty"`
	Invoke *wireInvoke     `json:"invoke,omitempty"`
	Get    *wireGet        `json:"get,omitempty"`
	Set    *wireSet        `json:"set,omitempty"`
}

type wireInvoke struct {
	ObjRef string          `json:"objref"`
	Method string          `json:"method"`
	Args   []wireval.Value `json:"args"`
}

type wireGet struct {
	ObjRef   string `json:"objref"`
	Property string `json:"property"`
}

type wireSet struct {
	ObjRef   string        `json:"objref"`
	Property string        `json:"property"`
	Value    wireval.Value `json:"value"`
}

type completePayload struct {
	CBID   string         `json:"cbid"`
	Result *wireval.Value `json:"result,omitempty"`
	Err    *string        `json:"err,omitempty"`
}

// buildMetaSuffix matches a trailing "+something" version qualifier,
// stripped before comparing host-expected and kernel-reported versions.
var buildMetaSuffix = regexp.MustCompile(`\+[a-z0-9]+$`)

func stripBuildMeta(v string) string {
	return buildMetaSuffix.ReplaceAllString(v, "")
}

// Engine drives one kernel connection end to end.
type Engine struct {
	mu sync.Mutex

	codec      *wire.Codec
	registry   *registry.Registry
	dispatcher *callback.Dispatcher
	expected   string

	// terminate forcibly severs the kernel connection (closing its
	// pipes / killing the process) so a blocked, uncancellable pipe
	// read unblocks with an error. Used only by RequestWithTimeout.
	terminate func()

	state State
	depth int
	fault error
}

func New(codec *wire.Codec, reg *registry.Registry, dispatcher *callback.Dispatcher, expectedVersion string, terminate func()) *Engine {
	return &Engine{
		codec:      codec,
		registry:   reg,
		dispatcher: dispatcher,
		expected:   expectedVersion,
		terminate:  terminate,
		state:      StateUnstarted,
	}
}

// State reports the engine's current state, for diagnostics.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Handshake performs the version handshake if it has not happened yet;
// it is a no-op if the engine is already past it. Request performs the
// same handshake lazily on its first call, but a caller that wants to
// fail fast on a misconfigured or incompatible kernel before issuing
// any real request should call this explicitly, typically under a
// timeout enforced by severing the connection (see
// kernel.Supervisor.Kill) rather than by ctx, since the underlying pipe
// read cannot be interrupted.
func (e *Engine) Handshake(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePoisoned {
		return &jerr.PoisonedError{Cause: e.fault}
	}
	if e.state != StateUnstarted {
		return nil
	}
	return e.handshakeLocked()
}

// Poison forcibly marks the engine poisoned with err. Used by the
// kernel's exit-monitor when the child dies outside of any in-flight
// request, so the next caller gets a clear terminated error instead of
// blocking on a pipe that will never produce another line.
func (e *Engine) Poison(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.poisonLocked(err)
}

// Request serializes one request, writes it, and reads responses until
// the terminal ok/error for it arrives, dispatching any callback
// interrupts synchronously along the way.
func (e *Engine) Request(ctx context.Context, tag string, payload any) (wireval.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePoisoned {
		return wireval.Value{}, &jerr.PoisonedError{Cause: e.fault}
	}
	if e.state == StateUnstarted {
		if err := e.handshakeLocked(); err != nil {
			return wireval.Value{}, err
		}
	}

	e.drainPendingReleasesLocked()
	if e.state == StatePoisoned {
		return wireval.Value{}, &jerr.PoisonedError{Cause: e.fault}
	}

	return e.requestLocked(tag, payload)
}

// RequestWithTimeout bounds Request by d. The pipe read it may be
// blocked on cannot be interrupted safely, so on expiry the kernel
// connection is severed (via terminate) to force the blocked call to
// fail and poison the engine, rather than abandoning it silently.
func (e *Engine) RequestWithTimeout(ctx context.Context, d time.Duration, tag string, payload any) (wireval.Value, error) {
	if d <= 0 {
		return e.Request(ctx, tag, payload)
	}

	type result struct {
		v   wireval.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := e.Request(ctx, tag, payload)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-time.After(d):
		if e.terminate != nil {
			e.terminate()
		}
		<-done
		return wireval.Value{}, fmt.Errorf("jsiihost: request %q timed out after %s", tag, d)
	}
}

func (e *Engine) handshakeLocked() error {
	e.state = StateHandshaking

	var env responseEnvelope
	if err := e.codec.ReadMessage(&env); err != nil {
		return e.poisonLocked(err)
	}
	if env.Hello == nil {
		return e.poisonLocked(&jerr.ProtocolViolationError{Reason: "first kernel line was not a hello"})
	}

	actual := stripBuildMeta(*env.Hello)
	expected := stripBuildMeta(e.expected)
	if e.expected != "" && actual != expected {
		return e.poisonLocked(&jerr.IncompatibleRuntimeError{Expected: e.expected, Actual: *env.Hello})
	}

	e.state = StateReady
	logging.Op().Debug("handshake complete", "version", actual)
	return nil
}

func (e *Engine) requestLocked(tag string, payload any) (wireval.Value, error) {
	if err := e.codec.WriteMessage(Request{Tag: tag, Payload: payload}); err != nil {
		return wireval.Value{}, e.poisonLocked(err)
	}
	e.state = StateAwaitingResponse
	return e.readUntilTerminalLocked()
}

func (e *Engine) readUntilTerminalLocked() (wireval.Value, error) {
	for {
		var env responseEnvelope
		if err := e.codec.ReadMessage(&env); err != nil {
			return wireval.Value{}, e.poisonLocked(err)
		}

		switch {
		case env.OK != nil:
			e.state = StateReady
			var v wireval.Value
			if err := json.Unmarshal(*env.OK, &v); err != nil {
				return wireval.Value{}, e.poisonLocked(&jerr.ProtocolViolationError{Reason: "parsing ok value", Cause: err})
			}
			return v, nil

		case env.Error != nil:
			e.state = StateReady
			return wireval.Value{}, &jerr.KernelError{Message: *env.Error, Stack: env.Stack}

		case env.Callback != nil:
			if err := e.runCallbackLocked(env.Callback); err != nil {
				return wireval.Value{}, err
			}
			continue

		case env.Hello != nil:
			return wireval.Value{}, e.poisonLocked(&jerr.ProtocolViolationError{Reason: "received a second hello after handshake"})

		default:
			return wireval.Value{}, e.poisonLocked(&jerr.ProtocolViolationError{Reason: "response carries none of ok/error/callback"})
		}
	}
}

// runCallbackLocked dispatches one callback interrupt and sends its
// completion, then resumes reading for the original request's
// response. The nesting depth tracks how many callback levels are
// currently open; it balances back to its prior value once this
// completion is sent.
func (e *Engine) runCallbackLocked(wc *wireCallback) error {
	e.depth++
	e.state = StateInCallback
	metrics.RecordCallback(e.depth)

	desc := callback.Descriptor{CBID: wc.CBID}
	if wc.Invoke != nil {
		desc.Invoke = &callback.InvokeCall{ObjRef: wc.Invoke.ObjRef, Method: wc.Invoke.Method, Args: wc.Invoke.Args}
	}
	if wc.Get != nil {
		desc.Get = &callback.PropertyGet{ObjRef: wc.Get.ObjRef, Property: wc.Get.Property}
	}
	if wc.Set != nil {
		desc.Set = &callback.PropertySet{ObjRef: wc.Set.ObjRef, Property: wc.Set.Property, Value: wc.Set.Value}
	}

	completion := e.dispatcher.Dispatch(desc)

	if err := e.codec.WriteMessage(Request{Tag: "complete", Payload: completePayload{
		CBID:   completion.CBID,
		Result: completion.Result,
		Err:    completion.Err,
	}}); err != nil {
		return e.poisonLocked(err)
	}

	e.depth--
	if e.depth == 0 {
		e.state = StateAwaitingResponse
	}
	return nil
}

// drainPendingReleasesLocked issues a `del` for every handle queued by
// a proxy finalizer since the last acquisition, consuming each del's
// response before the next caller's request goes out. It runs only
// here — never from inside an in-flight request's read loop — so it
// can never desynchronize FIFO ordering on the wire.
func (e *Engine) drainPendingReleasesLocked() {
	for _, handle := range e.registry.DrainPending() {
		if !e.registry.Release(handle) {
			continue
		}
		if err := e.codec.WriteMessage(Request{Tag: "del", Payload: map[string]string{"objref": handle}}); err != nil {
			e.poisonLocked(err)
			return
		}
		var env responseEnvelope
		if err := e.codec.ReadMessage(&env); err != nil {
			e.poisonLocked(err)
			return
		}
	}
}

func (e *Engine) poisonLocked(err error) error {
	e.state = StatePoisoned
	e.fault = err
	logging.Op().Warn("engine poisoned", "err", err)
	return err
}
