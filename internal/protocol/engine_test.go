package protocol

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"github.com/oriys/jsiihost/internal/callback"
	"github.com/oriys/jsiihost/internal/jerr"
	"github.com/oriys/jsiihost/internal/registry"
	"github.com/oriys/jsiihost/internal/wire"
	"github.com/oriys/jsiihost/internal/wireval"
)

// fakeKernel lets a test script exact wire lines as if it were the
// kernel child process, independent of the engine's own codec.
type fakeKernel struct {
	t       *testing.T
	scanner *bufio.Scanner
	w       io.Writer
}

func (k *fakeKernel) send(line string) {
	k.t.Helper()
	if _, err := k.w.Write([]byte(line + "\n")); err != nil {
		k.t.Fatalf("fake kernel write: %v", err)
	}
}

func (k *fakeKernel) recvLine() string {
	k.t.Helper()
	if !k.scanner.Scan() {
		k.t.Fatalf("fake kernel expected a line, got: %v", k.scanner.Err())
	}
	return k.scanner.Text()
}

type harness struct {
	engine   *Engine
	kernel   *fakeKernel
	reg      *registry.Registry
	hostIn   *io.PipeReader
	kernelIn *io.PipeReader
}

func newHarness(t *testing.T, expected string, handler callback.Handler) *harness {
	t.Helper()
	hostIn, kernelOut := io.Pipe() // kernel -> host
	kernelIn, hostOut := io.Pipe() // host -> kernel

	codec := wire.New(hostIn, hostOut, 0)
	reg := registry.New()
	if handler == nil {
		handler = noCallbacksHandler{}
	}
	dispatcher := callback.New(reg, handler)
	engine := New(codec, reg, dispatcher, expected, nil)

	kernel := &fakeKernel{t: t, scanner: bufio.NewScanner(kernelIn), w: kernelOut}
	kernel.scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &harness{engine: engine, kernel: kernel, reg: reg, hostIn: hostIn, kernelIn: kernelIn}
}

type noCallbacksHandler struct{}

func (noCallbacksHandler) Invoke(any, string, []wireval.Value) (wireval.Value, error) {
	return wireval.Value{}, nil
}
func (noCallbacksHandler) Get(any, string) (wireval.Value, error) { return wireval.Value{}, nil }
func (noCallbacksHandler) Set(any, string, wireval.Value) error  { return nil }

func TestHandshakeSuccessThenSimpleCall(t *testing.T) {
	h := newHarness(t, "1.2.3+xyz", nil)

	go func() {
		h.kernel.send(`{"hello":"1.2.3+abc"}`)
		req := h.kernel.recvLine()
		if req != `{"invoke":{"method":"add","objref":"Calc@1"}}` {
			t.Errorf("unexpected request line: %s", req)
		}
		h.kernel.send(`{"ok":3}`)
	}()

	v, err := h.engine.Request(context.Background(), "invoke", map[string]any{"objref": "Calc@1", "method": "add"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Primitive != float64(3) {
		t.Fatalf("unexpected result: %+v", v)
	}
	if got := h.engine.State(); got != StateReady {
		t.Fatalf("expected Ready after ok, got %v", got)
	}
}

func TestHandshakeMismatchPoisons(t *testing.T) {
	h := newHarness(t, "1.2.3", nil)

	go h.kernel.send(`{"hello":"1.2.4"}`)

	_, err := h.engine.Request(context.Background(), "invoke", map[string]any{})
	var incompat *jerr.IncompatibleRuntimeError
	if !asIncompatible(err, &incompat) {
		t.Fatalf("expected IncompatibleRuntimeError, got %v (%T)", err, err)
	}
	if incompat.Expected != "1.2.3" || incompat.Actual != "1.2.4" {
		t.Fatalf("unexpected versions: %+v", incompat)
	}
	if got := h.engine.State(); got != StatePoisoned {
		t.Fatalf("expected Poisoned, got %v", got)
	}

	// A poisoned engine fails every further call without touching the wire.
	_, err2 := h.engine.Request(context.Background(), "invoke", map[string]any{})
	var poisoned *jerr.PoisonedError
	if !asPoisoned(err2, &poisoned) {
		t.Fatalf("expected PoisonedError on subsequent call, got %v (%T)", err2, err2)
	}
}

func asIncompatible(err error, target **jerr.IncompatibleRuntimeError) bool {
	if v, ok := err.(*jerr.IncompatibleRuntimeError); ok {
		*target = v
		return true
	}
	return false
}

func asPoisoned(err error, target **jerr.PoisonedError) bool {
	if v, ok := err.(*jerr.PoisonedError); ok {
		*target = v
		return true
	}
	return false
}

func TestErrorResponseReturnsKernelErrorAndStaysReady(t *testing.T) {
	h := newHarness(t, "1.0.0", nil)

	go func() {
		h.kernel.send(`{"hello":"1.0.0"}`)
		h.kernel.recvLine()
		h.kernel.send(`{"error":"divide by zero","stack":"at frame 1"}`)
	}()

	_, err := h.engine.Request(context.Background(), "invoke", map[string]any{})
	kerr, ok := err.(*jerr.KernelError)
	if !ok {
		t.Fatalf("expected *jerr.KernelError, got %v (%T)", err, err)
	}
	if kerr.Message != "divide by zero" || kerr.Stack != "at frame 1" {
		t.Fatalf("unexpected kernel error: %+v", kerr)
	}
	if got := h.engine.State(); got != StateReady {
		t.Fatalf("expected Ready after an error response, got %v", got)
	}
}

func TestNestedCallbackSuccessRoundTrips(t *testing.T) {
	handler := callbackHandlerFunc{
		invoke: func(target any, method string, args []wireval.Value) (wireval.Value, error) {
			return wireval.Number(7), nil
		},
	}
	h := newHarness(t, "1.0.0", handler)
	hostObj := "greeter"
	handle := h.reg.Track(hostObj, []string{"IGreeter"})

	go func() {
		h.kernel.send(`{"hello":"1.0.0"}`)
		h.kernel.recvLine() // original invoke request
		h.kernel.send(`{"callback":{"cbid":"cb1","invoke":{"objref":"` + handle + `","method":"g","args":[]}}}`)
		complete := h.kernel.recvLine()
		if complete != `{"complete":{"cbid":"cb1","result":7}}` {
			t.Errorf("unexpected complete line: %s", complete)
		}
		h.kernel.send(`{"ok":14}`)
	}()

	v, err := h.engine.Request(context.Background(), "invoke", map[string]any{"objref": "Calc@1", "method": "f"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Primitive != float64(14) {
		t.Fatalf("unexpected final result: %+v", v)
	}
}

func TestHostErrorInsideCallbackNeverSurfacesLocally(t *testing.T) {
	handler := callbackHandlerFunc{
		invoke: func(target any, method string, args []wireval.Value) (wireval.Value, error) {
			return wireval.Value{}, &callback.InvocationTargetError{Cause: boomErr{}}
		},
	}
	h := newHarness(t, "1.0.0", handler)
	handle := h.reg.Track("greeter", nil)

	go func() {
		h.kernel.send(`{"hello":"1.0.0"}`)
		h.kernel.recvLine()
		h.kernel.send(`{"callback":{"cbid":"cb1","invoke":{"objref":"` + handle + `","method":"g","args":[]}}}`)
		complete := h.kernel.recvLine()
		if complete != `{"complete":{"cbid":"cb1","err":"boom"}}` {
			t.Errorf("unexpected complete line: %s", complete)
		}
		h.kernel.send(`{"ok":0}`)
	}()

	v, err := h.engine.Request(context.Background(), "invoke", map[string]any{"objref": "Calc@1", "method": "f"})
	if err != nil {
		t.Fatalf("host-side callback error must not surface: %v", err)
	}
	if v.Primitive != float64(0) {
		t.Fatalf("unexpected final result: %+v", v)
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

type callbackHandlerFunc struct {
	invoke func(target any, method string, args []wireval.Value) (wireval.Value, error)
}

func (f callbackHandlerFunc) Invoke(target any, method string, args []wireval.Value) (wireval.Value, error) {
	return f.invoke(target, method, args)
}
func (f callbackHandlerFunc) Get(any, string) (wireval.Value, error) { return wireval.Value{}, nil }
func (f callbackHandlerFunc) Set(any, string, wireval.Value) error  { return nil }

func TestRequestWithTimeoutExpiresWhenKernelNeverReplies(t *testing.T) {
	h := newHarness(t, "1.0.0", nil)
	h.engine.terminate = func() {
		// Simulate the supervisor severing the connection: closing the
		// kernel->host pipe unblocks the engine's blocked read with an
		// error, the same way a killed kernel process would.
		h.hostIn.Close()
	}

	go h.kernel.send(`{"hello":"1.0.0"}`)
	go io.Copy(io.Discard, h.kernelIn) // kernel never replies to the request itself

	start := time.Now()
	_, err := h.engine.RequestWithTimeout(context.Background(), 30*time.Millisecond, "invoke", map[string]any{})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatal("returned before the timeout elapsed")
	}
}
