package callback

import (
	"errors"
	"testing"

	"github.com/oriys/jsiihost/internal/wireval"
)

type fakeRegistry struct {
	objects map[string]any
}

func (r *fakeRegistry) HostObject(handle string) (any, bool) {
	v, ok := r.objects[handle]
	return v, ok
}

type fakeHandler struct {
	invoke func(target any, method string, args []wireval.Value) (wireval.Value, error)
	get    func(target any, property string) (wireval.Value, error)
	set    func(target any, property string, value wireval.Value) error
}

func (h *fakeHandler) Invoke(target any, method string, args []wireval.Value) (wireval.Value, error) {
	return h.invoke(target, method, args)
}
func (h *fakeHandler) Get(target any, property string) (wireval.Value, error) {
	return h.get(target, property)
}
func (h *fakeHandler) Set(target any, property string, value wireval.Value) error {
	return h.set(target, property, value)
}

func TestDispatchInvokeSuccess(t *testing.T) {
	reg := &fakeRegistry{objects: map[string]any{"jsii@1": "target"}}
	h := &fakeHandler{invoke: func(target any, method string, args []wireval.Value) (wireval.Value, error) {
		if target != "target" || method != "greet" {
			t.Fatalf("unexpected dispatch: %v %s", target, method)
		}
		return wireval.String("hi"), nil
	}}
	d := New(reg, h)

	c := d.Dispatch(Descriptor{CBID: "cb1", Invoke: &InvokeCall{ObjRef: "jsii@1", Method: "greet"}})
	if c.Err != nil {
		t.Fatalf("unexpected error: %v", *c.Err)
	}
	if c.Result == nil || c.Result.Primitive != "hi" {
		t.Fatalf("unexpected result: %+v", c.Result)
	}
}

func TestDispatchMissingTargetReportsErr(t *testing.T) {
	reg := &fakeRegistry{objects: map[string]any{}}
	d := New(reg, &fakeHandler{})

	c := d.Dispatch(Descriptor{CBID: "cb2", Invoke: &InvokeCall{ObjRef: "jsii@missing", Method: "x"}})
	if c.Err == nil {
		t.Fatal("expected an err for a missing target")
	}
	if c.Result != nil {
		t.Fatal("expected no result alongside an err")
	}
}

func TestDispatchHandlerErrorUnwrapsOneLayer(t *testing.T) {
	reg := &fakeRegistry{objects: map[string]any{"jsii@1": "target"}}
	inner := errors.New("boom from user code")
	h := &fakeHandler{invoke: func(any, string, []wireval.Value) (wireval.Value, error) {
		return wireval.Value{}, &InvocationTargetError{Cause: inner}
	}}
	d := New(reg, h)

	c := d.Dispatch(Descriptor{CBID: "cb3", Invoke: &InvokeCall{ObjRef: "jsii@1", Method: "explode"}})
	if c.Err == nil || *c.Err != inner.Error() {
		t.Fatalf("expected unwrapped inner message, got %v", c.Err)
	}
}

func TestDispatchPanicIsRecoveredAsErr(t *testing.T) {
	reg := &fakeRegistry{objects: map[string]any{"jsii@1": "target"}}
	h := &fakeHandler{invoke: func(any, string, []wireval.Value) (wireval.Value, error) {
		panic("handler exploded")
	}}
	d := New(reg, h)

	c := d.Dispatch(Descriptor{CBID: "cb4", Invoke: &InvokeCall{ObjRef: "jsii@1", Method: "x"}})
	if c.Err == nil || *c.Err != "handler exploded" {
		t.Fatalf("expected recovered panic message, got %v", c.Err)
	}
}

func TestDispatchGetAndSet(t *testing.T) {
	reg := &fakeRegistry{objects: map[string]any{"jsii@1": "target"}}
	h := &fakeHandler{
		get: func(target any, property string) (wireval.Value, error) {
			return wireval.Number(42), nil
		},
		set: func(target any, property string, value wireval.Value) error {
			if value.Primitive != float64(7) {
				t.Fatalf("unexpected set value: %+v", value)
			}
			return nil
		},
	}
	d := New(reg, h)

	got := d.Dispatch(Descriptor{CBID: "cb5", Get: &PropertyGet{ObjRef: "jsii@1", Property: "count"}})
	if got.Result == nil || got.Result.Primitive != float64(42) {
		t.Fatalf("unexpected get result: %+v", got.Result)
	}

	set := d.Dispatch(Descriptor{CBID: "cb6", Set: &PropertySet{ObjRef: "jsii@1", Property: "count", Value: wireval.Number(7)}})
	if set.Err != nil {
		t.Fatalf("unexpected set error: %v", *set.Err)
	}
	if set.Result != nil {
		t.Fatal("expected void success for set, got a result")
	}
}

func TestDispatchDescriptorWithNoPayloadIsErr(t *testing.T) {
	d := New(&fakeRegistry{objects: map[string]any{}}, &fakeHandler{})
	c := d.Dispatch(Descriptor{CBID: "cb7"})
	if c.Err == nil {
		t.Fatal("expected an err for an empty descriptor")
	}
}
