// Package callback resolves a callback descriptor (a request from the
// kernel to the host, embedded inside what would otherwise be a plain
// response frame) to a host method invocation, and marshals its result
// or error back into a completion the engine can send onward.
package callback

import (
	"fmt"

	"github.com/oriys/jsiihost/internal/logging"
	"github.com/oriys/jsiihost/internal/wireval"
)

// Descriptor is the `{ "cbid", "cookie"?, "invoke"?|"get"?|"set"? }`
// wire shape of one callback request.
type Descriptor struct {
	CBID   string
	Cookie any

	Invoke *InvokeCall
	Get    *PropertyGet
	Set    *PropertySet
}

type InvokeCall struct {
	ObjRef string
	Method string
	Args   []wireval.Value
}

type PropertyGet struct {
	ObjRef   string
	Property string
}

type PropertySet struct {
	ObjRef   string
	Property string
	Value    wireval.Value
}

// Completion is sent back to the kernel as the `complete` request
// payload: exactly one of Result/Err is set, both nil meaning void
// success.
type Completion struct {
	CBID   string
	Result *wireval.Value
	Err    *string
}

// Registry is the subset of internal/registry.Registry the dispatcher
// needs: resolving a callback's objref to the host object it was
// tracked against.
type Registry interface {
	HostObject(handle string) (any, bool)
}

// InvocationTargetError wraps a panic/error raised by the actual user
// method underneath one layer of dispatch machinery (e.g. a reflection
// call wrapper). The dispatcher unwraps exactly one such layer when
// reporting the callback error, so a wrapped failure surfaces the
// user's own message rather than the wrapper's.
type InvocationTargetError struct {
	Cause error
}

func (e *InvocationTargetError) Error() string { return e.Cause.Error() }
func (e *InvocationTargetError) Unwrap() error { return e.Cause }

// Handler performs the actual invocation of a resolved host object's
// method/property. Generated host bindings supply this; it is the one
// piece of the callback path this core cannot implement generically,
// since only the bindings know how to turn a method name and wire
// arguments into a real Go call.
type Handler interface {
	Invoke(target any, method string, args []wireval.Value) (wireval.Value, error)
	Get(target any, property string) (wireval.Value, error)
	Set(target any, property string, value wireval.Value) error
}

// Dispatcher resolves descriptors against a Registry and a Handler.
type Dispatcher struct {
	registry Registry
	handler  Handler
}

func New(registry Registry, handler Handler) *Dispatcher {
	return &Dispatcher{registry: registry, handler: handler}
}

// Dispatch runs one callback descriptor to completion. It never panics
// and never returns an error to its caller: any host-side failure
// (missing target, handler error, or handler panic) is folded into the
// Completion's Err field instead, since a bad callback must never take
// down the whole client.
func (d *Dispatcher) Dispatch(desc Descriptor) (completion Completion) {
	completion.CBID = desc.CBID

	defer func() {
		if r := recover(); r != nil {
			msg := panicMessage(r)
			completion.Result = nil
			completion.Err = &msg
			logging.Op().Error("callback handler panicked", "cbid", desc.CBID, "err", msg)
		}
	}()

	var objref string
	switch {
	case desc.Invoke != nil:
		objref = desc.Invoke.ObjRef
	case desc.Get != nil:
		objref = desc.Get.ObjRef
	case desc.Set != nil:
		objref = desc.Set.ObjRef
	default:
		errMsg := "callback descriptor carries none of invoke/get/set"
		completion.Err = &errMsg
		return completion
	}

	target, ok := d.registry.HostObject(objref)
	if !ok {
		errMsg := fmt.Sprintf("no host object registered for %q", objref)
		completion.Err = &errMsg
		return completion
	}

	var result wireval.Value
	var err error
	switch {
	case desc.Invoke != nil:
		result, err = d.handler.Invoke(target, desc.Invoke.Method, desc.Invoke.Args)
	case desc.Get != nil:
		result, err = d.handler.Get(target, desc.Get.Property)
	case desc.Set != nil:
		err = d.handler.Set(target, desc.Set.Property, desc.Set.Value)
	}

	if err != nil {
		msg := innermostMessage(err)
		completion.Err = &msg
		logging.Op().Error("callback handler returned an error", "cbid", desc.CBID, "err", msg)
		return completion
	}
	if desc.Set != nil {
		// A successful set carries neither result nor err: void success.
		return completion
	}
	completion.Result = &result
	return completion
}

// innermostMessage reports the user method's own message when exactly
// one layer of InvocationTargetError wraps it, else the error's plain
// text.
func innermostMessage(err error) string {
	if ite, ok := err.(*InvocationTargetError); ok {
		return ite.Cause.Error()
	}
	return err.Error()
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return innermostMessage(err)
	}
	return fmt.Sprintf("%v", r)
}
