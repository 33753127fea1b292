// Package registry owns the bidirectional table binding kernel handles
// to host proxies, and host objects to the synthetic handles minted
// for them when they are sent into the kernel.
//
// The map+mutex shape follows a single struct guarded by one
// sync.Mutex with *Locked-suffixed internal methods. Proxies are held
// by weak.Pointer so a proxy the host has otherwise dropped does not
// artificially outlive its last reference, with finalizer-funneled
// deletion notifications draining through a bounded channel.
package registry

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"
)

// Proxy is the host-side stand-in for a kernel object instance. It
// holds exactly one handle.
type Proxy struct {
	handle     string
	interfaces []string
}

// JsiiHandle satisfies marshal.Proxy.
func (p *Proxy) JsiiHandle() string { return p.handle }

// JsiiInterfaces satisfies marshal.Proxy.
func (p *Proxy) JsiiInterfaces() []string { return p.interfaces }

// Registry owns proxy lifetime and the host-object tracking table.
type Registry struct {
	mu sync.Mutex

	byHandle map[string]weak.Pointer[Proxy]
	released map[string]struct{}

	hostHandle map[any]string // host object -> handle
	hostObject map[string]any // handle -> host object
	nextHostID uint64

	// pendingDel collects handles whose last host reference was
	// dropped, as observed by proxy finalizers running on arbitrary
	// goroutines. It is drained only when the engine next acquires its
	// lock — never from inside an in-flight request.
	pendingDel chan string
}

// New creates an empty registry. The finalizer-to-drain queue holds up
// to 256 handles, a generous bound for a single kernel process's
// object graph.
func New() *Registry {
	return &Registry{
		byHandle:   make(map[string]weak.Pointer[Proxy]),
		released:   make(map[string]struct{}),
		hostHandle: make(map[any]string),
		hostObject: make(map[string]any),
		pendingDel: make(chan string, 256),
	}
}

// Resolve returns the existing proxy for handle if one is still alive,
// or constructs a new one implementing the listed interfaces. Calling
// Resolve twice with the same handle returns the identical proxy as
// long as the host kept a reference to the first one.
func (r *Registry) Resolve(handle string, fqns []string) *Proxy {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wp, ok := r.byHandle[handle]; ok {
		if p := wp.Value(); p != nil {
			return p
		}
	}

	p := &Proxy{handle: handle, interfaces: fqns}
	r.byHandle[handle] = weak.Make(p)
	reg := r
	runtime.AddCleanup(p, func(h string) {
		reg.enqueueRelease(h)
	}, handle)
	return p
}

// Track assigns a synthetic handle to a host-originated object (one the
// host constructs and passes into the kernel as an interface
// implementation), prefixed with the reserved "jsii@" sentinel, or
// returns the handle already assigned to it.
func (r *Registry) Track(obj any, fqns []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trackLocked(obj, fqns)
}

func (r *Registry) trackLocked(obj any, fqns []string) string {
	if h, ok := r.hostHandle[obj]; ok {
		return h
	}
	id := atomic.AddUint64(&r.nextHostID, 1)
	handle := fmt.Sprintf("jsii@%d", id)
	r.hostHandle[obj] = handle
	r.hostObject[handle] = obj
	_ = fqns
	return handle
}

// HandleFor satisfies marshal.RefAllocator: it is Track under the name
// the marshaler expects.
func (r *Registry) HandleFor(obj any, fqns []string) string {
	return r.Track(obj, fqns)
}

// HostObject returns the host object registered under handle, for the
// callback dispatcher to invoke against.
func (r *Registry) HostObject(handle string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.hostObject[handle]
	return obj, ok
}

// Release marks handle as released and reports whether this call was
// the first to do so for that handle. A caller (the protocol engine)
// should issue the wire `del` request only when issueDel is true —
// release must be idempotent on the wire.
func (r *Registry) Release(handle string) (issueDel bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked(handle)
}

func (r *Registry) releaseLocked(handle string) bool {
	if _, already := r.released[handle]; already {
		return false
	}
	r.released[handle] = struct{}{}
	delete(r.byHandle, handle)
	if obj, ok := r.hostObject[handle]; ok {
		delete(r.hostObject, handle)
		delete(r.hostHandle, obj)
	}
	return true
}

func (r *Registry) enqueueRelease(handle string) {
	select {
	case r.pendingDel <- handle:
	default:
		// Queue full: the handle is dropped and no del is ever sent
		// for it, so the kernel keeps that object until it exits.
		// Registry state is not affected.
	}
}

// DrainPending returns (and clears) the handles queued by proxy
// finalizers since the last drain. Must be called only while the
// caller holds the protocol engine's lock.
func (r *Registry) DrainPending() []string {
	var handles []string
	for {
		select {
		case h := <-r.pendingDel:
			handles = append(handles, h)
		default:
			return handles
		}
	}
}

// Len reports the number of live handle entries, for tests/metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHandle)
}
