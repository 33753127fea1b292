package registry

import "testing"

func TestResolveIsIdempotentForSameHandle(t *testing.T) {
	r := New()
	p1 := r.Resolve("Calc@1", []string{"IFoo"})
	p2 := r.Resolve("Calc@1", nil)
	if p1 != p2 {
		t.Fatalf("expected identity preservation, got distinct proxies")
	}
}

func TestResolveDistinctHandlesDistinctProxies(t *testing.T) {
	r := New()
	p1 := r.Resolve("Calc@1", nil)
	p2 := r.Resolve("Calc@2", nil)
	if p1 == p2 {
		t.Fatalf("distinct handles must not share a proxy")
	}
}

func TestTrackAssignsSentinelPrefixedHandle(t *testing.T) {
	r := New()
	obj := &struct{ n int }{n: 1}
	h := r.Track(obj, []string{"IGreeter"})
	if len(h) < 6 || h[:5] != "jsii@" {
		t.Fatalf("expected jsii@-prefixed handle, got %q", h)
	}
}

func TestTrackReturnsSameHandleForSameObject(t *testing.T) {
	r := New()
	obj := &struct{ n int }{n: 1}
	h1 := r.Track(obj, nil)
	h2 := r.Track(obj, nil)
	if h1 != h2 {
		t.Fatalf("expected stable handle, got %q then %q", h1, h2)
	}
}

func TestHostObjectLookup(t *testing.T) {
	r := New()
	obj := "a host callback target"
	h := r.Track(obj, nil)

	got, ok := r.HostObject(h)
	if !ok || got != obj {
		t.Fatalf("expected to find tracked object, got %v ok=%v", got, ok)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := New()
	r.Resolve("Calc@1", nil)

	first := r.Release("Calc@1")
	second := r.Release("Calc@1")
	if !first {
		t.Fatal("first release should request a del")
	}
	if second {
		t.Fatal("second release must be a no-op")
	}
}

func TestReleaseOfUnknownHandleIsFirstCall(t *testing.T) {
	r := New()
	if !r.Release("never-seen") {
		t.Fatal("releasing a never-tracked handle is still a first call")
	}
	if r.Release("never-seen") {
		t.Fatal("second release of the same handle must be a no-op")
	}
}
