package kernel

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestDebugEnabled(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"0":     false,
		"false": false,
		"False": false,
		"FALSE": false,
		"1":     true,
		"true":  true,
		"yes":   true,
	}
	for in, want := range cases {
		if got := DebugEnabled(in); got != want {
			t.Errorf("DebugEnabled(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResolveExecutableOverrideMissing(t *testing.T) {
	_, err := resolveExecutable("/no/such/path/jsii-runtime", DefaultFallbackName)
	if err == nil {
		t.Fatal("expected an error for a nonexistent override path")
	}
	if _, ok := err.(interface{ Unwrap() error }); !ok {
		t.Fatalf("expected an unwrappable error, got %T", err)
	}
}

func TestResolveExecutableFallsBackToPath(t *testing.T) {
	path, err := resolveExecutable("", "cat")
	if err != nil {
		t.Fatalf("expected cat to resolve on PATH: %v", err)
	}
	if path == "" {
		t.Fatal("expected a non-empty resolved path")
	}
}

func TestStartStdinStdoutRoundTrip(t *testing.T) {
	s := New(Options{FallbackName: "cat"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	if !s.Running() {
		t.Fatal("expected Running() true after Start")
	}
	if s.Pid() == 0 {
		t.Fatal("expected a nonzero pid")
	}

	if _, err := s.Stdin().Write([]byte("ping\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader := bufio.NewReader(s.Stdout())
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "ping\n" {
		t.Fatalf("unexpected echo: %q", line)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s := New(Options{FallbackName: "cat"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())
	pid := s.Pid()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if s.Pid() != pid {
		t.Fatal("second Start should be a no-op, not spawn a new child")
	}
}

func TestStopIsIdempotentAndWaits(t *testing.T) {
	s := New(Options{FallbackName: "cat", GracePeriod: 50 * time.Millisecond})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Running() {
		t.Fatal("expected Running() false after Stop")
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}

func TestKillForceTerminatesAHungChild(t *testing.T) {
	s := New(Options{FallbackName: "cat"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Kill()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Kill did not return in time")
	}
	if s.Running() {
		t.Fatal("expected Running() false after Kill")
	}
}

func TestOnExitFiresOnlyOnUnexpectedExit(t *testing.T) {
	fired := make(chan string, 1)
	s := New(Options{
		FallbackName: "cat",
		OnExit: func(exitErr error, tail string) {
			fired <- tail
		},
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	pid := s.Pid()
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		t.Fatalf("simulating a crash: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnExit to fire after an unexpected exit")
	}
}

func TestOnExitDoesNotFireAfterStop(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := New(Options{
		FallbackName: "cat",
		OnExit:       func(error, string) { fired <- struct{}{} },
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case <-fired:
		t.Fatal("OnExit must not fire for a requested Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebugMirrorsStderrToSink(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available in this environment")
	}

	sink := &syncBuffer{}
	s := New(Options{FallbackName: "sh", Debug: true, DebugSink: sink})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Stdin().Write([]byte("echo to-stderr >&2\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if !containsTail(sink, "to-stderr") {
		t.Fatalf("expected DebugSink to contain mirrored stderr, got %q", sink.data)
	}
}

func containsTail(b *syncBuffer, sub string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.data), sub)
}

type syncBuffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	return len(p), nil
}
