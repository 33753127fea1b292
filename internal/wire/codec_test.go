package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/oriys/jsiihost/internal/jerr"
)

func TestWriteMessageIsNewlineTerminatedSingleLine(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, &buf, 0)

	if err := c.WriteMessage(map[string]any{"ok": 3.0}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if got := buf.String(); got != `{"ok":3}`+"\n" {
		t.Fatalf("unexpected wire bytes: %q", got)
	}
}

func TestReadMessageRoundTrip(t *testing.T) {
	r := strings.NewReader(`{"hello":"1.2.3"}` + "\n")
	c := New(r, &bytes.Buffer{}, 0)

	var msg struct {
		Hello string `json:"hello"`
	}
	if err := c.ReadMessage(&msg); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Hello != "1.2.3" {
		t.Fatalf("want 1.2.3, got %q", msg.Hello)
	}
}

func TestReadMessageRejectsOverlongLine(t *testing.T) {
	huge := strings.Repeat("a", 100) + "\n"
	r := strings.NewReader(huge)
	c := New(r, &bytes.Buffer{}, 10)

	var v any
	if err := c.ReadMessage(&v); err == nil {
		t.Fatal("expected an error for an over-long line")
	}
}

func TestReadMessageEOFIsProtocolViolation(t *testing.T) {
	r := strings.NewReader("")
	c := New(r, &bytes.Buffer{}, 0)
	var v any
	err := c.ReadMessage(&v)
	var pv *jerr.ProtocolViolationError
	if !errors.As(err, &pv) {
		t.Fatalf("expected a ProtocolViolationError on EOF, got %v (%T)", err, err)
	}
}

func TestReadMessageMalformedJSONIsFatal(t *testing.T) {
	r := strings.NewReader("not json\n")
	c := New(r, &bytes.Buffer{}, 0)
	var v any
	if err := c.ReadMessage(&v); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestMultipleMessagesOneLineEach(t *testing.T) {
	r := strings.NewReader("{\"a\":1}\n{\"b\":2}\n")
	c := New(r, &bytes.Buffer{}, 0)

	var first, second map[string]float64
	if err := c.ReadMessage(&first); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := c.ReadMessage(&second); err != nil {
		t.Fatalf("second: %v", err)
	}
	if first["a"] != 1 || second["b"] != 2 {
		t.Fatalf("unexpected: %+v %+v", first, second)
	}
}
