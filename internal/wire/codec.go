// Package wire implements the line-delimited JSON framing used to talk
// to the kernel child process: one JSON object per line, read from its
// stdout and written to its stdin.
//
// Rather than a length-prefixed frame, each message is terminated by
// '\n', and a maximum line length guards against an unbounded read.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/oriys/jsiihost/internal/jerr"
)

// DefaultMaxLineBytes is the default ceiling on a single wire line.
// 4 MiB gives headroom for large struct arguments without being
// unbounded.
const DefaultMaxLineBytes = 4 * 1024 * 1024

// Codec reads and writes line-delimited JSON objects over a kernel
// child's stdio pipes.
type Codec struct {
	r       *bufio.Reader
	w       io.Writer
	maxLine int
	writeMu sync.Mutex
}

// New wraps r (the kernel's stdout) and w (the kernel's stdin) with the
// line-delimited JSON framing. maxLine <= 0 uses DefaultMaxLineBytes.
func New(r io.Reader, w io.Writer, maxLine int) *Codec {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &Codec{
		r:       bufio.NewReaderSize(r, 64*1024),
		w:       w,
		maxLine: maxLine,
	}
}

// ReadMessage reads and parses exactly one line as a JSON object into
// v. A parse failure or an over-long line is fatal and is reported as
// a *jerr.ProtocolViolationError.
func (c *Codec) ReadMessage(v any) error {
	line, err := c.readLine()
	if err != nil {
		if err == io.EOF {
			return &jerr.ProtocolViolationError{Reason: "pipe EOF while awaiting a response line", Cause: err}
		}
		return &jerr.ProtocolViolationError{Reason: "reading a wire line", Cause: err}
	}
	if err := json.Unmarshal(line, v); err != nil {
		return &jerr.ProtocolViolationError{Reason: fmt.Sprintf("parsing wire line %q", truncate(line, 256)), Cause: err}
	}
	return nil
}

// readLine reads up to and including the next '\n', returning the line
// without its terminator, and fails if it would exceed maxLine.
func (c *Codec) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := c.r.ReadLine()
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
		if len(buf) > c.maxLine {
			return nil, fmt.Errorf("wire line exceeds maximum of %d bytes", c.maxLine)
		}
		if !isPrefix {
			return buf, nil
		}
	}
}

// WriteMessage serializes v to compact JSON, writes it on a single
// line followed by '\n', and flushes.
func (c *Codec) WriteMessage(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &jerr.MarshalError{Reason: err.Error()}
	}
	if len(data) > c.maxLine {
		return fmt.Errorf("wire message exceeds maximum of %d bytes", c.maxLine)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.w.Write(data); err != nil {
		return &jerr.ProtocolViolationError{Reason: "writing a wire line", Cause: err}
	}
	if f, ok := c.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
