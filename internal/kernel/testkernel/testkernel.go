// Package testkernel is an in-memory double for the kernel child
// process: a pair of io.Pipes standing in for a real jsii-runtime
// binary's stdin/stdout, so a test can script exact wire lines without
// a subprocess dependency.
//
// internal/protocol's own engine_test.go has an equivalent harness
// inlined; this package is the reusable form of the same idea for
// tests in other packages (a Client-level test, for instance) that
// want the same no-subprocess guarantee.
package testkernel

import (
	"bufio"
	"io"
)

// Kernel is the test's end of the pipe pair: Send writes one line as
// if the kernel produced it, RecvLine reads the next line the host
// wrote.
type Kernel struct {
	w       io.WriteCloser
	scanner *bufio.Scanner
}

// New returns a Kernel plus the io.Reader/io.Writer pair that should
// be wired as the host's view of the kernel's stdout/stdin — for
// example passed directly to wire.New, or wrapped by a fake
// kernel.Supervisor-shaped type exposing Stdout()/Stdin() methods.
func New() (k *Kernel, hostStdout io.Reader, hostStdin io.Writer) {
	hostIn, kernelOut := io.Pipe() // kernel writes -> host reads
	kernelIn, hostOut := io.Pipe() // host writes -> kernel reads

	scanner := bufio.NewScanner(kernelIn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	k = &Kernel{w: kernelOut, scanner: scanner}
	return k, hostIn, hostOut
}

// Send writes one line to the host as if the kernel had produced it.
// The pipe is unbuffered, so Send blocks until the host reads the line.
func (k *Kernel) Send(line string) error {
	_, err := k.w.Write([]byte(line + "\n"))
	return err
}

// RecvLine reads the next line the host wrote to the kernel, blocking
// until one arrives. It returns ok=false once the host's stdin closes.
func (k *Kernel) RecvLine() (line string, ok bool) {
	if !k.scanner.Scan() {
		return "", false
	}
	return k.scanner.Text(), true
}

// Close closes the kernel's write end, as a real process exiting would
// close its stdout.
func (k *Kernel) Close() error {
	return k.w.Close()
}

// Hello is a convenience for the common first line of a test script.
func Hello(version string) string {
	return `{"hello":"` + version + `"}`
}
