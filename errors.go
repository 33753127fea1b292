package jsiihost

import "github.com/oriys/jsiihost/internal/jerr"

// The error taxonomy lives in internal/jerr so every internal layer can
// construct and compare these types without importing this package (which
// would create a cycle back into internal/kernel, internal/protocol, ...).
// These aliases are the public names callers use in type switches and
// errors.As.
type (
	// EnvMisconfiguredError means the kernel executable could not be
	// located or launched.
	EnvMisconfiguredError = jerr.EnvMisconfiguredError
	// IncompatibleRuntimeError means the kernel's hello version does
	// not match the host's expected version after build-metadata
	// stripping.
	IncompatibleRuntimeError = jerr.IncompatibleRuntimeError
	// KernelError wraps an { "error": ... } response from the kernel.
	KernelError = jerr.KernelError
	// MarshalError means a value/type mismatch was found before
	// sending or after receiving a value.
	MarshalError = jerr.MarshalError
	// ProtocolViolationError is fatal: an unexpected shape, a
	// truncated line, or pipe EOF mid-stream.
	ProtocolViolationError = jerr.ProtocolViolationError
	// KernelTerminatedError is raised once the kernel process exits
	// unexpectedly; every subsequent Client call fails with it.
	KernelTerminatedError = jerr.KernelTerminatedError
	// HostCallbackError captures a panic/error thrown by host code
	// while servicing a callback.
	HostCallbackError = jerr.HostCallbackError
	// PoisonedError is returned by every Client call once the
	// underlying engine has entered its terminal poisoned state.
	PoisonedError = jerr.PoisonedError
)
