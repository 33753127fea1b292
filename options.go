package jsiihost

import (
	"io"
	"time"

	"github.com/oriys/jsiihost/internal/callback"
	"github.com/oriys/jsiihost/internal/config"
)

// Option configures a Client constructed by New.
type Option func(*options)

type options struct {
	cfg             *config.Config
	callbackHandler callback.Handler
	debugSink       io.Writer
	requestTimeout  time.Duration
}

func defaultOptions() options {
	return options{cfg: config.FromEnv()}
}

// WithConfig replaces the environment-derived configuration entirely.
// Most callers should prefer the narrower With* options below; this one
// is for a host process that already loaded its own config.Config (for
// example from a YAML file via config.LoadFromFile).
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithRuntimePath pins the kernel executable to an explicit path,
// overriding JSII_RUNTIME and PATH lookup.
func WithRuntimePath(path string) Option {
	return func(o *options) { o.cfg.RuntimePathOverride = path }
}

// WithFallbackName changes the executable name looked up on PATH when
// no explicit runtime path is configured. Defaults to "jsii-runtime".
func WithFallbackName(name string) Option {
	return func(o *options) { o.cfg.FallbackName = name }
}

// WithDebug enables JSII_DEBUG propagation to the kernel child and
// mirrors its stderr to sink (os.Stderr if sink is nil).
func WithDebug(sink io.Writer) Option {
	return func(o *options) {
		o.cfg.Debug = true
		o.debugSink = sink
	}
}

// WithBootTimeout bounds how long New waits for the kernel's hello line
// during the handshake.
func WithBootTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.BootTimeout = d }
}

// WithGracePeriod bounds how long Close waits for the kernel to exit on
// its own after its stdin is closed, before it is killed.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) { o.cfg.GracePeriod = d }
}

// WithMaxLineBytes bounds a single wire message's length.
func WithMaxLineBytes(n int64) Option {
	return func(o *options) { o.cfg.MaxLineBytes = n }
}

// WithExpectedVersion sets the kernel runtime version the handshake
// must match, after build-metadata stripping. Leaving this empty
// accepts any hello line.
func WithExpectedVersion(version string) Option {
	return func(o *options) { o.cfg.ExpectedVersion = version }
}

// WithRequestTimeout bounds every Client.Request call, and so every
// Invoke/Get/Set/Create/Release/Naming/Stats/Load call built on it
// (see protocol.Engine.RequestWithTimeout). Zero, the default, means
// no timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithCallbackHandler installs the handler that resolves a kernel
// callback (an invoke/get/set directed back at a host-originated
// object) to a real Go method call. A Client constructed without one
// can still make requests; any callback arriving for it resolves to a
// callback error sent back to the kernel.
func WithCallbackHandler(h callback.Handler) Option {
	return func(o *options) { o.callbackHandler = h }
}
