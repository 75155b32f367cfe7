package engine

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"time"

	"github.com/wutong/mltest/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
	"resty.dev/v3"
)

const (
	defaultNamespace    = "/engine"
	defaultStartTimeout = 90 * time.Second
	healthPollInterval  = 500 * time.Millisecond
	shutdownGrace       = 10 * time.Second
)

// Options configures a Bridge. URL is the base HTTP address of the engine's
// bridge endpoint. An empty Command attaches to an already-running bridge
// instead of launching one.
type Options struct {
	Command       string
	Args          []string
	URL           string
	Namespace     string
	StartTimeout  time.Duration
	InvokeTimeout time.Duration
}

// reply carries one addpath/invoke response from the bridge's event
// listeners to the waiting caller.
type reply struct {
	ok      bool
	message string
}

// Bridge is the concrete Engine backed by an external engine process that
// serves a /health readiness endpoint and a socket.io namespace with
// addpath/invoke/quit events. All calls are strictly sequential; the Bridge
// is not safe for concurrent use and the harness never shares it.
type Bridge struct {
	opts    Options
	state   State
	cmd     *exec.Cmd
	exited  chan error
	manager *socket.Manager
	client  *socket.Socket
	replies chan reply
	emitFn  func(ev string, args ...any)
}

var _ Engine = (*Bridge)(nil)

// NewBridge returns an unstarted Bridge. Zero-value options fall back to
// the package defaults.
func NewBridge(opts Options) *Bridge {
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	return &Bridge{
		opts:    opts,
		state:   StateNotStarted,
		replies: make(chan reply, 1),
	}
}

// State reports the current lifecycle state.
func (b *Bridge) State() State {
	return b.state
}

// Start launches the engine process (unless attaching), waits for its health
// endpoint to come up, then connects the socket.io client. Engine startup
// can take several seconds.
func (b *Bridge) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("engine", b.opts.URL)

	if b.state != StateNotStarted {
		return fmt.Errorf("%w: session already %s", ErrUnavailable, b.state)
	}

	if b.opts.Command != "" {
		logger.Debug("Launching engine process.", "command", b.opts.Command, "args", b.opts.Args)
		cmd := exec.Command(b.opts.Command, b.opts.Args...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("%w: failed to launch %q: %v", ErrUnavailable, b.opts.Command, err)
		}
		b.cmd = cmd
		b.exited = make(chan error, 1)
		go func() { b.exited <- cmd.Wait() }()
	} else {
		logger.Debug("No engine command configured, attaching to running bridge.")
	}

	deadline := time.Now().Add(b.opts.StartTimeout)
	if err := b.awaitHealthy(ctx, deadline); err != nil {
		b.abort()
		return err
	}
	logger.Debug("Engine health endpoint is up.")

	if err := b.connect(ctx, deadline); err != nil {
		b.abort()
		return err
	}

	b.state = StateRunning
	logger.Debug("Engine session established.", "namespace", b.opts.Namespace)
	return nil
}

// awaitHealthy polls the bridge's health endpoint until it answers, the
// launched process dies, or the startup deadline passes.
func (b *Bridge) awaitHealthy(ctx context.Context, deadline time.Time) error {
	hc := resty.New().SetTimeout(healthPollInterval)
	defer hc.Close()

	healthURL := b.opts.URL + "/health"
	for {
		if b.exited != nil {
			select {
			case err := <-b.exited:
				b.exited = nil
				return fmt.Errorf("%w: engine process exited during startup: %v", ErrUnavailable, err)
			default:
			}
		}

		resp, err := hc.R().SetContext(ctx).Get(healthURL)
		if err == nil && resp.IsSuccess() {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: health endpoint %s not ready within %s", ErrUnavailable, healthURL, b.opts.StartTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(healthPollInterval):
		}
	}
}

// connect dials the bridge's socket.io namespace and wires the reply
// listeners. It blocks until the connection is acknowledged or the startup
// deadline passes.
func (b *Bridge) connect(ctx context.Context, deadline time.Time) error {
	parsedURL, err := url.Parse(b.opts.URL)
	if err != nil {
		return fmt.Errorf("%w: failed to parse URL: %v", ErrUnavailable, err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)

	b.manager = socket.NewManager(baseURL, opts)
	b.client = b.manager.Socket(b.opts.Namespace, opts)
	b.emitFn = func(ev string, args ...any) { b.client.Emit(ev, args...) }

	// The client keeps reconnecting in the background, so connect_error can
	// fire again after the first result was consumed. The sends must never
	// block a library listener goroutine.
	b.client.On(types.EventName("connect"), func(...any) {
		offerResult(connected, nil)
	})
	b.client.On(types.EventName("connect_error"), func(errs ...any) {
		offerResult(connected, fmt.Errorf("%w: %v", ErrUnavailable, firstArg(errs)))
	})

	b.client.On(types.EventName("addpath:ok"), func(...any) {
		b.replies <- reply{ok: true}
	})
	b.client.On(types.EventName("addpath:error"), func(data ...any) {
		b.replies <- reply{message: diagnostic(data)}
	})
	b.client.On(types.EventName("invoke:ok"), func(...any) {
		b.replies <- reply{ok: true}
	})
	b.client.On(types.EventName("invoke:error"), func(data ...any) {
		b.replies <- reply{message: diagnostic(data)}
	})

	b.client.Connect()

	var connectErr error
	select {
	case connectErr = <-connected:
	case <-ctx.Done():
		connectErr = fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case <-time.After(time.Until(deadline)):
		connectErr = fmt.Errorf("%w: socket connection not established within %s", ErrUnavailable, b.opts.StartTimeout)
	}
	if connectErr != nil {
		// Stop the reconnect loop; the session is being torn down.
		b.client.Disconnect()
	}
	return connectErr
}

// AddPath registers a directory with the engine's search path.
func (b *Bridge) AddPath(ctx context.Context, dir string) error {
	if b.state != StateRunning {
		return fmt.Errorf("%w (state: %s)", ErrNotRunning, b.state)
	}
	ctxlog.FromContext(ctx).Debug("Registering search path.", "dir", dir)

	b.drainStale()
	b.emitFn("addpath", map[string]any{"path": dir})
	res, err := b.await(ctx)
	if err != nil {
		return &PathError{Dir: dir, Message: err.Error()}
	}
	if !res.ok {
		return &PathError{Dir: dir, Message: res.message}
	}
	return nil
}

// Invoke runs the named zero-argument routine inside the engine and waits
// for it to finish. With no invoke timeout configured this blocks for as
// long as the routine runs; a hung engine call blocks the harness.
func (b *Bridge) Invoke(ctx context.Context, routine string) error {
	if b.state != StateRunning {
		return fmt.Errorf("%w (state: %s)", ErrNotRunning, b.state)
	}
	ctxlog.FromContext(ctx).Debug("Invoking remote routine.", "routine", routine)

	b.drainStale()
	b.emitFn("invoke", map[string]any{"routine": routine})
	res, err := b.await(ctx)
	if err != nil {
		return &InvocationError{Routine: routine, Message: err.Error()}
	}
	if !res.ok {
		return &InvocationError{Routine: routine, Message: res.message}
	}
	return nil
}

// drainStale discards replies left over from calls that timed out or were
// cancelled before the engine answered. Without this, the engine's late
// answer would be consumed by the next call and misattributed to it.
func (b *Bridge) drainStale() {
	for {
		select {
		case <-b.replies:
		default:
			return
		}
	}
}

// await blocks until the bridge answers the outstanding emit. Calls are
// strictly sequential, so at most one reply is ever pending.
func (b *Bridge) await(ctx context.Context) (reply, error) {
	var timeout <-chan time.Time
	if b.opts.InvokeTimeout > 0 {
		timeout = time.After(b.opts.InvokeTimeout)
	}
	select {
	case res := <-b.replies:
		return res, nil
	case <-timeout:
		return reply{}, fmt.Errorf("timed out after %s waiting for the engine", b.opts.InvokeTimeout)
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

// Stop releases the session: best-effort quit event, socket disconnect, and
// process reaping. Stopping a session that was never started, or stopping
// twice, is a no-op.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.state != StateRunning {
		ctxlog.FromContext(ctx).Debug("Stop called on inactive session, ignoring.", "state", b.state.String())
		return nil
	}
	b.state = StateStopped

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Stopping engine session.")

	b.emitFn("quit")
	b.client.Disconnect()

	return b.reap(ctx)
}

// reap waits for the launched engine process to exit, killing it after the
// shutdown grace period. Attached sessions have nothing to reap.
func (b *Bridge) reap(ctx context.Context) error {
	if b.cmd == nil || b.exited == nil {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	select {
	case err := <-b.exited:
		b.exited = nil
		if err != nil {
			return fmt.Errorf("engine process exited uncleanly: %w", err)
		}
		return nil
	case <-time.After(shutdownGrace):
		logger.Warn("Engine process did not exit in time, killing it.", "grace", shutdownGrace)
		if err := b.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill engine process: %w", err)
		}
		<-b.exited
		b.exited = nil
		return nil
	}
}

// abort kills a half-started engine process. Startup already failed, so
// there is no point in a graceful quit.
func (b *Bridge) abort() {
	if b.cmd == nil || b.exited == nil {
		return
	}
	_ = b.cmd.Process.Kill()
	<-b.exited
	b.exited = nil
}

// offerResult delivers a connection result without blocking the listener
// goroutine. Results beyond the channel's capacity are dropped; only the
// first one matters to the waiting Start call.
func offerResult(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// firstArg safely extracts the first listener argument for error reporting.
func firstArg(args []any) any {
	if len(args) == 0 {
		return "unknown error"
	}
	return args[0]
}

// diagnostic extracts the engine's diagnostic message from an error event
// payload, which the bridge sends as {"message": "..."} or a bare string.
func diagnostic(data []any) string {
	if len(data) == 0 {
		return "engine reported an error with no diagnostic message"
	}
	switch v := data[0].(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	return fmt.Sprintf("%v", data[0])
}
