package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/wsbridge/internal/dispatch"
	"github.com/gaspardpetit/wsbridge/internal/logx"
	"github.com/gaspardpetit/wsbridge/internal/metrics"
	"github.com/gaspardpetit/wsbridge/internal/reconnect"
	"github.com/gaspardpetit/wsbridge/internal/rpc"
	"github.com/gaspardpetit/wsbridge/internal/secret"
)

// ErrAlreadyRunning is returned when Run is called while another Run is active.
var ErrAlreadyRunning = errors.New("session loop already running")

// Handler consumes decoded messages. A returned error ends the current
// connection.
type Handler interface {
	Dispatch(ctx context.Context, msg *rpc.Message, out dispatch.Sender) error
}

// Config holds the connection parameters of a Loop.
type Config struct {
	URL          string
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	DialTimeout  time.Duration
	PingInterval time.Duration
	PingTimeout  time.Duration
	WriteTimeout time.Duration
	DialOptions  *websocket.DialOptions
}

func (c *Config) setDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = reconnect.DefaultBase
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = reconnect.DefaultCeiling
	}
	if c.BaseDelay > c.MaxDelay {
		c.BaseDelay = c.MaxDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Status is a point-in-time view of the loop.
type Status struct {
	Connected bool          `json:"connected"`
	Stopping  bool          `json:"stopping"`
	Attempts  int64         `json:"attempts"`
	Sessions  int64         `json:"sessions"`
	Backoff   time.Duration `json:"backoff_ns"`
	LastError string        `json:"last_error,omitempty"`
}

// Loop keeps a single WebSocket session alive, reconnecting with exponential
// backoff until Stop is called or its context ends.
type Loop struct {
	cfg     Config
	handler Handler

	running   atomic.Bool
	stopping  atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	connected atomic.Bool
	attempts  atomic.Int64
	sessions  atomic.Int64
	backoff   atomic.Int64
	lastErr   atomic.Value

	// wait sleeps for d unless ctx ends or the loop is stopped first.
	wait func(ctx context.Context, d time.Duration) error
}

// New constructs a Loop. Zero Config durations fall back to defaults.
func New(cfg Config, h Handler) *Loop {
	cfg.setDefaults()
	l := &Loop{cfg: cfg, handler: h, stopCh: make(chan struct{})}
	l.wait = l.sleep
	l.backoff.Store(int64(cfg.BaseDelay))
	return l
}

// Stop requests the loop to end. It is safe to call more than once and from
// any goroutine; a pending read or backoff sleep is interrupted.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.stopping.Store(true)
		close(l.stopCh)
	})
}

// Stopping reports whether Stop was called.
func (l *Loop) Stopping() bool { return l.stopping.Load() }

// Connected reports whether a session is currently established.
func (l *Loop) Connected() bool { return l.connected.Load() }

// Status returns a snapshot of the loop state.
func (l *Loop) Status() Status {
	s := Status{
		Connected: l.connected.Load(),
		Stopping:  l.stopping.Load(),
		Attempts:  l.attempts.Load(),
		Sessions:  l.sessions.Load(),
		Backoff:   time.Duration(l.backoff.Load()),
	}
	if v, ok := l.lastErr.Load().(string); ok {
		s.LastError = v
	}
	return s
}

// Run connects and serves sessions until Stop is called, in which case it
// returns nil, or until ctx ends, in which case it returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	backoff := l.cfg.BaseDelay
	for !l.stopping.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := l.serve(ctx, &backoff)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if l.stopping.Load() {
			break
		}
		if err == nil {
			continue
		}
		l.lastErr.Store(err.Error())
		logx.Log.Warn().Err(err).Dur("backoff", backoff).Msg("connection error; retrying")
		l.backoff.Store(int64(backoff))
		metrics.SetBackoff(backoff)
		if err := l.wait(ctx, backoff); err != nil {
			return err
		}
		backoff = reconnect.Next(backoff, l.cfg.BaseDelay, l.cfg.MaxDelay)
	}
	logx.Log.Info().Msg("session loop stopped")
	return nil
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return nil
	case <-t.C:
		return nil
	}
}

// serve performs one connection attempt and runs the receive cycle on
// success. A nil error means the peer closed cleanly or Stop was called.
func (l *Loop) serve(ctx context.Context, backoff *time.Duration) error {
	l.attempts.Add(1)
	logx.Log.Info().Str("url", secret.MaskURL(l.cfg.URL)).Msg("connecting to MCP endpoint")

	dialCtx, cancel := context.WithTimeout(ctx, l.cfg.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, l.cfg.URL, l.cfg.DialOptions)
	cancel()
	if err != nil {
		metrics.RecordConnect(false)
		return fmt.Errorf("dial: %w", err)
	}
	metrics.RecordConnect(true)
	conn.SetReadLimit(-1)

	*backoff = l.cfg.BaseDelay
	l.backoff.Store(int64(l.cfg.BaseDelay))
	metrics.SetBackoff(l.cfg.BaseDelay)
	l.sessions.Add(1)
	l.connected.Store(true)
	metrics.SetConnected(true)
	logx.Log.Info().Msg("connected to MCP endpoint")

	// The reader runs for the whole session so pongs and close frames are
	// handled while a message is being dispatched.
	readCtx, cancelRead := context.WithCancel(ctx)
	frames := newFrameQueue()
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		l.read(readCtx, conn, frames)
	}()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.heartbeat(hbCtx, conn)
	}()

	err = l.receive(ctx, frames, &connSender{conn: conn, timeout: l.cfg.WriteTimeout})

	stopHeartbeat()
	wg.Wait()
	l.connected.Store(false)
	metrics.SetConnected(false)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "closing")
	} else {
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
	}
	cancelRead()
	<-readerDone
	return err
}

// read moves inbound frames into q until the connection fails.
func (l *Loop) read(ctx context.Context, conn *websocket.Conn, q *frameQueue) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			q.fail(err)
			return
		}
		metrics.RecordFrame(frameKind(typ))
		q.push(frame{typ: typ, data: data})
	}
}

// receive dispatches queued frames in arrival order. Stop interrupts a wait
// for the next frame but not a dispatch in progress.
func (l *Loop) receive(ctx context.Context, q *frameQueue, out dispatch.Sender) error {
	for !l.stopping.Load() {
		f, ok, err := q.take()
		if !ok {
			select {
			case <-q.ready:
				continue
			case <-l.stopCh:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.stopping.Load() {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logx.Log.Info().Msg("connection closed cleanly by server")
				return nil
			}
			return fmt.Errorf("connection closed with error: %w", err)
		}

		if !utf8.Valid(f.data) {
			metrics.RecordDroppedFrame("invalid_utf8")
			logx.Log.Error().Int("bytes", len(f.data)).Msg("received non-UTF-8 payload; ignoring")
			continue
		}
		msg, err := rpc.Decode(f.data)
		if err != nil {
			metrics.RecordDroppedFrame("invalid_json")
			logx.Log.Error().Err(err).Str("frame", string(f.data)).Msg("failed to parse message")
			continue
		}
		if err := l.handler.Dispatch(ctx, msg, out); err != nil {
			return fmt.Errorf("dispatch %s: %w", msg.Method, err)
		}
	}
	return nil
}

// heartbeat pings the peer and closes the connection when a pong does not
// arrive in time, which ends the receive cycle.
func (l *Loop) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, l.cfg.PingTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil && ctx.Err() == nil {
				logx.Log.Warn().Err(err).Msg("keepalive ping failed")
				_ = conn.Close(websocket.StatusInternalError, "keepalive ping timeout")
				return
			}
		}
	}
}

func frameKind(typ websocket.MessageType) string {
	if typ == websocket.MessageBinary {
		return "binary"
	}
	return "text"
}
