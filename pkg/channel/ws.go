package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultReadTimeout      = 60 * time.Second
)

// WS is a Channel over a gorilla/websocket connection. Payloads are JSON
// text frames.
type WS struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadTimeout bounds the silence between two inbound frames (or pongs).
	// Pings go out at half this interval. Zero disables both.
	ReadTimeout time.Duration
	Header      http.Header

	mu      sync.Mutex
	writeMu sync.Mutex // serialises data and ping writes
	conn    *websocket.Conn
	handler Handler
	cancel  context.CancelFunc // aborts an in-flight dial
	opened  bool
	closed  bool
	done    bool // terminal event delivered
}

// NewWS returns a WS with the default timeouts.
func NewWS() *WS {
	return &WS{
		HandshakeTimeout: defaultHandshakeTimeout,
		WriteTimeout:     defaultWriteTimeout,
		ReadTimeout:      defaultReadTimeout,
	}
}

// WSDialer returns a Dialer producing WS channels with the given read
// timeout.
func WSDialer(readTimeout time.Duration) Dialer {
	return func() Channel {
		ws := NewWS()
		ws.ReadTimeout = readTimeout
		return ws
	}
}

// Open starts dialing address in the background. Errors returned here are
// usage errors; connection failures arrive as Errored events.
func (w *WS) Open(address string, h Handler) error {
	if address == "" {
		return ErrEmptyAddress
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.opened {
		w.mu.Unlock()
		return errors.New("channel already opened")
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.opened = true
	w.handler = h
	w.cancel = cancel
	w.mu.Unlock()

	go w.dial(ctx, Normalize(address))
	return nil
}

func (w *WS) dial(ctx context.Context, url string) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: w.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, w.Header)
	if err != nil {
		w.finish(Event{Type: Errored, Err: fmt.Errorf("dial %s: %w", url, err)})
		return
	}

	// Closed while dialing: the socket is orphaned, drop it silently.
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		conn.Close()
		return
	}
	w.conn = conn
	w.mu.Unlock()

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	if interval := w.pingInterval(); interval > 0 {
		go w.pingLoop(pingCtx, conn, interval)
	}

	w.emit(Event{Type: Opened})
	w.readPump(conn)
}

func (w *WS) pingInterval() time.Duration {
	return w.ReadTimeout / 2
}

// pingLoop keeps a quiet connection under the read deadline. It exits when
// ctx is cancelled, the connection changes or a ping cannot be written.
func (w *WS) pingLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			cc := w.conn
			w.mu.Unlock()
			if cc != conn {
				return
			}
			w.writeMu.Lock()
			if w.WriteTimeout > 0 {
				conn.SetWriteDeadline(time.Now().Add(w.WriteTimeout))
			}
			err := conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (w *WS) readPump(conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(w.readDeadline())
	})
	conn.SetReadDeadline(w.readDeadline())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			if w.conn == conn {
				w.conn = nil
			}
			w.mu.Unlock()
			conn.Close()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.finish(Event{Type: Closed})
			} else {
				w.finish(Event{Type: Errored, Err: fmt.Errorf("read: %w", err)})
			}
			return
		}

		conn.SetReadDeadline(w.readDeadline())
		w.emit(Event{Type: Message, Payload: data})
	}
}

func (w *WS) readDeadline() time.Time {
	if w.ReadTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(w.ReadTimeout)
}

func (w *WS) emit(ev Event) {
	w.mu.Lock()
	h := w.handler
	if w.closed || w.done {
		h = nil
	}
	w.mu.Unlock()

	if h != nil {
		h(ev)
	}
}

// finish delivers the single terminal event.
func (w *WS) finish(ev Event) {
	w.mu.Lock()
	h := w.handler
	if w.closed || w.done {
		h = nil
	}
	w.done = true
	w.mu.Unlock()

	if h != nil {
		h(ev)
	}
}

// Send encodes v as JSON and writes it as one text frame. It reports false
// when the channel is not open or the write fails.
func (w *WS) Send(v any) bool {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		return false
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(w.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data) == nil
}

// Close detaches the handler, aborts a pending dial and closes the socket.
// It is safe to call on a channel that was never opened, and more than once.
// An event already being delivered when Close runs may still reach the
// handler.
func (w *WS) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.handler = nil
	conn := w.conn
	w.conn = nil
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}
