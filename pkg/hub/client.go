// Package hub is a client for a ledger hub. It keeps one WebSocket channel
// open to the hub, reconnecting when it is lost, correlates requests with
// responses, answers the hub's own requests, and turns transaction pushes
// into "in" and "out" events for a set of watched addresses.
//
// A Client runs a single event loop that owns all of its state. Channel
// callbacks and timers post events to that loop; public methods queue
// commands for it.
package hub

import (
	"errors"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/channel"
	"github.com/smart-dag/txevent/pkg/protocol"
)

var (
	ErrEmptyAddress   = channel.ErrEmptyAddress
	ErrNotConnected   = errors.New("not connected")
	ErrRequestTimeout = errors.New("request timed out")
	ErrClosed         = errors.New("client closed")
	ErrDuplicateTag   = errors.New("request tag reused")
)

const eventQueueSize = 256

// Client talks to one hub at a time. It is safe for concurrent use.
type Client struct {
	opts   options
	log    *zap.Logger
	bus    evbus.Bus
	peerID string

	events    chan any // channel events and timer fires
	mail      *mailbox // caller commands
	done      chan struct{}
	closeOnce sync.Once

	tagSeq atomic.Uint64

	// Mirrors of loop state for the accessors.
	live      atomic.Bool
	address   atomic.Pointer[string]
	watchView atomic.Pointer[[]string]

	// Owned by the loop goroutine.
	gen         uint64
	conn        *connection
	connecting  *pendingConnect
	attempt     int
	pending     map[string]*pendingRequest
	watch       *watchSet
	lastAddress string
}

// New creates a client and starts its event loop. Call Close to stop it.
func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.peerID == "" {
		o.peerID = NewPeerID()
	}

	c := &Client{
		opts:    o,
		log:     o.logger.Named("hub"),
		bus:     evbus.New(),
		peerID:  o.peerID,
		events:  make(chan any, eventQueueSize),
		mail:    newMailbox(),
		done:    make(chan struct{}),
		pending: make(map[string]*pendingRequest),
		watch:   newWatchSet(),
	}
	empty := ""
	c.address.Store(&empty)
	c.watchView.Store(&[]string{})

	go c.run()
	return c
}

// PeerID is the identifier announced to the hub in subscribe replies.
func (c *Client) PeerID() string {
	return c.peerID
}

// Connected reports whether a hub channel is currently open.
func (c *Client) Connected() bool {
	return c.live.Load()
}

// Address is the normalized address of the last Connect call.
func (c *Client) Address() string {
	return *c.address.Load()
}

// WatchSet returns the watched addresses in the order they were added.
func (c *Client) WatchSet() []string {
	v := *c.watchView.Load()
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// Close disconnects, stops all timers, fails pending requests with ErrClosed
// and stops the event loop. Later calls are no-ops. Close must not be called
// from an event handler.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.command(closeCmd{})
		<-c.done
	})
}

// Events handled by the loop.
type (
	channelEvent struct {
		gen uint64
		ev  channel.Event
	}
	settleFired    struct{ gen uint64 }
	reconnectFired struct{ gen uint64 }
	heartbeatTick  struct{ gen uint64 }
	connectExpired struct{ pc *pendingConnect }
	requestExpired struct {
		tag string
		rec *pendingRequest
	}

	connectCmd struct {
		address string
		reply   chan connectResult
	}
	sendCmd struct {
		env     protocol.Envelope
		tag     string
		resolve Resolver
	}
	cancelCmd struct{ tag string }
	watchCmd  struct{ addrs []string }
	closeCmd  struct{}
)

// command queues a caller command for the loop without blocking. It
// reports false once the client is closed.
func (c *Client) command(cmd any) bool {
	return c.mail.put(cmd)
}

// post hands a channel event or timer fire to the loop, blocking while the
// queue is full. The loop itself never posts. It reports false once the loop
// has stopped.
func (c *Client) post(ev any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.mail.ready:
			cmds := c.mail.take()
			for i, cmd := range cmds {
				if _, ok := cmd.(closeCmd); ok {
					c.shutdown(cmds[i+1:])
					return
				}
				c.handle(cmd)
			}
		}
	}
}

func (c *Client) handle(ev any) {
	switch ev := ev.(type) {
	case channelEvent:
		c.onChannelEvent(ev)
	case settleFired:
		if conn := c.current(ev.gen); conn != nil {
			c.onSettled(conn)
		}
	case reconnectFired:
		if conn := c.current(ev.gen); conn != nil {
			c.reconnect(conn)
		}
	case heartbeatTick:
		if conn := c.current(ev.gen); conn != nil && conn.live {
			c.sendHeartbeat(conn)
		}
	case connectExpired:
		if c.connecting == ev.pc {
			c.log.Warn("connect timed out",
				zap.String("address", c.lastAddress),
				zap.Duration("timeout", c.opts.connectTimeout))
			c.resolveConnect(connectResult{})
		}
	case requestExpired:
		c.expire(ev.tag, ev.rec)
	case connectCmd:
		c.connect(ev)
	case sendCmd:
		c.send(ev)
	case cancelCmd:
		c.cancel(ev.tag)
	case watchCmd:
		c.addWatch(ev.addrs)
	}
}

// current returns the active connection if it has generation gen.
func (c *Client) current(gen uint64) *connection {
	if c.conn == nil || c.conn.gen != gen {
		return nil
	}
	return c.conn
}

// shutdown tears everything down and fails the commands queued behind
// closeCmd.
func (c *Client) shutdown(rest []any) {
	c.teardown()
	c.resolveConnect(connectResult{err: ErrClosed})
	for _, cmd := range append(rest, c.mail.close()...) {
		switch cmd := cmd.(type) {
		case sendCmd:
			if cmd.resolve != nil {
				cmd.resolve(nil, ErrClosed)
			}
		case connectCmd:
			cmd.reply <- connectResult{err: ErrClosed}
		}
	}
	for tag, rec := range c.pending {
		delete(c.pending, tag)
		rec.stop()
		rec.resolve(nil, ErrClosed)
	}
	c.opts.metrics.setPending(0)
	c.log.Debug("client closed")
}
