package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/channel"
	"github.com/smart-dag/txevent/pkg/protocol"
)

// connection is one channel generation. Timers and the heartbeat belong to
// it and die with it.
type connection struct {
	gen        uint64
	id         string
	address    string
	ch         channel.Channel
	log        *zap.Logger
	live       bool
	handshaken bool
	down       bool

	timers        []*time.Timer
	stopHeartbeat context.CancelFunc
}

func (cn *connection) after(d time.Duration, fn func()) {
	cn.timers = append(cn.timers, time.AfterFunc(d, fn))
}

func (cn *connection) close() {
	cn.stopHeartbeat()
	for _, t := range cn.timers {
		t.Stop()
	}
	cn.timers = nil
	cn.live = false
	cn.ch.Close()
}

type connectResult struct {
	ok  bool
	err error
}

type pendingConnect struct {
	gen   uint64
	reply chan connectResult
	timer *time.Timer
}

// Connect replaces the current connection with one to address. It returns
// true once the channel is open and the handshake has settled, false if that
// did not happen within the connect timeout. A non-nil error means the
// attempt was not started (ErrEmptyAddress, ErrClosed) or ctx ended first;
// in the latter case the attempt carries on in the background.
//
// A lost connection is re-established automatically; Connect is only needed
// once, or to switch hubs.
func (c *Client) Connect(ctx context.Context, address string) (bool, error) {
	reply := make(chan connectResult, 1)
	if !c.command(connectCmd{address: address, reply: reply}) {
		return false, ErrClosed
	}

	select {
	case res := <-reply:
		return res.ok, res.err
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.done:
		select {
		case res := <-reply:
			return res.ok, res.err
		default:
			return false, ErrClosed
		}
	}
}

func (c *Client) connect(cmd connectCmd) {
	c.teardown()
	c.resolveConnect(connectResult{})

	if cmd.address == "" {
		cmd.reply <- connectResult{err: ErrEmptyAddress}
		return
	}

	addr := channel.Normalize(cmd.address)
	c.lastAddress = addr
	c.address.Store(&addr)
	c.attempt = 0

	conn := c.open()
	pc := &pendingConnect{gen: conn.gen, reply: cmd.reply}
	pc.timer = time.AfterFunc(c.opts.connectTimeout, func() {
		c.post(connectExpired{pc: pc})
	})
	c.connecting = pc
}

func (c *Client) resolveConnect(res connectResult) {
	pc := c.connecting
	if pc == nil {
		return
	}
	c.connecting = nil
	if pc.timer != nil {
		pc.timer.Stop()
	}
	pc.reply <- res
}

// teardown closes the current connection, if any.
func (c *Client) teardown() {
	if c.conn == nil {
		return
	}
	c.conn.close()
	c.conn.log.Debug("channel closed")
	c.conn = nil
	c.setLive(false)
}

func (c *Client) setLive(up bool) {
	c.live.Store(up)
	c.opts.metrics.setConnected(up)
}

// open starts a new connection generation against the last address.
func (c *Client) open() *connection {
	c.gen++
	gen := c.gen
	conn := &connection{
		gen:           gen,
		id:            uuid.NewString(),
		address:       c.lastAddress,
		ch:            c.opts.dialer(),
		stopHeartbeat: func() {},
	}
	conn.log = c.log.With(zap.String("conn_id", conn.id), zap.String("address", conn.address))
	c.conn = conn

	conn.log.Debug("opening channel", zap.Uint64("generation", gen))
	err := conn.ch.Open(conn.address, func(ev channel.Event) {
		c.post(channelEvent{gen: gen, ev: ev})
	})
	if err != nil {
		c.lost(conn, fmt.Errorf("open %s: %w", conn.address, err))
	}
	return conn
}

func (c *Client) onChannelEvent(ev channelEvent) {
	conn := c.current(ev.gen)
	if conn == nil || conn.down {
		return
	}

	switch ev.ev.Type {
	case channel.Opened:
		c.onOpened(conn)
	case channel.Message:
		c.route(conn, ev.ev.Payload)
	case channel.Closed:
		c.lost(conn, nil)
	case channel.Errored:
		c.lost(conn, ev.ev.Err)
	}
}

func (c *Client) onOpened(conn *connection) {
	c.attempt = 0
	conn.log.Info("channel opened")

	if !c.sendJustsaying(conn, protocol.SubjectVersion, c.opts.version) {
		conn.log.Warn("version not sent")
	}
	conn.live = true
	c.setLive(true)
	c.startHeartbeat(conn)

	gen := conn.gen
	conn.after(c.opts.settleDelay, func() {
		c.post(settleFired{gen: gen})
	})
}

func (c *Client) onSettled(conn *connection) {
	if !conn.live || conn.handshaken {
		return
	}
	conn.handshaken = true
	conn.log.Info("connected")
	c.publish(TopicConnected)

	if pc := c.connecting; pc != nil && pc.gen == conn.gen {
		c.resolveConnect(connectResult{ok: true})
	}
	if c.watch.len() > 0 {
		c.sendWatch(conn, c.watch.list())
	}
}

// lost handles the terminal event of conn: err is nil for an orderly close.
func (c *Client) lost(conn *connection, err error) {
	if conn.down {
		return
	}
	conn.down = true
	conn.stopHeartbeat()
	conn.ch.Close()
	conn.live = false
	conn.handshaken = false
	c.setLive(false)

	if err != nil {
		conn.log.Warn("channel failed", zap.Error(err))
		c.publish(TopicError, err)
	} else {
		conn.log.Warn("channel closed by hub")
	}
	c.publish(TopicServerLost)

	delay := c.opts.policy.Delay(c.attempt)
	c.attempt++
	conn.log.Info("reconnect scheduled", zap.Duration("delay", delay), zap.Int("attempt", c.attempt))

	gen := conn.gen
	conn.after(delay, func() {
		c.post(reconnectFired{gen: gen})
	})
}

func (c *Client) reconnect(conn *connection) {
	conn.log.Info("reconnecting")
	c.teardown()
	c.opts.metrics.reconnect()
	c.open()
}
