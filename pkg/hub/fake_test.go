package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smart-dag/txevent/pkg/channel"
	"github.com/smart-dag/txevent/pkg/protocol"
)

const waitFor = 2 * time.Second

// fakeChannel is driven by the test: it opens, fails and delivers frames
// only when told to, and records what the client sends.
type fakeChannel struct {
	dialer   *fakeDialer
	sent     chan protocol.Envelope
	attempts atomic.Int64 // Send calls, including refused ones

	mu      sync.Mutex
	address string
	handler channel.Handler
	orig    channel.Handler
	open    bool
	closed  bool
}

func (f *fakeChannel) Open(address string, h channel.Handler) error {
	if address == "" {
		return channel.ErrEmptyAddress
	}
	f.mu.Lock()
	f.address = address
	f.handler = h
	f.orig = h
	f.mu.Unlock()
	f.dialer.opened <- f
	return nil
}

func (f *fakeChannel) Send(v any) bool {
	f.attempts.Add(1)
	f.mu.Lock()
	ok := f.open && !f.closed
	f.mu.Unlock()
	if !ok {
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	env, err := protocol.Decode(data)
	if err != nil {
		return false
	}
	select {
	case f.sent <- env:
	default:
	}
	return true
}

func (f *fakeChannel) Close() {
	f.mu.Lock()
	f.closed = true
	f.open = false
	f.handler = nil
	f.mu.Unlock()
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) emit(ev channel.Event) {
	f.mu.Lock()
	switch ev.Type {
	case channel.Opened:
		f.open = true
	case channel.Closed, channel.Errored:
		f.open = false
	}
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// emitStale delivers ev through the handler given to Open even after Close,
// like an adapter callback racing with teardown.
func (f *fakeChannel) emitStale(ev channel.Event) {
	f.mu.Lock()
	h := f.orig
	f.mu.Unlock()
	h(ev)
}

func (f *fakeChannel) accept() {
	f.emit(channel.Event{Type: channel.Opened})
}

func (f *fakeChannel) fail(err error) {
	f.emit(channel.Event{Type: channel.Errored, Err: err})
}

func (f *fakeChannel) hangup() {
	f.emit(channel.Event{Type: channel.Closed})
}

func (f *fakeChannel) deliver(t *testing.T, env protocol.Envelope) {
	t.Helper()
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	f.deliverRaw(data)
}

func (f *fakeChannel) deliverRaw(data []byte) {
	f.emit(channel.Event{Type: channel.Message, Payload: data})
}

// next returns the next frame the client sent.
func (f *fakeChannel) next(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case env := <-f.sent:
		return env
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a frame from the client")
		return nil
	}
}

// nextRequest skips frames until a request for command arrives.
func (f *fakeChannel) nextRequest(t *testing.T, command string) *protocol.Request {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case env := <-f.sent:
			if req, ok := env.(*protocol.Request); ok && req.Command == command {
				return req
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s request", command)
			return nil
		}
	}
}

// nextResponse skips frames until a response arrives.
func (f *fakeChannel) nextResponse(t *testing.T) *protocol.Response {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case env := <-f.sent:
			if resp, ok := env.(*protocol.Response); ok {
				return resp
			}
		case <-deadline:
			t.Fatal("timed out waiting for a response")
			return nil
		}
	}
}

// quiet fails if the client sends a frame within wait.
func (f *fakeChannel) quiet(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case env := <-f.sent:
		t.Fatalf("unexpected frame %T", env)
	case <-time.After(wait):
	}
}

type fakeDialer struct {
	opened chan *fakeChannel
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{opened: make(chan *fakeChannel, 16)}
}

func (d *fakeDialer) dial() channel.Channel {
	return &fakeChannel{dialer: d, sent: make(chan protocol.Envelope, 1024)}
}

func (d *fakeDialer) next(t *testing.T) *fakeChannel {
	t.Helper()
	select {
	case f := <-d.opened:
		return f
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for the client to open a channel")
		return nil
	}
}

func (d *fakeDialer) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case <-d.opened:
		t.Fatal("unexpected channel opened")
	case <-time.After(wait):
	}
}

func newTestClient(t *testing.T, d *fakeDialer, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithDialer(d.dial),
		WithLogger(zaptest.NewLogger(t)),
		WithPeerID("me"),
		WithSettleDelay(10 * time.Millisecond),
		WithHeartbeatInterval(time.Hour),
		WithReconnectPolicy(FixedDelay(20 * time.Millisecond)),
	}
	c := New(append(base, opts...)...)
	t.Cleanup(c.Close)
	return c
}

func connectAsync(c *Client, address string) <-chan connectResult {
	ch := make(chan connectResult, 1)
	go func() {
		ok, err := c.Connect(context.Background(), address)
		ch <- connectResult{ok: ok, err: err}
	}()
	return ch
}

func waitResult(t *testing.T, ch <-chan connectResult) connectResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(waitFor):
		t.Fatal("Connect did not return")
		return connectResult{}
	}
}

// connect runs a full successful connect and returns the open channel with
// the version frame consumed.
func connect(t *testing.T, c *Client, d *fakeDialer) *fakeChannel {
	t.Helper()
	res := connectAsync(c, "hub:6615")
	f := d.next(t)
	f.accept()

	js, ok := f.next(t).(*protocol.Justsaying)
	require.True(t, ok)
	require.Equal(t, protocol.SubjectVersion, js.Subject)

	r := waitResult(t, res)
	require.NoError(t, r.err)
	require.True(t, r.ok)
	return f
}

// events records published topics in order.
type events struct {
	mu     sync.Mutex
	topics []string
	in     []protocol.Transfer
	out    []protocol.Transfer
	errs   []error
}

func record(c *Client) *events {
	e := &events{}
	add := func(topic string) {
		e.mu.Lock()
		e.topics = append(e.topics, topic)
		e.mu.Unlock()
	}
	c.OnConnected(func() { add(TopicConnected) }).
		OnServerLost(func() { add(TopicServerLost) }).
		OnError(func(err error) {
			e.mu.Lock()
			e.errs = append(e.errs, err)
			e.mu.Unlock()
			add(TopicError)
		}).
		OnJoint(func(json.RawMessage) { add(TopicJoint) }).
		OnNotify(func(*protocol.Notification) { add(TopicNotify) }).
		OnIn(func(tr protocol.Transfer) {
			e.mu.Lock()
			e.in = append(e.in, tr)
			e.mu.Unlock()
			add(TopicIn)
		}).
		OnOut(func(tr protocol.Transfer) {
			e.mu.Lock()
			e.out = append(e.out, tr)
			e.mu.Unlock()
			add(TopicOut)
		})
	return e
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.topics...)
}

func (e *events) errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

func (e *events) transfers() (in, out []protocol.Transfer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]protocol.Transfer(nil), e.in...), append([]protocol.Transfer(nil), e.out...)
}

func (e *events) count(topic string) int {
	n := 0
	for _, t := range e.list() {
		if t == topic {
			n++
		}
	}
	return n
}
