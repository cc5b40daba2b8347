// Package hubtest runs a small in-process ledger hub. It speaks the same
// envelope protocol as a real hub, answers the common requests, records what
// clients send and can push notifications or misbehave on demand. The
// mock-hub command and the client tests both use it.
package hubtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/protocol"
)

const recordBuffer = 256

// HandlerFunc serves one request command. A returned error becomes an
// {"error": ...} response.
type HandlerFunc func(params json.RawMessage) (any, error)

// Server is a fake hub. Mount it on any mux or use Start in tests.
type Server struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	peers    map[*peer]struct{}
	handlers map[string]HandlerFunc
	watched  map[string]struct{}
	silent   bool

	requests    chan *protocol.Request
	responses   chan *protocol.Response
	justsayings chan *protocol.Justsaying

	tagMu sync.Mutex
	tag   int

	// URL is set by Start.
	URL string
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHandler serves command with fn, replacing any built-in handler.
func WithHandler(command string, fn HandlerFunc) Option {
	return func(s *Server) {
		s.handlers[command] = fn
	}
}

// NewServer returns a hub that answers heartbeat, watch, subscribe and
// get_net_info.
func NewServer(opts ...Option) *Server {
	s := &Server{
		log:         zap.NewNop(),
		peers:       make(map[*peer]struct{}),
		handlers:    make(map[string]HandlerFunc),
		watched:     make(map[string]struct{}),
		requests:    make(chan *protocol.Request, recordBuffer),
		responses:   make(chan *protocol.Response, recordBuffer),
		justsayings: make(chan *protocol.Justsaying, recordBuffer),
	}
	s.handlers[protocol.CmdHeartbeat] = func(json.RawMessage) (any, error) { return nil, nil }
	s.handlers[protocol.CmdWatch] = s.handleWatch
	s.handlers[protocol.CmdSubscribe] = func(json.RawMessage) (any, error) {
		return protocol.SubscribeReply{PeerID: "hubtest", IsSource: true}, nil
	}
	s.handlers[protocol.CmdGetNetInfo] = func(json.RawMessage) (any, error) {
		return map[string]any{"peer_id": "hubtest", "version": "0.1.0", "last_mci": 0}, nil
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and serves the connection until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	p := newPeer(conn)
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	s.log.Info("client connected", zap.String("remote", r.RemoteAddr))

	defer func() {
		s.remove(p)
		s.log.Info("client disconnected", zap.String("remote", r.RemoteAddr))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.receive(p, data)
	}
}

func (s *Server) remove(p *peer) {
	s.mu.Lock()
	if _, ok := s.peers[p]; ok {
		delete(s.peers, p)
		p.close()
	}
	s.mu.Unlock()
}

func (s *Server) receive(p *peer, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		s.log.Debug("bad frame from client", zap.Error(err))
		return
	}

	switch env := env.(type) {
	case *protocol.Request:
		record(s.requests, env)
		s.serve(p, env)
	case *protocol.Response:
		record(s.responses, env)
	case *protocol.Justsaying:
		record(s.justsayings, env)
	}
}

func record[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func (s *Server) serve(p *peer, req *protocol.Request) {
	s.mu.RLock()
	fn, ok := s.handlers[req.Command]
	silent := s.silent
	s.mu.RUnlock()

	if silent || req.Tag == "" {
		return
	}

	var body any
	if !ok {
		body = protocol.ErrorBody{Error: "unsupported command: " + req.Command}
	} else if result, err := fn(req.Params); err != nil {
		body = protocol.ErrorBody{Error: err.Error()}
	} else {
		body = result
	}

	resp, err := protocol.NewResponse(req.Tag, body)
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		return
	}
	p.write(resp)
}

func (s *Server) handleWatch(params json.RawMessage) (any, error) {
	var addrs []string
	if err := json.Unmarshal(params, &addrs); err != nil {
		return nil, fmt.Errorf("watch params: %w", err)
	}
	s.mu.Lock()
	for _, a := range addrs {
		s.watched[a] = struct{}{}
	}
	s.mu.Unlock()
	return "ok", nil
}

// Requests yields every request received from clients.
func (s *Server) Requests() <-chan *protocol.Request { return s.requests }

// Responses yields every response received from clients.
func (s *Server) Responses() <-chan *protocol.Response { return s.responses }

// Justsayings yields every justsaying received from clients.
func (s *Server) Justsayings() <-chan *protocol.Justsaying { return s.justsayings }

// Watched reports whether a client asked to watch addr.
func (s *Server) Watched(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.watched[addr]
	return ok
}

// WatchedAddresses lists every address clients asked to watch, sorted.
func (s *Server) WatchedAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.watched))
	for a := range s.watched {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// SetSilent stops (or resumes) answering requests.
func (s *Server) SetSilent(silent bool) {
	s.mu.Lock()
	s.silent = silent
	s.mu.Unlock()
}

// ClientCount is the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Push sends env to every connected client.
func (s *Server) Push(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	s.PushRaw(data)
	return nil
}

// PushRaw sends data unchanged, well formed or not.
func (s *Server) PushRaw(data []byte) {
	for _, p := range s.snapshot() {
		if !p.enqueue(data) {
			s.log.Warn("client too slow, disconnecting")
			s.remove(p)
		}
	}
}

// PushNotify sends a notify justsaying.
func (s *Server) PushNotify(n protocol.Notification) error {
	js, err := protocol.NewJustsaying(protocol.SubjectNotify, n)
	if err != nil {
		return err
	}
	return s.Push(js)
}

// PushJoint sends a joint justsaying with body as is.
func (s *Server) PushJoint(body json.RawMessage) error {
	return s.Push(&protocol.Justsaying{Subject: protocol.SubjectJoint, Body: body})
}

// Ask sends a request to every client and returns its tag. Answers show up
// on Responses.
func (s *Server) Ask(command string, params any) (string, error) {
	req, err := protocol.NewRequest(command, params)
	if err != nil {
		return "", err
	}
	s.tagMu.Lock()
	s.tag++
	req.Tag = fmt.Sprintf("hub_%d", s.tag)
	s.tagMu.Unlock()
	return req.Tag, s.Push(req)
}

// Drop cuts every client connection without a close handshake.
func (s *Server) Drop() {
	for _, p := range s.snapshot() {
		p.conn.UnderlyingConn().Close()
	}
}

// Hangup closes every client connection with a normal close frame.
func (s *Server) Hangup() {
	for _, p := range s.snapshot() {
		p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
	}
}

func (s *Server) snapshot() []*peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// Address is URL without its scheme, the form users type.
func (s *Server) Address() string {
	return strings.TrimPrefix(s.URL, "ws://")
}

var errNoPeers = errors.New("no connected clients")

// WaitForClients blocks until n clients are connected or d elapses.
func (s *Server) WaitForClients(n int, d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if s.ClientCount() >= n {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errNoPeers
}

type peer struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newPeer(conn *websocket.Conn) *peer {
	p := &peer{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go p.writePump()
	return p
}

func (p *peer) writePump() {
	defer p.conn.Close()
	for msg := range p.send {
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (p *peer) write(env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		return
	}
	p.enqueue(data)
}

// enqueue reports false when the peer cannot keep up.
func (p *peer) enqueue(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return true
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}
