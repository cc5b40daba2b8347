package hub

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/channel"
	"github.com/smart-dag/txevent/pkg/protocol"
)

const (
	DefaultAddress           = "ws://127.0.0.1:6615"
	DefaultHeartbeatInterval = 3 * time.Second
	DefaultConnectTimeout    = 5 * time.Second
	DefaultSettleDelay       = 500 * time.Millisecond
	DefaultReconnectDelay    = 3 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultReadTimeout       = 60 * time.Second
)

type options struct {
	peerID            string
	logger            *zap.Logger
	dialer            channel.Dialer
	policy            ReconnectPolicy
	heartbeatInterval time.Duration
	connectTimeout    time.Duration
	settleDelay       time.Duration
	requestTimeout    time.Duration
	metrics           *Metrics
	version           protocol.Version
}

func defaultOptions() options {
	return options{
		logger:            zap.NewNop(),
		dialer:            channel.WSDialer(DefaultReadTimeout),
		policy:            FixedDelay(DefaultReconnectDelay),
		heartbeatInterval: DefaultHeartbeatInterval,
		connectTimeout:    DefaultConnectTimeout,
		settleDelay:       DefaultSettleDelay,
		requestTimeout:    DefaultRequestTimeout,
		version:           protocol.DefaultVersion,
	}
}

// Option configures a Client.
type Option func(*options)

// WithPeerID sets the peer identifier announced in subscribe replies.
func WithPeerID(id string) Option {
	return func(o *options) {
		o.peerID = id
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialer replaces the channel factory.
func WithDialer(d channel.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithReconnectPolicy sets how long to wait before each reconnect attempt.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.heartbeatInterval = d
		}
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.settleDelay = d
		}
	}
}

// WithRequestTimeout sets how long a request waits for its response. Zero
// keeps pending requests until a response arrives or the client closes.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.requestTimeout = d
		}
	}
}

// WithMetrics attaches Prometheus collectors created by NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithVersion overrides the handshake identification.
func WithVersion(v protocol.Version) Option {
	return func(o *options) {
		o.version = v
	}
}

// NewPeerID returns 32 random bytes, hex encoded.
func NewPeerID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("hub: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
