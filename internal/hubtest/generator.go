package hubtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/protocol"
)

var memos = []string{"", "rent", "coffee", "invoice 42", "refund", "payroll", "gift"}

// Generator pushes made-up transfers between a fixed address book and
// whatever clients are watching.
type Generator struct {
	server    *Server
	addresses []string
	interval  time.Duration
	log       *zap.Logger

	mu   sync.Mutex
	rng  *rand.Rand
	unit int
}

func NewGenerator(server *Server, addresses []string, interval time.Duration) *Generator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Generator{
		server:    server,
		addresses: addresses,
		interval:  interval,
		log:       server.log.Named("generator"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start pushes one notification per interval until ctx is done.
func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, ok := g.Next()
			if !ok {
				continue
			}
			if err := g.server.PushNotify(n); err != nil {
				g.log.Warn("push notify", zap.Error(err))
				continue
			}
			g.log.Debug("pushed transfer", zap.String("unit", n.Unit), zap.String("from", n.From))
		}
	}
}

// Next makes up one transfer. It reports false while fewer than two
// addresses are known.
func (g *Generator) Next() (protocol.Notification, bool) {
	book := g.book()
	if len(book) < 2 {
		return protocol.Notification{}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	from := g.rng.Intn(len(book))
	count := 1 + g.rng.Intn(min(3, len(book)-1))
	picked := g.rng.Perm(len(book))

	var to []protocol.Recipient
	for _, i := range picked {
		if i == from {
			continue
		}
		amount := strconv.Itoa(1 + g.rng.Intn(1_000_000))
		to = append(to, protocol.Recipient{Address: book[i], Amount: json.Number(amount)})
		if len(to) == count {
			break
		}
	}

	g.unit++
	return protocol.Notification{
		From:      book[from],
		To:        to,
		Text:      memos[g.rng.Intn(len(memos))],
		Timestamp: time.Now().Unix(),
		Unit:      fmt.Sprintf("mock-unit-%06d", g.unit),
	}, true
}

func (g *Generator) book() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range [][]string{g.addresses, g.server.WatchedAddresses()} {
		for _, a := range list {
			if _, ok := seen[a]; ok || a == "" {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}
