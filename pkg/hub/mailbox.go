package hub

import "sync"

// mailbox is the FIFO of caller commands. put never blocks, so event
// handlers running on the loop can issue commands without waiting on the
// loop itself.
type mailbox struct {
	mu     sync.Mutex
	items  []any
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// put queues cmd. It reports false once the mailbox is closed.
func (m *mailbox) put(cmd any) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, cmd)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns everything queued so far.
func (m *mailbox) take() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

// close refuses further commands and returns the ones never taken.
func (m *mailbox) close() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	items := m.items
	m.items = nil
	return items
}
