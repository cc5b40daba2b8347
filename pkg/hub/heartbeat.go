package hub

import (
	"context"
	"time"

	"github.com/smart-dag/txevent/pkg/protocol"
)

// startHeartbeat ticks every heartbeat interval until conn goes down. The
// ticker goroutine only posts; the loop does the sending.
func (c *Client) startHeartbeat(conn *connection) {
	ctx, cancel := context.WithCancel(context.Background())
	conn.stopHeartbeat = cancel

	gen := conn.gen
	interval := c.opts.heartbeatInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !c.post(heartbeatTick{gen: gen}) {
					return
				}
			}
		}
	}()
}

// sendHeartbeat writes a tagged heartbeat request. Nothing waits for the
// answer.
func (c *Client) sendHeartbeat(conn *connection) {
	req := &protocol.Request{Command: protocol.CmdHeartbeat, Tag: c.nextTag()}
	if !c.write(conn, req) {
		conn.log.Debug("heartbeat not sent")
	}
}
