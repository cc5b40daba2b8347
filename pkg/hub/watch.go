package hub

import (
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/protocol"
)

// Watch adds addresses to the watch set and asks the hub to push
// transactions touching them. Empty and repeated addresses are ignored. The
// whole set is sent again every time a connection settles.
func (c *Client) Watch(addresses ...string) *Client {
	c.command(watchCmd{addrs: append([]string(nil), addresses...)})
	return c
}

func (c *Client) addWatch(addrs []string) {
	send := c.watch.add(addrs...)
	if len(send) == 0 {
		return
	}
	view := c.watch.list()
	c.watchView.Store(&view)

	if c.conn == nil || !c.conn.live {
		c.log.Debug("watch deferred until connected", zap.Strings("addresses", send))
		return
	}
	c.sendWatch(c.conn, send)
}

func (c *Client) sendWatch(conn *connection, addrs []string) {
	req, err := protocol.NewRequest(protocol.CmdWatch, addrs)
	if err != nil {
		conn.log.Error("encode watch", zap.Error(err))
		return
	}
	req.Tag = c.nextTag()
	if !c.write(conn, req) {
		conn.log.Debug("watch not sent", zap.Strings("addresses", addrs))
		return
	}
	conn.log.Debug("watch sent", zap.Strings("addresses", addrs))
}
