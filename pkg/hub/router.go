package hub

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/protocol"
)

const maxLoggedFrame = 256

// route decodes one inbound frame and dispatches it by kind. Frames that do
// not decode are dropped without an event.
func (c *Client) route(conn *connection, payload []byte) {
	env, err := protocol.Decode(payload)
	if err != nil {
		c.drop(conn, payload, err)
		return
	}

	switch env := env.(type) {
	case *protocol.Response:
		c.onResponse(conn, env)
	case *protocol.Justsaying:
		c.onJustsaying(conn, env, payload)
	case *protocol.Request:
		c.onRequest(conn, env)
	}
}

func (c *Client) drop(conn *connection, payload []byte, err error) {
	frame := payload
	if len(frame) > maxLoggedFrame {
		frame = frame[:maxLoggedFrame]
	}
	conn.log.Debug("dropping frame", zap.Error(err), zap.ByteString("frame", frame))
	c.opts.metrics.dropFrame()
}

func (c *Client) onJustsaying(conn *connection, js *protocol.Justsaying, payload []byte) {
	switch js.Subject {
	case protocol.SubjectJoint:
		c.publish(TopicJoint, js.Body)

	case protocol.SubjectNotify:
		n, err := protocol.ParseNotification(js.Body)
		if err != nil {
			c.drop(conn, payload, err)
			return
		}
		c.publish(TopicNotify, n)

		t, ok := Classify(n, c.watch.has)
		if !ok {
			return
		}
		c.opts.metrics.transfer(t.Direction)
		if t.Direction == protocol.DirectionOut {
			c.publish(TopicOut, t)
		} else {
			c.publish(TopicIn, t)
		}

	case protocol.SubjectError:
		conn.log.Warn("hub reported an error", zap.ByteString("body", js.Body))

	case protocol.SubjectVersion:
		conn.log.Debug("hub version", zap.ByteString("body", js.Body))

	default:
		conn.log.Debug("ignoring justsaying", zap.String("subject", js.Subject))
	}
}

// onRequest answers the hub. subscribe and heartbeat are served; anything
// else gets an error response.
func (c *Client) onRequest(conn *connection, req *protocol.Request) {
	if req.Tag == "" {
		conn.log.Debug("ignoring untagged request", zap.String("command", req.Command))
		return
	}

	var body any
	switch req.Command {
	case protocol.CmdSubscribe:
		var params protocol.SubscribeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				conn.log.Debug("bad subscribe params", zap.Error(err))
			}
		}
		peer := params.PeerID
		if peer == "" {
			peer = c.peerID
		}
		body = protocol.SubscribeReply{PeerID: peer, IsSource: false}

	case protocol.CmdHeartbeat:
		body = nil

	default:
		conn.log.Debug("unsupported request", zap.String("command", req.Command))
		body = protocol.ErrorBody{Error: "unsupported command: " + req.Command}
	}

	resp, err := protocol.NewResponse(req.Tag, body)
	if err != nil {
		conn.log.Error("encode response", zap.Error(err))
		return
	}
	if !c.write(conn, resp) {
		conn.log.Debug("response not sent", zap.String("tag", req.Tag))
	}
}

func (c *Client) sendJustsaying(conn *connection, subject string, body any) bool {
	js, err := protocol.NewJustsaying(subject, body)
	if err != nil {
		conn.log.Error("encode justsaying", zap.Error(err))
		return false
	}
	return c.write(conn, js)
}
