package hub

import (
	"encoding/json"

	"github.com/smart-dag/txevent/pkg/protocol"
)

// Event topics published by the client.
const (
	TopicConnected  = "connected"
	TopicError      = "error"
	TopicServerLost = "server_lost"
	TopicJoint      = "joint"
	TopicNotify     = "NotifyMessage"
	TopicIn         = "in"
	TopicOut        = "out"
)

// On subscribes fn to topic. fn must be a function whose parameters match
// what the topic publishes: nothing for connected and server_lost, an error
// for error, json.RawMessage for joint, *protocol.Notification for
// NotifyMessage and protocol.Transfer for in and out.
//
// Handlers run on the client's event loop. They may call SendRequest, Watch
// and the accessors, but must not wait on Request, Connect or Close of the
// same client, and must not subscribe.
func (c *Client) On(topic string, fn any) error {
	return c.bus.Subscribe(topic, fn)
}

// Off removes a handler added with On.
func (c *Client) Off(topic string, fn any) error {
	return c.bus.Unsubscribe(topic, fn)
}

func (c *Client) OnConnected(fn func()) *Client {
	c.bus.Subscribe(TopicConnected, fn)
	return c
}

func (c *Client) OnError(fn func(error)) *Client {
	c.bus.Subscribe(TopicError, fn)
	return c
}

func (c *Client) OnServerLost(fn func()) *Client {
	c.bus.Subscribe(TopicServerLost, fn)
	return c
}

func (c *Client) OnJoint(fn func(json.RawMessage)) *Client {
	c.bus.Subscribe(TopicJoint, fn)
	return c
}

func (c *Client) OnNotify(fn func(*protocol.Notification)) *Client {
	c.bus.Subscribe(TopicNotify, fn)
	return c
}

func (c *Client) OnIn(fn func(protocol.Transfer)) *Client {
	c.bus.Subscribe(TopicIn, fn)
	return c
}

func (c *Client) OnOut(fn func(protocol.Transfer)) *Client {
	c.bus.Subscribe(TopicOut, fn)
	return c
}

func (c *Client) publish(topic string, args ...any) {
	c.bus.Publish(topic, args...)
}
