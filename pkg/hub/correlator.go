package hub

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/protocol"
)

// Resolver receives the outcome of a request exactly once: the response, or
// one of ErrNotConnected, ErrRequestTimeout, ErrDuplicateTag or ErrClosed.
type Resolver func(*protocol.Response, error)

type pendingRequest struct {
	resolve Resolver
	timer   *time.Timer
}

func (r *pendingRequest) stop() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

// RemoteError is an {"error": ...} response from the hub.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: hub error: %s", e.Command, e.Message)
}

// nextTag returns "<unix millis>_<n>" with n strictly increasing per client.
func (c *Client) nextTag() string {
	n := c.tagSeq.Add(1) - 1
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + strconv.FormatUint(n, 10)
}

// SendRequest writes req and returns its tag, generating one when req has
// none. resolve may be nil; otherwise it is registered before the frame is
// written and later called exactly once. SendRequest does not block and may
// be called from an event handler.
func (c *Client) SendRequest(req *protocol.Request, resolve Resolver) string {
	r := *req
	if r.Tag == "" {
		r.Tag = c.nextTag()
	}
	if !c.command(sendCmd{env: &r, tag: r.Tag, resolve: resolve}) && resolve != nil {
		resolve(nil, ErrClosed)
	}
	return r.Tag
}

// Request sends command with params and waits for the response. An error
// body from the hub is returned as a *RemoteError together with the
// response.
func (c *Client) Request(ctx context.Context, command string, params any) (*protocol.Response, error) {
	req, err := protocol.NewRequest(command, params)
	if err != nil {
		return nil, err
	}

	type result struct {
		resp *protocol.Response
		err  error
	}
	ch := make(chan result, 1)
	tag := c.SendRequest(req, func(resp *protocol.Response, err error) {
		ch <- result{resp, err}
	})

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		c.command(cancelCmd{tag: tag})
		return nil, ctx.Err()
	case <-c.done:
		select {
		case r = <-ch:
		default:
			return nil, ErrClosed
		}
	}

	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", command, r.err)
	}
	if text, ok := r.resp.ErrorText(); ok {
		return r.resp, &RemoteError{Command: command, Message: text}
	}
	return r.resp, nil
}

// send runs on the loop for every outbound frame posted by a caller.
func (c *Client) send(cmd sendCmd) {
	if cmd.resolve != nil {
		c.track(cmd.tag, cmd.resolve)
	}
	if c.conn != nil && c.write(c.conn, cmd.env) {
		if cmd.env.Kind() == protocol.KindRequest {
			c.opts.metrics.request("sent")
		}
		return
	}

	if cmd.env.Kind() == protocol.KindRequest {
		c.opts.metrics.request("not_connected")
	}
	c.log.Debug("frame not sent", zap.String("kind", string(cmd.env.Kind())), zap.String("tag", cmd.tag))
	if cmd.resolve != nil {
		c.finish(cmd.tag, nil, ErrNotConnected)
	}
}

func (c *Client) write(conn *connection, env protocol.Envelope) bool {
	return conn.ch.Send(protocol.Frame{Envelope: env})
}

func (c *Client) track(tag string, resolve Resolver) {
	if old, ok := c.pending[tag]; ok {
		old.stop()
		old.resolve(nil, ErrDuplicateTag)
	}

	rec := &pendingRequest{resolve: resolve}
	if d := c.opts.requestTimeout; d > 0 {
		rec.timer = time.AfterFunc(d, func() {
			c.post(requestExpired{tag: tag, rec: rec})
		})
	}
	c.pending[tag] = rec
	c.opts.metrics.setPending(len(c.pending))
}

// finish removes the record for tag and resolves it. It reports false when
// no request is pending under tag.
func (c *Client) finish(tag string, resp *protocol.Response, err error) bool {
	rec, ok := c.pending[tag]
	if !ok {
		return false
	}
	delete(c.pending, tag)
	rec.stop()
	c.opts.metrics.setPending(len(c.pending))
	rec.resolve(resp, err)
	return true
}

func (c *Client) expire(tag string, rec *pendingRequest) {
	if c.pending[tag] != rec {
		return
	}
	c.log.Debug("request expired", zap.String("tag", tag))
	c.opts.metrics.request("timeout")
	c.finish(tag, nil, ErrRequestTimeout)
}

func (c *Client) cancel(tag string) {
	rec, ok := c.pending[tag]
	if !ok {
		return
	}
	delete(c.pending, tag)
	rec.stop()
	c.opts.metrics.setPending(len(c.pending))
}

func (c *Client) onResponse(conn *connection, resp *protocol.Response) {
	if c.finish(resp.Tag, resp, nil) {
		c.opts.metrics.request("answered")
		return
	}
	conn.log.Debug("response without pending request", zap.String("tag", resp.Tag))
	c.opts.metrics.unmatchedResponse()
}
