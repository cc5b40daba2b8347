package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smart-dag/txevent/pkg/protocol"
)

// UnitRange selects units by main chain index, both ends inclusive.
type UnitRange struct {
	From int64 `json:"from_mci"`
	To   int64 `json:"to_mci"`
}

// Call sends command and decodes the response body into out, which may be
// nil.
func (c *Client) Call(ctx context.Context, command string, params, out any) error {
	resp, err := c.Request(ctx, command, params)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Response) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Response, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", command, err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, command string, params any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.Call(ctx, command, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetNetInfo(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, protocol.CmdGetNetInfo, nil)
}

func (c *Client) GetJoint(ctx context.Context, unit string) (json.RawMessage, error) {
	return c.raw(ctx, protocol.CmdGetJoint, unit)
}

func (c *Client) GetUnitByMCI(ctx context.Context, mci int64) (json.RawMessage, error) {
	return c.raw(ctx, protocol.CmdGetUnitByMCI, mci)
}

func (c *Client) GetUnitsByRange(ctx context.Context, r UnitRange) (json.RawMessage, error) {
	return c.raw(ctx, protocol.CmdGetUnitsByRange, r)
}

func (c *Client) GetUnitsByAddress(ctx context.Context, address string) (json.RawMessage, error) {
	return c.raw(ctx, protocol.CmdGetUnitsByAddress, address)
}

func (c *Client) GetBalance(ctx context.Context, address string) (json.RawMessage, error) {
	return c.raw(ctx, protocol.CmdGetBalance, address)
}

// SendSubscribe asks the hub to stream units after lastMCI to this peer and
// returns the request tag.
func (c *Client) SendSubscribe(lastMCI int64) (string, error) {
	req, err := protocol.NewRequest(protocol.CmdSubscribe, protocol.SubscribeParams{
		PeerID:  c.peerID,
		LastMCI: lastMCI,
	})
	if err != nil {
		return "", fmt.Errorf("subscribe: %w", err)
	}
	return c.SendRequest(req, nil), nil
}

// SendError tells the hub about a client side error.
func (c *Client) SendError(message string) error {
	js, err := protocol.NewJustsaying(protocol.SubjectError, message)
	if err != nil {
		return fmt.Errorf("error justsaying: %w", err)
	}
	if !c.command(sendCmd{env: js}) {
		return ErrClosed
	}
	return nil
}

// SendErrorResponse answers the hub's request tag with an error body.
func (c *Client) SendErrorResponse(tag, message string) error {
	resp, err := protocol.NewResponse(tag, protocol.ErrorBody{Error: message})
	if err != nil {
		return fmt.Errorf("error response %s: %w", tag, err)
	}
	if !c.command(sendCmd{env: resp, tag: tag}) {
		return ErrClosed
	}
	return nil
}
