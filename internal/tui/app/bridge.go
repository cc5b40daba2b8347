package app

import (
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smart-dag/txevent/pkg/hub"
	"github.com/smart-dag/txevent/pkg/protocol"
)

// ConnectedMsg reports a completed handshake.
type ConnectedMsg struct {
	Address string
	Watched int
}

// LostMsg reports that the hub connection dropped.
type LostMsg struct{}

type ErrorMsg struct {
	Err error
}

// JointMsg carries a joint body pushed by the hub.
type JointMsg struct {
	Body json.RawMessage
}

type TransferMsg struct {
	Transfer protocol.Transfer
}

// Attach forwards c's events to send, usually a tea.Program's Send. Call it
// before Connect so the first handshake is not missed.
func Attach(c *hub.Client, send func(tea.Msg)) {
	transfer := func(tr protocol.Transfer) { send(TransferMsg{Transfer: tr}) }
	c.OnConnected(func() {
		send(ConnectedMsg{Address: c.Address(), Watched: len(c.WatchSet())})
	}).
		OnServerLost(func() { send(LostMsg{}) }).
		OnError(func(err error) { send(ErrorMsg{Err: err}) }).
		OnJoint(func(body json.RawMessage) { send(JointMsg{Body: body}) }).
		OnIn(transfer).
		OnOut(transfer)
}

// jointUnit extracts the unit hash from a joint body, or "" when absent.
func jointUnit(body json.RawMessage) string {
	var j struct {
		Unit struct {
			Unit string `json:"unit"`
		} `json:"unit"`
	}
	if err := json.Unmarshal(body, &j); err != nil {
		return ""
	}
	return j.Unit.Unit
}
