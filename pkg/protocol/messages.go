package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request commands known to the hub. Unknown commands are forwarded as-is.
const (
	CmdGetNetInfo        = "get_net_info"
	CmdGetJoint          = "get_joint"
	CmdGetUnitByMCI      = "getunitbymci"
	CmdGetUnitsByRange   = "getunitsbyrange"
	CmdGetUnitsByAddress = "getunitsbyaddress"
	CmdGetBalance        = "get_balance"
	CmdSubscribe         = "subscribe"
	CmdHeartbeat         = "heartbeat"
	CmdWatch             = "watch"
)

// Justsaying subjects.
const (
	SubjectVersion = "version"
	SubjectJoint   = "joint"
	SubjectNotify  = "notify"
	SubjectError   = "error"
)

// Version is the handshake body announced right after the channel opens.
type Version struct {
	ProtocolVersion string `json:"protocol_version"`
	Alt             string `json:"alt"`
	Library         string `json:"library"`
	LibraryVersion  string `json:"library_version"`
	Program         string `json:"program"`
	ProgramVersion  string `json:"program_version"`
}

// DefaultVersion is the identification sent when the caller supplies none.
var DefaultVersion = Version{
	ProtocolVersion: "1.0",
	Alt:             "1",
	Library:         "txevent-go",
	LibraryVersion:  "0.1.0",
	Program:         "txevent",
	ProgramVersion:  "0.1.0",
}

// SubscribeParams are the params of a subscribe request.
type SubscribeParams struct {
	PeerID  string `json:"peer_id,omitempty"`
	LastMCI int64  `json:"last_mci,omitempty"`
}

// SubscribeReply answers an inbound subscribe request.
type SubscribeReply struct {
	PeerID   string `json:"peer_id"`
	IsSource bool   `json:"is_source"`
}

// ErrorBody is the body of an error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Recipient is one [address, amount] pair of a notification.
type Recipient struct {
	Address string
	Amount  json.Number
}

func (r *Recipient) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("recipient: want [address, amount], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Address); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(pair[1]))
	dec.UseNumber()
	var amount any
	if err := dec.Decode(&amount); err != nil {
		return fmt.Errorf("recipient amount: %w", err)
	}
	switch v := amount.(type) {
	case json.Number:
		r.Amount = v
	case string:
		r.Amount = json.Number(v)
	case nil:
		r.Amount = ""
	default:
		return fmt.Errorf("recipient amount: unexpected %T", amount)
	}
	return nil
}

func (r Recipient) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.Address, r.Amount})
}

// Notification is the body of a notify justsaying: one transaction touching
// at least one watched address.
type Notification struct {
	From      string      `json:"from"`
	To        []Recipient `json:"to_msg"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"timestamp"`
	Unit      string      `json:"unit"`
}

// ParseNotification decodes a notify body.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("notification: %w", err)
	}
	return &n, nil
}

// Direction of a transfer relative to the watch set.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Transfer is the directional view of a Notification. To and Amount are empty
// for an outgoing transfer with no watched recipient.
type Transfer struct {
	Direction Direction   `json:"direction"`
	From      string      `json:"from"`
	To        string      `json:"to,omitempty"`
	Amount    json.Number `json:"amount,omitempty"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"timestamp"`
	Unit      string      `json:"unit"`
}
