package hub

import "github.com/smart-dag/txevent/pkg/protocol"

// Classify gives the direction of n relative to the addresses for which
// watched reports true. A watched sender makes the transfer outgoing, even
// when a recipient is watched too; otherwise the first watched recipient
// makes it incoming. The second result is false when neither applies.
func Classify(n *protocol.Notification, watched func(string) bool) (protocol.Transfer, bool) {
	t := protocol.Transfer{
		From:      n.From,
		Text:      n.Text,
		Timestamp: n.Timestamp,
		Unit:      n.Unit,
	}

	var matched *protocol.Recipient
	for i := range n.To {
		if watched(n.To[i].Address) {
			matched = &n.To[i]
			break
		}
	}
	if matched != nil {
		t.To = matched.Address
		t.Amount = matched.Amount
	}

	switch {
	case watched(n.From):
		t.Direction = protocol.DirectionOut
	case matched != nil:
		t.Direction = protocol.DirectionIn
	default:
		return protocol.Transfer{}, false
	}
	return t, true
}
