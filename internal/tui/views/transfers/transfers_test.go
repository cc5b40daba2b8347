package transfers

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/smart-dag/txevent/pkg/protocol"
)

func TestAddNewestFirst(t *testing.T) {
	m := New()
	m.Add(protocol.Transfer{Direction: protocol.DirectionIn, Unit: "U1"})
	m.Add(protocol.Transfer{Direction: protocol.DirectionOut, Unit: "U2"})

	if len(m.Transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(m.Transfers))
	}
	if m.Transfers[0].Unit != "U2" {
		t.Errorf("newest transfer should be first, got %q", m.Transfers[0].Unit)
	}
}

func TestAddCaps(t *testing.T) {
	m := New()
	for i := 0; i < maxTransfers+10; i++ {
		m.Add(protocol.Transfer{Direction: protocol.DirectionIn})
	}
	if len(m.Transfers) != maxTransfers {
		t.Errorf("expected %d transfers, got %d", maxTransfers, len(m.Transfers))
	}
}

func TestClear(t *testing.T) {
	m := New()
	m.Add(protocol.Transfer{Direction: protocol.DirectionIn})
	m.Clear()
	if len(m.Transfers) != 0 {
		t.Errorf("expected no transfers after Clear, got %d", len(m.Transfers))
	}
	if !strings.Contains(m.View(), "No transfers yet") {
		t.Errorf("cleared view should show the placeholder")
	}
}

func TestLine(t *testing.T) {
	line := Line(protocol.Transfer{
		Direction: protocol.DirectionIn,
		From:      "SENDER",
		To:        "ME",
		Amount:    json.Number("1500"),
		Text:      "rent",
		Unit:      "U1",
	})
	for _, want := range []string{"in", "SENDER", "ME", "1500", "rent", "U1"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	out := Line(protocol.Transfer{Direction: protocol.DirectionOut, From: "ME"})
	if !strings.Contains(out, "?") || !strings.Contains(out, "-") {
		t.Errorf("outgoing line without recipient should show placeholders: %q", out)
	}
}

func TestShort(t *testing.T) {
	if got := short("ABCDEFGHIJKLMNOP"); got != "ABCDEFGHIJK…" {
		t.Errorf("short() = %q", got)
	}
	if got := short("ME"); got != "ME" {
		t.Errorf("short() = %q", got)
	}
}
