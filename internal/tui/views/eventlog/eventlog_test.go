package eventlog

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(KindHub, "connected")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != KindHub {
		t.Errorf("expected kind hub, got %q", m.Entries[0].Kind)
	}
	if m.Count(KindHub) != 1 {
		t.Errorf("hub count = %d", m.Count(KindHub))
	}
}

func TestMaxEntriesKeepsCounts(t *testing.T) {
	m := New()
	for i := 0; i < 50; i++ {
		m.Add(KindError, "early")
	}
	for i := 0; i < maxEntries; i++ {
		m.Add(KindHub, "msg")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
	if m.Count(KindError) != 0 || m.Count(KindHub) != maxEntries {
		t.Errorf("counts err %d hub %d after trimming", m.Count(KindError), m.Count(KindHub))
	}
}

func TestFilterCycle(t *testing.T) {
	m := New()
	m.Add(KindHub, "connected")
	m.Add(KindJoint, "unit U1")
	m.Add(KindError, "write failed")

	want := []Kind{KindHub, KindJoint, KindError, ""}
	for _, k := range want {
		m.CycleFilter()
		if m.Filter() != k {
			t.Fatalf("filter = %q, want %q", m.Filter(), k)
		}
	}

	m.CycleFilter()
	m.CycleFilter()
	v := m.View()
	if !strings.Contains(v, "unit U1") || strings.Contains(v, "write failed") || strings.Contains(v, "connected") {
		t.Errorf("joint filter shows the wrong entries:\n%s", v)
	}
	if !strings.Contains(v, "jnt 1") || !strings.Contains(v, "all 3") {
		t.Errorf("tabs should carry per kind counts:\n%s", v)
	}
}

func TestFilterWithoutMatches(t *testing.T) {
	m := New()
	m.Add(KindHub, "connected")
	m.CycleFilter()
	m.CycleFilter()
	m.CycleFilter()
	if v := m.View(); !strings.Contains(v, "No err events.") {
		t.Errorf("empty filter placeholder missing:\n%s", v)
	}
}

func TestFollowsTail(t *testing.T) {
	m := New()
	m.SetSize(80, 10)
	for i := 0; i < 20; i++ {
		m.Add(KindHub, "msg")
	}
	if !m.vp.AtBottom() {
		t.Fatal("log should follow new entries")
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	offset := m.vp.YOffset
	if m.vp.AtBottom() {
		t.Fatal("k should scroll away from the bottom")
	}
	m.Add(KindHub, "newer")
	if m.vp.YOffset != offset {
		t.Errorf("scrolled view moved from %d to %d", offset, m.vp.YOffset)
	}
}

func TestView(t *testing.T) {
	m := New()
	if v := m.View(); !strings.Contains(v, "No events recorded yet") {
		t.Errorf("empty view missing placeholder: %q", v)
	}

	m.Add(KindError, "write failed")
	m.Add(KindJoint, "unit U1")
	v := m.View()
	for _, want := range []string{"EVENT LOG", "write failed", "unit U1", "2 entries"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestLineTruncatesByWidth(t *testing.T) {
	e := Entry{
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Kind:    KindError,
		Message: strings.Repeat("接続が切れました ", 10) + "\nsecond line",
	}
	for _, width := range []int{20, 31, 40, 57} {
		line := Line(e, width)
		if !utf8.ValidString(line) {
			t.Errorf("width %d: invalid UTF-8 in %q", width, line)
		}
		if w := ansi.StringWidth(line); w > width {
			t.Errorf("width %d: line is %d cells", width, w)
		}
		if !strings.HasSuffix(ansi.Strip(line), "…") {
			t.Errorf("width %d: missing ellipsis in %q", width, ansi.Strip(line))
		}
		if strings.Contains(line, "\n") {
			t.Errorf("width %d: line break kept", width)
		}
	}

	short := Line(Entry{Kind: KindHub, Message: "ok"}, 40)
	if !strings.HasSuffix(ansi.Strip(short), "ok") {
		t.Errorf("short message altered: %q", ansi.Strip(short))
	}
}
