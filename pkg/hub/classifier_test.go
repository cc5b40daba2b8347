package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smart-dag/txevent/pkg/protocol"
)

func TestClassify(t *testing.T) {
	n := &protocol.Notification{
		From: "A",
		To: []protocol.Recipient{
			{Address: "B", Amount: "5"},
			{Address: "C", Amount: "7"},
		},
		Text:      "memo",
		Timestamp: 42,
		Unit:      "U",
	}

	tests := []struct {
		name    string
		watched []string
		want    protocol.Transfer
		ok      bool
	}{
		{"nothing watched", nil, protocol.Transfer{}, false},
		{"unrelated", []string{"Z"}, protocol.Transfer{}, false},
		{"sender only", []string{"A"}, protocol.Transfer{
			Direction: protocol.DirectionOut, From: "A", Text: "memo", Timestamp: 42, Unit: "U",
		}, true},
		{"recipient", []string{"C"}, protocol.Transfer{
			Direction: protocol.DirectionIn, From: "A", To: "C", Amount: "7", Text: "memo", Timestamp: 42, Unit: "U",
		}, true},
		{"first recipient wins", []string{"C", "B"}, protocol.Transfer{
			Direction: protocol.DirectionIn, From: "A", To: "B", Amount: "5", Text: "memo", Timestamp: 42, Unit: "U",
		}, true},
		{"sender and recipient", []string{"A", "C"}, protocol.Transfer{
			Direction: protocol.DirectionOut, From: "A", To: "C", Amount: "7", Text: "memo", Timestamp: 42, Unit: "U",
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWatchSet()
			w.add(tt.watched...)
			got, ok := Classify(n, w.has)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyNoRecipients(t *testing.T) {
	w := newWatchSet()
	w.add("A")

	got, ok := Classify(&protocol.Notification{From: "A"}, w.has)
	assert.True(t, ok)
	assert.Equal(t, protocol.DirectionOut, got.Direction)

	_, ok = Classify(&protocol.Notification{From: "B"}, w.has)
	assert.False(t, ok)
}

func TestWatchSet(t *testing.T) {
	w := newWatchSet()
	assert.Equal(t, []string{"A", "B"}, w.add("A", "", "B", "A"))
	assert.Equal(t, []string{"C"}, w.add("B", "C"))
	assert.Nil(t, w.add("A"))

	assert.True(t, w.has("C"))
	assert.False(t, w.has(""))
	assert.Equal(t, 3, w.len())
	assert.Equal(t, []string{"A", "B", "C"}, w.list())

	l := w.list()
	l[0] = "mutated"
	assert.True(t, w.has("A"))
}

func TestFixedDelay(t *testing.T) {
	p := FixedDelay(3 * time.Second)
	for _, n := range []int{0, 1, 10, 1000} {
		assert.Equal(t, 3*time.Second, p.Delay(n))
	}
}

func TestExponentialBackoff(t *testing.T) {
	p := ExponentialBackoff{Base: 100 * time.Millisecond, Factor: 2, Max: time.Second}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for n, d := range want {
		assert.Equal(t, d, p.Delay(n), "attempt %d", n)
	}
	assert.Equal(t, time.Second, p.Delay(10_000))
}

func TestExponentialBackoffDefaults(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second}
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 4*time.Second, p.Delay(2))
}
