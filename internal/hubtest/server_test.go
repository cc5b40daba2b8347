package hubtest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-dag/txevent/pkg/protocol"
)

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.URL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, s.WaitForClients(1, 2*time.Second))
	return conn
}

func send(t *testing.T, conn *websocket.Conn, env protocol.Envelope) {
	t.Helper()
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func read(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	return env
}

func TestServerAnswersBuiltins(t *testing.T) {
	s := Start(t)
	conn := dial(t, s)

	tests := []struct {
		command string
		params  any
		want    string
	}{
		{protocol.CmdHeartbeat, nil, `null`},
		{protocol.CmdWatch, []string{"A", "B"}, `"ok"`},
		{protocol.CmdSubscribe, protocol.SubscribeParams{PeerID: "p"}, `{"peer_id":"hubtest","is_source":true}`},
		{"bogus", nil, `{"error":"unsupported command: bogus"}`},
	}

	for i, tt := range tests {
		req, err := protocol.NewRequest(tt.command, tt.params)
		require.NoError(t, err)
		req.Tag = string(rune('a' + i))
		send(t, conn, req)

		resp, ok := read(t, conn).(*protocol.Response)
		require.True(t, ok, tt.command)
		assert.Equal(t, req.Tag, resp.Tag)
		assert.JSONEq(t, tt.want, string(resp.Response), tt.command)
	}

	assert.True(t, s.Watched("A"))
	assert.Equal(t, []string{"A", "B"}, s.WatchedAddresses())
}

func TestServerCustomHandler(t *testing.T) {
	s := Start(t, WithHandler(protocol.CmdGetBalance, func(params json.RawMessage) (any, error) {
		return nil, errors.New("no such address")
	}))
	conn := dial(t, s)

	send(t, conn, &protocol.Request{Command: protocol.CmdGetBalance, Tag: "t1"})
	resp := read(t, conn).(*protocol.Response)
	text, ok := resp.ErrorText()
	assert.True(t, ok)
	assert.Equal(t, "no such address", text)
}

func TestServerRecordsFrames(t *testing.T) {
	s := Start(t)
	conn := dial(t, s)

	send(t, conn, &protocol.Justsaying{Subject: protocol.SubjectVersion, Body: json.RawMessage(`{}`)})
	send(t, conn, &protocol.Response{Tag: "hub_1", Response: json.RawMessage(`{}`)})
	send(t, conn, &protocol.Request{Command: protocol.CmdHeartbeat})

	select {
	case js := <-s.Justsayings():
		assert.Equal(t, protocol.SubjectVersion, js.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("justsaying not recorded")
	}
	select {
	case resp := <-s.Responses():
		assert.Equal(t, "hub_1", resp.Tag)
	case <-time.After(2 * time.Second):
		t.Fatal("response not recorded")
	}
	select {
	case req := <-s.Requests():
		assert.Equal(t, protocol.CmdHeartbeat, req.Command)
	case <-time.After(2 * time.Second):
		t.Fatal("request not recorded")
	}
}

func TestServerPushAndAsk(t *testing.T) {
	s := Start(t)
	conn := dial(t, s)

	require.NoError(t, s.PushNotify(protocol.Notification{From: "A", Unit: "U"}))
	js, ok := read(t, conn).(*protocol.Justsaying)
	require.True(t, ok)
	assert.Equal(t, protocol.SubjectNotify, js.Subject)

	tag, err := s.Ask(protocol.CmdSubscribe, protocol.SubscribeParams{PeerID: "x"})
	require.NoError(t, err)
	req, ok := read(t, conn).(*protocol.Request)
	require.True(t, ok)
	assert.Equal(t, tag, req.Tag)
	assert.Equal(t, protocol.CmdSubscribe, req.Command)
}

func TestServerSilent(t *testing.T) {
	s := Start(t)
	conn := dial(t, s)
	s.SetSilent(true)

	send(t, conn, &protocol.Request{Command: protocol.CmdHeartbeat, Tag: "t"})
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestServerDrop(t *testing.T) {
	s := Start(t)
	conn := dial(t, s)

	s.Drop()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerHangup(t *testing.T) {
	s := Start(t)
	conn := dial(t, s)

	s.Hangup()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
