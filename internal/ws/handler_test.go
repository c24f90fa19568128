package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roamingroutes/undercover-backend/internal/engine"
	"github.com/roamingroutes/undercover-backend/internal/hub"
	"github.com/roamingroutes/undercover-backend/internal/registry"
	"github.com/roamingroutes/undercover-backend/internal/words"
	"github.com/roamingroutes/undercover-backend/pkg/types"
)

func newTestGateway(t *testing.T) (*httptest.Server, *Gateway, *registry.Registry, *hub.Hub) {
	t.Helper()
	logger := zap.NewNop()
	broadcast := hub.New(logger)
	games := registry.New(engine.Rules{
		MinPlayers:    3,
		MaxPlayers:    10,
		DiscussionSec: 300,
		VotingSec:     60,
		ResultsSec:    15,
	}, broadcast, time.Hour, time.Minute, logger)
	catalog := words.Load("does-not-exist.yaml", logger) // built-in defaults

	g := NewGateway(games, broadcast, catalog, logger)
	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)
	return srv, g, games, broadcast
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// recvEvent reads server messages until one with the wanted event name
// arrives, skipping any broadcasts interleaved before it.
func recvEvent(t *testing.T, conn *websocket.Conn, event string) types.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		_, data, err := conn.Read(ctx)
		cancel()
		require.NoError(t, err, "waiting for event %q", event)

		var msg types.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Event == event {
			return msg
		}
	}
}

func createGame(t *testing.T, conn *websocket.Conn, host string) types.PlayerInfo {
	t.Helper()
	sendMsg(t, conn, types.ClientMessage{Type: types.CmdCreateGame, HostNickname: host})
	msg := recvEvent(t, conn, "PlayerInfo")
	var pi types.PlayerInfo
	require.NoError(t, json.Unmarshal(msg.Payload, &pi))
	return pi
}

func TestGateway_CreateGameAck(t *testing.T) {
	srv, _, games, _ := newTestGateway(t)
	conn := dial(t, srv)

	pi := createGame(t, conn, "Alice")
	assert.NotEmpty(t, pi.GameID)
	assert.NotEmpty(t, pi.PlayerID)
	assert.Equal(t, pi.PlayerID, pi.State.HostPlayerID)
	require.Len(t, pi.State.Players, 1)
	assert.Equal(t, "Alice", pi.State.Players[0].Nickname)

	// the room really exists server-side
	_, err := games.Get(pi.GameID)
	require.NoError(t, err)
}

func TestGateway_JoinGameAckAndBroadcast(t *testing.T) {
	srv, _, _, _ := newTestGateway(t)
	hostConn := dial(t, srv)
	pi := createGame(t, hostConn, "Alice")

	guestConn := dial(t, srv)
	sendMsg(t, guestConn, types.ClientMessage{
		Type: types.CmdJoinGame, GameID: pi.GameID, Nickname: "Bob",
	})

	msg := recvEvent(t, guestConn, "PlayerInfo")
	var guest types.PlayerInfo
	require.NoError(t, json.Unmarshal(msg.Payload, &guest))
	assert.Equal(t, pi.GameID, guest.GameID)
	assert.NotEqual(t, pi.PlayerID, guest.PlayerID)
	assert.Len(t, guest.State.Players, 2)

	// the host's connection, subscribed to the room, sees the join
	joined := recvEvent(t, hostConn, types.EventPlayerJoined)
	var snap types.GameState
	require.NoError(t, json.Unmarshal(joined.Payload, &snap))
	assert.Len(t, snap.Players, 2)
}

func TestGateway_UnknownCommandGetsErrorReply(t *testing.T) {
	srv, _, _, _ := newTestGateway(t)
	conn := dial(t, srv)

	sendMsg(t, conn, types.ClientMessage{Type: "Bogus"})

	msg := recvEvent(t, conn, "Error")
	assert.Equal(t, "unknown message type", msg.Error)
}

func TestGateway_RejectedCommandGetsErrorReply(t *testing.T) {
	srv, _, _, _ := newTestGateway(t)
	conn := dial(t, srv)

	sendMsg(t, conn, types.ClientMessage{
		Type: types.CmdJoinGame, GameID: "no-such-game", Nickname: "Bob",
	})

	msg := recvEvent(t, conn, "Error")
	assert.Equal(t, registry.ErrNotFound.Error(), msg.Error)
}

func TestGateway_DisconnectMarksPlayerDisconnected(t *testing.T) {
	srv, _, games, _ := newTestGateway(t)
	conn := dial(t, srv)
	pi := createGame(t, conn, "Alice")

	_ = conn.CloseNow()

	rm, err := games.Get(pi.GameID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		view, err := rm.Snapshot()
		if err != nil {
			return false
		}
		return !view.State.Players[0].Connected
	}, 2*time.Second, 10*time.Millisecond, "player must be marked disconnected")

	// disconnecting never eliminates and never migrates the host
	view, err := rm.Snapshot()
	require.NoError(t, err)
	assert.False(t, view.State.Players[0].Eliminated)
	assert.Equal(t, pi.PlayerID, view.State.HostID)
}

func TestGateway_DirectSendAfterDropDoesNotPanic(t *testing.T) {
	_, g, _, broadcast := newTestGateway(t)

	sub := hub.NewSubscriber("c1", 1)
	broadcast.Register(sub)
	sess := &session{sub: sub}
	broadcast.Drop(sub)

	assert.NotPanics(t, func() {
		g.sendError(sess, "too slow")
		g.sendTo(sess, "PlayerInfo", types.PlayerInfo{})
	})
}

func TestGateway_SingleRoomSubscription(t *testing.T) {
	_, g, games, broadcast := newTestGateway(t)

	_, first, err := games.Create("Alice")
	require.NoError(t, err)
	_, second, err := games.Create("Bob")
	require.NoError(t, err)

	sub := hub.NewSubscriber("c1", 8)
	broadcast.Register(sub)
	sess := &session{sub: sub}

	require.NoError(t, g.joinRoom(sess, first.ID))
	require.NoError(t, g.joinRoom(sess, second.ID))

	// moving rooms drops the old subscription: only the second room's event
	// may arrive
	broadcast.Publish(first.ID, types.EventVotingStarted, nil)
	broadcast.Publish(second.ID, types.EventRoundStarted, nil)

	select {
	case data := <-sub.Out():
		var msg types.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, types.EventRoundStarted, msg.Event)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the second room's event")
	}
}
