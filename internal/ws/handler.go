// Package ws is the session gateway: it binds one websocket connection to at
// most one player in one game, relays client commands into room operations,
// and feeds room-originated events back out through the fan-out hub.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roamingroutes/undercover-backend/internal/engine"
	"github.com/roamingroutes/undercover-backend/internal/hub"
	"github.com/roamingroutes/undercover-backend/internal/registry"
	"github.com/roamingroutes/undercover-backend/internal/words"
	"github.com/roamingroutes/undercover-backend/pkg/types"
)

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
)

type Gateway struct {
	games  *registry.Registry
	hub    *hub.Hub
	words  *words.Provider
	logger *zap.Logger
}

func NewGateway(games *registry.Registry, h *hub.Hub, w *words.Provider, logger *zap.Logger) *Gateway {
	return &Gateway{games: games, hub: h, words: w, logger: logger}
}

// session is the per-connection state: which player this connection speaks
// for, once it has created or joined a game, and which room it is currently
// subscribed to. A connection holds at most one room subscription at a time.
type session struct {
	sub      *hub.Subscriber
	roomID   string
	gameID   string
	playerID string
}

func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		sub := hub.NewSubscriber(uuid.NewString(), outboxSize)
		g.hub.Register(sub)
		sess := &session{sub: sub}
		defer g.teardown(sess)

		logger := g.logger.With(zap.String("conn_id", sub.ID))
		logger.Debug("connection opened")

		// Writer: drain the subscriber outbox until the hub closes it.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for data := range sub.Out() {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, data)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					logger.Debug("connection closed")
				default:
					logger.Debug("connection dropped", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				g.sendError(sess, "bad json")
				continue
			}
			g.dispatch(sess, cm, logger)
		}
	}
}

// teardown runs on every disconnect, graceful or not: drop the connection
// from all broadcast groups and mark its player disconnected (never
// eliminated) so the room can tell the others.
func (g *Gateway) teardown(sess *session) {
	g.hub.Drop(sess.sub)
	if sess.gameID == "" || sess.playerID == "" {
		return
	}
	rm, err := g.games.Get(sess.gameID)
	if err != nil {
		return
	}
	_, _ = rm.Do(engine.Command{
		Type:     engine.CmdSetConnected,
		PlayerID: sess.playerID,
		Now:      time.Now(),
	})
}

func (g *Gateway) dispatch(sess *session, cm types.ClientMessage, logger *zap.Logger) {
	var err error
	switch cm.Type {
	case types.CmdJoinGameRoom:
		err = g.joinRoom(sess, cm.GameID)
	case types.CmdLeaveGameRoom:
		g.hub.Unsubscribe(cm.GameID, sess.sub)
		if sess.roomID == cm.GameID {
			sess.roomID = ""
		}
	case types.CmdCreateGame:
		err = g.createGame(sess, cm)
	case types.CmdJoinGame:
		err = g.joinGame(sess, cm)
	case types.CmdStartGame:
		err = g.startGame(sess, cm)
	case types.CmdSubmitGuess:
		err = g.roomCommand(cm.GameID, engine.Command{
			Type:     engine.CmdSubmitGuess,
			PlayerID: g.actingPlayer(sess, cm),
			Guess:    cm.Guess,
			Now:      time.Now(),
		})
	case types.CmdCallVote:
		err = g.roomCommand(cm.GameID, engine.Command{
			Type:     engine.CmdCallVote,
			PlayerID: g.actingPlayer(sess, cm),
			Now:      time.Now(),
		})
	case types.CmdVotePlayer:
		err = g.roomCommand(cm.GameID, engine.Command{
			Type:     engine.CmdCastVote,
			PlayerID: g.actingPlayer(sess, cm),
			TargetID: cm.TargetPlayerID,
			Now:      time.Now(),
		})
	default:
		g.sendError(sess, "unknown message type")
		return
	}

	if err != nil {
		logger.Info("command rejected",
			zap.String("type", cm.Type), zap.String("game_id", cm.GameID), zap.Error(err))
		g.sendError(sess, err.Error())
	}
}

func (g *Gateway) joinRoom(sess *session, gameID string) error {
	if _, err := g.games.Get(gameID); err != nil {
		return err
	}
	g.switchRoom(sess, gameID)
	return nil
}

// switchRoom moves the connection's single room subscription, dropping the
// previous room's first.
func (g *Gateway) switchRoom(sess *session, roomID string) {
	if sess.roomID != "" && sess.roomID != roomID {
		g.hub.Unsubscribe(sess.roomID, sess.sub)
	}
	sess.roomID = roomID
	g.hub.Subscribe(roomID, sess.sub)
}

func (g *Gateway) createGame(sess *session, cm types.ClientMessage) error {
	_, st, err := g.games.Create(cm.HostNickname)
	if err != nil {
		return err
	}

	g.switchRoom(sess, st.ID)
	sess.gameID = st.ID
	sess.playerID = st.HostID

	snap := engine.Project(st)
	g.hub.PublishAll(types.EventGameCreated, snap)
	g.sendTo(sess, "PlayerInfo", types.PlayerInfo{GameID: st.ID, PlayerID: st.HostID, State: snap})
	return nil
}

func (g *Gateway) joinGame(sess *session, cm types.ClientMessage) error {
	rm, err := g.games.Get(cm.GameID)
	if err != nil {
		return err
	}

	playerID := uuid.NewString()
	st, err := rm.Do(engine.Command{
		Type:     engine.CmdJoin,
		PlayerID: playerID,
		Nickname: cm.Nickname,
		Now:      time.Now(),
	})
	if err != nil {
		return err
	}

	g.switchRoom(sess, cm.GameID)
	sess.gameID = cm.GameID
	sess.playerID = playerID

	g.sendTo(sess, "PlayerInfo", types.PlayerInfo{GameID: cm.GameID, PlayerID: playerID, State: engine.Project(st)})
	return nil
}

func (g *Gateway) startGame(sess *session, cm types.ClientMessage) error {
	pair, err := g.words.RandomPair(cm.Category)
	if err != nil {
		return err
	}
	return g.roomCommand(cm.GameID, engine.Command{
		Type:           engine.CmdStartGame,
		PlayerID:       g.actingPlayer(sess, cm),
		Category:       cm.Category,
		CivilianWord:   pair.Civilian,
		UndercoverWord: pair.Undercover,
		Now:            time.Now(),
	})
}

func (g *Gateway) roomCommand(gameID string, cmd engine.Command) error {
	rm, err := g.games.Get(gameID)
	if err != nil {
		return err
	}
	_, err = rm.Do(cmd)
	return err
}

// actingPlayer prefers the explicit playerId in the message, falling back to
// the player this session is bound to.
func (g *Gateway) actingPlayer(sess *session, cm types.ClientMessage) string {
	if cm.PlayerID != "" {
		return cm.PlayerID
	}
	return sess.playerID
}

// sendTo delivers a direct message to this connection only. Best-effort: a
// full or already-dropped outbox loses the message rather than blocking or
// panicking.
func (g *Gateway) sendTo(sess *session, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		g.logger.Error("marshal direct payload", zap.String("event", event), zap.Error(err))
		return
	}
	data, err := json.Marshal(types.ServerMessage{Event: event, Payload: raw})
	if err != nil {
		return
	}
	sess.sub.TrySend(data)
}

func (g *Gateway) sendError(sess *session, msg string) {
	data, err := json.Marshal(types.ServerMessage{Event: "Error", Error: msg})
	if err != nil {
		return
	}
	sess.sub.TrySend(data)
}
