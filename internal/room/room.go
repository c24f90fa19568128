// Package room hosts one goroutine per game room. The actor owns the
// authoritative engine.State and processes commands off its inbox one at a
// time, which gives every room operation the mutual exclusion the game logic
// needs without a lock. Broadcasts happen after a command has been applied,
// through a non-blocking publisher, so a slow consumer can never stall a room.
package room

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/roamingroutes/undercover-backend/internal/engine"
	"github.com/roamingroutes/undercover-backend/pkg/types"
)

// ErrClosed is returned for commands sent to a room that has shut down.
var ErrClosed = errors.New("room closed")

// Publisher delivers serialized events to subscribed connections. Delivery is
// best-effort and must never block.
type Publisher interface {
	Publish(roomID, event string, payload any)
	PublishAll(event string, payload any)
}

type Msg interface{ isRoomMsg() }

type FromClient struct {
	Cmd   engine.Command
	Reply chan Result // optional; nil for fire-and-forget
}

func (FromClient) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type timerFired struct{ gen uint64 }

func (timerFired) isRoomMsg() {}

type Result struct {
	State engine.State
	Err   error
}

type View struct {
	State      engine.State
	LastActive time.Time
}

type Room struct {
	id     string
	inbox  chan Msg
	done   chan struct{}
	state  engine.State
	pub    Publisher
	logger *zap.Logger

	timer      *time.Timer
	timerGen   uint64
	lastActive time.Time
}

// New starts the room actor for an initial state.
func New(initial engine.State, pub Publisher, logger *zap.Logger) *Room {
	r := &Room{
		id:         initial.ID,
		inbox:      make(chan Msg, 64),
		done:       make(chan struct{}),
		state:      initial,
		pub:        pub,
		logger:     logger.With(zap.String("game_id", initial.ID)),
		lastActive: time.Now(),
	}
	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Inbox exposes the raw message channel for tests and the timer callback.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Do applies one command under the room's serialization and returns the
// resulting state. The returned state is a value copy and safe to read.
func (r *Room) Do(cmd engine.Command) (engine.State, error) {
	reply := make(chan Result, 1)
	select {
	case r.inbox <- FromClient{Cmd: cmd, Reply: reply}:
	case <-r.done:
		return engine.State{}, ErrClosed
	}
	select {
	case res := <-reply:
		return res.State, res.Err
	case <-r.done:
		return engine.State{}, ErrClosed
	}
}

// Snapshot returns a consistent view of the room without mutating it.
func (r *Room) Snapshot() (View, error) {
	reply := make(chan View, 1)
	select {
	case r.inbox <- GetState{Reply: reply}:
	case <-r.done:
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		return View{}, ErrClosed
	}
}

// Close shuts the actor down. Idempotent.
func (r *Room) Close() {
	select {
	case r.inbox <- Shutdown{}:
	case <-r.done:
	}
}

func (r *Room) loop() {
	for m := range r.inbox {
		switch msg := m.(type) {
		case FromClient:
			res := r.apply(msg.Cmd)
			if msg.Reply != nil {
				msg.Reply <- res
			}

		case GetState:
			msg.Reply <- View{State: r.state, LastActive: r.lastActive}

		case timerFired:
			if msg.gen != r.timerGen {
				break // a player action re-armed the timer; stale fire
			}
			r.onTimer()

		case Shutdown:
			r.stopTimer()
			close(r.done)
			return
		}
	}
}

func (r *Room) apply(cmd engine.Command) Result {
	events, ns, err := engine.Apply(r.state, cmd)
	if err != nil {
		return Result{State: r.state, Err: err}
	}
	r.state = ns
	r.lastActive = time.Now()
	r.publish(events)
	r.armTimer()
	return Result{State: ns}
}

// onTimer advances the phase the same way a player action would.
func (r *Room) onTimer() {
	now := time.Now()
	var cmd engine.Command
	switch r.state.Phase {
	case engine.PhaseDiscussion:
		cmd = engine.Command{Type: engine.CmdCallVote, Now: now}
	case engine.PhaseVoting:
		cmd = engine.Command{Type: engine.CmdResolveVotes, Now: now}
	case engine.PhaseResults:
		cmd = engine.Command{Type: engine.CmdAdvanceRound, Now: now}
	default:
		return
	}
	if res := r.apply(cmd); res.Err != nil {
		r.logger.Warn("phase timer advance rejected",
			zap.String("phase", string(r.state.Phase)), zap.Error(res.Err))
	}
}

// armTimer schedules the expiry for the current phase. The generation counter
// invalidates any previously scheduled fire.
func (r *Room) armTimer() {
	r.stopTimer()
	if r.state.Status != engine.StatusInProgress {
		return
	}

	var secs int
	switch r.state.Phase {
	case engine.PhaseDiscussion:
		secs = r.state.Rules.DiscussionSec
	case engine.PhaseVoting:
		secs = r.state.Rules.VotingSec
	case engine.PhaseResults:
		secs = r.state.Rules.ResultsSec
	default:
		return
	}

	r.timerGen++
	gen := r.timerGen
	r.timer = time.AfterFunc(time.Duration(secs)*time.Second, func() {
		select {
		case r.inbox <- timerFired{gen: gen}:
		case <-r.done:
		}
	})
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) publish(events []engine.Event) {
	snap := engine.Project(r.state)
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPlayerJoined:
			r.pub.Publish(r.id, types.EventPlayerJoined, snap)
			r.pub.PublishAll(types.EventGameUpdated, snap)

		case engine.EvtGameStarted:
			r.pub.Publish(r.id, types.EventGameStarted, snap)
			r.pub.PublishAll(types.EventGameUpdated, snap)

		case engine.EvtRoundStarted:
			if ev.Round > 1 {
				r.pub.Publish(r.id, types.EventRoundStarted, snap)
			}

		case engine.EvtVotingStarted:
			r.pub.Publish(r.id, types.EventVotingStarted, snap)

		case engine.EvtVoteCast:
			r.pub.Publish(r.id, types.EventVoteSubmitted, types.VoteCast{
				PlayerID:       ev.PlayerID,
				TargetPlayerID: ev.TargetID,
			})

		case engine.EvtGuessSubmitted:
			r.pub.Publish(r.id, types.EventGuessSubmitted, types.Guess{
				PlayerID:    ev.Guess.PlayerID,
				PlayerName:  ev.Guess.PlayerName,
				GuessedWord: ev.Guess.Word,
				Timestamp:   ev.Guess.At,
			})

		case engine.EvtPlayerEliminated:
			r.pub.Publish(r.id, types.EventPlayerEliminated, types.Elimination{
				PlayerID:   ev.TargetID,
				PlayerName: r.playerName(ev.TargetID),
				Role:       string(ev.Role),
				VoteCount:  ev.VoteCount,
			})
			r.pub.Publish(r.id, types.EventGameUpdated, snap)

		case engine.EvtVoteTied:
			r.pub.Publish(r.id, types.EventPlayerEliminated, types.Elimination{Tie: true})
			r.pub.Publish(r.id, types.EventGameUpdated, snap)

		case engine.EvtConnectionChange:
			r.pub.Publish(r.id, types.EventGameUpdated, snap)

		case engine.EvtGameFinished:
			r.pub.Publish(r.id, types.EventGameEnded, engine.BuildResult(r.state, *ev.Result))
			r.pub.PublishAll(types.EventGameUpdated, snap)
		}
	}
}

func (r *Room) playerName(id string) string {
	for _, p := range r.state.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}
