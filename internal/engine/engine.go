// Package engine implements the authoritative state machine for one
// Undercover game. Apply is a pure transition function: it never mutates its
// input, and a failed precondition leaves the returned state identical to the
// one passed in. All randomness (role shuffling) goes through an overridable
// package func so transitions stay deterministic under test.
package engine

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidState     = errors.New("operation not allowed in current game state")
	ErrGameFull         = errors.New("game is full")
	ErrNameTaken        = errors.New("player name already taken")
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrUnsupportedCmd   = errors.New("unsupported command")
)

type Status string

const (
	StatusWaiting    Status = "WaitingForPlayers"
	StatusInProgress Status = "InProgress"
	StatusFinished   Status = "Finished"
)

type Phase string

const (
	PhaseWaiting    Phase = "Waiting"
	PhaseDiscussion Phase = "Discussion"
	PhaseVoting     Phase = "Voting"
	PhaseResults    Phase = "Results"
	PhaseRoleReveal Phase = "RoleReveal"
)

type Role string

const (
	RoleCivilian   Role = "Civilian"
	RoleUndercover Role = "Undercover"
	RoleMrWhite    Role = "MrWhite"
)

type Team string

const (
	TeamCivilians  Team = "Civilians"
	TeamUndercover Team = "Undercover"
	TeamMrWhite    Team = "MrWhite"
)

type Player struct {
	ID         string
	Name       string
	IsHost     bool
	Role       Role
	Word       string
	Eliminated bool
	Connected  bool
	Score      int
	JoinedAt   time.Time
}

type Guess struct {
	PlayerID   string
	PlayerName string
	Word       string
	At         time.Time
}

// Rules are fixed at room creation from configuration.
type Rules struct {
	MinPlayers    int
	MaxPlayers    int
	DiscussionSec int
	VotingSec     int
	ResultsSec    int
}

// State is one room's complete authoritative state.
type State struct {
	ID             string
	HostID         string
	Status         Status
	Phase          Phase
	Players        []Player
	Round          int
	Votes          map[string]string // voter id -> target id, current round only
	RecentGuesses  []Guess
	Category       string
	CivilianWord   string
	UndercoverWord string
	Winner         Team
	CreatedAt      time.Time
	StartedAt      time.Time
	RoundStart     time.Time
	Rules          Rules
}

// Keep only a short tail of guesses in state; everything is still broadcast.
const maxRecentGuesses = 20

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdStartGame    CommandType = "StartGame"
	CmdCallVote     CommandType = "CallVote"
	CmdCastVote     CommandType = "CastVote"
	CmdSubmitGuess  CommandType = "SubmitGuess"
	CmdResolveVotes CommandType = "ResolveVotes"
	CmdAdvanceRound CommandType = "AdvanceRound"
	CmdSetConnected CommandType = "SetConnected"
)

// Command is a tagged variant: Type selects the operation and the relevant
// fields for it. PlayerID is always the acting player where one exists.
type Command struct {
	Type           CommandType
	PlayerID       string
	TargetID       string
	Nickname       string
	Guess          string
	Category       string
	CivilianWord   string
	UndercoverWord string
	Connected      bool
	Now            time.Time
}

type EventType string

const (
	EvtPlayerJoined     EventType = "PlayerJoined"
	EvtGameStarted      EventType = "GameStarted"
	EvtVotingStarted    EventType = "VotingStarted"
	EvtVoteCast         EventType = "VoteCast"
	EvtGuessSubmitted   EventType = "GuessSubmitted"
	EvtPlayerEliminated EventType = "PlayerEliminated"
	EvtVoteTied         EventType = "VoteTied"
	EvtRoundStarted     EventType = "RoundStarted"
	EvtConnectionChange EventType = "ConnectionChange"
	EvtGameFinished     EventType = "GameFinished"
)

type Event struct {
	Type      EventType
	PlayerID  string
	TargetID  string
	Role      Role
	VoteCount int
	Round     int
	Guess     *Guess
	Result    *Result
}

// Result is produced once, when a win condition is reached.
type Result struct {
	WinningTeam Team
	WinnerIDs   []string
	WinReason   string
}

// NewState builds the initial room state with the creator as sole player and
// host.
func NewState(id string, hostID, hostName string, now time.Time, rules Rules) State {
	return State{
		ID:     id,
		HostID: hostID,
		Status: StatusWaiting,
		Phase:  PhaseWaiting,
		Players: []Player{{
			ID:        hostID,
			Name:      hostName,
			IsHost:    true,
			Connected: true,
			JoinedAt:  now,
		}},
		Votes:     map[string]string{},
		CreatedAt: now,
		Rules:     rules,
	}
}

func (s State) clone() State {
	c := s
	c.Players = slices.Clone(s.Players)
	c.Votes = maps.Clone(s.Votes)
	c.RecentGuesses = slices.Clone(s.RecentGuesses)
	return c
}

func (s State) player(id string) (int, bool) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Apply runs one command against the state, returning the events it produced
// and the successor state. On error the returned state is the input state,
// untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdStartGame:
		return applyStartGame(s, cmd)
	case CmdCallVote:
		return applyCallVote(s, cmd)
	case CmdCastVote:
		return applyCastVote(s, cmd)
	case CmdSubmitGuess:
		return applySubmitGuess(s, cmd)
	case CmdResolveVotes:
		return applyResolveVotes(s, cmd)
	case CmdAdvanceRound:
		return applyAdvanceRound(s, cmd)
	case CmdSetConnected:
		return applySetConnected(s, cmd)
	default:
		return nil, s, ErrUnsupportedCmd
	}
}

func applyJoin(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusWaiting {
		return nil, s, ErrInvalidState
	}
	if len(s.Players) >= s.Rules.MaxPlayers {
		return nil, s, ErrGameFull
	}
	name := strings.TrimSpace(cmd.Nickname)
	if name == "" {
		return nil, s, ErrInvalidInput
	}
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return nil, s, ErrNameTaken
		}
	}

	ns := s.clone()
	ns.Players = append(ns.Players, Player{
		ID:        cmd.PlayerID,
		Name:      name,
		Connected: true,
		JoinedAt:  cmd.Now,
	})
	return []Event{{Type: EvtPlayerJoined, PlayerID: cmd.PlayerID}}, ns, nil
}

func applyStartGame(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusWaiting {
		return nil, s, ErrInvalidState
	}
	if cmd.PlayerID != s.HostID {
		return nil, s, ErrNotHost
	}
	if len(s.Players) < s.Rules.MinPlayers {
		return nil, s, ErrNotEnoughPlayers
	}

	ns := s.clone()
	assignRoles(&ns, cmd.CivilianWord, cmd.UndercoverWord)
	ns.Category = cmd.Category
	ns.CivilianWord = cmd.CivilianWord
	ns.UndercoverWord = cmd.UndercoverWord
	ns.Status = StatusInProgress
	ns.Phase = PhaseDiscussion
	ns.Round = 1
	ns.StartedAt = cmd.Now
	ns.RoundStart = cmd.Now
	ns.Votes = map[string]string{}

	return []Event{
		{Type: EvtGameStarted},
		{Type: EvtRoundStarted, Round: 1},
	}, ns, nil
}

func applyCallVote(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusInProgress || s.Phase != PhaseDiscussion {
		return nil, s, ErrInvalidState
	}

	ns := s.clone()
	ns.Phase = PhaseVoting
	ns.Votes = map[string]string{}
	return []Event{{Type: EvtVotingStarted}}, ns, nil
}

func applyCastVote(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusInProgress || s.Phase != PhaseVoting {
		return nil, s, ErrInvalidState
	}
	vi, ok := s.player(cmd.PlayerID)
	if !ok {
		return nil, s, ErrUnknownPlayer
	}
	if s.Players[vi].Eliminated {
		return nil, s, ErrInvalidState
	}
	ti, ok := s.player(cmd.TargetID)
	if !ok {
		return nil, s, ErrUnknownPlayer
	}
	if s.Players[ti].Eliminated {
		return nil, s, ErrInvalidState
	}

	ns := s.clone()
	ns.Votes[cmd.PlayerID] = cmd.TargetID
	events := []Event{{Type: EvtVoteCast, PlayerID: cmd.PlayerID, TargetID: cmd.TargetID}}

	if len(ns.Votes) >= activeVoters(ns) {
		more, resolved := resolveVotes(ns)
		return append(events, more...), resolved, nil
	}
	return events, ns, nil
}

func applySubmitGuess(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusInProgress || s.Phase != PhaseDiscussion {
		return nil, s, ErrInvalidState
	}
	pi, ok := s.player(cmd.PlayerID)
	if !ok {
		return nil, s, ErrUnknownPlayer
	}
	if s.Players[pi].Eliminated {
		return nil, s, ErrInvalidState
	}
	word := strings.TrimSpace(cmd.Guess)
	if word == "" {
		return nil, s, ErrInvalidInput
	}

	g := Guess{
		PlayerID:   cmd.PlayerID,
		PlayerName: s.Players[pi].Name,
		Word:       word,
		At:         cmd.Now,
	}
	ns := s.clone()
	ns.RecentGuesses = append(ns.RecentGuesses, g)
	if len(ns.RecentGuesses) > maxRecentGuesses {
		ns.RecentGuesses = ns.RecentGuesses[len(ns.RecentGuesses)-maxRecentGuesses:]
	}
	return []Event{{Type: EvtGuessSubmitted, PlayerID: cmd.PlayerID, Guess: &g}}, ns, nil
}

func applyResolveVotes(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusInProgress || s.Phase != PhaseVoting {
		return nil, s, ErrInvalidState
	}
	events, ns := resolveVotes(s.clone())
	return events, ns, nil
}

func applyAdvanceRound(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusInProgress || s.Phase != PhaseResults {
		return nil, s, ErrInvalidState
	}

	ns := s.clone()
	ns.Round++
	ns.Phase = PhaseDiscussion
	ns.Votes = map[string]string{}
	ns.RoundStart = cmd.Now
	return []Event{{Type: EvtRoundStarted, Round: ns.Round}}, ns, nil
}

func applySetConnected(s State, cmd Command) ([]Event, State, error) {
	pi, ok := s.player(cmd.PlayerID)
	if !ok {
		return nil, s, ErrUnknownPlayer
	}
	if s.Players[pi].Connected == cmd.Connected {
		return nil, s, nil
	}

	ns := s.clone()
	ns.Players[pi].Connected = cmd.Connected
	return []Event{{Type: EvtConnectionChange, PlayerID: cmd.PlayerID}}, ns, nil
}
