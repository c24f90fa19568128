// Package types holds the wire-level DTOs shared by the HTTP API and the
// websocket gateway. Nothing in here is authoritative game state; these are
// projections produced by the engine for clients.
package types

import "time"

// PlayerView is the public projection of a player. Role and Word are only
// populated during role reveal; at any other time secret assignments must not
// leave the server.
type PlayerView struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	IsAlive     bool   `json:"isAlive"`
	IsHost      bool   `json:"isHost"`
	IsConnected bool   `json:"isConnected"`
	Role        string `json:"role,omitempty"`
	Word        string `json:"word,omitempty"`
}

// Guess is broadcast when a player submits a word guess during discussion.
type Guess struct {
	PlayerID    string    `json:"playerId"`
	PlayerName  string    `json:"playerName"`
	GuessedWord string    `json:"guessedWord"`
	Timestamp   time.Time `json:"timestamp"`
}

// GameState is the full public snapshot of one room.
type GameState struct {
	GameID         string       `json:"gameId"`
	HostPlayerID   string       `json:"hostPlayerId"`
	Status         string       `json:"status"`
	Phase          string       `json:"phase"`
	Players        []PlayerView `json:"players"`
	CurrentRound   int          `json:"currentRound"`
	MaxPlayers     int          `json:"maxPlayers"`
	CreatedAt      time.Time    `json:"createdAt"`
	StartedAt      *time.Time   `json:"startedAt,omitempty"`
	VotingPhase    bool         `json:"votingPhase"`
	RoundStartTime time.Time    `json:"roundStartTime"`
	RecentGuesses  []Guess      `json:"recentGuesses"`
}

// GameResult describes a finished game: who won and why, with all secrets
// revealed.
type GameResult struct {
	WinningTeam string            `json:"winningTeam"`
	WinnerIDs   []string          `json:"winnerIds"`
	WinReason   string            `json:"winReason"`
	PlayerRoles map[string]string `json:"playerRoles"`
	RoleWords   map[string]string `json:"roleWords"`
}

// VoteCast is the payload of a VoteSubmitted event.
type VoteCast struct {
	PlayerID       string `json:"playerId"`
	TargetPlayerID string `json:"targetPlayerId"`
}

// Elimination is the payload of a PlayerEliminated event. The role is public
// once its holder is out.
type Elimination struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Role       string `json:"role"`
	VoteCount  int    `json:"voteCount"`
	Tie        bool   `json:"tie"`
}
