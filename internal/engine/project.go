package engine

import (
	"time"

	"github.com/roamingroutes/undercover-backend/pkg/types"
)

// Project builds the public wire snapshot of a state. Secret roles and words
// are included only while the room is in role reveal (which implies the game
// is over); at any other time they never leave the server.
func Project(s State) types.GameState {
	reveal := s.Phase == PhaseRoleReveal || s.Status == StatusFinished

	players := make([]types.PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		v := types.PlayerView{
			ID:          p.ID,
			Nickname:    p.Name,
			IsAlive:     !p.Eliminated,
			IsHost:      p.IsHost,
			IsConnected: p.Connected,
		}
		if reveal {
			v.Role = string(p.Role)
			v.Word = p.Word
		}
		players = append(players, v)
	}

	guesses := make([]types.Guess, 0, len(s.RecentGuesses))
	for _, g := range s.RecentGuesses {
		guesses = append(guesses, types.Guess{
			PlayerID:    g.PlayerID,
			PlayerName:  g.PlayerName,
			GuessedWord: g.Word,
			Timestamp:   g.At,
		})
	}

	var startedAt *time.Time
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		startedAt = &t
	}

	return types.GameState{
		GameID:         s.ID,
		HostPlayerID:   s.HostID,
		Status:         string(s.Status),
		Phase:          string(s.Phase),
		Players:        players,
		CurrentRound:   s.Round,
		MaxPlayers:     s.Rules.MaxPlayers,
		CreatedAt:      s.CreatedAt,
		StartedAt:      startedAt,
		VotingPhase:    s.Phase == PhaseVoting,
		RoundStartTime: s.RoundStart,
		RecentGuesses:  guesses,
	}
}

// BuildResult expands a win into the full reveal payload for GameEnded.
func BuildResult(s State, r Result) types.GameResult {
	roles := make(map[string]string, len(s.Players))
	for _, p := range s.Players {
		roles[p.ID] = string(p.Role)
	}
	return types.GameResult{
		WinningTeam: string(r.WinningTeam),
		WinnerIDs:   r.WinnerIDs,
		WinReason:   r.WinReason,
		PlayerRoles: roles,
		RoleWords: map[string]string{
			string(RoleCivilian):   s.CivilianWord,
			string(RoleUndercover): s.UndercoverWord,
		},
	}
}
