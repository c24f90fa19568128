package types

import "encoding/json"

// Event names pushed from server to client. GameCreated and GameUpdated go to
// every connection (lobby list refresh); the rest go to the room's broadcast
// group only.
const (
	EventGameCreated      = "GameCreated"
	EventPlayerJoined     = "PlayerJoined"
	EventGameUpdated      = "GameUpdated"
	EventGameStarted      = "GameStarted"
	EventGuessSubmitted   = "GuessSubmitted"
	EventVotingStarted    = "VotingStarted"
	EventVoteSubmitted    = "VoteSubmitted"
	EventPlayerEliminated = "PlayerEliminated"
	EventRoundStarted     = "RoundStarted"
	EventGameEnded        = "GameEnded"
)

// ClientMessage is one command from a websocket client. Type selects the
// command; the other fields are read per type.
type ClientMessage struct {
	Type           string `json:"type"`
	GameID         string `json:"gameId,omitempty"`
	Nickname       string `json:"nickname,omitempty"`
	HostNickname   string `json:"hostNickname,omitempty"`
	Category       string `json:"category,omitempty"`
	PlayerID       string `json:"playerId,omitempty"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
	Guess          string `json:"guess,omitempty"`
}

// Client command types.
const (
	CmdJoinGameRoom  = "JoinGameRoom"
	CmdLeaveGameRoom = "LeaveGameRoom"
	CmdCreateGame    = "CreateGame"
	CmdJoinGame      = "JoinGame"
	CmdStartGame     = "StartGame"
	CmdSubmitGuess   = "SubmitGuess"
	CmdCallVote      = "CallVote"
	CmdVotePlayer    = "VotePlayer"
)

// ServerMessage is the envelope for everything the server pushes: broadcast
// events, direct acks, and errors.
type ServerMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PlayerInfo is the direct ack sent to a caller after CreateGame or JoinGame,
// telling the connection which player it is.
type PlayerInfo struct {
	GameID   string    `json:"gameId"`
	PlayerID string    `json:"playerId"`
	State    GameState `json:"state"`
}

// CreateGameRequest is the body of POST /api/game/create.
type CreateGameRequest struct {
	HostNickname string `json:"hostNickname"`
}

// JoinGameRequest is the body of POST /api/game/{gameId}/join.
type JoinGameRequest struct {
	Nickname string `json:"nickname"`
}
