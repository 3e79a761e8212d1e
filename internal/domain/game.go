package domain

import "time"

// HandType represents how a round was finished
type HandType string

const (
	HandNormal HandType = "normal"
	HandFull   HandType = "full"
)

// GameMode represents the game variant
type GameMode string

const (
	ModeSolo        GameMode = "solo"
	ModePartnership GameMode = "partnership"
)

// TeamID identifies one of the two partnership teams
type TeamID string

const (
	TeamA    TeamID = "A"
	TeamB    TeamID = "B"
	TeamNone TeamID = ""
)

// Player represents a participant in a game
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Team   TeamID `json:"team,omitempty"`
}

// RoundInput is the raw input for a single round as captured by the UI.
// It is transient: only the deltas derived from it are ever stored.
type RoundInput struct {
	FinisherID     string         `json:"finisher_id"`
	Hand           HandType       `json:"hand_type"`
	RemainingCards map[string]int `json:"remaining_cards"`
}

// Game is an immutable snapshot of a game in progress. Score history is
// keyed by player ID; a nil entry means the round has not been played.
type Game struct {
	ID           string              `json:"id"`
	CreatedAt    time.Time           `json:"created_at"`
	Players      []Player            `json:"players"`
	Rounds       int                 `json:"rounds"`
	Mode         GameMode            `json:"mode"`
	Teams        map[TeamID][]string `json:"teams,omitempty"`
	Scores       map[string][]*int   `json:"scores"`
	CurrentRound int                 `json:"current_round"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// PlayerTeam returns the team a player belongs to, or TeamNone.
func (g Game) PlayerTeam(playerID string) TeamID {
	for team, members := range g.Teams {
		for _, id := range members {
			if id == playerID {
				return team
			}
		}
	}
	return TeamNone
}

// PlayedRounds returns how many rounds have been saved so far.
func (g Game) PlayedRounds() int {
	played := g.CurrentRound - 1
	if played > g.Rounds {
		played = g.Rounds
	}
	if played < 0 {
		played = 0
	}
	return played
}
