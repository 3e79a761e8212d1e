package domain

import (
	"fmt"
	"time"
)

// RecordPlayer is the reduced player shape kept on archived games
type RecordPlayer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// WinnerRef identifies the first-ranked player of an archived game
type WinnerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// GameRecord is the frozen, denormalized snapshot of a completed game.
// Records are written once at completion and never mutated afterwards;
// the only later operations are single deletion and full reset.
type GameRecord struct {
	ID          string              `json:"id"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt time.Time           `json:"completed_at"`
	Players     []RecordPlayer      `json:"players"`
	Rounds      int                 `json:"rounds"`
	Mode        GameMode            `json:"mode"`
	Teams       map[TeamID][]string `json:"teams,omitempty"`
	Scores      map[string][]*int   `json:"scores"`
	FinalScores map[string]int      `json:"final_scores"`
	TeamScores  map[TeamID]int      `json:"team_scores,omitempty"`
	Winner      *WinnerRef          `json:"winner,omitempty"`
	DurationMin int                 `json:"duration_min"`
}

// Validate checks the minimal shape a stored record must have to be usable
// at all. Records failing this are quarantined at the storage boundary;
// optional fields (final scores, team data) are checked per metric by the
// statistics aggregator instead.
func (r GameRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing game id", ErrMalformedRecord)
	}
	if len(r.Players) == 0 {
		return fmt.Errorf("%w: game %s has no players", ErrMalformedRecord, r.ID)
	}
	for i, p := range r.Players {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("%w: game %s player %d missing id or name", ErrMalformedRecord, r.ID, i)
		}
	}
	return nil
}

// HasFinalScores reports whether every listed player has a final score.
func (r GameRecord) HasFinalScores() bool {
	if len(r.FinalScores) == 0 {
		return false
	}
	for _, p := range r.Players {
		if _, ok := r.FinalScores[p.ID]; !ok {
			return false
		}
	}
	return true
}
