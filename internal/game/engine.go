// Package game owns the lifecycle of a single live game: the roster, the
// round cursor, and the per-player score history. All mutations are
// synchronous and atomic; a rejected operation leaves state untouched.
package game

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hand-tracker/internal/domain"
)

// State is the lifecycle phase of the engine
type State string

const (
	StateSetup      State = "setup"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

const (
	MinPlayers = 2
	MaxPlayers = 4
	// PartnershipPlayers is the only roster size allowed in partnership mode
	PartnershipPlayers = 4
)

// ValidRounds lists the supported game lengths
var ValidRounds = []int{7, 9}

// Engine is the game state machine. Not safe for concurrent use: the caller
// serializes mutations, matching the one-in-flight-action UI model.
type Engine struct {
	logger *slog.Logger

	state       State
	id          string
	createdAt   time.Time
	players     []domain.Player
	rounds      int
	mode        domain.GameMode
	teams       map[domain.TeamID][]string
	scores      map[string][]*int
	cursor      int
	completedAt *time.Time
}

// New creates an engine in the Setup state
func New(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logger,
		state:  StateSetup,
	}
}

// Start validates the roster and begins a new game. In partnership mode the
// four players are assigned to teams alternately by roster position.
func (e *Engine) Start(players []domain.Player, rounds int, mode domain.GameMode) error {
	if e.state == StateInProgress {
		return fmt.Errorf("%w: a game is already in progress", domain.ErrValidation)
	}
	if !validRoundCount(rounds) {
		return fmt.Errorf("%w: round count must be one of %v, got %d", domain.ErrValidation, ValidRounds, rounds)
	}
	if mode != domain.ModeSolo && mode != domain.ModePartnership {
		return fmt.Errorf("%w: unknown game mode %q", domain.ErrValidation, mode)
	}
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return fmt.Errorf("%w: need %d-%d players, got %d", domain.ErrValidation, MinPlayers, MaxPlayers, len(players))
	}
	if mode == domain.ModePartnership && len(players) != PartnershipPlayers {
		return fmt.Errorf("%w: partnership mode requires exactly %d players, got %d", domain.ErrValidation, PartnershipPlayers, len(players))
	}

	// Names are trimmed and compared case-insensitively; this is the only
	// place uniqueness is enforced, not during setup editing.
	roster := make([]domain.Player, len(players))
	seen := make(map[string]struct{}, len(players))
	for i, p := range players {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("%w: player %d has an empty name", domain.ErrValidation, i+1)
		}
		folded := strings.ToLower(name)
		if _, dup := seen[folded]; dup {
			return fmt.Errorf("%w: duplicate player name %q", domain.ErrValidation, name)
		}
		seen[folded] = struct{}{}

		roster[i] = p
		roster[i].Name = name
		if roster[i].ID == "" {
			roster[i].ID = uuid.NewString()
		}
	}

	teams := make(map[domain.TeamID][]string)
	if mode == domain.ModePartnership {
		for i := range roster {
			team := domain.TeamA
			if i%2 == 1 {
				team = domain.TeamB
			}
			roster[i].Team = team
			teams[team] = append(teams[team], roster[i].ID)
		}
	}

	scores := make(map[string][]*int, len(roster))
	for _, p := range roster {
		scores[p.ID] = make([]*int, rounds)
	}

	e.state = StateInProgress
	e.id = uuid.NewString()
	e.createdAt = time.Now()
	e.players = roster
	e.rounds = rounds
	e.mode = mode
	e.teams = teams
	e.scores = scores
	e.cursor = 1
	e.completedAt = nil

	e.logger.Info("game started",
		"game_id", e.id,
		"players", len(roster),
		"rounds", rounds,
		"mode", mode,
	)
	return nil
}

// SaveRound writes the deltas for the current round and advances the cursor.
// Players missing from deltas score 0. Completion is the caller's explicit
// next step once the cursor passes the last round.
func (e *Engine) SaveRound(deltas map[string]int) error {
	if e.state != StateInProgress {
		return fmt.Errorf("%w: no game in progress", domain.ErrValidation)
	}
	if e.cursor > e.rounds {
		return fmt.Errorf("%w: all %d rounds already played", domain.ErrOutOfRange, e.rounds)
	}

	e.writeRound(e.cursor, deltas)
	e.cursor++

	e.logger.Info("round saved", "game_id", e.id, "round", e.cursor-1, "next_round", e.cursor)
	return nil
}

// EditRound atomically replaces the deltas of a previously played round for
// every player. The cursor never moves on an edit.
func (e *Engine) EditRound(round int, deltas map[string]int) error {
	if e.state != StateInProgress {
		return fmt.Errorf("%w: no game in progress", domain.ErrValidation)
	}
	if round < 1 || round > e.rounds {
		return fmt.Errorf("%w: round %d outside [1, %d]", domain.ErrOutOfRange, round, e.rounds)
	}
	if round >= e.cursor {
		return fmt.Errorf("%w: round %d has not been played yet", domain.ErrOutOfRange, round)
	}

	e.writeRound(round, deltas)

	e.logger.Info("round edited", "game_id", e.id, "round", round)
	return nil
}

// Complete transitions the game to Completed once every round is played.
func (e *Engine) Complete() error {
	if e.state != StateInProgress {
		return fmt.Errorf("%w: no game in progress", domain.ErrValidation)
	}
	if e.cursor <= e.rounds {
		return fmt.Errorf("%w: %d of %d rounds played", domain.ErrValidation, e.cursor-1, e.rounds)
	}

	now := time.Now()
	e.completedAt = &now
	e.state = StateCompleted

	e.logger.Info("game completed", "game_id", e.id, "duration", now.Sub(e.createdAt))
	return nil
}

// Reset discards all game state and returns to Setup. Valid from any state.
func (e *Engine) Reset() {
	e.state = StateSetup
	e.id = ""
	e.createdAt = time.Time{}
	e.players = nil
	e.rounds = 0
	e.mode = ""
	e.teams = nil
	e.scores = nil
	e.cursor = 0
	e.completedAt = nil
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	return e.state
}

// CurrentRound returns the 1-based cursor; rounds+1 means all rounds played.
func (e *Engine) CurrentRound() int {
	return e.cursor
}

// Snapshot returns a deep copy of the game for read-side consumers.
func (e *Engine) Snapshot() domain.Game {
	players := make([]domain.Player, len(e.players))
	copy(players, e.players)

	scores := make(map[string][]*int, len(e.scores))
	for id, history := range e.scores {
		rounds := make([]*int, len(history))
		for i, v := range history {
			if v != nil {
				value := *v
				rounds[i] = &value
			}
		}
		scores[id] = rounds
	}

	var teams map[domain.TeamID][]string
	if len(e.teams) > 0 {
		teams = make(map[domain.TeamID][]string, len(e.teams))
		for team, members := range e.teams {
			teams[team] = append([]string(nil), members...)
		}
	}

	return domain.Game{
		ID:           e.id,
		CreatedAt:    e.createdAt,
		Players:      players,
		Rounds:       e.rounds,
		Mode:         e.mode,
		Teams:        teams,
		Scores:       scores,
		CurrentRound: e.cursor,
		CompletedAt:  e.completedAt,
	}
}

func (e *Engine) writeRound(round int, deltas map[string]int) {
	for _, p := range e.players {
		value := deltas[p.ID]
		v := value
		e.scores[p.ID][round-1] = &v
	}
}

func validRoundCount(rounds int) bool {
	for _, r := range ValidRounds {
		if rounds == r {
			return true
		}
	}
	return false
}
