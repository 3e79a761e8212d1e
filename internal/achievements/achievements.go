// Package achievements tracks device-wide gameplay milestones. Progress is
// evaluated from the folded player statistics after each completed game and
// persisted to the KV substrate; it only ever moves forward.
package achievements

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hand-tracker/internal/domain"
	"github.com/hand-tracker/internal/store"
)

const achievementsKey = "handGameAchievements"

// Definition is a fixed achievement with an unlock threshold
type Definition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Requirement int    `json:"requirement"`
	Points      int    `json:"points"`
}

// Definitions is the fixed achievement catalog
var Definitions = []Definition{
	{
		ID:          "first_win",
		Title:       "First Victory",
		Description: "Win your first game",
		Requirement: 1,
		Points:      100,
	},
	{
		ID:          "winning_streak",
		Title:       "Winning Streak",
		Description: "Win 3 games in a row",
		Requirement: 3,
		Points:      300,
	},
	{
		ID:          "team_player",
		Title:       "Team Player",
		Description: "Win 5 partnership games",
		Requirement: 5,
		Points:      500,
	},
	{
		ID:          "high_scorer",
		Title:       "High Scorer",
		Description: "Score over 100 points in a single game",
		Requirement: 100,
		Points:      200,
	},
}

// Status is a definition joined with its current progress
type Status struct {
	Definition
	Progress int  `json:"progress"`
	Unlocked bool `json:"unlocked"`
}

// Service persists and evaluates achievement progress
type Service struct {
	kv     store.KV
	logger *slog.Logger
}

// NewService creates an achievements service over the given substrate
func NewService(kv store.KV, logger *slog.Logger) *Service {
	return &Service{kv: kv, logger: logger}
}

// Evaluate recomputes progress from the folded statistics and persists it.
// Stored progress is monotonic: a cleared statistics store never revokes an
// achievement that was already earned.
func (s *Service) Evaluate(ctx context.Context, stats map[string]domain.PlayerStats) error {
	progress, err := s.load(ctx)
	if err != nil {
		return err
	}

	candidate := map[string]int{
		"first_win":      0,
		"winning_streak": 0,
		"team_player":    0,
		"high_scorer":    0,
	}
	for _, ps := range stats {
		candidate["first_win"] = max(candidate["first_win"], ps.Wins)
		candidate["winning_streak"] = max(candidate["winning_streak"], ps.BestStreak)
		candidate["team_player"] = max(candidate["team_player"], ps.PartnershipWins)
		if ps.GamesPlayed > 0 {
			candidate["high_scorer"] = max(candidate["high_scorer"], ps.WorstScore)
		}
	}

	changed := false
	for id, value := range candidate {
		if value > progress[id] {
			progress[id] = value
			changed = true
		}
	}
	if !changed {
		return nil
	}

	if err := s.store(ctx, progress); err != nil {
		return err
	}
	s.logger.Info("achievement progress updated", "entries", len(progress))
	return nil
}

// Statuses returns every achievement with its stored progress
func (s *Service) Statuses(ctx context.Context) ([]Status, error) {
	progress, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(Definitions))
	for _, def := range Definitions {
		p := progress[def.ID]
		statuses = append(statuses, Status{
			Definition: def,
			Progress:   p,
			Unlocked:   p >= def.Requirement,
		})
	}
	return statuses, nil
}

// TotalPoints sums the points of all unlocked achievements
func (s *Service) TotalPoints(ctx context.Context) (int, error) {
	statuses, err := s.Statuses(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, st := range statuses {
		if st.Unlocked {
			total += st.Points
		}
	}
	return total, nil
}

func (s *Service) load(ctx context.Context) (map[string]int, error) {
	progress := make(map[string]int)

	raw, ok, err := s.kv.Get(ctx, achievementsKey)
	if err != nil {
		return nil, fmt.Errorf("loading achievements: %w: %v", domain.ErrStorage, err)
	}
	if !ok {
		return progress, nil
	}

	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		// Unreadable progress is dropped rather than blocking play.
		s.logger.Warn("discarding unreadable achievement progress", "error", err)
		return make(map[string]int), nil
	}
	return progress, nil
}

func (s *Service) store(ctx context.Context, progress map[string]int) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encoding achievements: %w: %v", domain.ErrStorage, err)
	}
	if err := s.kv.Set(ctx, achievementsKey, string(data)); err != nil {
		return fmt.Errorf("storing achievements: %w: %v", domain.ErrStorage, err)
	}
	return nil
}
