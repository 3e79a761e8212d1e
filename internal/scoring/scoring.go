// Package scoring implements the round scoring rules of the Hand card game.
// Scores are signed integers and lower is better: the finisher takes a fixed
// negative delta, everyone else is penalized by their remaining card values.
package scoring

import (
	"fmt"

	"github.com/hand-tracker/internal/domain"
)

const (
	// NormalFinisherDelta is awarded to the finisher of a normal hand
	NormalFinisherDelta = -30
	// FullFinisherDelta is awarded to the finisher of a full hand
	FullFinisherDelta = -60
	// FullHandMultiplier doubles the other players' penalties on a full hand
	FullHandMultiplier = 2
)

// ComputeRoundDeltas turns a round's raw input into per-player signed deltas.
// Every non-finisher must have a non-negative entry in remaining; the finisher
// must be one of the given players. Pure and deterministic.
func ComputeRoundDeltas(finisherID string, hand domain.HandType, remaining map[string]int, players []domain.Player) (map[string]int, error) {
	if hand != domain.HandNormal && hand != domain.HandFull {
		return nil, fmt.Errorf("%w: unknown hand type %q", domain.ErrValidation, hand)
	}

	found := false
	for _, p := range players {
		if p.ID == finisherID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: finisher %q is not in the game", domain.ErrValidation, finisherID)
	}

	deltas := make(map[string]int, len(players))
	for _, p := range players {
		if p.ID == finisherID {
			if hand == domain.HandFull {
				deltas[p.ID] = FullFinisherDelta
			} else {
				deltas[p.ID] = NormalFinisherDelta
			}
			continue
		}

		value, ok := remaining[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: missing card value for player %q", domain.ErrValidation, p.ID)
		}
		if value < 0 {
			return nil, fmt.Errorf("%w: negative card value %d for player %q", domain.ErrValidation, value, p.ID)
		}
		if hand == domain.HandFull {
			value *= FullHandMultiplier
		}
		deltas[p.ID] = value
	}

	return deltas, nil
}
