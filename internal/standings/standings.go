// Package standings derives totals, rankings and winners from a game
// snapshot. Everything here is recomputed from the score history on every
// call so that retroactive round edits are always reflected; nothing is
// cached. Lowest score wins throughout.
package standings

import (
	"sort"

	"github.com/hand-tracker/internal/domain"
)

// RankedPlayer pairs a player with their current total
type RankedPlayer struct {
	Player domain.Player
	Score  int
}

// FinalScore sums a player's score history, treating unplayed rounds as 0.
func FinalScore(g domain.Game, playerID string) int {
	total := 0
	for _, round := range g.Scores[playerID] {
		if round != nil {
			total += *round
		}
	}
	return total
}

// FinalScores returns the current total for every player in the game.
func FinalScores(g domain.Game) map[string]int {
	totals := make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		totals[p.ID] = FinalScore(g, p.ID)
	}
	return totals
}

// TeamScore sums the totals of a team's members. Zero for unknown teams.
func TeamScore(g domain.Game, team domain.TeamID) int {
	total := 0
	for _, id := range g.Teams[team] {
		total += FinalScore(g, id)
	}
	return total
}

// TeamScores returns both team totals, or nil outside partnership mode.
func TeamScores(g domain.Game) map[domain.TeamID]int {
	if g.Mode != domain.ModePartnership {
		return nil
	}
	return map[domain.TeamID]int{
		domain.TeamA: TeamScore(g, domain.TeamA),
		domain.TeamB: TeamScore(g, domain.TeamB),
	}
}

// Winners returns every player holding the minimum score. In partnership
// mode the comparison is between team totals and the winning team is
// expanded to its members; ties return all tied players, in roster order,
// and the caller renders the tie rather than picking one.
func Winners(g domain.Game) []domain.Player {
	if len(g.Players) == 0 {
		return nil
	}

	if g.Mode == domain.ModePartnership {
		return teamWinners(g)
	}

	totals := FinalScores(g)
	min := totals[g.Players[0].ID]
	for _, p := range g.Players[1:] {
		if totals[p.ID] < min {
			min = totals[p.ID]
		}
	}

	var winners []domain.Player
	for _, p := range g.Players {
		if totals[p.ID] == min {
			winners = append(winners, p)
		}
	}
	return winners
}

func teamWinners(g domain.Game) []domain.Player {
	scores := TeamScores(g)

	min := scores[domain.TeamA]
	if scores[domain.TeamB] < min {
		min = scores[domain.TeamB]
	}

	winning := make(map[domain.TeamID]bool, 2)
	for team, score := range scores {
		if score == min {
			winning[team] = true
		}
	}

	var winners []domain.Player
	for _, p := range g.Players {
		if winning[g.PlayerTeam(p.ID)] {
			winners = append(winners, p)
		}
	}
	return winners
}

// RankedPlayers sorts all players ascending by total, keeping roster order
// on ties.
func RankedPlayers(g domain.Game) []RankedPlayer {
	ranked := make([]RankedPlayer, 0, len(g.Players))
	for _, p := range g.Players {
		ranked = append(ranked, RankedPlayer{Player: p, Score: FinalScore(g, p.ID)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	return ranked
}
