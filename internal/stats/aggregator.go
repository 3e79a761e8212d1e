// Package stats recomputes cross-game summaries by replaying the full
// archived game list. Nothing here is incremental: every read walks all
// stored records, so deletions and quarantined entries are naturally
// reflected. A record missing the fields a metric needs is skipped for
// that metric only; the replay never aborts.
package stats

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/hand-tracker/internal/domain"
	"github.com/hand-tracker/internal/history"
	"github.com/hand-tracker/internal/scoring"
)

// PlayerSummary is the per-player view derived from replaying the archive
type PlayerSummary struct {
	Name             string  `json:"name"`
	GamesPlayed      int     `json:"games_played"`
	RoundsPlayed     int     `json:"rounds_played"`
	Wins             int     `json:"wins"`
	WinRate          float64 `json:"win_rate"`
	TotalScore       int     `json:"total_score"`
	AvgScore         float64 `json:"avg_score"`
	BestScore        int     `json:"best_score"`
	WorstScore       int     `json:"worst_score"`
	SoloGames        int     `json:"solo_games"`
	PartnershipGames int     `json:"partnership_games"`
	TotalDurationMin int     `json:"total_duration_min"`
	AvgDurationMin   float64 `json:"avg_duration_min"`
	FullHandFinishes int     `json:"full_hand_finishes"`
	// Consistency is the population standard deviation of the player's
	// final scores across all their games; lower means steadier play.
	Consistency float64 `json:"consistency"`
}

// FastestWin is the game with the fewest rounds that produced a winner
type FastestWin struct {
	Rounds int    `json:"rounds"`
	GameID string `json:"game_id"`
	Winner string `json:"winner"`
}

// LargestMargin is the biggest gap between first and second place
type LargestMargin struct {
	Margin   int    `json:"margin"`
	GameID   string `json:"game_id"`
	Winner   string `json:"winner"`
	RunnerUp string `json:"runner_up"`
}

// TeamRecord aggregates one team's partnership results
type TeamRecord struct {
	Wins        int     `json:"wins"`
	GamesPlayed int     `json:"games_played"`
	TotalScore  int     `json:"total_score"`
	AvgScore    float64 `json:"avg_score"`
}

// PairRecord tracks an exact pair of teammates
type PairRecord struct {
	Pair        string  `json:"pair"`
	Wins        int     `json:"wins"`
	GamesPlayed int     `json:"games_played"`
	WinRate     float64 `json:"win_rate"`
}

// Overview is the cross-game highlight view
type Overview struct {
	TotalGames       int                          `json:"total_games"`
	TotalRounds      int                          `json:"total_rounds"`
	TotalPlayers     int                          `json:"total_players"`
	SoloGames        int                          `json:"solo_games"`
	PartnershipGames int                          `json:"partnership_games"`
	AvgDurationMin   float64                      `json:"avg_duration_min"`
	FullHandFinishes int                          `json:"full_hand_finishes"`
	HighestPenalty   int                          `json:"highest_penalty"`
	FastestWin       *FastestWin                  `json:"fastest_win,omitempty"`
	LargestMargin    *LargestMargin               `json:"largest_margin,omitempty"`
	Teams            map[domain.TeamID]TeamRecord `json:"teams,omitempty"`
	TopWinningPair   *PairRecord                  `json:"top_winning_pair,omitempty"`
}

// Aggregator replays the archive on every read
type Aggregator struct {
	archive *history.Archive
	logger  *slog.Logger
}

// NewAggregator creates an aggregator over the given archive
func NewAggregator(archive *history.Archive, logger *slog.Logger) *Aggregator {
	return &Aggregator{archive: archive, logger: logger}
}

// PlayerSummaries rebuilds every player's summary from the stored games
func (a *Aggregator) PlayerSummaries(ctx context.Context) (map[string]PlayerSummary, error) {
	records, err := a.archive.ListGames(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make(map[string]PlayerSummary)
	finals := make(map[string][]int)

	for _, rec := range records {
		if !rec.HasFinalScores() {
			a.logger.Warn("skipping game without final scores", "game_id", rec.ID)
			continue
		}
		winner := recordWinner(rec)

		for _, p := range rec.Players {
			s := summaries[p.Name]
			s.Name = p.Name

			score := rec.FinalScores[p.ID]
			won := winner != nil && winner.ID == p.ID

			if s.GamesPlayed == 0 {
				s.BestScore = score
				s.WorstScore = score
			} else {
				if score < s.BestScore {
					s.BestScore = score
				}
				if score > s.WorstScore {
					s.WorstScore = score
				}
			}

			s.GamesPlayed++
			s.RoundsPlayed += rec.Rounds
			s.TotalScore += score
			s.TotalDurationMin += rec.DurationMin
			if won {
				s.Wins++
				if hasFullHandRound(rec.Scores[p.ID]) {
					s.FullHandFinishes++
				}
			}
			if rec.Mode == domain.ModePartnership {
				s.PartnershipGames++
			} else {
				s.SoloGames++
			}

			summaries[p.Name] = s
			finals[p.Name] = append(finals[p.Name], score)
		}
	}

	for name, s := range summaries {
		s.WinRate = ratio(s.Wins, s.GamesPlayed) * 100
		s.AvgScore = mean(finals[name])
		s.AvgDurationMin = float64(s.TotalDurationMin) / float64(s.GamesPlayed)
		s.Consistency = populationStdDev(finals[name])
		summaries[name] = s
	}
	return summaries, nil
}

// Overview rebuilds the cross-game highlights from the stored games
func (a *Aggregator) Overview(ctx context.Context) (Overview, error) {
	records, err := a.archive.ListGames(ctx)
	if err != nil {
		return Overview{}, err
	}

	o := Overview{}
	players := make(map[string]struct{})
	pairs := make(map[string]*PairRecord)
	totalDuration := 0

	for _, rec := range records {
		o.TotalGames++
		o.TotalRounds += rec.Rounds
		totalDuration += rec.DurationMin
		if rec.Mode == domain.ModePartnership {
			o.PartnershipGames++
		} else {
			o.SoloGames++
		}
		for _, p := range rec.Players {
			players[p.Name] = struct{}{}
		}

		for _, rounds := range rec.Scores {
			for _, round := range rounds {
				if round != nil && *round > o.HighestPenalty {
					o.HighestPenalty = *round
				}
			}
		}

		// Winner-derived highlights need full final scores.
		if !rec.HasFinalScores() {
			a.logger.Warn("skipping game for winner-derived highlights", "game_id", rec.ID)
			continue
		}
		ranked := rankByFinalScore(rec)
		winner := ranked[0]

		if hasFullHandRound(rec.Scores[winner.id]) {
			o.FullHandFinishes++
		}
		if o.FastestWin == nil || rec.Rounds < o.FastestWin.Rounds {
			o.FastestWin = &FastestWin{Rounds: rec.Rounds, GameID: rec.ID, Winner: winner.name}
		}
		if len(ranked) > 1 {
			margin := ranked[1].score - ranked[0].score
			if o.LargestMargin == nil || margin > o.LargestMargin.Margin {
				o.LargestMargin = &LargestMargin{
					Margin:   margin,
					GameID:   rec.ID,
					Winner:   winner.name,
					RunnerUp: ranked[1].name,
				}
			}
		}

		a.foldPartnership(rec, &o, pairs)
	}

	o.TotalPlayers = len(players)
	if o.TotalGames > 0 {
		o.AvgDurationMin = float64(totalDuration) / float64(o.TotalGames)
	}
	if o.Teams != nil {
		for id, team := range o.Teams {
			team.AvgScore = float64(team.TotalScore) / float64(team.GamesPlayed)
			o.Teams[id] = team
		}
	}

	for _, pair := range pairs {
		pair.WinRate = ratio(pair.Wins, pair.GamesPlayed) * 100
		if o.TopWinningPair == nil || pair.Wins > o.TopWinningPair.Wins {
			o.TopWinningPair = pair
		}
	}

	return o, nil
}

// foldPartnership accumulates team and teammate-pair aggregates. Records
// lacking team data are skipped for these metrics only.
func (a *Aggregator) foldPartnership(rec domain.GameRecord, o *Overview, pairs map[string]*PairRecord) {
	if rec.Mode != domain.ModePartnership || len(rec.TeamScores) == 0 || len(rec.Teams) == 0 {
		return
	}

	winning := domain.TeamA
	if rec.TeamScores[domain.TeamB] < rec.TeamScores[domain.TeamA] {
		winning = domain.TeamB
	}

	if o.Teams == nil {
		o.Teams = make(map[domain.TeamID]TeamRecord, 2)
	}
	for _, id := range []domain.TeamID{domain.TeamA, domain.TeamB} {
		team := o.Teams[id]
		team.GamesPlayed++
		team.TotalScore += rec.TeamScores[id]
		if id == winning {
			team.Wins++
		}
		o.Teams[id] = team
	}

	for _, id := range []domain.TeamID{domain.TeamA, domain.TeamB} {
		key := pairKey(rec, id)
		if key == "" {
			continue
		}
		pair, ok := pairs[key]
		if !ok {
			pair = &PairRecord{Pair: key}
			pairs[key] = pair
		}
		pair.GamesPlayed++
		if id == winning {
			pair.Wins++
		}
	}
}

// pairKey produces a stable "name & name" key for an exact teammate pair
func pairKey(rec domain.GameRecord, team domain.TeamID) string {
	names := make([]string, 0, 2)
	for _, member := range rec.Teams[team] {
		for _, p := range rec.Players {
			if p.ID == member {
				names = append(names, p.Name)
			}
		}
	}
	if len(names) != 2 {
		return ""
	}
	sort.Strings(names)
	return strings.Join(names, " & ")
}

type rankedEntry struct {
	id    string
	name  string
	score int
}

func rankByFinalScore(rec domain.GameRecord) []rankedEntry {
	ranked := make([]rankedEntry, 0, len(rec.Players))
	for _, p := range rec.Players {
		ranked = append(ranked, rankedEntry{id: p.ID, name: p.Name, score: rec.FinalScores[p.ID]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})
	return ranked
}

func recordWinner(rec domain.GameRecord) *domain.WinnerRef {
	if rec.Winner != nil {
		return rec.Winner
	}
	ranked := rankByFinalScore(rec)
	if len(ranked) == 0 {
		return nil
	}
	return &domain.WinnerRef{ID: ranked[0].id, Name: ranked[0].name, Score: ranked[0].score}
}

func hasFullHandRound(rounds []*int) bool {
	for _, round := range rounds {
		if round != nil && *round <= scoring.FullFinisherDelta {
			return true
		}
	}
	return false
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func populationStdDev(values []int) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := float64(v) - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}
