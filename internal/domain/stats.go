package domain

import "time"

// ScoreSample is one entry in a player's rolling recent-score window
type ScoreSample struct {
	Score  int       `json:"score"`
	Date   time.Time `json:"date"`
	Won    bool      `json:"won"`
	Mode   GameMode  `json:"mode"`
	GameID string    `json:"game_id"`
}

// PlayerStats holds the raw accumulators folded from every completed game a
// player (keyed by name) took part in. Derived figures such as win rate and
// averages are always recomputed from these, never stored.
type PlayerStats struct {
	GamesPlayed      int           `json:"games_played"`
	RoundsPlayed     int           `json:"rounds_played"`
	Wins             int           `json:"wins"`
	PartnershipWins  int           `json:"partnership_wins"`
	TotalScore       int           `json:"total_score"`
	BestScore        int           `json:"best_score"`
	WorstScore       int           `json:"worst_score"`
	SoloGames        int           `json:"solo_games"`
	PartnershipGames int           `json:"partnership_games"`
	TotalDurationMin int           `json:"total_duration_min"`
	FullHandFinishes int           `json:"full_hand_finishes"`
	CurrentStreak    int           `json:"current_streak"`
	BestStreak       int           `json:"best_streak"`
	FirstPlayed      time.Time     `json:"first_played"`
	LastPlayed       time.Time     `json:"last_played"`
	Recent           []ScoreSample `json:"recent"`
}

// WinRate returns the win percentage over all games played.
func (s PlayerStats) WinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.GamesPlayed) * 100
}

// AvgScore returns the mean final score per game.
func (s PlayerStats) AvgScore() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.GamesPlayed)
}

// AvgDurationMin returns the mean game duration in minutes.
func (s PlayerStats) AvgDurationMin() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.TotalDurationMin) / float64(s.GamesPlayed)
}
