package stats

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/hand-tracker/internal/config"
	"github.com/hand-tracker/internal/domain"
	"github.com/hand-tracker/internal/history"
	"github.com/hand-tracker/internal/store"
)

func testAggregator(t *testing.T, records ...domain.GameRecord) *Aggregator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := store.NewMemory()
	cfg := &config.HistoryConfig{MaxSavedGames: 100, RecentScoreWindow: 50}
	archive := history.NewArchive(kv, cfg, logger)
	for _, rec := range records {
		if err := archive.SaveCompletedGame(context.Background(), rec); err != nil {
			t.Fatalf("seeding archive: %v", err)
		}
	}
	return NewAggregator(archive, logger)
}

func intp(v int) *int { return &v }

func soloRecord(id string, scores map[string]int) domain.GameRecord {
	completed := time.Date(2026, 4, 1, 19, 0, 0, 0, time.UTC)
	rec := domain.GameRecord{
		ID:          id,
		CreatedAt:   completed.Add(-20 * time.Minute),
		CompletedAt: completed,
		Rounds:      7,
		Mode:        domain.ModeSolo,
		Scores:      make(map[string][]*int),
		FinalScores: scores,
		DurationMin: 20,
	}

	best := 0
	first := true
	for id, score := range scores {
		rec.Players = append(rec.Players, domain.RecordPlayer{ID: id, Name: nameOf(id)})
		rec.Scores[id] = []*int{intp(score), nil, nil, nil, nil, nil, nil}
		if first || score < best {
			best = score
			rec.Winner = &domain.WinnerRef{ID: id, Name: nameOf(id), Score: score}
			first = false
		}
	}
	return rec
}

func nameOf(id string) string {
	switch id {
	case "alice":
		return "Alice"
	case "bob":
		return "Bob"
	default:
		return id
	}
}

func TestConsistencyMetric(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   float64
	}{
		{"identical scores", []int{-30, -30, -30}, 0},
		{"symmetric pair", []int{-30, 30}, 30},
		{"single game", []int{12}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []domain.GameRecord
			for i, score := range tt.scores {
				records = append(records, soloRecord(
					string(rune('a'+i))+"-game",
					map[string]int{"alice": score, "bob": score + 100},
				))
			}
			agg := testAggregator(t, records...)

			summaries, err := agg.PlayerSummaries(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := summaries["Alice"].Consistency
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("consistency = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverviewHighlights(t *testing.T) {
	g1 := soloRecord("g1", map[string]int{"alice": -70, "bob": 42})
	g2 := soloRecord("g2", map[string]int{"alice": 10, "bob": -30})
	agg := testAggregator(t, g1, g2)

	o, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.TotalGames != 2 || o.TotalRounds != 14 || o.TotalPlayers != 2 {
		t.Errorf("totals = %d games %d rounds %d players, want 2/14/2",
			o.TotalGames, o.TotalRounds, o.TotalPlayers)
	}
	if o.HighestPenalty != 42 {
		t.Errorf("highest penalty = %d, want 42", o.HighestPenalty)
	}
	// Alice's winning game holds a -70 round, a full-hand finish.
	if o.FullHandFinishes != 1 {
		t.Errorf("full-hand finishes = %d, want 1", o.FullHandFinishes)
	}
	if o.LargestMargin == nil || o.LargestMargin.Margin != 112 {
		t.Errorf("largest margin = %+v, want 112 (g1: 42 - (-70))", o.LargestMargin)
	}
	if o.LargestMargin != nil && o.LargestMargin.Winner != "Alice" {
		t.Errorf("largest margin winner = %s, want Alice", o.LargestMargin.Winner)
	}
	if o.FastestWin == nil || o.FastestWin.Rounds != 7 {
		t.Errorf("fastest win = %+v, want a 7-round game", o.FastestWin)
	}
}

func partnershipRecord(id string, teamA, teamB int) domain.GameRecord {
	completed := time.Date(2026, 4, 2, 19, 0, 0, 0, time.UTC)
	half := func(v int) int { return v / 2 }
	return domain.GameRecord{
		ID:          id,
		CreatedAt:   completed.Add(-30 * time.Minute),
		CompletedAt: completed,
		Players: []domain.RecordPlayer{
			{ID: "p1", Name: "P1"},
			{ID: "p2", Name: "P2"},
			{ID: "p3", Name: "P3"},
			{ID: "p4", Name: "P4"},
		},
		Rounds: 7,
		Mode:   domain.ModePartnership,
		Teams: map[domain.TeamID][]string{
			domain.TeamA: {"p1", "p2"},
			domain.TeamB: {"p3", "p4"},
		},
		Scores: map[string][]*int{
			"p1": {intp(half(teamA)), nil, nil, nil, nil, nil, nil},
			"p2": {intp(teamA - half(teamA)), nil, nil, nil, nil, nil, nil},
			"p3": {intp(half(teamB)), nil, nil, nil, nil, nil, nil},
			"p4": {intp(teamB - half(teamB)), nil, nil, nil, nil, nil, nil},
		},
		FinalScores: map[string]int{
			"p1": half(teamA), "p2": teamA - half(teamA),
			"p3": half(teamB), "p4": teamB - half(teamB),
		},
		TeamScores:  map[domain.TeamID]int{domain.TeamA: teamA, domain.TeamB: teamB},
		DurationMin: 30,
	}
}

func TestPartnershipAggregates(t *testing.T) {
	agg := testAggregator(t,
		partnershipRecord("g1", -50, 22),
		partnershipRecord("g2", -10, 4),
		partnershipRecord("g3", 30, -20),
	)

	o, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	teamA := o.Teams[domain.TeamA]
	teamB := o.Teams[domain.TeamB]
	if teamA.Wins != 2 || teamB.Wins != 1 {
		t.Errorf("team wins = A:%d B:%d, want A:2 B:1", teamA.Wins, teamB.Wins)
	}
	if teamA.GamesPlayed != 3 || teamB.GamesPlayed != 3 {
		t.Errorf("team games = A:%d B:%d, want 3 each", teamA.GamesPlayed, teamB.GamesPlayed)
	}
	if math.Abs(teamA.AvgScore-(-10)) > 1e-9 {
		t.Errorf("team A avg = %v, want -10", teamA.AvgScore)
	}

	if o.TopWinningPair == nil {
		t.Fatal("no top winning pair")
	}
	if o.TopWinningPair.Pair != "P1 & P2" {
		t.Errorf("top pair = %s, want P1 & P2", o.TopWinningPair.Pair)
	}
	if o.TopWinningPair.Wins != 2 || o.TopWinningPair.GamesPlayed != 3 {
		t.Errorf("top pair record = %d/%d, want 2 wins of 3", o.TopWinningPair.Wins, o.TopWinningPair.GamesPlayed)
	}
	if math.Abs(o.TopWinningPair.WinRate-200.0/3) > 1e-9 {
		t.Errorf("top pair win rate = %v, want %v", o.TopWinningPair.WinRate, 200.0/3)
	}
}

func TestPartialRecordSkippedPerMetric(t *testing.T) {
	full := soloRecord("g1", map[string]int{"alice": -30, "bob": 15})

	// A record with round scores but no final scores: counts for totals
	// and highest penalty, skipped for winner-derived metrics.
	partial := domain.GameRecord{
		ID:          "g2",
		CompletedAt: time.Date(2026, 4, 3, 19, 0, 0, 0, time.UTC),
		Players: []domain.RecordPlayer{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", Name: "Bob"},
		},
		Rounds: 9,
		Mode:   domain.ModeSolo,
		Scores: map[string][]*int{
			"bob": {intp(99), nil, nil, nil, nil, nil, nil, nil, nil},
		},
	}

	agg := testAggregator(t, full, partial)

	o, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("partial record must not abort the overview: %v", err)
	}
	if o.TotalGames != 2 || o.TotalRounds != 16 {
		t.Errorf("totals = %d games %d rounds, want 2/16", o.TotalGames, o.TotalRounds)
	}
	if o.HighestPenalty != 99 {
		t.Errorf("highest penalty = %d, want 99 from the partial record", o.HighestPenalty)
	}
	if o.LargestMargin == nil || o.LargestMargin.GameID != "g1" {
		t.Errorf("largest margin = %+v, want derived from g1 only", o.LargestMargin)
	}

	summaries, err := agg.PlayerSummaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summaries["Alice"].GamesPlayed != 1 {
		t.Errorf("alice games = %d, partial record must not count", summaries["Alice"].GamesPlayed)
	}
}
