package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hand-tracker/internal/config"
	"github.com/hand-tracker/internal/domain"
	"github.com/hand-tracker/internal/store"
)

func testArchive() (*Archive, *store.Memory) {
	kv := store.NewMemory()
	cfg := &config.HistoryConfig{MaxSavedGames: 100, RecentScoreWindow: 50}
	return NewArchive(kv, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), kv
}

func intp(v int) *int { return &v }

// record builds a two-player solo record where alice beats bob.
func record(id string, aliceScore, bobScore int) domain.GameRecord {
	completed := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	winner := &domain.WinnerRef{ID: "alice", Name: "Alice", Score: aliceScore}
	if bobScore < aliceScore {
		winner = &domain.WinnerRef{ID: "bob", Name: "Bob", Score: bobScore}
	}
	return domain.GameRecord{
		ID:          id,
		CreatedAt:   completed.Add(-25 * time.Minute),
		CompletedAt: completed,
		Players: []domain.RecordPlayer{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", Name: "Bob"},
		},
		Rounds: 7,
		Mode:   domain.ModeSolo,
		Scores: map[string][]*int{
			"alice": {intp(aliceScore), nil, nil, nil, nil, nil, nil},
			"bob":   {intp(bobScore), nil, nil, nil, nil, nil, nil},
		},
		FinalScores: map[string]int{"alice": aliceScore, "bob": bobScore},
		Winner:      winner,
		DurationMin: 25,
	}
}

func TestSaveCompletedGameIdempotent(t *testing.T) {
	a, _ := testArchive()
	ctx := context.Background()

	rec := record("g1", -30, 15)
	if err := a.SaveCompletedGame(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.DurationMin = 30
	if err := a.SaveCompletedGame(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	games, err := a.ListGames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("stored %d records, want exactly 1", len(games))
	}
	if games[0].DurationMin != 30 {
		t.Errorf("second save did not overwrite: duration = %d, want 30", games[0].DurationMin)
	}
}

func TestHistoryBoundedToMostRecent(t *testing.T) {
	a, _ := testArchive()
	ctx := context.Background()

	for i := 1; i <= 101; i++ {
		if err := a.SaveCompletedGame(ctx, record(fmt.Sprintf("g%03d", i), -30, 15)); err != nil {
			t.Fatalf("game %d: unexpected error: %v", i, err)
		}
	}

	games, err := a.ListGames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != 100 {
		t.Fatalf("stored %d records, want 100", len(games))
	}
	if games[0].ID != "g002" {
		t.Errorf("oldest stored = %s, want g002 (g001 evicted)", games[0].ID)
	}
	if games[99].ID != "g101" {
		t.Errorf("newest stored = %s, want g101", games[99].ID)
	}
	for i := 1; i < len(games); i++ {
		if games[i-1].ID >= games[i].ID {
			t.Fatalf("insertion order broken at %d: %s >= %s", i, games[i-1].ID, games[i].ID)
		}
	}
}

func TestFoldIntoStatistics(t *testing.T) {
	a, _ := testArchive()
	ctx := context.Background()

	if err := a.FoldIntoStatistics(ctx, record("g1", -30, 15)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.FoldIntoStatistics(ctx, record("g2", -70, 5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.FoldIntoStatistics(ctx, record("g3", 20, -30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := a.PlayerStatistics(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alice := stats["Alice"]
	if alice.GamesPlayed != 3 || alice.Wins != 2 {
		t.Errorf("alice played/wins = %d/%d, want 3/2", alice.GamesPlayed, alice.Wins)
	}
	if alice.BestScore != -70 || alice.WorstScore != 20 {
		t.Errorf("alice best/worst = %d/%d, want -70/20", alice.BestScore, alice.WorstScore)
	}
	if alice.TotalScore != -80 {
		t.Errorf("alice total = %d, want -80", alice.TotalScore)
	}
	if alice.BestStreak != 2 || alice.CurrentStreak != 0 {
		t.Errorf("alice streaks = %d/%d, want best 2 current 0", alice.BestStreak, alice.CurrentStreak)
	}
	// g2's winning score history holds a -70 round, at or below the
	// full-hand finisher value.
	if alice.FullHandFinishes != 1 {
		t.Errorf("alice full-hand finishes = %d, want 1", alice.FullHandFinishes)
	}
	if alice.RoundsPlayed != 21 {
		t.Errorf("alice rounds = %d, want 21", alice.RoundsPlayed)
	}
	if got := alice.WinRate(); got < 66.6 || got > 66.7 {
		t.Errorf("alice win rate = %.2f, want ~66.67", got)
	}

	bob := stats["Bob"]
	if bob.Wins != 1 || bob.CurrentStreak != 1 {
		t.Errorf("bob wins/streak = %d/%d, want 1/1", bob.Wins, bob.CurrentStreak)
	}
}

func TestFoldIsIdempotentPerGame(t *testing.T) {
	a, _ := testArchive()
	ctx := context.Background()

	rec := record("g1", -30, 15)
	if err := a.FoldIntoStatistics(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.FoldIntoStatistics(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := a.PlayerStatistics(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats["Alice"].GamesPlayed != 1 {
		t.Errorf("alice games = %d after double fold, want 1", stats["Alice"].GamesPlayed)
	}
}

func TestRecentWindowBounded(t *testing.T) {
	kv := store.NewMemory()
	cfg := &config.HistoryConfig{MaxSavedGames: 100, RecentScoreWindow: 50}
	a := NewArchive(kv, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	for i := 1; i <= 55; i++ {
		if err := a.FoldIntoStatistics(ctx, record(fmt.Sprintf("g%03d", i), -30+i, 15)); err != nil {
			t.Fatalf("game %d: unexpected error: %v", i, err)
		}
	}

	stats, err := a.PlayerStatistics(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alice := stats["Alice"]
	if len(alice.Recent) != 50 {
		t.Fatalf("recent window = %d entries, want 50", len(alice.Recent))
	}
	if alice.Recent[0].GameID != "g006" {
		t.Errorf("oldest recent = %s, want g006 (first five evicted)", alice.Recent[0].GameID)
	}
	if alice.GamesPlayed != 55 {
		t.Errorf("games played = %d, raw accumulators must outlive the window", alice.GamesPlayed)
	}
}

// failingKV rejects writes, standing in for a full or broken substrate.
type failingKV struct {
	store.KV
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	return errors.New("quota exceeded")
}

func TestWriteFailureSurfacesStorageError(t *testing.T) {
	mem := store.NewMemory()
	cfg := &config.HistoryConfig{MaxSavedGames: 100, RecentScoreWindow: 50}
	a := NewArchive(&failingKV{KV: mem}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	if err := a.SaveCompletedGame(ctx, record("g1", -30, 15)); !errors.Is(err, domain.ErrStorage) {
		t.Errorf("expected ErrStorage from save, got %v", err)
	}
	if err := a.FoldIntoStatistics(ctx, record("g1", -30, 15)); !errors.Is(err, domain.ErrStorage) {
		t.Errorf("expected ErrStorage from fold, got %v", err)
	}

	// Nothing may be partially applied through the failing wrapper.
	games, err := a.ListGames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("found %d records after failed save, want 0", len(games))
	}
	stats, err := a.PlayerStatistics(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("found stats for %d players after failed fold, want 0", len(stats))
	}
}

func TestMalformedHistoryEntryQuarantined(t *testing.T) {
	a, kv := testArchive()
	ctx := context.Background()

	good := record("g1", -30, 15)
	goodJSON, err := json.Marshal(good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// One record with no players, one that is not an object at all.
	blob := fmt.Sprintf(`[%s, {"id":"broken"}, 42]`, goodJSON)
	if err := kv.Set(ctx, "savedGames", blob); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	games, err := a.ListGames(ctx)
	if err != nil {
		t.Fatalf("malformed entries must not abort the read: %v", err)
	}
	if len(games) != 1 || games[0].ID != "g1" {
		t.Errorf("games = %v, want just g1", games)
	}
}

func TestDeleteAndClear(t *testing.T) {
	a, _ := testArchive()
	ctx := context.Background()

	for _, id := range []string{"g1", "g2", "g3"} {
		if err := a.SaveCompletedGame(ctx, record(id, -30, 15)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := a.DeleteGame(ctx, "g2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	games, err := a.ListGames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("stored %d records after delete, want 2", len(games))
	}
	if _, ok, _ := a.GetGame(ctx, "g2"); ok {
		t.Error("g2 still present after delete")
	}

	if err := a.ClearGames(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	games, err = a.ListGames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("stored %d records after clear, want 0", len(games))
	}
}
