// Package history persists completed games and folds them into cumulative
// per-player statistics. Both writes are atomic per game: the new state is
// built fully in memory and stored with a single substrate write, so a
// failure leaves the stored data and the live session untouched.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/hand-tracker/internal/config"
	"github.com/hand-tracker/internal/domain"
	"github.com/hand-tracker/internal/scoring"
	"github.com/hand-tracker/internal/standings"
	"github.com/hand-tracker/internal/store"
)

const (
	savedGamesKey  = "savedGames"
	playerStatsKey = "playerStatistics"
)

// foldedIDBound caps the idempotency ledger inside the stats document
const foldedIDBound = 200

// Archive provides access to the bounded completed-game history and the
// folded player statistics backed by the KV substrate.
type Archive struct {
	kv           store.KV
	logger       *slog.Logger
	maxGames     int
	recentWindow int
}

// NewArchive creates an archive over the given substrate
func NewArchive(kv store.KV, cfg *config.HistoryConfig, logger *slog.Logger) *Archive {
	return &Archive{
		kv:           kv,
		logger:       logger,
		maxGames:     cfg.MaxSavedGames,
		recentWindow: cfg.RecentScoreWindow,
	}
}

// BuildRecord freezes a completed game into its denormalized archive shape.
// The winner stored on the record is the first-ranked player; ties are still
// visible to readers through the final scores.
func BuildRecord(g domain.Game) (domain.GameRecord, error) {
	if g.CompletedAt == nil {
		return domain.GameRecord{}, fmt.Errorf("%w: game %s is not completed", domain.ErrValidation, g.ID)
	}

	players := make([]domain.RecordPlayer, len(g.Players))
	for i, p := range g.Players {
		players[i] = domain.RecordPlayer{ID: p.ID, Name: p.Name, Avatar: p.Avatar}
	}

	rec := domain.GameRecord{
		ID:          g.ID,
		CreatedAt:   g.CreatedAt,
		CompletedAt: *g.CompletedAt,
		Players:     players,
		Rounds:      g.Rounds,
		Mode:        g.Mode,
		Teams:       g.Teams,
		Scores:      g.Scores,
		FinalScores: standings.FinalScores(g),
		TeamScores:  standings.TeamScores(g),
		DurationMin: int(math.Round(g.CompletedAt.Sub(g.CreatedAt).Minutes())),
	}

	if ranked := standings.RankedPlayers(g); len(ranked) > 0 {
		rec.Winner = &domain.WinnerRef{
			ID:    ranked[0].Player.ID,
			Name:  ranked[0].Player.Name,
			Score: ranked[0].Score,
		}
	}

	return rec, nil
}

// SaveCompletedGame appends a record to the history, updating in place when
// the game id is already stored so that retries never duplicate. The list is
// trimmed to the newest maxGames by insertion order.
func (a *Archive) SaveCompletedGame(ctx context.Context, rec domain.GameRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	records, err := a.loadGames(ctx)
	if err != nil {
		return err
	}

	updated := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			updated = true
			break
		}
	}
	if !updated {
		records = append(records, rec)
	}
	if len(records) > a.maxGames {
		records = records[len(records)-a.maxGames:]
	}

	if err := a.storeGames(ctx, records); err != nil {
		return err
	}

	a.logger.Info("game archived", "game_id", rec.ID, "stored_games", len(records), "updated", updated)
	return nil
}

// ListGames returns all archived games in insertion order, oldest first.
// Malformed entries are quarantined: skipped with a warning, never trusted.
func (a *Archive) ListGames(ctx context.Context) ([]domain.GameRecord, error) {
	return a.loadGames(ctx)
}

// GetGame returns a single archived game by id
func (a *Archive) GetGame(ctx context.Context, id string) (domain.GameRecord, bool, error) {
	records, err := a.loadGames(ctx)
	if err != nil {
		return domain.GameRecord{}, false, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, true, nil
		}
	}
	return domain.GameRecord{}, false, nil
}

// DeleteGame removes a single archived game. Unknown ids are a no-op.
func (a *Archive) DeleteGame(ctx context.Context, id string) error {
	records, err := a.loadGames(ctx)
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return nil
	}

	if err := a.storeGames(ctx, kept); err != nil {
		return err
	}
	a.logger.Info("game deleted from archive", "game_id", id)
	return nil
}

// ClearGames removes the entire game history
func (a *Archive) ClearGames(ctx context.Context) error {
	if err := a.kv.Delete(ctx, savedGamesKey); err != nil {
		return fmt.Errorf("clearing game history: %w: %v", domain.ErrStorage, err)
	}
	return nil
}

// statsDocument is the stored statistics shape. FoldedGameIDs makes the
// completion pipeline idempotent: a game already folded is never counted
// twice even if the caller retries after a partial failure elsewhere.
type statsDocument struct {
	FoldedGameIDs []string                      `json:"folded_game_ids"`
	Players       map[string]domain.PlayerStats `json:"players"`
}

// FoldIntoStatistics updates every participant's cumulative statistics from
// a completed game record. All players are folded into one in-memory copy
// and written with a single substrate write; re-folding the same game id is
// a no-op.
func (a *Archive) FoldIntoStatistics(ctx context.Context, rec domain.GameRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	doc, err := a.loadStats(ctx)
	if err != nil {
		return err
	}

	for _, id := range doc.FoldedGameIDs {
		if id == rec.ID {
			a.logger.Info("game already folded into statistics", "game_id", rec.ID)
			return nil
		}
	}

	for _, p := range rec.Players {
		stats := doc.Players[p.Name]
		foldPlayer(&stats, rec, p, a.recentWindow)
		doc.Players[p.Name] = stats
	}

	doc.FoldedGameIDs = append(doc.FoldedGameIDs, rec.ID)
	if len(doc.FoldedGameIDs) > foldedIDBound {
		doc.FoldedGameIDs = doc.FoldedGameIDs[len(doc.FoldedGameIDs)-foldedIDBound:]
	}

	if err := a.storeStats(ctx, doc); err != nil {
		return err
	}

	a.logger.Info("statistics folded", "game_id", rec.ID, "players", len(rec.Players))
	return nil
}

// PlayerStatistics returns the folded statistics keyed by player name
func (a *Archive) PlayerStatistics(ctx context.Context) (map[string]domain.PlayerStats, error) {
	doc, err := a.loadStats(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Players, nil
}

// ClearStatistics removes all folded player statistics
func (a *Archive) ClearStatistics(ctx context.Context) error {
	if err := a.kv.Delete(ctx, playerStatsKey); err != nil {
		return fmt.Errorf("clearing statistics: %w: %v", domain.ErrStorage, err)
	}
	return nil
}

func foldPlayer(s *domain.PlayerStats, rec domain.GameRecord, p domain.RecordPlayer, window int) {
	score := rec.FinalScores[p.ID]
	won := rec.Winner != nil && rec.Winner.ID == p.ID

	// A full-hand finish is credited to the winner when any of their own
	// round deltas reaches the full-hand finisher value.
	fullHand := false
	if won {
		for _, round := range rec.Scores[p.ID] {
			if round != nil && *round <= scoring.FullFinisherDelta {
				fullHand = true
				break
			}
		}
	}

	first := s.GamesPlayed == 0

	s.GamesPlayed++
	s.RoundsPlayed += rec.Rounds
	s.TotalScore += score
	s.TotalDurationMin += rec.DurationMin

	if first {
		s.BestScore = score
		s.WorstScore = score
		s.FirstPlayed = rec.CompletedAt
	} else {
		if score < s.BestScore {
			s.BestScore = score
		}
		if score > s.WorstScore {
			s.WorstScore = score
		}
	}
	s.LastPlayed = rec.CompletedAt

	if won {
		s.Wins++
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
		if rec.Mode == domain.ModePartnership {
			s.PartnershipWins++
		}
	} else {
		s.CurrentStreak = 0
	}

	if rec.Mode == domain.ModePartnership {
		s.PartnershipGames++
	} else {
		s.SoloGames++
	}

	if fullHand {
		s.FullHandFinishes++
	}

	s.Recent = append(s.Recent, domain.ScoreSample{
		Score:  score,
		Date:   rec.CompletedAt,
		Won:    won,
		Mode:   rec.Mode,
		GameID: rec.ID,
	})
	if len(s.Recent) > window {
		s.Recent = s.Recent[len(s.Recent)-window:]
	}
}

func (a *Archive) loadGames(ctx context.Context) ([]domain.GameRecord, error) {
	raw, ok, err := a.kv.Get(ctx, savedGamesKey)
	if err != nil {
		return nil, fmt.Errorf("loading game history: %w: %v", domain.ErrStorage, err)
	}
	if !ok {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decoding game history: %w: %v", domain.ErrStorage, err)
	}

	records := make([]domain.GameRecord, 0, len(entries))
	for i, entry := range entries {
		var rec domain.GameRecord
		if err := json.Unmarshal(entry, &rec); err != nil {
			a.logger.Warn("quarantined unreadable history entry", "index", i, "error", err)
			continue
		}
		if err := rec.Validate(); err != nil {
			a.logger.Warn("quarantined malformed history entry", "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (a *Archive) storeGames(ctx context.Context, records []domain.GameRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding game history: %w: %v", domain.ErrStorage, err)
	}
	if err := a.kv.Set(ctx, savedGamesKey, string(data)); err != nil {
		return fmt.Errorf("storing game history: %w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (a *Archive) loadStats(ctx context.Context) (statsDocument, error) {
	doc := statsDocument{Players: make(map[string]domain.PlayerStats)}

	raw, ok, err := a.kv.Get(ctx, playerStatsKey)
	if err != nil {
		return doc, fmt.Errorf("loading statistics: %w: %v", domain.ErrStorage, err)
	}
	if !ok {
		return doc, nil
	}

	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return doc, fmt.Errorf("decoding statistics: %w: %v", domain.ErrStorage, err)
	}
	if doc.Players == nil {
		doc.Players = make(map[string]domain.PlayerStats)
	}
	return doc, nil
}

func (a *Archive) storeStats(ctx context.Context, doc statsDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding statistics: %w: %v", domain.ErrStorage, err)
	}
	if err := a.kv.Set(ctx, playerStatsKey, string(data)); err != nil {
		return fmt.Errorf("storing statistics: %w: %v", domain.ErrStorage, err)
	}
	return nil
}
