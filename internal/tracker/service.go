// Package tracker is the application service in front of the scoring core.
// It turns raw round input into deltas, drives the game state machine, and
// runs the explicit completion pipeline: complete, archive, fold statistics,
// refresh achievements. Everything is synchronous; the caller serializes.
package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hand-tracker/internal/achievements"
	"github.com/hand-tracker/internal/config"
	"github.com/hand-tracker/internal/domain"
	"github.com/hand-tracker/internal/game"
	"github.com/hand-tracker/internal/history"
	"github.com/hand-tracker/internal/scoring"
	"github.com/hand-tracker/internal/stats"
	"github.com/hand-tracker/internal/store"
)

// Tracker wires the live game engine to the persistence services
type Tracker struct {
	logger       *slog.Logger
	engine       *game.Engine
	archive      *history.Archive
	achievements *achievements.Service
	aggregator   *stats.Aggregator
}

// New creates a tracker over the given substrate
func New(kv store.KV, cfg *config.Config, logger *slog.Logger) *Tracker {
	archive := history.NewArchive(kv, &cfg.History, logger)
	return &Tracker{
		logger:       logger,
		engine:       game.New(logger),
		archive:      archive,
		achievements: achievements.NewService(kv, logger),
		aggregator:   stats.NewAggregator(archive, logger),
	}
}

// StartGame begins a new game with the given roster
func (t *Tracker) StartGame(players []domain.Player, rounds int, mode domain.GameMode) error {
	return t.engine.Start(players, rounds, mode)
}

// SaveRound scores the round input and writes it at the current cursor
func (t *Tracker) SaveRound(input domain.RoundInput) error {
	deltas, err := scoring.ComputeRoundDeltas(input.FinisherID, input.Hand, input.RemainingCards, t.engine.Snapshot().Players)
	if err != nil {
		return err
	}
	return t.engine.SaveRound(deltas)
}

// EditRound rescores a past round and replaces its deltas for all players
func (t *Tracker) EditRound(round int, input domain.RoundInput) error {
	deltas, err := scoring.ComputeRoundDeltas(input.FinisherID, input.Hand, input.RemainingCards, t.engine.Snapshot().Players)
	if err != nil {
		return err
	}
	return t.engine.EditRound(round, deltas)
}

// CompleteGame finishes the live game and runs the archival pipeline. When
// persistence fails the returned record is still valid: the caller should
// report the failure and may retry it with ArchiveGame, which is idempotent.
func (t *Tracker) CompleteGame(ctx context.Context) (domain.GameRecord, error) {
	if err := t.engine.Complete(); err != nil {
		return domain.GameRecord{}, err
	}

	rec, err := history.BuildRecord(t.engine.Snapshot())
	if err != nil {
		return domain.GameRecord{}, err
	}

	if err := t.ArchiveGame(ctx, rec); err != nil {
		return rec, fmt.Errorf("archiving completed game %s: %w", rec.ID, err)
	}
	return rec, nil
}

// ArchiveGame persists a completed game record and folds it into the
// statistics. Safe to call repeatedly with the same record.
func (t *Tracker) ArchiveGame(ctx context.Context, rec domain.GameRecord) error {
	if err := t.archive.SaveCompletedGame(ctx, rec); err != nil {
		return err
	}
	if err := t.archive.FoldIntoStatistics(ctx, rec); err != nil {
		return err
	}

	playerStats, err := t.archive.PlayerStatistics(ctx)
	if err != nil {
		return err
	}
	if err := t.achievements.Evaluate(ctx, playerStats); err != nil {
		// Achievements are cosmetic; the game itself is already durable.
		t.logger.Warn("achievement evaluation failed", "game_id", rec.ID, "error", err)
	}
	return nil
}

// Reset discards the live game and returns to setup
func (t *Tracker) Reset() {
	t.engine.Reset()
}

// Game returns a snapshot of the live game
func (t *Tracker) Game() domain.Game {
	return t.engine.Snapshot()
}

// State returns the live game's lifecycle phase
func (t *Tracker) State() game.State {
	return t.engine.State()
}

// Archive exposes the saved-game history services
func (t *Tracker) Archive() *history.Archive {
	return t.archive
}

// Statistics exposes the replay-based statistics aggregator
func (t *Tracker) Statistics() *stats.Aggregator {
	return t.aggregator
}

// Achievements exposes the achievement progress services
func (t *Tracker) Achievements() *achievements.Service {
	return t.achievements
}
