package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hand-tracker/internal/config"
	"github.com/hand-tracker/internal/domain"
	"github.com/hand-tracker/internal/standings"
	"github.com/hand-tracker/internal/store"
	"github.com/hand-tracker/internal/tracker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging; logs go to stderr so the prompt stays clean
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Open the persistence substrate
	kv, err := store.Open(&cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	app := &app{
		tracker: tracker.New(kv, cfg, logger),
		out:     os.Stdout,
	}
	app.run(context.Background(), os.Stdin)
}

type app struct {
	tracker *tracker.Tracker
	out     *os.File

	// pending is a completed game whose archiving failed, kept for retry
	pending *domain.GameRecord
}

func (a *app) run(ctx context.Context, in *os.File) {
	fmt.Fprintln(a.out, "hand score tracker — type 'help' for commands")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "start":
			err = a.start(fields[1:])
		case "round":
			err = a.round(fields[1:])
		case "edit":
			err = a.edit(fields[1:])
		case "standings":
			err = a.standings()
		case "complete":
			err = a.complete(ctx)
		case "reset":
			a.tracker.Reset()
			fmt.Fprintln(a.out, "back to setup")
		case "history":
			err = a.history(ctx, fields[1:])
		case "stats":
			err = a.stats(ctx)
		case "achievements":
			err = a.achievements(ctx)
		case "help":
			a.help()
		case "quit", "exit":
			return
		default:
			err = fmt.Errorf("unknown command %q, try 'help'", fields[0])
		}
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
		}
	}
}

func (a *app) help() {
	fmt.Fprint(a.out, `commands:
  start <rounds> <solo|partnership> <name> <name> [name name]
  round <finisher> <normal|full> <name>=<cards> ...
  edit <n> <finisher> <normal|full> <name>=<cards> ...
  standings
  complete
  reset
  history [show <id> | delete <id> | clear]
  stats
  achievements
  quit
`)
}

func (a *app) start(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: start <rounds> <solo|partnership> <name> <name> [name name]")
	}
	rounds, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad round count %q", args[0])
	}
	mode := domain.GameMode(args[1])

	players := make([]domain.Player, 0, len(args)-2)
	for _, name := range args[2:] {
		players = append(players, domain.Player{Name: name})
	}

	if err := a.tracker.StartGame(players, rounds, mode); err != nil {
		return err
	}
	g := a.tracker.Game()
	fmt.Fprintf(a.out, "game %s started: %d players, %d rounds, %s\n", g.ID, len(g.Players), g.Rounds, g.Mode)
	return nil
}

// parseRoundInput turns "finisher hand name=cards..." into a scored input,
// resolving player names against the live roster.
func (a *app) parseRoundInput(args []string) (domain.RoundInput, error) {
	if len(args) < 2 {
		return domain.RoundInput{}, fmt.Errorf("usage: <finisher> <normal|full> <name>=<cards> ...")
	}

	finisher, err := a.playerID(args[0])
	if err != nil {
		return domain.RoundInput{}, err
	}

	var hand domain.HandType
	switch args[1] {
	case "normal":
		hand = domain.HandNormal
	case "full":
		hand = domain.HandFull
	default:
		return domain.RoundInput{}, fmt.Errorf("hand must be normal or full, got %q", args[1])
	}

	remaining := make(map[string]int)
	for _, pair := range args[2:] {
		name, count, found := strings.Cut(pair, "=")
		if !found {
			return domain.RoundInput{}, fmt.Errorf("expected <name>=<cards>, got %q", pair)
		}
		id, err := a.playerID(name)
		if err != nil {
			return domain.RoundInput{}, err
		}
		cards, err := strconv.Atoi(count)
		if err != nil {
			return domain.RoundInput{}, fmt.Errorf("bad card count %q for %s", count, name)
		}
		remaining[id] = cards
	}

	return domain.RoundInput{FinisherID: finisher, Hand: hand, RemainingCards: remaining}, nil
}

func (a *app) playerID(name string) (string, error) {
	for _, p := range a.tracker.Game().Players {
		if strings.EqualFold(p.Name, name) {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("no player named %q in this game", name)
}

func (a *app) round(args []string) error {
	input, err := a.parseRoundInput(args)
	if err != nil {
		return err
	}
	if err := a.tracker.SaveRound(input); err != nil {
		return err
	}
	g := a.tracker.Game()
	if g.CurrentRound > g.Rounds {
		fmt.Fprintln(a.out, "all rounds played — 'complete' to finish the game")
	} else {
		fmt.Fprintf(a.out, "round saved, next round %d of %d\n", g.CurrentRound, g.Rounds)
	}
	return nil
}

func (a *app) edit(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: edit <n> <finisher> <normal|full> <name>=<cards> ...")
	}
	round, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad round number %q", args[0])
	}
	input, err := a.parseRoundInput(args[1:])
	if err != nil {
		return err
	}
	if err := a.tracker.EditRound(round, input); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "round %d rescored\n", round)
	return nil
}

func (a *app) standings() error {
	g := a.tracker.Game()
	if len(g.Players) == 0 {
		return fmt.Errorf("no game in progress")
	}

	for i, rp := range standings.RankedPlayers(g) {
		fmt.Fprintf(a.out, "%d. %-12s %d\n", i+1, rp.Player.Name, rp.Score)
	}
	if teams := standings.TeamScores(g); teams != nil {
		fmt.Fprintf(a.out, "team A %d, team B %d\n", teams[domain.TeamA], teams[domain.TeamB])
	}

	winners := standings.Winners(g)
	names := make([]string, len(winners))
	for i, w := range winners {
		names[i] = w.Name
	}
	fmt.Fprintf(a.out, "leading: %s\n", strings.Join(names, ", "))
	return nil
}

func (a *app) complete(ctx context.Context) error {
	var rec domain.GameRecord
	var err error
	if a.pending != nil {
		rec = *a.pending
		err = a.tracker.ArchiveGame(ctx, rec)
	} else {
		rec, err = a.tracker.CompleteGame(ctx)
	}
	if err != nil {
		if rec.ID != "" {
			// Game finished but was not saved; keep the record for retry.
			a.pending = &rec
			return fmt.Errorf("game finished but could not be saved, 'complete' retries: %w", err)
		}
		return err
	}
	a.pending = nil

	if rec.Winner != nil {
		fmt.Fprintf(a.out, "game over — %s wins at %d\n", rec.Winner.Name, rec.Winner.Score)
	}
	fmt.Fprintf(a.out, "archived as %s (%d min)\n", rec.ID, rec.DurationMin)
	a.tracker.Reset()
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	archive := a.tracker.Archive()

	if len(args) == 0 {
		records, err := archive.ListGames(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(a.out, "no saved games")
			return nil
		}
		for _, rec := range records {
			winner := "—"
			if rec.Winner != nil {
				winner = fmt.Sprintf("%s (%d)", rec.Winner.Name, rec.Winner.Score)
			}
			fmt.Fprintf(a.out, "%s  %s  %d players  %d rounds  winner %s\n",
				rec.ID, rec.CompletedAt.Format("2006-01-02"), len(rec.Players), rec.Rounds, winner)
		}
		return nil
	}

	switch args[0] {
	case "show":
		if len(args) != 2 {
			return fmt.Errorf("usage: history show <id>")
		}
		rec, ok, err := archive.GetGame(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no saved game %s", args[1])
		}
		for _, p := range rec.Players {
			fmt.Fprintf(a.out, "%-12s %d\n", p.Name, rec.FinalScores[p.ID])
		}
		return nil
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: history delete <id>")
		}
		return archive.DeleteGame(ctx, args[1])
	case "clear":
		return archive.ClearGames(ctx)
	default:
		return fmt.Errorf("usage: history [show <id> | delete <id> | clear]")
	}
}

func (a *app) stats(ctx context.Context) error {
	agg := a.tracker.Statistics()

	overview, err := agg.Overview(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d games, %d rounds, %d players, avg %.0f min\n",
		overview.TotalGames, overview.TotalRounds, overview.TotalPlayers, overview.AvgDurationMin)
	if overview.FastestWin != nil {
		fmt.Fprintf(a.out, "fastest win: %s in %d rounds\n", overview.FastestWin.Winner, overview.FastestWin.Rounds)
	}
	if overview.LargestMargin != nil {
		fmt.Fprintf(a.out, "largest margin: %s over %s by %d\n",
			overview.LargestMargin.Winner, overview.LargestMargin.RunnerUp, overview.LargestMargin.Margin)
	}
	if overview.TopWinningPair != nil {
		fmt.Fprintf(a.out, "top pair: %s, %d of %d\n",
			overview.TopWinningPair.Pair, overview.TopWinningPair.Wins, overview.TopWinningPair.GamesPlayed)
	}

	summaries, err := agg.PlayerSummaries(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		fmt.Fprintf(a.out, "%-12s %d games, %d wins (%.0f%%), avg %.1f, best %d, worst %d\n",
			s.Name, s.GamesPlayed, s.Wins, s.WinRate, s.AvgScore, s.BestScore, s.WorstScore)
	}
	return nil
}

func (a *app) achievements(ctx context.Context) error {
	statuses, err := a.tracker.Achievements().Statuses(ctx)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		mark := " "
		if st.Unlocked {
			mark = "*"
		}
		fmt.Fprintf(a.out, "[%s] %-16s %d/%d  %s\n", mark, st.Title, st.Progress, st.Requirement, st.Description)
	}
	points, err := a.tracker.Achievements().TotalPoints(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "total points: %d\n", points)
	return nil
}
