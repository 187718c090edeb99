package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hiddenpair/pokerhero/internal/application"
	"github.com/hiddenpair/pokerhero/internal/applog"
	"github.com/hiddenpair/pokerhero/internal/persistence"
	"github.com/hiddenpair/pokerhero/internal/stats"
	"github.com/hiddenpair/pokerhero/internal/watcher"
)

var (
	version   = "dev"
	commit    = "local"
	buildDate = "unknown"
)

func main() {
	var (
		dbPath      = flag.String("db", "pokerhero.db", "path to the sqlite database")
		hero        = flag.String("hero", "", "hero username (persisted; later runs may omit it)")
		dir         = flag.String("dir", "", "hand history directory to ingest")
		watch       = flag.Bool("watch", false, "keep running and ingest files as they change")
		debug       = flag.Bool("debug", false, "enable debug logging")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pokerhero %s (%s, built %s)\n", version, commit, buildDate)
		return
	}

	applog.Init(*debug)

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: pokerhero -dir <hand history directory> [-hero name] [-watch]")
		os.Exit(2)
	}

	var repo persistence.Repository
	sqliteRepo, err := persistence.NewSQLiteRepository(*dbPath)
	if err != nil {
		slog.Warn("sqlite unavailable, falling back to in-memory storage", "error", err)
		repo = persistence.NewMemoryRepository()
	} else {
		repo = sqliteRepo
	}

	svc := application.NewService(repo, *hero)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := svc.IngestDirectory(ctx, *dir)
	if err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("ingested %d hands (%d skipped, %d failed) from %d files\n",
		res.Ingested, res.Skipped, res.Failed, res.Files)
	for _, detail := range res.Errors {
		slog.Warn("ingest error", "detail", detail)
	}

	printHeroSummary(res.HeroMetrics)
	printPlayerOverview(ctx, repo)

	if !*watch {
		return
	}

	w, err := watcher.New(*dir, watcher.Config{
		OnFileChanged: func(path string) {
			r, err := svc.IngestFile(context.Background(), path)
			if err != nil {
				slog.Error("ingest failed", "path", path, "error", err)
				return
			}
			slog.Info("file ingested", "path", path,
				"ingested", r.Ingested, "skipped", r.Skipped, "failed", r.Failed)
		},
		OnError: func(err error) {
			slog.Warn("watcher error", "error", err)
		},
	})
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}
	if err := w.Start(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	defer w.Stop()

	<-ctx.Done()
}

// printHeroSummary prints the hero's performance over the ingested hands.
func printHeroSummary(m stats.SessionMetrics) {
	if m.HandsPlayed == 0 {
		return
	}
	fmt.Printf("\nhero: %d hands  vpip %.1f%%  pfr %.1f%%  3bet %.1f%%  wtsd %.1f%%  af %.2f  bb/100 %+.1f  profit %s\n",
		m.HandsPlayed, m.VPIPPct, m.PFRPct, m.ThreeBetPct, m.WTSDPct,
		m.AggressionFactor, m.BB100, m.TotalProfit)
}

// printPlayerOverview prints archetype reads for the most-observed opponents.
func printPlayerOverview(ctx context.Context, repo persistence.Repository) {
	rows, err := repo.PlayerStats(ctx)
	if err != nil {
		slog.Warn("failed to load player stats", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	fmt.Println("\nplayer overview:")
	const maxRows = 20
	for i, row := range rows {
		if i >= maxRows {
			break
		}
		vpip := 100 * float64(row.VPIPCount) / float64(row.Hands)
		pfr := 100 * float64(row.PFRCount) / float64(row.Hands)
		archetype := stats.ClassifyPlayer(vpip, pfr, row.Hands, 0)
		if archetype == "" {
			archetype = "-"
		}
		fmt.Printf("  %-20s %5d hands  vpip %5.1f%%  pfr %5.1f%%  %-4s (%s)\n",
			row.Username, row.Hands, vpip, pfr, archetype, stats.ConfidenceTier(row.Hands))
	}
}
