package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hiddenpair/pokerhero/internal/persistence"
)

const sessionFileContents = `PokerStars Hand #600001: Hold'em No Limit ($0.50/$1.00) - 2024/07/02 21:00:00
Table 'Indus' 2-max Seat #1 is the button
Seat 1: hero (100.00 in chips)
Seat 2: villain (100.00 in chips)
hero: posts small blind 0.50
villain: posts big blind 1.00
*** HOLE CARDS ***
Dealt to hero [Ah Kh]
hero: raises 2.00 to 3.00
villain: folds
Uncalled bet (2.00) returned to hero
hero collected 2.00 from pot
*** SUMMARY ***
Total pot 2.00 | Rake 0
Seat 1: hero (button) (small blind) collected (2.00)

PokerStars Hand #600002: Hold'em No Limit ($0.50/$1.00) - 2024/07/02 21:05:00
Table 'Indus' 2-max Seat #1 is the button
Seat 1: hero (150.00 in chips)
Seat 2: villain (99.00 in chips)
hero: posts small blind 0.50
villain: posts big blind 1.00
*** HOLE CARDS ***
Dealt to hero [2c 7d]
hero: folds
Uncalled bet (0.50) returned to villain
villain collected 1.00 from pot
*** SUMMARY ***
Total pot 1.00 | Rake 0
Seat 2: villain (big blind) collected (1.00)
`

func writeHistoryFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIngestFile(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryRepository()
	svc := NewService(repo, "hero")

	path := writeHistoryFile(t, t.TempDir(), "session1.txt", sessionFileContents)
	res, err := svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Files != 1 || res.Ingested != 2 || res.Skipped != 0 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.TableName != "Indus" || s.Currency != "USD" || s.MaxSeats != 2 {
		t.Errorf("session = %+v", s)
	}

	// Hand 1: buy-in 100, ends at 101. Hand 2 starts at 150, so the hero
	// re-bought 49; the session ends at 149.50 after losing the small blind.
	if !s.HeroBuyIn.Equal(decimal.NewFromInt(149)) {
		t.Errorf("buy-in = %s, want 149", s.HeroBuyIn)
	}
	if !s.HeroCashOut.Equal(decimal.RequireFromString("149.50")) {
		t.Errorf("cash-out = %s, want 149.50", s.HeroCashOut)
	}

	hands, err := repo.ListHands(ctx, s.ID)
	if err != nil {
		t.Fatalf("list hands: %v", err)
	}
	if len(hands) != 2 {
		t.Fatalf("got %d hands, want 2", len(hands))
	}

	// The hero raised one hand of two and open-folded the other.
	m := res.HeroMetrics
	if m.HandsPlayed != 2 || m.VPIPPct != 50 || m.PFRPct != 50 {
		t.Errorf("hero metrics = %+v", m)
	}
	if !m.TotalProfit.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("hero profit = %s, want 0.50", m.TotalProfit)
	}
}

func TestIngestFileIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryRepository()
	svc := NewService(repo, "hero")

	path := writeHistoryFile(t, t.TempDir(), "session1.txt", sessionFileContents)
	if _, err := svc.IngestFile(ctx, path); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	res, err := svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if res.Ingested != 0 || res.Skipped != 2 {
		t.Fatalf("re-ingest result = %+v", res)
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("re-ingest created a session: %d", len(sessions))
	}
}

func TestIngestFileBadSegment(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryRepository()
	svc := NewService(repo, "hero")

	contents := sessionFileContents + "\nPokerStars Hand #garbage that is not a header\njunk line\n"
	path := writeHistoryFile(t, t.TempDir(), "session1.txt", contents)
	res, err := svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Ingested != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestIngestFileCachesEV(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryRepository()
	svc := NewService(repo, "hero")

	path := writeHistoryFile(t, t.TempDir(), "session1.txt", sessionFileContents)
	if _, err := svc.IngestFile(ctx, path); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// Hand 1 has a hero raise against an unmodelled villain, so at least one
	// range evaluation must be cached. Memory repository IDs are small.
	found := 0
	for id := int64(1); id < 100; id++ {
		ev, err := repo.GetActionEV(ctx, id)
		if err != nil {
			t.Fatalf("get action ev: %v", err)
		}
		if ev == nil {
			continue
		}
		found++
		if ev.EVType != "range" {
			t.Errorf("ev type = %q, want range", ev.EVType)
		}
		if ev.Equity <= 0 || ev.Equity >= 1 {
			t.Errorf("equity = %v", ev.Equity)
		}
		if ev.HeroID == 0 {
			t.Error("hero id not set")
		}
	}
	if found == 0 {
		t.Fatal("no EV evaluations cached")
	}
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryRepository()
	svc := NewService(repo, "hero")

	dir := t.TempDir()
	writeHistoryFile(t, dir, "a.txt", sessionFileContents)
	second := `PokerStars Hand #600010: Hold'em No Limit ($0.50/$1.00) - 2024/07/03 19:00:00
Table 'Lyra' 2-max Seat #1 is the button
Seat 1: hero (100.00 in chips)
Seat 2: villain (100.00 in chips)
hero: posts small blind 0.50
villain: posts big blind 1.00
*** HOLE CARDS ***
Dealt to hero [Qs Qd]
hero: raises 2.00 to 3.00
villain: folds
Uncalled bet (2.00) returned to hero
hero collected 2.00 from pot
*** SUMMARY ***
Total pot 2.00 | Rake 0
Seat 1: hero (button) (small blind) collected (2.00)
`
	writeHistoryFile(t, dir, "b.txt", second)

	res, err := svc.IngestDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("ingest directory: %v", err)
	}
	if res.Files != 2 || res.Ingested != 3 {
		t.Fatalf("result = %+v", res)
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
}

func TestIngestDirectoryEmpty(t *testing.T) {
	svc := NewService(persistence.NewMemoryRepository(), "hero")
	if _, err := svc.IngestDirectory(context.Background(), t.TempDir()); err == nil {
		t.Fatal("empty directory should error")
	}
}

// raiseEveryHand builds n hands, played without the hero, in which villain
// raises preflop and takes the pot.
func raiseEveryHand(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `PokerStars Hand #6100%02d: Hold'em No Limit ($0.50/$1.00) - 2024/07/04 18:%02d:00
Table 'Lyra' 2-max Seat #1 is the button
Seat 1: bystander (100.00 in chips)
Seat 2: villain (100.00 in chips)
bystander: posts small blind 0.50
villain: posts big blind 1.00
*** HOLE CARDS ***
bystander: calls 0.50
villain: raises 2.00 to 3.00
bystander: folds
Uncalled bet (2.00) returned to villain
villain collected 2.00 from pot
*** SUMMARY ***
Total pot 2.00 | Rake 0
Seat 2: villain (big blind) collected (2.00)

`, i, i)
	}
	return b.String()
}

const heroVsVillainHand = `PokerStars Hand #610050: Hold'em No Limit ($0.50/$1.00) - 2024/07/04 19:00:00
Table 'Lyra' 2-max Seat #1 is the button
Seat 1: villain (100.00 in chips)
Seat 2: hero (100.00 in chips)
villain: posts small blind 0.50
hero: posts big blind 1.00
*** HOLE CARDS ***
Dealt to hero [9c 9d]
villain: raises 2.00 to 3.00
hero: calls 2.00
*** FLOP *** [Ah Ks 4d]
hero: checks
villain: bets 4.00
hero: folds
Uncalled bet (4.00) returned to villain
villain collected 5.70 from pot
*** SUMMARY ***
Total pot 6.00 | Rake 0.30
Board [Ah Ks 4d]
Seat 1: villain (button) (small blind) collected (5.70)
`

// widestCachedRange scans the EV cache for the largest modelled range.
// Memory repository IDs are small.
func widestCachedRange(t *testing.T, repo persistence.Repository) int {
	t.Helper()
	widest := 0
	for id := int64(1); id < 300; id++ {
		ev, err := repo.GetActionEV(context.Background(), id)
		if err != nil {
			t.Fatalf("get action ev: %v", err)
		}
		if ev != nil && ev.EVType == "range" && ev.ContractedRangeSize > widest {
			widest = ev.ContractedRangeSize
		}
	}
	if widest == 0 {
		t.Fatal("no range evaluations cached")
	}
	return widest
}

// A villain's behavior in other files of the same batch must widen the range
// modelled for them.
func TestIngestDirectorySharedHistory(t *testing.T) {
	ctx := context.Background()

	baseline := persistence.NewMemoryRepository()
	svc := NewService(baseline, "hero")
	path := writeHistoryFile(t, t.TempDir(), "hero.txt", heroVsVillainHand)
	if _, err := svc.IngestFile(ctx, path); err != nil {
		t.Fatalf("baseline ingest: %v", err)
	}

	repo := persistence.NewMemoryRepository()
	svc = NewService(repo, "hero")
	dir := t.TempDir()
	writeHistoryFile(t, dir, "a.txt", raiseEveryHand(5))
	writeHistoryFile(t, dir, "b.txt", heroVsVillainHand)
	if _, err := svc.IngestDirectory(ctx, dir); err != nil {
		t.Fatalf("ingest directory: %v", err)
	}

	with, without := widestCachedRange(t, repo), widestCachedRange(t, baseline)
	if with <= without {
		t.Errorf("villain raising every observed hand should widen the range: %d vs %d", with, without)
	}
}

// Stored aggregates from earlier ingests must feed later range modelling.
func TestIngestFileSeedsStoredHistory(t *testing.T) {
	ctx := context.Background()

	baseline := persistence.NewMemoryRepository()
	svc := NewService(baseline, "hero")
	dir := t.TempDir()
	heroPath := writeHistoryFile(t, dir, "hero.txt", heroVsVillainHand)
	if _, err := svc.IngestFile(ctx, heroPath); err != nil {
		t.Fatalf("baseline ingest: %v", err)
	}

	repo := persistence.NewMemoryRepository()
	svc = NewService(repo, "hero")
	if _, err := svc.IngestFile(ctx, writeHistoryFile(t, dir, "history.txt", raiseEveryHand(5))); err != nil {
		t.Fatalf("history ingest: %v", err)
	}
	if _, err := svc.IngestFile(ctx, heroPath); err != nil {
		t.Fatalf("hero ingest: %v", err)
	}

	with, without := widestCachedRange(t, repo), widestCachedRange(t, baseline)
	if with <= without {
		t.Errorf("stored villain history should widen the range: %d vs %d", with, without)
	}
}

func TestHeroFromSettings(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryRepository()
	if err := repo.SetSetting(ctx, persistence.SettingHeroUsername, "stored_hero"); err != nil {
		t.Fatal(err)
	}

	svc := NewService(repo, "")
	hero, err := svc.Hero(ctx)
	if err != nil {
		t.Fatalf("hero: %v", err)
	}
	if hero != "stored_hero" {
		t.Errorf("hero = %q, want stored_hero", hero)
	}

	// An explicit hero overrides and persists.
	svc = NewService(repo, "cli_hero")
	if hero, err = svc.Hero(ctx); err != nil || hero != "cli_hero" {
		t.Fatalf("hero = %q, %v", hero, err)
	}
	stored, err := repo.GetSetting(ctx, persistence.SettingHeroUsername)
	if err != nil {
		t.Fatal(err)
	}
	if stored != "cli_hero" {
		t.Errorf("stored hero = %q, want cli_hero", stored)
	}
}
