package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hiddenpair/pokerhero/internal/equity"
	"github.com/hiddenpair/pokerhero/internal/parser"
	"github.com/hiddenpair/pokerhero/internal/persistence"
	"github.com/hiddenpair/pokerhero/internal/stats"
)

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Files    int
	Ingested int // hands newly persisted
	Skipped  int // hands already in the database
	Failed   int // segments that could not be parsed
	Errors   []string

	// HeroMetrics covers the hero's play across every hand parsed in this
	// run, including hands skipped as duplicates.
	HeroMetrics stats.SessionMetrics
}

func (r *IngestResult) merge(other IngestResult) {
	r.Files += other.Files
	r.Ingested += other.Ingested
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

// Service drives the ingestion pipeline: split files into hands, parse them,
// persist sessions and hands, then compute and cache equity/EV for hero
// decisions.
type Service struct {
	repo persistence.Repository
	hero string

	// writeMu serializes database writes; file parsing runs concurrently.
	writeMu sync.Mutex
}

func NewService(repo persistence.Repository, hero string) *Service {
	return &Service{repo: repo, hero: hero}
}

// Hero resolves the hero username: an explicitly configured name is persisted
// to settings, otherwise the stored setting is used.
func (s *Service) Hero(ctx context.Context) (string, error) {
	if s.hero != "" {
		if err := s.repo.SetSetting(ctx, persistence.SettingHeroUsername, s.hero); err != nil {
			return "", err
		}
		return s.hero, nil
	}
	stored, err := s.repo.GetSetting(ctx, persistence.SettingHeroUsername)
	if err != nil {
		return "", err
	}
	s.hero = stored
	return stored, nil
}

// parsedFile is the outcome of parsing one hand-history file. Parsing does
// not touch the database.
type parsedFile struct {
	path   string
	hands  []*parser.ParsedHand
	failed int
	errs   []string
	err    error // fatal error, e.g. unreadable file
}

func parseFile(hero, path string) parsedFile {
	result := parsedFile{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.err = err
		return result
	}

	hp := parser.NewHandParser(hero)
	for _, segment := range parser.SplitHands(string(data)) {
		ph, err := hp.Parse(segment)
		if err != nil {
			result.failed++
			result.errs = append(result.errs, fmt.Sprintf("%s: %v", filepath.Base(path), err))

			var headerErr *parser.HeaderParseError
			if errors.As(err, &headerErr) {
				slog.Debug("skipping unparseable segment", "path", path, "error", err)
			} else {
				slog.Warn("abandoning hand", "path", path, "error", err)
			}
			continue
		}
		stats.DeriveFlags(ph)
		result.hands = append(result.hands, ph)
	}
	return result
}

// IngestFile parses one hand-history file and persists it as a session.
func (s *Service) IngestFile(ctx context.Context, path string) (IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return IngestResult{}, err
	}
	hero, err := s.Hero(ctx)
	if err != nil {
		return IngestResult{}, err
	}

	parsed := parseFile(hero, path)
	if parsed.err != nil {
		return IngestResult{}, fmt.Errorf("read %q: %w", path, parsed.err)
	}

	ac, err := s.seededAccumulator(ctx)
	if err != nil {
		return IngestResult{}, err
	}
	for _, ph := range parsed.hands {
		ac.Observe(ph)
	}

	res, err := s.ingestParsed(ctx, hero, parsed, ac)
	if err != nil {
		return res, err
	}
	res.HeroMetrics = stats.ComputeSessionMetrics(parsed.hands, hero)
	return res, nil
}

// seededAccumulator starts an accumulator from the per-player counts already
// stored, so range modelling sees history beyond the current batch. Only the
// per-hand counts survive storage; opportunity-based stats restart from zero
// and fall back to their priors until re-observed.
func (s *Service) seededAccumulator(ctx context.Context) (*stats.Accumulator, error) {
	ac := stats.NewAccumulator()
	rows, err := s.repo.PlayerStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed accumulator: %w", err)
	}
	for _, row := range rows {
		ac.Seed(row.Username, stats.PlayerAggregate{
			Hands:         row.Hands,
			VPIPCount:     row.VPIPCount,
			PFRCount:      row.PFRCount,
			ShowdownCount: row.ShowdownCount,
		})
	}
	return ac, nil
}

// IngestDirectory ingests every .txt file in dir. Files are parsed
// concurrently by a small worker pool; database writes stay serialized and in
// filename order.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (IngestResult, error) {
	hero, err := s.Hero(ctx)
	if err != nil {
		return IngestResult{}, err
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return IngestResult{}, fmt.Errorf("scan %q: %w", dir, err)
	}
	if len(paths) == 0 {
		return IngestResult{}, fmt.Errorf("no hand history files in %q", dir)
	}
	sort.Strings(paths)

	workers := runtime.GOMAXPROCS(0)
	if workers > 4 {
		workers = 4
	}
	if workers < 1 {
		workers = 1
	}
	slog.Info("ingesting directory", "dir", dir, "files", len(paths), "workers", workers)

	jobCh := make(chan string, len(paths))
	resultCh := make(chan parsedFile, workers*2)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobCh {
				if ctx.Err() != nil {
					return
				}
				resultCh <- parseFile(hero, path)
			}
		}()
	}
	for _, p := range paths {
		jobCh <- p
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Results arrive out of order; collect them all, then write in filename
	// order so session IDs stay stable across runs.
	byPath := make(map[string]parsedFile, len(paths))
	for res := range resultCh {
		byPath[res.path] = res
	}
	if err := ctx.Err(); err != nil {
		return IngestResult{}, err
	}

	// One accumulator for the whole batch: stored history plus every hand of
	// every file, gathered before the first EV pass runs.
	ac, err := s.seededAccumulator(ctx)
	if err != nil {
		return IngestResult{}, err
	}
	var allHands []*parser.ParsedHand
	for _, p := range paths {
		for _, ph := range byPath[p].hands {
			ac.Observe(ph)
			allHands = append(allHands, ph)
		}
	}

	var total IngestResult
	for _, p := range paths {
		res, ok := byPath[p]
		if !ok {
			continue
		}
		if res.err != nil {
			total.Failed++
			total.Errors = append(total.Errors, fmt.Sprintf("%s: %v", filepath.Base(p), res.err))
			continue
		}
		fileResult, err := s.ingestParsed(ctx, hero, res, ac)
		if err != nil {
			return total, fmt.Errorf("ingest %q: %w", p, err)
		}
		total.merge(fileResult)
	}
	total.HeroMetrics = stats.ComputeSessionMetrics(allHands, hero)
	slog.Info("directory ingest complete",
		"files", total.Files, "ingested", total.Ingested,
		"skipped", total.Skipped, "failed", total.Failed)
	return total, nil
}

// ingestParsed persists one file's hands as a session and computes EV for
// the hero decisions in the newly stored hands.
func (s *Service) ingestParsed(ctx context.Context, hero string, parsed parsedFile, ac *stats.Accumulator) (IngestResult, error) {
	result := IngestResult{Files: 1, Failed: parsed.failed, Errors: parsed.errs}
	if len(parsed.hands) == 0 {
		slog.Warn("file produced no hands", "path", parsed.path)
		return result, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	first := parsed.hands[0]
	session := &persistence.SessionRecord{
		SourceFile:      parsed.path,
		TableName:       first.Session.TableName,
		GameType:        first.Session.GameType,
		LimitType:       first.Session.LimitType,
		SmallBlind:      first.Session.SmallBlind,
		BigBlind:        first.Session.BigBlind,
		Ante:            first.Session.Ante,
		MaxSeats:        first.Session.MaxSeats,
		Currency:        string(first.Session.Currency),
		IsTournament:    first.Session.IsTournament,
		TournamentID:    first.Session.TournamentID,
		TournamentLevel: first.Session.TournamentLevel,
		StartedAt:       first.Hand.Timestamp,
	}
	sessionID, err := s.repo.CreateSession(ctx, session)
	if err != nil {
		return result, err
	}

	var (
		saves      []persistence.SavedHand
		buyIn      decimal.Decimal
		prevEnd    decimal.Decimal
		heroSeated bool
	)
	for _, ph := range parsed.hands {
		saved, err := s.repo.SaveHand(ctx, sessionID, ph)
		if err != nil {
			return result, err
		}
		saves = append(saves, saved)
		if saved.Skipped {
			result.Skipped++
		} else {
			result.Ingested++
		}

		heroP := ph.PlayerByName(hero)
		if heroP == nil || heroP.SittingOut {
			continue
		}
		start := heroP.StartingStack
		if !heroSeated {
			buyIn = start
			heroSeated = true
		} else if start.GreaterThan(prevEnd) {
			// Stack grew between hands: the hero re-bought the difference.
			buyIn = buyIn.Add(start.Sub(prevEnd))
		}
		prevEnd = start.Add(heroP.NetResult)
	}

	if result.Ingested == 0 && result.Skipped == 0 {
		if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
			return result, err
		}
		return result, nil
	}

	if heroSeated {
		if err := s.repo.UpdateSessionFinancials(ctx, sessionID, buyIn, prevEnd); err != nil {
			return result, err
		}
	}

	if err := s.computeEVs(ctx, hero, parsed.hands, saves, ac); err != nil {
		return result, err
	}
	return result, nil
}

// computeEVs is the second pipeline phase: with villain behavior for the
// whole batch already accumulated, score and cache each hero decision of the
// newly stored hands. Previously cached evaluations are kept.
func (s *Service) computeEVs(ctx context.Context, hero string, hands []*parser.ParsedHand, saves []persistence.SavedHand, ac *stats.Accumulator) error {
	cfg, err := s.engineConfig(ctx)
	if err != nil {
		return err
	}
	engine := equity.New(cfg, ac, nil)

	heroID, err := s.repo.GetPlayerID(ctx, hero)
	if err != nil {
		return err
	}
	if heroID == 0 {
		slog.Debug("hero never seated, skipping EV pass", "hero", hero)
		return nil
	}

	for i, ph := range hands {
		if saves[i].Skipped {
			continue
		}
		evals, err := engine.EvaluateHand(ph)
		if err != nil {
			// Partial results are still cached; only the failed decisions
			// are lost.
			slog.Warn("ev evaluation incomplete", "hand", ph.Hand.SourceHandID, "error", err)
		}
		for _, ev := range evals {
			actionID, ok := saves[i].ActionIDs[ev.ActionSequence]
			if !ok {
				continue
			}
			cached, err := s.repo.GetActionEV(ctx, actionID)
			if err != nil {
				return err
			}
			if cached != nil {
				continue
			}
			if err := s.repo.SaveActionEV(ctx, &persistence.ActionEV{
				ActionID:             actionID,
				HeroID:               heroID,
				Equity:               ev.Equity,
				EV:                   ev.EV,
				EVType:               string(ev.Type),
				SampleCount:          ev.SampleCount,
				ContractedRangeSize:  ev.ContractedRangeSize,
				FoldEquityPct:        ev.FoldEquityPct,
				VillainPreflopAction: ev.VillainPreflopAction,
				ComputedAt:           time.Now(),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// engineConfig builds the equity engine configuration from stored settings,
// falling back to defaults for unset or malformed values.
func (s *Service) engineConfig(ctx context.Context) (equity.Config, error) {
	cfg := equity.DefaultConfig()

	read := func(key string, apply func(float64)) error {
		raw, err := s.repo.GetSetting(ctx, key)
		if err != nil {
			return err
		}
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			slog.Warn("ignoring malformed setting", "key", key, "value", raw)
			return nil
		}
		apply(v)
		return nil
	}

	checks := []struct {
		key   string
		apply func(float64)
	}{
		{persistence.SettingRangeVPIPPrior, func(v float64) { cfg.Priors.VPIP = v }},
		{persistence.SettingRangePFRPrior, func(v float64) { cfg.Priors.PFR = v }},
		{persistence.SettingRange3BetPrior, func(v float64) { cfg.Priors.ThreeBet = v }},
		{persistence.SettingRange4BetPrior, func(v float64) { cfg.Priors.FourBet = v }},
		{persistence.SettingRangePriorWeight, func(v float64) { cfg.Priors.Weight = int(v) }},
		{persistence.SettingRangeSampleCount, func(v float64) { cfg.SampleCount = int(v) }},
		{persistence.SettingRangeContinuePassive, func(v float64) { cfg.ContinuePctPassive = v }},
		{persistence.SettingRangeContinueAggro, func(v float64) { cfg.ContinuePctAggressive = v }},
	}
	for _, c := range checks {
		if err := read(c.key, c.apply); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (s *Service) Close() error {
	if c, ok := s.repo.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
