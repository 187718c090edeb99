package equity

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/hiddenpair/pokerhero/internal/parser"
	"github.com/hiddenpair/pokerhero/internal/stats"
)

// EvalType names how an action's equity was obtained.
type EvalType string

const (
	EvalExact         EvalType = "exact"                 // one villain, cards known
	EvalExactMultiway EvalType = "exact_multiway"        // several villains, all known
	EvalRange         EvalType = "range"                 // one villain, modelled range
	EvalRangeMultiway EvalType = "range_multiway_approx" // several villains, dampened range estimate
)

// multiwayDampening discounts heads-up range equity per extra live opponent.
const multiwayDampening = 0.82

// minRangeCombos is the smallest contracted range still considered
// informative; below it the population fallback range is used instead.
const minRangeCombos = 5

// fallbackSampleFloor is the minimum sample count recorded when the
// population fallback range was substituted for a contracted one.
const fallbackSampleFloor = 100

// StatsProvider supplies observed per-villain aggregates for range modelling.
type StatsProvider interface {
	Aggregate(username string) stats.PlayerAggregate
}

// Config tunes the engine. Zero values are replaced by DefaultConfig fields.
type Config struct {
	Priors                stats.Priors
	SampleCount           int     // Monte Carlo runouts when enumeration is infeasible
	ContinuePctPassive    float64 // % of range retained after a villain check/call
	ContinuePctAggressive float64 // % of range retained after a villain bet/raise
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Priors:                stats.DefaultPriors(),
		SampleCount:           500,
		ContinuePctPassive:    65,
		ContinuePctAggressive: 40,
	}
}

// Evaluation is the computed equity and expected value of one hero decision.
type Evaluation struct {
	ActionSequence       int
	Equity               float64 // hero pot share, 0-1
	EV                   float64 // in table currency units
	Type                 EvalType
	SampleCount          int
	ContractedRangeSize  int      // combos in the modelled range; 0 for exact types
	FoldEquityPct        *float64 // only set on bets and raises
	VillainPreflopAction string   // range label; "" for exact types
}

// Engine evaluates hero decision points in parsed hands.
type Engine struct {
	cfg   Config
	stats StatsProvider
	rng   *rand.Rand
}

// New builds an engine. A nil rng gets a time-seeded source; tests pass a
// fixed one for determinism.
func New(cfg Config, provider StatsProvider, rng *rand.Rand) *Engine {
	def := DefaultConfig()
	if cfg.SampleCount <= 0 {
		cfg.SampleCount = def.SampleCount
	}
	if cfg.ContinuePctPassive <= 0 {
		cfg.ContinuePctPassive = def.ContinuePctPassive
	}
	if cfg.ContinuePctAggressive <= 0 {
		cfg.ContinuePctAggressive = def.ContinuePctAggressive
	}
	if cfg.Priors.Weight == 0 {
		cfg.Priors = def.Priors
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, stats: provider, rng: rng}
}

// villainState is what the engine tracks about one opponent while replaying
// a hand.
type villainState struct {
	player        *parser.HandPlayer
	folded        bool
	preflopLabel  PreflopActionLabel
	streetActions []bool // postflop actions so far, true = aggressive
}

// EvaluateHand replays a hand and scores every hero decision: calls, bets,
// raises, and folds that declined a live bet. Hands without known hero cards,
// and hands flagged invalid, yield no evaluations. A decision that cannot be
// scored is skipped; the remaining decisions are still evaluated and the
// per-action errors are returned joined alongside them.
func (e *Engine) EvaluateHand(ph *parser.ParsedHand) ([]Evaluation, error) {
	hero := ph.Hero()
	if !ph.Valid || hero == nil || len(hero.HoleCards) != 2 {
		return nil, nil
	}
	heroHole := [2]parser.Card{hero.HoleCards[0], hero.HoleCards[1]}

	villains := make(map[string]*villainState)
	for _, p := range ph.Players {
		if p.Username == hero.Username || p.SittingOut {
			continue
		}
		villains[p.Username] = &villainState{player: p, preflopLabel: PreflopCall}
	}
	labelPreflopActions(ph, villains)

	var (
		evals          []Evaluation
		errs           []error
		street         = parser.StreetPreflop
		committed      = map[string]float64{}
		lastAggressor  string
		preflopAggName string
	)

	for _, a := range ph.Actions {
		if a.Street != street {
			if street == parser.StreetPreflop {
				preflopAggName = lastAggressor
			}
			street = a.Street
			committed = map[string]float64{}
			lastAggressor = ""
		}

		if a.IsHero && heroDecision(a) {
			ev, err := e.evaluateAction(ph, hero, heroHole, a, villains, committed, preflopAggName)
			if err != nil {
				errs = append(errs, fmt.Errorf("hand %s action %d: %w", ph.Hand.SourceHandID, a.Sequence, err))
			} else if ev != nil {
				evals = append(evals, *ev)
			}
		}

		// Advance replay state.
		amt := a.Amount.InexactFloat64()
		switch a.Type {
		case parser.ActionPostBlind, parser.ActionPostAnte:
			committed[a.Player] += amt
		case parser.ActionCall:
			committed[a.Player] += amt
		case parser.ActionBet, parser.ActionRaise:
			committed[a.Player] = amt
			lastAggressor = a.Player
			if v, ok := villains[a.Player]; ok && a.Street != parser.StreetPreflop {
				v.streetActions = append(v.streetActions, true)
			}
		case parser.ActionCheck:
			if v, ok := villains[a.Player]; ok && a.Street != parser.StreetPreflop {
				v.streetActions = append(v.streetActions, false)
			}
		case parser.ActionFold:
			if v, ok := villains[a.Player]; ok {
				v.folded = true
			}
		}
		if a.Type == parser.ActionCall && a.Street != parser.StreetPreflop {
			if v, ok := villains[a.Player]; ok {
				v.streetActions = append(v.streetActions, false)
			}
		}
	}
	return evals, errors.Join(errs...)
}

// heroDecision reports whether an action is a decision worth scoring: any
// call, bet or raise, plus folds that declined a live bet.
func heroDecision(a *parser.Action) bool {
	switch a.Type {
	case parser.ActionCall, parser.ActionBet, parser.ActionRaise:
		return true
	case parser.ActionFold:
		return a.AmountToCall.IsPositive()
	}
	return false
}

func (e *Engine) evaluateAction(
	ph *parser.ParsedHand,
	hero *parser.HandPlayer,
	heroHole [2]parser.Card,
	a *parser.Action,
	villains map[string]*villainState,
	committed map[string]float64,
	preflopAggressor string,
) (*Evaluation, error) {
	board := ph.Hand.BoardAt(a.Street)

	var known, unknown []*villainState
	for _, v := range villains {
		if v.folded {
			continue
		}
		if len(v.player.HoleCards) == 2 {
			known = append(known, v)
		} else {
			unknown = append(unknown, v)
		}
	}
	liveCount := len(known) + len(unknown)
	if liveCount == 0 {
		return nil, nil
	}

	// The responder is the villain whose reaction to hero aggression is
	// modelled: an unmodelled opponent when one exists, otherwise the
	// lowest-seated known one.
	var responder *villainState
	if len(unknown) > 0 {
		responder = e.primaryVillain(unknown, preflopAggressor)
	} else {
		responder = known[0]
		for _, v := range known {
			if v.player.Seat < responder.player.Seat {
				responder = v
			}
		}
	}

	ev := &Evaluation{ActionSequence: a.Sequence}

	switch {
	case len(unknown) == 0 && liveCount == 1:
		ev.Type = EvalExact
		res, err := e.exactEquity(heroHole, known, board)
		if err != nil {
			return nil, err
		}
		ev.Equity, ev.SampleCount = res.equity, res.samples

	case len(unknown) == 0:
		ev.Type = EvalExactMultiway
		res, err := e.exactEquity(heroHole, known, board)
		if err != nil {
			return nil, err
		}
		// Multiway equity can never beat the worst heads-up matchup.
		bound := 1.0
		for _, v := range known {
			hu, err := e.exactEquity(heroHole, []*villainState{v}, board)
			if err != nil {
				return nil, err
			}
			bound = math.Min(bound, hu.equity)
		}
		ev.Equity = math.Min(res.equity, bound)
		ev.SampleCount = res.samples

	default:
		res, size, label, fellBack, err := e.rangeEquity(heroHole, responder, known, board)
		if err != nil {
			return nil, err
		}
		ev.Equity, ev.SampleCount = res.equity, res.samples
		ev.ContractedRangeSize = size
		ev.VillainPreflopAction = string(label)
		if fellBack && ev.SampleCount < fallbackSampleFloor {
			ev.SampleCount = fallbackSampleFloor
		}
		if liveCount == 1 {
			ev.Type = EvalRange
		} else {
			ev.Type = EvalRangeMultiway
			ev.Equity *= math.Pow(multiwayDampening, float64(liveCount-1))
		}
	}

	e.scoreEV(ev, a, committed, e.foldEquityPct(responder))
	return ev, nil
}

// foldEquityPct estimates how often the responder folds to hero aggression:
// their observed fold-to-aggression frequency blended toward the population
// prior (the complement of the passive continue percentage).
func (e *Engine) foldEquityPct(responder *villainState) float64 {
	var observed stats.PlayerAggregate
	if e.stats != nil {
		observed = e.stats.Aggregate(responder.player.Username)
	}
	prior := 100 - e.cfg.ContinuePctPassive
	fe := stats.Blend(observed.FoldToAggPct(), observed.FoldToAggOpps, prior, e.cfg.Priors.Weight)
	return math.Max(1, math.Min(99, fe))
}

func (e *Engine) exactEquity(heroHole [2]parser.Card, known []*villainState, board []parser.Card) (equityResult, error) {
	holdings := make([][2]parser.Card, len(known))
	for i, v := range known {
		holdings[i] = [2]parser.Card{v.player.HoleCards[0], v.player.HoleCards[1]}
	}
	return equityVsKnown(heroHole, holdings, board, e.cfg.SampleCount, e.rng)
}

// rangeEquity models the primary unknown villain's range from blended stats,
// contracts it by their postflop actions, and averages hero equity over the
// surviving combos. A range contracted below minRangeCombos is replaced by
// the population-prior range for the same preflop label.
func (e *Engine) rangeEquity(
	heroHole [2]parser.Card,
	primary *villainState,
	known []*villainState,
	board []parser.Card,
) (equityResult, int, PreflopActionLabel, bool, error) {
	label := primary.preflopLabel
	priors := e.cfg.Priors
	var observed stats.PlayerAggregate
	if e.stats != nil {
		observed = e.stats.Aggregate(primary.player.Username)
	}

	dead := deadSet(heroHole[:], board)
	for _, v := range known {
		for _, c := range v.player.HoleCards {
			dead[c.String()] = true
		}
	}

	build := func(a stats.PlayerAggregate) ([]Combo, error) {
		hands, err := BuildRange(
			priors.BlendedVPIP(a), priors.BlendedPFR(a), priors.BlendedThreeBet(a),
			label, priors.FourBet,
		)
		if err != nil {
			return nil, err
		}
		return ExpandCombos(hands, dead), nil
	}

	combos, err := build(observed)
	if err != nil {
		return equityResult{}, 0, label, false, err
	}
	for _, aggressive := range primary.streetActions {
		combos = ContractRange(combos, aggressive, e.cfg.ContinuePctPassive, e.cfg.ContinuePctAggressive)
	}

	fellBack := false
	if len(combos) < minRangeCombos {
		fellBack = true
		combos, err = build(stats.PlayerAggregate{})
		if err != nil {
			return equityResult{}, 0, label, false, err
		}
		if len(combos) == 0 {
			return equityResult{}, 0, label, false, fmt.Errorf("population range for %q is empty", label)
		}
	}

	res, err := equityVsRange(heroHole, combos, board, e.cfg.SampleCount, e.rng)
	if err != nil {
		return equityResult{}, 0, label, false, err
	}
	return res, len(combos), label, fellBack, nil
}

// primaryVillain picks the opponent whose range drives the estimate: the
// preflop aggressor when still live and unmodelled, otherwise the first
// unknown villain by seat.
func (e *Engine) primaryVillain(unknown []*villainState, preflopAggressor string) *villainState {
	primary := unknown[0]
	for _, v := range unknown {
		if v.player.Username == preflopAggressor {
			return v
		}
		if v.player.Seat < primary.player.Seat {
			primary = v
		}
	}
	return primary
}

// scoreEV fills in the EV and fold-equity fields from the action's pot
// geometry, the already-computed equity, and the responder's fold frequency.
func (e *Engine) scoreEV(ev *Evaluation, a *parser.Action, committed map[string]float64, foldPct float64) {
	pot := a.PotBefore.InexactFloat64()
	atc := a.AmountToCall.InexactFloat64()
	eq := ev.Equity

	switch a.Type {
	case parser.ActionCall:
		cost := a.Amount.InexactFloat64()
		ev.EV = eq*(pot+cost) - cost

	case parser.ActionFold:
		// EV of the call the hero declined; folding itself is always 0.
		ev.EV = eq*(pot+atc) - atc

	case parser.ActionBet, parser.ActionRaise:
		wager := a.Amount.InexactFloat64() - committed[a.Player]
		if wager < 0 {
			wager = 0
		}
		villainCall := wager - atc
		if villainCall < 0 {
			villainCall = 0
		}
		fe := foldPct / 100
		finalPot := pot + wager + villainCall
		ev.EV = fe*pot + (1-fe)*(eq*finalPot-wager)
		ev.FoldEquityPct = &foldPct
	}
}

// labelPreflopActions assigns each villain the range label matching their
// strongest preflop action: raise ordinal 1 → open, 2 → 3-bet, 3+ → 4-bet;
// anything else stays "call".
func labelPreflopActions(ph *parser.ParsedHand, villains map[string]*villainState) {
	raises := 0
	for _, a := range ph.Actions {
		if a.Street != parser.StreetPreflop {
			break
		}
		if a.Type != parser.ActionRaise {
			continue
		}
		raises++
		v, ok := villains[a.Player]
		if !ok {
			continue
		}
		switch {
		case raises >= 3:
			v.preflopLabel = PreflopFourBet
		case raises == 2:
			v.preflopLabel = PreflopThreeBet
		default:
			v.preflopLabel = PreflopOpen
		}
	}
}
