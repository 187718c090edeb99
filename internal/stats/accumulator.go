package stats

import "github.com/hiddenpair/pokerhero/internal/parser"

// PlayerAggregate holds cross-hand counts for a single player. It feeds the
// Bayesian blending that turns sparse observations into range estimates.
type PlayerAggregate struct {
	Hands          int
	VPIPCount      int
	PFRCount       int
	ThreeBetOpps   int
	ThreeBetCount  int
	ShowdownCount  int
	FlopsSeenCount int
	FoldToAggOpps  int // decisions taken while facing a bet or raise
	FoldToAggCount int // of those, folds
}

// VPIPPct returns observed VPIP as a percentage (0-100).
func (a PlayerAggregate) VPIPPct() float64 {
	if a.Hands == 0 {
		return 0
	}
	return 100 * float64(a.VPIPCount) / float64(a.Hands)
}

// PFRPct returns observed PFR as a percentage (0-100).
func (a PlayerAggregate) PFRPct() float64 {
	if a.Hands == 0 {
		return 0
	}
	return 100 * float64(a.PFRCount) / float64(a.Hands)
}

// ThreeBetPct returns observed 3-bet frequency as a percentage (0-100),
// measured against opportunities rather than total hands.
func (a PlayerAggregate) ThreeBetPct() float64 {
	if a.ThreeBetOpps == 0 {
		return 0
	}
	return 100 * float64(a.ThreeBetCount) / float64(a.ThreeBetOpps)
}

// FoldToAggPct returns how often the player folded when facing a bet or
// raise, as a percentage (0-100) of such decisions.
func (a PlayerAggregate) FoldToAggPct() float64 {
	if a.FoldToAggOpps == 0 {
		return 0
	}
	return 100 * float64(a.FoldToAggCount) / float64(a.FoldToAggOpps)
}

// Accumulator aggregates per-player behavior counts across hands.
// It is not safe for concurrent use; the pipeline feeds it from a single
// goroutine between parse and EV phases.
type Accumulator struct {
	byPlayer map[string]*PlayerAggregate
}

func NewAccumulator() *Accumulator {
	return &Accumulator{byPlayer: make(map[string]*PlayerAggregate)}
}

// Observe folds one parsed hand into the per-player aggregates.
// Invalid hands are ignored. DeriveFlags must already have run.
func (ac *Accumulator) Observe(ph *parser.ParsedHand) {
	if !ph.Valid {
		return
	}
	for _, p := range ph.Players {
		if p.SittingOut {
			continue
		}
		agg := ac.byPlayer[p.Username]
		if agg == nil {
			agg = &PlayerAggregate{}
			ac.byPlayer[p.Username] = agg
		}
		agg.Hands++
		if p.VPIP {
			agg.VPIPCount++
		}
		if p.PFR {
			agg.PFRCount++
		}
		if p.WentToShowdown {
			agg.ShowdownCount++
		}
		if SawFlop(ph, p.Username) {
			agg.FlopsSeenCount++
		}
		if opp, made := ThreeBetOpportunity(ph, p.Username); opp {
			agg.ThreeBetOpps++
			if made {
				agg.ThreeBetCount++
			}
		}
	}

	// Preflop, a positive amount to call may just be the blinds; only
	// decisions taken after a raise count as facing aggression.
	preflopRaised := false
	for _, a := range ph.Actions {
		facing := a.AmountToCall.IsPositive() && (a.Street != parser.StreetPreflop || preflopRaised)
		if a.Street == parser.StreetPreflop && a.Type == parser.ActionRaise {
			preflopRaised = true
		}
		if !facing {
			continue
		}
		switch a.Type {
		case parser.ActionFold, parser.ActionCall, parser.ActionRaise:
		default:
			continue
		}
		agg := ac.byPlayer[a.Player]
		if agg == nil {
			continue
		}
		agg.FoldToAggOpps++
		if a.Type == parser.ActionFold {
			agg.FoldToAggCount++
		}
	}
}

// Seed pre-loads a player's aggregate from stored counts, so range modelling
// sees history beyond the current batch. Subsequent Observe calls add to the
// seeded values.
func (ac *Accumulator) Seed(username string, agg PlayerAggregate) {
	seeded := agg
	ac.byPlayer[username] = &seeded
}

// Aggregate returns the accumulated counts for a player.
// The zero value is returned for players never observed.
func (ac *Accumulator) Aggregate(username string) PlayerAggregate {
	if agg, ok := ac.byPlayer[username]; ok {
		return *agg
	}
	return PlayerAggregate{}
}

// Players returns the usernames with at least one observed hand.
func (ac *Accumulator) Players() []string {
	out := make([]string, 0, len(ac.byPlayer))
	for name := range ac.byPlayer {
		out = append(out, name)
	}
	return out
}
