// Package equity estimates hero equity and expected value for hero decisions,
// either exactly against known villain cards or against ranges derived from
// observed villain behavior.
package equity

import (
	"fmt"
	"math"

	"github.com/hiddenpair/pokerhero/internal/parser"
)

// handRanking lists the 169 canonical preflop hands in descending strength
// order by Chen score (ties keep suited before offsuit, higher rank first).
var handRanking = []string{
	// Chen 20-12
	"AA", "KK", "QQ", "AKs", "JJ",
	// Chen 11-10
	"AQs", "AKo", "AJs", "KQs", "TT",
	// Chen 9
	"AQo", "KJs", "QJs", "JTs", "99",
	// Chen 8
	"AJo", "ATs", "KQo", "KTs", "QTs", "J9s", "T9s", "88",
	// Chen 7.5-7
	"98s",
	"A9s", "A8s", "A7s", "A6s", "A5s", "A4s", "A3s", "A2s",
	"KJo", "QJo", "Q9s", "JTo", "T8s", "87s", "77",
	// Chen 6.5-6
	"97s", "76s",
	"ATo", "KTo", "K9s", "QTo", "J9o", "J8s", "T9o", "86s", "65s", "66",
	// Chen 5.5-5
	"98o", "75s", "54s",
	"A9o", "A8o", "A7o", "A6o", "A5o", "A4o", "A3o", "A2o",
	"K8s", "K7s", "K6s", "K5s", "K4s", "K3s", "K2s",
	"Q9o", "Q8s", "T8o", "T7s", "87o", "64s", "55", "43s", "44", "33", "22",
	// Chen 4.5-4
	"97o", "96s", "76o", "53s", "32s",
	"K9o", "Q7s", "Q6s", "Q5s", "Q4s", "Q3s", "Q2s",
	"J8o", "J7s", "86o", "85s", "65o", "42s",
	// Chen 3.5-3
	"75o", "74s", "54o",
	"K8o", "K7o", "K6o", "K5o", "K4o", "K3o", "K2o",
	"Q8o", "J6s", "J5s", "J4s", "J3s", "J2s", "T7o", "T6s", "64o", "63s", "43o",
	// Chen 2.5-2
	"96o", "95s", "53o", "52s", "32o",
	"Q7o", "Q6o", "Q5o", "Q4o", "Q3o", "Q2o",
	"J7o", "T5s", "T4s", "T3s", "T2s", "85o", "84s", "42o",
	// Chen 1.5-1
	"94s", "93s", "92s", "74o", "73s",
	"J6o", "J5o", "J4o", "J3o", "J2o", "T6o", "83s", "82s", "63o", "62s",
	// Chen 0.5 and below
	"95o", "72s", "52o",
	"T5o", "T4o", "T3o", "T2o", "84o",
	"94o", "93o", "92o", "73o",
	"83o", "82o", "62o",
	"72o",
}

// PreflopActionLabel names how a villain entered the pot preflop.
type PreflopActionLabel string

const (
	PreflopCall     PreflopActionLabel = "call"
	PreflopOpen     PreflopActionLabel = "2bet"
	PreflopThreeBet PreflopActionLabel = "3bet"
	PreflopFourBet  PreflopActionLabel = "4bet+"
)

// BuildRange slices the canonical hand ranking by the villain's preflop
// action and blended frequencies (all percentages 0-100):
//
//	call  → flatting hands ranked within [pfr%, vpip%)
//	2bet  → top pfr% (open-raising range)
//	3bet  → top threeBet%
//	4bet+ → top fourBetPrior% (fixed prior, never blended)
func BuildRange(vpipPct, pfrPct, threeBetPct float64, action PreflopActionLabel, fourBetPrior float64) ([]string, error) {
	n := float64(len(handRanking))
	switch action {
	case PreflopOpen:
		return handRanking[:topN(n, pfrPct)], nil
	case PreflopThreeBet:
		return handRanking[:topN(n, threeBetPct)], nil
	case PreflopFourBet:
		return handRanking[:topN(n, fourBetPrior)], nil
	case PreflopCall:
		lo := int(math.Round(n * pfrPct / 100))
		if lo < 0 {
			lo = 0
		}
		hi := int(math.Round(n * vpipPct / 100))
		if hi < lo {
			hi = lo
		}
		if hi > len(handRanking) {
			hi = len(handRanking)
		}
		if lo > len(handRanking) {
			lo = len(handRanking)
		}
		return handRanking[lo:hi], nil
	default:
		return nil, fmt.Errorf("unknown preflop action label %q", action)
	}
}

func topN(n, pct float64) int {
	top := int(math.Round(n * pct / 100))
	if top < 1 {
		top = 1
	}
	if top > int(n) {
		top = int(n)
	}
	return top
}

var comboSuits = []string{"c", "d", "h", "s"}

// Combo is a specific two-card holding.
type Combo [2]parser.Card

// ExpandCombos expands shorthand range hands into specific combos, dropping
// any combo containing a dead card. Pairs yield 6 combos, suited hands 4,
// offsuit hands 12. Output preserves the range ordering, strongest first.
func ExpandCombos(rangeHands []string, dead map[string]bool) []Combo {
	var combos []Combo
	add := func(c1, c2 parser.Card) {
		if !dead[c1.String()] && !dead[c2.String()] {
			combos = append(combos, Combo{c1, c2})
		}
	}
	for _, hand := range rangeHands {
		switch {
		case len(hand) == 2: // pocket pair
			r := hand[:1]
			for i := 0; i < 4; i++ {
				for j := i + 1; j < 4; j++ {
					add(parser.Card{Rank: r, Suit: comboSuits[i]}, parser.Card{Rank: r, Suit: comboSuits[j]})
				}
			}
		case hand[2] == 's': // suited
			r1, r2 := hand[:1], hand[1:2]
			for _, s := range comboSuits {
				add(parser.Card{Rank: r1, Suit: s}, parser.Card{Rank: r2, Suit: s})
			}
		default: // offsuit
			r1, r2 := hand[:1], hand[1:2]
			for _, s1 := range comboSuits {
				for _, s2 := range comboSuits {
					if s1 == s2 {
						continue
					}
					add(parser.Card{Rank: r1, Suit: s1}, parser.Card{Rank: r2, Suit: s2})
				}
			}
		}
	}
	return combos
}

// ContractRange narrows a combo list after a villain street action. Combos
// stay in ranking order, so continuing is modelled as keeping the strongest
// slice: passive actions (check/call) retain continuePctPassive percent of
// the surviving combos, aggressive ones (bet/raise) retain
// continuePctAggressive percent.
func ContractRange(combos []Combo, aggressive bool, continuePctPassive, continuePctAggressive float64) []Combo {
	pct := continuePctPassive
	if aggressive {
		pct = continuePctAggressive
	}
	keep := int(math.Round(float64(len(combos)) * pct / 100))
	if keep < 0 {
		keep = 0
	}
	if keep > len(combos) {
		keep = len(combos)
	}
	return combos[:keep]
}
