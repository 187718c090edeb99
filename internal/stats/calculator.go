package stats

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/hiddenpair/pokerhero/internal/parser"
)

// SessionMetrics is the hero's performance summary over a set of hands.
type SessionMetrics struct {
	HandsPlayed      int
	VPIPPct          float64 // 0-100
	PFRPct           float64 // 0-100
	ThreeBetPct      float64 // 0-100, of opportunities
	CBetPct          float64 // 0-100, of opportunities
	WTSDPct          float64 // 0-100, of flops seen
	AggressionFactor float64 // (bets+raises)/calls post-flop; +Inf when no calls
	BB100            float64 // big blinds won per 100 hands
	TotalProfit      decimal.Decimal
}

// ComputeSessionMetrics derives the hero's session metrics from parsed hands.
// Hands where the hero is not seated, and hands flagged invalid, are skipped.
// DeriveFlags must already have run on each hand.
func ComputeSessionMetrics(hands []*parser.ParsedHand, hero string) SessionMetrics {
	m := SessionMetrics{TotalProfit: decimal.Zero}

	var (
		vpipCount, pfrCount          int
		threeBetOpps, threeBetMade   int
		cbetOpps, cbetMade           int
		flopsSeen, showdowns         int
		postflopAggro, postflopCalls int
		bbSum                        float64
	)

	for _, ph := range hands {
		if !ph.Valid {
			continue
		}
		heroP := ph.PlayerByName(hero)
		if heroP == nil || heroP.SittingOut {
			continue
		}
		m.HandsPlayed++
		if heroP.VPIP {
			vpipCount++
		}
		if heroP.PFR {
			pfrCount++
		}
		if opp, made := ThreeBetOpportunity(ph, hero); opp {
			threeBetOpps++
			if made {
				threeBetMade++
			}
		}
		if opp, made := cbetOpportunity(ph, hero); opp {
			cbetOpps++
			if made {
				cbetMade++
			}
		}
		if SawFlop(ph, hero) {
			flopsSeen++
			if heroP.WentToShowdown {
				showdowns++
			}
		}
		for _, a := range ph.Actions {
			if a.Player != hero || a.Street == parser.StreetPreflop {
				continue
			}
			switch a.Type {
			case parser.ActionBet, parser.ActionRaise:
				postflopAggro++
			case parser.ActionCall:
				postflopCalls++
			}
		}
		m.TotalProfit = m.TotalProfit.Add(heroP.NetResult)
		if ph.Session.BigBlind.IsPositive() {
			bbSum += heroP.NetResult.Div(ph.Session.BigBlind).InexactFloat64()
		}
	}

	if m.HandsPlayed > 0 {
		m.VPIPPct = 100 * float64(vpipCount) / float64(m.HandsPlayed)
		m.PFRPct = 100 * float64(pfrCount) / float64(m.HandsPlayed)
		m.BB100 = bbSum / float64(m.HandsPlayed) * 100
	}
	if threeBetOpps > 0 {
		m.ThreeBetPct = 100 * float64(threeBetMade) / float64(threeBetOpps)
	}
	if cbetOpps > 0 {
		m.CBetPct = 100 * float64(cbetMade) / float64(cbetOpps)
	}
	if flopsSeen > 0 {
		m.WTSDPct = 100 * float64(showdowns) / float64(flopsSeen)
	}
	if postflopCalls > 0 {
		m.AggressionFactor = float64(postflopAggro) / float64(postflopCalls)
	} else {
		m.AggressionFactor = math.Inf(1)
	}
	return m
}

// cbetOpportunity reports whether the player was the last preflop raiser in a
// hand that reached the flop, and whether they made the first flop bet.
func cbetOpportunity(ph *parser.ParsedHand, username string) (opportunity, made bool) {
	lastRaiser := ""
	for _, a := range ph.Actions {
		if a.Street != parser.StreetPreflop {
			break
		}
		if a.Type == parser.ActionRaise {
			lastRaiser = a.Player
		}
	}
	if lastRaiser != username || len(ph.Hand.BoardFlop) == 0 {
		return false, false
	}
	for _, a := range ph.Actions {
		if a.Street != parser.StreetFlop {
			continue
		}
		if a.Type == parser.ActionBet {
			return true, a.Player == username
		}
	}
	return true, false
}

// Archetype thresholds: VPIP at or above 25% is Loose; PFR/VPIP at or above
// 0.5 is Aggressive.
const (
	minHandsForClassification = 15
	vpipLooseThreshold        = 25.0
	aggRatioThreshold         = 0.5

	standardHandsThreshold  = 50
	confirmedHandsThreshold = 100
)

// ClassifyPlayer assigns a playing-style archetype from the 2x2 matrix of
// VPIP (tight/loose) and PFR:VPIP ratio (passive/aggressive):
//
//	tight-aggressive  → "TAG"    loose-aggressive → "LAG"
//	tight-passive     → "Nit"    loose-passive    → "Fish"
//
// Returns "" when fewer than minHands hands have been observed.
func ClassifyPlayer(vpipPct, pfrPct float64, handsPlayed, minHands int) string {
	if minHands <= 0 {
		minHands = minHandsForClassification
	}
	if handsPlayed < minHands {
		return ""
	}
	isLoose := vpipPct >= vpipLooseThreshold
	aggRatio := 0.0
	if vpipPct > 0 {
		aggRatio = pfrPct / vpipPct
	}
	isAggressive := aggRatio >= aggRatioThreshold

	switch {
	case isLoose && isAggressive:
		return "LAG"
	case isLoose:
		return "Fish"
	case isAggressive:
		return "TAG"
	default:
		return "Nit"
	}
}

// ConfidenceTier grades an opponent read by sample size: "preliminary" below
// 50 hands, "standard" to 99, "confirmed" at 100 or more.
func ConfidenceTier(handsPlayed int) string {
	switch {
	case handsPlayed >= confirmedHandsThreshold:
		return "confirmed"
	case handsPlayed >= standardHandsThreshold:
		return "standard"
	default:
		return "preliminary"
	}
}
