// Package stats derives behavioral statistics from parsed hands: per-hand
// flags (VPIP, PFR, 3-bet), cross-hand accumulators, Bayesian blending
// against population priors, and hero session metrics.
package stats

import "github.com/hiddenpair/pokerhero/internal/parser"

// DeriveFlags computes the preflop behavior flags for every player in the
// hand and writes them onto the player records.
//
// VPIP is any voluntary preflop chip commitment: a call, bet, or raise.
// Posting a blind never counts; the big blind checking never counts; the
// small blind completing does (it is a call). PFR is any preflop raise.
// ThreeBet is a raise made while facing exactly one prior preflop raise.
func DeriveFlags(ph *parser.ParsedHand) {
	vpip := make(map[string]bool)
	pfr := make(map[string]bool)
	threeBet := make(map[string]bool)

	raisesSeen := 0
	for _, a := range ph.Actions {
		if a.Street != parser.StreetPreflop {
			break
		}
		switch a.Type {
		case parser.ActionCall, parser.ActionBet:
			vpip[a.Player] = true
		case parser.ActionRaise:
			vpip[a.Player] = true
			pfr[a.Player] = true
			if raisesSeen == 1 {
				threeBet[a.Player] = true
			}
			raisesSeen++
		}
	}

	for _, p := range ph.Players {
		p.VPIP = vpip[p.Username]
		p.PFR = pfr[p.Username]
		p.ThreeBet = threeBet[p.Username]
	}
}

// SawFlop reports whether the player was still live when the flop was dealt.
func SawFlop(ph *parser.ParsedHand, username string) bool {
	if len(ph.Hand.BoardFlop) == 0 {
		return false
	}
	for _, a := range ph.Actions {
		if a.Street == parser.StreetPreflop && a.Player == username && a.Type == parser.ActionFold {
			return false
		}
	}
	return ph.PlayerByName(username) != nil
}

// ThreeBetOpportunity reports whether the player faced at least one raise by
// another player before their first voluntary preflop action, and whether
// they re-raised when they did.
func ThreeBetOpportunity(ph *parser.ParsedHand, username string) (opportunity, made bool) {
	raisedBefore := false
	seenFirst := false
	for _, a := range ph.Actions {
		if a.Street != parser.StreetPreflop {
			break
		}
		if a.Player != username {
			if a.Type == parser.ActionRaise {
				raisedBefore = true
			}
			continue
		}
		if a.Type == parser.ActionPostBlind || a.Type == parser.ActionPostAnte {
			continue
		}
		if !seenFirst {
			seenFirst = true
			opportunity = raisedBefore
		}
		if opportunity && a.Type == parser.ActionRaise {
			made = true
		}
	}
	return opportunity, made
}
