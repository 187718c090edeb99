package parser

import "github.com/shopspring/decimal"

// annotateFinancials computes SPR and MDF for every action.
//
// SPR is the effective stack at the start of the action's street divided by
// the pot before the action. Heads-up the effective stack is the smaller of
// the two live stacks; multiway it is the actor's own remaining stack. MDF
// is pot / (pot + facing bet) and is only set on actions facing a bet.
func annotateFinancials(ph *ParsedHand) {
	starting := make(map[string]decimal.Decimal, len(ph.Players))
	live := make(map[string]bool, len(ph.Players))
	for _, p := range ph.Players {
		starting[p.Username] = p.StartingStack
		live[p.Username] = !p.SittingOut
	}

	invested := make(map[string]decimal.Decimal)        // cumulative across streets
	streetCommitted := make(map[string]decimal.Decimal) // committed this street
	stackAtStreet := make(map[string]decimal.Decimal)   // remaining at street start
	currentStreet := Street(-1)

	snapshot := func() {
		for name, stack := range starting {
			stackAtStreet[name] = stack.Sub(invested[name])
		}
	}

	for _, a := range ph.Actions {
		if a.Street != currentStreet {
			currentStreet = a.Street
			streetCommitted = make(map[string]decimal.Decimal)
			snapshot()
		}

		if a.Type != ActionPostBlind && a.Type != ActionPostAnte && a.PotBefore.IsPositive() {
			eff := effectiveStack(a.Player, live, stackAtStreet)
			if eff.IsPositive() {
				spr := eff.Div(a.PotBefore)
				a.SPR = &spr
			}
			if a.AmountToCall.IsPositive() {
				mdf := a.PotBefore.Div(a.PotBefore.Add(a.AmountToCall))
				a.MDF = &mdf
			}
		}

		switch a.Type {
		case ActionFold:
			live[a.Player] = false
		case ActionPostBlind, ActionPostAnte, ActionCall, ActionBet:
			invested[a.Player] = invested[a.Player].Add(a.Amount)
			streetCommitted[a.Player] = streetCommitted[a.Player].Add(a.Amount)
		case ActionRaise:
			// Amount is the total street size; the incremental cost is the
			// difference against what was already committed this street.
			inc := a.Amount.Sub(streetCommitted[a.Player])
			if inc.IsNegative() {
				inc = decimal.Zero
			}
			invested[a.Player] = invested[a.Player].Add(inc)
			streetCommitted[a.Player] = a.Amount
		}
	}
}

func effectiveStack(actor string, live map[string]bool, stacks map[string]decimal.Decimal) decimal.Decimal {
	liveCount := 0
	for _, ok := range live {
		if ok {
			liveCount++
		}
	}
	own := stacks[actor]
	if liveCount != 2 {
		return own
	}
	eff := own
	for name, ok := range live {
		if !ok || name == actor {
			continue
		}
		if stacks[name].LessThan(eff) {
			eff = stacks[name]
		}
	}
	return eff
}
