package stats

// Priors holds the population-average frequencies used to regularise sparse
// per-villain observations, plus the pseudo-count weight of the prior.
type Priors struct {
	VPIP     float64 // %
	PFR      float64 // %
	ThreeBet float64 // %
	FourBet  float64 // %, fixed, never blended (samples are always too sparse)
	Weight   int     // pseudo-count k
}

// DefaultPriors returns population averages for low-stakes no-limit games.
func DefaultPriors() Priors {
	return Priors{VPIP: 26, PFR: 14, ThreeBet: 6, FourBet: 3, Weight: 30}
}

// Blend regresses an observed frequency toward a prior:
//
//	(n·observed + k·prior) / (n + k)
//
// With n = 0 the prior is returned unchanged; as n grows the observation
// dominates.
func Blend(observed float64, n int, prior float64, k int) float64 {
	if n == 0 {
		return prior
	}
	return (float64(n)*observed + float64(k)*prior) / float64(n+k)
}

// BlendedVPIP returns the blended VPIP percentage for a player's aggregate.
func (p Priors) BlendedVPIP(a PlayerAggregate) float64 {
	return Blend(a.VPIPPct(), a.Hands, p.VPIP, p.Weight)
}

// BlendedPFR returns the blended PFR percentage.
func (p Priors) BlendedPFR(a PlayerAggregate) float64 {
	return Blend(a.PFRPct(), a.Hands, p.PFR, p.Weight)
}

// BlendedThreeBet returns the blended 3-bet percentage, weighted by observed
// 3-bet opportunities rather than total hands.
func (p Priors) BlendedThreeBet(a PlayerAggregate) float64 {
	return Blend(a.ThreeBetPct(), a.ThreeBetOpps, p.ThreeBet, p.Weight)
}
