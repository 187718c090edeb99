package equity

import (
	"fmt"
	"math/rand"

	pokereval "github.com/paulhankin/poker"

	"github.com/hiddenpair/pokerhero/internal/parser"
)

// enumeration is used when at most this many board cards remain to be dealt;
// otherwise runouts are sampled. Two missing cards on a 45-card stub is
// under a thousand runouts, five missing is over 1.7 million.
const maxEnumerateMissing = 2

// equityResult carries an equity estimate plus how many runouts backed it.
type equityResult struct {
	equity  float64
	samples int
}

// equityVsKnown computes hero's pot share against fully known villain
// holdings across all (or sampled) remaining runouts. Ties split the pot
// between the tied hands.
func equityVsKnown(hero [2]parser.Card, villains [][2]parser.Card, board []parser.Card, sampleCount int, rng *rand.Rand) (equityResult, error) {
	if len(board) > 5 {
		return equityResult{}, fmt.Errorf("board has %d cards", len(board))
	}
	heroEval, err := toEvalCards(hero[:])
	if err != nil {
		return equityResult{}, err
	}
	villainEvals := make([][2]pokereval.Card, len(villains))
	for i, v := range villains {
		ev, err := toEvalCards(v[:])
		if err != nil {
			return equityResult{}, err
		}
		villainEvals[i] = [2]pokereval.Card{ev[0], ev[1]}
	}
	boardEval, err := toEvalCards(board)
	if err != nil {
		return equityResult{}, err
	}

	dead := deadSet(hero[:], board)
	for _, v := range villains {
		for _, c := range v {
			dead[c.String()] = true
		}
	}
	stub, err := toEvalCards(liveDeck(dead))
	if err != nil {
		return equityResult{}, err
	}

	missing := 5 - len(board)
	heroHole := [2]pokereval.Card{heroEval[0], heroEval[1]}

	score := func(runout []pokereval.Card) float64 {
		var full [5]pokereval.Card
		copy(full[:], boardEval)
		copy(full[len(boardEval):], runout)

		heroScore := eval7(heroHole, full)
		best := heroScore
		ties := 1
		for _, v := range villainEvals {
			vs := eval7(v, full)
			if vs > best {
				best = vs
				ties = 1
			} else if vs == best {
				ties++
			}
		}
		if heroScore < best {
			return 0
		}
		return 1 / float64(ties)
	}

	if missing <= maxEnumerateMissing {
		total := 0.0
		n := 0
		forEachCombination(len(stub), missing, func(idx []int) {
			runout := make([]pokereval.Card, missing)
			for i, j := range idx {
				runout[i] = stub[j]
			}
			total += score(runout)
			n++
		})
		return equityResult{equity: total / float64(n), samples: n}, nil
	}

	total := 0.0
	for i := 0; i < sampleCount; i++ {
		idx := rng.Perm(len(stub))[:missing]
		runout := make([]pokereval.Card, missing)
		for j, k := range idx {
			runout[j] = stub[k]
		}
		total += score(runout)
	}
	return equityResult{equity: total / float64(sampleCount), samples: sampleCount}, nil
}

// equityVsRange averages hero equity over every combo in a villain range.
// With the board at least three cards deep all runouts are enumerated per
// combo; earlier streets sample combos and runouts together.
func equityVsRange(hero [2]parser.Card, combos []Combo, board []parser.Card, sampleCount int, rng *rand.Rand) (equityResult, error) {
	if len(combos) == 0 {
		return equityResult{}, fmt.Errorf("empty villain range")
	}
	missing := 5 - len(board)
	if missing <= maxEnumerateMissing {
		total := 0.0
		samples := 0
		for _, combo := range combos {
			res, err := equityVsKnown(hero, [][2]parser.Card{combo}, board, sampleCount, rng)
			if err != nil {
				return equityResult{}, err
			}
			total += res.equity
			samples += res.samples
		}
		return equityResult{equity: total / float64(len(combos)), samples: samples}, nil
	}

	// Preflop: one sampled runout per sampled combo.
	total := 0.0
	for i := 0; i < sampleCount; i++ {
		combo := combos[rng.Intn(len(combos))]
		res, err := equityVsKnown(hero, [][2]parser.Card{combo}, board, 1, rng)
		if err != nil {
			return equityResult{}, err
		}
		total += res.equity
	}
	return equityResult{equity: total / float64(sampleCount), samples: sampleCount}, nil
}

// forEachCombination visits every k-subset of [0,n) in lexicographic order.
func forEachCombination(n, k int, visit func(idx []int)) {
	if k == 0 {
		visit(nil)
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		visit(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
