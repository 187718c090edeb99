package equity

import (
	"fmt"

	pokereval "github.com/paulhankin/poker"

	"github.com/hiddenpair/pokerhero/internal/parser"
)

var suitIndex = map[string]int{"c": 0, "d": 1, "h": 2, "s": 3}

var rankIndex = map[string]int{
	"A": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7,
	"8": 8, "9": 9, "T": 10, "J": 11, "Q": 12, "K": 13,
}

// toEvalCard maps a parsed card onto the evaluator's card representation.
func toEvalCard(c parser.Card) (pokereval.Card, error) {
	s, ok := suitIndex[c.Suit]
	if !ok {
		return 0, fmt.Errorf("unknown suit %q", c.Suit)
	}
	r, ok := rankIndex[c.Rank]
	if !ok {
		return 0, fmt.Errorf("unknown rank %q", c.Rank)
	}
	return pokereval.MakeCard(pokereval.Suit(s), pokereval.Rank(r))
}

func toEvalCards(cards []parser.Card) ([]pokereval.Card, error) {
	out := make([]pokereval.Card, len(cards))
	for i, c := range cards {
		ec, err := toEvalCard(c)
		if err != nil {
			return nil, err
		}
		out[i] = ec
	}
	return out, nil
}

// liveDeck returns the 52-card deck minus the dead cards, keyed by their
// two-character string form ("Ah").
func liveDeck(dead map[string]bool) []parser.Card {
	ranks := []string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}
	deck := make([]parser.Card, 0, 52-len(dead))
	for _, r := range ranks {
		for _, s := range comboSuits {
			c := parser.Card{Rank: r, Suit: s}
			if !dead[c.String()] {
				deck = append(deck, c)
			}
		}
	}
	return deck
}

func deadSet(groups ...[]parser.Card) map[string]bool {
	dead := make(map[string]bool)
	for _, g := range groups {
		for _, c := range g {
			dead[c.String()] = true
		}
	}
	return dead
}

// eval7 scores a 2-card holding against a 5-card board. Higher is better.
func eval7(hole [2]pokereval.Card, board [5]pokereval.Card) int16 {
	hand := [7]pokereval.Card{hole[0], hole[1], board[0], board[1], board[2], board[3], board[4]}
	return pokereval.Eval7(&hand)
}
