package parser

import (
	"fmt"
	"strings"
)

var validRanks = map[string]bool{
	"A": true, "K": true, "Q": true, "J": true, "T": true,
	"9": true, "8": true, "7": true, "6": true, "5": true,
	"4": true, "3": true, "2": true,
}

var validSuits = map[string]bool{
	"h": true, "d": true, "c": true, "s": true,
}

// ParseCard parses a two-character card string like "Ah" or "Td".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	rank := strings.ToUpper(s[:1])
	suit := strings.ToLower(s[1:])
	if !validRanks[rank] || !validSuits[suit] {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	return Card{Rank: rank, Suit: suit}, nil
}

// ParseCards parses a space-separated card list like "Ah Kd" or "Qh Jh Th".
func ParseCards(s string) ([]Card, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// FormatCards renders cards as a space-separated string, e.g. "Ah Kd".
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
