package parser

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency identifies the money type a session is played in.
type Currency string

const (
	CurrencyUSD  Currency = "USD"
	CurrencyEUR  Currency = "EUR"
	CurrencyPlay Currency = "PLAY"
)

// Street represents the betting round
type Street int

const (
	StreetPreflop Street = iota
	StreetFlop
	StreetTurn
	StreetRiver
	StreetShowdown
)

func (s Street) String() string {
	switch s {
	case StreetPreflop:
		return "PREFLOP"
	case StreetFlop:
		return "FLOP"
	case StreetTurn:
		return "TURN"
	case StreetRiver:
		return "RIVER"
	case StreetShowdown:
		return "SHOWDOWN"
	default:
		return "UNKNOWN"
	}
}

// ActionType represents a player action
type ActionType int

const (
	ActionUnknown ActionType = iota
	ActionPostBlind
	ActionPostAnte
	ActionFold
	ActionCheck
	ActionCall
	ActionBet
	ActionRaise
)

func (a ActionType) String() string {
	switch a {
	case ActionPostBlind:
		return "POST_BLIND"
	case ActionPostAnte:
		return "POST_ANTE"
	case ActionFold:
		return "FOLD"
	case ActionCheck:
		return "CHECK"
	case ActionCall:
		return "CALL"
	case ActionBet:
		return "BET"
	case ActionRaise:
		return "RAISE"
	default:
		return "UNKNOWN"
	}
}

// IsAggressive reports whether the action puts pressure on opponents
// (a bet or raise, as opposed to a check or call).
func (a ActionType) IsAggressive() bool {
	return a == ActionBet || a == ActionRaise
}

// Card represents a playing card
type Card struct {
	Rank string // "A", "K", "Q", "J", "T", "2"-"9"
	Suit string // "h", "d", "c", "s"
}

func (c Card) String() string {
	return c.Rank + c.Suit
}

// SessionMeta describes the table/game context shared by the hands in a file.
type SessionMeta struct {
	TableName       string
	GameType        string // "NLHE"
	LimitType       string // "NL"
	SmallBlind      decimal.Decimal
	BigBlind        decimal.Decimal
	Ante            decimal.Decimal
	MaxSeats        int
	Currency        Currency
	IsTournament    bool
	TournamentID    string
	TournamentLevel string // e.g. "Level IV"
}

// HandMeta is hand-level metadata: identifiers, board, pot, rake.
type HandMeta struct {
	SourceHandID        string
	Timestamp           time.Time
	ButtonSeat          int
	BoardFlop           []Card // 3 cards or nil
	BoardTurn           *Card
	BoardRiver          *Card
	TotalPot            decimal.Decimal
	Rake                decimal.Decimal
	UncalledBetReturned decimal.Decimal
}

// Board returns all community cards dealt in the hand, in order.
func (h *HandMeta) Board() []Card {
	out := make([]Card, 0, 5)
	out = append(out, h.BoardFlop...)
	if h.BoardTurn != nil {
		out = append(out, *h.BoardTurn)
	}
	if h.BoardRiver != nil {
		out = append(out, *h.BoardRiver)
	}
	return out
}

// BoardAt returns the community cards visible when acting on the given street.
func (h *HandMeta) BoardAt(s Street) []Card {
	switch s {
	case StreetPreflop:
		return nil
	case StreetFlop:
		return append([]Card(nil), h.BoardFlop...)
	case StreetTurn:
		out := append([]Card(nil), h.BoardFlop...)
		if h.BoardTurn != nil {
			out = append(out, *h.BoardTurn)
		}
		return out
	default:
		return h.Board()
	}
}

// HandPlayer is the per-player record for a single hand.
type HandPlayer struct {
	Username       string
	Seat           int
	StartingStack  decimal.Decimal
	Position       string // BTN / SB / BB / UTG / UTG+1 / MP / MP+1 / CO / HJ
	HoleCards      []Card // nil when never revealed
	NetResult      decimal.Decimal
	IsHero         bool
	SittingOut     bool
	WentToShowdown bool

	// Pre-flop behavior flags, derived after parsing.
	VPIP     bool
	PFR      bool
	ThreeBet bool
}

// Action is a single in-hand action with its financial annotations.
type Action struct {
	Sequence     int
	Player       string
	IsHero       bool
	Street       Street
	Type         ActionType
	Amount       decimal.Decimal // total size on street for raises; 0 for FOLD/CHECK
	AmountToCall decimal.Decimal // facing bet size; 0 for BET/CHECK/POST_*
	PotBefore    decimal.Decimal // running pot before this action
	IsAllIn      bool

	// SPR is effective stack / pot before the action. Nil when the pot is zero.
	SPR *decimal.Decimal
	// MDF is pot / (pot + facing bet). Nil unless the action faces a bet.
	MDF *decimal.Decimal
}

// ParsedHand is the fully annotated output of HandParser.Parse.
type ParsedHand struct {
	Session SessionMeta
	Hand    HandMeta
	Players []*HandPlayer
	Actions []*Action

	// Valid is false when pot bookkeeping disagrees with the reported
	// summary. Invalid hands are persisted but excluded from stats and EV.
	Valid        bool
	InvalidCause string
}

// Hero returns the hero's player record, or nil if the hero was not seated.
func (ph *ParsedHand) Hero() *HandPlayer {
	for _, p := range ph.Players {
		if p.IsHero {
			return p
		}
	}
	return nil
}

// PlayerByName returns the player record for a username, or nil.
func (ph *ParsedHand) PlayerByName(name string) *HandPlayer {
	for _, p := range ph.Players {
		if p.Username == name {
			return p
		}
	}
	return nil
}
