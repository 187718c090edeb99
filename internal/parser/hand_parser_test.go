package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const sampleCashHand = `PokerStars Hand #100001: Hold'em No Limit ($0.50/$1.00) - 2024/03/15 20:11:05
Table 'Aludra III' 6-max Seat #1 is the button
Seat 1: hero_blaster (100.00 in chips)
Seat 2: villain_a (85.50 in chips)
Seat 3: villain_b (120.00 in chips)
villain_a: posts small blind 0.50
villain_b: posts big blind 1.00
*** HOLE CARDS ***
Dealt to hero_blaster [Ah Kh]
hero_blaster: raises 2.00 to 3.00
villain_a: folds
villain_b: calls 2.00
*** FLOP *** [Qh Jh 2c]
villain_b: checks
hero_blaster: bets 4.00
villain_b: calls 4.00
*** TURN *** [Qh Jh 2c] [Th]
villain_b: checks
hero_blaster: bets 10.00
villain_b: folds
Uncalled bet (10.00) returned to hero_blaster
hero_blaster collected 13.85 from pot
hero_blaster: doesn't show hand
*** SUMMARY ***
Total pot 14.50 | Rake 0.65
Board [Qh Jh 2c Th]
Seat 1: hero_blaster (button) collected (13.85)
Seat 2: villain_a (small blind) folded before Flop
Seat 3: villain_b (big blind) folded on the Turn`

const sampleShowdownHand = `PokerStars Hand #100002: Hold'em No Limit (€0.25/€0.50) - 2024/03/15 21:02:44
Table 'Hydra II' 2-max Seat #1 is the button
Seat 1: hero_blaster (50.00 in chips)
Seat 2: villain_a (50.00 in chips)
hero_blaster: posts small blind 0.25
villain_a: posts big blind 0.50
*** HOLE CARDS ***
Dealt to hero_blaster [7c 7d]
hero_blaster: raises 1.00 to 1.50
villain_a: calls 1.00
*** FLOP *** [7h 8d 9s]
villain_a: checks
hero_blaster: bets 2.00
villain_a: calls 2.00
*** TURN *** [7h 8d 9s] [2d]
villain_a: checks
hero_blaster: checks
*** RIVER *** [7h 8d 9s 2d] [2c]
villain_a: bets 5.00
hero_blaster: calls 5.00
*** SHOW DOWN ***
villain_a: shows [Ad 8c] (two pair, Eights and Deuces)
hero_blaster: shows [7c 7d] (a full house, Sevens full of Deuces)
hero_blaster collected 16.25 from pot
*** SUMMARY ***
Total pot 17.00 | Rake 0.75
Board [7h 8d 9s 2d 2c]
Seat 1: hero_blaster (button) (small blind) showed [7c 7d] and won (16.25) with a full house, Sevens full of Deuces
Seat 2: villain_a (big blind) showed [Ad 8c] and lost with two pair, Eights and Deuces`

const sampleAllInHand = `PokerStars Hand #100003: Hold'em No Limit ($0.50/$1.00) - 2024/03/16 01:15:00
Table 'Aludra III' 2-max Seat #2 is the button
Seat 1: shorty (12.00 in chips)
Seat 2: bigstack (150.00 in chips)
shorty: posts small blind 0.50
bigstack: posts big blind 1.00
*** HOLE CARDS ***
shorty: raises 11.00 to 12.00 and is all-in
bigstack: calls 11.00
*** FLOP *** [2c 7h Jd]
*** TURN *** [2c 7h Jd] [5s]
*** RIVER *** [2c 7h Jd 5s] [9h]
*** SHOW DOWN ***
shorty: shows [Ac Kc] (high card Ace)
bigstack: shows [Qd Qs] (a pair of Queens)
bigstack collected 23.00 from pot
*** SUMMARY ***
Total pot 24.00 | Rake 1.00
Board [2c 7h Jd 5s 9h]
Seat 1: shorty showed [Ac Kc] and lost with high card Ace
Seat 2: bigstack (button) showed [Qd Qs] and won (23.00) with a pair of Queens`

const sampleTournamentHand = `PokerStars Hand #200001: Tournament #3001, $5+$0.50 USD Hold'em No Limit - Level IV (50/100) - 2024/04/01 18:30:00
Table '3001 12' 9-max Seat #4 is the button
Seat 2: hero_blaster (4200 in chips)
Seat 4: villain_a (6100 in chips)
Seat 7: villain_b (1350 in chips)
hero_blaster: posts the ante 10
villain_a: posts the ante 10
villain_b: posts the ante 10
villain_b: posts small blind 50
hero_blaster: posts big blind 100
*** HOLE CARDS ***
Dealt to hero_blaster [9c 9d]
villain_a: folds
villain_b: calls 50
hero_blaster: checks
*** FLOP *** [2s 9h Kd]
villain_b: checks
hero_blaster: bets 150
villain_b: folds
Uncalled bet (150) returned to hero_blaster
hero_blaster collected 230 from pot
*** SUMMARY ***
Total pot 230 | Rake 0
Board [2s 9h Kd]
Seat 2: hero_blaster (big blind) collected (230)
Seat 4: villain_a (button) folded before Flop (didn't bet)
Seat 7: villain_b (small blind) folded on the Flop`

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func findAction(t *testing.T, ph *ParsedHand, player string, street Street, at ActionType) *Action {
	t.Helper()
	for _, a := range ph.Actions {
		if a.Player == player && a.Street == street && a.Type == at {
			return a
		}
	}
	t.Fatalf("no %s action by %s on %s", at, player, street)
	return nil
}

func TestParseCashHand(t *testing.T) {
	hp := NewHandParser("hero_blaster")
	ph, err := hp.Parse(sampleCashHand)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if ph.Hand.SourceHandID != "100001" {
		t.Errorf("hand id = %q, want 100001", ph.Hand.SourceHandID)
	}
	if ph.Session.Currency != CurrencyUSD {
		t.Errorf("currency = %s, want USD", ph.Session.Currency)
	}
	if !ph.Session.SmallBlind.Equal(mustDecimal(t, "0.50")) || !ph.Session.BigBlind.Equal(mustDecimal(t, "1.00")) {
		t.Errorf("blinds = %s/%s, want 0.50/1.00", ph.Session.SmallBlind, ph.Session.BigBlind)
	}
	if ph.Session.MaxSeats != 6 || ph.Session.TableName != "Aludra III" {
		t.Errorf("table = %q %d-max", ph.Session.TableName, ph.Session.MaxSeats)
	}
	if !ph.Valid {
		t.Errorf("hand marked invalid: %s", ph.InvalidCause)
	}

	hero := ph.Hero()
	if hero == nil {
		t.Fatal("hero not found")
	}
	if FormatCards(hero.HoleCards) != "Ah Kh" {
		t.Errorf("hero cards = %q, want Ah Kh", FormatCards(hero.HoleCards))
	}
	if hero.Position != "BTN" {
		t.Errorf("hero position = %q, want BTN", hero.Position)
	}
	if !hero.NetResult.Equal(mustDecimal(t, "6.85")) {
		t.Errorf("hero net = %s, want 6.85", hero.NetResult)
	}
	vb := ph.PlayerByName("villain_b")
	if !vb.NetResult.Equal(mustDecimal(t, "-7.00")) {
		t.Errorf("villain_b net = %s, want -7.00", vb.NetResult)
	}
	if hero.WentToShowdown || vb.WentToShowdown {
		t.Error("no player should have reached showdown")
	}

	if !ph.Hand.UncalledBetReturned.Equal(mustDecimal(t, "10.00")) {
		t.Errorf("uncalled = %s, want 10.00", ph.Hand.UncalledBetReturned)
	}
	if got := FormatCards(ph.Hand.Board()); got != "Qh Jh 2c Th" {
		t.Errorf("board = %q, want Qh Jh 2c Th", got)
	}

	// villain_b's preflop call faces the raise to 3.00 with 1.00 already posted.
	call := findAction(t, ph, "villain_b", StreetPreflop, ActionCall)
	if !call.AmountToCall.Equal(mustDecimal(t, "2.00")) {
		t.Errorf("preflop call atc = %s, want 2.00", call.AmountToCall)
	}
	if !call.PotBefore.Equal(mustDecimal(t, "4.50")) {
		t.Errorf("preflop call pot_before = %s, want 4.50", call.PotBefore)
	}

	// Hero's turn bet: pot before is the post-flop pot of 14.50.
	bet := findAction(t, ph, "hero_blaster", StreetTurn, ActionBet)
	if !bet.PotBefore.Equal(mustDecimal(t, "14.50")) {
		t.Errorf("turn bet pot_before = %s, want 14.50", bet.PotBefore)
	}
}

func TestParseCashHandSPRAndMDF(t *testing.T) {
	hp := NewHandParser("hero_blaster")
	ph, err := hp.Parse(sampleCashHand)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Hero's turn bet: heads-up, hero has 93 behind at turn start, pot 14.50.
	bet := findAction(t, ph, "hero_blaster", StreetTurn, ActionBet)
	if bet.SPR == nil {
		t.Fatal("turn bet SPR not set")
	}
	wantSPR := mustDecimal(t, "93").Div(mustDecimal(t, "14.5"))
	if !bet.SPR.Equal(wantSPR) {
		t.Errorf("turn bet SPR = %s, want %s", bet.SPR, wantSPR)
	}
	if bet.MDF != nil {
		t.Error("MDF set on a bet that faces no wager")
	}

	// villain_b's flop call faces 4.00 into 10.50: MDF = 10.5/14.5.
	call := findAction(t, ph, "villain_b", StreetFlop, ActionCall)
	if call.MDF == nil {
		t.Fatal("flop call MDF not set")
	}
	wantMDF := mustDecimal(t, "10.5").Div(mustDecimal(t, "14.5"))
	if !call.MDF.Equal(wantMDF) {
		t.Errorf("flop call MDF = %s, want %s", call.MDF, wantMDF)
	}
}

func TestParseShowdownHand(t *testing.T) {
	hp := NewHandParser("hero_blaster")
	ph, err := hp.Parse(sampleShowdownHand)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if ph.Session.Currency != CurrencyEUR {
		t.Errorf("currency = %s, want EUR", ph.Session.Currency)
	}
	hero := ph.Hero()
	villain := ph.PlayerByName("villain_a")
	if !hero.WentToShowdown || !villain.WentToShowdown {
		t.Error("both players should have reached showdown")
	}
	if FormatCards(villain.HoleCards) != "Ad 8c" {
		t.Errorf("villain cards = %q, want Ad 8c", FormatCards(villain.HoleCards))
	}
	if !hero.NetResult.Equal(mustDecimal(t, "7.75")) {
		t.Errorf("hero net = %s, want 7.75", hero.NetResult)
	}
	if !ph.Valid {
		t.Errorf("hand marked invalid: %s", ph.InvalidCause)
	}
}

func TestParseAllInHand(t *testing.T) {
	hp := NewHandParser("bigstack")
	ph, err := hp.Parse(sampleAllInHand)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	raise := findAction(t, ph, "shorty", StreetPreflop, ActionRaise)
	if !raise.IsAllIn {
		t.Error("shorty's shove not marked all-in")
	}
	if !raise.Amount.Equal(mustDecimal(t, "12.00")) {
		t.Errorf("shove amount = %s, want 12.00", raise.Amount)
	}

	// The call into an all-in raise is itself all-in for pot purposes.
	call := findAction(t, ph, "bigstack", StreetPreflop, ActionCall)
	if !call.IsAllIn {
		t.Error("call into all-in not marked all-in")
	}
	if !call.AmountToCall.Equal(mustDecimal(t, "11.00")) {
		t.Errorf("call atc = %s, want 11.00", call.AmountToCall)
	}
}

func TestParseTournamentHand(t *testing.T) {
	hp := NewHandParser("hero_blaster")
	ph, err := hp.Parse(sampleTournamentHand)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !ph.Session.IsTournament {
		t.Fatal("not detected as tournament")
	}
	if ph.Session.TournamentID != "3001" || ph.Session.TournamentLevel != "Level IV" {
		t.Errorf("tournament = %q %q", ph.Session.TournamentID, ph.Session.TournamentLevel)
	}
	if ph.Session.Currency != CurrencyPlay {
		t.Errorf("currency = %s, want PLAY", ph.Session.Currency)
	}
	if !ph.Session.Ante.Equal(mustDecimal(t, "10")) {
		t.Errorf("ante = %s, want 10", ph.Session.Ante)
	}

	antes := 0
	for _, a := range ph.Actions {
		if a.Type == ActionPostAnte {
			antes++
		}
	}
	if antes != 3 {
		t.Errorf("ante posts = %d, want 3", antes)
	}
	if !ph.Valid {
		t.Errorf("hand marked invalid: %s", ph.InvalidCause)
	}
}

func TestParseStreetSequenceError(t *testing.T) {
	bad := strings.Replace(sampleCashHand, "*** FLOP *** [Qh Jh 2c]", "*** TURN *** [Qh Jh 2c] [Th]", 1)
	hp := NewHandParser("hero_blaster")
	_, err := hp.Parse(bad)
	var seqErr *StreetSequenceError
	if !errors.As(err, &seqErr) {
		t.Fatalf("err = %v, want StreetSequenceError", err)
	}
}

func TestParseUnknownActionError(t *testing.T) {
	bad := strings.Replace(sampleCashHand, "villain_b: calls 2.00", "villain_b: slowrolls 2.00", 1)
	hp := NewHandParser("hero_blaster")
	_, err := hp.Parse(bad)
	var actErr *UnknownActionError
	if !errors.As(err, &actErr) {
		t.Fatalf("err = %v, want UnknownActionError", err)
	}
}

func TestParseHeaderError(t *testing.T) {
	hp := NewHandParser("hero_blaster")
	_, err := hp.Parse("PokerStars Hand #77: Omaha Pot Limit - garbled\nTable 'X' 6-max Seat #1 is the button")
	var hdrErr *HeaderParseError
	if !errors.As(err, &hdrErr) {
		t.Fatalf("err = %v, want HeaderParseError", err)
	}
}

func TestParsePotConservation(t *testing.T) {
	bad := strings.Replace(sampleCashHand, "Total pot 14.50", "Total pot 99.00", 1)
	hp := NewHandParser("hero_blaster")
	ph, err := hp.Parse(bad)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ph.Valid {
		t.Error("hand with pot mismatch not flagged invalid")
	}
	if ph.InvalidCause == "" {
		t.Error("invalid cause not recorded")
	}
}

func TestPositionsForSeats(t *testing.T) {
	cases := []struct {
		seats []int
		btn   int
		want  map[int]string
	}{
		{[]int{1, 2}, 1, map[int]string{1: "BTN", 2: "BB"}},
		{[]int{1, 2, 3}, 2, map[int]string{2: "BTN", 3: "SB", 1: "BB"}},
		{[]int{1, 3, 5, 7, 8, 9}, 5, map[int]string{5: "BTN", 7: "SB", 8: "BB", 9: "UTG", 1: "MP", 3: "CO"}},
	}
	for _, tc := range cases {
		got := positionsForSeats(tc.seats, tc.btn)
		for seat, want := range tc.want {
			if got[seat] != want {
				t.Errorf("seats %v btn %d: seat %d = %q, want %q", tc.seats, tc.btn, seat, got[seat], want)
			}
		}
	}
}
