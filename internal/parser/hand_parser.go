package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	reCashHeader = regexp.MustCompile(`PokerStars Hand #(\d+):\s+Hold'em No Limit \(([€$]?)([\d.]+)/[€$]?([\d.]+)(?:\s+[A-Z]+)?\) - (\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})`)
	reTournHeader = regexp.MustCompile(`PokerStars Hand #(\d+): Tournament #(\d+), .+?Hold'em No Limit - (Level [IVXLC]+) \((\d+)/(\d+)\) - (\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})`)
	reTable     = regexp.MustCompile(`Table '(.+?)' (\d+)-max.*Seat #(\d+) is the button`)
	reSeat      = regexp.MustCompile(`^Seat (\d+): (.+?) \(([\d.]+) in chips\)(.*)`)
	rePostBlind = regexp.MustCompile(`^(.+?): posts (?:small blind|big blind|small & big blinds) ([\d.]+)`)
	rePostAnte  = regexp.MustCompile(`^(.+?): posts the ante ([\d.]+)`)
	reDealt     = regexp.MustCompile(`^Dealt to (.+?) \[(.+?)\]`)
	reAction    = regexp.MustCompile(`^(.+?): (folds|checks|calls|bets|raises)(?: ([\d.]+))?(?: to ([\d.]+))?( and is all-in)?`)
	reActionish = regexp.MustCompile(`^(.+?): ([a-z][a-z-]*)(?: [\d.]+)*`)
	reUncalled  = regexp.MustCompile(`^Uncalled bet \(([\d.]+)\) returned to (.+)`)
	reCollected = regexp.MustCompile(`^(.+?) collected ([\d.]+) from (?:pot|main pot|side pot)`)
	reShows     = regexp.MustCompile(`^(.+?): shows \[(.+?)\]`)
	reMucks     = regexp.MustCompile(`^(.+?): mucks hand`)

	reSummaryPot       = regexp.MustCompile(`Total pot ([\d.]+).*\| Rake ([\d.]+)`)
	reBoard            = regexp.MustCompile(`Board \[(.+?)\]`)
	reSummaryWon       = regexp.MustCompile(`showed \[(.+?)\] and won \(([\d.]+)\)`)
	reSummaryCollected = regexp.MustCompile(`collected \(([\d.]+)\)`)
	reSummaryMucked    = regexp.MustCompile(`mucked \[(.+?)\]`)
	reSeatLinePrefix   = regexp.MustCompile(`^Seat \d+: `)
	rePositionTag      = regexp.MustCompile(`\s*\([^)]+\)\s*$`)
)

// Lines that produce no action and are skipped silently.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^.+ is disconnected`),
	regexp.MustCompile(`^.+ is connected`),
	regexp.MustCompile(`^.+ has timed out( while disconnected)?$`),
	regexp.MustCompile(`^.+ leaves the table`),
	regexp.MustCompile(`^.+ joins the table at seat #\d+`),
	regexp.MustCompile(`^.+ will be allowed to play after the button`),
	regexp.MustCompile(`^.+ out of hand \(`),
	regexp.MustCompile(`^.+: doesn't show hand`),
	regexp.MustCompile(`^.+ said, "`),
	regexp.MustCompile(`^.+ has returned`),
	regexp.MustCompile(`^.+ is sitting out`),
	regexp.MustCompile(`^\*\*\*`),
}

var streetMarkers = []struct {
	marker string
	street Street
}{
	{"*** HOLE CARDS ***", StreetPreflop},
	{"*** FLOP ***", StreetFlop},
	{"*** TURN ***", StreetTurn},
	{"*** RIVER ***", StreetRiver},
	{"*** SHOW DOWN ***", StreetShowdown},
}

const summaryMarker = "*** SUMMARY ***"

const timestampLayout = "2006/01/02 15:04:05"

// Action verbs that never carry chips and need no bookkeeping.
var knownVerbs = map[string]bool{
	"folds": true, "checks": true, "calls": true, "bets": true, "raises": true,
	"shows": true, "mucks": true, "posts": true,
}

func isNoise(line string) bool {
	for _, p := range noisePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// positionsForSeats assigns position labels clockwise from the button.
func positionsForSeats(seatOrder []int, btnSeat int) map[int]string {
	n := len(seatOrder)
	if n == 0 {
		return map[int]string{}
	}

	btnIdx := 0
	for i, s := range seatOrder {
		if s == btnSeat {
			btnIdx = i
			break
		}
	}
	rotated := make([]int, 0, n)
	rotated = append(rotated, seatOrder[btnIdx:]...)
	rotated = append(rotated, seatOrder[:btnIdx]...)

	labelsByCount := map[int][]string{
		2: {"BTN", "BB"},
		3: {"BTN", "SB", "BB"},
		4: {"BTN", "SB", "BB", "UTG"},
		5: {"BTN", "SB", "BB", "UTG", "CO"},
		6: {"BTN", "SB", "BB", "UTG", "MP", "CO"},
		7: {"BTN", "SB", "BB", "UTG", "MP", "MP+1", "CO"},
		8: {"BTN", "SB", "BB", "UTG", "UTG+1", "MP", "MP+1", "CO"},
		9: {"BTN", "SB", "BB", "UTG", "UTG+1", "MP", "MP+1", "CO", "HJ"},
	}
	labels, ok := labelsByCount[n]
	if !ok {
		labels = make([]string, n)
		for i := range labels {
			labels[i] = "P" + strconv.Itoa(i)
		}
	}
	out := make(map[int]string, n)
	for i, seat := range rotated {
		out[seat] = labels[i]
	}
	return out
}

// HandParser parses a single PokerStars hand history text block.
type HandParser struct {
	Hero string
}

func NewHandParser(hero string) *HandParser {
	return &HandParser{Hero: hero}
}

type seatInfo struct {
	seat          int
	startingStack decimal.Decimal
	holeCards     []Card
	sittingOut    bool
}

type rawAction struct {
	seq          int
	player       string
	street       Street
	actionType   ActionType
	amount       decimal.Decimal
	amountToCall decimal.Decimal
	potBefore    decimal.Decimal
	isAllIn      bool
}

type summaryData struct {
	totalPot   decimal.Decimal
	rake       decimal.Decimal
	boardFlop  []Card
	boardTurn  *Card
	boardRiver *Card
	collected  map[string]decimal.Decimal
	shownCards map[string][]Card
}

type bodyResult struct {
	actions         []rawAction
	showdownCards   map[string][]Card
	showdownPlayers map[string]bool
	totalCommitted  map[string]decimal.Decimal
	uncalledTotal   decimal.Decimal
	ante            decimal.Decimal
}

// Parse parses one hand block into a fully annotated ParsedHand.
func (hp *HandParser) Parse(text string) (*ParsedHand, error) {
	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, ln := range rawLines {
		ln = strings.TrimRight(ln, " \t")
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) < 2 {
		return nil, &HeaderParseError{Line: text}
	}

	session, meta, err := hp.parseHeaders(lines)
	if err != nil {
		return nil, err
	}
	seats := hp.parseSeats(lines)
	body, err := hp.parseBody(lines, seats)
	if err != nil {
		return nil, err
	}
	if body.ante.IsPositive() {
		session.Ante = body.ante
	}
	summary := hp.parseSummary(lines)

	// Merge showdown-revealed cards into seats.
	for name, cards := range body.showdownCards {
		if info, ok := seats[name]; ok && info.holeCards == nil {
			info.holeCards = cards
		}
	}
	for name, cards := range summary.shownCards {
		if info, ok := seats[name]; ok && info.holeCards == nil {
			info.holeCards = cards
		}
	}

	meta.BoardFlop = summary.boardFlop
	meta.BoardTurn = summary.boardTurn
	meta.BoardRiver = summary.boardRiver
	meta.TotalPot = summary.totalPot
	meta.Rake = summary.rake
	meta.UncalledBetReturned = body.uncalledTotal

	players := hp.buildPlayers(seats, meta, summary, body)
	actions := buildActions(body.actions, hp.Hero)

	ph := &ParsedHand{
		Session: *session,
		Hand:    *meta,
		Players: players,
		Actions: actions,
		Valid:   true,
	}
	annotateFinancials(ph)

	if err := checkPotConservation(ph, body); err != nil {
		ph.Valid = false
		ph.InvalidCause = err.Error()
	}
	return ph, nil
}

func (hp *HandParser) parseHeaders(lines []string) (*SessionMeta, *HandMeta, error) {
	handLine := lines[0]
	tableLine := lines[1]

	session := &SessionMeta{
		GameType:  "NLHE",
		LimitType: "NL",
		Ante:      decimal.Zero,
		Currency:  CurrencyPlay,
	}
	meta := &HandMeta{}

	if m := reTournHeader.FindStringSubmatch(handLine); m != nil {
		meta.SourceHandID = m[1]
		session.IsTournament = true
		session.TournamentID = m[2]
		session.TournamentLevel = m[3]
		session.SmallBlind = decimal.RequireFromString(m[4])
		session.BigBlind = decimal.RequireFromString(m[5])
		ts, err := time.Parse(timestampLayout, m[6])
		if err != nil {
			return nil, nil, &HeaderParseError{Line: handLine}
		}
		meta.Timestamp = ts
	} else if m := reCashHeader.FindStringSubmatch(handLine); m != nil {
		meta.SourceHandID = m[1]
		switch m[2] {
		case "$":
			session.Currency = CurrencyUSD
		case "€":
			session.Currency = CurrencyEUR
		}
		session.SmallBlind = decimal.RequireFromString(m[3])
		session.BigBlind = decimal.RequireFromString(m[4])
		ts, err := time.Parse(timestampLayout, m[5])
		if err != nil {
			return nil, nil, &HeaderParseError{Line: handLine}
		}
		meta.Timestamp = ts
	} else {
		return nil, nil, &HeaderParseError{Line: handLine}
	}

	m := reTable.FindStringSubmatch(tableLine)
	if m == nil {
		return nil, nil, &HeaderParseError{Line: tableLine}
	}
	session.TableName = m[1]
	session.MaxSeats, _ = strconv.Atoi(m[2])
	meta.ButtonSeat, _ = strconv.Atoi(m[3])

	return session, meta, nil
}

func (hp *HandParser) parseSeats(lines []string) map[string]*seatInfo {
	seats := make(map[string]*seatInfo)
	for _, line := range lines {
		if strings.HasPrefix(line, summaryMarker) {
			break
		}
		m := reSeat.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		seatNum, _ := strconv.Atoi(m[1])
		username := strings.TrimSpace(m[2])
		flags := m[4]
		seats[username] = &seatInfo{
			seat:          seatNum,
			startingStack: decimal.RequireFromString(m[3]),
			sittingOut:    strings.Contains(flags, "sitting out") || strings.Contains(flags, "out of hand"),
		}
	}
	return seats
}

func (hp *HandParser) parseBody(lines []string, seats map[string]*seatInfo) (*bodyResult, error) {
	res := &bodyResult{
		showdownCards:   make(map[string][]Card),
		showdownPlayers: make(map[string]bool),
		totalCommitted:  make(map[string]decimal.Decimal),
	}

	currentStreet := StreetPreflop
	seq := 0
	pot := decimal.Zero
	streetBet := decimal.Zero
	streetCommitted := make(map[string]decimal.Decimal)
	facingAllIn := false
	inSummary := false

	for _, line := range lines[2:] {
		stripped := strings.TrimSpace(line)

		if street, ok := matchStreetMarker(stripped); ok {
			if street != currentStreet {
				if street != currentStreet+1 {
					return nil, &StreetSequenceError{From: currentStreet, To: street}
				}
				currentStreet = street
				streetBet = decimal.Zero
				streetCommitted = make(map[string]decimal.Decimal)
				facingAllIn = false
			}
			continue
		}
		if strings.HasPrefix(stripped, summaryMarker) {
			inSummary = true
			continue
		}
		if inSummary {
			continue
		}
		if isNoise(stripped) {
			continue
		}

		if m := reDealt.FindStringSubmatch(stripped); m != nil {
			if info, ok := seats[m[1]]; ok {
				cards, err := ParseCards(m[2])
				if err == nil {
					info.holeCards = cards
				}
			}
			continue
		}

		if m := reUncalled.FindStringSubmatch(stripped); m != nil {
			amount := decimal.RequireFromString(m[1])
			player := strings.TrimSpace(m[2])
			pot = pot.Sub(amount)
			res.uncalledTotal = res.uncalledTotal.Add(amount)
			res.totalCommitted[player] = res.totalCommitted[player].Sub(amount)
			continue
		}

		if reCollected.MatchString(stripped) {
			continue // winnings are read from the summary section
		}

		if m := reShows.FindStringSubmatch(stripped); m != nil {
			name := strings.TrimSpace(m[1])
			res.showdownPlayers[name] = true
			if cards, err := ParseCards(m[2]); err == nil {
				res.showdownCards[name] = cards
			}
			continue
		}
		if m := reMucks.FindStringSubmatch(stripped); m != nil {
			res.showdownPlayers[strings.TrimSpace(m[1])] = true
			continue
		}

		if m := rePostAnte.FindStringSubmatch(stripped); m != nil {
			username := strings.TrimSpace(m[1])
			amount := decimal.RequireFromString(m[2])
			if res.ante.IsZero() {
				res.ante = amount
			}
			seq++
			pot = pot.Add(amount)
			res.totalCommitted[username] = res.totalCommitted[username].Add(amount)
			res.actions = append(res.actions, rawAction{
				seq:        seq,
				player:     username,
				street:     StreetPreflop,
				actionType: ActionPostAnte,
				amount:     amount,
				potBefore:  pot.Sub(amount),
			})
			continue
		}

		if m := rePostBlind.FindStringSubmatch(stripped); m != nil {
			username := strings.TrimSpace(m[1])
			amount := decimal.RequireFromString(m[2])
			seq++
			pot = pot.Add(amount)
			res.totalCommitted[username] = res.totalCommitted[username].Add(amount)
			streetCommitted[username] = streetCommitted[username].Add(amount)
			if amount.GreaterThan(streetBet) {
				streetBet = amount
			}
			res.actions = append(res.actions, rawAction{
				seq:        seq,
				player:     username,
				street:     StreetPreflop,
				actionType: ActionPostBlind,
				amount:     amount,
				potBefore:  pot.Sub(amount),
			})
			continue
		}

		m := reAction.FindStringSubmatch(stripped)
		if m == nil {
			if am := reActionish.FindStringSubmatch(stripped); am != nil {
				if _, seated := seats[strings.TrimSpace(am[1])]; seated && !knownVerbs[am[2]] {
					return nil, &UnknownActionError{Line: stripped}
				}
			}
			continue
		}

		username := strings.TrimSpace(m[1])
		verb := m[2]
		isAllIn := m[5] != ""

		var num1, num2 decimal.Decimal
		hasNum1, hasNum2 := m[3] != "", m[4] != ""
		if hasNum1 {
			num1 = decimal.RequireFromString(m[3])
		}
		if hasNum2 {
			num2 = decimal.RequireFromString(m[4])
		}

		// A call into a pending all-in bet/raise is itself all-in for pot purposes.
		if verb == "calls" && facingAllIn {
			isAllIn = true
		}

		var actionType ActionType
		amount := decimal.Zero
		atc := decimal.Zero
		increment := decimal.Zero

		switch verb {
		case "folds":
			actionType = ActionFold
		case "checks":
			actionType = ActionCheck
		case "calls":
			actionType = ActionCall
			amount = num1
			atc = streetBet.Sub(streetCommitted[username])
			if atc.IsNegative() {
				atc = decimal.Zero
			}
			increment = amount
			pot = pot.Add(amount)
			res.totalCommitted[username] = res.totalCommitted[username].Add(amount)
			streetCommitted[username] = streetCommitted[username].Add(amount)
		case "bets":
			actionType = ActionBet
			amount = num1
			increment = amount
			streetBet = amount
			pot = pot.Add(amount)
			res.totalCommitted[username] = res.totalCommitted[username].Add(amount)
			streetCommitted[username] = streetCommitted[username].Add(amount)
		case "raises":
			actionType = ActionRaise
			// "raises X to Y": amount is the total street size Y.
			if hasNum2 {
				amount = num2
			} else {
				amount = num1
			}
			atc = streetBet.Sub(streetCommitted[username])
			if atc.IsNegative() {
				atc = decimal.Zero
			}
			increment = amount.Sub(streetCommitted[username])
			if increment.IsNegative() {
				increment = decimal.Zero
			}
			pot = pot.Add(increment)
			res.totalCommitted[username] = res.totalCommitted[username].Add(increment)
			streetCommitted[username] = amount
			streetBet = amount
		default:
			return nil, &UnknownActionError{Line: stripped}
		}

		if isAllIn && actionType.IsAggressive() {
			facingAllIn = true
		}

		seq++
		res.actions = append(res.actions, rawAction{
			seq:          seq,
			player:       username,
			street:       currentStreet,
			actionType:   actionType,
			amount:       amount,
			amountToCall: atc,
			potBefore:    pot.Sub(increment),
			isAllIn:      isAllIn,
		})
	}

	return res, nil
}

func matchStreetMarker(line string) (Street, bool) {
	for _, sm := range streetMarkers {
		if strings.HasPrefix(line, sm.marker) {
			return sm.street, true
		}
	}
	return 0, false
}

func (hp *HandParser) parseSummary(lines []string) *summaryData {
	res := &summaryData{
		totalPot:   decimal.Zero,
		rake:       decimal.Zero,
		collected:  make(map[string]decimal.Decimal),
		shownCards: make(map[string][]Card),
	}

	inSummary := false
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, summaryMarker) {
			inSummary = true
			continue
		}
		if !inSummary {
			continue
		}

		if m := reSummaryPot.FindStringSubmatch(stripped); m != nil {
			res.totalPot = decimal.RequireFromString(m[1])
			res.rake = decimal.RequireFromString(m[2])
			continue
		}

		if m := reBoard.FindStringSubmatch(stripped); m != nil {
			cards, err := ParseCards(m[1])
			if err != nil {
				continue
			}
			if len(cards) >= 3 {
				res.boardFlop = cards[:3]
			}
			if len(cards) >= 4 {
				c := cards[3]
				res.boardTurn = &c
			}
			if len(cards) >= 5 {
				c := cards[4]
				res.boardRiver = &c
			}
			continue
		}

		if !strings.HasPrefix(stripped, "Seat ") {
			continue
		}

		if m := reSummaryWon.FindStringSubmatch(stripped); m != nil {
			name := summarySeatName(stripped, " showed ")
			res.collected[name] = res.collected[name].Add(decimal.RequireFromString(m[2]))
			if cards, err := ParseCards(m[1]); err == nil {
				res.shownCards[name] = cards
			}
			continue
		}
		if m := reSummaryCollected.FindStringSubmatch(stripped); m != nil {
			name := summarySeatName(stripped, " collected")
			res.collected[name] = res.collected[name].Add(decimal.RequireFromString(m[1]))
			continue
		}
		if m := reSummaryMucked.FindStringSubmatch(stripped); m != nil {
			name := summarySeatName(stripped, " mucked")
			if cards, err := ParseCards(m[1]); err == nil {
				res.shownCards[name] = cards
			}
		}
	}
	return res
}

// summarySeatName extracts the username from a summary seat line, dropping
// the "Seat N: " prefix and trailing position tags. Heads-up lines carry two
// tags ("(button) (small blind)"), so stripping loops until none remain.
func summarySeatName(line, stop string) string {
	after := reSeatLinePrefix.ReplaceAllString(line, "")
	name := after
	if idx := strings.Index(after, stop); idx >= 0 {
		name = after[:idx]
	}
	name = strings.TrimSpace(name)
	for {
		stripped := strings.TrimSpace(rePositionTag.ReplaceAllString(name, ""))
		if stripped == name {
			return name
		}
		name = stripped
	}
}

func (hp *HandParser) buildPlayers(seats map[string]*seatInfo, meta *HandMeta, summary *summaryData, body *bodyResult) []*HandPlayer {
	seatNumbers := make([]int, 0, len(seats))
	bySeat := make(map[int]string, len(seats))
	for name, info := range seats {
		seatNumbers = append(seatNumbers, info.seat)
		bySeat[info.seat] = name
	}
	sort.Ints(seatNumbers)

	positions := positionsForSeats(seatNumbers, meta.ButtonSeat)

	players := make([]*HandPlayer, 0, len(seats))
	for _, seat := range seatNumbers {
		name := bySeat[seat]
		info := seats[name]
		won := summary.collected[name]
		invested := body.totalCommitted[name]
		players = append(players, &HandPlayer{
			Username:       name,
			Seat:           seat,
			StartingStack:  info.startingStack,
			Position:       positions[seat],
			HoleCards:      info.holeCards,
			NetResult:      won.Sub(invested),
			IsHero:         name == hp.Hero,
			SittingOut:     info.sittingOut,
			WentToShowdown: body.showdownPlayers[name],
		})
	}
	return players
}

func buildActions(raw []rawAction, hero string) []*Action {
	out := make([]*Action, 0, len(raw))
	for _, r := range raw {
		out = append(out, &Action{
			Sequence:     r.seq,
			Player:       r.player,
			IsHero:       r.player == hero,
			Street:       r.street,
			Type:         r.actionType,
			Amount:       r.amount,
			AmountToCall: r.amountToCall,
			PotBefore:    r.potBefore,
			IsAllIn:      r.isAllIn,
		})
	}
	return out
}

func checkPotConservation(ph *ParsedHand, body *bodyResult) error {
	if ph.Hand.TotalPot.IsZero() {
		return nil // no summary pot reported, nothing to reconcile
	}
	committed := decimal.Zero
	for _, v := range body.totalCommitted {
		committed = committed.Add(v)
	}
	if !committed.Equal(ph.Hand.TotalPot) {
		return &PotConservationError{
			Reported: ph.Hand.TotalPot.String(),
			Computed: committed.String(),
			HandID:   ph.Hand.SourceHandID,
		}
	}
	return nil
}
