package parser

import "fmt"

// HeaderParseError reports a hand segment whose header or table line could
// not be parsed. The segment is skipped; other hands in the file still ingest.
type HeaderParseError struct {
	Line string
}

func (e *HeaderParseError) Error() string {
	return fmt.Sprintf("cannot parse hand header: %q", e.Line)
}

// StreetSequenceError reports street markers appearing out of order
// (e.g. a TURN marker before any FLOP). The hand is abandoned.
type StreetSequenceError struct {
	From Street
	To   Street
}

func (e *StreetSequenceError) Error() string {
	return fmt.Sprintf("street %s cannot follow %s", e.To, e.From)
}

// UnknownActionError reports an action-shaped line with an unrecognized verb.
// The hand is abandoned rather than silently mis-parsed.
type UnknownActionError struct {
	Line string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action: %q", e.Line)
}

// PotConservationError reports a hand whose summary pot disagrees with the
// chips committed minus uncalled bets returned. The hand is persisted but
// flagged invalid.
type PotConservationError struct {
	Reported string
	Computed string
	HandID   string
}

func (e *PotConservationError) Error() string {
	return fmt.Sprintf("hand %s: summary pot %s != committed %s", e.HandID, e.Reported, e.Computed)
}
