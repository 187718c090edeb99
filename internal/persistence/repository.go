package persistence

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hiddenpair/pokerhero/internal/parser"
)

// SessionRecord is one ingested hand-history file: its table stakes plus the
// hero's money in and out.
type SessionRecord struct {
	ID              int64
	SourceFile      string
	TableName       string
	GameType        string
	LimitType       string
	SmallBlind      decimal.Decimal
	BigBlind        decimal.Decimal
	Ante            decimal.Decimal
	MaxSeats        int
	Currency        string
	IsTournament    bool
	TournamentID    string
	TournamentLevel string
	StartedAt       time.Time
	HeroBuyIn       decimal.Decimal
	HeroCashOut     decimal.Decimal
	IsFavorite      bool
}

// HandRecord is the stored header of one hand.
type HandRecord struct {
	ID               int64
	SessionID        int64
	SourceHandID     string
	PlayedAt         time.Time
	ButtonSeat       int
	Board            string // space-separated, e.g. "Ah Kd 2c"
	TotalPot         decimal.Decimal
	Rake             decimal.Decimal
	UncalledReturned decimal.Decimal
	Valid            bool
	InvalidCause     string
	IsFavorite       bool
}

// SavedHand reports the outcome of persisting one parsed hand.
type SavedHand struct {
	HandID int64
	// ActionIDs maps action sequence numbers to their row IDs, so EV results
	// can be cached against them.
	ActionIDs map[int]int64
	// Skipped is true when a hand with the same source hand ID already
	// existed; nothing was written.
	Skipped bool
}

// ActionEV is one cached equity/EV evaluation, keyed by action row.
type ActionEV struct {
	ActionID             int64
	HeroID               int64
	Equity               float64
	EV                   float64
	EVType               string
	SampleCount          int
	ContractedRangeSize  int
	FoldEquityPct        *float64
	VillainPreflopAction string
	ComputedAt           time.Time
}

// PlayerStatsRow is a per-player aggregate over all valid stored hands.
type PlayerStatsRow struct {
	PlayerID      int64
	Username      string
	Hands         int
	VPIPCount     int
	PFRCount      int
	ThreeBetCount int
	ShowdownCount int
	IsFavorite    bool
}

// Repository is the storage boundary of the ingestion pipeline.
type Repository interface {
	// CreateSession inserts a session row and returns its ID. The source
	// file path is unique; re-ingesting a file reuses the existing session.
	CreateSession(ctx context.Context, s *SessionRecord) (int64, error)
	UpdateSessionFinancials(ctx context.Context, sessionID int64, buyIn, cashOut decimal.Decimal) error
	// DeleteSession removes a session and its hands. Used to drop sessions
	// whose file produced no ingestable hands.
	DeleteSession(ctx context.Context, sessionID int64) error
	ListSessions(ctx context.Context) ([]SessionRecord, error)
	SetSessionFavorite(ctx context.Context, sessionID int64, favorite bool) error

	// SaveHand persists a parsed hand with its players and actions.
	// Idempotent on the source hand ID.
	SaveHand(ctx context.Context, sessionID int64, ph *parser.ParsedHand) (SavedHand, error)
	ListHands(ctx context.Context, sessionID int64) ([]HandRecord, error)
	SetHandFavorite(ctx context.Context, handID int64, favorite bool) error

	SaveActionEV(ctx context.Context, ev *ActionEV) error
	// GetActionEV returns nil, nil when no evaluation is cached.
	GetActionEV(ctx context.Context, actionID int64) (*ActionEV, error)

	// PlayerStats aggregates behavior counts per player across valid hands.
	PlayerStats(ctx context.Context) ([]PlayerStatsRow, error)
	// GetPlayerID returns 0 when the player has never been stored.
	GetPlayerID(ctx context.Context, username string) (int64, error)
	SetPlayerFavorite(ctx context.Context, username string, favorite bool) error

	// GetSetting returns "" when the key is unset.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Setting keys understood by the pipeline.
const (
	SettingHeroUsername         = "hero_username"
	SettingRangeVPIPPrior       = "range_vpip_prior"
	SettingRangePFRPrior        = "range_pfr_prior"
	SettingRange3BetPrior       = "range_3bet_prior"
	SettingRange4BetPrior       = "range_4bet_prior"
	SettingRangePriorWeight     = "range_prior_weight"
	SettingRangeSampleCount     = "range_sample_count"
	SettingRangeContinuePassive = "range_continue_pct_passive"
	SettingRangeContinueAggro   = "range_continue_pct_aggressive"
)
