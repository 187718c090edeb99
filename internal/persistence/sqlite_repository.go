package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/hiddenpair/pokerhero/internal/parser"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL mode reduces write latency by avoiding full fsync on every commit.
	// synchronous=NORMAL is safe with WAL and significantly faster than the default FULL.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}
	repo := &SQLiteRepository{db: db}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *SessionRecord) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM sessions WHERE source_file = ?`, s.SourceFile,
		).Scan(&id); err == nil {
			return nil
		} else if err != sql.ErrNoRows {
			return err
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO sessions(
			source_file, table_name, game_type, limit_type, small_blind, big_blind, ante,
			max_seats, currency, is_tournament, tournament_id, tournament_level, started_at,
			hero_buy_in, hero_cash_out, is_favorite, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.SourceFile,
			s.TableName,
			s.GameType,
			s.LimitType,
			s.SmallBlind.String(),
			s.BigBlind.String(),
			s.Ante.String(),
			s.MaxSeats,
			s.Currency,
			boolToInt(s.IsTournament),
			nullIfEmpty(s.TournamentID),
			nullIfEmpty(s.TournamentLevel),
			s.StartedAt.UTC().Format(time.RFC3339Nano),
			s.HeroBuyIn.String(),
			s.HeroCashOut.String(),
			boolToInt(s.IsFavorite),
			nowString(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	s.ID = id
	return id, nil
}

func (r *SQLiteRepository) UpdateSessionFinancials(ctx context.Context, sessionID int64, buyIn, cashOut decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET hero_buy_in = ?, hero_cash_out = ?, updated_at = ? WHERE id = ?`,
		buyIn.String(), cashOut.String(), nowString(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session financials: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, sessionID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, source_file, table_name, game_type, limit_type, small_blind, big_blind, ante,
		max_seats, currency, is_tournament, COALESCE(tournament_id, ''),
		COALESCE(tournament_level, ''), started_at,
		hero_buy_in, hero_cash_out, is_favorite
	FROM sessions ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			s                            SessionRecord
			sb, bb, ante, buyIn, cashOut string
			isTournament, isFavorite     int
			startedAt                    string
		)
		if err := rows.Scan(
			&s.ID, &s.SourceFile, &s.TableName, &s.GameType, &s.LimitType, &sb, &bb, &ante,
			&s.MaxSeats, &s.Currency, &isTournament, &s.TournamentID, &s.TournamentLevel,
			&startedAt, &buyIn, &cashOut, &isFavorite,
		); err != nil {
			return nil, err
		}
		if s.SmallBlind, err = decimal.NewFromString(sb); err != nil {
			return nil, fmt.Errorf("session %d small blind: %w", s.ID, err)
		}
		if s.BigBlind, err = decimal.NewFromString(bb); err != nil {
			return nil, fmt.Errorf("session %d big blind: %w", s.ID, err)
		}
		if s.Ante, err = decimal.NewFromString(ante); err != nil {
			return nil, fmt.Errorf("session %d ante: %w", s.ID, err)
		}
		if s.HeroBuyIn, err = decimal.NewFromString(buyIn); err != nil {
			return nil, fmt.Errorf("session %d buy-in: %w", s.ID, err)
		}
		if s.HeroCashOut, err = decimal.NewFromString(cashOut); err != nil {
			return nil, fmt.Errorf("session %d cash-out: %w", s.ID, err)
		}
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("session %d started_at: %w", s.ID, err)
		}
		s.IsTournament = isTournament != 0
		s.IsFavorite = isFavorite != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetSessionFavorite(ctx context.Context, sessionID int64, favorite bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_favorite = ?, updated_at = ? WHERE id = ?`,
		boolToInt(favorite), nowString(), sessionID,
	)
	return err
}

func (r *SQLiteRepository) SaveHand(ctx context.Context, sessionID int64, ph *parser.ParsedHand) (SavedHand, error) {
	var saved SavedHand
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM hands WHERE source_hand_id = ?`, ph.Hand.SourceHandID,
		).Scan(&existing)
		if err == nil {
			saved = SavedHand{HandID: existing, Skipped: true}
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		now := nowString()
		playerIDs := make(map[string]int64, len(ph.Players))
		for _, p := range ph.Players {
			id, err := upsertPlayerTx(ctx, tx, p.Username, now)
			if err != nil {
				return err
			}
			playerIDs[p.Username] = id
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO hands(
			session_id, source_hand_id, played_at, button_seat, board,
			total_pot, rake, uncalled_returned, is_valid, invalid_cause, is_favorite, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			sessionID,
			ph.Hand.SourceHandID,
			ph.Hand.Timestamp.UTC().Format(time.RFC3339Nano),
			ph.Hand.ButtonSeat,
			parser.FormatCards(ph.Hand.Board()),
			ph.Hand.TotalPot.String(),
			ph.Hand.Rake.String(),
			ph.Hand.UncalledBetReturned.String(),
			boolToInt(ph.Valid),
			nullIfEmpty(ph.InvalidCause),
			now,
		)
		if err != nil {
			return err
		}
		handID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, p := range ph.Players {
			if _, err := tx.ExecContext(ctx, `INSERT INTO hand_players(
				hand_id, player_id, seat, position, starting_stack, hole_cards,
				net_result, is_hero, went_to_showdown, vpip, pfr, three_bet
			) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				handID,
				playerIDs[p.Username],
				p.Seat,
				p.Position,
				p.StartingStack.String(),
				nullIfEmpty(parser.FormatCards(p.HoleCards)),
				p.NetResult.String(),
				boolToInt(p.IsHero),
				boolToInt(p.WentToShowdown),
				boolToInt(p.VPIP),
				boolToInt(p.PFR),
				boolToInt(p.ThreeBet),
			); err != nil {
				return err
			}
		}

		actionIDs := make(map[int]int64, len(ph.Actions))
		for _, a := range ph.Actions {
			res, err := tx.ExecContext(ctx, `INSERT INTO actions(
				hand_id, seq, player_id, street, action_type,
				amount, amount_to_call, pot_before, is_all_in, spr, mdf
			) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				handID,
				a.Sequence,
				playerIDs[a.Player],
				a.Street.String(),
				a.Type.String(),
				a.Amount.String(),
				a.AmountToCall.String(),
				a.PotBefore.String(),
				boolToInt(a.IsAllIn),
				decimalPtrString(a.SPR),
				decimalPtrString(a.MDF),
			)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			actionIDs[a.Sequence] = id
		}

		saved = SavedHand{HandID: handID, ActionIDs: actionIDs}
		return nil
	})
	if err != nil {
		return SavedHand{}, fmt.Errorf("save hand %s: %w", ph.Hand.SourceHandID, err)
	}
	return saved, nil
}

func upsertPlayerTx(ctx context.Context, tx *sql.Tx, username, now string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT INTO players(username, is_favorite, updated_at)
		VALUES(?, 0, ?)
		ON CONFLICT(username) DO UPDATE SET updated_at=excluded.updated_at`,
		username, now,
	); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM players WHERE username = ?`, username).Scan(&id)
	return id, err
}

func (r *SQLiteRepository) ListHands(ctx context.Context, sessionID int64) ([]HandRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, session_id, source_hand_id, played_at, button_seat, board,
		total_pot, rake, uncalled_returned, is_valid, COALESCE(invalid_cause, ''), is_favorite
	FROM hands WHERE session_id = ? ORDER BY played_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list hands: %w", err)
	}
	defer rows.Close()

	var out []HandRecord
	for rows.Next() {
		var (
			h                             HandRecord
			playedAt, pot, rake, uncalled string
			valid, favorite               int
		)
		if err := rows.Scan(
			&h.ID, &h.SessionID, &h.SourceHandID, &playedAt, &h.ButtonSeat, &h.Board,
			&pot, &rake, &uncalled, &valid, &h.InvalidCause, &favorite,
		); err != nil {
			return nil, err
		}
		if h.PlayedAt, err = time.Parse(time.RFC3339Nano, playedAt); err != nil {
			return nil, fmt.Errorf("hand %d played_at: %w", h.ID, err)
		}
		if h.TotalPot, err = decimal.NewFromString(pot); err != nil {
			return nil, fmt.Errorf("hand %d total_pot: %w", h.ID, err)
		}
		if h.Rake, err = decimal.NewFromString(rake); err != nil {
			return nil, fmt.Errorf("hand %d rake: %w", h.ID, err)
		}
		if h.UncalledReturned, err = decimal.NewFromString(uncalled); err != nil {
			return nil, fmt.Errorf("hand %d uncalled_returned: %w", h.ID, err)
		}
		h.Valid = valid != 0
		h.IsFavorite = favorite != 0
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetHandFavorite(ctx context.Context, handID int64, favorite bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE hands SET is_favorite = ?, updated_at = ? WHERE id = ?`,
		boolToInt(favorite), nowString(), handID,
	)
	return err
}

func (r *SQLiteRepository) SaveActionEV(ctx context.Context, ev *ActionEV) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO action_ev_cache(
		action_id, hero_id, equity, ev, ev_type, sample_count,
		contracted_range_size, fold_equity_pct, villain_preflop_action, computed_at
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(action_id) DO UPDATE SET
		hero_id=excluded.hero_id,
		equity=excluded.equity,
		ev=excluded.ev,
		ev_type=excluded.ev_type,
		sample_count=excluded.sample_count,
		contracted_range_size=excluded.contracted_range_size,
		fold_equity_pct=excluded.fold_equity_pct,
		villain_preflop_action=excluded.villain_preflop_action,
		computed_at=excluded.computed_at`,
		ev.ActionID,
		ev.HeroID,
		ev.Equity,
		ev.EV,
		ev.EVType,
		ev.SampleCount,
		ev.ContractedRangeSize,
		floatPtrValue(ev.FoldEquityPct),
		nullIfEmpty(ev.VillainPreflopAction),
		ev.ComputedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save action ev: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetActionEV(ctx context.Context, actionID int64) (*ActionEV, error) {
	var (
		ev         ActionEV
		foldEquity sql.NullFloat64
		villain    sql.NullString
		computedAt string
	)
	err := r.db.QueryRowContext(ctx, `SELECT
		action_id, hero_id, equity, ev, ev_type, sample_count,
		contracted_range_size, fold_equity_pct, villain_preflop_action, computed_at
	FROM action_ev_cache WHERE action_id = ?`, actionID).Scan(
		&ev.ActionID, &ev.HeroID, &ev.Equity, &ev.EV, &ev.EVType, &ev.SampleCount,
		&ev.ContractedRangeSize, &foldEquity, &villain, &computedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get action ev: %w", err)
	}
	if foldEquity.Valid {
		ev.FoldEquityPct = &foldEquity.Float64
	}
	ev.VillainPreflopAction = villain.String
	if ev.ComputedAt, err = time.Parse(time.RFC3339Nano, computedAt); err != nil {
		return nil, fmt.Errorf("action ev computed_at: %w", err)
	}
	return &ev, nil
}

func (r *SQLiteRepository) PlayerStats(ctx context.Context) ([]PlayerStatsRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		p.id, p.username, p.is_favorite,
		COUNT(*),
		SUM(hp.vpip), SUM(hp.pfr), SUM(hp.three_bet), SUM(hp.went_to_showdown)
	FROM hand_players hp
	JOIN players p ON p.id = hp.player_id
	JOIN hands h ON h.id = hp.hand_id
	WHERE h.is_valid = 1
	GROUP BY p.id
	ORDER BY COUNT(*) DESC, p.username`)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	defer rows.Close()

	var out []PlayerStatsRow
	for rows.Next() {
		var (
			row      PlayerStatsRow
			favorite int
		)
		if err := rows.Scan(
			&row.PlayerID, &row.Username, &favorite,
			&row.Hands, &row.VPIPCount, &row.PFRCount, &row.ThreeBetCount, &row.ShowdownCount,
		); err != nil {
			return nil, err
		}
		row.IsFavorite = favorite != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetPlayerID(ctx context.Context, username string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM players WHERE username = ?`, username).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get player id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) SetPlayerFavorite(ctx context.Context, username string, favorite bool) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO players(username, is_favorite, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			is_favorite=excluded.is_favorite,
			updated_at=excluded.updated_at`,
		username, boolToInt(favorite), nowString(),
	)
	return err
}

func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO settings(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func decimalPtrString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func floatPtrValue(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
