package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hiddenpair/pokerhero/internal/parser"
)

type memoryHand struct {
	record  HandRecord
	players []*parser.HandPlayer
	actions map[int]int64 // sequence -> action ID
}

type memoryAction struct {
	handID int64
	action *parser.Action
}

// MemoryRepository is an in-memory Repository used when no database file is
// available, and by tests.
type MemoryRepository struct {
	mu sync.RWMutex

	nextID    int64
	sessions  map[int64]*SessionRecord
	hands     map[int64]*memoryHand
	bySource  map[string]int64 // source_hand_id -> hand ID
	actions   map[int64]memoryAction
	evCache   map[int64]ActionEV
	players   map[string]int64 // username -> player ID
	favorites map[string]bool
	settings  map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions:  make(map[int64]*SessionRecord),
		hands:     make(map[int64]*memoryHand),
		bySource:  make(map[string]int64),
		actions:   make(map[int64]memoryAction),
		evCache:   make(map[int64]ActionEV),
		players:   make(map[string]int64),
		favorites: make(map[string]bool),
		settings:  make(map[string]string),
	}
}

func (r *MemoryRepository) nextIDLocked() int64 {
	r.nextID++
	return r.nextID
}

func (r *MemoryRepository) CreateSession(_ context.Context, s *SessionRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.sessions {
		if existing.SourceFile == s.SourceFile {
			s.ID = id
			return id, nil
		}
	}
	copySession := *s
	copySession.ID = r.nextIDLocked()
	r.sessions[copySession.ID] = &copySession
	s.ID = copySession.ID
	return copySession.ID, nil
}

func (r *MemoryRepository) UpdateSessionFinancials(_ context.Context, sessionID int64, buyIn, cashOut decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.HeroBuyIn = buyIn
		s.HeroCashOut = cashOut
	}
	return nil
}

func (r *MemoryRepository) DeleteSession(_ context.Context, sessionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	for id, h := range r.hands {
		if h.record.SessionID != sessionID {
			continue
		}
		delete(r.bySource, h.record.SourceHandID)
		for _, actionID := range h.actions {
			delete(r.actions, actionID)
			delete(r.evCache, actionID)
		}
		delete(r.hands, id)
	}
	return nil
}

func (r *MemoryRepository) ListSessions(_ context.Context) ([]SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SessionRecord, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (r *MemoryRepository) SetSessionFavorite(_ context.Context, sessionID int64, favorite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.IsFavorite = favorite
	}
	return nil
}

func (r *MemoryRepository) SaveHand(_ context.Context, sessionID int64, ph *parser.ParsedHand) (SavedHand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.bySource[ph.Hand.SourceHandID]; ok {
		return SavedHand{HandID: id, Skipped: true}, nil
	}

	for _, p := range ph.Players {
		if _, ok := r.players[p.Username]; !ok {
			r.players[p.Username] = r.nextIDLocked()
		}
	}

	handID := r.nextIDLocked()
	actionIDs := make(map[int]int64, len(ph.Actions))
	for _, a := range ph.Actions {
		id := r.nextIDLocked()
		actionIDs[a.Sequence] = id
		r.actions[id] = memoryAction{handID: handID, action: a}
	}

	r.hands[handID] = &memoryHand{
		record: HandRecord{
			ID:           handID,
			SessionID:    sessionID,
			SourceHandID: ph.Hand.SourceHandID,
			PlayedAt:     ph.Hand.Timestamp,
			ButtonSeat:   ph.Hand.ButtonSeat,
			Board:            parser.FormatCards(ph.Hand.Board()),
			TotalPot:         ph.Hand.TotalPot,
			Rake:             ph.Hand.Rake,
			UncalledReturned: ph.Hand.UncalledBetReturned,
			Valid:            ph.Valid,
			InvalidCause:     ph.InvalidCause,
		},
		players: ph.Players,
		actions: actionIDs,
	}
	r.bySource[ph.Hand.SourceHandID] = handID
	return SavedHand{HandID: handID, ActionIDs: actionIDs}, nil
}

func (r *MemoryRepository) ListHands(_ context.Context, sessionID int64) ([]HandRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []HandRecord
	for _, h := range r.hands {
		if h.record.SessionID == sessionID {
			out = append(out, h.record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlayedAt.Before(out[j].PlayedAt)
	})
	return out, nil
}

func (r *MemoryRepository) SetHandFavorite(_ context.Context, handID int64, favorite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.hands[handID]; ok {
		h.record.IsFavorite = favorite
	}
	return nil
}

func (r *MemoryRepository) SaveActionEV(_ context.Context, ev *ActionEV) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copyEV := *ev
	if copyEV.ComputedAt.IsZero() {
		copyEV.ComputedAt = time.Now()
	}
	r.evCache[ev.ActionID] = copyEV
	return nil
}

func (r *MemoryRepository) GetActionEV(_ context.Context, actionID int64) (*ActionEV, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.evCache[actionID]
	if !ok {
		return nil, nil
	}
	copyEV := ev
	return &copyEV, nil
}

func (r *MemoryRepository) PlayerStats(_ context.Context) ([]PlayerStatsRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName := make(map[string]*PlayerStatsRow)
	for _, h := range r.hands {
		if !h.record.Valid {
			continue
		}
		for _, p := range h.players {
			row := byName[p.Username]
			if row == nil {
				row = &PlayerStatsRow{
					PlayerID:   r.players[p.Username],
					Username:   p.Username,
					IsFavorite: r.favorites[p.Username],
				}
				byName[p.Username] = row
			}
			row.Hands++
			if p.VPIP {
				row.VPIPCount++
			}
			if p.PFR {
				row.PFRCount++
			}
			if p.ThreeBet {
				row.ThreeBetCount++
			}
			if p.WentToShowdown {
				row.ShowdownCount++
			}
		}
	}

	out := make([]PlayerStatsRow, 0, len(byName))
	for _, row := range byName {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hands != out[j].Hands {
			return out[i].Hands > out[j].Hands
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (r *MemoryRepository) GetPlayerID(_ context.Context, username string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[username], nil
}

func (r *MemoryRepository) SetPlayerFavorite(_ context.Context, username string, favorite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[username]; !ok {
		r.players[username] = r.nextIDLocked()
	}
	r.favorites[username] = favorite
	return nil
}

func (r *MemoryRepository) GetSetting(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings[key], nil
}

func (r *MemoryRepository) SetSetting(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = value
	return nil
}
