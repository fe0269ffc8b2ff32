package announce

import (
	"context"
	"sync"
	"time"
)

// memstore is a development-only in-memory Store used when neither a
// database nor Redis is configured, and by tests.
type memstore struct {
	mu sync.Mutex

	records map[recordKey]*Record
	bans    map[int64]*Ban
	lastBy  map[int64]time.Time // announced_by -> most recent announced_at
}

type recordKey struct {
	roomID  string
	guildID int64
}

func NewMemoryStore() Store {
	return &memstore{
		records: make(map[recordKey]*Record),
		bans:    make(map[int64]*Ban),
		lastBy:  make(map[int64]time.Time),
	}
}

func (m *memstore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bans[userID]
	return ok, nil
}

func (m *memstore) BanUser(ctx context.Context, userID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[userID] = &Ban{UserID: userID, Reason: reason, BannedAt: time.Now().UTC()}
	return nil
}

func (m *memstore) UnbanUser(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bans, userID)
	return nil
}

func (m *memstore) IsAnnounced(ctx context.Context, roomID string, guildID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[recordKey{roomID, guildID}]
	return ok, nil
}

func (m *memstore) TryCreate(ctx context.Context, rec *Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey{rec.RoomID, rec.GuildID}
	if _, exists := m.records[key]; exists {
		return false, nil
	}
	cp := *rec
	if cp.AnnouncedAt.IsZero() {
		cp.AnnouncedAt = time.Now().UTC()
	}
	m.records[key] = &cp
	if cp.AnnouncedAt.After(m.lastBy[cp.AnnouncedBy]) {
		m.lastBy[cp.AnnouncedBy] = cp.AnnouncedAt
	}
	return true, nil
}

func (m *memstore) AnnouncementInfo(ctx context.Context, roomID string, guildID int64) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordKey{roomID, guildID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memstore) ListPinned(ctx context.Context) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, rec := range m.records {
		if rec.MessageID != 0 {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memstore) SetPin(ctx context.Context, roomID string, guildID, messageID, channelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[recordKey{roomID, guildID}]; ok {
		rec.MessageID = messageID
		rec.ChannelID = channelID
	}
	return nil
}

func (m *memstore) ClearPin(ctx context.Context, roomID string, guildID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[recordKey{roomID, guildID}]; ok {
		rec.MessageID = 0
		rec.ChannelID = 0
	}
	return nil
}

func (m *memstore) UserCooldownRemaining(ctx context.Context, userID int64, window time.Duration) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastBy[userID]
	if !ok {
		return 0, nil
	}
	remaining := time.Until(last.Add(window))
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}
