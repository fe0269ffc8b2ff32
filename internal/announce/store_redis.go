package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps announcement state in Redis. Records are JSON blobs under
// a per-key string, created with SETNX so the first writer wins; pinned
// records are indexed in a set so the sweep never scans the keyspace.
type RedisStore struct{ rdb *redis.Client }

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) keyRecord(roomID string, guildID int64) string {
	return fmt.Sprintf("ann:%d:%s", guildID, strings.TrimSpace(roomID))
}
func (s *RedisStore) keyPinned() string          { return "ann:pinned" }
func (s *RedisStore) keyBan(userID int64) string { return fmt.Sprintf("ban:%d", userID) }
func (s *RedisStore) keyUserLast(userID int64) string {
	return fmt.Sprintf("ann:user:%d:last", userID)
}

func pinnedMember(roomID string, guildID int64) string {
	return fmt.Sprintf("%d|%s", guildID, roomID)
}

func splitPinnedMember(m string) (roomID string, guildID int64, ok bool) {
	i := strings.IndexByte(m, '|')
	if i < 0 {
		return "", 0, false
	}
	g, err := strconv.ParseInt(m[:i], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return m[i+1:], g, true
}

type redisRecord struct {
	RoomID      string    `json:"room_id"`
	GuildID     int64     `json:"guild_id"`
	AnnouncedBy int64     `json:"announced_by"`
	AnnouncedAt time.Time `json:"announced_at"`
	LobbyURL    string    `json:"lobby_url"`
	IsAsync     bool      `json:"is_async"`
	MessageID   int64     `json:"message_id,omitempty"`
	ChannelID   int64     `json:"channel_id,omitempty"`
}

type redisBan struct {
	Reason   string    `json:"reason"`
	BannedAt time.Time `json:"banned_at"`
}

func (s *RedisStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.keyBan(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) BanUser(ctx context.Context, userID int64, reason string) error {
	raw, err := json.Marshal(redisBan{Reason: reason, BannedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.keyBan(userID), raw, 0).Err()
}

func (s *RedisStore) UnbanUser(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, s.keyBan(userID)).Err()
}

func (s *RedisStore) IsAnnounced(ctx context.Context, roomID string, guildID int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.keyRecord(roomID, guildID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) TryCreate(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil {
		return false, fmt.Errorf("nil announcement record")
	}
	if rec.AnnouncedAt.IsZero() {
		rec.AnnouncedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(toRedisRecord(rec))
	if err != nil {
		return false, err
	}
	created, err := s.rdb.SetNX(ctx, s.keyRecord(rec.RoomID, rec.GuildID), raw, 0).Result()
	if err != nil || !created {
		return false, err
	}
	if rec.MessageID != 0 {
		if err := s.rdb.SAdd(ctx, s.keyPinned(), pinnedMember(rec.RoomID, rec.GuildID)).Err(); err != nil {
			return true, err
		}
	}
	// Cooldown index; records only ever gain newer timestamps.
	if err := s.rdb.Set(ctx, s.keyUserLast(rec.AnnouncedBy), rec.AnnouncedAt.Format(time.RFC3339Nano), 0).Err(); err != nil {
		return true, err
	}
	return true, nil
}

func (s *RedisStore) AnnouncementInfo(ctx context.Context, roomID string, guildID int64) (*Record, error) {
	return s.load(ctx, roomID, guildID)
}

func (s *RedisStore) ListPinned(ctx context.Context) ([]*Record, error) {
	members, err := s.rdb.SMembers(ctx, s.keyPinned()).Result()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, m := range members {
		roomID, guildID, ok := splitPinnedMember(m)
		if !ok {
			continue
		}
		rec, err := s.load(ctx, roomID, guildID)
		if err != nil || rec == nil || rec.MessageID == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) SetPin(ctx context.Context, roomID string, guildID, messageID, channelID int64) error {
	rec, err := s.load(ctx, roomID, guildID)
	if err != nil || rec == nil {
		return err
	}
	rec.MessageID = messageID
	rec.ChannelID = channelID
	if err := s.save(ctx, rec); err != nil {
		return err
	}
	return s.rdb.SAdd(ctx, s.keyPinned(), pinnedMember(roomID, guildID)).Err()
}

func (s *RedisStore) ClearPin(ctx context.Context, roomID string, guildID int64) error {
	rec, err := s.load(ctx, roomID, guildID)
	if err != nil || rec == nil {
		return err
	}
	rec.MessageID = 0
	rec.ChannelID = 0
	if err := s.save(ctx, rec); err != nil {
		return err
	}
	return s.rdb.SRem(ctx, s.keyPinned(), pinnedMember(roomID, guildID)).Err()
}

func (s *RedisStore) UserCooldownRemaining(ctx context.Context, userID int64, window time.Duration) (time.Duration, error) {
	raw, err := s.rdb.Get(ctx, s.keyUserLast(userID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	last, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 0, fmt.Errorf("parse cooldown timestamp: %w", err)
	}
	remaining := time.Until(last.Add(window))
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (s *RedisStore) load(ctx context.Context, roomID string, guildID int64) (*Record, error) {
	raw, err := s.rdb.Get(ctx, s.keyRecord(roomID, guildID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rr redisRecord
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, err
	}
	return fromRedisRecord(&rr), nil
}

func (s *RedisStore) save(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(toRedisRecord(rec))
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.keyRecord(rec.RoomID, rec.GuildID), raw, 0).Err()
}

func toRedisRecord(rec *Record) *redisRecord {
	return &redisRecord{
		RoomID:      rec.RoomID,
		GuildID:     rec.GuildID,
		AnnouncedBy: rec.AnnouncedBy,
		AnnouncedAt: rec.AnnouncedAt,
		LobbyURL:    rec.LobbyURL,
		IsAsync:     rec.Async,
		MessageID:   rec.MessageID,
		ChannelID:   rec.ChannelID,
	}
}

func fromRedisRecord(rr *redisRecord) *Record {
	return &Record{
		RoomID:      rr.RoomID,
		GuildID:     rr.GuildID,
		AnnouncedBy: rr.AnnouncedBy,
		AnnouncedAt: rr.AnnouncedAt,
		LobbyURL:    rr.LobbyURL,
		Async:       rr.IsAsync,
		MessageID:   rr.MessageID,
		ChannelID:   rr.ChannelID,
	}
}
