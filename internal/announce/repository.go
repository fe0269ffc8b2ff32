package announce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// InitSchema creates the two tables when missing.
func (r *Repository) InitSchema(ctx context.Context) error {
	const banned = `
		CREATE TABLE IF NOT EXISTS banned_users (
			user_id   BIGINT PRIMARY KEY,
			reason    TEXT NOT NULL DEFAULT '',
			banned_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	const announced = `
		CREATE TABLE IF NOT EXISTS announced_rooms (
			room_id      UUID NOT NULL,
			guild_id     BIGINT NOT NULL,
			announced_by BIGINT NOT NULL,
			announced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			lobby_url    TEXT NOT NULL,
			is_async     BOOLEAN NOT NULL DEFAULT FALSE,
			message_id   BIGINT,
			channel_id   BIGINT,
			PRIMARY KEY (room_id, guild_id)
		)`
	if _, err := r.db.ExecContext(ctx, banned); err != nil {
		return fmt.Errorf("create banned_users: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, announced); err != nil {
		return fmt.Errorf("create announced_rooms: %w", err)
	}
	return nil
}

func (r *Repository) IsBanned(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM banned_users WHERE user_id = $1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select ban: %w", err)
	}
	return true, nil
}

func (r *Repository) BanUser(ctx context.Context, userID int64, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO banned_users (user_id, reason)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			reason    = EXCLUDED.reason,
			banned_at = now()`,
		userID, reason)
	if err != nil {
		return fmt.Errorf("upsert ban: %w", err)
	}
	return nil
}

func (r *Repository) UnbanUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM banned_users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	return nil
}

func (r *Repository) IsAnnounced(ctx context.Context, roomID string, guildID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM announced_rooms WHERE room_id = $1 AND guild_id = $2`,
		roomID, guildID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select announcement: %w", err)
	}
	return true, nil
}

// TryCreate relies on the composite primary key: a concurrent duplicate hits
// the conflict clause, gets no row back and loses cleanly.
func (r *Repository) TryCreate(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil {
		return false, fmt.Errorf("nil announcement record")
	}
	const query = `
		INSERT INTO announced_rooms (
			room_id, guild_id, announced_by, announced_at,
			lobby_url, is_async, message_id, channel_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id, guild_id) DO NOTHING
		RETURNING announced_at`

	announcedAt := rec.AnnouncedAt
	if announcedAt.IsZero() {
		announcedAt = time.Now().UTC()
	}
	var stored time.Time
	err := r.db.QueryRowContext(ctx, query,
		rec.RoomID, rec.GuildID, rec.AnnouncedBy, announcedAt,
		rec.LobbyURL, rec.Async,
		nullableID(rec.MessageID), nullableID(rec.ChannelID),
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert announcement: %w", err)
	}
	rec.AnnouncedAt = stored
	return true, nil
}

func (r *Repository) AnnouncementInfo(ctx context.Context, roomID string, guildID int64) (*Record, error) {
	const query = `
		SELECT room_id, guild_id, announced_by, announced_at,
		       lobby_url, is_async, message_id, channel_id
		FROM announced_rooms
		WHERE room_id = $1 AND guild_id = $2`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, roomID, guildID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select announcement info: %w", err)
	}
	return rec, nil
}

func (r *Repository) ListPinned(ctx context.Context) ([]*Record, error) {
	const query = `
		SELECT room_id, guild_id, announced_by, announced_at,
		       lobby_url, is_async, message_id, channel_id
		FROM announced_rooms
		WHERE message_id IS NOT NULL`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select pinned: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pinned: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) SetPin(ctx context.Context, roomID string, guildID, messageID, channelID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE announced_rooms
		SET message_id = $3, channel_id = $4
		WHERE room_id = $1 AND guild_id = $2`,
		roomID, guildID, messageID, channelID)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (r *Repository) ClearPin(ctx context.Context, roomID string, guildID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE announced_rooms
		SET message_id = NULL, channel_id = NULL
		WHERE room_id = $1 AND guild_id = $2`,
		roomID, guildID)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

func (r *Repository) UserCooldownRemaining(ctx context.Context, userID int64, window time.Duration) (time.Duration, error) {
	cutoff := time.Now().UTC().Add(-window)
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(announced_at) FROM announced_rooms
		WHERE announced_by = $1 AND announced_at > $2`,
		userID, cutoff).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("select cooldown: %w", err)
	}
	if !last.Valid {
		return 0, nil
	}
	remaining := time.Until(last.Time.Add(window))
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		messageID sql.NullInt64
		channelID sql.NullInt64
	)
	if err := row.Scan(
		&rec.RoomID, &rec.GuildID, &rec.AnnouncedBy, &rec.AnnouncedAt,
		&rec.LobbyURL, &rec.Async, &messageID, &channelID,
	); err != nil {
		return nil, err
	}
	rec.MessageID = messageID.Int64
	rec.ChannelID = channelID.Int64
	return &rec, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
