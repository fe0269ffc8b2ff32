package announce

import (
	"context"
	"fmt"
	"time"

	"github.com/bananium-fr/botguette/internal/lobby"
)

// Record is the durable announcement row, keyed by (RoomID, GuildID).
// A record is never deleted: once a room has been announced in a guild it
// stays announced, even after its pin is cleared.
type Record struct {
	RoomID      string
	GuildID     int64
	AnnouncedBy int64
	AnnouncedAt time.Time
	LobbyURL    string
	Async       bool

	// Pin tracking for sync announcements; zero means not pinned.
	MessageID int64
	ChannelID int64
}

// Ban marks a user as barred from announcing. Presence of a row is the ban;
// unban deletes the row and keeps no history.
type Ban struct {
	UserID   int64
	Reason   string
	BannedAt time.Time
}

// Store is the persistence contract shared by all implementations. Every
// operation must be safe under concurrent callers; TryCreate is the single
// point where the one-announcement-per-guild guarantee is enforced.
type Store interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
	BanUser(ctx context.Context, userID int64, reason string) error
	UnbanUser(ctx context.Context, userID int64) error

	IsAnnounced(ctx context.Context, roomID string, guildID int64) (bool, error)
	// TryCreate inserts the record only if the key is absent and reports
	// whether this caller won. A losing call mutates nothing.
	TryCreate(ctx context.Context, rec *Record) (bool, error)
	AnnouncementInfo(ctx context.Context, roomID string, guildID int64) (*Record, error)

	ListPinned(ctx context.Context) ([]*Record, error)
	SetPin(ctx context.Context, roomID string, guildID, messageID, channelID int64) error
	ClearPin(ctx context.Context, roomID string, guildID int64) error

	// UserCooldownRemaining reports how long until the user's most recent
	// announcement within window stops counting; zero when none.
	UserCooldownRemaining(ctx context.Context, userID int64, window time.Duration) (time.Duration, error)
}

// Role is a guild role resolved by name.
type Role struct {
	ID   int64
	Name string
}

func (r Role) Mention() string { return fmt.Sprintf("<@&%d>", r.ID) }

// Messenger is the slice of the chat platform the lifecycle and the
// reconciliation sweep need. The concrete client lives in internal/discord.
type Messenger interface {
	SendMessage(ctx context.Context, channelID int64, content string) (int64, error)
	EditMessage(ctx context.Context, channelID, messageID int64, content string) error
	// MessageContent returns ErrMessageNotFound when the message is gone.
	MessageContent(ctx context.Context, channelID, messageID int64) (string, error)
	PinMessage(ctx context.Context, channelID, messageID int64) error
	UnpinMessage(ctx context.Context, channelID, messageID int64) error
	CreateThread(ctx context.Context, channelID, messageID int64, name string) (int64, error)
	// RoleByName returns (nil, nil) when no role with that name exists.
	RoleByName(ctx context.Context, guildID int64, name string) (*Role, error)
}

// RoomGateway abstracts the lobby service. The boolean is false whenever the
// room's status cannot be determined, for any reason.
type RoomGateway interface {
	RoomInfo(ctx context.Context, rootURL, roomID string) (*lobby.Room, bool)
}

// Policy rejections, surfaced verbatim (via the message catalog) to the
// requester and never logged as errors.
var (
	ErrBanned            = errf("user is banned")
	ErrThreadChannel     = errf("command not available in threads")
	ErrChannelNotAllowed = errf("channel not allowed")
	ErrInvalidRoomURL    = errf("invalid room url")
	ErrLobbyNotAllowed   = errf("lobby not allowed")
	ErrAlreadyAnnounced  = errf("room already announced")
	ErrRoleMissing       = errf("role missing")
	ErrRoomUnavailable   = errf("room info unavailable")
	ErrRoomTooSoon       = errf("room closes too soon")
)

// ErrMessageNotFound distinguishes a deleted message from other chat
// platform failures; the sweep handles it as a normal repair path.
var ErrMessageNotFound = errf("message not found")

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
