package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bananium-fr/botguette/internal/obslog"
	"github.com/bananium-fr/botguette/internal/roomref"
)

// MinLeadTime is how far in the future a room must close to be worth
// announcing.
const MinLeadTime = time.Hour

// Policy carries the per-deployment announcement policy.
type Policy struct {
	AllowedLobbies  []string // root URLs, no trailing slash
	AllowedChannels []int64
	SyncRole        string
	AsyncRole       string
}

// Request is one user-triggered announcement attempt.
type Request struct {
	GuildID     int64
	ChannelID   int64
	InThread    bool
	RequesterID int64
	RoomURL     string
	Async       bool
}

// Result describes a successful announcement.
type Result struct {
	Record    *Record
	Content   string
	MessageID int64
	ThreadID  int64
}

// Controller runs the announcement lifecycle: policy gates, lobby fetch,
// atomic record creation, then chat side effects. It holds no mutable state;
// all persistence goes through the Store.
type Controller struct {
	store     Store
	gateway   RoomGateway
	messenger Messenger
	policy    Policy

	lobbies  map[string]struct{}
	channels map[int64]struct{}

	now func() time.Time
}

func NewController(store Store, gateway RoomGateway, messenger Messenger, policy Policy) *Controller {
	c := &Controller{
		store:     store,
		gateway:   gateway,
		messenger: messenger,
		policy:    policy,
		lobbies:   make(map[string]struct{}, len(policy.AllowedLobbies)),
		channels:  make(map[int64]struct{}, len(policy.AllowedChannels)),
		now:       time.Now,
	}
	for _, l := range policy.AllowedLobbies {
		l = strings.TrimRight(strings.TrimSpace(l), "/")
		if l != "" {
			c.lobbies[l] = struct{}{}
		}
	}
	for _, ch := range policy.AllowedChannels {
		c.channels[ch] = struct{}{}
	}
	return c
}

// Announce validates req against policy, creates the announcement record and
// posts, pins or threads the announcement message. Each gate fails fast with
// its own sentinel error; anything after the record insert that fails is
// logged and surfaced as a plain error, leaving the record as a tombstone.
func (c *Controller) Announce(ctx context.Context, req Request) (*Result, error) {
	banned, err := c.store.IsBanned(ctx, req.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("ban lookup: %w", err)
	}
	if banned {
		obslog.L().Warn("announce_banned_user", zap.Int64("user_id", req.RequesterID))
		return nil, ErrBanned
	}

	if req.InThread {
		return nil, ErrThreadChannel
	}
	if _, ok := c.channels[req.ChannelID]; !ok {
		return nil, ErrChannelNotAllowed
	}

	ref, err := roomref.Parse(req.RoomURL)
	if err != nil {
		var pe *roomref.ParseError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRoomURL, pe.Reason)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoomURL, err)
	}

	if _, ok := c.lobbies[ref.RootURL]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotAllowed, ref.RootURL)
	}

	announced, err := c.store.IsAnnounced(ctx, ref.RoomID, req.GuildID)
	if err != nil {
		return nil, fmt.Errorf("announcement lookup: %w", err)
	}
	if announced {
		obslog.L().Info("announce_duplicate",
			zap.String("room_id", ref.RoomID),
			zap.Int64("guild_id", req.GuildID),
			zap.Int64("user_id", req.RequesterID),
		)
		return nil, ErrAlreadyAnnounced
	}

	roleName := c.policy.SyncRole
	if req.Async {
		roleName = c.policy.AsyncRole
	}
	role, err := c.messenger.RoleByName(ctx, req.GuildID, roleName)
	if err != nil {
		return nil, fmt.Errorf("role lookup: %w", err)
	}
	if role == nil {
		return nil, fmt.Errorf("%w: %s", ErrRoleMissing, roleName)
	}

	room, ok := c.gateway.RoomInfo(ctx, ref.RootURL, ref.RoomID)
	if !ok {
		return nil, ErrRoomUnavailable
	}
	if room.CloseDate.Before(c.now().Add(MinLeadTime)) {
		return nil, fmt.Errorf("%w: %s", ErrRoomTooSoon, CloseTimeToken(room.CloseDate))
	}

	rec := &Record{
		RoomID:      ref.RoomID,
		GuildID:     req.GuildID,
		AnnouncedBy: req.RequesterID,
		AnnouncedAt: c.now().UTC(),
		LobbyURL:    ref.RootURL,
		Async:       req.Async,
	}
	created, err := c.store.TryCreate(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create announcement: %w", err)
	}
	if !created {
		// Lost the race to a concurrent identical request.
		return nil, ErrAlreadyAnnounced
	}

	content := RenderAnnouncement(role.Mention(), UserMention(req.RequesterID), room.Name, room.URL, room.CloseDate)
	res := &Result{Record: rec, Content: content}

	msgID, err := c.messenger.SendMessage(ctx, req.ChannelID, content)
	if err != nil {
		return nil, c.postFailure(rec, "send announcement", err)
	}
	res.MessageID = msgID

	if req.Async {
		threadID, err := c.messenger.CreateThread(ctx, req.ChannelID, msgID, TruncateRunes(room.Name, 100))
		if err != nil {
			return nil, c.postFailure(rec, "create thread", err)
		}
		res.ThreadID = threadID
		summary := fmt.Sprintf("**%s**\n%s", SanitizeRoomName(room.Name), room.URL)
		threadMsgID, err := c.messenger.SendMessage(ctx, threadID, summary)
		if err != nil {
			return nil, c.postFailure(rec, "post thread summary", err)
		}
		if err := c.messenger.PinMessage(ctx, threadID, threadMsgID); err != nil {
			return nil, c.postFailure(rec, "pin thread summary", err)
		}
		// Thread pins are not reconciled, so the record keeps no message id.
	} else {
		if err := c.messenger.PinMessage(ctx, req.ChannelID, msgID); err != nil {
			return nil, c.postFailure(rec, "pin announcement", err)
		}
		if err := c.store.SetPin(ctx, rec.RoomID, rec.GuildID, msgID, req.ChannelID); err != nil {
			return nil, c.postFailure(rec, "track pin", err)
		}
		rec.MessageID = msgID
		rec.ChannelID = req.ChannelID
	}

	obslog.L().Info("room_announced",
		zap.String("room_id", rec.RoomID),
		zap.Int64("guild_id", rec.GuildID),
		zap.Int64("user_id", rec.AnnouncedBy),
		zap.Bool("async", rec.Async),
	)
	return res, nil
}

// postFailure logs a side-effect failure that happened after the record was
// created. The record stays behind as a tombstone; there is no retry.
func (c *Controller) postFailure(rec *Record, stage string, err error) error {
	obslog.L().Error("announce_side_effect_failed",
		zap.String("stage", stage),
		zap.String("room_id", rec.RoomID),
		zap.Int64("guild_id", rec.GuildID),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w", stage, err)
}
