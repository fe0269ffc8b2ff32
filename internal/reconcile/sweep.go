package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bananium-fr/botguette/internal/announce"
	"github.com/bananium-fr/botguette/internal/obslog"
)

// Action is what a single sweep item did to its record.
type Action string

const (
	// ActionNone means the announcement is still accurate.
	ActionNone Action = "none"
	// ActionCleared means the tracked message was gone; only the pin
	// fields were cleared.
	ActionCleared Action = "cleared"
	// ActionUnpinned means the room closed or vanished; the message was
	// unpinned and the pin fields cleared.
	ActionUnpinned Action = "unpinned"
	// ActionEdited means the displayed close time drifted and the message
	// was rewritten in place.
	ActionEdited Action = "edited"
)

// Sweeper re-validates every pinned announcement against the lobby on a
// fixed interval. Items are independent: one failure is logged and the sweep
// moves on.
type Sweeper struct {
	store     announce.Store
	gateway   announce.RoomGateway
	messenger announce.Messenger
	interval  time.Duration

	now func() time.Time
}

func NewSweeper(store announce.Store, gateway announce.RoomGateway, messenger announce.Messenger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:     store,
		gateway:   gateway,
		messenger: messenger,
		interval:  interval,
		now:       time.Now,
	}
}

// Start blocks, sweeping once immediately and then on every tick until ctx
// is done. In-flight items at shutdown complete on their own; every store
// mutation is single-key and idempotent.
func (s *Sweeper) Start(ctx context.Context) {
	s.Sweep(ctx)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over the pinned snapshot taken at its start.
func (s *Sweeper) Sweep(ctx context.Context) {
	obslog.L().Info("pin_sweep_start")
	records, err := s.store.ListPinned(ctx)
	if err != nil {
		obslog.L().Error("pin_sweep_list_failed", zap.Error(err))
		return
	}

	for _, rec := range records {
		action, err := s.repair(ctx, rec)
		if err != nil {
			obslog.L().Error("pin_repair_failed",
				zap.String("room_id", rec.RoomID),
				zap.Int64("guild_id", rec.GuildID),
				zap.Error(err),
			)
			continue
		}
		if action != ActionNone {
			obslog.L().Info("pin_repaired",
				zap.String("room_id", rec.RoomID),
				zap.Int64("guild_id", rec.GuildID),
				zap.String("action", string(action)),
			)
		}
	}
}

// repair brings one pinned announcement back in line with the lobby's view
// of the room.
func (s *Sweeper) repair(ctx context.Context, rec *announce.Record) (Action, error) {
	content, err := s.messenger.MessageContent(ctx, rec.ChannelID, rec.MessageID)
	if errors.Is(err, announce.ErrMessageNotFound) {
		// Someone deleted the announcement; nothing left to unpin.
		if err := s.store.ClearPin(ctx, rec.RoomID, rec.GuildID); err != nil {
			return ActionNone, fmt.Errorf("clear pin: %w", err)
		}
		return ActionCleared, nil
	}
	if err != nil {
		return ActionNone, fmt.Errorf("fetch message: %w", err)
	}

	room, ok := s.gateway.RoomInfo(ctx, rec.LobbyURL, rec.RoomID)
	if !ok || room.CloseDate.Before(s.now()) {
		if err := s.messenger.UnpinMessage(ctx, rec.ChannelID, rec.MessageID); err != nil {
			return ActionNone, fmt.Errorf("unpin: %w", err)
		}
		if err := s.store.ClearPin(ctx, rec.RoomID, rec.GuildID); err != nil {
			return ActionNone, fmt.Errorf("clear pin: %w", err)
		}
		return ActionUnpinned, nil
	}

	if strings.Contains(content, announce.CloseTimeToken(room.CloseDate)) {
		return ActionNone, nil
	}
	roleMention, userMention := announce.ExtractMentions(content)
	updated := announce.RenderAnnouncement(roleMention, userMention, room.Name, room.URL, room.CloseDate)
	if err := s.messenger.EditMessage(ctx, rec.ChannelID, rec.MessageID, updated); err != nil {
		return ActionNone, fmt.Errorf("edit message: %w", err)
	}
	return ActionEdited, nil
}
