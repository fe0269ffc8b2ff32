package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bananium-fr/botguette/internal/announce"
	"github.com/bananium-fr/botguette/internal/discord"
	"github.com/bananium-fr/botguette/internal/lobby"
	"github.com/bananium-fr/botguette/internal/msgcat"
)

const (
	testRoomID  = "0755761d-bca9-46c2-8dd6-a6d03200ef66"
	testRoot    = "https://ap-lobby.bananium.fr"
	testGuild   = int64(1001)
	testChannel = int64(2002)
	testUser    = int64(3003)
)

type fakeResponder struct {
	replies    []string
	ephemerals []bool
	registered []discord.ApplicationCommand
}

func (f *fakeResponder) Respond(ctx context.Context, id discord.Snowflake, token, content string, ephemeral bool) error {
	f.replies = append(f.replies, content)
	f.ephemerals = append(f.ephemerals, ephemeral)
	return nil
}

func (f *fakeResponder) RegisterCommands(ctx context.Context, appID, guildID int64, cmds []discord.ApplicationCommand) error {
	f.registered = cmds
	return nil
}

type stubGateway struct{ room *lobby.Room }

func (g *stubGateway) RoomInfo(ctx context.Context, rootURL, roomID string) (*lobby.Room, bool) {
	if g.room == nil {
		return nil, false
	}
	return g.room, true
}

type nullMessenger struct {
	roles map[string]*announce.Role
	next  int64
}

func (m *nullMessenger) SendMessage(ctx context.Context, channelID int64, content string) (int64, error) {
	m.next++
	return m.next, nil
}
func (m *nullMessenger) EditMessage(ctx context.Context, channelID, messageID int64, content string) error {
	return nil
}
func (m *nullMessenger) MessageContent(ctx context.Context, channelID, messageID int64) (string, error) {
	return "", announce.ErrMessageNotFound
}
func (m *nullMessenger) PinMessage(ctx context.Context, channelID, messageID int64) error { return nil }
func (m *nullMessenger) UnpinMessage(ctx context.Context, channelID, messageID int64) error {
	return nil
}
func (m *nullMessenger) CreateThread(ctx context.Context, channelID, messageID int64, name string) (int64, error) {
	m.next++
	return m.next, nil
}
func (m *nullMessenger) RoleByName(ctx context.Context, guildID int64, name string) (*announce.Role, error) {
	return m.roles[name], nil
}

func newTestBot(t *testing.T, room *lobby.Room) (*Bot, announce.Store, *fakeResponder) {
	t.Helper()
	catalog, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	store := announce.NewMemoryStore()
	msgr := &nullMessenger{roles: map[string]*announce.Role{
		"archipelago-sync":  {ID: 41, Name: "archipelago-sync"},
		"archipelago-async": {ID: 42, Name: "archipelago-async"},
	}, next: 100}
	ctrl := announce.NewController(store, &stubGateway{room: room}, msgr, announce.Policy{
		AllowedLobbies:  []string{testRoot},
		AllowedChannels: []int64{testChannel},
		SyncRole:        "archipelago-sync",
		AsyncRole:       "archipelago-async",
	})
	responder := &fakeResponder{}
	return New(responder, ctrl, store, catalog), store, responder
}

func commandInteraction(name string, options ...discord.InteractionOption) *discord.Interaction {
	return &discord.Interaction{
		ID:        1,
		Token:     "tok",
		Type:      2,
		GuildID:   discord.Snowflake(testGuild),
		ChannelID: discord.Snowflake(testChannel),
		Channel:   &discord.ChannelPayload{ID: discord.Snowflake(testChannel), Type: 0},
		Member:    &discord.Member{User: &discord.User{ID: discord.Snowflake(testUser)}},
		Data:      &discord.InteractionData{Name: name, Options: options},
	}
}

func TestHandleArchipelagoSuccess(t *testing.T) {
	room := &lobby.Room{
		ID:        testRoomID,
		Name:      "Friday Night",
		CloseDate: time.Now().Add(2 * time.Hour),
		URL:       testRoot + "/room/" + testRoomID,
	}
	b, store, responder := newTestBot(t, room)

	in := commandInteraction("archipelago",
		discord.InteractionOption{Name: "room_url", Type: discord.OptionTypeString, Value: testRoot + "/room/" + testRoomID},
		discord.InteractionOption{Name: "game_type", Type: discord.OptionTypeString, Value: "sync"},
	)
	b.HandleInteraction(context.Background(), in)

	if len(responder.replies) != 1 || !responder.ephemerals[0] {
		t.Fatalf("expected one ephemeral reply, got %v", responder.replies)
	}
	if ok, _ := store.IsAnnounced(context.Background(), testRoomID, testGuild); !ok {
		t.Fatal("room not announced")
	}
}

func TestHandleArchipelagoRejectionTexts(t *testing.T) {
	b, _, responder := newTestBot(t, nil) // gateway always absent

	in := commandInteraction("archipelago",
		discord.InteractionOption{Name: "room_url", Type: discord.OptionTypeString, Value: testRoot + "/room/nope"},
		discord.InteractionOption{Name: "game_type", Type: discord.OptionTypeString, Value: "sync"},
	)
	b.HandleInteraction(context.Background(), in)

	if len(responder.replies) != 1 {
		t.Fatalf("expected a reply, got %v", responder.replies)
	}
	if !strings.Contains(responder.replies[0], "Invalid room URL") {
		t.Fatalf("wrong reply: %q", responder.replies[0])
	}
	if !strings.Contains(responder.replies[0], "malformed room id") {
		t.Fatalf("parser reason missing: %q", responder.replies[0])
	}
}

func TestHandleArchipelagoRoomUnavailable(t *testing.T) {
	b, _, responder := newTestBot(t, nil)

	in := commandInteraction("archipelago",
		discord.InteractionOption{Name: "room_url", Type: discord.OptionTypeString, Value: testRoot + "/room/" + testRoomID},
		discord.InteractionOption{Name: "game_type", Type: discord.OptionTypeString, Value: "async"},
	)
	b.HandleInteraction(context.Background(), in)

	if len(responder.replies) != 1 || !strings.Contains(responder.replies[0], "Couldn't fetch room info") {
		t.Fatalf("wrong reply: %v", responder.replies)
	}
}

func TestHandleBanUnban(t *testing.T) {
	b, store, responder := newTestBot(t, nil)
	target := "4004"

	b.HandleInteraction(context.Background(), commandInteraction("botguette-ban",
		discord.InteractionOption{Name: "user", Type: discord.OptionTypeUser, Value: target},
		discord.InteractionOption{Name: "reason", Type: discord.OptionTypeString, Value: "spam"},
	))
	if banned, _ := store.IsBanned(context.Background(), 4004); !banned {
		t.Fatal("expected ban")
	}
	if !strings.Contains(responder.replies[0], "<@4004>") || !strings.Contains(responder.replies[0], "spam") {
		t.Fatalf("ban reply: %q", responder.replies[0])
	}

	b.HandleInteraction(context.Background(), commandInteraction("botguette-unban",
		discord.InteractionOption{Name: "user", Type: discord.OptionTypeUser, Value: target},
	))
	if banned, _ := store.IsBanned(context.Background(), 4004); banned {
		t.Fatal("expected unban")
	}
	if !strings.Contains(responder.replies[1], "Unbanned") {
		t.Fatalf("unban reply: %q", responder.replies[1])
	}
}

func TestHandleBanWithoutReason(t *testing.T) {
	b, _, responder := newTestBot(t, nil)

	b.HandleInteraction(context.Background(), commandInteraction("botguette-ban",
		discord.InteractionOption{Name: "user", Type: discord.OptionTypeUser, Value: "4004"},
	))
	if !strings.Contains(responder.replies[0], "No reason") {
		t.Fatalf("ban reply: %q", responder.replies[0])
	}
}

func TestIgnoresUnknownAndNonCommand(t *testing.T) {
	b, _, responder := newTestBot(t, nil)

	b.HandleInteraction(context.Background(), nil)
	b.HandleInteraction(context.Background(), &discord.Interaction{Type: 2})
	b.HandleInteraction(context.Background(), commandInteraction("unrelated"))
	ping := commandInteraction("archipelago")
	ping.Type = 1
	b.HandleInteraction(context.Background(), ping)

	if len(responder.replies) != 0 {
		t.Fatalf("expected no replies, got %v", responder.replies)
	}
}

func TestCommandsShape(t *testing.T) {
	cmds := Commands()
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}
	if cmds[0].Name != "archipelago" || len(cmds[0].Options) != 2 {
		t.Fatalf("archipelago command: %+v", cmds[0])
	}
	if cmds[1].DefaultMemberPermissions == nil || cmds[2].DefaultMemberPermissions == nil {
		t.Fatal("ban commands must carry a permission gate")
	}
}
