package discord

import "strconv"

// Snowflake is a Discord id. The API transports them as strings; we keep
// them numeric everywhere else.
type Snowflake int64

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(s), 10))), nil
}

func (s *Snowflake) UnmarshalJSON(b []byte) error {
	raw, err := strconv.Unquote(string(b))
	if err != nil {
		// Tolerate bare numbers.
		raw = string(b)
	}
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*s = Snowflake(n)
	return nil
}

// Channel types that count as threads.
const (
	channelTypeAnnouncementThread = 10
	channelTypePublicThread       = 11
	channelTypePrivateThread      = 12
)

type Message struct {
	ID        Snowflake `json:"id"`
	ChannelID Snowflake `json:"channel_id"`
	Content   string    `json:"content"`
}

type RolePayload struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name"`
}

type User struct {
	ID       Snowflake `json:"id"`
	Username string    `json:"username"`
}

type Member struct {
	User *User `json:"user"`
}

type ChannelPayload struct {
	ID   Snowflake `json:"id"`
	Type int       `json:"type"`
}

func (c *ChannelPayload) IsThread() bool {
	if c == nil {
		return false
	}
	switch c.Type {
	case channelTypeAnnouncementThread, channelTypePublicThread, channelTypePrivateThread:
		return true
	default:
		return false
	}
}

// Interaction is a slash-command invocation delivered over the gateway.
type Interaction struct {
	ID        Snowflake        `json:"id"`
	Token     string           `json:"token"`
	Type      int              `json:"type"`
	GuildID   Snowflake        `json:"guild_id"`
	ChannelID Snowflake        `json:"channel_id"`
	Channel   *ChannelPayload  `json:"channel"`
	Member    *Member          `json:"member"`
	User      *User            `json:"user"`
	Data      *InteractionData `json:"data"`
}

const interactionTypeApplicationCommand = 2

// Invoker returns the triggering user regardless of guild/DM context.
func (i *Interaction) Invoker() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

type InteractionData struct {
	Name    string              `json:"name"`
	Options []InteractionOption `json:"options"`
}

type InteractionOption struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Value any    `json:"value"`
}

// StringOption returns the named string option, or "".
func (d *InteractionData) StringOption(name string) string {
	if d == nil {
		return ""
	}
	for _, opt := range d.Options {
		if opt.Name == name {
			if s, ok := opt.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// SnowflakeOption returns the named user/channel option as an id, or 0.
func (d *InteractionData) SnowflakeOption(name string) Snowflake {
	raw := d.StringOption(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return Snowflake(n)
}

// ApplicationCommand is the registration payload for a slash command.
type ApplicationCommand struct {
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	Options                  []CommandOption `json:"options,omitempty"`
	DefaultMemberPermissions *string         `json:"default_member_permissions,omitempty"`
}

type CommandOption struct {
	Type        int             `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Required    bool            `json:"required,omitempty"`
	Choices     []CommandChoice `json:"choices,omitempty"`
}

type CommandChoice struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Command option types used here.
const (
	OptionTypeString = 3
	OptionTypeUser   = 6
)
