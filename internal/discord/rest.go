package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/bananium-fr/botguette/internal/announce"
)

const defaultAPIBase = "https://discord.com/api/v10"

// Client is a minimal Discord REST client covering what the announcement
// lifecycle needs. It implements announce.Messenger.
type Client struct {
	baseURL string
	token   string
	http    *fasthttp.Client

	defaultTimeout time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:        defaultAPIBase,
		token:          strings.TrimSpace(token),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SendMessage(ctx context.Context, channelID int64, content string) (int64, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%d/messages", channelID)
	if err := c.doJSON(ctx, fasthttp.MethodPost, path, map[string]string{"content": content}, &msg); err != nil {
		return 0, err
	}
	return int64(msg.ID), nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID int64, content string) error {
	path := fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID)
	return c.doJSON(ctx, fasthttp.MethodPatch, path, map[string]string{"content": content}, nil)
}

func (c *Client) MessageContent(ctx context.Context, channelID, messageID int64) (string, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &msg); err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (c *Client) PinMessage(ctx context.Context, channelID, messageID int64) error {
	path := fmt.Sprintf("/channels/%d/pins/%d", channelID, messageID)
	return c.doJSON(ctx, fasthttp.MethodPut, path, nil, nil)
}

func (c *Client) UnpinMessage(ctx context.Context, channelID, messageID int64) error {
	path := fmt.Sprintf("/channels/%d/pins/%d", channelID, messageID)
	return c.doJSON(ctx, fasthttp.MethodDelete, path, nil, nil)
}

func (c *Client) CreateThread(ctx context.Context, channelID, messageID int64, name string) (int64, error) {
	var thread ChannelPayload
	path := fmt.Sprintf("/channels/%d/messages/%d/threads", channelID, messageID)
	if err := c.doJSON(ctx, fasthttp.MethodPost, path, map[string]string{"name": name}, &thread); err != nil {
		return 0, err
	}
	return int64(thread.ID), nil
}

func (c *Client) RoleByName(ctx context.Context, guildID int64, name string) (*announce.Role, error) {
	var roles []RolePayload
	path := fmt.Sprintf("/guilds/%d/roles", guildID)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &roles); err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Name == name {
			return &announce.Role{ID: int64(r.ID), Name: r.Name}, nil
		}
	}
	return nil, nil
}

// RegisterCommands overwrites the application's command set, globally or for
// one guild when guildID is non-zero (guild registration propagates
// immediately, which is what a dev deployment wants).
func (c *Client) RegisterCommands(ctx context.Context, appID, guildID int64, cmds []ApplicationCommand) error {
	path := fmt.Sprintf("/applications/%d/commands", appID)
	if guildID != 0 {
		path = fmt.Sprintf("/applications/%d/guilds/%d/commands", appID, guildID)
	}
	return c.doJSON(ctx, fasthttp.MethodPut, path, cmds, nil)
}

const (
	callbackChannelMessage = 4
	flagEphemeral          = 64
)

// Respond answers an interaction with a message; ephemeral responses are
// visible only to the invoker.
func (c *Client) Respond(ctx context.Context, interactionID Snowflake, token, content string, ephemeral bool) error {
	data := map[string]any{"content": content}
	if ephemeral {
		data["flags"] = flagEphemeral
	}
	body := map[string]any{"type": callbackChannelMessage, "data": data}
	path := fmt.Sprintf("/interactions/%d/%s/callback", interactionID, token)
	return c.doJSON(ctx, fasthttp.MethodPost, path, body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if c.token != "" {
		req.Header.Set("Authorization", "Bot "+c.token)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status == fasthttp.StatusNotFound {
		return announce.ErrMessageNotFound
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("discord api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
