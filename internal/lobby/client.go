package lobby

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/bananium-fr/botguette/internal/obslog"
)

// Room is the lobby's live view of a game room. It is valid only for the
// duration of one fetch and is never persisted.
type Room struct {
	ID          string
	Name        string
	CloseDate   time.Time
	Description string
	URL         string
}

type roomPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CloseDate   string `json:"close_date"`
	Description string `json:"description"`
}

// Client fetches room metadata from an Archipelago lobby service.
type Client struct {
	apiKey string
	http   *fasthttp.Client

	defaultTimeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:         strings.TrimSpace(apiKey),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RoomInfo fetches the current state of a room. The second return is false
// whenever the room cannot be determined right now, regardless of cause:
// non-2xx status, transport failure and malformed payload all look the same
// to callers. The underlying cause is logged here and nowhere else.
func (c *Client) RoomInfo(ctx context.Context, rootURL, roomID string) (*Room, bool) {
	rootURL = strings.TrimRight(strings.TrimSpace(rootURL), "/")
	apiURL := rootURL + "/api/room/" + roomID

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(apiURL)
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		obslog.L().Warn("lobby_fetch_failed", zap.String("room_id", roomID), zap.Error(err))
		return nil, false
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		obslog.L().Warn("lobby_fetch_status",
			zap.String("room_id", roomID),
			zap.Int("status", status),
			zap.String("body", truncate(string(resp.Body()), 512)),
		)
		return nil, false
	}

	var payload roomPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		obslog.L().Warn("lobby_fetch_decode", zap.String("room_id", roomID), zap.Error(err))
		return nil, false
	}
	closeDate, err := parseCloseDate(payload.CloseDate)
	if err != nil {
		obslog.L().Warn("lobby_fetch_close_date", zap.String("room_id", roomID), zap.Error(err))
		return nil, false
	}

	return &Room{
		ID:          payload.ID,
		Name:        payload.Name,
		CloseDate:   closeDate,
		Description: payload.Description,
		URL:         rootURL + "/room/" + roomID,
	}, true
}

// parseCloseDate accepts RFC3339 or a bare ISO timestamp, which the lobby
// emits without a zone and means UTC.
func parseCloseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
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
