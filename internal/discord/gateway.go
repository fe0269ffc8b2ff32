package discord

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/bananium-fr/botguette/internal/obslog"
)

const defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway op codes used here.
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatACK = 11
)

// intentGuilds is the only intent the bot needs; interactions arrive
// regardless of intents.
const intentGuilds = 1 << 0

type GatewayState string

const (
	GatewayDisconnected GatewayState = "disconnected"
	GatewayConnecting   GatewayState = "connecting"
	GatewayConnected    GatewayState = "connected"
	GatewayReconnecting GatewayState = "reconnecting"
	GatewayFailed       GatewayState = "failed"
)

type InteractionCallback func(*Interaction)

type ReadyCallback func(applicationID Snowflake)

type payload struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  *int64          `json:"s"`
	Type string          `json:"t"`
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type readyData struct {
	SessionID   string `json:"session_id"`
	Application struct {
		ID Snowflake `json:"id"`
	} `json:"application"`
	User User `json:"user"`
}

// Gateway maintains the Discord gateway websocket: identify on connect,
// heartbeat at the advertised interval, dispatch interaction events, and
// reconnect with a fresh identify after a bounded number of attempts.
type Gateway struct {
	url   string
	token string

	conn   *websocket.Conn
	state  GatewayState
	stateM sync.RWMutex

	onInteraction InteractionCallback
	onReady       ReadyCallback
	cbM           sync.RWMutex

	seq  int64
	seqM sync.Mutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewGateway(token string, maxReconnectAttempts int, reconnectDelay time.Duration) *Gateway {
	return &Gateway{
		url:                  defaultGatewayURL,
		token:                token,
		state:                GatewayDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		stopCh:               make(chan struct{}),
	}
}

// SetURL overrides the gateway endpoint; used by tests.
func (g *Gateway) SetURL(u string) { g.url = u }

func (g *Gateway) OnInteraction(cb InteractionCallback) {
	g.cbM.Lock()
	g.onInteraction = cb
	g.cbM.Unlock()
}

func (g *Gateway) OnReady(cb ReadyCallback) {
	g.cbM.Lock()
	g.onReady = cb
	g.cbM.Unlock()
}

func (g *Gateway) State() GatewayState {
	g.stateM.RLock()
	defer g.stateM.RUnlock()
	return g.state
}

func (g *Gateway) Connect(ctx context.Context) error {
	g.stateM.Lock()
	if g.state == GatewayConnected || g.state == GatewayConnecting {
		g.stateM.Unlock()
		return nil
	}
	g.stateM.Unlock()

	g.rootCtx, g.rootCancel = context.WithCancel(context.Background())
	g.setState(GatewayConnecting)

	if err := g.dial(ctx); err != nil {
		g.setState(GatewayFailed)
		g.scheduleReconnect()
		return err
	}
	return nil
}

// dial opens the socket, waits for Hello, identifies and starts the listen
// and heartbeat loops.
func (g *Gateway) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, g.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 22) // gateway READY payloads can be large

	var hello payload
	helloCtx, hcancel := context.WithTimeout(g.rootCtx, 10*time.Second)
	err = wsjson.Read(helloCtx, conn, &hello)
	hcancel()
	if err != nil || hello.Op != opHello {
		_ = conn.Close(websocket.StatusProtocolError, "expected hello")
		if err == nil {
			err = errProtocol("unexpected op before hello")
		}
		return err
	}
	var hd helloData
	if err := json.Unmarshal(hello.Data, &hd); err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "bad hello")
		return err
	}

	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": intentGuilds,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "botguette",
				"device":  "botguette",
			},
		},
	}
	idCtx, icancel := context.WithTimeout(g.rootCtx, 10*time.Second)
	err = wsjson.Write(idCtx, conn, identify)
	icancel()
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "identify failed")
		return err
	}

	g.conn = conn
	g.setState(GatewayConnected)

	interval := time.Duration(hd.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = 41 * time.Second
	}

	g.wg.Add(2)
	go g.listen()
	go g.heartbeatLoop(interval)
	return nil
}

func (g *Gateway) listen() {
	defer g.wg.Done()
	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		if g.conn == nil {
			return
		}
		var p payload
		if err := wsjson.Read(g.rootCtx, g.conn, &p); err != nil {
			if g.isStopping() {
				return
			}
			g.setState(GatewayDisconnected)
			_ = g.closeConn(websocket.StatusGoingAway, "reconnect")
			g.scheduleReconnect()
			return
		}
		if p.Seq != nil {
			g.seqM.Lock()
			g.seq = *p.Seq
			g.seqM.Unlock()
		}

		switch p.Op {
		case opDispatch:
			g.dispatch(&p)
		case opHeartbeat:
			// Server asked for an immediate beat.
			g.sendHeartbeat()
		case opHeartbeatACK:
			// nothing to track; a dead socket surfaces as a read error
		}
	}
}

func (g *Gateway) dispatch(p *payload) {
	switch p.Type {
	case "READY":
		var rd readyData
		if err := json.Unmarshal(p.Data, &rd); err != nil {
			obslog.L().Warn("gateway_ready_decode", zap.Error(err))
			return
		}
		obslog.L().Info("gateway_ready",
			zap.String("user", rd.User.Username),
			zap.Int64("application_id", int64(rd.Application.ID)),
		)
		g.cbM.RLock()
		cb := g.onReady
		g.cbM.RUnlock()
		if cb != nil {
			cb(rd.Application.ID)
		}
	case "INTERACTION_CREATE":
		var in Interaction
		if err := json.Unmarshal(p.Data, &in); err != nil {
			obslog.L().Warn("gateway_interaction_decode", zap.Error(err))
			return
		}
		g.cbM.RLock()
		cb := g.onInteraction
		g.cbM.RUnlock()
		if cb != nil {
			cb(&in)
		}
	}
}

func (g *Gateway) heartbeatLoop(interval time.Duration) {
	defer g.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-g.stopCh:
			return
		case <-t.C:
			if g.conn == nil {
				continue
			}
			g.sendHeartbeat()
		}
	}
}

func (g *Gateway) sendHeartbeat() {
	g.seqM.Lock()
	seq := g.seq
	g.seqM.Unlock()
	ctx, cancel := context.WithTimeout(g.rootCtx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, g.conn, map[string]any{"op": opHeartbeat, "d": seq}); err != nil {
		obslog.L().Warn("gateway_heartbeat_failed", zap.Error(err))
	}
}

func (g *Gateway) scheduleReconnect() {
	if g.maxReconnectAttempts <= 0 {
		return
	}
	g.setState(GatewayReconnecting)

	go func() {
		for attempt := 1; attempt <= g.maxReconnectAttempts; attempt++ {
			select {
			case <-g.stopCh:
				return
			case <-time.After(g.reconnectDelay * time.Duration(attempt)):
			}

			if err := g.dial(g.rootCtx); err != nil {
				obslog.L().Warn("gateway_reconnect_failed",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}
			return
		}
		g.setState(GatewayFailed)
	}()
}

func (g *Gateway) setState(state GatewayState) {
	g.stateM.Lock()
	g.state = state
	g.stateM.Unlock()
}

func (g *Gateway) Close(ctx context.Context) error {
	g.stopOnce.Do(func() { close(g.stopCh) })
	_ = g.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if g.rootCancel != nil {
			g.rootCancel()
		}
		return nil
	}
}

func (g *Gateway) closeConn(code websocket.StatusCode, reason string) error {
	if g.conn == nil {
		return nil
	}
	defer func() { g.conn = nil }()
	return g.conn.Close(code, reason)
}

func (g *Gateway) isStopping() bool {
	select {
	case <-g.stopCh:
		return true
	default:
		return false
	}
}

type errProtocol string

func (e errProtocol) Error() string { return string(e) }
