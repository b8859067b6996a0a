package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"shipline/config"
	"shipline/internal/domain"
)

// State is the connection state surfaced to consumers so the UI can show
// staleness instead of silently going dark.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var (
	ErrNoToken      = errors.New("no access token, connection not requested")
	ErrNoUser       = errors.New("no user id, connection not requested")
	ErrConnClosed   = errors.New("connection closed")
	ErrSendOverflow = errors.New("outbound queue full")
)

// handshake is the first client-to-server frame after dial.
type handshake struct {
	UserID int64  `json:"userId"`
	Token  string `json:"token"`
}

type pingFrame struct {
	Type string `json:"type"`
}

// Conn owns one WebSocket to the notification endpoint, bound to a user. It
// keeps the link alive with application-level PING frames every heartbeat
// interval and redials unclean closes with capped exponential backoff.
type Conn struct {
	cfg    config.SocketConfig
	userID int64
	token  string

	onFrame func([]byte)
	onState func(State)

	outbox chan []byte
	done   chan struct{}

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

// Dial opens the connection and starts its read/write pumps. frames receives
// every raw inbound frame; states receives transitions. Both callbacks run
// on the connection's goroutines and must not block.
func Dial(ctx context.Context, cfg config.SocketConfig, userID int64, token string, onFrame func([]byte), onState func(State)) (*Conn, error) {
	if userID == 0 {
		return nil, ErrNoUser
	}
	if token == "" {
		return nil, ErrNoToken
	}
	c := &Conn{
		cfg:     cfg,
		userID:  userID,
		token:   token,
		onFrame: onFrame,
		onState: onState,
		outbox:  make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	ws, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.setWS(ws)
	go c.run(ws)
	return c, nil
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := fmt.Sprintf("%s?token=%s&userId=%d", c.cfg.URL, url.QueryEscape(c.token), c.userID)
	c.state(StateConnecting)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	// Handshake frame identifies the user before any push is delivered.
	hs, _ := json.Marshal(handshake{UserID: c.userID, Token: c.token})
	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := ws.WriteMessage(websocket.TextMessage, hs); err != nil {
		ws.Close()
		return nil, err
	}
	c.state(StateConnected)
	return ws, nil
}

// Send queues an outbound frame (chat mirrors). Frames queued while the link
// is redialing are delivered once it is back.
func (c *Conn) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.outbox <- data:
		return nil
	default:
		return ErrSendOverflow
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()
	close(c.done)
	if ws != nil {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.cfg.WriteWait))
		ws.Close()
	}
}

func (c *Conn) setWS(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *Conn) state(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}

// run drives one websocket session at a time, redialing after unclean
// closes until the retry budget runs out or Close is called.
func (c *Conn) run(ws *websocket.Conn) {
	attempt := 0
	for {
		clean := c.session(ws)
		select {
		case <-c.done:
			return
		default:
		}
		if clean {
			c.state(StateDisconnected)
			return
		}
		attempt++
		if attempt > c.cfg.MaxReconnects {
			log.Printf("socket: giving up after %d reconnect attempts", c.cfg.MaxReconnects)
			c.state(StateDisconnected)
			return
		}
		delay := backoff(c.cfg.ReconnectBase, c.cfg.ReconnectMax, attempt)
		log.Printf("socket: connection lost, reconnecting in %s (attempt %d)", delay, attempt)
		select {
		case <-time.After(delay):
		case <-c.done:
			return
		}
		next, err := c.dial(context.Background())
		if err != nil {
			log.Printf("socket: reconnect dial: %v", err)
			ws = nil
			continue
		}
		attempt = 0
		c.setWS(next)
		ws = next
	}
}

// session pumps one live websocket until it drops. Returns true for a clean
// close (normal closure or local Close), false when a redial is warranted.
func (c *Conn) session(ws *websocket.Conn) bool {
	if ws == nil {
		return false
	}
	writerDone := make(chan struct{})
	go c.writePump(ws, writerDone)
	defer func() {
		close(writerDone)
		ws.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return true
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true
			}
			return false
		}
		ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		if c.onFrame != nil {
			c.onFrame(raw)
		}
	}
}

// writePump sends queued frames and the periodic application-level PING.
func (c *Conn) writePump(ws *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	ping, _ := json.Marshal(pingFrame{Type: domain.FrameTypePing})
	for {
		select {
		case msg := <-c.outbox:
			ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		case <-stop:
			return
		case <-c.done:
			return
		}
	}
}

// backoff returns the delay before reconnect attempt n: capped exponential
// growth with up to 25% jitter so a flapping server is not hammered in
// lockstep.
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}
