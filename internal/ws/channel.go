package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"mines_client/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 30 * time.Second
	pingPeriod  = 25 * time.Second
	readLimit   = 64 << 10
	sendBuffer  = 64
	dialTimeout = 10 * time.Second
)

var (
	ErrNotConnected = errors.New("channel not connected")
	ErrSendFull     = errors.New("channel send buffer full")
)

// Handler receives connection signals and inbound frames. Calls come from the
// channel's goroutines; implementations hand them to their own loop.
type Handler interface {
	Ready()
	Deliver(frame []byte)
	Lost(err error)
}

// Channel is the client end of the game websocket. It redials with exponential
// backoff after every drop and reports each established connection as Ready.
type Channel struct {
	url    string
	token  string
	dialer *websocket.Dialer

	// NewBackOff builds the redial policy for one outage.
	NewBackOff func() backoff.BackOff

	mu   sync.Mutex
	send chan []byte
	log  *slog.Logger
}

func NewChannel(serverURL, token string) *Channel {
	return &Channel{
		url:   serverURL,
		token: token,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialTimeout,
		},
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		log: logger.With("component", "channel"),
	}
}

// Send queues one frame on the live connection without blocking.
func (c *Channel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return ErrNotConnected
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendFull
	}
}

// Connected reports whether a connection is up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send != nil
}

// Run dials, serves and redials until ctx is done, reporting to h. It returns
// early only when the server refuses the token.
func (c *Channel) Run(ctx context.Context, h Handler) error {
	for {
		conn, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.serve(ctx, conn, h)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Channel) endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Channel) connect(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	var conn *websocket.Conn
	op := func() error {
		cn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				return backoff.Permanent(fmt.Errorf("server refused token: %s", resp.Status))
			}
			return err
		}
		conn = cn
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("dial failed", "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.NewBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Channel) serve(ctx context.Context, conn *websocket.Conn, h Handler) {
	send := make(chan []byte, sendBuffer)
	done := make(chan struct{})
	c.mu.Lock()
	c.send = send
	c.mu.Unlock()

	go c.writePump(conn, send, done)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	c.log.Info("connected", "url", c.url)
	h.Ready()

	err := c.readPump(conn, h)

	stop()
	c.mu.Lock()
	c.send = nil
	c.mu.Unlock()
	close(done)
	_ = conn.Close()
	h.Lost(err)
}

func (c *Channel) readPump(conn *websocket.Conn, h Handler) error {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("read error", "error", err)
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.Deliver(msg)
	}
}

func (c *Channel) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Warn("write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
