package devserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mines_client/internal/auth"
	"mines_client/internal/logger"
	"mines_client/internal/protocol"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 256
)

// Faults makes the server misbehave the way a real network can.
type Faults struct {
	// DuplicateEvents writes every outbound frame twice.
	DuplicateEvents bool
	// Mute swallows intents without answering.
	Mute bool
}

// Server exposes a Service over the websocket contract.
type Server struct {
	svc    *Service
	signer *auth.Signer

	mu       sync.Mutex
	conns    map[int64]*conn
	accepted map[int64]int
	faults   Faults
	log      *slog.Logger
}

func NewServer(svc *Service, signer *auth.Signer) *Server {
	return &Server{
		svc:    svc,
		signer: signer,
		conns:    make(map[int64]*conn),
		accepted: make(map[int64]int),
		log:      logger.With("component", "devserver"),
	}
}

// SetFaults changes fault injection for new frames.
func (s *Server) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

func (s *Server) currentFaults() Faults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// Drop closes the user's connection, as a network failure would.
func (s *Server) Drop(userID int64) bool {
	s.mu.Lock()
	c, ok := s.conns[userID]
	s.mu.Unlock()
	if ok {
		_ = c.ws.Close()
	}
	return ok
}

// Accepted counts websocket connections accepted for the user.
func (s *Server) Accepted(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted[userID]
}

// Router builds the gin engine: /ws, /token/:user_id, /healthz.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
	r.GET("/token/:user_id", s.handleToken)
	r.GET("/ws", s.handleWS)
	return r
}

func (s *Server) handleToken(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	token, err := s.signer.Generate(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}
	userID, err := s.signer.Parse(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "error", err)
		return
	}

	cn := &conn{userID: userID, ws: ws, send: make(chan []byte, sendBuffer), srv: s}
	s.mu.Lock()
	if old, ok := s.conns[userID]; ok {
		_ = old.ws.Close()
	}
	s.conns[userID] = cn
	s.accepted[userID]++
	s.mu.Unlock()

	s.log.Info("client connected", "user_id", userID)
	go cn.writePump()
	cn.readPump()
}

type conn struct {
	userID int64
	ws     *websocket.Conn
	send   chan []byte
	srv    *Server
}

func (c *conn) readPump() {
	defer func() {
		c.srv.mu.Lock()
		if c.srv.conns[c.userID] == c {
			delete(c.srv.conns, c.userID)
		}
		c.srv.mu.Unlock()
		close(c.send)
		_ = c.ws.Close()
		c.srv.log.Info("client disconnected", "user_id", c.userID)
	}()

	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(msg)
	}
}

func (c *conn) handle(msg []byte) {
	faults := c.srv.currentFaults()
	name, payload, err := protocol.DecodeIntent(msg)
	if err != nil {
		c.push(protocol.SessionError{Message: err.Error(), Code: "E_BAD_FRAME"}, faults)
		return
	}
	if faults.Mute {
		c.srv.log.Debug("muted intent", "user_id", c.userID, "event", name)
		return
	}
	for _, ev := range c.srv.svc.Handle(c.userID, name, payload) {
		c.push(ev, faults)
	}
}

func (c *conn) push(ev protocol.Inbound, f Faults) {
	frame, err := protocol.EncodeInbound(ev)
	if err != nil {
		c.srv.log.Error("encode event", "event", ev.EventName(), "error", err)
		return
	}
	n := 1
	if f.DuplicateEvents {
		n = 2
	}
	for i := 0; i < n; i++ {
		select {
		case c.send <- frame:
		default:
			c.srv.log.Warn("send buffer full, dropping", "user_id", c.userID, "event", ev.EventName())
		}
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
