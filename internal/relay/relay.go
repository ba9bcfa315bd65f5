// Package relay implements the websocket hub that relays volume changes
// between connected clients.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmorsell/volctl/internal/ratelimit"
	"github.com/vmorsell/volctl/pkg/model"
	"go.uber.org/zap"
)

const (
	readBufferSize  = 1024
	writeBufferSize = 1024
	sendBufferSize  = 256
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10

	DefaultMaxMessageSize = 1024

	ErrInvalidPayload  = "invalid payload, expected {\"type\":\"volume\",\"volume\":int}"
	ErrRateLimited     = "rate limit exceeded"
	ErrUnsupportedType = "unsupported message type"
)

type Config struct {
	// MaxMessageSize is the largest message accepted from a client.
	MaxMessageSize int64
	// VolumeChangeRate is the number of volume changes a client may send
	// per second.
	VolumeChangeRate int
}

type client struct {
	conn   *websocket.Conn
	id     string
	send   chan []byte
	server *Server
}

// outbound is a message routed through the hub. With to set it goes
// only to that client, otherwise to every client except from.
type outbound struct {
	from *client
	to   *client
	data []byte
	// volume is set for relayed volume changes.
	volume *int
}

// Server is the relay hub. It implements http.Handler for the websocket
// endpoint; Run must be running for connections to be served.
type Server struct {
	logger   *zap.Logger
	cfg      Config
	upgrader websocket.Upgrader
	limiter  *ratelimit.RateLimiter

	register   chan *client
	unregister chan *client
	outbound   chan outbound
	done       chan struct{}

	// Owned by Run.
	clients    map[*client]struct{}
	lastVolume *int

	countMu sync.Mutex
	count   int
}

func NewServer(logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.VolumeChangeRate <= 0 {
		cfg.VolumeChangeRate = ratelimit.DefaultVolumeChangeRateLimit
	}
	return &Server{
		logger: logger,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		limiter:    ratelimit.NewRateLimiter(cfg.VolumeChangeRate, ratelimit.DefaultWindowSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		outbound:   make(chan outbound, sendBufferSize),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (s *Server) Run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		for c := range s.clients {
			s.drop(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-s.register:
			s.clients[c] = struct{}{}
			s.setCount(len(s.clients))
			s.logger.Info("client connected",
				zap.String("clientID", c.id),
				zap.Int("clients", len(s.clients)))
			if s.lastVolume != nil {
				s.deliver(c, mustMarshal(model.NewVolumeMessage(*s.lastVolume)))
			}
			s.broadcastClientCount()

		case c := <-s.unregister:
			if _, ok := s.clients[c]; !ok {
				continue
			}
			s.drop(c)
			s.logger.Info("client disconnected",
				zap.String("clientID", c.id),
				zap.Int("clients", len(s.clients)))
			s.broadcastClientCount()

		case msg := <-s.outbound:
			if msg.to != nil {
				if _, ok := s.clients[msg.to]; ok {
					s.deliver(msg.to, msg.data)
				}
				continue
			}
			if msg.volume != nil {
				s.lastVolume = msg.volume
			}
			relayed := 0
			for c := range s.clients {
				if c == msg.from {
					continue
				}
				s.deliver(c, msg.data)
				relayed++
			}
			if msg.from != nil {
				s.logger.Debug("relayed update",
					zap.String("clientID", msg.from.id),
					zap.Int("recipients", relayed))
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.count
}

func (s *Server) setCount(n int) {
	s.countMu.Lock()
	s.count = n
	s.countMu.Unlock()
}

// deliver queues data for c, dropping c if its buffer is full.
func (s *Server) deliver(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		s.logger.Warn("client too slow, disconnecting", zap.String("clientID", c.id))
		s.drop(c)
	}
}

func (s *Server) drop(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	s.limiter.Forget(c.id)
	s.setCount(len(s.clients))
}

func (s *Server) broadcastClientCount() {
	data := mustMarshal(model.NewClientsMessage(len(s.clients)))
	for c := range s.clients {
		s.deliver(c, data)
	}
}

// enqueue hands msg to the hub unless it has stopped.
func (s *Server) enqueue(msg outbound) bool {
	select {
	case s.outbound <- msg:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	c := &client{
		conn:   conn,
		id:     uuid.NewString(),
		send:   make(chan []byte, sendBufferSize),
		server: s,
	}

	select {
	case s.register <- c:
	case <-s.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	s := c.server
	defer func() {
		select {
		case s.unregister <- c:
		case <-s.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket error", zap.String("clientID", c.id), zap.Error(err))
			}
			return
		}

		if !c.handle(data) {
			return
		}
	}
}

// handle processes one message from c. It returns false once the hub
// has stopped.
func (c *client) handle(data []byte) bool {
	s := c.server

	msg, err := model.Decode(data)
	if err != nil {
		s.logger.Warn("invalid message", zap.String("clientID", c.id), zap.Error(err))
		return c.reply(ErrInvalidPayload)
	}

	vm, ok := msg.(model.VolumeMessage)
	if !ok {
		s.logger.Warn("unsupported message type", zap.String("clientID", c.id))
		return c.reply(ErrUnsupportedType)
	}

	if err := model.ValidateVolume(vm.Volume); err != nil {
		s.logger.Warn("volume out of range", zap.String("clientID", c.id), zap.Int("volume", vm.Volume))
		return c.reply(err.Error())
	}

	if !s.limiter.Allow(c.id) {
		s.logger.Warn("rate limit exceeded", zap.String("clientID", c.id))
		return c.reply(ErrRateLimited)
	}

	s.logger.Info("volume update", zap.String("clientID", c.id), zap.Int("volume", vm.Volume))
	volume := vm.Volume
	return s.enqueue(outbound{
		from:   c,
		data:   mustMarshal(model.NewVolumeMessage(volume)),
		volume: &volume,
	})
}

func (c *client) reply(text string) bool {
	return c.server.enqueue(outbound{
		to:   c,
		data: mustMarshal(model.NewErrorMessage(text)),
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("marshal relay message: " + err.Error())
	}
	return data
}
