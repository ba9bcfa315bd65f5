// Package syncer keeps the local master volume in sync with a relay.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmorsell/volctl/internal/ratelimit"
	"github.com/vmorsell/volctl/internal/volume"
	"github.com/vmorsell/volctl/pkg/model"
	"go.uber.org/zap"
)

const (
	writeWait   = 10 * time.Second
	relayKey    = "relay"
	noneApplied = -1
)

// Controller reads and sets the local volume. *volctl.VolumeControl
// implements it.
type Controller interface {
	GetVolume() int
	SetVolume(value int) error
}

// Client forwards local volume changes to a relay and applies the
// changes it receives.
type Client struct {
	logger   *zap.Logger
	url      string
	ctl      Controller
	listener *volume.Listener
	limiter  *ratelimit.RateLimiter
	dialer   *websocket.Dialer

	mu      sync.Mutex
	applied int
	clients int
}

// New returns a Client for the relay at url. limiter caps how often
// remote changes are applied; nil means no cap.
func New(logger *zap.Logger, url string, ctl Controller, listener *volume.Listener, limiter *ratelimit.RateLimiter) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:   logger,
		url:      url,
		ctl:      ctl,
		listener: listener,
		limiter:  limiter,
		dialer:   websocket.DefaultDialer,
		applied:  noneApplied,
	}
}

// Clients returns the client count last reported by the relay.
func (c *Client) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clients
}

// Run connects to the relay and syncs until ctx is done or the
// connection fails. It returns nil after a clean shutdown.
func (c *Client) Run(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()
	c.logger.Info("connected to relay", zap.String("url", c.url))

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes := c.listener.Listen(listenCtx)

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(conn)
	}()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil

		case err := <-readErr:
			return err

		case v, ok := <-changes:
			if !ok {
				return nil
			}
			if c.takeApplied(v) {
				continue
			}
			if err := c.publish(conn, v); err != nil {
				return err
			}
		}
	}
}

// takeApplied reports whether v is the echo of a change just applied
// from the relay.
func (c *Client) takeApplied(v int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applied == v {
		c.applied = noneApplied
		return true
	}
	c.applied = noneApplied
	return false
}

func (c *Client) publish(conn *websocket.Conn, v int) error {
	data, err := json.Marshal(model.NewVolumeMessage(v))
	if err != nil {
		return fmt.Errorf("marshal volume message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write volume message: %w", err)
	}
	c.logger.Info("sent local volume", zap.Int("volume", v))
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read relay message: %w", err)
		}

		msg, err := model.Decode(data)
		if err != nil {
			c.logger.Warn("invalid relay message", zap.Error(err))
			continue
		}

		switch m := msg.(type) {
		case model.VolumeMessage:
			c.apply(m.Volume)
		case model.ClientsMessage:
			c.mu.Lock()
			c.clients = m.Clients
			c.mu.Unlock()
			c.logger.Info("connected clients", zap.Int("clients", m.Clients))
		case model.ErrorMessage:
			c.logger.Warn("relay rejected update", zap.String("message", m.Message))
		}
	}
}

func (c *Client) apply(v int) {
	if c.limiter != nil && !c.limiter.Allow(relayKey) {
		c.logger.Warn("dropping remote volume change, rate limited", zap.Int("volume", v))
		return
	}
	if c.ctl.GetVolume() == v {
		return
	}

	c.mu.Lock()
	c.applied = v
	c.mu.Unlock()

	if err := c.ctl.SetVolume(v); err != nil {
		c.mu.Lock()
		c.applied = noneApplied
		c.mu.Unlock()
		c.logger.Warn("dropping remote volume change", zap.Int("volume", v), zap.Error(err))
		return
	}
	c.logger.Info("applied remote volume", zap.Int("volume", v))
}

// ErrClosed is returned by RunForever after ctx is done.
var ErrClosed = errors.New("sync client closed")

// RunForever calls Run, reconnecting after failures with the given
// delay between attempts.
func (c *Client) RunForever(ctx context.Context, retryDelay time.Duration) error {
	for {
		err := c.Run(ctx)
		if ctx.Err() != nil {
			return ErrClosed
		}
		if err != nil {
			c.logger.Warn("relay connection lost", zap.Error(err), zap.Duration("retryIn", retryDelay))
		}
		select {
		case <-ctx.Done():
			return ErrClosed
		case <-time.After(retryDelay):
		}
	}
}
