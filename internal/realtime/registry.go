package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-set/v3"
	"github.com/jpcastberg/saym/internal/logger"
)

const (
	PingFrame = "ping"
	PongFrame = "pong"

	DefaultSweepInterval = 60 * time.Second
	DefaultStaleAfter    = 5 * time.Minute
	writeTimeout         = 10 * time.Second
)

// Socket is the part of *websocket.Conn the registry needs.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection is one live socket of an authenticated player.
type Connection struct {
	PlayerId string

	socket Socket
	// gorilla allows a single concurrent writer per connection
	writeMu sync.Mutex

	mu           sync.Mutex
	lastActivity time.Time
	closed       bool
}

func NewConnection(playerId string, socket Socket) *Connection {
	return &Connection{PlayerId: playerId, socket: socket, lastActivity: time.Now()}
}

// Touch records inbound activity.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Connection) Write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.socket.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.socket.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.socket.Close()
}

type Registry struct {
	Logger        logger.Logger
	SweepInterval time.Duration
	StaleAfter    time.Duration

	mu    sync.RWMutex
	conns map[string]*set.Set[*Connection]
}

func NewRegistry(sweepInterval, staleAfter time.Duration) *Registry {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Registry{
		Logger:        logger.New("registry"),
		SweepInterval: sweepInterval,
		StaleAfter:    staleAfter,
		conns:         make(map[string]*set.Set[*Connection]),
	}
}

func (r *Registry) Register(playerId string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	playerConns, exists := r.conns[playerId]
	if !exists {
		playerConns = set.New[*Connection](1)
		r.conns[playerId] = playerConns
	}
	playerConns.Insert(conn)
	r.Logger.Debug(fmt.Sprintf("Player %s registered a connection (%d live)", playerId, playerConns.Size()))
}

func (r *Registry) Unregister(playerId string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(playerId, conn)
}

func (r *Registry) unregisterLocked(playerId string, conn *Connection) {
	playerConns, exists := r.conns[playerId]
	if !exists {
		return
	}
	playerConns.Remove(conn)
	if playerConns.Empty() {
		delete(r.conns, playerId)
	}
}

// IsConnected reports whether the player has at least one live connection.
func (r *Registry) IsConnected(playerId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.conns[playerId]
	return exists
}

func (r *Registry) connections(playerId string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	playerConns, exists := r.conns[playerId]
	if !exists {
		return nil
	}
	return playerConns.Slice()
}

// Send writes payload to every connection of the player and reports
// whether at least one write succeeded. Connections failing the write are
// closed and dropped.
func (r *Registry) Send(playerId string, payload []byte) bool {
	delivered := false
	for _, conn := range r.connections(playerId) {
		if err := conn.Write(payload); err != nil {
			r.Logger.Error(fmt.Sprintf("Failed to write to a connection of player %s, dropping it", playerId), err)
			r.Unregister(playerId, conn)
			_ = conn.Close()
			continue
		}
		delivered = true
	}
	return delivered
}

// Sweep closes connections idle for longer than StaleAfter and pings the
// rest.
func (r *Registry) Sweep() {
	cutoff := time.Now().Add(-r.StaleAfter)
	var stale, live []*Connection

	r.mu.Lock()
	for playerId, playerConns := range r.conns {
		for _, conn := range playerConns.Slice() {
			if conn.LastActivity().Before(cutoff) {
				stale = append(stale, conn)
				r.unregisterLocked(playerId, conn)
				continue
			}
			live = append(live, conn)
		}
	}
	r.mu.Unlock()

	for _, conn := range stale {
		_ = conn.Close()
	}
	if len(stale) > 0 {
		r.Logger.Info(fmt.Sprintf("Evicted %d stale connections", len(stale)))
	}
	for _, conn := range live {
		if err := conn.Write([]byte(PingFrame)); err != nil {
			r.Unregister(conn.PlayerId, conn)
			_ = conn.Close()
		}
	}
}

// Run sweeps on SweepInterval until ctx is done, then closes every
// connection.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	var all []*Connection
	for _, playerConns := range r.conns {
		all = append(all, playerConns.Slice()...)
	}
	r.conns = make(map[string]*set.Set[*Connection])
	r.mu.Unlock()

	for _, conn := range all {
		_ = conn.Close()
	}
	r.Logger.Info(fmt.Sprintf("Closed %d connections", len(all)))
}

// Len returns the number of players with at least one connection.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
