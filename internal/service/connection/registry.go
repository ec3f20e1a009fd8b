package connection

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrClientConnected    = errors.New("client already connected")
	ErrClientNotConnected = errors.New("client not connected")
)

// Channel is the subset of *websocket.Conn the registry writes through.
type Channel interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ReconnectPolicy decides what happens when a client id connects twice.
type ReconnectPolicy string

const (
	// ClosePrevious closes the live channel and keeps the new one.
	ClosePrevious ReconnectPolicy = "close_previous"
	// RejectNew keeps the live channel and refuses the new one.
	RejectNew ReconnectPolicy = "reject"
)

// ParseReconnectPolicy maps a config string onto a policy, defaulting to ClosePrevious.
func ParseReconnectPolicy(raw string) (ReconnectPolicy, error) {
	switch ReconnectPolicy(raw) {
	case "", ClosePrevious:
		return ClosePrevious, nil
	case RejectNew:
		return RejectNew, nil
	default:
		return "", errors.Errorf("unknown reconnect policy %q", raw)
	}
}

// Options configures a Registry.
type Options struct {
	Policy       ReconnectPolicy
	Strict       bool
	WriteTimeout time.Duration
}

type entry struct {
	ch Channel
	mu sync.Mutex // serializes writes; websocket allows one writer
}

// Registry maps client ids to their live channel.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	opts    Options
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Policy == "" {
		opts.Policy = ClosePrevious
	}
	return &Registry{
		entries: make(map[string]*entry),
		opts:    opts,
	}
}

// Connect registers ch under clientID, applying the reconnect policy.
func (r *Registry) Connect(clientID string, ch Channel) error {
	r.mu.Lock()
	prev, exists := r.entries[clientID]
	if exists && r.opts.Policy == RejectNew {
		r.mu.Unlock()
		return errors.Wrapf(ErrClientConnected, "client %s", clientID)
	}
	r.entries[clientID] = &entry{ch: ch}
	r.mu.Unlock()

	if exists {
		log.Info().Str("component", "registry").Str("client_id", clientID).Msg("replacing live connection")
		_ = prev.ch.Close()
	}
	return nil
}

// Disconnect removes and closes the client's channel. Unknown ids are ignored.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	e, ok := r.entries[clientID]
	if ok {
		delete(r.entries, clientID)
	}
	r.mu.Unlock()

	if ok {
		_ = e.ch.Close()
	}
}

// Release removes the client's entry only while it still points at ch, so a
// loop that is shutting down never drops the connection that replaced it.
func (r *Registry) Release(clientID string, ch Channel) bool {
	r.mu.Lock()
	e, ok := r.entries[clientID]
	if !ok || e.ch != ch {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, clientID)
	r.mu.Unlock()

	_ = ch.Close()
	return true
}

// Send writes a text frame to the client. Unknown clients are ignored unless
// the registry is strict. Transport errors are returned to the caller.
func (r *Registry) Send(ctx context.Context, clientID string, text []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	e, ok := r.entries[clientID]
	r.mu.RUnlock()
	if !ok {
		if r.opts.Strict {
			return errors.Wrapf(ErrClientNotConnected, "client %s", clientID)
		}
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if r.opts.WriteTimeout > 0 {
		_ = e.ch.SetWriteDeadline(time.Now().Add(r.opts.WriteTimeout))
	}
	return e.ch.WriteMessage(websocket.TextMessage, text)
}

// Ping writes a ping control frame through the same writer lock as Send.
func (r *Registry) Ping(clientID string, ch Channel) error {
	r.mu.RLock()
	e, ok := r.entries[clientID]
	r.mu.RUnlock()
	if !ok || e.ch != ch {
		return ErrClientNotConnected
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if r.opts.WriteTimeout > 0 {
		_ = e.ch.SetWriteDeadline(time.Now().Add(r.opts.WriteTimeout))
	}
	return e.ch.WriteMessage(websocket.PingMessage, nil)
}

// Connected reports whether clientID currently has a channel.
func (r *Registry) Connected(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[clientID]
	return ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CloseAll closes every channel; used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for clientID, e := range entries {
		if err := e.ch.Close(); err != nil {
			log.Debug().Err(err).Str("component", "registry").Str("client_id", clientID).Msg("close failed")
		}
	}
}
