package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jwtly10/compactbook/internal/playground"
)

// Session is one loaded page and the playground state of its blocks
type Session struct {
	ID      uuid.UUID
	Path    string
	Manager *playground.Manager

	clipboard *clipboard
	events    *hub
}

// Block returns the controller of the block with the given index
func (s *Session) Block(index int) (*playground.Controller, bool) {
	return s.Manager.Block(index)
}

// clipboard holds the last text copied from a session. The browser owns the real
// clipboard, so the text is handed back in the copy response.
type clipboard struct {
	mu   sync.Mutex
	text string
}

func (c *clipboard) WriteText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

func (c *clipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// hub fans the lifecycle events of a session out to its websocket subscribers
type hub struct {
	mu     sync.Mutex
	subs   map[chan playground.Event]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan playground.Event]struct{})}
}

// Subscribe returns a channel of events and a function that releases it. The channel is
// closed when the session is evicted.
func (h *hub) Subscribe() (<-chan playground.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan playground.Event, 32)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Publish never blocks, a slow subscriber loses its oldest pending event
func (h *hub) Publish(e playground.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		push(ch, e)
	}
}

func (h *hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func push[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Store keeps the most recently used sessions
type Store struct {
	cache *lru.Cache[uuid.UUID, *Session]
}

func NewStore(size int) (*Store, error) {
	cache, err := lru.NewWithEvict[uuid.UUID, *Session](size, func(id uuid.UUID, s *Session) {
		slog.Debug("session evicted", "session", id, "path", s.Path)
		s.events.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Create registers a new session for the page at path. The manager is built by newManager
// so that it can publish to the session's event hub.
func (st *Store) Create(path string, newManager func(cb playground.Clipboard, observe func(playground.Event)) *playground.Manager) *Session {
	s := &Session{
		ID:        uuid.New(),
		Path:      path,
		clipboard: &clipboard{},
		events:    newHub(),
	}
	s.Manager = newManager(s.clipboard, s.events.Publish)
	st.cache.Add(s.ID, s)
	return s
}

func (st *Store) Get(id uuid.UUID) (*Session, bool) {
	return st.cache.Get(id)
}

func (st *Store) Len() int {
	return st.cache.Len()
}
