// internal/service/session/manager.go

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"slonstudy/internal/domain/spot"
	"slonstudy/internal/service/mapsync"
	mapviewService "slonstudy/internal/service/mapview"
	spotService "slonstudy/internal/service/spot"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

// Publisher sends events to a message bus. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// RenderEvent is published every time a session re-renders
type RenderEvent struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	View      mapsync.View `json:"view"`
	Time      time.Time    `json:"time"`
}

// NewRenderEvent wraps a view for publishing
func NewRenderEvent(sessionID string, view mapsync.View) RenderEvent {
	return RenderEvent{
		Type:      "render",
		SessionID: sessionID,
		View:      view,
		Time:      time.Now(),
	}
}

// ManagerConfig contains configuration for the session manager
type ManagerConfig struct {
	MaxSessions  int
	EventsPrefix string
	Surface      mapviewService.HeadlessConfig
	Controller   mapsync.Config
}

// Session is one client's map screen
type Session struct {
	ID         string                         `json:"id"`
	CreatedAt  time.Time                      `json:"created_at"`
	Controller *mapsync.Controller            `json:"-"`
	Surface    *mapviewService.HeadlessSurface `json:"-"`

	cancel      context.CancelFunc
	unsubscribe func()
}

// Manager owns the live sessions
type Manager struct {
	fetcher   spot.Fetcher
	publisher Publisher
	config    ManagerConfig
	sessions  sync.Map
	count     atomic.Int64
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewManager creates a session manager. publisher may be nil, in which case
// render events are only delivered to in-process subscribers.
func NewManager(fetcher spot.Fetcher, publisher Publisher, config ManagerConfig) *Manager {
	if config.EventsPrefix == "" {
		config.EventsPrefix = "session"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		fetcher:   fetcher,
		publisher: publisher,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// RenderSubject returns the bus subject a session's views are published on
func (m *Manager) RenderSubject(id string) string {
	return fmt.Sprintf("%s.%s.render", m.config.EventsPrefix, id)
}

// Create starts a new session with an empty store
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := m.count.Add(1)
	if m.config.MaxSessions > 0 && n > int64(m.config.MaxSessions) {
		m.count.Add(-1)
		return nil, ErrTooManySessions
	}

	surface := mapviewService.NewHeadlessSurface(m.config.Surface)
	controller := mapsync.NewController(
		m.fetcher,
		spotService.NewMemoryStore(),
		surface,
		m.config.Controller,
	)

	sessCtx, cancel := context.WithCancel(m.ctx)
	s := &Session{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now(),
		Controller: controller,
		Surface:    surface,
		cancel:     cancel,
	}

	if m.publisher != nil {
		subject := m.RenderSubject(s.ID)
		s.unsubscribe = controller.Subscribe(func(view mapsync.View) {
			m.publishView(subject, s.ID, view)
		})
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		controller.Run(sessCtx)
	}()

	m.sessions.Store(s.ID, s)
	log.Printf("Created session %s", s.ID)

	return s, nil
}

// Get returns a live session
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return v.(*Session), nil
}

// Delete stops a session and forgets it
func (m *Manager) Delete(id string) error {
	v, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return ErrSessionNotFound
	}

	s := v.(*Session)
	m.stopSession(s)
	m.count.Add(-1)

	log.Printf("Deleted session %s", id)
	return nil
}

// List returns the live sessions, oldest first
func (m *Manager) List() []Session {
	sessions := []Session{}
	m.sessions.Range(func(_, v any) bool {
		s := v.(*Session)
		sessions = append(sessions, Session{ID: s.ID, CreatedAt: s.CreatedAt})
		return true
	})

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	return sessions
}

// Stop stops every session and waits for their loops to exit
func (m *Manager) Stop(ctx context.Context) error {
	m.sessions.Range(func(k, v any) bool {
		m.sessions.Delete(k)
		m.stopSession(v.(*Session))
		return true
	})
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) stopSession(s *Session) {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancel()
}

func (m *Manager) publishView(subject, sessionID string, view mapsync.View) {
	data, err := json.Marshal(NewRenderEvent(sessionID, view))
	if err != nil {
		log.Printf("Error marshaling render event for session %s: %v", sessionID, err)
		return
	}

	if err := m.publisher.Publish(subject, data); err != nil {
		// Log error but continue
		log.Printf("Error publishing render event for session %s: %v", sessionID, err)
	}
}
