// Package session keeps the live exercise sessions of the service. Each
// session wraps one evaluator configured from the defaults and an optional
// stored profile.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/store"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrProfileMismatch = errors.New("profile belongs to a different exercise")
)

// Config holds the dependencies of a Manager.
type Config struct {
	// Store resolves profiles. Nil disables profiles.
	Store    *store.Store
	Metrics  *metrics.Manager
	Exercise exercise.Config
	// MaxSessions caps concurrent sessions. Zero means unlimited.
	MaxSessions int
	Clock       exercise.Clock
}

// CreateParams describes a new session.
type CreateParams struct {
	Exercise exercise.Kind
	Side     pose.Side
	// ProfileID selects a stored profile. When empty the exercise's default
	// profile is used if one is set.
	ProfileID string
}

// Manager owns the open sessions.
type Manager struct {
	config   Config
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(config Config) *Manager {
	if config.Clock == nil {
		config.Clock = exercise.SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewStandaloneManager()
	}

	return &Manager{
		config:   config,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session for p.Exercise.
func (m *Manager) Create(p CreateParams) (*Session, error) {
	if _, err := exercise.ParseKind(string(p.Exercise)); err != nil {
		return nil, err
	}

	profile, err := m.resolveProfile(p)
	if err != nil {
		return nil, err
	}

	cfg := m.config.Exercise
	profileID := ""
	if profile != nil {
		profileID = profile.ID
		cfg, err = cfg.Overlay(p.Exercise, profile.Config)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile.ID, err)
		}
	}

	evaluator, err := exercise.New(p.Exercise, cfg, m.config.Clock)
	if err != nil {
		return nil, err
	}

	now := m.config.Clock.Now()
	s := &Session{
		ID:         uuid.New().String(),
		Exercise:   p.Exercise,
		Side:       p.Side,
		ProfileID:  profileID,
		CreatedAt:  now,
		evaluator:  evaluator,
		metrics:    m.config.Metrics,
		clock:      m.config.Clock,
		lastActive: now,
	}

	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.config.Metrics.GaugeSessions.Set(float64(n))
	log.WithFields(log.Fields{
		"session":  s.ID,
		"exercise": s.Exercise,
		"side":     s.Side.String(),
		"profile":  profileID,
	}).Info("session created")

	return s, nil
}

func (m *Manager) resolveProfile(p CreateParams) (*store.Profile, error) {
	if m.config.Store == nil {
		if p.ProfileID != "" {
			return nil, fmt.Errorf("profile %s: %w", p.ProfileID, store.ErrNotFound)
		}
		return nil, nil
	}

	if p.ProfileID != "" {
		profile, err := m.config.Store.Profiles().GetByID(p.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ProfileID, err)
		}
		if profile.Exercise != p.Exercise {
			return nil, fmt.Errorf("profile %s is for %s: %w", profile.ID, profile.Exercise, ErrProfileMismatch)
		}
		return profile, nil
	}

	profile, err := m.config.Store.DefaultProfile(p.Exercise)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("default profile for %s: %w", p.Exercise, err)
	}
	return profile, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns the open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	m.config.Metrics.GaugeSessions.Set(float64(n))
	log.WithFields(log.Fields{
		"session": id,
		"reps":    s.State().Count,
	}).Info("session closed")
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// were closed. A non-positive maxIdle disables sweeping.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	now := m.config.Clock.Now()
	var swept []string

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > maxIdle {
			delete(m.sessions, id)
			swept = append(swept, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if len(swept) == 0 {
		return 0
	}

	m.config.Metrics.GaugeSessions.Set(float64(n))
	m.config.Metrics.CounterSessionsSwept.Add(float64(len(swept)))
	log.WithFields(log.Fields{
		"swept":     len(swept),
		"remaining": n,
	}).Info("idle sessions closed")

	return len(swept)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		log.Debug("session sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(maxIdle)
		}
	}
}
