/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Seednode/icebreaker/icebreaker"
)

const sessionCookieName = "icebreaker_session"

// getOrSetSessionID returns the play session id carried by the request,
// handing out a new one when there is none.
func getOrSetSessionID(cfg *Config, w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(c.Value)); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// readIdentity returns the signed-in player from the identity cookie.
func readIdentity(cfg *Config, r *http.Request) (icebreaker.User, error) {
	c, err := r.Cookie(cfg.identityCookie)
	if err != nil {
		return icebreaker.User{}, icebreaker.ErrNoIdentity
	}

	return icebreaker.ParseIdentity(c.Value)
}

// Manager holds the open play sessions keyed by session cookie, so every
// browser gets its own card page state. Tabs of one browser share it.
type Manager struct {
	cfg     *Config
	backend icebreaker.Backend

	mu          sync.Mutex
	sessions    map[string]*icebreaker.Session
	idleTimeout time.Duration
}

func newManager(cfg *Config, backend icebreaker.Backend) *Manager {
	return &Manager{
		cfg:         cfg,
		backend:     backend,
		sessions:    make(map[string]*icebreaker.Session),
		idleTimeout: cfg.sessionTimeout,
	}
}

// session returns the play session for id. A session opened for a different
// player is replaced, so a new sign-in starts from a fresh page.
func (m *Manager) session(id string, self icebreaker.User) *icebreaker.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		if s.Self().ID == self.ID {
			return s
		}

		logf(m.cfg, "GAMES: Player changed in session %s (%s -> %s)", id, s.Self().ID, self.ID)
		go s.Close()
	}

	var log logrus.FieldLogger
	if m.cfg.log != nil {
		log = m.cfg.log
	}

	s := icebreaker.NewSession(id, self, m.backend, log)
	m.sessions[id] = s

	logf(m.cfg, "GAMES: Opened session %s for %q", id, self.ID)

	return s
}

// lookup returns an already open play session.
func (m *Manager) lookup(id string) (*icebreaker.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]

	return s, ok
}

func (m *Manager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// reap drops sessions idle since before cutoff and returns how many went.
func (m *Manager) reap(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			go s.Close()
			reaped++
		}
	}

	return reaped
}

// reaperLoop periodically removes sessions that have been idle longer than
// idleTimeout, until ctx is done.
func (m *Manager) reaperLoop(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.reap(time.Now().Add(-m.idleTimeout)); n > 0 {
				logf(m.cfg, "GAMES: Reaped %d idle session(s), %d open", n, m.count())
			}
		}
	}
}
