// Package session tracks which (window, origin) pairs are connected and
// which accounts each window may see. Account visibility is strictly
// window-scoped: two windows on the same origin hold independent sessions.
package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotConnected is returned for any lookup of a window without a live
// session. Callers must treat it as unauthorized, never as an empty result.
var ErrNotConnected = errors.New("session: not connected")

// Session binds one window to an origin and an account set.
type Session struct {
	WindowID     string           `json:"windowId"`
	Origin       string           `json:"origin"`
	Name         string           `json:"name,omitempty"`
	Icon         string           `json:"icon,omitempty"`
	Accounts     []common.Address `json:"accounts"`
	AutoApproved bool             `json:"autoApproved"`
	ConnectedAt  time.Time        `json:"connectedAt"`
	LastActivity time.Time        `json:"lastActivity"`
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Accounts = append([]common.Address(nil), s.Accounts...)
	return &cp
}

// HasAccount reports whether the session exposes addr.
func (s *Session) HasAccount(addr common.Address) bool {
	for _, a := range s.Accounts {
		if a == addr {
			return true
		}
	}
	return false
}

// Manager is the authoritative session registry. At most one live session
// exists per window id; creating a session for a window that already has one
// replaces it (the window navigated to a new dApp).
type Manager struct {
	mu       sync.RWMutex
	byWindow map[string]*Session
	logger   *log.Logger

	now func() time.Time // test hook
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		byWindow: make(map[string]*Session),
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a session after an approved connection request.
func (m *Manager) Create(windowID, origin, name, icon string, accounts []common.Address) *Session {
	return m.create(windowID, origin, name, icon, accounts, false)
}

// CreateAutoApproved registers a session for a dApp window the wallet itself
// opened. Auto-approved sessions answer eth_accounts without a connection
// prompt but never bypass signing or transaction approval.
func (m *Manager) CreateAutoApproved(windowID, origin, name, icon string, accounts []common.Address) *Session {
	return m.create(windowID, origin, name, icon, accounts, true)
}

func (m *Manager) create(windowID, origin, name, icon string, accounts []common.Address, auto bool) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &Session{
		WindowID:     windowID,
		Origin:       origin,
		Name:         name,
		Icon:         icon,
		Accounts:     dedupe(accounts),
		AutoApproved: auto,
		ConnectedAt:  now,
		LastActivity: now,
	}
	if old, ok := m.byWindow[windowID]; ok {
		m.logf("replacing session for window %s (was %s)", windowID, old.Origin)
	}
	m.byWindow[windowID] = s
	m.logf("session created: window=%s origin=%s accounts=%d auto=%t", windowID, origin, len(s.Accounts), auto)
	return s.clone()
}

// GetByWindow returns the session for a window, or ErrNotConnected.
func (m *Manager) GetByWindow(windowID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byWindow[windowID]
	if !ok {
		return nil, ErrNotConnected
	}
	return s.clone(), nil
}

// GetByOrigin returns the most recently active session for an origin. Each
// window's session stays independent; this is a UI convenience only and must
// not be used for authorization decisions.
func (m *Manager) GetByOrigin(origin string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Session
	for _, s := range m.byWindow {
		if s.Origin != origin {
			continue
		}
		if best == nil || s.LastActivity.After(best.LastActivity) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotConnected
	}
	return best.clone(), nil
}

// Validate confirms a live session binds windowID to origin.
func (m *Manager) Validate(windowID, origin string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byWindow[windowID]
	if !ok || s.Origin != origin {
		return ErrNotConnected
	}
	return nil
}

// UpdateAccounts replaces the account list visible to one window.
func (m *Manager) UpdateAccounts(windowID string, accounts []common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byWindow[windowID]
	if !ok {
		return ErrNotConnected
	}
	s.Accounts = dedupe(accounts)
	s.LastActivity = m.now()
	return nil
}

// UpdateLastActivity bumps the activity timestamp for a window.
func (m *Manager) UpdateLastActivity(windowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byWindow[windowID]
	if !ok {
		return ErrNotConnected
	}
	s.LastActivity = m.now()
	return nil
}

// Remove drops the session for a window. Removing an absent window is a
// no-op so window-close cleanup stays idempotent.
func (m *Manager) Remove(windowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byWindow[windowID]; ok {
		delete(m.byWindow, windowID)
		m.logf("session removed: window=%s", windowID)
	}
}

// List returns all live sessions, for the connected-dApps view.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.byWindow))
	for _, s := range m.byWindow {
		out = append(out, s.clone())
	}
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byWindow)
}

// RemoveIdle drops sessions with no activity for maxIdle and returns the
// window ids it removed.
func (m *Manager) RemoveIdle(maxIdle time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var removed []string
	for id, s := range m.byWindow {
		if now.Sub(s.LastActivity) > maxIdle {
			delete(m.byWindow, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		m.logf("removed %d idle sessions", len(removed))
	}
	return removed
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

// dedupe preserves order while dropping repeated addresses.
func dedupe(accounts []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(accounts))
	out := make([]common.Address, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
