package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

type ticketStore struct {
	mu     sync.Mutex
	values map[string]time.Time
	ttl    time.Duration
}

func newTicketStore(ttl time.Duration) *ticketStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ticketStore{
		values: make(map[string]time.Time),
		ttl:    ttl,
	}
}

func (s *ticketStore) Issue() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	ticket := hex.EncodeToString(buf)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	s.values[ticket] = time.Now().Add(s.ttl)
	return ticket, nil
}

// Consume removes the ticket and reports whether it was present and
// unexpired. Check and removal happen under one lock so a ticket can never
// redeem twice.
func (s *ticketStore) Consume(ticket string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	exp, ok := s.values[ticket]
	if !ok {
		return false
	}
	delete(s.values, ticket)
	return !time.Now().After(exp)
}

func (s *ticketStore) cleanupLocked() {
	now := time.Now()
	for ticket, expiry := range s.values {
		if now.After(expiry) {
			delete(s.values, ticket)
		}
	}
}
