package proxy

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"otterproxy/internal/otter"
)

// sessionStore maps opaque tokens to authenticated client instances.
// Sessions live in memory only: they end when the TTL runs out, when
// capacity evicts the least recently used entry, or when the process
// restarts.
type sessionStore struct {
	sessions *expirable.LRU[string, *otter.Client]
}

func newSessionStore(maxSessions int, ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: expirable.NewLRU[string, *otter.Client](maxSessions, nil, ttl),
	}
}

// put registers a client and mints its opaque session token.
func (s *sessionStore) put(client *otter.Client) string {
	token := uuid.NewString()
	s.sessions.Add(token, client)
	otter.IncrSessionsCreated()
	return token
}

func (s *sessionStore) get(token string) (*otter.Client, bool) {
	return s.sessions.Get(token)
}

// remove discards a session. Logout is nothing more than this: the client
// instance holds no remote state worth revoking.
func (s *sessionStore) remove(token string) {
	s.sessions.Remove(token)
}

func (s *sessionStore) len() int { return s.sessions.Len() }
