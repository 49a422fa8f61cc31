package auth

import (
	"context"
	"sync"
	"time"
)

// StoredToken is one persisted credential, keyed by account identity.
type StoredToken struct {
	Identity     string    `json:"identity"`
	UserID       string    `json:"user_id,omitempty"`
	Kind         TokenKind `json:"kind"`
	Value        string    `json:"value"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expires      time.Time `json:"expires"`
}

// TokenStore persists exchanged credentials across requests and,
// depending on the backend, across restarts. Get returns
// ErrTokenNotFound for unknown identities; Delete of an unknown
// identity is a no-op.
type TokenStore interface {
	Put(ctx context.Context, token *StoredToken) error
	Get(ctx context.Context, identity string) (*StoredToken, error)
	Delete(ctx context.Context, identity string) error
	List(ctx context.Context) ([]*StoredToken, error)
	PruneExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// MemoryStore is the in-process TokenStore. Contents vanish on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*StoredToken
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*StoredToken)}
}

// Put stores or replaces the token for an identity.
func (s *MemoryStore) Put(ctx context.Context, token *StoredToken) error {
	if token == nil || token.Identity == "" {
		return ErrInvalidCredential
	}
	copied := *token
	s.mu.Lock()
	s.tokens[token.Identity] = &copied
	s.mu.Unlock()
	return nil
}

// Get returns the token for an identity.
func (s *MemoryStore) Get(ctx context.Context, identity string) (*StoredToken, error) {
	s.mu.RLock()
	token, ok := s.tokens[identity]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

// Delete removes the token for an identity.
func (s *MemoryStore) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	delete(s.tokens, identity)
	s.mu.Unlock()
	return nil
}

// List returns all stored tokens.
func (s *MemoryStore) List(ctx context.Context) ([]*StoredToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]*StoredToken, 0, len(s.tokens))
	for _, token := range s.tokens {
		copied := *token
		tokens = append(tokens, &copied)
	}
	return tokens, nil
}

// PruneExpired drops tokens past expiry and reports how many went.
func (s *MemoryStore) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for identity, token := range s.tokens {
		if !now.Before(token.Expires) {
			delete(s.tokens, identity)
			pruned++
		}
	}
	return pruned, nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error { return nil }
