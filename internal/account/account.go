// Package account provides the external account-lookup collaborator: the
// Registry's ingest path resolves an RTMP stream key to a broadcaster
// identity through this interface before starting a broadcast.
package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/alxayo/go-livestream/internal/errors"
)

// Account is the minimal identity a stream key resolves to.
type Account struct {
	Username  string
	StreamKey string
}

// Lookup resolves a stream key to the Account that owns it. Implementations
// return a PolicyError("unknown_account") when the key is not recognized.
type Lookup interface {
	ByStreamKey(ctx context.Context, key string) (Account, error)
}

// InMemoryStore is a process-local Lookup, keyed by stream key. It mirrors
// the original's development-mode convenience of auto-creating an account
// the first time an unrecognized stream key is seen, rather than the
// production SQLite-backed lookup (server/src/account.rs): there is no
// persistence layer in this module, so auto-provisioning is the only way an
// operator can start broadcasting without a separate account-creation step.
type InMemoryStore struct {
	mu         sync.RWMutex
	byKey      map[string]Account
	autoCreate bool
}

// NewInMemoryStore builds a store seeded with accounts. When autoCreate is
// true, ByStreamKey synthesizes an account (username derived from the key)
// on first lookup of an unrecognized key instead of failing; this is the
// stub's convenience, not the Registry's contract, which still honors
// UnknownAccount when autoCreate is false.
func NewInMemoryStore(autoCreate bool, seed ...Account) *InMemoryStore {
	s := &InMemoryStore{byKey: make(map[string]Account), autoCreate: autoCreate}
	for _, a := range seed {
		s.byKey[a.StreamKey] = a
	}
	return s
}

// ByStreamKey implements Lookup.
func (s *InMemoryStore) ByStreamKey(ctx context.Context, key string) (Account, error) {
	s.mu.RLock()
	a, ok := s.byKey[key]
	s.mu.RUnlock()
	if ok {
		return a, nil
	}
	if !s.autoCreate {
		return Account{}, errors.NewPolicyError("account.lookup", "unknown_account",
			fmt.Errorf("no account for stream key %q", key))
	}

	username := fmt.Sprintf("broadcaster-%s", shortHash(key))
	a = Account{Username: username, StreamKey: key}
	s.mu.Lock()
	if existing, ok := s.byKey[key]; ok {
		a = existing
	} else {
		s.byKey[key] = a
	}
	s.mu.Unlock()
	return a, nil
}

// Add registers (or replaces) an account under its stream key.
func (s *InMemoryStore) Add(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[a.StreamKey] = a
}

func shortHash(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}

// NewStreamKey generates a random, base64url-encoded 32-byte stream key,
// mirroring the original's StdRng-backed get_new_stream_key.
func NewStreamKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("account: generating stream key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
