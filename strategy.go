package blockhub

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrUnknownStrategy = errors.New("unknown login strategy")
	// ErrExternalAuth is wrapped by strategies that reject a credential.
	ErrExternalAuth = errors.New("external authentication failed")
)

// Strategy is an external identity provider that can vouch for a username
// and secret.
type Strategy interface {
	Type() string
	Authenticate(ctx context.Context, username, secret string) error
	Email(ctx context.Context, username, secret string) (string, error)
}

// Strategies holds the configured providers keyed by their type.
type Strategies struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewStrategies(strategies ...Strategy) *Strategies {
	s := &Strategies{strategies: map[string]Strategy{}}
	for _, st := range strategies {
		s.Register(st)
	}
	return s
}

func (s *Strategies) Register(st Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[st.Type()] = st
}

func (s *Strategies) Get(providerType string) (Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.strategies[providerType]
	if !ok {
		return nil, ErrUnknownStrategy
	}
	return st, nil
}
