package client

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/librarykeeper/internal/client/models"
)

// memTokenStore is an in-memory TokenStore.
type memTokenStore struct {
	mu      sync.Mutex
	pair    *models.TokenPair
	clears  int
	saves   int
	readErr error
}

func newMemTokenStore(access, refresh string) *memTokenStore {
	s := &memTokenStore{}
	if access != "" || refresh != "" {
		s.pair = &models.TokenPair{AccessToken: access, RefreshToken: refresh}
	}
	return s
}

func (s *memTokenStore) Tokens(context.Context) (*models.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.pair == nil {
		return nil, nil
	}
	cp := *s.pair
	return &cp, nil
}

func (s *memTokenStore) SaveTokens(_ context.Context, p *models.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.pair = &cp
	s.saves++
	return nil
}

func (s *memTokenStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = nil
	s.clears++
	return nil
}

func (s *memTokenStore) snapshot() (*models.TokenPair, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return nil, s.saves, s.clears
	}
	cp := *s.pair
	return &cp, s.saves, s.clears
}
