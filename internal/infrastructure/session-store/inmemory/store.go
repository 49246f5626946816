package inmemorystore

import (
	"context"
	"sync"

	"github.com/Da-devs/dPay/internal/core/domain"
)

const StoreType = "inmemory"

type store struct {
	data map[string]string
	lock *sync.RWMutex
}

func NewSessionStore() (domain.SessionRepository, error) {
	lock := &sync.RWMutex{}
	return &store{data: make(map[string]string), lock: lock}, nil
}

func (s *store) GetType() string {
	return StoreType
}

func (s *store) GetAddress(_ context.Context) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.data[domain.WalletAddressKey], nil
}

func (s *store) SetAddress(_ context.Context, address string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.data[domain.WalletAddressKey] = address
	return nil
}

func (s *store) DeleteAddress(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.data, domain.WalletAddressKey)
	return nil
}

func (s *store) Close() {}
