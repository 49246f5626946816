//go:build js && wasm
// +build js,wasm

package localstorage

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/Da-devs/dPay/internal/core/domain"
)

const StoreType = "localstorage"

type store struct {
	storage js.Value
}

func NewSessionStore() (domain.SessionRepository, error) {
	storage := js.Global().Get("localStorage")
	if storage.IsUndefined() || storage.IsNull() {
		return nil, fmt.Errorf("localStorage not available")
	}
	return &store{storage}, nil
}

func (s *store) GetType() string {
	return StoreType
}

func (s *store) GetAddress(_ context.Context) (address string, err error) {
	defer recoverStorageError(&err)

	value := s.storage.Call("getItem", domain.WalletAddressKey)
	if value.IsNull() || value.IsUndefined() {
		return "", nil
	}
	return value.String(), nil
}

func (s *store) SetAddress(_ context.Context, address string) (err error) {
	defer recoverStorageError(&err)

	s.storage.Call("setItem", domain.WalletAddressKey, address)
	return nil
}

func (s *store) DeleteAddress(_ context.Context) (err error) {
	defer recoverStorageError(&err)

	s.storage.Call("removeItem", domain.WalletAddressKey)
	return nil
}

func (s *store) Close() {}

// The browser throws when storage is disabled or the quota is exceeded,
// syscall/js turns that into a panic.
func recoverStorageError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("localStorage: %v", r)
	}
}
