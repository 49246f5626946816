package domain

import "context"

// WalletAddressKey is the only entry the session store ever holds.
const WalletAddressKey = "walletAddress"

// SessionRepository persists the address of the connected wallet across
// restarts. GetAddress returns an empty string and no error when nothing is
// stored.
type SessionRepository interface {
	GetType() string
	GetAddress(ctx context.Context) (string, error)
	SetAddress(ctx context.Context, address string) error
	DeleteAddress(ctx context.Context) error
	Close()
}
