package ports

import (
	"context"

	"github.com/Da-devs/dPay/internal/core/domain"
)

// WalletConnector performs the handshake with a wallet provider.
//
// Connect may block for as long as the provider needs and must honor ctx:
// once ctx is done it returns a *domain.ConnectionError of kind canceled or
// timeout. Resume rebuilds an identity from a previously persisted address
// and is expected to return without user interaction.
type WalletConnector interface {
	GetType() string
	Connect(ctx context.Context) (*domain.Identity, error)
	Resume(ctx context.Context, address string) (*domain.Identity, error)
}

// AddressValidator tells whether a persisted address is still acceptable
// before a session is restored from it.
type AddressValidator interface {
	IsValidAddress(address string) bool
}
