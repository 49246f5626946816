package demowallet

import (
	"context"
	"fmt"
	"time"

	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/Da-devs/dPay/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

const (
	ConnectorType = "demo"

	DefaultAddress     = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	DefaultBalance     = 1250.75
	DefaultDisplayName = "johndoe.eth"
	DefaultDelay       = 1500 * time.Millisecond
)

// connector stands in for a real wallet provider. Connect waits for the
// configured delay then hands back a fixed identity, Resume returns the same
// fabricated balance and name for whatever address it is given.
type connector struct {
	address     string
	balance     float64
	displayName domain.DisplayName
	delay       time.Duration
}

func NewConnector(delay time.Duration) (ports.WalletConnector, error) {
	return NewConnectorWithIdentity(domain.Identity{
		Address:     DefaultAddress,
		Balance:     DefaultBalance,
		DisplayName: domain.SomeDisplayName(DefaultDisplayName),
	}, delay)
}

func NewConnectorWithIdentity(
	identity domain.Identity, delay time.Duration,
) (ports.WalletConnector, error) {
	if !common.IsHexAddress(identity.Address) {
		return nil, fmt.Errorf("invalid demo address %s", identity.Address)
	}
	if delay < 0 {
		return nil, fmt.Errorf("invalid negative delay")
	}
	return &connector{
		address:     identity.Address,
		balance:     identity.Balance,
		displayName: identity.DisplayName,
		delay:       delay,
	}, nil
}

func (c *connector) GetType() string {
	return ConnectorType
}

func (c *connector) Connect(ctx context.Context) (*domain.Identity, error) {
	log.WithField("delay", c.delay).Debug("simulating wallet handshake")

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctxError(ctx)
		}
	} else if ctx.Err() != nil {
		return nil, ctxError(ctx)
	}

	return &domain.Identity{
		Address:     c.address,
		Balance:     c.balance,
		DisplayName: c.displayName,
	}, nil
}

func (c *connector) Resume(_ context.Context, address string) (*domain.Identity, error) {
	if len(address) <= 0 {
		return nil, fmt.Errorf("missing address")
	}
	return &domain.Identity{
		Address:     address,
		Balance:     c.balance,
		DisplayName: c.displayName,
	}, nil
}

func ctxError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.NewConnectionError(domain.ConnectTimeout, nil)
	}
	return domain.NewConnectionError(domain.ConnectCanceled, nil)
}
