package application

import (
	"context"

	"github.com/Da-devs/dPay/internal/core/domain"
)

// Service is the session manager: the single owner and writer of the wallet
// session. Views only read snapshots or subscribe to updates.
type Service interface {
	// Restore is meant to be called once at start-up. It reconnects the
	// session from the persisted address, if any, without any handshake.
	Restore(ctx context.Context) error
	// Connect runs the wallet handshake. Calls made while a handshake is
	// pending join it and share its outcome.
	Connect(ctx context.Context) (domain.Session, error)
	// Disconnect clears the session and aborts any pending handshake.
	Disconnect(ctx context.Context) domain.Session
	GetSession() domain.Session
	GetSnapshot() Snapshot
	Subscribe() (id string, updates <-chan SessionUpdate)
	Unsubscribe(id string)
	GetReceiveInfo(amount, note string) (*ReceiveInfo, error)
	Close()
}

// Snapshot is a session together with the state machine status, both read
// at the same instant.
type Snapshot struct {
	Session domain.Session       `json:"session"`
	Status  domain.SessionStatus `json:"status"`
}

type SessionUpdate struct {
	Event domain.SessionEvent
	Snapshot
}

type ReceiveInfo struct {
	Address      string `json:"address"`
	PaymentLink  string `json:"paymentLink"`
	ExplorerLink string `json:"explorerLink"`
}
