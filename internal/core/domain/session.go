package domain

import (
	"encoding/json"
	"fmt"
)

const (
	DisconnectedStatus SessionStatus = iota
	ConnectingStatus
	ConnectedStatus
)

// SessionStatus is the state of the connection state machine. Connecting is
// transient and only observable while a handshake is pending.
type SessionStatus int

func (s SessionStatus) String() string {
	switch s {
	case ConnectingStatus:
		return "connecting"
	case ConnectedStatus:
		return "connected"
	default:
		return "disconnected"
	}
}

func (s SessionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Identity is what a wallet connector hands back once a handshake succeeds.
type Identity struct {
	Address     string
	Balance     float64
	DisplayName DisplayName
}

func (i Identity) validate() error {
	if len(i.Address) <= 0 {
		return fmt.Errorf("missing address")
	}
	if i.Balance < 0 {
		return fmt.Errorf("invalid negative balance")
	}
	return nil
}

// Session is the record of whether, and as whom, the user is connected.
// It is always handled by value so that readers get a fully formed copy.
type Session struct {
	Address     string
	Balance     float64
	DisplayName DisplayName
	Connected   bool
}

func EmptySession() Session {
	return Session{DisplayName: NoDisplayName()}
}

func NewSession(identity Identity) (Session, error) {
	if err := identity.validate(); err != nil {
		return Session{}, fmt.Errorf("invalid identity: %s", err)
	}
	return Session{
		Address:     identity.Address,
		Balance:     identity.Balance,
		DisplayName: identity.DisplayName,
		Connected:   true,
	}, nil
}

// On applies the given event to the session. Events that do not change who
// is connected, and identities that are not valid, leave it untouched.
func (s *Session) On(event SessionEvent) {
	switch e := event.(type) {
	case WalletConnected:
		if next, err := NewSession(e.Identity); err == nil {
			*s = next
		}
	case SessionRestored:
		if next, err := NewSession(e.Identity); err == nil {
			*s = next
		}
	case WalletDisconnected:
		*s = EmptySession()
	}
}

func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Address     string      `json:"address"`
		Balance     float64     `json:"balance"`
		DisplayName DisplayName `json:"displayName"`
		Connected   bool        `json:"connected"`
	}{s.Address, s.Balance, s.DisplayName, s.Connected})
}

// FormatAddress shortens an address for display, ie. 0x71C7...976F.
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:6], address[len(address)-4:])
}
