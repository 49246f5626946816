package domain

const (
	ConnectStartedEventType     = "connecting"
	WalletConnectedEventType    = "connected"
	ConnectFailedEventType      = "connect_failed"
	WalletDisconnectedEventType = "disconnected"
	SessionRestoredEventType    = "restored"
)

type SessionEvent interface {
	Type() string
	isEvent()
}

func (e ConnectStarted) isEvent()     {}
func (e WalletConnected) isEvent()    {}
func (e ConnectFailed) isEvent()      {}
func (e WalletDisconnected) isEvent() {}
func (e SessionRestored) isEvent()    {}

func (e ConnectStarted) Type() string     { return ConnectStartedEventType }
func (e WalletConnected) Type() string    { return WalletConnectedEventType }
func (e ConnectFailed) Type() string      { return ConnectFailedEventType }
func (e WalletDisconnected) Type() string { return WalletDisconnectedEventType }
func (e SessionRestored) Type() string    { return SessionRestoredEventType }

type ConnectStarted struct {
	Connector string
	Timestamp int64
}

type WalletConnected struct {
	Identity  Identity
	Timestamp int64
}

type ConnectFailed struct {
	Err       error
	Timestamp int64
}

type WalletDisconnected struct {
	Timestamp int64
}

type SessionRestored struct {
	Identity  Identity
	Timestamp int64
}
