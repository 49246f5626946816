package domain

import (
	"errors"
	"fmt"
)

const (
	UserRejected        ConnectionErrorKind = "user_rejected"
	ProviderUnavailable ConnectionErrorKind = "provider_unavailable"
	NetworkMismatch     ConnectionErrorKind = "network_mismatch"
	ConnectTimeout      ConnectionErrorKind = "timeout"
	ConnectCanceled     ConnectionErrorKind = "canceled"

	CameraPermissionDenied ScanErrorKind = "camera_permission_denied"
	NoCameraAvailable      ScanErrorKind = "no_camera"
)

var (
	ErrUserRejected        = errors.New("user rejected the connection request")
	ErrProviderUnavailable = errors.New("no wallet provider available")
	ErrNetworkMismatch     = errors.New("wallet is on the wrong network")
	ErrConnectTimeout      = errors.New("wallet connection timed out")
	ErrConnectCanceled     = errors.New("wallet connection canceled")

	ErrNotConnected = errors.New("wallet not connected")
)

var connectionErrorsByKind = map[ConnectionErrorKind]error{
	UserRejected:        ErrUserRejected,
	ProviderUnavailable: ErrProviderUnavailable,
	NetworkMismatch:     ErrNetworkMismatch,
	ConnectTimeout:      ErrConnectTimeout,
	ConnectCanceled:     ErrConnectCanceled,
}

type ConnectionErrorKind string

// ConnectionError is returned by a failed handshake. Err, when set, is the
// underlying cause reported by the connector.
type ConnectionError struct {
	Kind ConnectionErrorKind
	Err  error
}

func NewConnectionError(kind ConnectionErrorKind, err error) *ConnectionError {
	return &ConnectionError{kind, err}
}

func (e *ConnectionError) Error() string {
	msg := string(e.Kind)
	if sentinel, ok := connectionErrorsByKind[e.Kind]; ok {
		msg = sentinel.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrConnectCanceled) and friends work on typed errors.
func (e *ConnectionError) Is(target error) bool {
	sentinel, ok := connectionErrorsByKind[e.Kind]
	return ok && sentinel == target
}

// StorageError reports a failure of the persisted session store. It is never
// fatal: the session manager falls back to memory for the rest of the run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s failed: %s", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type ScanErrorKind string

// ScanError is surfaced by the QR decoding collaborator.
type ScanError struct {
	Kind ScanErrorKind
}

func (e *ScanError) Error() string {
	switch e.Kind {
	case CameraPermissionDenied:
		return "camera permission denied"
	case NoCameraAvailable:
		return "no camera available"
	default:
		return fmt.Sprintf("scan failed: %s", e.Kind)
	}
}
