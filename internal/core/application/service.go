package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/Da-devs/dPay/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// Store I/O is bounded by its own deadline, never by the caller's context.
const storeOpTimeout = 10 * time.Second

var (
	ErrServiceClosed          = fmt.Errorf("session service closed")
	ErrInvalidRestoredAddress = fmt.Errorf("persisted wallet address is not valid")
)

type connectAttempt struct {
	done   chan struct{}
	cancel context.CancelFunc

	// set once, before done is closed
	session domain.Session
	err     error
}

type sessionService struct {
	// services
	repo         domain.SessionRepository
	primaryRepo  domain.SessionRepository
	fallbackRepo domain.SessionRepository
	connector    ports.WalletConnector
	validator    ports.AddressValidator
	links        LinkBuilder

	// config
	connectTimeout time.Duration

	lock    *sync.RWMutex
	session domain.Session
	status  domain.SessionStatus
	pending *connectAttempt
	closed  bool
	// bumped by every connect or disconnect, a restore started before a
	// change must not override it
	epoch uint64

	updates *broker[SessionUpdate]
}

// NewService returns the session manager. fallbackRepo is used in place of
// repo for the rest of the run as soon as repo fails. validator is optional
// and, when given, is applied to persisted addresses on Restore.
func NewService(
	repo, fallbackRepo domain.SessionRepository,
	connector ports.WalletConnector, validator ports.AddressValidator,
	links LinkBuilder, connectTimeout time.Duration,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing session repository")
	}
	if fallbackRepo == nil {
		return nil, fmt.Errorf("missing fallback session repository")
	}
	if connector == nil {
		return nil, fmt.Errorf("missing wallet connector")
	}

	return &sessionService{
		repo:           repo,
		primaryRepo:    repo,
		fallbackRepo:   fallbackRepo,
		connector:      connector,
		validator:      validator,
		links:          links,
		connectTimeout: connectTimeout,
		lock:           &sync.RWMutex{},
		session:        domain.EmptySession(),
		status:         domain.DisconnectedStatus,
		updates:        newBroker[SessionUpdate](),
	}, nil
}

func (s *sessionService) Restore(ctx context.Context) error {
	s.lock.RLock()
	if s.closed {
		s.lock.RUnlock()
		return ErrServiceClosed
	}
	if s.status != domain.DisconnectedStatus {
		s.lock.RUnlock()
		return nil
	}
	repo, epoch := s.repo, s.epoch
	s.lock.RUnlock()

	storeCtx, cancel := storeContext(ctx)
	address, err := repo.GetAddress(storeCtx)
	cancel()
	if err != nil {
		s.lock.Lock()
		s.useFallbackRepo(repo, &domain.StorageError{Op: "read", Err: err})
		s.lock.Unlock()
		return nil
	}
	if len(address) <= 0 {
		log.Debug("no persisted wallet session found")
		return nil
	}

	if s.validator != nil && !s.validator.IsValidAddress(address) {
		log.WithField("address", address).Warn("discarding invalid persisted wallet address")
		s.lock.Lock()
		if s.epoch == epoch {
			s.deletePersistedAddress(ctx)
		}
		s.lock.Unlock()
		return ErrInvalidRestoredAddress
	}

	identity, err := s.connector.Resume(ctx, address)
	if err != nil {
		return toConnectionError(err)
	}
	if _, err := domain.NewSession(*identity); err != nil {
		return domain.NewConnectionError(domain.ProviderUnavailable, err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrServiceClosed
	}
	if s.epoch != epoch || s.status != domain.DisconnectedStatus {
		log.Debug("wallet session changed while restoring, discarding restored session")
		return nil
	}
	s.apply(
		domain.SessionRestored{Identity: *identity, Timestamp: time.Now().Unix()},
		domain.ConnectedStatus,
	)

	log.WithField("address", domain.FormatAddress(address)).Info("wallet session restored")
	return nil
}

func (s *sessionService) Connect(ctx context.Context) (domain.Session, error) {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return domain.EmptySession(), ErrServiceClosed
	}
	attempt := s.pending
	if attempt == nil {
		attempt = s.startConnect()
	} else {
		log.Debug("wallet connection already in progress, joining it")
	}
	s.lock.Unlock()

	select {
	case <-attempt.done:
		return attempt.session, attempt.err
	case <-ctx.Done():
		return s.GetSession(), toConnectionError(ctx.Err())
	}
}

func (s *sessionService) Disconnect(ctx context.Context) domain.Session {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return s.session
	}

	changed := s.status != domain.DisconnectedStatus
	s.epoch++
	if s.pending != nil {
		log.Debug("aborting pending wallet connection")
		s.pending.cancel()
		s.pending = nil
	}

	// The entry is removed even when already disconnected, a stale one must
	// never survive a disconnect.
	s.deletePersistedAddress(ctx)

	if !changed {
		return s.session
	}

	s.apply(domain.WalletDisconnected{Timestamp: time.Now().Unix()}, domain.DisconnectedStatus)

	log.Info("wallet disconnected")
	return s.session
}

func (s *sessionService) GetSession() domain.Session {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.session
}

func (s *sessionService) GetSnapshot() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return Snapshot{Session: s.session, Status: s.status}
}

func (s *sessionService) Subscribe() (string, <-chan SessionUpdate) {
	return s.updates.subscribe()
}

func (s *sessionService) Unsubscribe(id string) {
	s.updates.unsubscribe(id)
}

func (s *sessionService) GetReceiveInfo(amount, note string) (*ReceiveInfo, error) {
	session := s.GetSession()
	if !session.Connected {
		return nil, domain.ErrNotConnected
	}

	paymentLink, err := s.links.PaymentLink(session.Address, amount, note)
	if err != nil {
		return nil, err
	}

	return &ReceiveInfo{
		Address:      session.Address,
		PaymentLink:  paymentLink,
		ExplorerLink: s.links.ExplorerLink(session.Address),
	}, nil
}

func (s *sessionService) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.pending != nil {
		s.pending.cancel()
		s.pending = nil
	}
	s.updates.close()

	s.primaryRepo.Close()
	if s.fallbackRepo != s.primaryRepo {
		s.fallbackRepo.Close()
	}
}

// startConnect must be called with the lock held.
func (s *sessionService) startConnect() *connectAttempt {
	var ctx context.Context
	var cancel context.CancelFunc
	if s.connectTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.connectTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	attempt := &connectAttempt{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.pending = attempt
	s.epoch++
	s.apply(domain.ConnectStarted{
		Connector: s.connector.GetType(),
		Timestamp: time.Now().Unix(),
	}, domain.ConnectingStatus)

	go s.runConnect(ctx, attempt)
	return attempt
}

func (s *sessionService) runConnect(ctx context.Context, attempt *connectAttempt) {
	defer attempt.cancel()

	identity, err := s.connector.Connect(ctx)

	s.lock.Lock()
	defer s.lock.Unlock()
	defer close(attempt.done)

	// Aborted by Disconnect or Close in the meantime, whatever the handshake
	// returned is discarded.
	if s.pending != attempt {
		attempt.session = s.session
		attempt.err = domain.NewConnectionError(domain.ConnectCanceled, nil)
		return
	}
	s.pending = nil

	if err == nil {
		if _, err = domain.NewSession(*identity); err != nil {
			err = domain.NewConnectionError(domain.ProviderUnavailable, err)
		}
	}
	if err != nil {
		connErr := toConnectionError(err)
		s.apply(
			domain.ConnectFailed{Err: connErr, Timestamp: time.Now().Unix()},
			statusOf(s.session),
		)
		attempt.session = s.session
		attempt.err = connErr

		log.WithError(connErr).Warn("failed to connect wallet")
		return
	}

	s.persistAddress(identity.Address)
	s.apply(
		domain.WalletConnected{Identity: *identity, Timestamp: time.Now().Unix()},
		domain.ConnectedStatus,
	)
	attempt.session = s.session

	log.WithField("address", domain.FormatAddress(identity.Address)).Info("wallet connected")
}

// apply moves the session and the status forward then publishes the event.
// It must be called with the lock held so that updates are delivered in the
// same order the state changed.
func (s *sessionService) apply(event domain.SessionEvent, status domain.SessionStatus) {
	s.session.On(event)
	s.status = status
	s.publish(event)
}

func (s *sessionService) publish(event domain.SessionEvent) {
	s.updates.publish(SessionUpdate{
		Event:    event,
		Snapshot: Snapshot{Session: s.session, Status: s.status},
	})
}

// persistAddress and deletePersistedAddress must be called with the lock held
// so that the persisted key always follows the session.
func (s *sessionService) persistAddress(address string) {
	ctx, cancel := storeContext(context.Background())
	defer cancel()

	if err := s.repo.SetAddress(ctx, address); err != nil {
		s.useFallbackRepo(s.repo, &domain.StorageError{Op: "write", Err: err})
		if err := s.repo.SetAddress(ctx, address); err != nil {
			log.WithError(err).Warn("failed to keep wallet address in memory")
		}
	}
}

func (s *sessionService) deletePersistedAddress(ctx context.Context) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	if err := s.repo.DeleteAddress(ctx); err != nil {
		s.useFallbackRepo(s.repo, &domain.StorageError{Op: "delete", Err: err})
		//nolint:all
		s.repo.DeleteAddress(ctx)
	}
}

// useFallbackRepo must be called with the lock held. failed is the store the
// error came from, nothing changes if it was already replaced.
func (s *sessionService) useFallbackRepo(failed domain.SessionRepository, err error) {
	if failed != s.repo {
		return
	}
	if s.repo == s.fallbackRepo {
		log.WithError(err).Warn("in-memory session store failed")
		return
	}
	log.WithError(err).Warnf(
		"%s session store unavailable, falling back to %s store for this run",
		s.repo.GetType(), s.fallbackRepo.GetType(),
	)
	s.repo = s.fallbackRepo
}

// storeContext keeps the values of ctx but not its cancellation: a caller
// going away must not leave the persisted key out of sync with the session.
func storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storeOpTimeout)
}

func statusOf(session domain.Session) domain.SessionStatus {
	if session.Connected {
		return domain.ConnectedStatus
	}
	return domain.DisconnectedStatus
}

func toConnectionError(err error) error {
	var connErr *domain.ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewConnectionError(domain.ConnectTimeout, nil)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewConnectionError(domain.ConnectCanceled, nil)
	}
	return domain.NewConnectionError(domain.ProviderUnavailable, err)
}
