package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Da-devs/dPay/internal/core/application"
	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/Da-devs/dPay/internal/core/ports"
	inmemorystore "github.com/Da-devs/dPay/internal/infrastructure/session-store/inmemory"
	demowallet "github.com/Da-devs/dPay/internal/infrastructure/wallet/demo"
	evmwallet "github.com/Da-devs/dPay/internal/infrastructure/wallet/evm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	ctx = context.Background()

	demoIdentity = domain.Identity{
		Address:     demowallet.DefaultAddress,
		Balance:     demowallet.DefaultBalance,
		DisplayName: domain.SomeDisplayName(demowallet.DefaultDisplayName),
	}
)

func TestRestore(t *testing.T) {
	t.Run("nothing persisted", func(t *testing.T) {
		svc, _ := newServiceWithDemoConnector(t, 0)

		err := svc.Restore(ctx)
		require.NoError(t, err)

		snapshot := svc.GetSnapshot()
		require.Equal(t, domain.DisconnectedStatus, snapshot.Status)
		require.Equal(t, domain.EmptySession(), snapshot.Session)
		require.Empty(t, snapshot.Session.Address)
		require.Zero(t, snapshot.Session.Balance)
		require.False(t, snapshot.Session.DisplayName.IsSet())
		require.False(t, snapshot.Session.Connected)
	})

	t.Run("persisted address", func(t *testing.T) {
		// A long handshake delay proves restore does not go through it.
		svc, repo := newServiceWithDemoConnector(t, time.Hour)
		address := "0xABC"
		err := repo.SetAddress(ctx, address)
		require.NoError(t, err)

		_, updates := svc.Subscribe()

		start := time.Now()
		err = svc.Restore(ctx)
		require.NoError(t, err)
		require.Less(t, time.Since(start), time.Second)

		session := svc.GetSession()
		require.True(t, session.Connected)
		require.Equal(t, address, session.Address)
		require.Equal(t, demowallet.DefaultBalance, session.Balance)
		require.Equal(t, domain.SomeDisplayName(demowallet.DefaultDisplayName), session.DisplayName)
		require.Equal(t, domain.ConnectedStatus, svc.GetSnapshot().Status)

		update := nextUpdate(t, updates)
		require.Equal(t, domain.SessionRestoredEventType, update.Event.Type())
		require.Equal(t, session, update.Session)
	})

	t.Run("invalid persisted address", func(t *testing.T) {
		repo, err := inmemorystore.NewSessionStore()
		require.NoError(t, err)
		connector, err := demowallet.NewConnector(0)
		require.NoError(t, err)
		svc := newService(t, repo, connector, evmwallet.NewAddressValidator(false), 0)

		err = repo.SetAddress(ctx, "not-an-address")
		require.NoError(t, err)

		err = svc.Restore(ctx)
		require.ErrorIs(t, err, application.ErrInvalidRestoredAddress)
		require.Equal(t, domain.EmptySession(), svc.GetSession())

		address, err := repo.GetAddress(ctx)
		require.NoError(t, err)
		require.Empty(t, address)
	})

	t.Run("storage read failure", func(t *testing.T) {
		repo := &mockedSessionRepo{}
		repo.On("GetType").Return("file")
		repo.On("GetAddress", mock.Anything).Return("", fmt.Errorf("permission denied"))
		repo.On("Close").Return()

		fallbackRepo, err := inmemorystore.NewSessionStore()
		require.NoError(t, err)
		connector, err := demowallet.NewConnector(0)
		require.NoError(t, err)
		svc, err := application.NewService(
			repo, fallbackRepo, connector, nil, application.NewLinkBuilder("", ""), 0,
		)
		require.NoError(t, err)
		t.Cleanup(svc.Close)

		err = svc.Restore(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.EmptySession(), svc.GetSession())

		// Writes now land in the fallback store.
		_, err = svc.Connect(ctx)
		require.NoError(t, err)
		address, err := fallbackRepo.GetAddress(ctx)
		require.NoError(t, err)
		require.Equal(t, demowallet.DefaultAddress, address)
		repo.AssertNotCalled(t, "SetAddress", mock.Anything, mock.Anything)
	})
}

func TestRestoreDoesNotBlockReaders(t *testing.T) {
	connector := newGatedConnector()
	connector.resumeRelease = make(chan struct{})
	repo, err := inmemorystore.NewSessionStore()
	require.NoError(t, err)
	err = repo.SetAddress(ctx, "0xABC")
	require.NoError(t, err)
	svc := newService(t, repo, connector, nil, 0)

	done := make(chan error, 1)
	go func() {
		done <- svc.Restore(ctx)
	}()

	select {
	case <-connector.resuming:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "restore never resumed the session")
	}

	// Readers are served while the connector is resuming.
	require.Equal(t, domain.DisconnectedStatus, svc.GetSnapshot().Status)

	// A disconnect issued meanwhile wins over the restored session.
	svc.Disconnect(ctx)
	close(connector.resumeRelease)
	require.NoError(t, <-done)
	require.Equal(t, domain.EmptySession(), svc.GetSession())
	require.Equal(t, domain.DisconnectedStatus, svc.GetSnapshot().Status)

	address, err := repo.GetAddress(ctx)
	require.NoError(t, err)
	require.Empty(t, address)
}

func TestCallerContextDoesNotReachStore(t *testing.T) {
	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	expiredCtx, cancelExpired := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancelExpired()

	fixtures := []struct {
		name string
		ctx  context.Context
	}{
		{"canceled", canceledCtx},
		{"expired", expiredCtx},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			t.Run("disconnect", func(t *testing.T) {
				store, err := inmemorystore.NewSessionStore()
				require.NoError(t, err)
				repo := &contextRepo{store}
				connector, err := demowallet.NewConnector(0)
				require.NoError(t, err)
				svc := newService(t, repo, connector, nil, 0)

				_, err = svc.Connect(ctx)
				require.NoError(t, err)

				session := svc.Disconnect(f.ctx)
				require.Equal(t, domain.EmptySession(), session)

				address, err := store.GetAddress(ctx)
				require.NoError(t, err)
				require.Empty(t, address)

				// A new process starts disconnected.
				restarted := newService(t, repo, connector, nil, 0)
				err = restarted.Restore(ctx)
				require.NoError(t, err)
				require.Equal(t, domain.EmptySession(), restarted.GetSession())

				// The store was not replaced by the in-memory one.
				_, err = svc.Connect(ctx)
				require.NoError(t, err)
				address, err = store.GetAddress(ctx)
				require.NoError(t, err)
				require.Equal(t, demowallet.DefaultAddress, address)
			})

			t.Run("restore", func(t *testing.T) {
				store, err := inmemorystore.NewSessionStore()
				require.NoError(t, err)
				err = store.SetAddress(ctx, demowallet.DefaultAddress)
				require.NoError(t, err)
				repo := &contextRepo{store}
				connector, err := demowallet.NewConnector(0)
				require.NoError(t, err)
				svc := newService(t, repo, connector, nil, 0)

				err = svc.Restore(f.ctx)
				require.NoError(t, err)
				session := svc.GetSession()
				require.True(t, session.Connected)
				require.Equal(t, demowallet.DefaultAddress, session.Address)

				// The store was not replaced by the in-memory one.
				svc.Disconnect(ctx)
				address, err := store.GetAddress(ctx)
				require.NoError(t, err)
				require.Empty(t, address)
			})
		})
	}
}

func TestConnect(t *testing.T) {
	t.Run("demo identity", func(t *testing.T) {
		svc, repo := newServiceWithDemoConnector(t, 0)
		_, updates := svc.Subscribe()

		session, err := svc.Connect(ctx)
		require.NoError(t, err)
		require.True(t, session.Connected)
		require.Equal(t, demowallet.DefaultAddress, session.Address)
		require.Equal(t, 1250.75, session.Balance)
		name, ok := session.DisplayName.Get()
		require.True(t, ok)
		require.Equal(t, "johndoe.eth", name)
		require.Equal(t, session, svc.GetSession())

		address, err := repo.GetAddress(ctx)
		require.NoError(t, err)
		require.Equal(t, demowallet.DefaultAddress, address)

		update := nextUpdate(t, updates)
		require.Equal(t, domain.ConnectStartedEventType, update.Event.Type())
		require.Equal(t, domain.ConnectingStatus, update.Status)
		require.Equal(t, domain.EmptySession(), update.Session)

		update = nextUpdate(t, updates)
		require.Equal(t, domain.WalletConnectedEventType, update.Event.Type())
		require.Equal(t, domain.ConnectedStatus, update.Status)
		require.Equal(t, session, update.Session)
	})

	t.Run("already connected", func(t *testing.T) {
		svc, _ := newServiceWithDemoConnector(t, 0)

		first, err := svc.Connect(ctx)
		require.NoError(t, err)
		second, err := svc.Connect(ctx)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Equal(t, first, svc.GetSession())
	})

	t.Run("pending connect is visible", func(t *testing.T) {
		connector := newGatedConnector()
		svc := newServiceWithConnector(t, connector, 0)

		done := make(chan error, 1)
		go func() {
			_, err := svc.Connect(ctx)
			done <- err
		}()

		requireStatus(t, svc, domain.ConnectingStatus)
		// The session keeps its previous value until the handshake completes.
		require.Equal(t, domain.EmptySession(), svc.GetSession())

		close(connector.release)
		require.NoError(t, <-done)
		require.Equal(t, domain.ConnectedStatus, svc.GetSnapshot().Status)
	})

	t.Run("concurrent calls share one handshake", func(t *testing.T) {
		connector := newGatedConnector()
		svc := newServiceWithConnector(t, connector, 0)

		numOfCallers := 5
		start := make(chan struct{})
		results := make(chan domain.Session, numOfCallers)
		wg := &sync.WaitGroup{}
		wg.Add(numOfCallers)
		for i := 0; i < numOfCallers; i++ {
			go func() {
				defer wg.Done()
				<-start
				session, err := svc.Connect(ctx)
				assert.NoError(t, err)
				results <- session
			}()
		}
		close(start)

		requireStatus(t, svc, domain.ConnectingStatus)
		time.Sleep(100 * time.Millisecond)
		close(connector.release)
		wg.Wait()
		close(results)

		require.Equal(t, 1, connector.numOfCalls())
		for session := range results {
			require.Equal(t, svc.GetSession(), session)
		}
	})

	t.Run("caller gives up without aborting the handshake", func(t *testing.T) {
		connector := newGatedConnector()
		svc := newServiceWithConnector(t, connector, 0)

		done := make(chan error, 1)
		go func() {
			_, err := svc.Connect(ctx)
			done <- err
		}()
		requireStatus(t, svc, domain.ConnectingStatus)

		shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := svc.Connect(shortCtx)
		require.ErrorIs(t, err, domain.ErrConnectTimeout)
		require.Equal(t, 1, connector.numOfCalls())
		require.Equal(t, domain.ConnectingStatus, svc.GetSnapshot().Status)

		close(connector.release)
		require.NoError(t, <-done)
		require.True(t, svc.GetSession().Connected)
	})

	t.Run("handshake timeout", func(t *testing.T) {
		connector := newGatedConnector()
		svc := newServiceWithConnector(t, connector, 50*time.Millisecond)
		_, updates := svc.Subscribe()

		session, err := svc.Connect(ctx)
		require.Error(t, err)
		require.ErrorIs(t, err, domain.ErrConnectTimeout)
		var connErr *domain.ConnectionError
		require.True(t, errors.As(err, &connErr))
		require.Equal(t, domain.ConnectTimeout, connErr.Kind)
		require.Equal(t, domain.EmptySession(), session)
		require.Equal(t, domain.DisconnectedStatus, svc.GetSnapshot().Status)

		require.Equal(t, domain.ConnectStartedEventType, nextUpdate(t, updates).Event.Type())
		update := nextUpdate(t, updates)
		require.Equal(t, domain.ConnectFailedEventType, update.Event.Type())
		require.Equal(t, domain.DisconnectedStatus, update.Status)
	})

	t.Run("storage write failure", func(t *testing.T) {
		repo := &mockedSessionRepo{}
		repo.On("GetType").Return("redis")
		repo.On("SetAddress", mock.Anything, mock.Anything).Return(fmt.Errorf("connection refused"))
		repo.On("Close").Return()

		fallbackRepo, err := inmemorystore.NewSessionStore()
		require.NoError(t, err)
		connector, err := demowallet.NewConnector(0)
		require.NoError(t, err)
		svc, err := application.NewService(
			repo, fallbackRepo, connector, nil, application.NewLinkBuilder("", ""), 0,
		)
		require.NoError(t, err)

		session, err := svc.Connect(ctx)
		require.NoError(t, err)
		require.True(t, session.Connected)

		address, err := fallbackRepo.GetAddress(ctx)
		require.NoError(t, err)
		require.Equal(t, demowallet.DefaultAddress, address)

		session = svc.Disconnect(ctx)
		require.False(t, session.Connected)
		address, err = fallbackRepo.GetAddress(ctx)
		require.NoError(t, err)
		require.Empty(t, address)
		repo.AssertNotCalled(t, "DeleteAddress", mock.Anything)

		svc.Close()
		repo.AssertCalled(t, "Close")
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		svc, repo := newServiceWithDemoConnector(t, 0)
		_, err := svc.Connect(ctx)
		require.NoError(t, err)

		_, updates := svc.Subscribe()

		session := svc.Disconnect(ctx)
		require.Equal(t, domain.EmptySession(), session)
		require.Equal(t, domain.DisconnectedStatus, svc.GetSnapshot().Status)

		address, err := repo.GetAddress(ctx)
		require.NoError(t, err)
		require.Empty(t, address)

		update := nextUpdate(t, updates)
		require.Equal(t, domain.WalletDisconnectedEventType, update.Event.Type())
		require.Equal(t, domain.EmptySession(), update.Session)
	})

	t.Run("already disconnected", func(t *testing.T) {
		svc, repo := newServiceWithDemoConnector(t, 0)
		_, updates := svc.Subscribe()

		before := svc.GetSession()
		session := svc.Disconnect(ctx)
		require.Equal(t, before, session)
		session = svc.Disconnect(ctx)
		require.Equal(t, before, session)

		address, err := repo.GetAddress(ctx)
		require.NoError(t, err)
		require.Empty(t, address)

		select {
		case update := <-updates:
			require.FailNow(t, "unexpected update", update.Event.Type())
		default:
		}
	})

	t.Run("aborts pending connect", func(t *testing.T) {
		connector := newGatedConnector()
		svc := newServiceWithConnector(t, connector, 0)
		_, updates := svc.Subscribe()

		done := make(chan error, 1)
		go func() {
			_, err := svc.Connect(ctx)
			done <- err
		}()
		requireStatus(t, svc, domain.ConnectingStatus)

		session := svc.Disconnect(ctx)
		require.Equal(t, domain.EmptySession(), session)

		err := <-done
		require.ErrorIs(t, err, domain.ErrConnectCanceled)
		require.Equal(t, domain.EmptySession(), svc.GetSession())
		require.Equal(t, domain.DisconnectedStatus, svc.GetSnapshot().Status)

		require.Equal(t, domain.ConnectStartedEventType, nextUpdate(t, updates).Event.Type())
		require.Equal(t, domain.WalletDisconnectedEventType, nextUpdate(t, updates).Event.Type())

		// A later connect starts a fresh handshake.
		close(connector.release)
		session, err = svc.Connect(ctx)
		require.NoError(t, err)
		require.True(t, session.Connected)
		require.Equal(t, 2, connector.numOfCalls())
	})
}

func TestSessionLifecycle(t *testing.T) {
	svc, repo := newServiceWithDemoConnector(t, 0)

	err := svc.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.EmptySession(), svc.GetSession())

	session, err := svc.Connect(ctx)
	require.NoError(t, err)
	require.Equal(t, demowallet.DefaultAddress, session.Address)

	session = svc.Disconnect(ctx)
	require.Equal(t, domain.EmptySession(), session)

	// Same state as a fresh start, persisted key included.
	address, err := repo.GetAddress(ctx)
	require.NoError(t, err)
	require.Empty(t, address)

	session, err = svc.Connect(ctx)
	require.NoError(t, err)
	require.True(t, session.Connected)

	// A new process restores the session from the same store.
	connector, err := demowallet.NewConnector(0)
	require.NoError(t, err)
	restarted := newService(t, repo, connector, nil, 0)
	err = restarted.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, session, restarted.GetSession())
}

func TestSnapshotsAreConsistent(t *testing.T) {
	svc, _ := newServiceWithDemoConnector(t, 0)

	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snapshot := svc.GetSnapshot()
			session := snapshot.Session
			assert.Equal(t, len(session.Address) > 0, session.Connected)
			if !session.Connected {
				assert.Zero(t, session.Balance)
				assert.False(t, session.DisplayName.IsSet())
			}
			if snapshot.Status == domain.ConnectedStatus {
				assert.True(t, session.Connected)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		_, err := svc.Connect(ctx)
		require.NoError(t, err)
		svc.Disconnect(ctx)
	}
	close(stop)
	wg.Wait()

	// Last completed operation was a disconnect.
	require.False(t, svc.GetSession().Connected)
}

func TestGetReceiveInfo(t *testing.T) {
	svc, _ := newServiceWithDemoConnector(t, 0)

	info, err := svc.GetReceiveInfo("", "")
	require.ErrorIs(t, err, domain.ErrNotConnected)
	require.Nil(t, info)

	_, err = svc.Connect(ctx)
	require.NoError(t, err)

	info, err = svc.GetReceiveInfo("10.5", "coffee & cake")
	require.NoError(t, err)
	require.Equal(t, demowallet.DefaultAddress, info.Address)
	require.Equal(
		t,
		"https://dpay.app/pay?to=0x71C7656EC7ab88b098defB751B7401B5f6d8976F&amount=10.5&note=coffee%20%26%20cake",
		info.PaymentLink,
	)
	require.Equal(
		t,
		"https://polygonscan.com/address/0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
		info.ExplorerLink,
	)

	info, err = svc.GetReceiveInfo("-1", "")
	require.ErrorIs(t, err, application.ErrInvalidAmount)
	require.Nil(t, info)
}

func TestClose(t *testing.T) {
	connector := newGatedConnector()
	repo, err := inmemorystore.NewSessionStore()
	require.NoError(t, err)
	svc := newService(t, repo, connector, nil, 0)
	_, updates := svc.Subscribe()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Connect(ctx)
		done <- err
	}()
	requireStatus(t, svc, domain.ConnectingStatus)

	svc.Close()
	require.ErrorIs(t, <-done, domain.ErrConnectCanceled)

	// Drain the connecting update, then the channel must be closed.
	for range updates {
	}

	_, err = svc.Connect(ctx)
	require.ErrorIs(t, err, application.ErrServiceClosed)
	err = svc.Restore(ctx)
	require.ErrorIs(t, err, application.ErrServiceClosed)

	// Closing twice is harmless.
	svc.Close()
}

func TestNewService(t *testing.T) {
	repo, err := inmemorystore.NewSessionStore()
	require.NoError(t, err)
	connector, err := demowallet.NewConnector(0)
	require.NoError(t, err)
	links := application.NewLinkBuilder("", "")

	fixtures := []struct {
		name         string
		repo         domain.SessionRepository
		fallbackRepo domain.SessionRepository
		connector    ports.WalletConnector
	}{
		{"missing repo", nil, repo, connector},
		{"missing fallback repo", repo, nil, connector},
		{"missing connector", repo, repo, nil},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			svc, err := application.NewService(f.repo, f.fallbackRepo, f.connector, nil, links, 0)
			require.Error(t, err)
			require.Nil(t, svc)
		})
	}
}

func newServiceWithDemoConnector(
	t *testing.T, delay time.Duration,
) (application.Service, domain.SessionRepository) {
	repo, err := inmemorystore.NewSessionStore()
	require.NoError(t, err)
	connector, err := demowallet.NewConnector(delay)
	require.NoError(t, err)
	return newService(t, repo, connector, nil, 0), repo
}

func newServiceWithConnector(
	t *testing.T, connector ports.WalletConnector, timeout time.Duration,
) application.Service {
	repo, err := inmemorystore.NewSessionStore()
	require.NoError(t, err)
	return newService(t, repo, connector, nil, timeout)
}

func newService(
	t *testing.T, repo domain.SessionRepository, connector ports.WalletConnector,
	validator ports.AddressValidator, timeout time.Duration,
) application.Service {
	fallbackRepo, err := inmemorystore.NewSessionStore()
	require.NoError(t, err)
	svc, err := application.NewService(
		repo, fallbackRepo, connector, validator, application.NewLinkBuilder("", ""), timeout,
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func nextUpdate(t *testing.T, updates <-chan application.SessionUpdate) application.SessionUpdate {
	select {
	case update, ok := <-updates:
		require.True(t, ok, "updates channel closed")
		return update
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for session update")
	}
	return application.SessionUpdate{}
}

func requireStatus(t *testing.T, svc application.Service, status domain.SessionStatus) {
	require.Eventually(t, func() bool {
		return svc.GetSnapshot().Status == status
	}, 2*time.Second, 5*time.Millisecond)
}
