package application_test

import (
	"context"
	"sync/atomic"

	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

type mockedSessionRepo struct {
	mock.Mock
}

func (m *mockedSessionRepo) GetType() string {
	args := m.Called()

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res
}

func (m *mockedSessionRepo) GetAddress(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockedSessionRepo) SetAddress(ctx context.Context, address string) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *mockedSessionRepo) DeleteAddress(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockedSessionRepo) Close() {
	m.Called()
}

// contextRepo behaves like a network backed store: every call made with a
// done context fails.
type contextRepo struct {
	domain.SessionRepository
}

func (r *contextRepo) GetType() string {
	return "redis"
}

func (r *contextRepo) GetAddress(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.SessionRepository.GetAddress(ctx)
}

func (r *contextRepo) SetAddress(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.SessionRepository.SetAddress(ctx, address)
}

func (r *contextRepo) DeleteAddress(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.SessionRepository.DeleteAddress(ctx)
}

// gatedConnector holds every handshake until release is closed. When
// resumeRelease is set, Resume is held too and signals resuming once entered.
type gatedConnector struct {
	release       chan struct{}
	resumeRelease chan struct{}
	resuming      chan struct{}
	calls         int32
	identity      domain.Identity
}

func newGatedConnector() *gatedConnector {
	return &gatedConnector{
		release:  make(chan struct{}),
		resuming: make(chan struct{}, 1),
		identity: demoIdentity,
	}
}

func (c *gatedConnector) GetType() string {
	return "gated"
}

func (c *gatedConnector) Connect(ctx context.Context) (*domain.Identity, error) {
	atomic.AddInt32(&c.calls, 1)

	select {
	case <-c.release:
		identity := c.identity
		return &identity, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *gatedConnector) Resume(_ context.Context, address string) (*domain.Identity, error) {
	if c.resumeRelease != nil {
		c.resuming <- struct{}{}
		<-c.resumeRelease
	}
	return &domain.Identity{
		Address:     address,
		Balance:     c.identity.Balance,
		DisplayName: c.identity.DisplayName,
	}, nil
}

func (c *gatedConnector) numOfCalls() int {
	return int(atomic.LoadInt32(&c.calls))
}
