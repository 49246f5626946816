package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/Da-devs/dPay/internal/core/ports"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/timshannon/badgerhold/v4"
)

const (
	StoreType = "badger"

	sessionStoreDir = "session"

	valueLogGCInterval     = 30 * time.Minute
	valueLogGCDiscardRatio = 0.5
)

type sessionEntry struct {
	Address   string
	UpdatedAt int64
}

type store struct {
	db        *badgerhold.Store
	scheduler ports.SchedulerService
}

// NewSessionStore opens the store under <baseDir>/session. An empty baseDir
// makes it an in-memory db. The optional scheduler runs the value log GC of
// on-disk dbs; the store starts it and stops it on Close.
func NewSessionStore(
	baseDir string, logger badger.Logger, scheduler ports.SchedulerService,
) (domain.SessionRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, sessionStoreDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %s", err)
	}

	if len(dir) <= 0 || scheduler == nil {
		return &store{db, nil}, nil
	}

	if err := scheduler.ScheduleTask(valueLogGCInterval, false, func() {
		err := db.Badger().RunValueLogGC(valueLogGCDiscardRatio)
		if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
			logger.Errorf("%s", err)
		}
	}); err != nil {
		//nolint:all
		db.Close()
		return nil, err
	}
	scheduler.Start()

	return &store{db, scheduler}, nil
}

func (s *store) GetType() string {
	return StoreType
}

func (s *store) GetAddress(_ context.Context) (string, error) {
	var entry sessionEntry
	err := s.db.Get(domain.WalletAddressKey, &entry)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get wallet address: %w", err)
	}
	return entry.Address, nil
}

func (s *store) SetAddress(_ context.Context, address string) error {
	entry := sessionEntry{address, time.Now().Unix()}
	if err := s.db.Upsert(domain.WalletAddressKey, entry); err != nil {
		return fmt.Errorf("failed to upsert wallet address: %w", err)
	}
	return nil
}

func (s *store) DeleteAddress(_ context.Context) error {
	err := s.db.Delete(domain.WalletAddressKey, &sessionEntry{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete wallet address: %w", err)
	}
	return nil
}

func (s *store) Close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	//nolint:all
	s.db.Close()
}

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}
