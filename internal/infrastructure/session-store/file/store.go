package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Da-devs/dPay/internal/core/domain"
)

const (
	StoreType = "file"

	stateFilename = "state.json"
)

// store keeps the session entry in a flat JSON object. Keys it does not own
// are preserved on write, so the file can be shared with other settings.
type store struct {
	filePath string
	lock     *sync.Mutex
}

func NewSessionStore(baseDir string) (domain.SessionRepository, error) {
	if len(baseDir) <= 0 {
		return nil, fmt.Errorf("missing base directory")
	}

	datadir := cleanAndExpandPath(baseDir)
	if err := makeDirectoryIfNotExists(datadir); err != nil {
		return nil, fmt.Errorf("failed to initialize datadir: %s", err)
	}
	filePath := filepath.Join(datadir, stateFilename)

	s := &store{filePath, &sync.Mutex{}}
	if _, err := s.open(); err != nil {
		return nil, fmt.Errorf("failed to open store: %s", err)
	}

	return s, nil
}

func (s *store) GetType() string {
	return StoreType
}

func (s *store) GetAddress(_ context.Context) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.open()
	if err != nil {
		return "", err
	}
	return data[domain.WalletAddressKey], nil
}

func (s *store) SetAddress(_ context.Context, address string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.open()
	if err != nil {
		return err
	}
	data = merge(data, map[string]string{domain.WalletAddressKey: address})
	if err := s.write(data); err != nil {
		return fmt.Errorf("failed to write to store: %s", err)
	}
	return nil
}

func (s *store) DeleteAddress(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.open()
	if err != nil {
		return err
	}
	if _, ok := data[domain.WalletAddressKey]; !ok {
		return nil
	}
	delete(data, domain.WalletAddressKey)
	if err := s.write(data); err != nil {
		return fmt.Errorf("failed to write to store: %s", err)
	}
	return nil
}

func (s *store) Close() {}

func (s *store) open() (map[string]string, error) {
	file, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to open store: %s", err)
		}
		data := map[string]string{}
		if err := s.write(data); err != nil {
			return nil, fmt.Errorf("failed to initialize store: %s", err)
		}
		return data, nil
	}

	data := map[string]string{}
	if len(file) <= 0 {
		return data, nil
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("failed to read file store: %s", err)
	}
	return data, nil
}

func (s *store) write(data map[string]string) error {
	jsonString, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, jsonString, 0600)
}
