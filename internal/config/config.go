package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Da-devs/dPay/internal/core/application"
	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/Da-devs/dPay/internal/core/ports"
	scheduler "github.com/Da-devs/dPay/internal/infrastructure/scheduler/gocron"
	badgerstore "github.com/Da-devs/dPay/internal/infrastructure/session-store/badger"
	filestore "github.com/Da-devs/dPay/internal/infrastructure/session-store/file"
	inmemorystore "github.com/Da-devs/dPay/internal/infrastructure/session-store/inmemory"
	redisstore "github.com/Da-devs/dPay/internal/infrastructure/session-store/redis"
	demowallet "github.com/Da-devs/dPay/internal/infrastructure/wallet/demo"
	evmwallet "github.com/Da-devs/dPay/internal/infrastructure/wallet/evm"
	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	supportedSessionStores = supportedType{
		inmemorystore.StoreType: {},
		filestore.StoreType:     {},
		badgerstore.StoreType:   {},
		redisstore.StoreType:    {},
	}
	supportedConnectors = supportedType{
		demowallet.ConnectorType: {},
	}
)

type Config struct {
	Datadir  string
	Port     uint32
	LogLevel int

	SessionStoreType        string
	ConnectorType           string
	ConnectDelay            time.Duration
	ConnectTimeout          time.Duration
	RedisUrl                string
	RedisPrefix             string
	ValidateRestoredAddress bool
	RequireAddressChecksum  bool
	PaymentLinkBaseUrl      string
	ExplorerBaseUrl         string

	repo         domain.SessionRepository
	fallbackRepo domain.SessionRepository
	connector    ports.WalletConnector
	validator    ports.AddressValidator
	svc          application.Service
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir                 = "DATADIR"
	Port                    = "PORT"
	LogLevel                = "LOG_LEVEL"
	SessionStoreType        = "SESSION_STORE_TYPE"
	ConnectorType           = "CONNECTOR_TYPE"
	ConnectDelay            = "CONNECT_DELAY"
	ConnectTimeout          = "CONNECT_TIMEOUT"
	RedisUrl                = "REDIS_URL"
	RedisPrefix             = "REDIS_PREFIX"
	ValidateRestoredAddress = "VALIDATE_RESTORED_ADDRESS"
	RequireAddressChecksum  = "REQUIRE_ADDRESS_CHECKSUM"
	PaymentLinkBaseUrl      = "PAYMENT_LINK_BASE_URL"
	ExplorerBaseUrl         = "EXPLORER_BASE_URL"

	defaultDatadir                 = btcutil.AppDataDir("dpay", false)
	DefaultPort                    = 7080
	defaultLogLevel                = 4
	defaultSessionStoreType        = filestore.StoreType
	defaultConnectorType           = demowallet.ConnectorType
	defaultConnectDelay            = demowallet.DefaultDelay
	defaultConnectTimeout          = 2 * time.Minute
	defaultRedisPrefix             = redisstore.DefaultPrefix
	defaultValidateRestoredAddress = false
	defaultRequireAddressChecksum  = true
	defaultPaymentLinkBaseUrl      = application.DefaultPaymentLinkBaseURL
	defaultExplorerBaseUrl         = application.DefaultExplorerBaseURL
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("DPAY")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(SessionStoreType, defaultSessionStoreType)
	viper.SetDefault(ConnectorType, defaultConnectorType)
	viper.SetDefault(ConnectDelay, defaultConnectDelay)
	viper.SetDefault(ConnectTimeout, defaultConnectTimeout)
	viper.SetDefault(RedisPrefix, defaultRedisPrefix)
	viper.SetDefault(ValidateRestoredAddress, defaultValidateRestoredAddress)
	viper.SetDefault(RequireAddressChecksum, defaultRequireAddressChecksum)
	viper.SetDefault(PaymentLinkBaseUrl, defaultPaymentLinkBaseUrl)
	viper.SetDefault(ExplorerBaseUrl, defaultExplorerBaseUrl)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	return &Config{
		Datadir:                 viper.GetString(Datadir),
		Port:                    viper.GetUint32(Port),
		LogLevel:                viper.GetInt(LogLevel),
		SessionStoreType:        viper.GetString(SessionStoreType),
		ConnectorType:           viper.GetString(ConnectorType),
		ConnectDelay:            viper.GetDuration(ConnectDelay),
		ConnectTimeout:          viper.GetDuration(ConnectTimeout),
		RedisUrl:                viper.GetString(RedisUrl),
		RedisPrefix:             viper.GetString(RedisPrefix),
		ValidateRestoredAddress: viper.GetBool(ValidateRestoredAddress),
		RequireAddressChecksum:  viper.GetBool(RequireAddressChecksum),
		PaymentLinkBaseUrl:      viper.GetString(PaymentLinkBaseUrl),
		ExplorerBaseUrl:         viper.GetString(ExplorerBaseUrl),
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// Validate checks the config and builds every service out of it. It must be
// called before AppService.
func (c *Config) Validate() error {
	if !supportedSessionStores.supports(c.SessionStoreType) {
		return fmt.Errorf("session store type not supported, please select one of: %s", supportedSessionStores)
	}
	if !supportedConnectors.supports(c.ConnectorType) {
		return fmt.Errorf("connector type not supported, please select one of: %s", supportedConnectors)
	}
	if c.ConnectDelay < 0 {
		return fmt.Errorf("invalid connect delay, must not be negative")
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("invalid connect timeout, must not be negative")
	}
	if c.ConnectTimeout > 0 && c.ConnectTimeout <= c.ConnectDelay {
		return fmt.Errorf("invalid connect timeout, must be greater than connect delay")
	}
	if c.SessionStoreType == redisstore.StoreType && len(c.RedisUrl) <= 0 {
		return fmt.Errorf("REDIS_URL not provided")
	}

	if err := c.sessionRepository(); err != nil {
		return err
	}
	if err := c.walletConnector(); err != nil {
		return err
	}
	c.addressValidator()
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) sessionRepository() error {
	fallbackRepo, err := inmemorystore.NewSessionStore()
	if err != nil {
		return err
	}

	var repo domain.SessionRepository
	switch c.SessionStoreType {
	case inmemorystore.StoreType:
		repo = fallbackRepo
	case filestore.StoreType:
		repo, err = filestore.NewSessionStore(c.Datadir)
	case badgerstore.StoreType:
		repo, err = badgerstore.NewSessionStore(c.Datadir, log.New(), scheduler.NewScheduler())
	case redisstore.StoreType:
		repo, err = redisstore.NewSessionStore(c.RedisUrl, c.RedisPrefix)
	default:
		err = fmt.Errorf("unknown session store type")
	}
	if err != nil {
		return err
	}

	c.repo = repo
	c.fallbackRepo = fallbackRepo
	return nil
}

func (c *Config) walletConnector() error {
	var svc ports.WalletConnector
	var err error
	switch c.ConnectorType {
	case demowallet.ConnectorType:
		svc, err = demowallet.NewConnector(c.ConnectDelay)
	default:
		err = fmt.Errorf("unknown connector type")
	}
	if err != nil {
		return err
	}

	c.connector = svc
	return nil
}

func (c *Config) addressValidator() {
	if !c.ValidateRestoredAddress {
		return
	}
	c.validator = evmwallet.NewAddressValidator(c.RequireAddressChecksum)
}

func (c *Config) appService() error {
	if c.repo == nil || c.connector == nil {
		return fmt.Errorf("config not validated")
	}

	svc, err := application.NewService(
		c.repo, c.fallbackRepo, c.connector, c.validator,
		application.NewLinkBuilder(c.PaymentLinkBaseUrl, c.ExplorerBaseUrl),
		c.ConnectTimeout,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
