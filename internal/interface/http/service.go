package httpservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Da-devs/dPay/internal/config"
	interfaces "github.com/Da-devs/dPay/internal/interface"
	"github.com/Da-devs/dPay/internal/interface/http/handlers"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type service struct {
	config    Config
	appConfig *config.Config
	server    *http.Server
}

func NewService(
	svcConfig Config, appConfig *config.Config,
) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	return &service{svcConfig, appConfig, nil}, nil
}

func (s *service) Start() error {
	appSvc, err := s.appConfig.AppService()
	if err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}

	if err := appSvc.Restore(context.Background()); err != nil {
		log.WithError(err).Warn("failed to restore wallet session")
	}
	log.Infof("started app service, wallet %s", appSvc.GetSnapshot().Status)

	s.server = &http.Server{
		Addr:              s.config.address(),
		Handler:           handlers.NewRouter(appSvc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	log.Infof("started listening at %s", s.config.address())

	return nil
}

func (s *service) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		//nolint:all
		s.server.Shutdown(ctx)
		log.Info("stopped http server")
	}

	appSvc, _ := s.appConfig.AppService()
	if appSvc != nil {
		appSvc.Close()
		log.Info("stopped app service")
	}
}
