package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Da-devs/dPay/internal/config"
	"github.com/Da-devs/dPay/internal/core/application"
	filestore "github.com/Da-devs/dPay/internal/infrastructure/session-store/file"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var version = "alpha"

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "print debug logs",
	Value: false,
}

func main() {
	app := newApp()

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Version = version
	app.Name = "dpay CLI"
	app.Usage = "Command line interface for the dPay wallet session"
	app.Flags = []cli.Flag{verboseFlag}
	app.Commands = append(
		app.Commands,
		&connectCommand,
		&disconnectCommand,
		&statusCommand,
		&receiveCommand,
		&addressCommand,
	)

	app.Before = func(ctx *cli.Context) error {
		log.SetLevel(log.WarnLevel)
		if ctx.Bool(verboseFlag.Name) {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}
	return app
}

// getSessionService builds a session manager over the file store in
// DPAY_DATADIR, so the session survives across invocations, and restores it.
func getSessionService(connectDelay *time.Duration) (application.Service, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.SessionStoreType = filestore.StoreType
	if connectDelay != nil {
		cfg.ConnectDelay = *connectDelay
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc, err := cfg.AppService()
	if err != nil {
		return nil, err
	}
	if err := svc.Restore(context.Background()); err != nil {
		log.WithError(err).Warn("failed to restore wallet session")
	}
	return svc, nil
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}

	fmt.Println(string(jsonBytes))
	return nil
}
