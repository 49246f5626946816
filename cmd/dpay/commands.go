package main

import (
	"fmt"
	"os"

	"github.com/Da-devs/dPay/internal/core/domain"
	demowallet "github.com/Da-devs/dPay/internal/infrastructure/wallet/demo"
	"github.com/atotto/clipboard"
	"github.com/urfave/cli/v2"
)

var (
	delayFlag = &cli.DurationFlag{
		Name:  "delay",
		Usage: "simulated wallet handshake duration",
		Value: demowallet.DefaultDelay,
	}
	amountFlag = &cli.StringFlag{
		Name:  "amount",
		Usage: "amount to request in the payment link",
	}
	noteFlag = &cli.StringFlag{
		Name:  "note",
		Usage: "note attached to the payment link",
	}
	copyFlag = &cli.BoolFlag{
		Name:  "copy",
		Usage: "copy the address to the clipboard",
	}
	shortFlag = &cli.BoolFlag{
		Name:  "short",
		Usage: "print the shortened address, ie. 0x71C7...976F",
	}
)

var (
	connectCommand = cli.Command{
		Name:   "connect",
		Usage:  "Connect the wallet",
		Flags:  []cli.Flag{delayFlag},
		Action: connectAction,
	}
	disconnectCommand = cli.Command{
		Name:   "disconnect",
		Usage:  "Disconnect the wallet and forget the persisted session",
		Action: disconnectAction,
	}
	statusCommand = cli.Command{
		Name:   "status",
		Usage:  "Print the current wallet session",
		Action: statusAction,
	}
	receiveCommand = cli.Command{
		Name:   "receive",
		Usage:  "Print the payment and explorer links for the connected wallet",
		Flags:  []cli.Flag{amountFlag, noteFlag},
		Action: receiveAction,
	}
	addressCommand = cli.Command{
		Name:   "address",
		Usage:  "Print the address of the connected wallet",
		Flags:  []cli.Flag{copyFlag, shortFlag},
		Action: addressAction,
	}
)

func connectAction(ctx *cli.Context) error {
	delay := ctx.Duration(delayFlag.Name)
	svc, err := getSessionService(&delay)
	if err != nil {
		return err
	}
	defer svc.Close()

	if !svc.GetSession().Connected {
		fmt.Fprintln(os.Stderr, "connecting wallet...")
	}
	if _, err := svc.Connect(ctx.Context); err != nil {
		return err
	}
	return printJSON(svc.GetSnapshot())
}

func disconnectAction(ctx *cli.Context) error {
	svc, err := getSessionService(nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc.Disconnect(ctx.Context)
	return printJSON(svc.GetSnapshot())
}

func statusAction(ctx *cli.Context) error {
	svc, err := getSessionService(nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	return printJSON(svc.GetSnapshot())
}

func receiveAction(ctx *cli.Context) error {
	svc, err := getSessionService(nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	info, err := svc.GetReceiveInfo(ctx.String(amountFlag.Name), ctx.String(noteFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(info)
}

func addressAction(ctx *cli.Context) error {
	svc, err := getSessionService(nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	session := svc.GetSession()
	if !session.Connected {
		return domain.ErrNotConnected
	}

	address := session.Address
	if ctx.Bool(shortFlag.Name) {
		address = domain.FormatAddress(address)
	}
	fmt.Println(address)

	if ctx.Bool(copyFlag.Name) {
		// The full address is copied even when the short one is printed.
		if err := clipboard.WriteAll(session.Address); err != nil {
			return fmt.Errorf("failed to copy address: %s", err)
		}
		fmt.Fprintln(os.Stderr, "copied to clipboard")
	}
	return nil
}
