// Command readbalance connects to a running node as a passive peer, waits
// for its initial state snapshot, and prints every account's balance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"nexapow/internal/chain"
	"nexapow/internal/p2p"
)

var log = logrus.WithField("component", "cli")

func main() {
	app := &cli.App{
		Name:  "readbalance",
		Usage: "print account balances from a running node's state",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "connect", Value: "ws://127.0.0.1:10000/", Usage: "websocket address of a node to connect to"},
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "how long to wait for the state snapshot"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("readbalance failed")
	}
}

func run(cctx *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), cctx.Duration("timeout"))
	defer cancel()
	_, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := chain.New()
	node := p2p.New(c, nil)

	if err := node.Dial(cctx.String("connect")); err != nil {
		return fmt.Errorf("connecting to %s: %w", cctx.String("connect"), err)
	}

	if err := node.WaitSynced(ctx); err != nil {
		return fmt.Errorf("timed out waiting for state snapshot: %w", err)
	}

	for _, account := range c.Accounts.All() {
		fmt.Printf("%s  balance=%d  nonce=%d  is_contract=%v\n",
			account.Address, account.Balance, account.Nonce, account.IsContract())
	}
	return nil
}
