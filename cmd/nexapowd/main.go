// Command nexapowd runs one blockchain node: the chain state machine,
// optionally the mining loop, and optionally the TCP/websocket peer node
// that gossips state, blocks, and transactions to other nodes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"nexapow/internal/chain"
	"nexapow/internal/miner"
	"nexapow/internal/p2p"
)

var log = logrus.WithField("component", "cli")

func main() {
	app := &cli.App{
		Name:  "nexapowd",
		Usage: "run a nexapow proof-of-work node",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "mine", Usage: "run the mining loop; otherwise print the tip height every 4 seconds"},
			&cli.BoolFlag{Name: "networked", Usage: "enable the websocket peer node"},
			&cli.IntFlag{Name: "port", Value: 10000, Usage: "listen port for --networked"},
			&cli.StringFlag{Name: "peers", Usage: "comma-separated outbound peer ports on localhost"},
			&cli.StringFlag{Name: "state", Value: "state.json", Usage: "path to load/persist the state snapshot"},
			&cli.Uint64Flag{Name: "genesis-balance", Value: 1_000_000, Usage: "starting balance for fresh seeded accounts"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("nexapowd exited with an error")
	}
}

func run(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	peerPorts := parsePeers(cctx.String("peers"))
	statePath := cctx.String("state")

	c, err := buildChain(statePath, cctx.Uint64("genesis-balance"), len(peerPorts) > 0)
	if err != nil {
		return fmt.Errorf("constructing chain: %w", err)
	}

	var m *miner.Miner
	if cctx.Bool("mine") {
		m = miner.New(c)
	}

	if cctx.Bool("networked") || len(peerPorts) > 0 {
		var listener p2p.BlockListener
		if m != nil {
			listener = m
		}
		node := p2p.New(c, listener)
		if m != nil {
			m.Broadcast = node.BroadcastBlock
		}

		addr := fmt.Sprintf(":%d", cctx.Int("port"))
		go func() {
			if err := node.ListenAndServe(ctx, addr); err != nil {
				log.WithError(err).Error("peer listener stopped")
			}
		}()

		for _, port := range peerPorts {
			peerAddr := fmt.Sprintf("ws://127.0.0.1:%d/", port)
			if err := node.Dial(peerAddr); err != nil {
				log.WithError(err).WithField("peer", peerAddr).Warn("failed to dial peer")
			}
		}

		if len(peerPorts) > 0 {
			log.Info("waiting to sync from a peer")
			if err := node.WaitSynced(ctx); err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			log.Info("synced")
		}
	}

	defer func() {
		if err := c.SaveToFile(statePath); err != nil {
			log.WithError(err).Error("failed to persist state snapshot on shutdown")
		}
	}()

	if m != nil {
		log.Info("starting mining loop")
		if err := m.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mining loop: %w", err)
		}
		return nil
	}

	return watchTip(ctx, c)
}

func watchTip(ctx context.Context, c *chain.Chain) error {
	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tip, err := c.Tip()
			if err != nil {
				log.WithError(err).Warn("no tip yet")
				continue
			}
			log.WithField("height", tip.Number).Info("current tip")
		}
	}
}

func buildChain(statePath string, genesisBalance uint64, bootstrapping bool) (*chain.Chain, error) {
	if bootstrapping {
		return chain.New(), nil
	}
	if _, err := os.Stat(statePath); err == nil {
		log.WithField("path", statePath).Info("loading chain from snapshot")
		return chain.LoadFromFile(statePath)
	}
	log.Info("no snapshot found, starting a fresh standalone chain")
	return chain.NewFresh(time.Now().Unix(), genesisBalance)
}

func parsePeers(raw string) []int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var ports []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		port, err := strconv.Atoi(part)
		if err != nil {
			log.WithField("value", part).Warn("ignoring malformed peer port")
			continue
		}
		ports = append(ports, port)
	}
	return ports
}
