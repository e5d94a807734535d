// Command send constructs a signed transaction and gossips it to a running
// node: a plain transfer, a contract deployment, or a contract call — the
// three recognized shapes of a transaction's data field.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"nexapow/internal/bccrypto"
	"nexapow/internal/chain"
	"nexapow/internal/core"
	"nexapow/internal/wallet"
)

var log = logrus.WithField("component", "cli")

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{Name: "key", Required: true, Usage: "0x-prefixed hex private key of the sender"},
		&cli.StringFlag{Name: "state", Value: "state.json", Usage: "state snapshot to look up the sender's current nonce from, when --nonce is not given"},
		&cli.Int64Flag{Name: "nonce", Value: -1, Usage: "transaction nonce; defaults to looking it up from --state"},
		&cli.Uint64Flag{Name: "gas-price", Value: 1, Usage: "gas price"},
		&cli.StringFlag{Name: "connect", Value: "ws://127.0.0.1:10000/", Usage: "websocket address of a node to broadcast the transaction to"},
	}

	app := &cli.App{
		Name:  "send",
		Usage: "build, sign, and broadcast a transaction",
		Commands: []*cli.Command{
			{
				Name:  "transfer",
				Usage: "send a plain value transfer",
				Flags: append(commonFlags,
					&cli.StringFlag{Name: "to", Required: true, Usage: "recipient address"},
					&cli.Uint64Flag{Name: "amount", Required: true},
				),
				Action: runTransfer,
			},
			{
				Name:  "deploy",
				Usage: "deploy a contract",
				Flags: append(commonFlags,
					&cli.StringFlag{Name: "constructor", Required: true, Usage: "constructor source, as assembler mnemonics"},
					&cli.StringSliceFlag{Name: "var", Usage: "initial storage var as name=value, repeatable"},
				),
				Action: runDeploy,
			},
			{
				Name:  "call",
				Usage: "invoke a deployed contract",
				Flags: append(commonFlags,
					&cli.StringFlag{Name: "contract", Required: true, Usage: "contract address"},
					&cli.StringFlag{Name: "invoke", Required: true, Usage: "invocation source, as assembler mnemonics"},
				),
				Action: runCall,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("send failed")
	}
}

func runTransfer(cctx *cli.Context) error {
	priv, nonce, err := resolveSender(cctx)
	if err != nil {
		return err
	}
	to, err := bccrypto.ParseAddress(cctx.String("to"))
	if err != nil {
		return fmt.Errorf("parsing --to: %w", err)
	}
	tx, err := wallet.Transfer(priv, to, cctx.Uint64("amount"), nonce, cctx.Uint64("gas-price"))
	if err != nil {
		return err
	}
	return broadcast(cctx, *tx)
}

func runDeploy(cctx *cli.Context) error {
	priv, nonce, err := resolveSender(cctx)
	if err != nil {
		return err
	}
	vars, err := parseVars(cctx.StringSlice("var"))
	if err != nil {
		return err
	}
	tx, err := wallet.Deploy(priv, nonce, cctx.Uint64("gas-price"), cctx.String("constructor"), vars)
	if err != nil {
		return err
	}
	log.WithField("address", bccrypto.DeployAddress(priv.Address(), nonce)).Info("deploying contract at")
	return broadcast(cctx, *tx)
}

func runCall(cctx *cli.Context) error {
	priv, nonce, err := resolveSender(cctx)
	if err != nil {
		return err
	}
	contract, err := bccrypto.ParseAddress(cctx.String("contract"))
	if err != nil {
		return fmt.Errorf("parsing --contract: %w", err)
	}
	tx, err := wallet.Call(priv, contract, nonce, cctx.Uint64("gas-price"), cctx.String("invoke"))
	if err != nil {
		return err
	}
	return broadcast(cctx, *tx)
}

func resolveSender(cctx *cli.Context) (*bccrypto.PrivateKey, uint64, error) {
	priv, err := wallet.LoadPrivateKey(cctx.String("key"))
	if err != nil {
		return nil, 0, err
	}
	if n := cctx.Int64("nonce"); n >= 0 {
		return priv, uint64(n), nil
	}
	chain, err := readChainSnapshotForNonce(cctx.String("state"), priv.Address())
	if err != nil {
		return nil, 0, fmt.Errorf("looking up nonce (pass --nonce explicitly to skip this): %w", err)
	}
	return priv, chain, nil
}

func parseVars(entries []string) (map[string]int64, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]int64, len(entries))
	for _, e := range entries {
		name, valueStr, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("--var %q must have the form name=value", e)
		}
		value, err := strconv.ParseInt(valueStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--var %q: %w", e, err)
		}
		out[name] = value
	}
	return out, nil
}

func readChainSnapshotForNonce(statePath string, addr bccrypto.Address) (uint64, error) {
	c, err := chain.LoadFromFile(statePath)
	if err != nil {
		return 0, err
	}
	account, err := c.Accounts.Get(addr)
	if err != nil {
		return 0, err
	}
	return account.Nonce, nil
}

// broadcast opens a short-lived websocket connection to a running node and
// gossips tx as a single {new_tx} message. Unlike internal/p2p.Node this
// does not join the full gossip protocol — it has no chain to ingest a
// state snapshot into, so it sends and disconnects.
func broadcast(cctx *cli.Context, tx core.Transaction) error {
	log.WithField("tx", tx.TxHash()).Info("broadcasting transaction")
	addr := cctx.String("connect")
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()
	return conn.WriteJSON(struct {
		NewTx *core.Transaction `json:"new_tx"`
	}{NewTx: &tx})
}
