// Package p2p gossips chain state among nodes over websocket connections:
// a compact state snapshot on first connect, then new blocks and new
// transactions as they occur. Message handling never crashes the process —
// unrecognized messages and failed bootstraps are logged and the offending
// connection or peer is dropped.
package p2p

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"nexapow/internal/chain"
	"nexapow/internal/chainerrors"
	"nexapow/internal/core"
)

// BlockListener is notified whenever a peer announces a block, so the
// miner can raise its cancellation flag. Satisfied by *miner.Miner.
type BlockListener interface {
	NotifyPeerBlock()
}

// Node is the peer-to-peer gossip endpoint for one chain instance. It
// accepts inbound connections, dials outbound peers, and relays every
// locally produced block or transaction to whoever is connected.
type Node struct {
	Chain    *chain.Chain
	OnBlock  BlockListener // may be nil (e.g. a passive, non-mining node)
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*websocket.Conn

	log *logrus.Entry
}

func New(c *chain.Chain, onBlock BlockListener) *Node {
	return &Node{
		Chain:   c,
		OnBlock: onBlock,
		peers:   make(map[string]*websocket.Conn),
		log:     logrus.WithField("component", "p2p"),
	}
}

// ListenAndServe accepts inbound websocket connections on addr (e.g.
// ":10000") until ctx is cancelled.
func (n *Node) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := n.upgrader.Upgrade(w, r, nil)
		if err != nil {
			n.log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		n.handleInbound(conn)
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("p2p listener on %s: %w", addr, err)
		}
		return nil
	}
}

func (n *Node) handleInbound(conn *websocket.Conn) {
	sessionID := uuid.NewString()
	n.addPeer(sessionID, conn)
	log := n.log.WithField("peer", sessionID)
	log.Info("inbound peer connected")

	if n.Chain.Synced() {
		snap, err := n.Chain.Save()
		if err != nil {
			log.WithError(err).Error("failed to snapshot chain for new peer")
		} else if err := conn.WriteJSON(stateMessage(snap)); err != nil {
			log.WithError(err).Warn("failed to send state snapshot to new peer")
		} else {
			log.Info("sent state snapshot to new peer")
		}
	}

	n.readLoop(sessionID, conn)
}

// Dial connects outbound to a peer and begins reading its gossip. It does
// not block waiting for the chain to sync — call WaitSynced for that.
func (n *Node) Dial(addr string) error {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("dialing peer %s: %w", addr, err)
	}
	sessionID := uuid.NewString()
	n.addPeer(sessionID, conn)
	n.log.WithField("peer", sessionID).WithField("addr", addr).Info("connected to peer")
	go n.readLoop(sessionID, conn)
	return nil
}

func (n *Node) addPeer(id string, conn *websocket.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[id] = conn
}

func (n *Node) dropPeer(id string) {
	n.mu.Lock()
	conn, ok := n.peers[id]
	delete(n.peers, id)
	n.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

func (n *Node) readLoop(sessionID string, conn *websocket.Conn) {
	log := n.log.WithField("peer", sessionID)
	defer n.dropPeer(sessionID)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Info("peer connection closed")
			return
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			log.WithError(err).Warn("dropping connection: unrecognized message")
			return
		}
		if err := n.handleMessage(log, msg); err != nil {
			log.WithError(err).Warn("dropping connection: failed to handle message")
			return
		}
	}
}

// HandleMessage processes a single decoded message as if it had just
// arrived on a connection. Exported for tests; production code reaches it
// only through readLoop.
func (n *Node) HandleMessage(msg Message) error {
	return n.handleMessage(n.log, msg)
}

func (n *Node) handleMessage(log *logrus.Entry, msg Message) error {
	switch {
	case msg.State != nil:
		if n.Chain.Synced() {
			log.Debug("ignoring state snapshot: already synced")
			return nil
		}
		if err := n.Chain.LoadSnapshotInto(*msg.State); err != nil {
			return fmt.Errorf("%w: %v", chainerrors.ErrBootstrapFailed, err)
		}
		log.Info("synced from peer state snapshot")
		return nil

	case msg.NewBlock != nil:
		log.WithField("number", msg.NewBlock.Number).Info("peer announced a block")
		n.Chain.BufferPeerBlock(*msg.NewBlock)
		if n.OnBlock != nil {
			n.OnBlock.NotifyPeerBlock()
		}
		return nil

	case msg.NewTx != nil:
		log.Debug("peer sent a transaction")
		n.Chain.AppendPendingTx(*msg.NewTx)
		return nil

	default:
		return chainerrors.ErrUnknownMessage
	}
}

// BroadcastBlock gossips a locally mined block to every connected peer.
func (n *Node) BroadcastBlock(b core.Block) {
	n.broadcast(newBlockMessage(b))
}

// BroadcastTx gossips a locally submitted transaction to every connected
// peer.
func (n *Node) BroadcastTx(tx core.Transaction) {
	n.broadcast(newTxMessage(tx))
}

func (n *Node) broadcast(msg Message) {
	n.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(n.peers))
	ids := make([]string, 0, len(n.peers))
	for id, conn := range n.peers {
		conns = append(conns, conn)
		ids = append(ids, id)
	}
	n.mu.Unlock()

	for i, conn := range conns {
		if err := conn.WriteJSON(msg); err != nil {
			n.log.WithField("peer", ids[i]).WithError(err).Warn("failed to gossip message, dropping peer")
			n.dropPeer(ids[i])
		}
	}
}

// WaitSynced blocks, polling once a second, until the chain reports synced
// or ctx is cancelled — the bootstrap behavior for a node started with
// --peers.
func (n *Node) WaitSynced(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if n.Chain.Synced() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", chainerrors.ErrNotSynced, ctx.Err())
		case <-ticker.C:
		}
	}
}
