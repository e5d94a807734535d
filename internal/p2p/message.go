package p2p

import (
	"encoding/json"
	"fmt"

	"nexapow/internal/chain"
	"nexapow/internal/chainerrors"
	"nexapow/internal/core"
)

// Message is the wire envelope gossiped between nodes: exactly one of
// State, NewBlock, or NewTx is set. Each envelope is framed as a single
// websocket text message.
type Message struct {
	State    *chain.Snapshot   `json:"state,omitempty"`
	NewBlock *core.Block       `json:"new_block,omitempty"`
	NewTx    *core.Transaction `json:"new_tx,omitempty"`
}

func stateMessage(snap chain.Snapshot) Message { return Message{State: &snap} }
func newBlockMessage(b core.Block) Message     { return Message{NewBlock: &b} }
func newTxMessage(tx core.Transaction) Message { return Message{NewTx: &tx} }

// kind classifies a received Message, or reports that none of the
// recognized shapes matched — a protocol violation that must be logged and
// the connection dropped, not treated as fatal.
func (m Message) kind() (string, error) {
	switch {
	case m.State != nil:
		return "state", nil
	case m.NewBlock != nil:
		return "new_block", nil
	case m.NewTx != nil:
		return "new_tx", nil
	default:
		return "", chainerrors.ErrUnknownMessage
	}
}

func decodeMessage(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", chainerrors.ErrUnknownMessage, err)
	}
	if _, err := m.kind(); err != nil {
		return Message{}, err
	}
	return m, nil
}
