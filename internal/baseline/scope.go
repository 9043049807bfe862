package baseline

import (
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
)

// TxScope selects who owns the transaction an update is written in.
// It is implemented only by SelfManaged and CallerTx.
type TxScope interface {
	txScope()
}

// SelfManaged makes the engine open, commit and roll back its own transaction.
type SelfManaged struct{}

// CallerTx writes through a transaction the caller has opened. The engine
// never commits or rolls it back.
type CallerTx struct {
	Tx datastore.Repository
}

func (SelfManaged) txScope() {}
func (CallerTx) txScope()    {}
