package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Hook is called with the final tx arguments right before they are sent.
// Returning an error aborts the request without sending anything.
type Hook func(args TxArgs) error

// TxMinedHook is called once the receipt of a sent tx is available, whether
// the tx succeeded or reverted. Return an error to propagate it to the caller.
type TxMinedHook func(hash common.Hash, receipt *types.Receipt) error
