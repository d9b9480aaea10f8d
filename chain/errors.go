package chain

import "fmt"

// Transaction errors
var (
	ErrFromAddressZero   = fmt.Errorf("from address cannot be zero")
	ErrSendFailed        = fmt.Errorf("send transaction failed")
	ErrTxReverted        = fmt.Errorf("tx reverted")
	ErrReceiptTimeout    = fmt.Errorf("tx receipt did not show up in time")
	ErrNoContractAddress = fmt.Errorf("creation receipt carries no contract address")
	ErrHookRejected      = fmt.Errorf("tx rejected by hook")
)

// Fork node errors
var (
	ErrForkUnavailable = fmt.Errorf("fork node unavailable")
	ErrRevertFailed    = fmt.Errorf("fork node refused to revert to snapshot")
	ErrUnknownFlavor   = fmt.Errorf("unknown fork node flavor")
)

// Account errors
var (
	ErrAccountIndex   = fmt.Errorf("account index out of range")
	ErrUnknownAccount = fmt.Errorf("account is not unlocked on the fork, use force to impersonate it")
)
