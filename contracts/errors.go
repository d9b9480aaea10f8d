package contracts

import "fmt"

var (
	ErrNoCode           = fmt.Errorf("no contract code at address")
	ErrPackFailed       = fmt.Errorf("couldn't ABI-encode call")
	ErrCallFailed       = fmt.Errorf("contract call failed")
	ErrUnexpectedOutput = fmt.Errorf("unexpected contract call output")
)
