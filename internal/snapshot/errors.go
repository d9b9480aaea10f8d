package snapshot

import "fmt"

var (
	// ErrOutOfOrderRevert is returned when reverting a snapshot that is not the most recent one
	ErrOutOfOrderRevert = fmt.Errorf("snapshot is not the most recent one on this chain, revert snapshots in reverse order")

	// ErrUnknownSnapshot is returned when reverting a snapshot that was never taken or was already reverted
	ErrUnknownSnapshot = fmt.Errorf("unknown snapshot id")
)
