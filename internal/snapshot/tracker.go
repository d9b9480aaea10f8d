// Package snapshot keeps track of the evm snapshots taken on fork nodes.
// evm_revert discards every snapshot taken after the one reverted to, so
// isolation scopes must unwind strictly last-in first-out.
package snapshot

import (
	"sync"

	"github.com/KyberNetwork/logger"
)

// Tracker manages the open snapshot stacks of multiple chains.
// It is safe for concurrent use.
type Tracker struct {
	// stacks maps chainID -> open snapshot ids, oldest first
	stacks sync.Map // map[uint64]*stack

	// chainLocks provides per-chain locking
	chainLocks sync.Map // map[uint64]*sync.Mutex
}

type stack struct {
	ids    []string
	labels []string
}

// NewTracker creates a new snapshot tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) getChainLock(chainID uint64) *sync.Mutex {
	lock, _ := t.chainLocks.LoadOrStore(chainID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// getOrCreateStack MUST be called with the chain lock held.
func (t *Tracker) getOrCreateStack(chainID uint64) *stack {
	s, _ := t.stacks.LoadOrStore(chainID, &stack{})
	return s.(*stack)
}

// Push records a freshly taken snapshot. label names the scope that owns it
// (a test name, "module", ...) and only shows up in logs.
func (t *Tracker) Push(chainID uint64, id string, label string) int {
	lock := t.getChainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	s := t.getOrCreateStack(chainID)
	s.ids = append(s.ids, id)
	s.labels = append(s.labels, label)

	logger.WithFields(logger.Fields{
		"chain_id":    chainID,
		"snapshot_id": id,
		"scope":       label,
		"depth":       len(s.ids),
	}).Debug("snapshot: pushed")

	return len(s.ids)
}

// Tip returns the most recent open snapshot of a chain.
func (t *Tracker) Tip(chainID uint64) (id string, ok bool) {
	lock := t.getChainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	s := t.getOrCreateStack(chainID)
	if len(s.ids) == 0 {
		return "", false
	}
	return s.ids[len(s.ids)-1], true
}

// Depth returns the number of open snapshots of a chain
func (t *Tracker) Depth(chainID uint64) int {
	lock := t.getChainLock(chainID)
	lock.Lock()
	defer lock.Unlock()
	return len(t.getOrCreateStack(chainID).ids)
}

// CheckRevert verifies that id may be reverted to now, without popping it.
// Callers check first, revert on the node, then Pop.
func (t *Tracker) CheckRevert(chainID uint64, id string) error {
	lock := t.getChainLock(chainID)
	lock.Lock()
	defer lock.Unlock()
	return t.checkRevertLocked(chainID, id)
}

func (t *Tracker) checkRevertLocked(chainID uint64, id string) error {
	s := t.getOrCreateStack(chainID)
	for i := len(s.ids) - 1; i >= 0; i-- {
		if s.ids[i] != id {
			continue
		}
		if i != len(s.ids)-1 {
			logger.WithFields(logger.Fields{
				"chain_id":     chainID,
				"snapshot_id":  id,
				"scope":        s.labels[i],
				"tip_snapshot": s.ids[len(s.ids)-1],
				"tip_scope":    s.labels[len(s.labels)-1],
			}).Debug("snapshot: out of order revert rejected")
			return ErrOutOfOrderRevert
		}
		return nil
	}
	return ErrUnknownSnapshot
}

// Pop removes the tip snapshot after it was reverted on the node.
func (t *Tracker) Pop(chainID uint64, id string) error {
	lock := t.getChainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	if err := t.checkRevertLocked(chainID, id); err != nil {
		return err
	}
	s := t.getOrCreateStack(chainID)
	label := s.labels[len(s.labels)-1]
	s.ids = s.ids[:len(s.ids)-1]
	s.labels = s.labels[:len(s.labels)-1]

	logger.WithFields(logger.Fields{
		"chain_id":    chainID,
		"snapshot_id": id,
		"scope":       label,
		"depth":       len(s.ids),
	}).Debug("snapshot: popped")
	return nil
}
