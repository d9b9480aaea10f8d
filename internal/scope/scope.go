// Package scope memoizes fixture values for the lifetime of a scope (one
// test, or the whole run). A record is created before its provider runs, so
// asking for a key whose record is still pending means the fixture graph
// looped back on itself.
package scope

import (
	"fmt"
	"sync"
	"time"
)

var (
	// ErrInProgress is returned when creating a key whose provider is still running
	ErrInProgress = fmt.Errorf("fixture is already being set up in this scope")

	// ErrExists is returned when creating a key that already settled
	ErrExists = fmt.Errorf("fixture already set up in this scope")

	// ErrKeyNotFound is returned when looking up a non-existent key
	ErrKeyNotFound = fmt.Errorf("fixture not set up in this scope")
)

// Status represents the status of a memoized fixture
type Status int

const (
	StatusPending  Status = iota // provider is running
	StatusResolved               // provider returned a value
	StatusFailed                 // provider returned an error
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record stores the outcome of one fixture in one scope
type Record struct {
	Key       string
	Status    Status
	Value     any
	Error     error
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store holds the records of a single scope. It is safe for concurrent use.
type Store struct {
	name string

	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

// NewStore creates an empty store; name identifies the scope in errors
func NewStore(name string) *Store {
	return &Store{
		name:    name,
		records: make(map[string]*Record),
	}
}

// Name returns the scope name
func (s *Store) Name() string {
	return s.name
}

// Get retrieves an existing record by key
func (s *Store) Get(key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[key]
	if !exists {
		return nil, ErrKeyNotFound
	}
	return record, nil
}

// Create creates a pending record. If the key exists the existing record is
// returned with ErrInProgress while it is pending and ErrExists once settled.
func (s *Store) Create(key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.records[key]; exists {
		if existing.Status == StatusPending {
			return existing, ErrInProgress
		}
		return existing, ErrExists
	}

	now := time.Now()
	record := &Record{
		Key:       key,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[key] = record
	s.order = append(s.order, key)
	return record, nil
}

// Resolve settles a pending record with a value
func (s *Store) Resolve(key string, value any) error {
	return s.settle(key, StatusResolved, value, nil)
}

// Fail settles a pending record with an error
func (s *Store) Fail(key string, err error) error {
	return s.settle(key, StatusFailed, nil, err)
}

func (s *Store) settle(key string, status Status, value any, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[key]
	if !exists {
		return ErrKeyNotFound
	}
	record.Status = status
	record.Value = value
	record.Error = err
	record.UpdatedAt = time.Now()
	return nil
}

// Delete removes a record by key
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[key]; !exists {
		return
	}
	delete(s.records, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in creation order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Size returns the number of records in the store
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
