// Package memory is a process-local ledger store with the same locking
// contract as the PostgreSQL adapter: rows locked through a transaction stay
// locked until Commit or Rollback, and writes become visible only on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stream-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const seqLockKey = "seq:streams"

var errNotLocked = errors.New("memory: row not locked by transaction")

// Store holds committed state. Streams live in an arena indexed by StreamID.
type Store struct {
	mu          sync.Mutex
	streams     []*domain.Stream
	accounts    map[domain.Address]*domain.Account
	events      map[domain.StreamID][]domain.Event
	idempotency map[string]domain.StreamID
	locks       map[string]*rowLock
}

// rowLock is a one-slot semaphore. refs counts holders and waiters; the
// entry is dropped from Store.locks when it reaches zero.
type rowLock struct {
	ch   chan struct{}
	refs int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[domain.Address]*domain.Account),
		events:      make(map[domain.StreamID][]domain.Event),
		idempotency: make(map[string]domain.StreamID),
		locks:       make(map[string]*rowLock),
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return &Tx{
		store:    s,
		held:     make(map[string]*rowLock),
		streams:  make(map[domain.StreamID]*domain.Stream),
		accounts: make(map[domain.Address]*domain.Account),
	}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(_ context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

func (s *Store) refLock(key string) *rowLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	return l
}

func (s *Store) unrefLock(key string, l *rowLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

func idempotencyIndex(employer domain.Address, key string) string {
	return string(employer) + "|" + key
}

// Tx is a store transaction. It satisfies pgx.Tx so services can use the
// same transactor contract for both adapters; only Commit and Rollback are
// meaningful.
type Tx struct {
	pgx.Tx

	store *Store
	order []string
	held  map[string]*rowLock

	streams    map[domain.StreamID]*domain.Stream
	newStreams []domain.StreamID
	accounts   map[domain.Address]*domain.Account
	events     []domain.Event
	closed     bool
}

func asTx(tx pgx.Tx) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("memory: unsupported transaction type %T", tx)
	}
	if mtx.closed {
		return nil, pgx.ErrTxClosed
	}
	return mtx, nil
}

// lock blocks until the transaction owns key or ctx is done. Re-entrant.
func (tx *Tx) lock(ctx context.Context, key string) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}
	l := tx.store.refLock(key)
	select {
	case l.ch <- struct{}{}:
		tx.held[key] = l
		tx.order = append(tx.order, key)
		return nil
	case <-ctx.Done():
		tx.store.unrefLock(key, l)
		return fmt.Errorf("memory: acquiring lock %s: %w", key, ctx.Err())
	}
}

func (tx *Tx) holds(key string) bool {
	_, ok := tx.held[key]
	return ok
}

func (tx *Tx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		key := tx.order[i]
		l := tx.held[key]
		<-l.ch
		tx.store.unrefLock(key, l)
	}
	tx.order = nil
	tx.held = map[string]*rowLock{}
	tx.closed = true
}

// Commit publishes staged writes and releases every lock.
func (tx *Tx) Commit(_ context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	s := tx.store
	s.mu.Lock()
	for _, id := range tx.newStreams {
		st := tx.streams[id]
		s.streams = append(s.streams, st)
		if st.IdempotencyKey != nil {
			s.idempotency[idempotencyIndex(st.Employer, *st.IdempotencyKey)] = id
		}
		delete(tx.streams, id)
	}
	for id, st := range tx.streams {
		s.streams[id] = st
	}
	for addr, acc := range tx.accounts {
		s.accounts[addr] = acc
	}
	for _, e := range tx.events {
		s.events[e.StreamID] = append(s.events[e.StreamID], e)
	}
	s.mu.Unlock()

	tx.release()
	return nil
}

// Rollback discards staged writes and releases every lock.
func (tx *Tx) Rollback(_ context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.release()
	return nil
}
