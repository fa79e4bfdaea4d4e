// Package memstore is an in-memory store.Store. A unit of work runs against a
// private copy of the state while holding the store mutex and replaces the
// state only when it succeeds, so units of work are serializable and a failed
// one leaves nothing behind.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
)

type state struct {
	products     map[string]model.Product
	codes        map[string]string
	movements    []model.Movement
	orders       map[string]model.Order
	externalIDs  map[string]string
	reservations []model.Reservation
	users        map[string]model.User
}

func newState() *state {
	return &state{
		products:    map[string]model.Product{},
		codes:       map[string]string{},
		orders:      map[string]model.Order{},
		externalIDs: map[string]string{},
		users:       map[string]model.User{},
	}
}

// clone copies everything a unit of work may write. Orders are stored by
// value and their item slices are never written after insert.
func (s *state) clone() *state {
	n := &state{
		products:     make(map[string]model.Product, len(s.products)),
		codes:        make(map[string]string, len(s.codes)),
		movements:    slices.Clone(s.movements),
		orders:       make(map[string]model.Order, len(s.orders)),
		externalIDs:  make(map[string]string, len(s.externalIDs)),
		reservations: slices.Clone(s.reservations),
		users:        make(map[string]model.User, len(s.users)),
	}
	for k, v := range s.products {
		n.products[k] = v
	}
	for k, v := range s.codes {
		n.codes[k] = v
	}
	for k, v := range s.orders {
		n.orders[k] = v
	}
	for k, v := range s.externalIDs {
		n.externalIDs[k] = v
	}
	for k, v := range s.users {
		n.users[k] = v
	}
	return n
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

func New() *Store { return &Store{st: newState()} }

// PutUser seeds the identity view. Users are owned by an external system.
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) InTx(ctx context.Context, fn func(q store.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return apperr.Internal("begin unit of work", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	if err := fn(&txn{st: next}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Internal("commit unit of work", err)
	}
	s.st = next
	return nil
}

func view[T any](s *Store, fn func(q *txn) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&txn{st: s.st})
}

func update[T any](ctx context.Context, s *Store, fn func(q *txn) (T, error)) (T, error) {
	var out T
	err := s.InTx(ctx, func(q store.Querier) error {
		var err error
		out, err = fn(q.(*txn))
		return err
	})
	return out, err
}

type listed[T any] struct {
	items []T
	total int
}
