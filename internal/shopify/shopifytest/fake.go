// Package shopifytest provides an in-memory shopify.Store for tests.
package shopifytest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

// Store is a concurrency-safe fake of shopify.Store
type Store struct {
	mu         sync.Mutex
	orders     []domain.Order
	labels     map[string]string
	metafields map[string][]domain.Metafield // by order ID
	nextID     int

	// FailSave makes SaveOrderMetafield fail for the given "namespace.key"
	FailSave map[string]error
	// Saves records every SaveOrderMetafield call
	Saves []domain.Metafield
}

// NewStore returns an empty fake store
func NewStore() *Store {
	return &Store{
		labels:     map[string]string{},
		metafields: map[string][]domain.Metafield{},
		FailSave:   map[string]error{},
		nextID:     1000,
	}
}

// AddOrder registers an order
func (s *Store) AddOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

// AddVariant registers a variant label
func (s *Store) AddVariant(variantID, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[variantID] = label
}

// SetMetafield seeds a metafield on an order and returns its ID
func (s *Store) SetMetafield(orderID string, mf domain.Metafield) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mf.ID == "" {
		mf.ID = s.newID()
	}
	s.metafields[orderID] = append(s.metafields[orderID], mf)
	return mf.ID
}

// Metafield returns the stored metafield for namespace/key
func (s *Store) Metafield(orderID, namespace, key string) (domain.Metafield, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mf := range s.metafields[orderID] {
		if mf.Namespace == namespace && mf.Key == key {
			return mf, true
		}
	}
	return domain.Metafield{}, false
}

// SaveCount returns the number of SaveOrderMetafield calls
func (s *Store) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Saves)
}

func (s *Store) FindOrderByName(ctx context.Context, name string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Name == name {
			out := o
			return &out, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: name}
}

func (s *Store) GetVariantLabel(ctx context.Context, variantID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	label, ok := s.labels[variantID]
	if !ok {
		return "", &errors.ErrNotFound{Resource: "variant", ID: variantID}
	}
	return label, nil
}

func (s *Store) ListOrderMetafields(ctx context.Context, orderID string) ([]domain.Metafield, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Metafield(nil), s.metafields[orderID]...), nil
}

func (s *Store) SaveOrderMetafield(ctx context.Context, orderID string, mf domain.Metafield) (*domain.Metafield, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saves = append(s.Saves, mf)
	if err := s.FailSave[mf.FullKey()]; err != nil {
		return nil, &errors.ErrPlatform{Op: "save metafield " + mf.FullKey(), Err: err}
	}

	list := s.metafields[orderID]
	if mf.ID != "" {
		for i := range list {
			if list[i].ID == mf.ID {
				list[i] = mf
				out := mf
				return &out, nil
			}
		}
		return nil, &errors.ErrNotFound{Resource: "metafield", ID: mf.ID}
	}
	for _, existing := range list {
		if existing.Namespace == mf.Namespace && existing.Key == mf.Key {
			return nil, fmt.Errorf("metafield %s already exists on order %s", mf.FullKey(), orderID)
		}
	}
	mf.ID = s.newID()
	s.metafields[orderID] = append(list, mf)
	out := mf
	return &out, nil
}

func (s *Store) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}
