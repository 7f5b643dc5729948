package cartclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// StorageKey is the namespace every persisted snapshot is written under.
const StorageKey = "cart-storage"

// Line is one product entry in the local cart.
type Line struct {
	ProductID   int             `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
}

// Snapshot is the persisted shape of the local cart.
type Snapshot struct {
	Items      []Line          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	LastSynced *time.Time      `json:"lastSynced"`
}

// Product is what a caller hands to AddItem.
type Product struct {
	ID          int
	Name        string
	Price       decimal.Decimal
	ImageURL    string
	Description string
}

// Store is the client-side cart. Mutations never fail; persistence errors are
// logged and exposed through LastPersistError.
type Store struct {
	mu         sync.RWMutex
	items      []Line
	totalItems int
	totalPrice decimal.Decimal
	lastSynced *time.Time

	storage    Storage
	logg       *logger.Logger
	persistErr error
}

// NewStore builds an empty store. A nil storage keeps the cart in memory only.
func NewStore(storage Storage, logg *logger.Logger) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		items:      []Line{},
		totalPrice: decimal.Zero,
		storage:    storage,
		logg:       logg,
	}
}

// Load restores the persisted snapshot. A missing record yields an empty cart.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.storage.Load(ctx, StorageKey)
	if errors.Is(err, ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Line{}, snap.Items...)
	s.lastSynced = snap.LastSynced
	s.recompute()
	return nil
}

// AddItem increments an existing line or appends a new one. A zero quantity means 1.
func (s *Store) AddItem(ctx context.Context, product Product, quantity int) {
	if quantity == 0 {
		quantity = 1
	}
	s.mutate(ctx, func() {
		for i := range s.items {
			if s.items[i].ProductID == product.ID {
				s.items[i].Quantity += quantity
				return
			}
		}
		s.items = append(s.items, Line{
			ProductID:   product.ID,
			Name:        product.Name,
			Price:       product.Price,
			ImageURL:    product.ImageURL,
			Description: product.Description,
			Quantity:    quantity,
		})
	})
}

// RemoveItem drops the line for productID if present.
func (s *Store) RemoveItem(ctx context.Context, productID int) {
	s.mutate(ctx, func() {
		kept := s.items[:0]
		for _, line := range s.items {
			if line.ProductID != productID {
				kept = append(kept, line)
			}
		}
		s.items = kept
	})
}

// UpdateItemQuantity stores quantity as given, zero and negatives included.
// Unknown product ids are ignored.
func (s *Store) UpdateItemQuantity(ctx context.Context, productID, quantity int) {
	s.mutate(ctx, func() {
		for i := range s.items {
			if s.items[i].ProductID == productID {
				s.items[i].Quantity = quantity
				return
			}
		}
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func() {
		s.items = []Line{}
	})
}

// Replace swaps the cart contents wholesale.
func (s *Store) Replace(ctx context.Context, lines []Line) {
	s.mutate(ctx, func() {
		s.items = append([]Line{}, lines...)
	})
}

// MarkSynced records the last successful server round trip.
func (s *Store) MarkSynced(ctx context.Context, at time.Time) {
	s.mutate(ctx, func() {
		stamp := at.UTC()
		s.lastSynced = &stamp
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Line{}, s.items...)
}

// TotalItems returns the sum of line quantities.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalItems
}

// TotalPrice returns the sum of price times quantity over all lines.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalPrice
}

// LastPersistError reports the outcome of the most recent save.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistErr
}

func (s *Store) mutate(ctx context.Context, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.recompute()
	s.persistLocked(ctx)
}

func (s *Store) recompute() {
	total := 0
	price := decimal.Zero
	for _, line := range s.items {
		total += line.Quantity
		price = price.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	s.totalItems = total
	s.totalPrice = price
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Items:      append([]Line{}, s.items...),
		TotalItems: s.totalItems,
		TotalPrice: s.totalPrice,
	}
	if s.lastSynced != nil {
		stamp := *s.lastSynced
		snap.LastSynced = &stamp
	}
	return snap
}

func (s *Store) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(s.snapshotLocked())
	if err == nil {
		err = s.storage.Save(ctx, StorageKey, raw)
	}
	s.persistErr = err
	if err != nil {
		s.logg.Error(ctx, "failed to persist local cart", err)
	}
}
