package cartclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// RemoteLine is a server cart line as seen by the client.
type RemoteLine struct {
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Quantity  int             `json:"quantity"`
}

// ServerCart is the durable cart of the signed-in user.
type ServerCart interface {
	GetCart(ctx context.Context) ([]RemoteLine, error)
	AddItem(ctx context.Context, productID, quantity int) error
	RemoveItem(ctx context.Context, productID int) error
	UpdateItemQuantity(ctx context.Context, productID, quantity int) error
	Clear(ctx context.Context) error
	ReplaceItems(ctx context.Context, lines []RemoteLine) error
}

// SyncerOptions tunes a Syncer.
type SyncerOptions struct {
	// RollbackOnError restores the pre-mutation cart when the server call fails.
	RollbackOnError bool
	Logger          *logger.Logger
	Clock           func() time.Time
}

// Syncer applies mutations locally first and mirrors them to the server in the
// background when the session is authenticated.
type Syncer struct {
	store    *Store
	server   ServerCart
	logg     *logger.Logger
	rollback bool
	now      func() time.Time

	authenticated atomic.Bool
	pending       atomic.Int64
	busy          atomic.Int64
	inflight      sync.WaitGroup

	errMu  sync.RWMutex
	errMsg string
}

// NewSyncer wires a store to a server cart.
func NewSyncer(store *Store, server ServerCart, opts SyncerOptions) *Syncer {
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Syncer{
		store:    store,
		server:   server,
		logg:     logg,
		rollback: opts.RollbackOnError,
		now:      clock,
	}
}

// Store exposes the wrapped local cart.
func (s *Syncer) Store() *Store { return s.store }

// SetAuthenticated switches server mirroring on or off.
func (s *Syncer) SetAuthenticated(authenticated bool) {
	s.authenticated.Store(authenticated)
}

func (s *Syncer) Authenticated() bool {
	return s.authenticated.Load()
}

// Err returns the last recorded failure message, empty when none.
func (s *Syncer) Err() string {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.errMsg
}

// SetErr overwrites the shared error state. An empty message clears it.
func (s *Syncer) SetErr(msg string) {
	s.errMu.Lock()
	s.errMsg = msg
	s.errMu.Unlock()
}

// Loading reports whether any server call is in flight.
func (s *Syncer) Loading() bool {
	return s.pending.Load() > 0 || s.busy.Load() > 0
}

// Wait blocks until every background server call has returned.
func (s *Syncer) Wait() {
	s.inflight.Wait()
}

// AddItemWithSync adds quantity of product locally (1 when zero) and mirrors it to the server.
func (s *Syncer) AddItemWithSync(ctx context.Context, product Product, quantity int) {
	if quantity == 0 {
		quantity = 1
	}
	before := s.store.Items()
	s.store.AddItem(ctx, product, quantity)
	s.dispatch(ctx, before, "Failed to add item to cart", func(ctx context.Context) error {
		return s.server.AddItem(ctx, product.ID, quantity)
	})
}

// RemoveItemWithSync drops the product locally and mirrors the removal to the server.
func (s *Syncer) RemoveItemWithSync(ctx context.Context, productID int) {
	before := s.store.Items()
	s.store.RemoveItem(ctx, productID)
	s.dispatch(ctx, before, "Failed to remove item from cart", func(ctx context.Context) error {
		return s.server.RemoveItem(ctx, productID)
	})
}

// UpdateItemQuantityWithSync sets the product quantity locally and mirrors it to the server.
func (s *Syncer) UpdateItemQuantityWithSync(ctx context.Context, productID, quantity int) {
	before := s.store.Items()
	s.store.UpdateItemQuantity(ctx, productID, quantity)
	s.dispatch(ctx, before, "Failed to update item quantity", func(ctx context.Context) error {
		return s.server.UpdateItemQuantity(ctx, productID, quantity)
	})
}

// ClearCartWithSync empties the local cart and mirrors the clear to the server.
func (s *Syncer) ClearCartWithSync(ctx context.Context) {
	before := s.store.Items()
	s.store.Clear(ctx)
	s.dispatch(ctx, before, "Failed to clear cart", func(ctx context.Context) error {
		return s.server.Clear(ctx)
	})
}

// ReloadFromServer replaces the local cart with the server cart.
func (s *Syncer) ReloadFromServer(ctx context.Context) error {
	s.busy.Add(1)
	defer s.busy.Add(-1)

	remote, err := s.server.GetCart(ctx)
	if err != nil {
		s.fail(ctx, "Failed to load cart", err)
		return err
	}
	s.store.Replace(ctx, fromRemote(remote))
	s.store.MarkSynced(ctx, s.now())
	s.SetErr("")
	return nil
}

// SyncToServer pushes the whole local cart with one ReplaceItems call.
func (s *Syncer) SyncToServer(ctx context.Context) error {
	s.busy.Add(1)
	defer s.busy.Add(-1)

	if err := s.server.ReplaceItems(ctx, toRemote(s.store.Items())); err != nil {
		s.fail(ctx, "Failed to sync cart", err)
		return err
	}
	s.store.MarkSynced(ctx, s.now())
	s.SetErr("")
	return nil
}

// dispatch runs call in the background. Calls are not ordered against each other,
// so whichever finishes last decides the error state.
func (s *Syncer) dispatch(ctx context.Context, before []Line, fallback string, call func(context.Context) error) {
	if !s.authenticated.Load() || s.server == nil {
		return
	}
	callCtx := context.WithoutCancel(ctx)
	s.pending.Add(1)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.pending.Add(-1)

		if err := call(callCtx); err != nil {
			s.fail(callCtx, fallback, err)
			if s.rollback {
				s.store.Replace(callCtx, before)
			}
			return
		}
		s.store.MarkSynced(callCtx, s.now())
	}()
}

func (s *Syncer) fail(ctx context.Context, fallback string, err error) {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	s.SetErr(msg)
	s.logg.Warn(s.logg.WithField(ctx, "cart_sync_error", msg), fallback)
}

func fromRemote(remote []RemoteLine) []Line {
	lines := make([]Line, 0, len(remote))
	for _, r := range remote {
		lines = append(lines, Line{
			ProductID: r.ProductID,
			Name:      r.Name,
			Price:     r.Price,
			ImageURL:  r.ImageURL,
			Quantity:  r.Quantity,
		})
	}
	return lines
}

func toRemote(lines []Line) []RemoteLine {
	remote := make([]RemoteLine, 0, len(lines))
	for _, l := range lines {
		remote = append(remote, RemoteLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			ImageURL:  l.ImageURL,
			Quantity:  l.Quantity,
		})
	}
	return remote
}
