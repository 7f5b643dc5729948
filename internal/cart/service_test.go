package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/cartclient"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type fixture struct {
	svc    Service
	conn   *gorm.DB
	userID uuid.UUID
	prices map[int]decimal.Decimal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()

	user := models.User{Name: "Cart Tester", Email: "cart@example.com"}
	require.NoError(t, conn.Create(&user).Error)

	prices := map[int]decimal.Decimal{}
	for _, p := range []struct {
		name  string
		price string
	}{{"Mug", "10.00"}, {"Plate", "5.00"}, {"Bowl", "7.25"}} {
		row := models.Product{Name: p.name, Price: decimal.RequireFromString(p.price)}
		require.NoError(t, conn.Create(&row).Error)
		prices[row.ID] = row.Price
	}

	svc, err := NewService(NewRepository(conn), client, product.NewRepository(conn))
	require.NoError(t, err)
	return &fixture{svc: svc, conn: conn, userID: user.ID, prices: prices}
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.userID, 1, 2)
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, f.userID, 1, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, "Mug", cart.Items[0].Name)
	assert.Equal(t, 5, cart.TotalItems)
	assert.True(t, cart.Subtotal.Equal(decimal.NewFromInt(50)), "subtotal %s", cart.Subtotal)

	var count int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Where("user_id = ?", f.userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.userID, 0, 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = f.svc.AddItem(ctx, f.userID, 1, 0)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = f.svc.AddItem(ctx, f.userID, 404, 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = f.svc.AddItem(ctx, uuid.Nil, 1, 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.userID, 2, 1)
	require.NoError(t, err)

	cart, err := f.svc.UpdateQuantity(ctx, f.userID, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.TotalItems)

	_, err = f.svc.UpdateQuantity(ctx, f.userID, 2, 0)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.UpdateQuantity(ctx, f.userID, 3, 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "missing line must be an explicit error, got %v", err)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.userID, 1, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.userID, 2, 1)
	require.NoError(t, err)

	cart, err := f.svc.RemoveItem(ctx, f.userID, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	cart, err = f.svc.RemoveItem(ctx, f.userID, 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestClearEmptiesOnlyCallerCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := models.User{Name: "Other", Email: "other@example.com"}
	require.NoError(t, f.conn.Create(&other).Error)

	_, err := f.svc.AddItem(ctx, f.userID, 1, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, other.ID, 1, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(ctx, f.userID))

	mine, err := f.svc.GetCart(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, mine.Items)
	assert.Equal(t, 0, mine.TotalItems)
	assert.True(t, mine.Subtotal.IsZero())

	theirs, err := f.svc.GetCart(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, theirs.TotalItems)
}

func TestReplaceItemsSwapsCartAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.userID, 1, 9)
	require.NoError(t, err)

	cart, err := f.svc.ReplaceItems(ctx, f.userID, []LineInput{
		{ProductID: 3, Quantity: 1},
		{ProductID: 2, Quantity: 2},
		{ProductID: 3, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].ProductID, "order follows the request")
	assert.Equal(t, 3, cart.Items[0].Quantity, "duplicates are summed")
	assert.Equal(t, 2, cart.Items[1].ProductID)

	_, err = f.svc.ReplaceItems(ctx, f.userID, []LineInput{{ProductID: 1, Quantity: 1}, {ProductID: 999, Quantity: 1}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.ReplaceItems(ctx, f.userID, []LineInput{{ProductID: 1, Quantity: -1}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	after, err := f.svc.GetCart(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 5, after.TotalItems, "rejected replacements must not touch the cart")

	cleared, err := f.svc.ReplaceItems(ctx, f.userID, nil)
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)
}

type failingRepo struct {
	*Repository
}

func (f failingRepo) WithTx(tx *gorm.DB) CartRepository {
	return failingRepo{Repository: &Repository{db: tx}}
}

func (f failingRepo) ReplaceAll(ctx context.Context, userID uuid.UUID, items []models.CartItem) error {
	if err := f.Repository.ReplaceAll(ctx, userID, items[:1]); err != nil {
		return err
	}
	return errors.New("insert failed")
}

func TestReplaceItemsRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.userID, 1, 4)
	require.NoError(t, err)

	svc, err := NewService(failingRepo{Repository: NewRepository(f.conn)}, txOver(f.conn), product.NewRepository(f.conn))
	require.NoError(t, err)

	_, err = svc.ReplaceItems(ctx, f.userID, []LineInput{{ProductID: 2, Quantity: 1}, {ProductID: 3, Quantity: 1}})
	require.Error(t, err)

	cart, err := f.svc.GetCart(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].ProductID)
	assert.Equal(t, 4, cart.Items[0].Quantity)
}

type gormTx struct{ conn *gorm.DB }

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.conn.WithContext(ctx).Transaction(fn)
}

func txOver(conn *gorm.DB) txRunner { return gormTx{conn: conn} }

func TestServiceServerCartDrivesSyncer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.userID, 2, 3)
	require.NoError(t, err)

	server, err := NewServiceServerCart(f.svc, f.userID)
	require.NoError(t, err)

	store := cartclient.NewStore(nil, nil)
	store.AddItem(ctx, cartclient.Product{ID: 1, Name: "Mug", Price: f.prices[1]}, 2)
	store.AddItem(ctx, cartclient.Product{ID: 2, Name: "Plate", Price: f.prices[2]}, 1)

	merger := cartclient.NewMerger(cartclient.NewSyncer(store, server, cartclient.SyncerOptions{}))
	require.NoError(t, merger.OnAuthChange(ctx, true))

	cart, err := f.svc.GetCart(ctx, f.userID)
	require.NoError(t, err)
	quantities := map[int]int{}
	for _, item := range cart.Items {
		quantities[item.ProductID] = item.Quantity
	}
	assert.Equal(t, map[int]int{1: 2, 2: 4}, quantities)
	assert.Equal(t, 6, store.TotalItems())
}

type capturedEvents struct {
	events []outbox.DomainEvent
	fail   error
}

func (c *capturedEvents) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if c.fail != nil {
		return c.fail
	}
	c.events = append(c.events, event)
	return nil
}

func TestReplaceItemsRecordsMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.userID, 1, 1)
	require.NoError(t, err)

	events := &capturedEvents{}
	svc, err := NewService(NewRepository(f.conn), txOver(f.conn), product.NewRepository(f.conn), WithEmitter(events))
	require.NoError(t, err)

	_, err = svc.ReplaceItems(ctx, f.userID, []LineInput{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	event := events.events[0]
	assert.Equal(t, enums.EventCartMerged, event.EventType)
	assert.Equal(t, f.userID, event.AggregateID)
	data, ok := event.Data.(payloads.CartMergedEvent)
	require.True(t, ok)
	assert.Equal(t, 3, data.LocalLines)
	assert.Equal(t, 1, data.ServerLines)
	assert.Equal(t, 2, data.MergedLines)
	assert.Equal(t, 4, data.TotalItems)

	_, err = svc.ReplaceItems(ctx, f.userID, nil)
	require.NoError(t, err)
	assert.Len(t, events.events, 1, "emptying the cart is not a merge")
}

func TestReplaceItemsRollsBackWhenEventFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.userID, 1, 4)
	require.NoError(t, err)

	svc, err := NewService(NewRepository(f.conn), txOver(f.conn), product.NewRepository(f.conn), WithEmitter(&capturedEvents{fail: errors.New("outbox down")}))
	require.NoError(t, err)

	_, err = svc.ReplaceItems(ctx, f.userID, []LineInput{{ProductID: 2, Quantity: 1}})
	require.Error(t, err)

	cart, err := f.svc.GetCart(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].ProductID)
}
