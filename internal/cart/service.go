package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes server cart operations for a single owner.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, productID, quantity int) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, productID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, productID int) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	ReplaceItems(ctx context.Context, userID uuid.UUID, lines []LineInput) (*CartDTO, error)
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLookup
	events   outbox.Emitter
	now      func() time.Time
}

// Option customizes the cart service.
type Option func(*service)

// WithEmitter records a cart_merged event for every non-empty batch replace.
func WithEmitter(e outbox.Emitter) Option {
	return func(s *service) { s.events = e }
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLookup, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	svc := &service{
		repo:     repo,
		tx:       tx,
		products: products,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// LineInput is one requested (productId, quantity) pair.
type LineInput struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"required,gte=1"`
}

// LineDTO is a cart line joined with live product data.
type LineDTO struct {
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  *string         `json:"imageUrl,omitempty"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// CartDTO is the server cart as returned to clients.
type CartDTO struct {
	Items      []LineDTO       `json:"items"`
	TotalItems int             `json:"totalItems"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return BuildCartDTO(rows), nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, productID, quantity int) (*CartDTO, error) {
	if err := validateLine(userID, productID, quantity); err != nil {
		return nil, err
	}
	if err := s.ensureProducts(ctx, []int{productID}); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, userID, productID, quantity); err != nil {
		return nil, pkgerrors.FromDB(err, "add cart item")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) UpdateQuantity(ctx context.Context, userID uuid.UUID, productID, quantity int) (*CartDTO, error) {
	if err := validateLine(userID, productID, quantity); err != nil {
		return nil, err
	}
	affected, err := s.repo.UpdateQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "update cart item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, productID int) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	if err := s.repo.Delete(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// ReplaceItems swaps the whole cart in one transaction. Duplicate product ids are
// summed and unknown products are rejected before anything is written.
func (s *service) ReplaceItems(ctx context.Context, userID uuid.UUID, lines []LineInput) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	merged, err := collapseLines(lines)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(merged))
	for _, line := range merged {
		ids = append(ids, line.ProductID)
	}
	if err := s.ensureProducts(ctx, ids); err != nil {
		return nil, err
	}

	base := s.now().UTC()
	items := make([]models.CartItem, 0, len(merged))
	for i, line := range merged {
		stamp := base.Add(time.Duration(i) * time.Microsecond)
		items = append(items, models.CartItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			CreatedAt: stamp,
			UpdatedAt: stamp,
		})
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		previous, err := repo.LockByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := repo.ReplaceAll(ctx, userID, items); err != nil {
			return err
		}
		if s.events == nil || len(items) == 0 {
			return nil
		}
		return s.events.Emit(ctx, tx, mergedEvent(userID, len(lines), len(previous), items, base))
	}); err != nil {
		return nil, pkgerrors.FromDB(err, "replace cart")
	}
	return s.GetCart(ctx, userID)
}

func mergedEvent(userID uuid.UUID, requested, previous int, items []models.CartItem, at time.Time) outbox.DomainEvent {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return outbox.DomainEvent{
		EventType:     enums.EventCartMerged,
		AggregateType: enums.AggregateCart,
		AggregateID:   userID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.RoleUser)},
		OccurredAt:    at,
		Data: payloads.CartMergedEvent{
			UserID:      userID,
			LocalLines:  requested,
			ServerLines: previous,
			MergedLines: len(items),
			TotalItems:  total,
			MergedAt:    at,
		},
	}
}

func (s *service) ensureProducts(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.products.ExistingIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup products")
	}
	known := make(map[int]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	var missing []int
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"productIds": missing})
	}
	return nil
}

func validateLine(userID uuid.UUID, productID, quantity int) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return nil
}

// collapseLines validates lines and sums duplicates, keeping first-seen order.
func collapseLines(lines []LineInput) ([]LineInput, error) {
	out := make([]LineInput, 0, len(lines))
	index := make(map[int]int, len(lines))
	for i, line := range lines {
		if line.ProductID <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive").
				WithDetails(map[string]any{"index": i})
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"index": i})
		}
		if pos, ok := index[line.ProductID]; ok {
			out[pos].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

// BuildCartDTO joins rows with their preloaded product and computes totals.
// Rows whose product vanished are skipped.
func BuildCartDTO(rows []models.CartItem) *CartDTO {
	dto := &CartDTO{Items: make([]LineDTO, 0, len(rows)), Subtotal: decimal.Zero}
	for _, row := range rows {
		if row.Product == nil {
			continue
		}
		lineTotal := row.Product.Price.Mul(decimal.NewFromInt(int64(row.Quantity)))
		dto.Items = append(dto.Items, LineDTO{
			ProductID: row.ProductID,
			Name:      row.Product.Name,
			Price:     row.Product.Price,
			ImageURL:  row.Product.ImageURL,
			Quantity:  row.Quantity,
			LineTotal: lineTotal,
		})
		dto.TotalItems += row.Quantity
		dto.Subtotal = dto.Subtotal.Add(lineTotal)
	}
	return dto
}
