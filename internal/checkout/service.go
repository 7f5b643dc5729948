package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/paymentmethods"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts the caller's server cart into an order.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error)
}

// CheckoutInput is the checkout request body.
type CheckoutInput struct {
	ShippingAddressID int     `json:"shippingAddressId" validate:"required,gt=0"`
	PaymentMethodID   int     `json:"paymentMethodId" validate:"required,gt=0"`
	Notes             *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Result summarizes the placed order.
type Result struct {
	OrderID  uuid.UUID       `json:"orderId"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Tx          txRunner
	CartRepo    cart.CartRepository
	OrdersRepo  orders.Repository
	AddressRepo address.AddressRepository
	PaymentRepo paymentmethods.PaymentMethodRepository
	Outbox      outboxPublisher
	Shipping    ShippingRule
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
	Clock       func() time.Time
}

type service struct {
	tx         txRunner
	cartRepo   cart.CartRepository
	ordersRepo orders.Repository
	addresses  address.AddressRepository
	payments   paymentmethods.PaymentMethodRepository
	outbox     outboxPublisher
	shipping   ShippingRule
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.AddressRepo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if params.PaymentRepo == nil {
		return nil, fmt.Errorf("payment method repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Shipping.FlatFee.IsNegative() || params.Shipping.Threshold.IsNegative() {
		return nil, fmt.Errorf("shipping rule must not be negative")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:         params.Tx,
		cartRepo:   params.CartRepo,
		ordersRepo: params.OrdersRepo,
		addresses:  params.AddressRepo,
		payments:   params.PaymentRepo,
		outbox:     params.Outbox,
		shipping:   params.Shipping,
		metrics:    params.Metrics,
		logg:       logg,
		now:        clock,
	}, nil
}

// Execute places an order from the caller's cart. Every write happens in one
// transaction: on any error the cart, orders and outbox are left as they were.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error) {
	started := s.now()
	result, err := s.execute(ctx, userID, input)
	if err != nil {
		s.metrics.IncRejected(rejectReason(err))
		return nil, err
	}
	s.metrics.ObservePlaced(result.Total, s.now().Sub(started))

	logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), result.OrderID.String())
	logCtx = s.logg.WithField(logCtx, "total", result.Total.StringFixed(2))
	s.logg.Info(logCtx, "order placed")
	return result, nil
}

func (s *service) execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.ShippingAddressID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shippingAddressId is required")
	}
	if input.PaymentMethodID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentMethodId is required")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		lines, err := s.cartRepo.WithTx(tx).LockByUser(ctx, userID)
		if err != nil {
			return pkgerrors.FromDB(err, "load cart")
		}
		if len(lines) == 0 {
			return errEmptyCart
		}

		if _, err := s.addresses.WithTx(tx).FindOwned(ctx, userID, input.ShippingAddressID); err != nil {
			return pkgerrors.FromDB(err, "shipping address not found")
		}
		if _, err := s.payments.WithTx(tx).FindOwned(ctx, userID, input.PaymentMethodID); err != nil {
			return pkgerrors.FromDB(err, "payment method not found")
		}

		items, subtotal, err := snapshotLines(lines)
		if err != nil {
			return err
		}
		shipping := s.shipping.For(subtotal)
		placedAt := s.now().UTC()

		order := &models.Order{
			UserID:            userID,
			OrderDate:         placedAt,
			Status:            enums.OrderStatusPending,
			PaymentStatus:     enums.PaymentStatusPending,
			Subtotal:          subtotal,
			Shipping:          shipping,
			Total:             subtotal.Add(shipping),
			ShippingAddressID: input.ShippingAddressID,
			PaymentMethodID:   input.PaymentMethodID,
			Notes:             normalizeNotes(input.Notes),
		}
		ordersRepo := s.ordersRepo.WithTx(tx)
		if err := ordersRepo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.FromDB(err, "create order")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return pkgerrors.FromDB(err, "create order items")
		}
		if err := s.cartRepo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
			return pkgerrors.FromDB(err, "clear cart")
		}
		if err := s.emitOrderCreated(ctx, tx, order, items, placedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}

		result = &Result{OrderID: order.ID, Subtotal: order.Subtotal, Shipping: order.Shipping, Total: order.Total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// snapshotLines copies the live product price onto each order line.
func snapshotLines(lines []models.CartItem) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Product == nil {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "product no longer available").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		price := line.Product.Price
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     price,
		})
	}
	return items, subtotal, nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem, placedAt time.Time) error {
	lines := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, payloads.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: string(enums.RoleUser)},
		Data: payloads.OrderCreatedEvent{
			OrderID:           order.ID,
			UserID:            order.UserID,
			Status:            order.Status,
			PaymentStatus:     order.PaymentStatus,
			Subtotal:          order.Subtotal,
			Shipping:          order.Shipping,
			Total:             order.Total,
			ShippingAddressID: order.ShippingAddressID,
			PaymentMethodID:   order.PaymentMethodID,
			Lines:             lines,
			PlacedAt:          placedAt,
		},
		Version:    1,
		OccurredAt: placedAt,
	}
	return s.outbox.Emit(ctx, tx, event)
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

var errEmptyCart = pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")

func rejectReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation:
		if typed == errEmptyCart {
			return "empty_cart"
		}
		return "validation"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeStateConflict:
		return "conflict"
	default:
		return "error"
	}
}
