package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes order history to customers and lifecycle updates to admins.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListAll(ctx context.Context, page pagination.Page, status string) (*AdminOrderList, error)
	UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	page, more := pagination.Split(rows, limit)
	result := &OrderList{Orders: fromModels(page)}
	if more {
		last := page[len(page)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// Get returns NOT_FOUND for orders that belong to someone else.
func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindForUser(ctx, userID, orderID)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "order not found")
	}
	dto := FromModel(order)
	return &dto, nil
}

func (s *service) ListAll(ctx context.Context, page pagination.Page, status string) (*AdminOrderList, error) {
	var filter *enums.OrderStatus
	if raw := strings.TrimSpace(status); raw != "" {
		parsed, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter = &parsed
	}
	page = pagination.NewPage(page.Page, page.PageSize)
	rows, total, err := s.repo.ListAll(ctx, page, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return &AdminOrderList{Orders: fromModels(rows), Metadata: pagination.NewMeta(page, total)}, nil
}

// UpdateStatus moves an order to a new status and emits order_status_changed when
// the status actually changes.
func (s *service) UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	status, err := enums.ParseOrderStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
	}
	var paymentStatus *enums.PaymentStatus
	if input.PaymentStatus != nil {
		parsed, err := enums.ParsePaymentStatus(strings.TrimSpace(*input.PaymentStatus))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
		}
		paymentStatus = &parsed
	}

	var result *OrderDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockByID(ctx, orderID)
		if err != nil {
			return pkgerrors.FromDB(err, "order not found")
		}

		updates := map[string]any{}
		if current.Status != status {
			updates["status"] = status
		}
		if paymentStatus != nil && current.PaymentStatus != *paymentStatus {
			updates["payment_status"] = *paymentStatus
		}
		if err := repo.UpdateStatus(ctx, orderID, updates); err != nil {
			return pkgerrors.FromDB(err, "update order status")
		}

		if _, changed := updates["status"]; changed {
			if err := s.emitStatusChanged(ctx, tx, actorID, current.UserID, orderID, current.Status, status); err != nil {
				return err
			}
		}

		updated, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.FromDB(err, "reload order")
		}
		dto := FromModel(updated)
		result = &dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, actorID, userID, orderID uuid.UUID, from, to enums.OrderStatus) error {
	changedAt := s.now().UTC()
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:   orderID,
			UserID:    userID,
			From:      from,
			To:        to,
			ChangedAt: changedAt,
		},
		Version:    1,
		OccurredAt: changedAt,
	}
	if actorID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actorID, Role: string(enums.RoleAdmin)}
	}
	return s.outbox.Emit(ctx, tx, event)
}
