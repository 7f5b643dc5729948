package paymentmethods

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// PaymentMethodRepository is the persistence surface used by the service.
type PaymentMethodRepository interface {
	WithTx(tx *gorm.DB) PaymentMethodRepository
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentMethod, error)
	FindOwned(ctx context.Context, userID uuid.UUID, id int) (*models.PaymentMethod, error)
	Create(ctx context.Context, row *models.PaymentMethod) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	DeleteOwned(ctx context.Context, userID uuid.UUID, id int) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input captures a payment method to save. CardNumber is reduced to its last
// four digits before anything is persisted.
type Input struct {
	MethodType     string                 `json:"methodType" validate:"required,oneof=credit_card paypal bank_transfer"`
	CardNumber     string                 `json:"cardNumber,omitempty"`
	ExpirationDate string                 `json:"expirationDate,omitempty"`
	BillingAddress *models.BillingAddress `json:"billingAddress,omitempty"`
	IsDefault      bool                   `json:"isDefault"`
}

// PaymentMethodDTO is the public payment method shape.
type PaymentMethodDTO struct {
	ID             int                     `json:"id"`
	MethodType     enums.PaymentMethodType `json:"methodType"`
	CardLast4      *string                 `json:"cardLast4,omitempty"`
	ExpirationDate *string                 `json:"expirationDate,omitempty"`
	BillingAddress *models.BillingAddress  `json:"billingAddress,omitempty"`
	IsDefault      bool                    `json:"isDefault"`
	CreatedAt      time.Time               `json:"createdAt"`
}

type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]PaymentMethodDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input Input) (*PaymentMethodDTO, error)
	Delete(ctx context.Context, userID uuid.UUID, id int) error
	GetOwned(ctx context.Context, userID uuid.UUID, id int) (*models.PaymentMethod, error)
}

type service struct {
	repo PaymentMethodRepository
	tx   txRunner
	now  func() time.Time
}

func NewService(repo PaymentMethodRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment method repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]PaymentMethodDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment methods")
	}
	out := make([]PaymentMethodDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

// Create saves the method. The first method of a user always becomes the default.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input Input) (*PaymentMethodDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	row, err := buildPaymentMethod(userID, input, s.now())
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment methods")
	}
	row.IsDefault = input.IsDefault || len(existing) == 0

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if row.IsDefault && len(existing) > 0 {
			if err := txRepo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return txRepo.Create(ctx, row)
	}); err != nil {
		return nil, pkgerrors.FromDB(err, "persist payment method")
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, id int) error {
	affected, err := s.repo.DeleteOwned(ctx, userID, id)
	if err != nil {
		return pkgerrors.FromDB(err, "delete payment method")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
	}
	return nil
}

func (s *service) GetOwned(ctx context.Context, userID uuid.UUID, id int) (*models.PaymentMethod, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method id must be positive")
	}
	row, err := s.repo.FindOwned(ctx, userID, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "payment method not found")
	}
	return row, nil
}

var (
	nonDigits  = regexp.MustCompile(`[\s-]`)
	cardDigits = regexp.MustCompile(`^[0-9]{12,19}$`)
	expiryForm = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
)

func buildPaymentMethod(userID uuid.UUID, input Input, now time.Time) (*models.PaymentMethod, error) {
	methodType, err := enums.ParsePaymentMethodType(strings.TrimSpace(input.MethodType))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method type")
	}
	row := &models.PaymentMethod{
		UserID:         userID,
		MethodType:     methodType,
		BillingAddress: input.BillingAddress,
	}
	if methodType != enums.PaymentMethodCreditCard {
		return row, nil
	}

	digits := nonDigits.ReplaceAllString(input.CardNumber, "")
	if !cardDigits.MatchString(digits) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card number must contain 12 to 19 digits")
	}
	last4 := digits[len(digits)-4:]
	row.CardLast4 = &last4

	expiry := strings.TrimSpace(input.ExpirationDate)
	if err := validateExpiry(expiry, now); err != nil {
		return nil, err
	}
	row.ExpirationDate = &expiry
	return row, nil
}

// validateExpiry accepts MM/YY dates whose month has not ended yet.
func validateExpiry(expiry string, now time.Time) error {
	m := expiryForm.FindStringSubmatch(expiry)
	if m == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "expiration date must be MM/YY")
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	endOfMonth := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(endOfMonth) {
		return pkgerrors.New(pkgerrors.CodeValidation, "card is expired")
	}
	return nil
}

func toDTO(row *models.PaymentMethod) PaymentMethodDTO {
	return PaymentMethodDTO{
		ID:             row.ID,
		MethodType:     row.MethodType,
		CardLast4:      row.CardLast4,
		ExpirationDate: row.ExpirationDate,
		BillingAddress: row.BillingAddress,
		IsDefault:      row.IsDefault,
		CreatedAt:      row.CreatedAt,
	}
}
