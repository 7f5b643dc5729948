package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// AddressRepository is the persistence surface used by the service.
type AddressRepository interface {
	WithTx(tx *gorm.DB) AddressRepository
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ShippingAddress, error)
	FindOwned(ctx context.Context, userID uuid.UUID, id int) (*models.ShippingAddress, error)
	Create(ctx context.Context, row *models.ShippingAddress) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	DeleteOwned(ctx context.Context, userID uuid.UUID, id int) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input captures a new shipping address.
type Input struct {
	Name       string  `json:"name" validate:"required,max=120"`
	Street     string  `json:"street" validate:"required,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	PostalCode string  `json:"postalCode" validate:"required,max=20"`
	Country    string  `json:"country" validate:"required,max=100"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	IsDefault  bool    `json:"isDefault"`
}

// AddressDTO is the public address shape.
type AddressDTO struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	Phone      *string   `json:"phone,omitempty"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input Input) (*AddressDTO, error)
	Delete(ctx context.Context, userID uuid.UUID, id int) error
	GetOwned(ctx context.Context, userID uuid.UUID, id int) (*models.ShippingAddress, error)
}

type service struct {
	repo AddressRepository
	tx   txRunner
}

func NewService(repo AddressRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipping addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

// Create stores the address. The first address of a user always becomes the default.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input Input) (*AddressDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	row, err := buildAddress(userID, input)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipping addresses")
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
		return nil, pkgerrors.FromDB(err, "persist shipping address")
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, id int) error {
	affected, err := s.repo.DeleteOwned(ctx, userID, id)
	if err != nil {
		return pkgerrors.FromDB(err, "delete shipping address")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "shipping address not found")
	}
	return nil
}

// GetOwned returns NOT_FOUND for addresses of other users so ids cannot be enumerated.
func (s *service) GetOwned(ctx context.Context, userID uuid.UUID, id int) (*models.ShippingAddress, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address id must be positive")
	}
	row, err := s.repo.FindOwned(ctx, userID, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "shipping address not found")
	}
	return row, nil
}

func buildAddress(userID uuid.UUID, input Input) (*models.ShippingAddress, error) {
	row := &models.ShippingAddress{
		UserID:     userID,
		Name:       strings.TrimSpace(input.Name),
		Street:     strings.TrimSpace(input.Street),
		City:       strings.TrimSpace(input.City),
		State:      strings.TrimSpace(input.State),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    strings.TrimSpace(input.Country),
	}
	missing := []string{}
	for _, field := range []struct{ name, value string }{
		{"name", row.Name},
		{"street", row.Street},
		{"city", row.City},
		{"state", row.State},
		{"postalCode", row.PostalCode},
		{"country", row.Country},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required address fields").
			WithDetails(map[string]any{"fields": missing})
	}
	if input.Phone != nil {
		if phone := strings.TrimSpace(*input.Phone); phone != "" {
			row.Phone = &phone
		}
	}
	return row, nil
}

func toDTO(row *models.ShippingAddress) AddressDTO {
	return AddressDTO{
		ID:         row.ID,
		Name:       row.Name,
		Street:     row.Street,
		City:       row.City,
		State:      row.State,
		PostalCode: row.PostalCode,
		Country:    row.Country,
		Phone:      row.Phone,
		IsDefault:  row.IsDefault,
		CreatedAt:  row.CreatedAt,
	}
}
