package categories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CategoryRepository is the persistence surface used by the service.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id int) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id int) (int64, error)
}

// CategoryDTO is the public category shape.
type CategoryDTO struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input carries the writable category fields.
type Input struct {
	Name string `json:"name" validate:"required,max=100"`
}

type Service interface {
	List(ctx context.Context) ([]CategoryDTO, error)
	Get(ctx context.Context, id int) (*CategoryDTO, error)
	Create(ctx context.Context, input Input) (*CategoryDTO, error)
	Update(ctx context.Context, id int, input Input) (*CategoryDTO, error)
	Delete(ctx context.Context, id int) error
}

type service struct {
	repo CategoryRepository
}

func NewService(repo CategoryRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id int) (*CategoryDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id must be positive")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "category not found")
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input Input) (*CategoryDTO, error) {
	name, err := normalizeName(input.Name)
	if err != nil {
		return nil, err
	}
	row := &models.Category{Name: name}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, categoryWriteError(err, "create category")
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id int, input Input) (*CategoryDTO, error) {
	name, err := normalizeName(input.Name)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "category not found")
	}
	row.Name = name
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, categoryWriteError(err, "update category")
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id int) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.FromDB(err, "delete category")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	return name, nil
}

func categoryWriteError(err error, msg string) error {
	mapped := pkgerrors.FromDB(err, msg)
	if pkgerrors.Is(mapped, pkgerrors.CodeConflict) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category name already exists")
	}
	return mapped
}

func toDTO(row *models.Category) CategoryDTO {
	return CategoryDTO{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}
}
