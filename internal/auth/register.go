package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

// RegisterRequest contains the payload required to create a credential account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterService handles account creation.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	LinkPassword(ctx context.Context, id uuid.UUID, hash string) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	Tx             txRunner
	PasswordConfig config.PasswordConfig
	// Users builds a repository bound to the registration transaction.
	Users func(tx *gorm.DB) registerUserRepository
}

type registerService struct {
	tx          txRunner
	users       func(tx *gorm.DB) registerUserRepository
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	repoFactory := params.Users
	if repoFactory == nil {
		repoFactory = func(tx *gorm.DB) registerUserRepository { return users.NewRepository(tx) }
	}
	return &registerService{
		tx:          params.Tx,
		users:       repoFactory,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register creates a user with role user. An existing account without a password
// (created through an external identity provider) gets the password linked instead;
// an account that already has one is a CONFLICT.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := security.ValidatePassword(req.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var result *users.UserDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users(tx)

		existing, err := userRepo.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.HasPassword():
			return pkgerrors.New(pkgerrors.CodeConflict, "user already exists")
		case err == nil:
			linked, err := userRepo.LinkPassword(ctx, existing.ID, passwordHash)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link password")
			}
			if !linked {
				return pkgerrors.New(pkgerrors.CodeConflict, "user already exists")
			}
			result = users.FromModel(existing)
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		hash := passwordHash
		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Name:         name,
			Email:        email,
			PasswordHash: &hash,
			Role:         enums.RoleUser,
		})
		if err != nil {
			mapped := pkgerrors.FromDB(err, "create user")
			if pkgerrors.Is(mapped, pkgerrors.CodeConflict) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user already exists")
			}
			return mapped
		}
		result = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
