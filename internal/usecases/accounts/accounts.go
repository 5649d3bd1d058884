// Package accounts registers and authenticates dashboard users.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
)

type AccountUseCase interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type accountUseCase struct {
	users  domain.UserRepository
	logger logging.Logger
}

func NewAccountUseCase(users domain.UserRepository, logger logging.Logger) AccountUseCase {
	return &accountUseCase{
		users:  users,
		logger: logger,
	}
}

func (uc *accountUseCase) Register(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := domain.NewUser(email, password)
	if err != nil {
		return nil, err
	}

	if err := uc.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	uc.logger.Info(logging.General, logging.Session, "user registered", map[logging.ExtraKey]any{
		logging.UserID: user.ID,
	})

	return user, nil
}

// Authenticate reports ErrInvalidCredentials for both unknown emails and
// wrong passwords.
func (uc *accountUseCase) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.CheckPassword(password) {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

func (uc *accountUseCase) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return uc.users.GetByID(ctx, id)
}
