package services

import (
	"context"
	"fmt"
	"time"

	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg"
	"github.com/akinalp/custodian/repository"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// UserService, kullanıcının kendi profil işlemleri.
type UserService interface {
	// UpdateProfile, display name / email'i kısmi günceller.
	// Anonymized hesaplar güncellenemez.
	UpdateProfile(ctx context.Context, userID string, req *models.UpdateUserRequest) (*models.User, error)
}

type userService struct {
	users repository.UserRepository
	clock clock.Clock
	log   *zap.Logger
}

// NewUserService, constructor. users cache'li repo olmalıdır.
func NewUserService(users repository.UserRepository, clk clock.Clock, log *zap.Logger) UserService {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &userService{users: users, clock: clk, log: log.Named("user")}
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateUserRequest) (*models.User, error) {
	user, err := applyProfileUpdate(ctx, s.users, userID, req, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return publicUser(user), nil
}

// applyProfileUpdate, profil ve bulk update'in ortak yolu. GetByID ile Update
// arasında commit edilen anonymize'ı repo'nun yazma guard'ı yakalar.
func applyProfileUpdate(ctx context.Context, users repository.UserRepository, userID string, req *models.UpdateUserRequest, now time.Time) (*models.User, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: update payload is required", pkg.ErrBadRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsAnonymized {
		return nil, fmt.Errorf("%w: anonymized accounts cannot be updated", pkg.ErrInvalidTransition)
	}

	// Partial update: sadece non-nil alanlar
	if req.DisplayName != nil {
		user.DisplayName = req.DisplayName
		if *req.DisplayName == "" {
			user.DisplayName = nil
		}
	}
	if req.Email != nil {
		user.Email = req.Email
	}
	user.UpdatedAt = now

	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
