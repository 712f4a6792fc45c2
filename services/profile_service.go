package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

// ProfileService backs the "my data" page.
type ProfileService interface {
	GetProfile(ctx context.Context, actor models.Actor) (*models.User, error)
	UpdateProfile(ctx context.Context, actor models.Actor, update models.ProfileUpdate) (*models.User, error)
}

type profileServiceImpl struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewProfileService(users repository.UserRepository, logger *zap.Logger) ProfileService {
	return &profileServiceImpl{users: users, logger: logger}
}

func (s *profileServiceImpl) GetProfile(ctx context.Context, actor models.Actor) (*models.User, error) {
	return loadUser(ctx, s.users, NewCartRequest(actor, ""))
}

func (s *profileServiceImpl) UpdateProfile(ctx context.Context, actor models.Actor, update models.ProfileUpdate) (*models.User, error) {
	if problems := update.Validate(); len(problems) > 0 {
		e := apperrors.ErrInvalidInput.Wrap(fmt.Errorf("%s", models.FormatProblems(problems)))
		e.Details = map[string]interface{}{}
		for k, v := range problems {
			e.Details[k] = v
		}
		return nil, e
	}

	user, err := s.GetProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	update.Apply(user)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save profile of %q: %w", user.Username, err)
	}
	s.logger.Info("Profile updated", zap.String("username", user.Username))
	return user, nil
}
