package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

// ContactBinder fills in who an order ships to.
type ContactBinder struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewContactBinder(users repository.UserRepository, logger *zap.Logger) *ContactBinder {
	return &ContactBinder{users: users, logger: logger}
}

// Bind sets the contact fields of order.
//
// A registered shopper ships to their stored profile and the form is
// ignored, unless form.SaveToProfile is set: then the submitted non-empty
// fields are first written to the profile. A guest ships to the form, which
// must be complete and valid.
func (b *ContactBinder) Bind(ctx context.Context, req *CartRequest, order *models.Order, form models.ContactForm) error {
	if !req.Actor.IsAuthenticated() {
		if problems := form.Validate(); len(problems) > 0 {
			return invalidContact(problems)
		}
		order.ContactName = form.Name()
		order.ContactPhone = strings.TrimSpace(form.Phone)
		order.ContactAddress = strings.TrimSpace(form.Address)
		return nil
	}

	user, err := loadUser(ctx, b.users, req)
	if err != nil {
		return err
	}

	if form.SaveToProfile {
		update := models.ProfileUpdateFrom(user, form)
		if problems := update.Validate(); len(problems) > 0 {
			return invalidContact(problems)
		}
		update.Apply(user)
		if err := b.users.Save(ctx, user); err != nil {
			return fmt.Errorf("save profile of %q: %w", user.Username, err)
		}
		b.logger.Info("Profile updated from checkout form", zap.String("username", user.Username))
	}

	uid := user.ID
	order.UserID = &uid
	order.ContactName = user.FullName()
	order.ContactPhone = user.Phone
	order.ContactAddress = user.Address
	return nil
}

func invalidContact(problems map[string]string) error {
	e := apperrors.ErrInvalidContact.Wrap(fmt.Errorf("%s", models.FormatProblems(problems)))
	details := make(map[string]interface{}, len(problems))
	for k, v := range problems {
		details[k] = v
	}
	e.Details = details
	return e
}
