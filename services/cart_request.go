package services

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

// CartRequest is the per-request cart context: who is shopping, which
// session they are in, and what has already been resolved for them. It is
// never shared between requests.
type CartRequest struct {
	Actor     models.Actor
	SessionID string

	cart *models.Order
	user *models.User
}

func NewCartRequest(actor models.Actor, sessionID string) *CartRequest {
	return &CartRequest{Actor: actor, SessionID: sessionID}
}

// Cart returns the memoised cart, or nil before resolution.
func (r *CartRequest) Cart() *models.Order {
	return r.cart
}

// Forget drops everything memoised, so the next resolution reads the stores
// again.
func (r *CartRequest) Forget() {
	r.cart = nil
	r.user = nil
}

// loadUser returns the profile of an authenticated actor, memoised on req.
// A username without a profile is ErrActorNotFound.
func loadUser(ctx context.Context, users repository.UserRepository, req *CartRequest) (*models.User, error) {
	if req.user != nil {
		return req.user, nil
	}
	if !req.Actor.IsAuthenticated() {
		return nil, apperrors.ErrUnauthorized
	}
	user, err := users.FindByUsername(ctx, req.Actor.Username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrActorNotFound.Wrap(fmt.Errorf("no profile for %q", req.Actor.Username))
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", req.Actor.Username, err)
	}
	req.user = user
	return user, nil
}
