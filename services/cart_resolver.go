package services

import (
	"context"

	"github.com/yashrajoria/storefront-service/models"
)

// CartResolver produces the one current cart of a request, whoever the actor
// is.
type CartResolver struct {
	session CartStore
	durable CartStore
}

func NewCartResolver(session, durable CartStore) *CartResolver {
	return &CartResolver{session: session, durable: durable}
}

// StoreFor picks the store that owns the actor's cart. A guest cart left in
// the session is ignored once the actor signs in.
func (r *CartResolver) StoreFor(req *CartRequest) CartStore {
	if req.Actor.IsAuthenticated() {
		return r.durable
	}
	return r.session
}

// Resolve returns the actor's cart, creating an empty one if there is none.
// The result is memoised on req, so repeated calls return the same instance.
func (r *CartResolver) Resolve(ctx context.Context, req *CartRequest) (*models.Order, error) {
	if req.cart != nil {
		return req.cart, nil
	}

	store := r.StoreFor(req)
	cart, err := store.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart, err = store.Create(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	req.cart = cart
	return cart, nil
}
