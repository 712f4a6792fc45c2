package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

// CartStore is where a cart lives between requests. Guests keep theirs in
// the session; registered shoppers keep theirs as a PENDING order row.
type CartStore interface {
	// Load returns nil, nil when the actor has no cart yet.
	Load(ctx context.Context, req *CartRequest) (*models.Order, error)
	// Create starts an empty PENDING cart and stores it.
	Create(ctx context.Context, req *CartRequest) (*models.Order, error)
	// Save writes back a mutated cart. It is the only write path for cart
	// mutations.
	Save(ctx context.Context, req *CartRequest, cart *models.Order) error
	// Discard throws the cart away.
	Discard(ctx context.Context, req *CartRequest, cart *models.Order) error
	// Checkout loads the cart for finalizing and holds it against a second
	// concurrent checkout until Settle. It returns nil, nil when there is no
	// cart; on error nothing is held.
	Checkout(ctx context.Context, req *CartRequest) (*models.Order, error)
	// Confirm persists a CONFIRMED order.
	Confirm(ctx context.Context, req *CartRequest, order *models.Order) error
	// Settle runs after the checkout transaction has ended and releases what
	// Checkout holds. confirmed reports whether the transaction committed.
	Settle(ctx context.Context, req *CartRequest, confirmed bool) error
}

// checkoutGuardTTL bounds how long a crashed checkout can block its session.
const checkoutGuardTTL = 30 * time.Second

// SessionCartStore keeps a guest's cart in the session store. Only Confirm
// touches the database.
type SessionCartStore struct {
	sessions repository.SessionStore
	orders   repository.OrderRepository
}

func NewSessionCartStore(sessions repository.SessionStore, orders repository.OrderRepository) *SessionCartStore {
	return &SessionCartStore{sessions: sessions, orders: orders}
}

func (s *SessionCartStore) Load(ctx context.Context, req *CartRequest) (*models.Order, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("guest request without a session")
	}
	cart, err := s.sessions.GetCart(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if cart != nil && cart.Items == nil {
		cart.Items = []models.OrderItem{}
	}
	return cart, nil
}

func (s *SessionCartStore) Create(ctx context.Context, req *CartRequest) (*models.Order, error) {
	cart := models.NewPendingOrder(nil)
	if err := s.Save(ctx, req, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *SessionCartStore) Save(ctx context.Context, req *CartRequest, cart *models.Order) error {
	if err := s.sessions.SetCart(ctx, req.SessionID, cart); err != nil {
		return fmt.Errorf("save session cart: %w", err)
	}
	return nil
}

func (s *SessionCartStore) Discard(ctx context.Context, req *CartRequest, _ *models.Order) error {
	if err := s.sessions.RemoveCart(ctx, req.SessionID); err != nil {
		return fmt.Errorf("remove session cart: %w", err)
	}
	return nil
}

// Checkout takes the session's checkout guard before reading the cart, so
// two submits from one session cannot both confirm it.
func (s *SessionCartStore) Checkout(ctx context.Context, req *CartRequest) (*models.Order, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("guest request without a session")
	}
	ok, err := s.sessions.AcquireCheckout(ctx, req.SessionID, checkoutGuardTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrCheckoutInProgress
	}

	cart, err := s.Load(ctx, req)
	if err != nil {
		if rerr := s.sessions.ReleaseCheckout(ctx, req.SessionID); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	return cart, nil
}

// Confirm records the guest order durably, without an owner. The session
// cart stays in place until Settle.
func (s *SessionCartStore) Confirm(ctx context.Context, _ *CartRequest, order *models.Order) error {
	order.UserID = nil
	if err := s.orders.Create(ctx, order); err != nil {
		return fmt.Errorf("persist guest order: %w", err)
	}
	return nil
}

// Settle drops the session cart once the order is committed and then lets
// the session check out again. The guard is kept until it expires when the
// cart could not be dropped, so the same cart is not confirmed twice.
func (s *SessionCartStore) Settle(ctx context.Context, req *CartRequest, confirmed bool) error {
	if confirmed {
		if err := s.Discard(ctx, req, nil); err != nil {
			return err
		}
	}
	if err := s.sessions.ReleaseCheckout(ctx, req.SessionID); err != nil {
		return fmt.Errorf("release checkout guard: %w", err)
	}
	return nil
}

// DurableCartStore keeps a registered shopper's cart as their single PENDING
// order.
type DurableCartStore struct {
	users  repository.UserRepository
	orders repository.OrderRepository
}

func NewDurableCartStore(users repository.UserRepository, orders repository.OrderRepository) *DurableCartStore {
	return &DurableCartStore{users: users, orders: orders}
}

func (s *DurableCartStore) Load(ctx context.Context, req *CartRequest) (*models.Order, error) {
	user, err := loadUser(ctx, s.users, req)
	if err != nil {
		return nil, err
	}
	cart, err := s.orders.FindPendingByUserID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending order: %w", err)
	}
	return cart, nil
}

// Create persists a new PENDING order at once. When a concurrent request
// created one first, the winner's row is returned instead.
func (s *DurableCartStore) Create(ctx context.Context, req *CartRequest) (*models.Order, error) {
	user, err := loadUser(ctx, s.users, req)
	if err != nil {
		return nil, err
	}

	userID := user.ID
	cart := models.NewPendingOrder(&userID)
	err = s.orders.Create(ctx, cart)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, ferr := s.orders.FindPendingByUserID(ctx, user.ID)
		if ferr != nil {
			return nil, fmt.Errorf("re-read pending order: %w", ferr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create pending order: %w", err)
	}
	return cart, nil
}

func (s *DurableCartStore) Save(ctx context.Context, _ *CartRequest, cart *models.Order) error {
	err := s.orders.Save(ctx, cart)
	if errors.Is(err, repository.ErrStaleOrder) {
		return apperrors.ErrCartChanged.Wrap(fmt.Errorf("order %s: %w", cart.ID, err))
	}
	if err != nil {
		return fmt.Errorf("save order %s: %w", cart.ID, err)
	}
	return nil
}

func (s *DurableCartStore) Discard(ctx context.Context, _ *CartRequest, cart *models.Order) error {
	if !cart.IsPersisted() {
		return nil
	}
	if err := s.orders.Delete(ctx, cart); err != nil {
		return fmt.Errorf("delete order %s: %w", cart.ID, err)
	}
	return nil
}

// Checkout reads the PENDING order under a row lock held until the checkout
// transaction ends.
func (s *DurableCartStore) Checkout(ctx context.Context, req *CartRequest) (*models.Order, error) {
	user, err := loadUser(ctx, s.users, req)
	if err != nil {
		return nil, err
	}
	cart, err := s.orders.FindPendingByUserIDForUpdate(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock pending order: %w", err)
	}
	return cart, nil
}

// Confirm saves the CONFIRMED order. The save only applies to a row that is
// still PENDING; otherwise it fails with ErrCartChanged.
func (s *DurableCartStore) Confirm(ctx context.Context, req *CartRequest, order *models.Order) error {
	return s.Save(ctx, req, order)
}

// Settle has nothing to do: the row lock ends with the transaction and a
// confirmed row no longer matches the pending lookup.
func (s *DurableCartStore) Settle(context.Context, *CartRequest, bool) error {
	return nil
}
