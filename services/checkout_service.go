package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/common/logger"
	"github.com/yashrajoria/storefront-service/metrics"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

// CheckoutService turns a cart into a confirmed order.
type CheckoutService interface {
	// Validate runs the empty-cart and stock checks without locking or
	// writing anything. It backs the "place order" step.
	Validate(ctx context.Context, req *CartRequest) (*models.Order, error)
	// Prefill returns the contact form as it should be shown to the actor.
	Prefill(ctx context.Context, req *CartRequest) (models.ContactForm, error)
	// Finalize confirms the cart, debiting stock for every line, or changes
	// nothing at all.
	Finalize(ctx context.Context, req *CartRequest, form models.ContactForm) (*models.Order, error)
}

type checkoutServiceImpl struct {
	tx        repository.Transactor
	resolver  *CartResolver
	ledger    *StockLedger
	binder    *ContactBinder
	users     repository.UserRepository
	publisher OrderEventPublisher
	metrics   *metrics.StoreMetrics
	logger    *zap.Logger
}

func NewCheckoutService(
	tx repository.Transactor,
	resolver *CartResolver,
	ledger *StockLedger,
	binder *ContactBinder,
	users repository.UserRepository,
	publisher OrderEventPublisher,
	m *metrics.StoreMetrics,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		tx:        tx,
		resolver:  resolver,
		ledger:    ledger,
		binder:    binder,
		users:     users,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

func (s *checkoutServiceImpl) Validate(ctx context.Context, req *CartRequest) (*models.Order, error) {
	cart, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		req.Forget()
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, apperrors.ErrEmptyCart
	}
	if _, err := s.ledger.Check(ctx, cart.Items, false); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *checkoutServiceImpl) Prefill(ctx context.Context, req *CartRequest) (models.ContactForm, error) {
	if !req.Actor.IsAuthenticated() {
		return models.ContactForm{}, nil
	}
	user, err := loadUser(ctx, s.users, req)
	if err != nil {
		return models.ContactForm{}, err
	}
	return models.ContactForm{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Address:   user.Address,
	}, nil
}

// Finalize runs in one transaction: the cart is taken for checkout and
// checked for emptiness, the contact is bound, every product is locked and
// checked, stock is debited, lines are re-priced from the locked rows and the
// order is stored as CONFIRMED. Any failure leaves the cart PENDING and stock
// untouched. The cart store is settled only after the transaction has ended.
func (s *checkoutServiceImpl) Finalize(ctx context.Context, req *CartRequest, form models.ContactForm) (*models.Order, error) {
	start := time.Now()
	store := s.resolver.StoreFor(req)

	var (
		confirmed *models.Order
		held      bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cart, err := store.Checkout(ctx, req)
		if err != nil {
			return err
		}
		held = true
		if cart == nil || cart.IsEmpty() {
			return apperrors.ErrEmptyCart
		}

		if err := s.binder.Bind(ctx, req, cart, form); err != nil {
			return err
		}

		products, err := s.ledger.Check(ctx, cart.Items, true)
		if err != nil {
			return err
		}
		if err := s.ledger.Debit(ctx, cart.Items, products); err != nil {
			return err
		}

		for i := range cart.Items {
			p := products[cart.Items[i].ProductID]
			cart.Items[i].Reprice(p.Name, p.Price)
		}
		cart.RecalculateTotal()
		cart.Status = models.OrderStatusConfirmed

		if err := store.Confirm(ctx, req, cart); err != nil {
			if rerr := s.ledger.Release(ctx, cart.Items); rerr != nil {
				s.logger.Error("Failed to credit back stock after rejected confirm", zap.Error(rerr))
			}
			return err
		}
		confirmed = cart
		return nil
	})
	if held {
		if serr := store.Settle(context.WithoutCancel(ctx), req, err == nil); serr != nil {
			logger.Warn(ctx, "Failed to settle cart after checkout", zap.Error(serr))
		}
	}
	req.Forget()

	if err != nil {
		s.metrics.Checkout(checkoutResult(err), time.Since(start), 0)
		if appErr := apperrors.From(err); appErr.Recoverable() {
			logger.Info(ctx, "Checkout rejected", zap.String("reason", appErr.Message))
		}
		return nil, err
	}

	s.metrics.Checkout(metrics.ResultConfirmed, time.Since(start), confirmed.Units())
	s.logger.Info("Order confirmed",
		zap.String("order_id", confirmed.ID.String()),
		zap.Bool("guest", !req.Actor.IsAuthenticated()),
		zap.String("total", confirmed.TotalPrice.StringFixed(2)),
		zap.String("request_id", logger.RequestIDFrom(ctx)),
	)
	s.publisher.OrderConfirmed(ctx, confirmed)
	return confirmed, nil
}

func checkoutResult(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrEmptyCart):
		return metrics.ResultEmptyCart
	case errors.Is(err, apperrors.ErrInsufficientStock):
		return metrics.ResultInsufficientStock
	case errors.Is(err, apperrors.ErrInvalidContact):
		return metrics.ResultInvalidContact
	case errors.Is(err, apperrors.ErrCartChanged), errors.Is(err, apperrors.ErrCheckoutInProgress):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
