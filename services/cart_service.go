package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/metrics"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

// CartService defines the cart operations a shopper can perform.
type CartService interface {
	View(ctx context.Context, req *CartRequest) (*models.Order, error)
	Add(ctx context.Context, req *CartRequest, productID uuid.UUID) (*models.Order, error)
	Increase(ctx context.Context, req *CartRequest, productID uuid.UUID) (*models.Order, error)
	Decrease(ctx context.Context, req *CartRequest, productID uuid.UUID) (*models.Order, error)
	Remove(ctx context.Context, req *CartRequest, productID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, req *CartRequest) error
}

type cartServiceImpl struct {
	tx       repository.Transactor
	resolver *CartResolver
	products repository.ProductRepository
	metrics  *metrics.StoreMetrics
	logger   *zap.Logger
}

func NewCartService(
	tx repository.Transactor,
	resolver *CartResolver,
	products repository.ProductRepository,
	m *metrics.StoreMetrics,
	logger *zap.Logger,
) CartService {
	return &cartServiceImpl{
		tx:       tx,
		resolver: resolver,
		products: products,
		metrics:  m,
		logger:   logger,
	}
}

// mutation reports whether the cart changed and must be saved back.
type mutation func(ctx context.Context, cart *models.Order) (bool, error)

// mutate resolves the cart, applies fn, recomputes the total and saves the
// cart back, all in one unit of work.
func (s *cartServiceImpl) mutate(ctx context.Context, req *CartRequest, op string, fn mutation) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.resolver.Resolve(ctx, req)
		if err != nil {
			return err
		}
		changed, err := fn(ctx, cart)
		if err != nil {
			return err
		}
		if changed {
			cart.RecalculateTotal()
			if err := s.resolver.StoreFor(req).Save(ctx, req, cart); err != nil {
				return err
			}
		}
		result = cart
		return nil
	})
	s.metrics.CartMutation(op, err)
	if err != nil {
		req.Forget()
		return nil, err
	}
	return result, nil
}

func (s *cartServiceImpl) View(ctx context.Context, req *CartRequest) (*models.Order, error) {
	var cart *models.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.resolver.Resolve(ctx, req)
		return err
	})
	if err != nil {
		req.Forget()
		return nil, err
	}
	return cart, nil
}

// Add puts one unit of a product in the cart. A product with no stock is
// refused without touching the cart; stock is not reserved.
func (s *cartServiceImpl) Add(ctx context.Context, req *CartRequest, productID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, req, "add", func(ctx context.Context, cart *models.Order) (bool, error) {
		product, err := s.products.FindByID(ctx, productID)
		if errors.Is(err, repository.ErrNotFound) {
			return false, apperrors.ErrProductNotFound
		}
		if err != nil {
			return false, fmt.Errorf("load product %s: %w", productID, err)
		}
		if !product.Available() {
			return false, apperrors.ErrProductUnavailable
		}

		if item := cart.FindItem(productID); item != nil {
			item.Quantity++
			item.Reprice(product.Name, product.Price)
		} else {
			cart.AddItem(product)
		}
		return true, nil
	})
}

func (s *cartServiceImpl) Increase(ctx context.Context, req *CartRequest, productID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, req, "increase", func(ctx context.Context, cart *models.Order) (bool, error) {
		item := cart.FindItem(productID)
		if item == nil {
			return false, nil
		}
		item.Quantity++
		return true, s.reprice(ctx, item)
	})
}

// Decrease takes one unit off a line; the line disappears at zero.
func (s *cartServiceImpl) Decrease(ctx context.Context, req *CartRequest, productID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, req, "decrease", func(ctx context.Context, cart *models.Order) (bool, error) {
		item := cart.FindItem(productID)
		if item == nil {
			return false, nil
		}
		if item.Quantity <= 1 {
			cart.RemoveItem(productID)
			return true, nil
		}
		item.Quantity--
		return true, s.reprice(ctx, item)
	})
}

func (s *cartServiceImpl) Remove(ctx context.Context, req *CartRequest, productID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, req, "remove", func(_ context.Context, cart *models.Order) (bool, error) {
		return cart.RemoveItem(productID), nil
	})
}

// Cancel throws the current cart away: the PENDING row is deleted for a
// registered shopper, the session cart is dropped for a guest.
func (s *cartServiceImpl) Cancel(ctx context.Context, req *CartRequest) error {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		store := s.resolver.StoreFor(req)
		cart, err := store.Load(ctx, req)
		if err != nil || cart == nil {
			return err
		}
		return store.Discard(ctx, req, cart)
	})
	req.Forget()
	s.metrics.CartMutation("cancel", err)
	return err
}

// reprice refreshes the line from the product's current price. A product
// that has since been deleted keeps the price captured on the line.
func (s *cartServiceImpl) reprice(ctx context.Context, item *models.OrderItem) error {
	product, err := s.products.FindByID(ctx, item.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Product on cart line no longer exists, keeping captured price",
			zap.String("product_id", item.ProductID.String()))
		item.Reprice("", item.UnitPrice)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load product %s: %w", item.ProductID, err)
	}
	item.Reprice(product.Name, product.Price)
	return nil
}
