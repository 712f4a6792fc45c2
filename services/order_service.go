package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

type OrderResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

// OrderService lists a registered shopper's confirmed orders.
type OrderService interface {
	GetUserOrders(ctx context.Context, actor models.Actor, page, limit int) (*OrderResponse, error)
	GetOrderByID(ctx context.Context, actor models.Actor, orderID uuid.UUID) (*models.Order, error)
}

type orderServiceImpl struct {
	users  repository.UserRepository
	orders repository.OrderRepository
}

func NewOrderService(users repository.UserRepository, orders repository.OrderRepository) OrderService {
	return &orderServiceImpl{users: users, orders: orders}
}

func (s *orderServiceImpl) GetUserOrders(ctx context.Context, actor models.Actor, page, limit int) (*OrderResponse, error) {
	user, err := loadUser(ctx, s.users, NewCartRequest(actor, ""))
	if err != nil {
		return nil, err
	}

	orders, total, err := s.orders.FindByUserID(ctx, user.ID, models.OrderStatusConfirmed, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders of %q: %w", user.Username, err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderResponse{Orders: orders, Meta: newMetaData(page, limit, total)}, nil
}

// GetOrderByID returns one of the actor's confirmed orders. The pending cart
// is not an order and is reported as not found.
func (s *orderServiceImpl) GetOrderByID(ctx context.Context, actor models.Actor, orderID uuid.UUID) (*models.Order, error) {
	user, err := loadUser(ctx, s.users, NewCartRequest(actor, ""))
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByIDAndUserID(ctx, orderID, user.ID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && order.Status != models.OrderStatusConfirmed) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return order, nil
}
