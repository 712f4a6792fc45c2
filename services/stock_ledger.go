package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
)

// StockLedger owns every change to a product's stock counter.
type StockLedger struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewStockLedger(products repository.ProductRepository, logger *zap.Logger) *StockLedger {
	return &StockLedger{products: products, logger: logger}
}

// Check loads the product of every line and verifies that each line fits in
// the current stock. With lock set the rows stay locked until the caller's
// transaction ends; they are visited in ascending id order so concurrent
// checkouts lock in the same order.
//
// The first line that does not fit yields InsufficientStock naming the
// product and its available quantity.
func (l *StockLedger) Check(ctx context.Context, items []models.OrderItem, lock bool) (map[uuid.UUID]*models.Product, error) {
	lines := sortedByProduct(items)
	products := make(map[uuid.UUID]*models.Product, len(lines))

	for _, item := range lines {
		var (
			p   *models.Product
			err error
		)
		if lock {
			p, err = l.products.FindByIDForUpdate(ctx, item.ProductID)
		} else {
			p, err = l.products.FindByID(ctx, item.ProductID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrProductNotFound.Wrap(fmt.Errorf("product %s on cart line", item.ProductID))
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}
		products[p.ID] = p
	}

	// Report in cart order so the shopper sees the first offending line.
	for _, item := range items {
		p := products[item.ProductID]
		if item.Quantity > p.Stock {
			return nil, apperrors.InsufficientStock(p.Name, p.Stock)
		}
	}
	return products, nil
}

// Debit takes every line's quantity out of stock. A debit that finds too
// little stock credits back what was already taken and returns
// InsufficientStock, so either every line is debited or none is.
func (l *StockLedger) Debit(ctx context.Context, items []models.OrderItem, products map[uuid.UUID]*models.Product) error {
	lines := sortedByProduct(items)
	for i, item := range lines {
		err := l.products.DebitStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			if p, ok := products[item.ProductID]; ok {
				p.Stock -= item.Quantity
			}
			continue
		}

		if rbErr := l.creditAll(ctx, lines[:i]); rbErr != nil {
			l.logger.Error("Failed to credit back stock after partial debit", zap.Error(rbErr))
		}
		if errors.Is(err, repository.ErrStockConflict) {
			name, available := item.ProductName, 0
			if current, ferr := l.products.FindByID(ctx, item.ProductID); ferr == nil {
				name, available = current.Name, current.Stock
			}
			return apperrors.InsufficientStock(name, available)
		}
		return fmt.Errorf("debit product %s: %w", item.ProductID, err)
	}
	return nil
}

// Credit returns quantity units of a product to stock.
func (l *StockLedger) Credit(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	if err := l.products.CreditStock(ctx, productID, quantity); err != nil {
		return fmt.Errorf("credit product %s: %w", productID, err)
	}
	return nil
}

// Release credits back every line of an order whose debit must be undone.
func (l *StockLedger) Release(ctx context.Context, items []models.OrderItem) error {
	return l.creditAll(ctx, sortedByProduct(items))
}

func (l *StockLedger) creditAll(ctx context.Context, lines []models.OrderItem) error {
	var errs []error
	for _, item := range lines {
		if err := l.Credit(ctx, item.ProductID, item.Quantity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedByProduct(items []models.OrderItem) []models.OrderItem {
	lines := make([]models.OrderItem, len(items))
	copy(lines, items)
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
	})
	return lines
}
