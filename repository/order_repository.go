package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yashrajoria/storefront-service/models"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	FindPendingByUserID(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	// FindPendingByUserIDForUpdate is FindPendingByUserID holding a row lock
	// until the surrounding transaction ends.
	FindPendingByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, status models.OrderStatus, page, limit int) ([]models.Order, int64, error)
	FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	// Create inserts a new order. It returns ErrDuplicate when the user
	// already has a PENDING order.
	Create(ctx context.Context, order *models.Order) error
	// Save writes the order and makes its stored lines match order.Items.
	// It returns ErrStaleOrder when the stored row is no longer PENDING.
	Save(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, order *models.Order) error
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("product_name ASC")
}

func (r *GormOrderRepository) FindPendingByUserID(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	return r.findPending(conn(ctx, r.db), userID)
}

// FindPendingByUserIDForUpdate locks the order row. A second caller blocks
// until the first transaction ends and then no longer matches if that
// transaction confirmed the order.
func (r *GormOrderRepository) FindPendingByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	return r.findPending(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *GormOrderRepository) findPending(db *gorm.DB, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.
		Preload("Items", preloadItems).
		Where("user_id = ? AND status = ?", userID, models.OrderStatusPending).
		First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// FindByUserID retrieves orders for a specific user with pagination
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := conn(ctx, r.db).
		Model(&models.Order{}).
		Where("user_id = ? AND status = ?", userID, status)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Items", preloadItems).
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// FindByIDAndUserID retrieves a specific order for a user
func (r *GormOrderRepository) FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := conn(ctx, r.db).
		Preload("Items", preloadItems).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// Create inserts the order and its lines. A second PENDING order for the same
// user is skipped by ON CONFLICT against the partial unique index, which
// keeps the surrounding transaction usable for the re-read.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	db := conn(ctx, r.db)
	onPending := clause.OnConflict{
		Columns:     []clause.Column{{Name: "user_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "status = 'PENDING'"}}},
		DoNothing:   true,
	}

	result := db.Omit("Items").Clauses(onPending).Create(order)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrDuplicate
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		order.ID = uuid.Nil
		return ErrDuplicate
	}
	return r.saveItems(db, order)
}

// Save only updates a row that is still PENDING, so a request that read the
// cart before a concurrent checkout committed cannot overwrite the confirmed
// order or confirm it a second time.
func (r *GormOrderRepository) Save(ctx context.Context, order *models.Order) error {
	db := conn(ctx, r.db)
	result := db.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"user_id":         order.UserID,
			"status":          order.Status,
			"total_price":     order.TotalPrice,
			"contact_name":    order.ContactName,
			"contact_phone":   order.ContactPhone,
			"contact_address": order.ContactAddress,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleOrder
	}
	return r.saveItems(db, order)
}

// saveItems deletes stored lines that are no longer on the order and upserts
// the rest by (order_id, product_id).
func (r *GormOrderRepository) saveItems(db *gorm.DB, order *models.Order) error {
	keep := make([]uuid.UUID, 0, len(order.Items))
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		keep = append(keep, order.Items[i].ProductID)
	}

	stale := db.Where("order_id = ?", order.ID)
	if len(keep) > 0 {
		stale = stale.Where("product_id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}

	if len(order.Items) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"product_name", "quantity", "unit_price", "line_total"}),
	}).Create(&order.Items).Error
}

// Delete removes the order; its lines go with it through ON DELETE CASCADE.
func (r *GormOrderRepository) Delete(ctx context.Context, order *models.Order) error {
	return conn(ctx, r.db).Delete(&models.Order{}, "id = ?", order.ID).Error
}
