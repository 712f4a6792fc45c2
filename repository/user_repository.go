package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yashrajoria/storefront-service/models"
)

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Save writes the editable profile columns. Username and email are owned by
// the identity provider and never updated here.
func (r *GormUserRepository) Save(ctx context.Context, user *models.User) error {
	return conn(ctx, r.db).
		Model(user).
		Select("first_name", "last_name", "phone", "address", "updated_at").
		Updates(user).Error
}
