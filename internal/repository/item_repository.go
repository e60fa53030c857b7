package repository

import (
	"context"

	"github.com/shinyyama/unimarket-backend/internal/model"
	"gorm.io/gorm"
)

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, id uint64) (*model.Item, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]model.Item, error)
	List(ctx context.Context, limit, offset int, sellerID uint64) ([]model.Item, int64, error)
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *itemRepository) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	var item model.Item
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *itemRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []model.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// List pages through items newest first; sellerID 0 means every seller.
func (r *itemRepository) List(ctx context.Context, limit, offset int, sellerID uint64) ([]model.Item, int64, error) {
	var (
		items []model.Item
		total int64
	)
	bySeller := func(db *gorm.DB) *gorm.DB {
		if sellerID != 0 {
			return db.Where("seller_id = ?", sellerID)
		}
		return db
	}
	if err := r.db.WithContext(ctx).Model(&model.Item{}).Scopes(bySeller).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).
		Scopes(bySeller).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
