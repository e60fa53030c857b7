package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/unimarket-backend/internal/model"
	"gorm.io/gorm"
)

// UnreadSide selects which participant's unread counter a write touches.
type UnreadSide int

const (
	BuyerSide UnreadSide = iota
	SellerSide
)

func (s UnreadSide) column() string {
	if s == SellerSide {
		return "seller_unread_count"
	}
	return "unread_count"
}

type ConversationRepository interface {
	FindOrCreate(ctx context.Context, cv *model.Conversation) (*model.Conversation, bool, error)
	FindByID(ctx context.Context, id uint64) (*model.Conversation, error)
	FindByUser(ctx context.Context, uid uint64) ([]model.Conversation, error)
	AppendMessage(ctx context.Context, msg *model.Message, recipient UnreadSide) error
	ListMessages(ctx context.Context, convID uint64) ([]model.Message, error)
	MarkRead(ctx context.Context, convID, readerID uint64, reader UnreadSide) error
	Delete(ctx context.Context, convID uint64) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindOrCreate returns the conversation for cv's (item, buyer, seller) triple,
// inserting cv when none exists. The bool reports whether a row was inserted.
func (r *conversationRepository) FindOrCreate(ctx context.Context, cv *model.Conversation) (*model.Conversation, bool, error) {
	existing, err := r.findByTriple(ctx, cv.ItemID, cv.BuyerID, cv.SellerID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	row := *cv
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost the race against a concurrent insert of the same triple
			existing, ferr := r.findByTriple(ctx, cv.ItemID, cv.BuyerID, cv.SellerID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return &row, true, nil
}

func (r *conversationRepository) findByTriple(ctx context.Context, itemID, buyerID, sellerID uint64) (*model.Conversation, error) {
	var cv model.Conversation
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND buyer_id = ? AND seller_id = ?", itemID, buyerID, sellerID).
		First(&cv).Error; err != nil {
		return nil, notFound(err)
	}
	return &cv, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	var cv model.Conversation
	if err := r.db.WithContext(ctx).First(&cv, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &cv, nil
}

func (r *conversationRepository) FindByUser(ctx context.Context, uid uint64) ([]model.Conversation, error) {
	var list []model.Conversation
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? OR buyer_id = ?", uid, uid).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// AppendMessage stores msg and refreshes the owning conversation's cached
// last message, activity time and the recipient's unread counter in one transaction.
func (r *conversationRepository) AppendMessage(ctx context.Context, msg *model.Message, recipient UnreadSide) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.db.NowFunc()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		res := tx.Model(&model.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message":     msg.Body,
				"updated_at":       msg.CreatedAt,
				recipient.column(): gorm.Expr(recipient.column() + " + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *conversationRepository) ListMessages(ctx context.Context, convID uint64) ([]model.Message, error) {
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead zeroes the reader's unread counter and flags the counterpart's messages as read.
func (r *conversationRepository) MarkRead(ctx context.Context, convID, readerID uint64, reader UnreadSide) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Conversation{}).
			Where("id = ?", convID).
			UpdateColumn(reader.column(), 0).Error; err != nil {
			return err
		}
		return tx.Model(&model.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", convID, readerID, false).
			UpdateColumn("is_read", true).Error
	})
}

// Delete removes the conversation together with its messages and notifications.
func (r *conversationRepository) Delete(ctx context.Context, convID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", convID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", convID).Delete(&model.Notification{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Conversation{}, convID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
