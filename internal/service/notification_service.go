package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/model"
	"github.com/shinyyama/unimarket-backend/internal/repository"
)

type NotificationService interface {
	Notify(ctx context.Context, userID uint64, typ, title, body string, itemID, convID *uint64)
	List(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userID uint64) error
	MarkByConversation(ctx context.Context, userID, convID uint64) error
}

type notificationService struct {
	repo repository.NotificationRepository
	log  logrus.FieldLogger
}

func NewNotificationService(repo repository.NotificationRepository, log logrus.FieldLogger) NotificationService {
	if log == nil {
		log = logging.Discard()
	}
	return &notificationService{repo: repo, log: log}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, userID uint64, typ, title, body string, itemID, convID *uint64) {
	if userID == 0 || typ == "" {
		return
	}
	n := &model.Notification{
		UserID:         userID,
		Type:           typ,
		Title:          title,
		Body:           body,
		ItemID:         itemID,
		ConversationID: convID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logging.FromContext(ctx, s.log).WithError(err).WithField("type", typ).Warn("notification create failed")
	}
}

func (s *notificationService) List(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userID == 0 {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) MarkByConversation(ctx context.Context, userID, convID uint64) error {
	if userID == 0 || convID == 0 {
		return nil
	}
	return s.repo.MarkByConversation(ctx, userID, convID)
}
