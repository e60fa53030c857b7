package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/events"
	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/model"
	"github.com/shinyyama/unimarket-backend/internal/observability"
	"github.com/shinyyama/unimarket-backend/internal/repository"
	"github.com/shinyyama/unimarket-backend/internal/reqctx"
)

const MaxMessageLength = 2000

// ConversationView is a conversation joined with display data for one viewer.
type ConversationView struct {
	model.Conversation
	ItemTitle     string
	SellerName    string
	BuyerName     string
	OtherUserName string
	MyUnreadCount int
}

// MessageView is a message joined with its sender's display name.
type MessageView struct {
	model.Message
	SenderName string
}

type ConversationService interface {
	CreateOrGet(ctx context.Context, itemID, sellerID, buyerID uint64) (*ConversationView, error)
	ListByUser(ctx context.Context, uid uint64) ([]ConversationView, error)
	Get(ctx context.Context, convID, uid uint64) (*ConversationView, error)
	ListMessages(ctx context.Context, convID, uid uint64) ([]MessageView, error)
	SendMessage(ctx context.Context, convID, uid uint64, text string) (*MessageView, error)
	Delete(ctx context.Context, convID, uid uint64) error
}

type ConversationOption func(*conversationService)

// WithClock replaces time.Now for timestamps written by the service.
func WithClock(now func() time.Time) ConversationOption {
	return func(s *conversationService) { s.now = now }
}

type conversationService struct {
	convRepo      repository.ConversationRepository
	itemRepo      repository.ItemRepository
	userRepo      repository.UserRepository
	notifications NotificationService
	publisher     events.Publisher
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewConversationService(
	convRepo repository.ConversationRepository,
	itemRepo repository.ItemRepository,
	userRepo repository.UserRepository,
	notifications NotificationService,
	publisher events.Publisher,
	log logrus.FieldLogger,
	opts ...ConversationOption,
) ConversationService {
	if log == nil {
		log = logging.Discard()
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher(log, "not configured")
	}
	s := &conversationService{
		convRepo:      convRepo,
		itemRepo:      itemRepo,
		userRepo:      userRepo,
		notifications: notifications,
		publisher:     publisher,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *conversationService) CreateOrGet(ctx context.Context, itemID, sellerID, buyerID uint64) (*ConversationView, error) {
	if itemID == 0 || sellerID == 0 {
		return nil, validationError("item_id and seller_id are required")
	}
	if buyerID == sellerID {
		return nil, validationError("cannot start a conversation with yourself")
	}
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, translate(err, "item not found")
	}
	seller, err := s.userRepo.FindByID(ctx, sellerID)
	if err != nil {
		return nil, translate(err, "seller not found")
	}
	buyer, err := s.userRepo.FindByID(ctx, buyerID)
	if err != nil {
		return nil, translate(err, "user not found")
	}

	ts := s.now()
	cv, created, err := s.convRepo.FindOrCreate(ctx, &model.Conversation{
		ItemID:    item.ID,
		BuyerID:   buyer.ID,
		SellerID:  seller.ID,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		return nil, err
	}
	if created {
		observability.IncConversationCreated()
		s.publish(ctx, events.RoutingConversationCreated, events.ConversationPayload{
			ConversationID: cv.ID,
			ItemID:         cv.ItemID,
			BuyerID:        cv.BuyerID,
			SellerID:       cv.SellerID,
			ActorID:        buyerID,
		})
	}

	return &ConversationView{
		Conversation:  *cv,
		ItemTitle:     item.Title,
		SellerName:    seller.Name,
		BuyerName:     buyer.Name,
		OtherUserName: seller.Name,
		MyUnreadCount: cv.UnreadFor(buyerID),
	}, nil
}

func (s *conversationService) ListByUser(ctx context.Context, uid uint64) ([]ConversationView, error) {
	convs, err := s.convRepo.FindByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, convs, uid)
}

func (s *conversationService) Get(ctx context.Context, convID, uid uint64) (*ConversationView, error) {
	cv, err := s.participantConversation(ctx, convID, uid)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, []model.Conversation{*cv}, uid)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListMessages returns the thread oldest first and marks it read for uid.
// The returned read flags reflect the state before this call.
func (s *conversationService) ListMessages(ctx context.Context, convID, uid uint64) ([]MessageView, error) {
	cv, err := s.participantConversation(ctx, convID, uid)
	if err != nil {
		return nil, err
	}
	msgs, err := s.convRepo.ListMessages(ctx, convID)
	if err != nil {
		return nil, err
	}
	names, err := s.userNames(ctx, []uint64{cv.BuyerID, cv.SellerID})
	if err != nil {
		return nil, err
	}

	reader := repository.BuyerSide
	if uid == cv.SellerID {
		reader = repository.SellerSide
	}
	if err := s.convRepo.MarkRead(ctx, convID, uid, reader); err != nil {
		return nil, err
	}
	if s.notifications != nil {
		if err := s.notifications.MarkByConversation(ctx, uid, convID); err != nil {
			logging.FromContext(ctx, s.log).WithError(err).Warn("mark conversation notifications read failed")
		}
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, MessageView{Message: m, SenderName: names[m.SenderID]})
	}
	return views, nil
}

func (s *conversationService) SendMessage(ctx context.Context, convID, uid uint64, text string) (*MessageView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("message is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, validationError("message is too long")
	}
	cv, err := s.participantConversation(ctx, convID, uid)
	if err != nil {
		return nil, err
	}

	// only the counterpart's badge moves; a sender never bumps their own counter
	recipient, recipientID, role := repository.SellerSide, cv.SellerID, "buyer"
	if uid == cv.SellerID {
		recipient, recipientID, role = repository.BuyerSide, cv.BuyerID, "seller"
	}
	msg := &model.Message{
		ConversationID: convID,
		SenderID:       uid,
		Body:           text,
		CreatedAt:      s.now(),
	}
	if err := s.convRepo.AppendMessage(ctx, msg, recipient); err != nil {
		return nil, translate(err, "conversation not found")
	}
	observability.IncMessageSent(role)

	sender, err := s.userRepo.FindByID(ctx, uid)
	senderName := ""
	if err == nil {
		senderName = sender.Name
	} else if !errors.Is(err, repository.ErrNotFound) {
		logging.FromContext(ctx, s.log).WithError(err).Warn("sender lookup failed")
	}

	if s.notifications != nil {
		title := "New message"
		if senderName != "" {
			title = "New message from " + senderName
		}
		itemID, cid := cv.ItemID, cv.ID
		s.notifications.Notify(ctx, recipientID, model.NotificationTypeMessage, title, preview(text), &itemID, &cid)
	}
	s.publish(ctx, events.RoutingMessageSent, events.MessagePayload{
		MessageID:      msg.ID,
		ConversationID: convID,
		SenderID:       uid,
		RecipientID:    recipientID,
		Length:         utf8.RuneCountInString(text),
	})

	return &MessageView{Message: *msg, SenderName: senderName}, nil
}

func (s *conversationService) Delete(ctx context.Context, convID, uid uint64) error {
	cv, err := s.participantConversation(ctx, convID, uid)
	if err != nil {
		return err
	}
	if err := s.convRepo.Delete(ctx, convID); err != nil {
		return translate(err, "conversation not found")
	}
	s.publish(ctx, events.RoutingConversationDeleted, events.ConversationPayload{
		ConversationID: cv.ID,
		ItemID:         cv.ItemID,
		BuyerID:        cv.BuyerID,
		SellerID:       cv.SellerID,
		ActorID:        uid,
	})
	return nil
}

func (s *conversationService) participantConversation(ctx context.Context, convID, uid uint64) (*model.Conversation, error) {
	if convID == 0 {
		return nil, validationError("invalid conversation id")
	}
	cv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		return nil, translate(err, "conversation not found")
	}
	if !cv.IsParticipant(uid) {
		return nil, forbiddenError("not a participant")
	}
	return cv, nil
}

func (s *conversationService) enrich(ctx context.Context, convs []model.Conversation, uid uint64) ([]ConversationView, error) {
	userIDs := make([]uint64, 0, len(convs)*2)
	itemIDs := make([]uint64, 0, len(convs))
	for _, cv := range convs {
		userIDs = append(userIDs, cv.BuyerID, cv.SellerID)
		itemIDs = append(itemIDs, cv.ItemID)
	}
	names, err := s.userNames(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.FindByIDs(ctx, dedupe(itemIDs))
	if err != nil {
		return nil, err
	}
	titles := make(map[uint64]string, len(items))
	for _, it := range items {
		titles[it.ID] = it.Title
	}

	views := make([]ConversationView, 0, len(convs))
	for _, cv := range convs {
		views = append(views, ConversationView{
			Conversation:  cv,
			ItemTitle:     titles[cv.ItemID],
			SellerName:    names[cv.SellerID],
			BuyerName:     names[cv.BuyerID],
			OtherUserName: names[cv.CounterpartOf(uid)],
			MyUnreadCount: cv.UnreadFor(uid),
		})
	}
	return views, nil
}

func (s *conversationService) userNames(ctx context.Context, ids []uint64) (map[uint64]string, error) {
	users, err := s.userRepo.FindByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}
	names := make(map[uint64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// publish is best-effort; failures are logged and never surface to the caller.
func (s *conversationService) publish(ctx context.Context, routingKey string, payload any) {
	env := events.NewEnvelope(routingKey, reqctx.RequestID(ctx), payload)
	if err := s.publisher.Publish(ctx, routingKey, env); err != nil {
		observability.IncAMQPPublishError()
		logging.FromContext(ctx, s.log).WithError(err).WithField("routing_key", routingKey).Warn("event publish failed")
	}
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func preview(text string) string {
	const limit = 120
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	r := []rune(text)
	return string(r[:limit]) + "…"
}
