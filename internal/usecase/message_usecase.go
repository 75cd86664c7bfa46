package usecase

import (
	"context"
	"errors"
	"fmt"

	"wichat/infrastructure/cache"
	"wichat/internal/entity"
	"wichat/internal/repository"
)

var (
	ErrEmptyMessage  = errors.New("message needs text or an image")
	ErrPeerNotFound  = errors.New("peer not found")
	ErrInvalidPaging = errors.New("page must be >= 1 and limit must be > 0")
	ErrMediaUpload   = errors.New("media upload failed")
)

const (
	DefaultPageLimit = 20
	maxPageLimit     = 100
)

// MediaStore is the external collaborator that turns an image payload
// into a durable URL.
type MediaStore interface {
	Upload(ctx context.Context, image string) (string, error)
}

// Notifier receives delivery work after the ledger write commits.
// Implementations are best-effort and must never fail the caller.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, message entity.Message)
	NotifyReadAck(ctx context.Context, readerId, originalSenderId string)
}

type MessageUsecase interface {
	// Send appends a message to the ledger, uploading the image first
	// when present, then hands the durable message to the notifier.
	Send(ctx context.Context, senderId, receiverId, text, image string) (entity.Message, error)
	// ConversationPage pages the conversation between userId and peerId
	// from the newest end backward. Page 1 holds the most recent limit
	// messages; each page is sorted oldest-first.
	ConversationPage(ctx context.Context, userId, peerId string, page, limit int) (entity.ConversationPage, error)
	// MarkRead flips everything peerId sent to readerId to read and
	// tells peerId (if reachable) their unread count at readerId is 0.
	// Idempotent.
	MarkRead(ctx context.Context, readerId, peerId string) error
	UnreadCounts(ctx context.Context, recipientId string) (map[string]int, error)
}

// MessageConfig carries send-path policy. RequireContent rejects
// messages with neither text nor image; the historical behavior is to
// permit them, so the default is off.
type MessageConfig struct {
	RequireContent bool
}

type messageUsecase struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	media       MediaStore
	notifier    Notifier
	unreadCache cache.UnreadCache
	cfg         MessageConfig
}

func NewMessageUsecase(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	media MediaStore,
	notifier Notifier,
	unreadCache cache.UnreadCache,
	cfg MessageConfig,
) MessageUsecase {
	return &messageUsecase{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		media:       media,
		notifier:    notifier,
		unreadCache: unreadCache,
		cfg:         cfg,
	}
}

func (m *messageUsecase) Send(ctx context.Context, senderId, receiverId, text, image string) (entity.Message, error) {
	if m.cfg.RequireContent && text == "" && image == "" {
		return entity.Message{}, ErrEmptyMessage
	}

	if _, err := m.userRepo.Get(ctx, receiverId); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return entity.Message{}, ErrPeerNotFound
		}
		return entity.Message{}, err
	}

	imageUrl := ""
	if image != "" {
		url, err := m.media.Upload(ctx, image)
		if err != nil {
			return entity.Message{}, fmt.Errorf("%w: %v", ErrMediaUpload, err)
		}
		imageUrl = url
	}

	message, err := m.messageRepo.Create(ctx, entity.Message{
		SenderId:   senderId,
		ReceiverId: receiverId,
		Text:       text,
		Image:      imageUrl,
	})
	if err != nil {
		return entity.Message{}, err
	}

	m.unreadCache.Invalidate(ctx, receiverId)
	m.notifier.NotifyNewMessage(ctx, message)

	return message, nil
}

func (m *messageUsecase) ConversationPage(ctx context.Context, userId, peerId string, page, limit int) (entity.ConversationPage, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if page < 1 || limit < 1 {
		return entity.ConversationPage{}, ErrInvalidPaging
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	total, err := m.messageRepo.CountConversation(ctx, userId, peerId)
	if err != nil {
		return entity.ConversationPage{}, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	var messages []entity.Message
	if page <= totalPages {
		skip := int64(page-1) * int64(limit)
		messages, err = m.messageRepo.ConversationSlice(ctx, userId, peerId, skip, int64(limit))
		if err != nil {
			return entity.ConversationPage{}, err
		}
	}
	if messages == nil {
		messages = []entity.Message{}
	}

	return entity.ConversationPage{
		Messages: messages,
		Pagination: entity.Pagination{
			CurrentPage:   page,
			TotalPages:    totalPages,
			TotalMessages: total,
			HasNextPage:   page < totalPages,
			Limit:         limit,
		},
	}, nil
}

func (m *messageUsecase) MarkRead(ctx context.Context, readerId, peerId string) error {
	// Monotonic set operation: the filter only matches unread messages,
	// so concurrent duplicate calls are harmless.
	if _, err := m.messageRepo.MarkRead(ctx, peerId, readerId); err != nil {
		return err
	}

	m.unreadCache.Invalidate(ctx, readerId)
	m.notifier.NotifyReadAck(ctx, readerId, peerId)

	return nil
}

func (m *messageUsecase) UnreadCounts(ctx context.Context, recipientId string) (map[string]int, error) {
	if counts, ok := m.unreadCache.Get(ctx, recipientId); ok {
		return counts, nil
	}

	counts, err := m.messageRepo.UnreadCounts(ctx, recipientId)
	if err != nil {
		return nil, err
	}

	m.unreadCache.Set(ctx, recipientId, counts)

	return counts, nil
}
