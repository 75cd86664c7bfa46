package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wichat/internal/entity"
	"wichat/internal/repository"
)

// fakeMessageRepo keeps the ledger in a slice and mirrors the store's
// query semantics: newest-first slicing with an oldest-first page, and
// unread aggregation by sender.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []entity.Message
	seq      int
	now      time.Time

	failCreate bool
	failCounts bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeMessageRepo) Create(_ context.Context, message entity.Message) (entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate {
		return entity.Message{}, errors.New("ledger write failed")
	}

	f.seq++
	f.now = f.now.Add(time.Second)
	message.Id = fmt.Sprintf("msg-%03d", f.seq)
	message.Status = entity.MessageStatusUnread
	message.CreatedAt = f.now
	f.messages = append(f.messages, message)

	return message, nil
}

func (f *fakeMessageRepo) Get(_ context.Context, messageId string) (entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, message := range f.messages {
		if message.Id == messageId {
			return message, nil
		}
	}
	return entity.Message{}, errors.New("message not found")
}

func (f *fakeMessageRepo) conversation(userA, userB string) []entity.Message {
	var conversation []entity.Message
	for _, message := range f.messages {
		if (message.SenderId == userA && message.ReceiverId == userB) ||
			(message.SenderId == userB && message.ReceiverId == userA) {
			conversation = append(conversation, message)
		}
	}
	return conversation
}

func (f *fakeMessageRepo) CountConversation(_ context.Context, userA, userB string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return int64(len(f.conversation(userA, userB))), nil
}

func (f *fakeMessageRepo) ConversationSlice(_ context.Context, userA, userB string, skip, limit int64) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conversation := f.conversation(userA, userB)
	sort.SliceStable(conversation, func(i, j int) bool {
		if !conversation[i].CreatedAt.Equal(conversation[j].CreatedAt) {
			return conversation[i].CreatedAt.After(conversation[j].CreatedAt)
		}
		return conversation[i].Id > conversation[j].Id
	})

	if skip >= int64(len(conversation)) {
		return nil, nil
	}
	conversation = conversation[skip:]
	if limit > 0 && int64(len(conversation)) > limit {
		conversation = conversation[:limit]
	}

	for i, j := 0, len(conversation)-1; i < j; i, j = i+1, j-1 {
		conversation[i], conversation[j] = conversation[j], conversation[i]
	}
	return conversation, nil
}

func (f *fakeMessageRepo) MarkRead(_ context.Context, senderId, receiverId string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var modified int64
	for i := range f.messages {
		if f.messages[i].SenderId == senderId &&
			f.messages[i].ReceiverId == receiverId &&
			f.messages[i].Status == entity.MessageStatusUnread {
			f.messages[i].Status = entity.MessageStatusRead
			modified++
		}
	}
	return modified, nil
}

func (f *fakeMessageRepo) UnreadCounts(_ context.Context, recipientId string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCounts {
		return nil, errors.New("aggregation failed")
	}

	counts := make(map[string]int)
	for _, message := range f.messages {
		if message.ReceiverId == recipientId && message.Status != entity.MessageStatusRead {
			counts[message.SenderId]++
		}
	}
	return counts, nil
}

func (f *fakeMessageRepo) CountUnreadFrom(_ context.Context, senderId, receiverId string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, message := range f.messages {
		if message.SenderId == senderId &&
			message.ReceiverId == receiverId &&
			message.Status == entity.MessageStatusUnread {
			count++
		}
	}
	return count, nil
}

func messageBetween(senderId, receiverId string) entity.Message {
	return entity.Message{SenderId: senderId, ReceiverId: receiverId, Text: "hello"}
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]entity.User
}

func newFakeUserRepo(userIds ...string) *fakeUserRepo {
	users := make(map[string]entity.User, len(userIds))
	for i, userId := range userIds {
		users[userId] = entity.User{
			Id:        userId,
			FullName:  userId,
			Email:     userId + "@example.com",
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		}
	}
	return &fakeUserRepo{users: users}
}

func (f *fakeUserRepo) Get(_ context.Context, userId string) (entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userId]
	if !ok {
		return entity.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return entity.User{}, repository.ErrUserNotFound
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUserRepo) Create(_ context.Context, user entity.User) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user.Id = fmt.Sprintf("user-%03d", len(f.users)+1)
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.users[user.Id] = user
	return user.Id, nil
}

func (f *fakeUserRepo) ListExcept(_ context.Context, userId string) ([]entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var users []entity.User
	for _, user := range f.users {
		if user.Id == userId {
			continue
		}
		user.Password = ""
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (f *fakeUserRepo) SetOnline(_ context.Context, userId string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userId]
	if !ok {
		return nil
	}
	user.IsOnline = online
	f.users[userId] = user
	return nil
}

func (f *fakeUserRepo) SetProfilePic(_ context.Context, userId, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userId]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.ProfilePic = url
	f.users[userId] = user
	return nil
}

type fakeMediaStore struct {
	uploads int
	fail    bool
}

func (f *fakeMediaStore) Upload(_ context.Context, image string) (string, error) {
	if f.fail {
		return "", errors.New("upstream rejected the upload")
	}
	f.uploads++
	return fmt.Sprintf("https://cdn.example.com/%d", f.uploads), nil
}

type notifiedAck struct {
	readerId         string
	originalSenderId string
}

type recordingNotifier struct {
	messages []entity.Message
	acks     []notifiedAck
}

func (n *recordingNotifier) NotifyNewMessage(_ context.Context, message entity.Message) {
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) NotifyReadAck(_ context.Context, readerId, originalSenderId string) {
	n.acks = append(n.acks, notifiedAck{readerId: readerId, originalSenderId: originalSenderId})
}

// countingCache wraps an in-memory store and counts the traffic so
// tests can assert cache hits and invalidations.
type countingCache struct {
	store         map[string]map[string]int
	hits          int
	misses        int
	sets          int
	invalidations int
}

func newCountingCache() *countingCache {
	return &countingCache{store: make(map[string]map[string]int)}
}

func (c *countingCache) Get(_ context.Context, recipientId string) (map[string]int, bool) {
	counts, ok := c.store[recipientId]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	copied := make(map[string]int, len(counts))
	for senderId, count := range counts {
		copied[senderId] = count
	}
	return copied, true
}

func (c *countingCache) Set(_ context.Context, recipientId string, counts map[string]int) {
	c.sets++
	copied := make(map[string]int, len(counts))
	for senderId, count := range counts {
		copied[senderId] = count
	}
	c.store[recipientId] = copied
}

func (c *countingCache) Invalidate(_ context.Context, recipientId string) {
	c.invalidations++
	delete(c.store, recipientId)
}

type fakePresence struct {
	online map[string]bool
}

func newFakePresence(userIds ...string) *fakePresence {
	online := make(map[string]bool, len(userIds))
	for _, userId := range userIds {
		online[userId] = true
	}
	return &fakePresence{online: online}
}

func (f *fakePresence) IsOnline(userID string) bool { return f.online[userID] }

func (f *fakePresence) OnlineUsers() []string {
	users := make([]string, 0, len(f.online))
	for userId, online := range f.online {
		if online {
			users = append(users, userId)
		}
	}
	sort.Strings(users)
	return users
}

type pushedMessage struct {
	userId  string
	message entity.Message
}

type pushedCount struct {
	userId string
	from   string
	count  int
}

type pushedInitial struct {
	userId string
	counts map[string]int
	online []string
}

type recordingPusher struct {
	messages   []pushedMessage
	counts     []pushedCount
	initial    []pushedInitial
	broadcasts [][]string
}

func (p *recordingPusher) PushNewMessage(userId string, message entity.Message) bool {
	p.messages = append(p.messages, pushedMessage{userId: userId, message: message})
	return true
}

func (p *recordingPusher) PushUnreadCount(userId, from string, count int) bool {
	p.counts = append(p.counts, pushedCount{userId: userId, from: from, count: count})
	return true
}

func (p *recordingPusher) PushInitialState(userId string, counts map[string]int, online []string) bool {
	p.initial = append(p.initial, pushedInitial{userId: userId, counts: counts, online: online})
	return true
}

func (p *recordingPusher) BroadcastOnlineUsers(online []string) {
	p.broadcasts = append(p.broadcasts, online)
}
