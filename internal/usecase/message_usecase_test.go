package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"wichat/internal/entity"
)

func newMessageFixture(cfg MessageConfig) (*fakeMessageRepo, *recordingNotifier, *countingCache, MessageUsecase) {
	messageRepo := newFakeMessageRepo()
	notifier := &recordingNotifier{}
	unreadCache := newCountingCache()
	uc := NewMessageUsecase(messageRepo, newFakeUserRepo("alice", "bob", "carol"), &fakeMediaStore{}, notifier, unreadCache, cfg)
	return messageRepo, notifier, unreadCache, uc
}

func TestSendPersistsThenNotifies(t *testing.T) {
	ctx := context.Background()
	messageRepo, notifier, unreadCache, uc := newMessageFixture(MessageConfig{})

	message, err := uc.Send(ctx, "alice", "bob", "hi bob", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if message.Id == "" {
		t.Fatal("expected the ledger to assign an id")
	}
	if message.Status != entity.MessageStatusUnread {
		t.Fatalf("expected new message unread, got %q", message.Status)
	}

	if len(notifier.messages) != 1 || notifier.messages[0].Id != message.Id {
		t.Fatalf("expected the durable message handed to the notifier, got %+v", notifier.messages)
	}
	if unreadCache.invalidations != 1 {
		t.Fatalf("expected the receiver's cached counts invalidated, got %d invalidations", unreadCache.invalidations)
	}
	if _, err := messageRepo.Get(ctx, message.Id); err != nil {
		t.Fatalf("message not durable: %v", err)
	}
}

func TestSendToUnknownPeerFails(t *testing.T) {
	ctx := context.Background()
	messageRepo, notifier, _, uc := newMessageFixture(MessageConfig{})

	_, err := uc.Send(ctx, "alice", "nobody", "hello?", "")
	if !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("expected ErrPeerNotFound, got %v", err)
	}
	if len(messageRepo.messages) != 0 {
		t.Fatal("expected nothing written to the ledger")
	}
	if len(notifier.messages) != 0 {
		t.Fatal("expected no notification for a rejected send")
	}
}

func TestSendUploadsImageBeforeLedgerWrite(t *testing.T) {
	ctx := context.Background()
	messageRepo := newFakeMessageRepo()
	media := &fakeMediaStore{}
	uc := NewMessageUsecase(messageRepo, newFakeUserRepo("alice", "bob"), media, &recordingNotifier{}, newCountingCache(), MessageConfig{})

	message, err := uc.Send(ctx, "alice", "bob", "", "base64-image-bytes")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if message.Image != "https://cdn.example.com/1" {
		t.Fatalf("expected the durable URL on the message, got %q", message.Image)
	}

	media.fail = true
	_, err = uc.Send(ctx, "alice", "bob", "", "base64-image-bytes")
	if !errors.Is(err, ErrMediaUpload) {
		t.Fatalf("expected ErrMediaUpload, got %v", err)
	}
	if len(messageRepo.messages) != 1 {
		t.Fatal("expected the failed upload to keep the ledger untouched")
	}
}

func TestSendContentPolicy(t *testing.T) {
	ctx := context.Background()

	_, _, _, permissive := newMessageFixture(MessageConfig{})
	if _, err := permissive.Send(ctx, "alice", "bob", "", ""); err != nil {
		t.Fatalf("expected empty message permitted by default, got %v", err)
	}

	_, _, _, strict := newMessageFixture(MessageConfig{RequireContent: true})
	if _, err := strict.Send(ctx, "alice", "bob", "", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage under RequireContent, got %v", err)
	}
	if _, err := strict.Send(ctx, "alice", "bob", "hi", ""); err != nil {
		t.Fatalf("expected text-only message accepted, got %v", err)
	}
}

func TestConversationPagesConcatenateToFullHistory(t *testing.T) {
	ctx := context.Background()
	_, _, _, uc := newMessageFixture(MessageConfig{})

	// 45 alternating messages; with limit 20 that is pages of 20, 20
	// and 5, walking from the newest end backward.
	var sent []entity.Message
	for i := 0; i < 45; i++ {
		senderId, receiverId := "alice", "bob"
		if i%2 == 1 {
			senderId, receiverId = "bob", "alice"
		}
		message, err := uc.Send(ctx, senderId, receiverId, fmt.Sprintf("message %d", i), "")
		if err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
		sent = append(sent, message)
	}

	wantLens := []int{20, 20, 5}
	var assembled []entity.Message
	for pageNum := 1; pageNum <= 3; pageNum++ {
		result, err := uc.ConversationPage(ctx, "alice", "bob", pageNum, 20)
		if err != nil {
			t.Fatalf("page %d failed: %v", pageNum, err)
		}

		p := result.Pagination
		if p.CurrentPage != pageNum || p.TotalPages != 3 || p.TotalMessages != 45 || p.Limit != 20 {
			t.Fatalf("page %d pagination wrong: %+v", pageNum, p)
		}
		if want := pageNum < 3; p.HasNextPage != want {
			t.Fatalf("page %d hasNextPage = %v, want %v", pageNum, p.HasNextPage, want)
		}
		if len(result.Messages) != wantLens[pageNum-1] {
			t.Fatalf("page %d holds %d messages, want %d", pageNum, len(result.Messages), wantLens[pageNum-1])
		}

		// Older pages go in front: page N+1 is strictly older than page N.
		assembled = append(append([]entity.Message{}, result.Messages...), assembled...)
	}

	if len(assembled) != len(sent) {
		t.Fatalf("assembled %d messages, want %d", len(assembled), len(sent))
	}
	for i := range sent {
		if assembled[i].Id != sent[i].Id {
			t.Fatalf("assembled history out of order at %d: got %s want %s", i, assembled[i].Id, sent[i].Id)
		}
	}
}

func TestConversationPageDefaultsAndBounds(t *testing.T) {
	ctx := context.Background()
	_, _, _, uc := newMessageFixture(MessageConfig{})

	if _, err := uc.Send(ctx, "alice", "bob", "only one", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	result, err := uc.ConversationPage(ctx, "alice", "bob", 0, 0)
	if err != nil {
		t.Fatalf("defaulted page failed: %v", err)
	}
	if result.Pagination.CurrentPage != 1 || result.Pagination.Limit != DefaultPageLimit {
		t.Fatalf("expected defaults page=1 limit=%d, got %+v", DefaultPageLimit, result.Pagination)
	}

	if _, err := uc.ConversationPage(ctx, "alice", "bob", -1, 20); !errors.Is(err, ErrInvalidPaging) {
		t.Fatalf("expected ErrInvalidPaging for negative page, got %v", err)
	}
	if _, err := uc.ConversationPage(ctx, "alice", "bob", 1, -5); !errors.Is(err, ErrInvalidPaging) {
		t.Fatalf("expected ErrInvalidPaging for negative limit, got %v", err)
	}

	// Past the end: well-formed empty page, not an error.
	result, err = uc.ConversationPage(ctx, "alice", "bob", 99, 20)
	if err != nil {
		t.Fatalf("out-of-range page failed: %v", err)
	}
	if len(result.Messages) != 0 {
		t.Fatalf("expected empty page past the end, got %d messages", len(result.Messages))
	}
	if result.Messages == nil {
		t.Fatal("expected an empty slice, not nil")
	}
	if result.Pagination.HasNextPage {
		t.Fatal("expected no next page past the end")
	}
}

func TestConversationPageEmptyConversation(t *testing.T) {
	ctx := context.Background()
	_, _, _, uc := newMessageFixture(MessageConfig{})

	result, err := uc.ConversationPage(ctx, "alice", "bob", 1, 20)
	if err != nil {
		t.Fatalf("empty conversation failed: %v", err)
	}
	if result.Pagination.TotalMessages != 0 || result.Pagination.TotalPages != 0 || result.Pagination.HasNextPage {
		t.Fatalf("unexpected pagination for empty conversation: %+v", result.Pagination)
	}
	if len(result.Messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(result.Messages))
	}
}

func TestMarkReadIdempotentAndAcked(t *testing.T) {
	ctx := context.Background()
	messageRepo, notifier, unreadCache, uc := newMessageFixture(MessageConfig{})

	for i := 0; i < 3; i++ {
		if _, err := uc.Send(ctx, "bob", "alice", fmt.Sprintf("unread %d", i), ""); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	if err := uc.MarkRead(ctx, "alice", "bob"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	counts, err := messageRepo.UnreadCounts(ctx, "alice")
	if err != nil {
		t.Fatalf("unread counts failed: %v", err)
	}
	if counts["bob"] != 0 {
		t.Fatalf("expected bob's unread count cleared, got %d", counts["bob"])
	}

	if len(notifier.acks) != 1 {
		t.Fatalf("expected one read ack, got %d", len(notifier.acks))
	}
	if ack := notifier.acks[0]; ack.readerId != "alice" || ack.originalSenderId != "bob" {
		t.Fatalf("ack has wrong direction: %+v", ack)
	}
	if unreadCache.invalidations == 0 {
		t.Fatal("expected the reader's cached counts invalidated")
	}

	// Re-running matches nothing and still succeeds.
	if err := uc.MarkRead(ctx, "alice", "bob"); err != nil {
		t.Fatalf("repeated mark read failed: %v", err)
	}

	// Alice's own messages to bob stay untouched.
	if _, err := uc.Send(ctx, "alice", "bob", "outbound", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := uc.MarkRead(ctx, "alice", "bob"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	bobCounts, err := messageRepo.UnreadCounts(ctx, "bob")
	if err != nil {
		t.Fatalf("unread counts failed: %v", err)
	}
	if bobCounts["alice"] != 1 {
		t.Fatalf("expected alice's outbound message still unread at bob, got %d", bobCounts["alice"])
	}
}

func TestUnreadCountsCachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	_, _, unreadCache, uc := newMessageFixture(MessageConfig{})

	if _, err := uc.Send(ctx, "bob", "alice", "one", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := uc.Send(ctx, "carol", "alice", "two", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	counts, err := uc.UnreadCounts(ctx, "alice")
	if err != nil {
		t.Fatalf("unread counts failed: %v", err)
	}
	if counts["bob"] != 1 || counts["carol"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if unreadCache.sets != 1 {
		t.Fatalf("expected the miss to populate the cache, got %d sets", unreadCache.sets)
	}

	if _, err := uc.UnreadCounts(ctx, "alice"); err != nil {
		t.Fatalf("unread counts failed: %v", err)
	}
	if unreadCache.hits != 1 {
		t.Fatalf("expected the second read served from cache, got %d hits", unreadCache.hits)
	}

	// A new inbound message invalidates, so the next read recomputes.
	if _, err := uc.Send(ctx, "bob", "alice", "three", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	counts, err = uc.UnreadCounts(ctx, "alice")
	if err != nil {
		t.Fatalf("unread counts failed: %v", err)
	}
	if counts["bob"] != 2 {
		t.Fatalf("expected bob at 2 after invalidation, got %d", counts["bob"])
	}
}

func TestUnreadCountsRepoErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	messageRepo, _, _, uc := newMessageFixture(MessageConfig{})
	messageRepo.failCounts = true

	if _, err := uc.UnreadCounts(ctx, "alice"); err == nil {
		t.Fatal("expected the aggregation error to surface")
	}
}
