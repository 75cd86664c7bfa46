package repository

import (
	"context"
	"time"
	"wichat/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository is the durable ledger of direct messages. A
// conversation is the set of messages whose (senderId, receiverId) pair
// matches either direction between two users.
type MessageRepository interface {
	Create(ctx context.Context, message entity.Message) (entity.Message, error)
	Get(ctx context.Context, messageId string) (entity.Message, error)
	CountConversation(ctx context.Context, userA, userB string) (int64, error)
	// ConversationSlice returns up to limit messages of the pair's
	// conversation, skipping the newest `skip` messages first. The
	// result is sorted oldest-first.
	ConversationSlice(ctx context.Context, userA, userB string, skip, limit int64) ([]entity.Message, error)
	// MarkRead flips every unread message sent by senderId to
	// receiverId to read. Idempotent: re-running matches nothing.
	MarkRead(ctx context.Context, senderId, receiverId string) (int64, error)
	// UnreadCounts aggregates unread messages addressed to recipientId,
	// grouped by sender.
	UnreadCounts(ctx context.Context, recipientId string) (map[string]int, error)
	CountUnreadFrom(ctx context.Context, senderId, receiverId string) (int, error)
}

type messageRepository struct {
	db mongo.Database
}

func NewMessageRepository(db mongo.Database) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func conversationFilter(userA, userB string) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{"senderId": userA, "receiverId": userB},
			bson.M{"senderId": userB, "receiverId": userA},
		},
	}
}

func (r *messageRepository) Create(ctx context.Context, message entity.Message) (entity.Message, error) {
	collection := r.db.Collection("messages")
	message.Id = uuid.New().String()
	message.Status = entity.MessageStatusUnread
	message.CreatedAt = time.Now().UTC()

	_, err := collection.InsertOne(ctx, message)
	if err != nil {
		return entity.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) Get(ctx context.Context, messageId string) (entity.Message, error) {
	collection := r.db.Collection("messages")
	filter := bson.M{"_id": messageId}

	var message entity.Message
	err := collection.FindOne(ctx, filter).Decode(&message)
	if err != nil {
		return entity.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) CountConversation(ctx context.Context, userA, userB string) (int64, error) {
	collection := r.db.Collection("messages")
	return collection.CountDocuments(ctx, conversationFilter(userA, userB))
}

func (r *messageRepository) ConversationSlice(ctx context.Context, userA, userB string, skip, limit int64) ([]entity.Message, error) {
	collection := r.db.Collection("messages")

	opts := options.Find()
	// Walk from the newest end backward; _id breaks createdAt ties so
	// page boundaries are stable across requests.
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := collection.Find(ctx, conversationFilter(userA, userB), opts)
	if err != nil {
		return nil, err
	}

	var messages []entity.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// Reverse to chronological order within the page.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, senderId, receiverId string) (int64, error) {
	collection := r.db.Collection("messages")
	filter := bson.M{
		"senderId":   senderId,
		"receiverId": receiverId,
		"status":     entity.MessageStatusUnread,
	}
	update := bson.M{
		"$set": bson.M{"status": entity.MessageStatusRead},
	}

	result, err := collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

func (r *messageRepository) UnreadCounts(ctx context.Context, recipientId string) (map[string]int, error) {
	collection := r.db.Collection("messages")

	matchStage := bson.D{{Key: "$match", Value: bson.D{
		{Key: "receiverId", Value: recipientId},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: entity.MessageStatusRead}}},
	}}}
	groupStage := bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$senderId"},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}

	cursor, err := collection.Aggregate(ctx, mongo.Pipeline{matchStage, groupStage})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		SenderId string `bson:"_id"`
		Count    int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.SenderId] = row.Count
	}

	return counts, nil
}

func (r *messageRepository) CountUnreadFrom(ctx context.Context, senderId, receiverId string) (int, error) {
	collection := r.db.Collection("messages")
	filter := bson.M{
		"senderId":   senderId,
		"receiverId": receiverId,
		"status":     entity.MessageStatusUnread,
	}

	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}

	return int(count), nil
}
