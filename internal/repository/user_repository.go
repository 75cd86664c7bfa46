package repository

import (
	"context"
	"errors"
	"time"
	"wichat/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Get(ctx context.Context, userId string) (entity.User, error)
	GetByEmail(ctx context.Context, email string) (entity.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user entity.User) (string, error)
	// ListExcept returns every user except userId, newest first,
	// without password hashes.
	ListExcept(ctx context.Context, userId string) ([]entity.User, error)
	SetOnline(ctx context.Context, userId string, online bool) error
	SetProfilePic(ctx context.Context, userId, url string) error
}

type userRepository struct {
	db mongo.Database
}

func NewUserRepository(db mongo.Database) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Get(ctx context.Context, userId string) (entity.User, error) {
	collection := r.db.Collection("users")
	filter := bson.M{"_id": userId}

	var user entity.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.User{}, ErrUserNotFound
		}
		return entity.User{}, err
	}

	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (entity.User, error) {
	collection := r.db.Collection("users")
	filter := bson.M{"email": email}

	var user entity.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entity.User{}, ErrUserNotFound
		}
		return entity.User{}, err
	}

	return user, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	collection := r.db.Collection("users")
	count, err := collection.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user entity.User) (string, error) {
	collection := r.db.Collection("users")
	user.Id = uuid.New().String()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	_, err := collection.InsertOne(ctx, user)
	if err != nil {
		return "", err
	}

	return user.Id, nil
}

func (r *userRepository) ListExcept(ctx context.Context, userId string) ([]entity.User, error) {
	collection := r.db.Collection("users")
	filter := bson.M{"_id": bson.M{"$ne": userId}}

	opts := options.Find()
	opts.SetProjection(bson.M{"password": 0})
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var users []entity.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) SetOnline(ctx context.Context, userId string, online bool) error {
	collection := r.db.Collection("users")
	filter := bson.M{"_id": userId}
	update := bson.M{
		"$set": bson.M{
			"isOnline":  online,
			"updatedAt": time.Now().UTC(),
		},
	}
	_, err := collection.UpdateOne(ctx, filter, update)

	return err
}

func (r *userRepository) SetProfilePic(ctx context.Context, userId, url string) error {
	collection := r.db.Collection("users")
	filter := bson.M{"_id": userId}
	update := bson.M{
		"$set": bson.M{
			"profilePic": url,
			"updatedAt":  time.Now().UTC(),
		},
	}
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}
