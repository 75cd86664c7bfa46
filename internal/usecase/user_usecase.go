package usecase

import (
	"context"
	"errors"
	"fmt"

	"wichat/internal/entity"
	"wichat/internal/repository"
)

var ErrMissingProfilePic = errors.New("profile picture is required")

type UserUsecase interface {
	Get(ctx context.Context, userId string) (entity.User, error)
	// ListExcept lists every user other than userId for the sidebar.
	ListExcept(ctx context.Context, userId string) ([]entity.User, error)
	// UpdateProfilePic stores the image through the media store and
	// saves the durable URL on the user.
	UpdateProfilePic(ctx context.Context, userId, image string) (entity.User, error)
	HandleUnregisterClient(ctx context.Context, userId string) error
	SetOnline(ctx context.Context, userId string, online bool) error
}

type userUsecase struct {
	userRepo repository.UserRepository
	media    MediaStore
}

func NewUserUsecase(userRepo repository.UserRepository, media MediaStore) UserUsecase {
	return &userUsecase{
		userRepo: userRepo,
		media:    media,
	}
}

func (u *userUsecase) Get(ctx context.Context, userId string) (entity.User, error) {
	user, err := u.userRepo.Get(ctx, userId)
	if err != nil {
		return entity.User{}, err
	}

	user.Password = ""
	return user, nil
}

func (u *userUsecase) ListExcept(ctx context.Context, userId string) ([]entity.User, error) {
	users, err := u.userRepo.ListExcept(ctx, userId)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []entity.User{}
	}

	return users, nil
}

func (u *userUsecase) UpdateProfilePic(ctx context.Context, userId, image string) (entity.User, error) {
	if image == "" {
		return entity.User{}, ErrMissingProfilePic
	}

	url, err := u.media.Upload(ctx, image)
	if err != nil {
		return entity.User{}, fmt.Errorf("%w: %v", ErrMediaUpload, err)
	}

	if err := u.userRepo.SetProfilePic(ctx, userId, url); err != nil {
		return entity.User{}, err
	}

	return u.Get(ctx, userId)
}

func (u *userUsecase) HandleUnregisterClient(ctx context.Context, userId string) error {
	return u.userRepo.SetOnline(ctx, userId, false)
}

func (u *userUsecase) SetOnline(ctx context.Context, userId string, online bool) error {
	return u.userRepo.SetOnline(ctx, userId, online)
}
