package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/dbx"
	"github.com/dmitrijs2005/userauth/internal/server/events"
	"github.com/dmitrijs2005/userauth/internal/server/models"
	"github.com/dmitrijs2005/userauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/userauth/internal/server/storage"
)

const msgRegisterFailed = "Something went wrong while registering the user"

// RegisterInput carries the registration form. AvatarPath and
// CoverImagePath point at staged local files; CoverImagePath may be empty.
type RegisterInput struct {
	Username       string
	Email          string
	FullName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// Register validates in, uploads the images and creates the user. Staged
// files handed to the object store are removed by it; uploaded objects are
// deleted again if the user record cannot be created.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	if username == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.Validation("All fields are required")
	}
	if len(in.Password) > users.MaxPasswordBytes {
		return nil, common.Validation(fmt.Sprintf("Password must be at most %d bytes", users.MaxPasswordBytes))
	}
	username = strings.ToLower(username)

	_, err := s.repomanager.Users(s.db).FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return nil, common.Conflict("User with email or username already exists")
	case !errors.Is(err, common.ErrorNotFound):
		return nil, common.Internal(msgRegisterFailed, err)
	}

	if in.AvatarPath == "" {
		return nil, common.Validation("Avatar file is required")
	}

	avatar, err := s.gateway.Upload(ctx, in.AvatarPath, storage.KindAvatar)
	if err != nil {
		s.logger.Error(ctx, "avatar upload failed", "error", err)
		return nil, common.Validation("Avatar file is required")
	}
	uploaded := []string{avatar.Key}

	coverURL := ""
	if in.CoverImagePath != "" {
		cover, err := s.gateway.Upload(ctx, in.CoverImagePath, storage.KindCover)
		if err != nil {
			s.logger.Warn(ctx, "cover image upload failed", "error", err)
		} else {
			coverURL = cover.URL
			uploaded = append(uploaded, cover.Key)
		}
	}

	var created *models.PublicUser
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		u, err := repo.Create(ctx, &models.User{
			UserName:      username,
			Email:         email,
			FullName:      fullName,
			AvatarURL:     avatar.URL,
			CoverImageURL: coverURL,
		}, in.Password)
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.Conflict("User with email or username already exists")
			}
			return common.Internal(msgRegisterFailed, err)
		}

		created, err = repo.GetPublicByID(ctx, u.ID)
		if err != nil {
			return common.Internal(msgRegisterFailed, err)
		}
		return nil
	})
	if err != nil {
		s.discard(context.WithoutCancel(ctx), uploaded)
		var ce *common.Error
		if !errors.As(err, &ce) {
			err = common.Internal(msgRegisterFailed, err)
		}
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID)

	ev := events.UserRegistered{
		UserID:     created.ID,
		Username:   created.UserName,
		Email:      created.Email,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.PublishUserRegistered(ctx, ev); err != nil {
		s.logger.Warn(ctx, "user.registered event not published", "user_id", created.ID, "error", err)
	}

	return created, nil
}

// discard deletes objects uploaded for a registration that did not
// complete. Failures are only logged.
func (s *UserService) discard(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := s.gateway.Delete(ctx, k); err != nil {
			s.logger.Warn(ctx, "failed to delete orphaned object", "key", k, "error", err)
		}
	}
}
