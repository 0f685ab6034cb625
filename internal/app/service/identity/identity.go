// Package identity maps provider sign-ins to users and assigns the
// one-time public user id (handle).
package identity

import (
	"context"
	"errors"
	"strings"

	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/validate"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// claimAttempts bounds how often SetUserID re-reads after losing a race.
// The second pass always sees the winner, so two is enough.
const claimAttempts = 2

type Service struct {
	users *userstore.Store
	log   *zap.Logger
}

func New(users *userstore.Store, logger *zap.Logger) *Service {
	return &Service{users: users, log: logger}
}

// Resolve returns the user for (email, provider), creating one without a
// user id on first contact. Name and avatar are refreshed on every call.
func (s *Service) Resolve(ctx context.Context, email, provider, name, image string) (models.User, error) {
	email = normalize.Email(email)
	provider = normalize.Provider(provider)
	if provider == "" || !validate.SimpleEmailValid(email) {
		return models.User{}, apperr.BadRequest
	}

	u, err := s.users.GetByIdentity(ctx, email, provider)
	switch {
	case err == nil:
		if err := s.users.RefreshProfile(ctx, u.ID, name, image); err != nil {
			s.log.Warn("refresh profile failed", zap.String("user", u.ID.Hex()), zap.Error(err))
		} else {
			if n := normalize.Name(name); n != "" {
				u.Name = n
			}
			if image != "" {
				u.Image = image
			}
		}
		return u, nil
	case err != mongo.ErrNoDocuments:
		return models.User{}, apperr.Internal(err)
	}

	u, err = s.users.Create(ctx, models.User{Email: email, Provider: provider, Name: name, Image: image})
	if errors.Is(err, userstore.ErrDuplicateIdentity) {
		// A concurrent first sign-in won; use its record.
		u, err = s.users.GetByIdentity(ctx, email, provider)
	}
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	s.log.Info("user created", zap.String("user", u.ID.Hex()), zap.String("provider", provider))
	return u, nil
}

// Get loads the user behind a session.
func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, apperr.Unauthenticated
	}
	u, err := s.users.GetByID(ctx, oid)
	if err == mongo.ErrNoDocuments {
		return models.User{}, apperr.Unauthenticated
	}
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	return u, nil
}

// SetUserID assigns candidate as the caller's handle. It succeeds at most
// once per user: a caller who already has a handle gets UserIDImmutable
// whatever the candidate. Races are settled by the unique index and a
// conditional write, then re-checked against the stored record.
func (s *Service) SetUserID(ctx context.Context, id, candidate string) (models.User, error) {
	trimmed := strings.TrimSpace(candidate)
	if !normalize.ValidUserID(trimmed) {
		return models.User{}, apperr.InvalidUserID
	}
	handle := normalize.UserID(trimmed)

	for attempt := 0; attempt < claimAttempts; attempt++ {
		u, err := s.Get(ctx, id)
		if err != nil {
			return models.User{}, err
		}
		if u.HasUserID() {
			return models.User{}, apperr.UserIDImmutable
		}

		taken, err := s.users.UserIDExists(ctx, handle)
		if err != nil {
			return models.User{}, apperr.Internal(err)
		}
		if taken {
			return models.User{}, apperr.UserIDTaken
		}

		ok, err := s.users.ClaimUserID(ctx, u.ID, handle)
		if errors.Is(err, userstore.ErrDuplicateUserID) {
			continue
		}
		if err != nil {
			return models.User{}, apperr.Internal(err)
		}
		if !ok {
			continue
		}

		u.UserID = handle
		s.log.Info("user id assigned", zap.String("user", u.ID.Hex()), zap.String("user_id", handle))
		return u, nil
	}
	return models.User{}, apperr.UserIDTaken
}
