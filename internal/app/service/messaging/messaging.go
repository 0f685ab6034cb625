// Package messaging is the per-group chat log: posting, paging and the
// system lines membership changes leave behind.
package messaging

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	messagestore "github.com/dalemusser/studyhub/internal/app/store/messages"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyhub/internal/app/system/paging"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/sidefx"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Message is a stored message with its author's display fields.
type Message struct {
	models.GroupMessage
	User *models.Display `json:"user,omitempty"`
}

type Service struct {
	gate     *grouppolicy.Gate
	messages *messagestore.Store
	members  *membershipstore.Store
	users    *userstore.Store
	pub      realtime.Publisher
	fx       *sidefx.Runner
	limiter  *ratelimit.Limiter
	log      *zap.Logger
}

// New wires the channel. A nil limiter disables throttling.
func New(db *mongo.Database, pub realtime.Publisher, fx *sidefx.Runner, limiter *ratelimit.Limiter, logger *zap.Logger) *Service {
	return &Service{
		gate:     grouppolicy.New(db),
		messages: messagestore.New(db),
		members:  membershipstore.New(db),
		users:    userstore.New(db),
		pub:      pub,
		fx:       fx,
		limiter:  limiter,
		log:      logger,
	}
}

// Post appends a text message from an active member.
func (s *Service) Post(ctx context.Context, caller *auth.SessionUser, groupID primitive.ObjectID, content string) (Message, error) {
	if _, err := s.gate.RequireMember(ctx, groupID, caller.UserID); err != nil {
		return Message{}, err
	}

	content = strings.TrimSpace(htmlsanitize.PlainText(content))
	if content == "" {
		return Message{}, apperr.EmptyMessage
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return Message{}, apperr.MessageTooLong
	}
	if !s.limiter.Allow(caller.UserID) {
		return Message{}, apperr.RateLimited
	}

	stored, err := s.messages.Append(ctx, models.GroupMessage{
		GroupID:     groupID,
		UserID:      caller.UserID,
		Content:     content,
		MessageType: models.MessageText,
	})
	if err != nil {
		s.log.Error("append message", zap.String("group_id", groupID.Hex()), zap.Error(err))
		return Message{}, apperr.Internal(err)
	}

	msg := Message{GroupMessage: stored, User: &models.Display{
		UserID: caller.UserID,
		Name:   caller.Name,
		Image:  caller.Image,
		Email:  caller.Email,
	}}

	s.fx.Go(ctx, "publish.new-message", func(ctx context.Context) error {
		return s.pub.Publish(ctx, realtime.NewEvent(realtime.EventNewMessage, groupID, msg))
	})
	s.fx.Go(ctx, "member.touch", func(ctx context.Context) error {
		return s.members.Touch(ctx, groupID, caller.UserID)
	})
	return msg, nil
}

// List returns one page of the group's messages, newest first.
func (s *Service) List(ctx context.Context, callerID string, groupID primitive.ObjectID, limit, skip int) ([]Message, error) {
	if _, err := s.gate.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}

	w := paging.Clamp(limit, skip)
	rows, err := s.messages.List(ctx, groupID, w.Limit, w.Skip)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	authors := make([]string, 0, len(rows))
	for _, m := range rows {
		authors = append(authors, m.UserID)
	}
	display, err := s.users.DisplayByUserIDs(ctx, authors)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]Message, 0, len(rows))
	for _, m := range rows {
		msg := Message{GroupMessage: m}
		if d, ok := display[m.UserID]; ok {
			msg.User = &d
		}
		out = append(out, msg)
	}
	return out, nil
}

// AppendSystem records a system line such as "<name> joined the group".
// It does no membership check; callers have already made one.
func (s *Service) AppendSystem(ctx context.Context, groupID primitive.ObjectID, userID, content string) (models.GroupMessage, error) {
	return s.messages.Append(ctx, models.GroupMessage{
		GroupID:     groupID,
		UserID:      userID,
		Content:     content,
		MessageType: models.MessageSystem,
	})
}
