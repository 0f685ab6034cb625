// Package focus runs timed study sessions and turns finished ones into
// study minutes on the user and on each of their memberships.
package focus

import (
	"context"
	"strings"
	"time"

	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/sidefx"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	DefaultSessionType = "focus"
	MaxTargetMinutes   = 600
	maxSessionType     = 40
)

// StartInput describes a new session. A zero TargetMinutes means open-ended.
type StartInput struct {
	SessionType   string `json:"session_type"`
	TargetMinutes int    `json:"target_duration"`
}

// Stopped reports a finished session.
type Stopped struct {
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Minutes   int       `json:"minutes"`
}

type focusEvent struct {
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	Image       string     `json:"image,omitempty"`
	SessionType string     `json:"session_type,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Minutes     int        `json:"minutes,omitempty"`
}

type Service struct {
	users   *userstore.Store
	members *membershipstore.Store
	pub     realtime.Publisher
	fx      *sidefx.Runner
	loc     *time.Location
	log     *zap.Logger
	now     func() time.Time

	// beforeCredit runs ahead of each study write; an error fails that
	// attempt. Tests use it to simulate a write failure.
	beforeCredit func(part string) error
}

// New wires the service. loc decides which calendar day and week study
// minutes land in; nil means UTC.
func New(db *mongo.Database, pub realtime.Publisher, fx *sidefx.Runner, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		users:   userstore.New(db),
		members: membershipstore.New(db),
		pub:     pub,
		fx:      fx,
		loc:     loc,
		log:     logger,
		now:     time.Now,
	}
}

// Start begins a session and sets the caller's status to studying.
// Starting while a session runs restarts the clock.
func (s *Service) Start(ctx context.Context, caller *auth.SessionUser, in StartInput) (models.FocusSession, error) {
	id, err := primitive.ObjectIDFromHex(caller.ID)
	if err != nil {
		return models.FocusSession{}, apperr.Unauthenticated
	}
	if in.TargetMinutes < 0 || in.TargetMinutes > MaxTargetMinutes {
		return models.FocusSession{}, apperr.InvalidFocus
	}
	kind := strings.TrimSpace(htmlsanitize.PlainText(in.SessionType))
	if kind == "" {
		kind = DefaultSessionType
	}
	if r := []rune(kind); len(r) > maxSessionType {
		kind = string(r[:maxSessionType])
	}

	started := s.now().UTC().Truncate(time.Millisecond)
	u, err := s.users.StartFocus(ctx, id, models.FocusSession{
		StartedAt:      &started,
		TargetDuration: in.TargetMinutes,
		SessionType:    kind,
	})
	if err == mongo.ErrNoDocuments {
		return models.FocusSession{}, apperr.Unauthenticated
	}
	if err != nil {
		s.log.Error("start focus", zap.String("user", caller.ID), zap.Error(err))
		return models.FocusSession{}, apperr.Internal(err)
	}

	s.broadcast(ctx, caller, realtime.EventFocusStarted, focusEvent{
		UserID:      caller.UserID,
		Name:        caller.Name,
		Image:       caller.Image,
		SessionType: kind,
		StartedAt:   &started,
	})
	return u.FocusSession, nil
}

// Stop ends the running session, sets status offline and credits the
// elapsed whole minutes to the user and every active membership.
func (s *Service) Stop(ctx context.Context, caller *auth.SessionUser) (Stopped, error) {
	id, err := primitive.ObjectIDFromHex(caller.ID)
	if err != nil {
		return Stopped{}, apperr.Unauthenticated
	}
	before, err := s.users.StopFocus(ctx, id)
	if err == mongo.ErrNoDocuments {
		return Stopped{}, apperr.FocusNotActive
	}
	if err != nil {
		s.log.Error("stop focus", zap.String("user", caller.ID), zap.Error(err))
		return Stopped{}, apperr.Internal(err)
	}

	now := s.now()
	out := Stopped{StoppedAt: now.UTC()}
	if before.FocusSession.StartedAt != nil {
		out.StartedAt = *before.FocusSession.StartedAt
		if d := now.Sub(out.StartedAt); d > 0 {
			out.Minutes = int(d / time.Minute)
		}
	}

	if out.Minutes > 0 {
		local := now.In(s.loc)
		s.credit(ctx, "user", caller, func(ctx context.Context) error {
			return s.users.RecordStudy(ctx, id, out.Minutes, local)
		})
		if caller.UserID != "" {
			s.credit(ctx, "member", caller, func(ctx context.Context) error {
				return s.members.RecordStudy(ctx, caller.UserID, out.Minutes, local)
			})
		}
	}

	s.log.Info("focus stopped", zap.String("user", caller.ID), zap.Int("minutes", out.Minutes))
	s.broadcast(ctx, caller, realtime.EventFocusStopped, focusEvent{
		UserID:  caller.UserID,
		Name:    caller.Name,
		Image:   caller.Image,
		Minutes: out.Minutes,
	})
	return out, nil
}

// credit writes one part of a stopped session's minutes. The session is
// already closed, so a failure cannot fail Stop: it is logged and the
// write is retried once in the background.
func (s *Service) credit(ctx context.Context, part string, caller *auth.SessionUser, write func(ctx context.Context) error) {
	attempt := func(ctx context.Context) error {
		if s.beforeCredit != nil {
			if err := s.beforeCredit(part); err != nil {
				return err
			}
		}
		return write(ctx)
	}
	if err := attempt(ctx); err != nil {
		s.log.Error("record study failed; retrying",
			zap.String("part", part),
			zap.String("user", caller.ID),
			zap.Error(err))
		s.fx.Go(ctx, "record-study."+part, attempt)
	}
}

// SetStatus sets the caller's presence state.
func (s *Service) SetStatus(ctx context.Context, caller *auth.SessionUser, state string) error {
	id, err := primitive.ObjectIDFromHex(caller.ID)
	if err != nil {
		return apperr.Unauthenticated
	}
	state = strings.ToLower(strings.TrimSpace(state))
	if !models.IsValidStatus(state) {
		return apperr.InvalidStatus
	}
	if err := s.users.SetStatus(ctx, id, state); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// broadcast publishes ev to each group the caller actively belongs to.
func (s *Service) broadcast(ctx context.Context, caller *auth.SessionUser, typ realtime.EventType, payload focusEvent) {
	if caller.UserID == "" {
		return
	}
	s.fx.Go(ctx, "publish."+string(typ), func(ctx context.Context) error {
		groups, err := s.members.ActiveGroupIDs(ctx, caller.UserID)
		if err != nil {
			return err
		}
		for _, gid := range groups {
			if err := s.pub.Publish(ctx, realtime.NewEvent(typ, gid, payload)); err != nil {
				return err
			}
		}
		return nil
	})
}
