// Package membership manages who belongs to a group: joining (directly or
// through an approval queue), leaving, roles and member listings.
package membership

import (
	"context"
	"errors"
	"sort"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/studyhub/internal/app/service/messaging"
	"github.com/dalemusser/studyhub/internal/app/service/registry"
	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/app/system/passwords"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/sidefx"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Member is a membership row with the user's display fields.
type Member struct {
	models.GroupMember
	User *models.Display `json:"user,omitempty"`
}

// JoinResult reports where a join left the caller.
type JoinResult struct {
	Group  registry.Summary `json:"group"`
	Status string           `json:"status"` // active | pending
	Role   string           `json:"role"`
}

// memberEvent is the payload of member-joined and member-left.
type memberEvent struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
}

type Service struct {
	gate     *grouppolicy.Gate
	registry *registry.Service
	groups   *groupstore.Store
	members  *membershipstore.Store
	users    *userstore.Store
	chat     *messaging.Service
	pub      realtime.Publisher
	fx       *sidefx.Runner
	log      *zap.Logger
}

func New(db *mongo.Database, reg *registry.Service, chat *messaging.Service, pub realtime.Publisher, fx *sidefx.Runner, logger *zap.Logger) *Service {
	return &Service{
		gate:     grouppolicy.New(db),
		registry: reg,
		groups:   groupstore.New(db),
		members:  membershipstore.New(db),
		users:    userstore.New(db),
		chat:     chat,
		pub:      pub,
		fx:       fx,
		log:      logger,
	}
}

// RequireMember is the shared group gate.
func (s *Service) RequireMember(ctx context.Context, groupID primitive.ObjectID, userID string) (grouppolicy.Access, error) {
	return s.gate.RequireMember(ctx, groupID, userID)
}

// Join adds the caller to the group named by identifier (id or invite
// code). A group id must be accompanied by the group's invite code.
// Groups that require approval get a pending request instead.
func (s *Service) Join(ctx context.Context, caller *auth.SessionUser, identifier, inviteCode, password string) (JoinResult, error) {
	g, byID, err := s.registry.FindByIDOrInviteCode(ctx, identifier)
	if err != nil {
		return JoinResult{}, err
	}
	if byID && normalize.InviteCode(inviteCode) != g.InviteCode {
		return JoinResult{}, apperr.InvalidInviteCode
	}

	existing, err := s.members.Get(ctx, g.ID, caller.UserID)
	switch {
	case err == nil && existing.IsActive():
		return JoinResult{}, apperr.AlreadyMember
	case err == nil:
		return JoinResult{}, apperr.JoinPending
	case err != mongo.ErrNoDocuments:
		return JoinResult{}, apperr.Internal(err)
	}

	if !g.IsPasswordless() {
		if password == "" {
			return JoinResult{}, apperr.PasswordRequired
		}
		if !passwords.Matches(g.PasswordHash, password) {
			return JoinResult{}, apperr.WrongPassword
		}
	}
	if g.IsFull() {
		return JoinResult{}, apperr.GroupFull
	}

	status := models.MemberActive
	if g.RequireApproval {
		status = models.MemberPending
	}
	if _, err := s.members.Add(ctx, models.GroupMember{
		GroupID: g.ID,
		UserID:  caller.UserID,
		Role:    models.RoleMember,
		Status:  status,
	}); err != nil {
		if errors.Is(err, membershipstore.ErrDuplicateMembership) {
			// A concurrent join from the same user won.
			if status == models.MemberPending {
				return JoinResult{}, apperr.JoinPending
			}
			return JoinResult{}, apperr.AlreadyMember
		}
		return JoinResult{}, apperr.Internal(err)
	}

	if status == models.MemberActive {
		if err := s.groups.IncMemberCount(ctx, g.ID, 1); err != nil {
			s.log.Error("increment member_count", zap.String("group_id", g.ID.Hex()), zap.Error(err))
			return JoinResult{}, apperr.Internal(err)
		}
		g.MemberCount++
		s.announce(ctx, g.ID, realtime.EventMemberJoined, display(caller), " joined the group")
	}

	s.log.Info("group join",
		zap.String("group_id", g.ID.Hex()),
		zap.String("user_id", caller.UserID),
		zap.String("status", status))

	return JoinResult{Group: registry.Summarize(g), Status: status, Role: models.RoleMember}, nil
}

// ListPending returns the join requests of a group. Owners and admins only.
func (s *Service) ListPending(ctx context.Context, callerID string, groupID primitive.ObjectID) ([]Member, error) {
	if _, err := s.gate.RequireModerator(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	rows, err := s.members.ListPending(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.enrich(ctx, rows)
}

// Approve turns a pending request into an active membership.
func (s *Service) Approve(ctx context.Context, callerID string, groupID primitive.ObjectID, target string) error {
	a, err := s.gate.RequireModerator(ctx, groupID, callerID)
	if err != nil {
		return err
	}
	target = normalize.UserID(target)
	if a.Group.IsFull() {
		return apperr.GroupFull
	}

	ok, err := s.members.Activate(ctx, groupID, target)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.NoPendingRequest
	}
	if err := s.groups.IncMemberCount(ctx, groupID, 1); err != nil {
		s.log.Error("increment member_count", zap.String("group_id", groupID.Hex()), zap.Error(err))
		return apperr.Internal(err)
	}

	who := models.Display{UserID: target, Name: target}
	if m, err := s.users.DisplayByUserIDs(ctx, []string{target}); err == nil {
		if d, ok := m[target]; ok {
			who = d
		}
	}
	s.announce(ctx, groupID, realtime.EventMemberJoined, who, " joined the group")

	s.log.Info("join request approved",
		zap.String("group_id", groupID.Hex()),
		zap.String("user_id", target),
		zap.String("by", callerID))
	return nil
}

// Reject drops a pending request.
func (s *Service) Reject(ctx context.Context, callerID string, groupID primitive.ObjectID, target string) error {
	if _, err := s.gate.RequireModerator(ctx, groupID, callerID); err != nil {
		return err
	}
	ok, err := s.members.RemovePending(ctx, groupID, normalize.UserID(target))
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.NoPendingRequest
	}
	return nil
}

// Leave removes the caller from the group. A pending request is simply
// withdrawn. The owner cannot leave.
func (s *Service) Leave(ctx context.Context, caller *auth.SessionUser, groupID primitive.ObjectID) error {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		if err == mongo.ErrNoDocuments {
			return apperr.GroupNotFound
		}
		return apperr.Internal(err)
	}

	m, err := s.members.Get(ctx, groupID, caller.UserID)
	if err == mongo.ErrNoDocuments {
		return apperr.NotMemberToLeave
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if !m.IsActive() {
		if _, err := s.members.RemovePending(ctx, groupID, caller.UserID); err != nil {
			return apperr.Internal(err)
		}
		return nil
	}
	if m.Role == models.RoleOwner {
		return apperr.OwnerCannotLeave
	}

	ok, err := s.members.Remove(ctx, groupID, caller.UserID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		// Someone else's Leave for this row got there first.
		return apperr.NotMemberToLeave
	}
	if err := s.groups.IncMemberCount(ctx, groupID, -1); err != nil {
		s.log.Error("decrement member_count", zap.String("group_id", groupID.Hex()), zap.Error(err))
		return apperr.Internal(err)
	}

	s.evict(ctx, groupID, caller.UserID)
	s.announce(ctx, groupID, realtime.EventMemberLeft, display(caller), " left the group")
	return nil
}

// SetRole promotes a member to admin or demotes an admin. Owner only; the
// owner's own role never changes.
func (s *Service) SetRole(ctx context.Context, callerID string, groupID primitive.ObjectID, target, role string) error {
	if _, err := s.gate.RequireOwner(ctx, groupID, callerID); err != nil {
		return err
	}
	if role != models.RoleAdmin && role != models.RoleMember {
		return apperr.InvalidRole
	}
	target = normalize.UserID(target)
	if target == callerID {
		return apperr.InvalidRole
	}
	ok, err := s.members.SetRole(ctx, groupID, target, role)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.MemberNotFound
	}
	s.log.Info("member role changed",
		zap.String("group_id", groupID.Hex()),
		zap.String("user_id", target),
		zap.String("role", role))
	return nil
}

// ListMembers returns active members ordered owner, admins, members, then
// by join time.
func (s *Service) ListMembers(ctx context.Context, callerID string, groupID primitive.ObjectID) ([]Member, error) {
	if _, err := s.gate.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	rows, err := s.members.ListActive(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := models.RoleRank(rows[i].Role), models.RoleRank(rows[j].Role)
		if ri != rj {
			return ri < rj
		}
		return rows[i].JoinedAt.Before(rows[j].JoinedAt)
	})
	return s.enrich(ctx, rows)
}

func (s *Service) enrich(ctx context.Context, rows []models.GroupMember) ([]Member, error) {
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.UserID)
	}
	disp, err := s.users.DisplayByUserIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]Member, 0, len(rows))
	for _, m := range rows {
		mm := Member{GroupMember: m}
		if d, ok := disp[m.UserID]; ok {
			mm.User = &d
		}
		out = append(out, mm)
	}
	return out, nil
}

// announce writes the system line and publishes the event. Neither can
// fail the membership change that caused it.
func (s *Service) announce(ctx context.Context, groupID primitive.ObjectID, typ realtime.EventType, who models.Display, suffix string) {
	name := who.Name
	if name == "" {
		name = who.UserID
	}
	s.fx.Go(ctx, "system-message."+string(typ), func(ctx context.Context) error {
		_, err := s.chat.AppendSystem(ctx, groupID, who.UserID, name+suffix)
		return err
	})
	s.fx.Go(ctx, "publish."+string(typ), func(ctx context.Context) error {
		return s.pub.Publish(ctx, realtime.NewEvent(typ, groupID, memberEvent{
			UserID: who.UserID,
			Name:   name,
			Image:  who.Image,
		}))
	})
}

// evict closes the user's live subscriptions to the group before the
// leave returns, so later events no longer reach them.
func (s *Service) evict(ctx context.Context, groupID primitive.ObjectID, userID string) {
	s.fx.Do(ctx, "unsubscribe", func(ctx context.Context) error {
		return s.pub.Unsubscribe(ctx, userID, groupID)
	})
}

func display(u *auth.SessionUser) models.Display {
	return models.Display{UserID: u.UserID, Name: u.Name, Image: u.Image, Email: u.Email}
}
