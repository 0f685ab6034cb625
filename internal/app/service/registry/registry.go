// Package registry owns group creation and lookup.
package registry

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyhub/internal/app/system/invitecode"
	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/app/system/passwords"
	"github.com/dalemusser/studyhub/internal/app/system/txn"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxCoverImageLength  = 2048
	MinMembersCap        = 2
	MaxMembersCap        = 10000
)

// Config tunes group creation.
type Config struct {
	// InviteCodeAttempts caps code generation per create. It is an
	// operational limit, not a correctness bound.
	InviteCodeAttempts int
	// Transactions wraps group insert, owner row and count in one
	// transaction when the deployment supports it.
	Transactions bool
}

type Service struct {
	db      *mongo.Database
	groups  *groupstore.Store
	members *membershipstore.Store
	codes   invitecode.Generator
	cfg     Config
	log     *zap.Logger

	// afterGroupInsert runs between the group insert and the owner row.
	afterGroupInsert func(models.Group) error
}

func New(db *mongo.Database, cfg Config, logger *zap.Logger) *Service {
	if cfg.InviteCodeAttempts <= 0 {
		cfg.InviteCodeAttempts = 10
	}
	return &Service{
		db:      db,
		groups:  groupstore.New(db),
		members: membershipstore.New(db),
		codes:   invitecode.Random,
		cfg:     cfg,
		log:     logger,
	}
}

// UseCodes replaces the invite code source.
func (s *Service) UseCodes(g invitecode.Generator) { s.codes = g }

// CreateInput is the caller-supplied part of a new group.
type CreateInput struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	CoverImage      string `json:"cover_image"`
	Visibility      string `json:"visibility"`
	Password        string `json:"password"`
	MaxMembers      *int   `json:"max_members"`
	RequireApproval bool   `json:"require_approval"`
}

// Summary is the public view of a group used in listings.
type Summary struct {
	ID              primitive.ObjectID `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description,omitempty"`
	CoverImage      string             `json:"cover_image,omitempty"`
	OwnerID         string             `json:"owner_id"`
	Visibility      string             `json:"visibility"`
	IsPasswordless  bool               `json:"is_passwordless"`
	MaxMembers      *int               `json:"max_members,omitempty"`
	RequireApproval bool               `json:"require_approval"`
	MemberCount     int                `json:"member_count"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Detail adds what only members may see.
type Detail struct {
	Summary
	InviteCode string `json:"invite_code,omitempty"`
	Role       string `json:"role,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Summarize is the listing view of g.
func Summarize(g models.Group) Summary {
	return Summary{
		ID:              g.ID,
		Name:            g.Name,
		Description:     g.Description,
		CoverImage:      g.CoverImage,
		OwnerID:         g.OwnerID,
		Visibility:      g.Visibility,
		IsPasswordless:  g.IsPasswordless(),
		MaxMembers:      g.MaxMembers,
		RequireApproval: g.RequireApproval,
		MemberCount:     g.MemberCount,
		CreatedAt:       g.CreatedAt,
	}
}

func invalid(msg string) error {
	return apperr.New(apperr.KindInvalidInput, apperr.InvalidGroup.Reason, msg)
}

func (in *CreateInput) validate() error {
	in.Name = strings.TrimSpace(htmlsanitize.PlainText(in.Name))
	if in.Name == "" || utf8.RuneCountInString(in.Name) > MaxNameLength {
		return invalid("Name must be 1-100 characters.")
	}
	in.Description = strings.TrimSpace(htmlsanitize.Sanitize(in.Description))
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return invalid("Description must be 500 characters or fewer.")
	}
	in.CoverImage = strings.TrimSpace(in.CoverImage)
	if in.CoverImage != "" {
		if len(in.CoverImage) > MaxCoverImageLength || !urlutil.IsValidAbsHTTPURL(in.CoverImage) {
			return invalid("Cover image must be an http(s) URL.")
		}
	}

	in.Visibility = strings.ToLower(strings.TrimSpace(in.Visibility))
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPublic
	}
	if in.Visibility != models.VisibilityPublic && in.Visibility != models.VisibilityPrivate {
		return invalid("Visibility must be public or private.")
	}
	if in.Visibility == models.VisibilityPrivate && in.Password == "" {
		return apperr.PasswordRequired
	}
	if in.Password != "" && (len(in.Password) < passwords.MinLength || len(in.Password) > passwords.MaxLength) {
		return invalid("Password must be 4-72 characters.")
	}
	if in.MaxMembers != nil && (*in.MaxMembers < MinMembersCap || *in.MaxMembers > MaxMembersCap) {
		return invalid("Max members must be between 2 and 10000.")
	}
	return nil
}

// Create validates in, stores the group with a fresh invite code and adds
// the owner as its first member.
//
// Unless Transactions is set, the group insert, the owner row and the
// count bump are separate writes; a crash between them leaves a group the
// reconciler repairs.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Detail, error) {
	if err := in.validate(); err != nil {
		return Detail{}, err
	}

	var hash string
	if in.Password != "" {
		h, err := passwords.Hash(in.Password)
		if err != nil {
			return Detail{}, apperr.Internal(err)
		}
		hash = h
	}

	draft := models.Group{
		Name:            in.Name,
		Description:     in.Description,
		CoverImage:      in.CoverImage,
		OwnerID:         ownerID,
		Visibility:      in.Visibility,
		PasswordHash:    hash,
		MaxMembers:      in.MaxMembers,
		RequireApproval: in.RequireApproval,
	}

	var created models.Group
	write := func(ctx context.Context) error {
		g, err := s.insertWithCode(ctx, draft)
		if err != nil {
			return err
		}
		if s.afterGroupInsert != nil {
			if err := s.afterGroupInsert(g); err != nil {
				return err
			}
		}
		_, err = s.members.Add(ctx, models.GroupMember{
			GroupID: g.ID,
			UserID:  ownerID,
			Role:    models.RoleOwner,
			Status:  models.MemberActive,
		})
		if errors.Is(err, membershipstore.ErrDuplicateMembership) {
			// The reconciler restored the owner row first and owns its count.
			s.log.Warn("owner membership already present",
				zap.String("group_id", g.ID.Hex()), zap.String("owner", ownerID))
			if cur, gerr := s.groups.GetByID(ctx, g.ID); gerr == nil {
				g.MemberCount = cur.MemberCount
			}
			created = g
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.groups.IncMemberCount(ctx, g.ID, 1); err != nil {
			return err
		}
		g.MemberCount = 1
		created = g
		return nil
	}

	var err error
	if s.cfg.Transactions {
		err = txn.Run(ctx, s.db, s.log, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return Detail{}, ae
		}
		return Detail{}, apperr.Internal(err)
	}

	s.log.Info("group created",
		zap.String("group_id", created.ID.Hex()),
		zap.String("owner", ownerID),
		zap.String("visibility", created.Visibility))

	return Detail{
		Summary:    Summarize(created),
		InviteCode: created.InviteCode,
		Role:       models.RoleOwner,
		Status:     models.MemberActive,
	}, nil
}

// insertWithCode draws codes until one is free and the insert sticks.
func (s *Service) insertWithCode(ctx context.Context, g models.Group) (models.Group, error) {
	for attempt := 0; attempt < s.cfg.InviteCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return models.Group{}, err
		}
		taken, err := s.groups.InviteCodeExists(ctx, code)
		if err != nil {
			return models.Group{}, err
		}
		if taken {
			continue
		}

		g.InviteCode = code
		created, err := s.groups.Create(ctx, g)
		switch {
		case err == nil:
			return created, nil
		case errors.Is(err, groupstore.ErrDuplicateInviteCode):
			// Lost a race for this code; draw another.
			continue
		case errors.Is(err, groupstore.ErrDuplicateName):
			return models.Group{}, apperr.GroupNameTaken
		default:
			return models.Group{}, err
		}
	}
	s.log.Error("invite code generation exhausted", zap.Int("attempts", s.cfg.InviteCodeAttempts))
	return models.Group{}, apperr.InviteCodeExhausted
}

// FindByIDOrInviteCode resolves an identifier as an ObjectID first, then as
// an invite code. byID reports which matched.
func (s *Service) FindByIDOrInviteCode(ctx context.Context, identifier string) (g models.Group, byID bool, err error) {
	identifier = strings.TrimSpace(identifier)
	if oid, perr := primitive.ObjectIDFromHex(identifier); perr == nil {
		g, err = s.groups.GetByID(ctx, oid)
		if err == nil {
			return g, true, nil
		}
		if err != mongo.ErrNoDocuments {
			return models.Group{}, false, apperr.Internal(err)
		}
	}

	if len(normalize.InviteCode(identifier)) != invitecode.Length {
		return models.Group{}, false, apperr.GroupNotFound
	}
	g, err = s.groups.GetByInviteCode(ctx, identifier)
	if err == mongo.ErrNoDocuments {
		return models.Group{}, false, apperr.GroupNotFound
	}
	if err != nil {
		return models.Group{}, false, apperr.Internal(err)
	}
	return g, false, nil
}

// ListBrowseable returns every group. IsPasswordless reflects only whether
// a password is set, regardless of Visibility.
func (s *Service) ListBrowseable(ctx context.Context) ([]Summary, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]Summary, 0, len(groups))
	for _, g := range groups {
		out = append(out, Summarize(g))
	}
	return out, nil
}

// Get returns a group's detail. The invite code is included only for
// active members; Role/Status describe the caller's row if any.
func (s *Service) Get(ctx context.Context, callerID string, groupID primitive.ObjectID) (Detail, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err == mongo.ErrNoDocuments {
		return Detail{}, apperr.GroupNotFound
	}
	if err != nil {
		return Detail{}, apperr.Internal(err)
	}

	d := Detail{Summary: Summarize(g)}
	m, err := s.members.Get(ctx, groupID, callerID)
	switch {
	case err == nil:
		d.Role, d.Status = m.Role, m.Status
		if m.IsActive() {
			d.InviteCode = g.InviteCode
		}
	case err != mongo.ErrNoDocuments:
		return Detail{}, apperr.Internal(err)
	}
	return d, nil
}
