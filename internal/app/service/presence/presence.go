// Package presence shares where members are studying and who is in a
// focus session right now.
package presence

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/sidefx"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	maxTextField = 200
	maxAmenities = 20
)

// LocationInput is what a member reports. Lat and Lng are required.
type LocationInput struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Address     string   `json:"address"`
	PlaceName   string   `json:"place_name"`
	PlaceType   string   `json:"place_type"`
	Crowdedness string   `json:"crowdedness"`
	Amenities   []string `json:"amenities"`
}

// ValidCoordinates reports whether lat/lng are finite and in range.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// MemberLocation is one entry of ListLocations and the location-updated payload.
type MemberLocation struct {
	UserID   string                `json:"userId"`
	Name     string                `json:"name"`
	Image    string                `json:"image,omitempty"`
	Location models.MemberLocation `json:"location"`
}

// ActiveFocus is one entry of ListActiveFocus.
type ActiveFocus struct {
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	Image          string    `json:"image,omitempty"`
	SessionType    string    `json:"session_type,omitempty"`
	TargetDuration int       `json:"target_duration,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedMinutes int       `json:"elapsed_minutes"`
}

type Service struct {
	gate    *grouppolicy.Gate
	members *membershipstore.Store
	users   *userstore.Store
	pub     realtime.Publisher
	fx      *sidefx.Runner
	limiter *ratelimit.Limiter
	log     *zap.Logger
	now     func() time.Time
}

func New(db *mongo.Database, pub realtime.Publisher, fx *sidefx.Runner, limiter *ratelimit.Limiter, logger *zap.Logger) *Service {
	return &Service{
		gate:    grouppolicy.New(db),
		members: membershipstore.New(db),
		users:   userstore.New(db),
		pub:     pub,
		fx:      fx,
		limiter: limiter,
		log:     logger,
		now:     time.Now,
	}
}

// SetLocation replaces the caller's location in the group.
func (s *Service) SetLocation(ctx context.Context, caller *auth.SessionUser, groupID primitive.ObjectID, in LocationInput) (MemberLocation, error) {
	if _, err := s.gate.RequireMember(ctx, groupID, caller.UserID); err != nil {
		return MemberLocation{}, err
	}
	if in.Lat == nil || in.Lng == nil || !ValidCoordinates(*in.Lat, *in.Lng) {
		return MemberLocation{}, apperr.InvalidCoordinates
	}
	if !s.limiter.Allow(caller.UserID) {
		return MemberLocation{}, apperr.RateLimited
	}

	loc := models.MemberLocation{
		Lat:         *in.Lat,
		Lng:         *in.Lng,
		Address:     clean(in.Address),
		PlaceName:   clean(in.PlaceName),
		PlaceType:   clean(in.PlaceType),
		Crowdedness: clean(in.Crowdedness),
		UpdatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	for _, a := range in.Amenities {
		if len(loc.Amenities) == maxAmenities {
			break
		}
		if a = clean(a); a != "" {
			loc.Amenities = append(loc.Amenities, a)
		}
	}

	ok, err := s.members.SetLocation(ctx, groupID, caller.UserID, loc)
	if err != nil {
		s.log.Error("set location", zap.String("group_id", groupID.Hex()), zap.Error(err))
		return MemberLocation{}, apperr.Internal(err)
	}
	if !ok {
		// Left the group between the gate and the write.
		return MemberLocation{}, apperr.NotMember
	}

	out := MemberLocation{UserID: caller.UserID, Name: caller.Name, Image: caller.Image, Location: loc}
	s.fx.Go(ctx, "publish.location-updated", func(ctx context.Context) error {
		return s.pub.Publish(ctx, realtime.NewEvent(realtime.EventLocationUpdated, groupID, out))
	})
	return out, nil
}

// ListLocations returns every active member currently sharing a location.
func (s *Service) ListLocations(ctx context.Context, callerID string, groupID primitive.ObjectID) ([]MemberLocation, error) {
	if _, err := s.gate.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	rows, err := s.members.ListWithLocation(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.UserID)
	}
	disp, err := s.users.DisplayByUserIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]MemberLocation, 0, len(rows))
	for _, m := range rows {
		d := disp[m.UserID]
		out = append(out, MemberLocation{UserID: m.UserID, Name: d.Name, Image: d.Image, Location: *m.Location})
	}
	return out, nil
}

// ClearLocation removes the caller's location.
func (s *Service) ClearLocation(ctx context.Context, callerID string, groupID primitive.ObjectID) error {
	if _, err := s.gate.RequireMember(ctx, groupID, callerID); err != nil {
		return err
	}
	if err := s.members.ClearLocation(ctx, groupID, callerID); err != nil {
		return apperr.Internal(err)
	}
	s.fx.Go(ctx, "publish.location-cleared", func(ctx context.Context) error {
		return s.pub.Publish(ctx, realtime.NewEvent(realtime.EventLocationCleared, groupID, map[string]string{"userId": callerID}))
	})
	return nil
}

// ListActiveFocus returns the group's members whose focus session is
// running, with whole minutes elapsed.
func (s *Service) ListActiveFocus(ctx context.Context, callerID string, groupID primitive.ObjectID) ([]ActiveFocus, error) {
	if _, err := s.gate.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	rows, err := s.members.ListActive(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.ActiveFocusByUserIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	out := make([]ActiveFocus, 0, len(users))
	for _, u := range users {
		af := ActiveFocus{
			UserID:         u.UserID,
			Name:           u.Name,
			Image:          u.Image,
			SessionType:    u.FocusSession.SessionType,
			TargetDuration: u.FocusSession.TargetDuration,
		}
		if u.FocusSession.StartedAt != nil {
			af.StartedAt = *u.FocusSession.StartedAt
			af.ElapsedMinutes = ElapsedMinutes(af.StartedAt, now)
		}
		out = append(out, af)
	}
	return out, nil
}

// ElapsedMinutes is floor((now - start) / 1m), never negative.
func ElapsedMinutes(start, now time.Time) int {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

func clean(s string) string {
	s = strings.TrimSpace(htmlsanitize.PlainText(s))
	if r := []rune(s); len(r) > maxTextField {
		s = string(r[:maxTextField])
	}
	return s
}
