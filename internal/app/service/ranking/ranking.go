// Package ranking builds per-group study leaderboards from the counters on
// membership rows.
package ranking

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	"github.com/dalemusser/studyhub/internal/app/store/studycounters"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Periods.
const (
	Today = "today"
	Week  = "week"
	Month = "month"
)

const (
	DefaultTopN = 10
	MaxTopN     = 100
)

// Entry is one row of a leaderboard. Rank is 1-based.
type Entry struct {
	Rank    int    `json:"rank"`
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Image   string `json:"image,omitempty"`
	Minutes int    `json:"minutes"`
}

// Board is a leaderboard plus the caller's own standing.
type Board struct {
	Period  string  `json:"period"`
	Entries []Entry `json:"rankings"`
	Me      *Entry  `json:"myRank"`
}

type Service struct {
	gate    *grouppolicy.Gate
	members *membershipstore.Store
	users   *userstore.Store
	loc     *time.Location
	topN    int
	now     func() time.Time
}

// New wires the aggregator. loc must match the one study minutes are
// recorded in; topN <= 0 means DefaultTopN.
func New(db *mongo.Database, loc *time.Location, topN int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Service{
		gate:    grouppolicy.New(db),
		members: membershipstore.New(db),
		users:   userstore.New(db),
		loc:     loc,
		topN:    topN,
		now:     time.Now,
	}
}

// ParsePeriod maps the query value to a period. Empty means week.
func ParsePeriod(s string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(s)); p {
	case "":
		return Week, nil
	case Today, Week, Month:
		return p, nil
	}
	return "", apperr.InvalidPeriod
}

// Figure is a member's minutes for period as of now. Buckets from an
// earlier week count as zero. Month is the lifetime total.
func Figure(m models.GroupMember, period string, now time.Time) int {
	switch period {
	case Today:
		return studycounters.Current(m.WeeklyStudy, m.WeekStart, now).Day(now.Weekday())
	case Month:
		return m.TotalStudyMinutes
	default:
		return studycounters.Current(m.WeeklyStudy, m.WeekStart, now).Total()
	}
}

type scored struct {
	m       models.GroupMember
	minutes int
}

// Rank returns the top topN members of the group for period, plus the
// caller's entry even when it falls outside the top. topN <= 0 uses the
// configured default.
func (s *Service) Rank(ctx context.Context, callerID string, groupID primitive.ObjectID, period string, topN int) (Board, error) {
	if _, err := s.gate.RequireMember(ctx, groupID, callerID); err != nil {
		return Board{}, err
	}
	period, err := ParsePeriod(period)
	if err != nil {
		return Board{}, err
	}
	switch {
	case topN <= 0:
		topN = s.topN
	case topN > MaxTopN:
		topN = MaxTopN
	}

	rows, err := s.members.ListActive(ctx, groupID)
	if err != nil {
		return Board{}, apperr.Internal(err)
	}

	now := s.now().In(s.loc)
	list := make([]scored, 0, len(rows))
	for _, m := range rows {
		list = append(list, scored{m: m, minutes: Figure(m, period, now)})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].minutes != list[j].minutes {
			return list[i].minutes > list[j].minutes
		}
		if !list[i].m.JoinedAt.Equal(list[j].m.JoinedAt) {
			return list[i].m.JoinedAt.Before(list[j].m.JoinedAt)
		}
		return list[i].m.UserID < list[j].m.UserID
	})

	top := list
	if len(top) > topN {
		top = top[:topN]
	}
	mine := -1
	for i, sc := range list {
		if sc.m.UserID == callerID {
			mine = i
			break
		}
	}

	ids := make([]string, 0, len(top)+1)
	for _, sc := range top {
		ids = append(ids, sc.m.UserID)
	}
	if mine >= 0 {
		ids = append(ids, callerID)
	}
	disp, err := s.users.DisplayByUserIDs(ctx, ids)
	if err != nil {
		return Board{}, apperr.Internal(err)
	}
	entry := func(i int) Entry {
		sc := list[i]
		d := disp[sc.m.UserID]
		return Entry{Rank: i + 1, UserID: sc.m.UserID, Name: d.Name, Image: d.Image, Minutes: sc.minutes}
	}

	b := Board{Period: period, Entries: make([]Entry, 0, len(top))}
	for i := range top {
		b.Entries = append(b.Entries, entry(i))
	}
	if mine >= 0 {
		e := entry(mine)
		b.Me = &e
	}
	return b, nil
}
