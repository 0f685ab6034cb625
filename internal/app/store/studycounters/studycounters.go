// Package studycounters records study minutes into day-of-week buckets.
//
// Buckets belong to the week starting at WeekStart. When a write lands in a
// later week the buckets are zeroed first; readers treat buckets from an
// earlier week as zero (see Current). Every step is a conditional update,
// so concurrent writers converge without read-modify-write.
package studycounters

import (
	"context"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Paths names the counter fields inside a document. WeekTotal, Today and
// Day are optional.
type Paths struct {
	Weekly    string
	WeekStart string
	Total     string
	WeekTotal string
	Today     string
	Day       string
}

// MemberPaths are the counters on a group_members row.
var MemberPaths = Paths{
	Weekly:    "weekly_study",
	WeekStart: "week_start",
	Total:     "total_study_minutes",
}

// UserPaths are the counters under users.study_stats.
var UserPaths = Paths{
	Weekly:    "study_stats.weekly",
	WeekStart: "study_stats.week_start",
	Total:     "study_stats.total_minutes",
	WeekTotal: "study_stats.week_minutes",
	Today:     "study_stats.today_minutes",
	Day:       "study_stats.day",
}

// Record adds minutes to every document matching filter. now must already
// be in the stats timezone; it decides both the bucket and the week.
func Record(ctx context.Context, c *mongo.Collection, filter bson.M, p Paths, minutes int, now time.Time) error {
	if minutes <= 0 {
		return nil
	}
	ws := models.WeekStart(now)

	reset := bson.M{p.Weekly: models.WeeklyStudy{}, p.WeekStart: ws}
	if p.WeekTotal != "" {
		reset[p.WeekTotal] = 0
	}
	if _, err := c.UpdateMany(ctx, with(filter, p.WeekStart, bson.M{"$lt": ws}), bson.M{"$set": reset}); err != nil {
		return err
	}
	// Rows that never recorded a week adopt the current one as is.
	if _, err := c.UpdateMany(ctx, with(filter, p.WeekStart, bson.M{"$exists": false}),
		bson.M{"$set": bson.M{p.WeekStart: ws}}); err != nil {
		return err
	}

	inc := bson.M{
		p.Weekly + "." + models.WeekdayKey(now.Weekday()): minutes,
		p.Total: minutes,
	}
	if p.WeekTotal != "" {
		inc[p.WeekTotal] = minutes
	}
	if p.Today != "" && p.Day != "" {
		day := now.Format(time.DateOnly)
		if _, err := c.UpdateMany(ctx, with(filter, p.Day, bson.M{"$ne": day}),
			bson.M{"$set": bson.M{p.Today: 0, p.Day: day}}); err != nil {
			return err
		}
		inc[p.Today] = minutes
	}

	_, err := c.UpdateMany(ctx, filter, bson.M{"$inc": inc})
	return err
}

// Current returns the buckets as of now: buckets recorded for an earlier
// week read as zero. A zero weekStart is treated as current.
func Current(w models.WeeklyStudy, weekStart, now time.Time) models.WeeklyStudy {
	if !weekStart.IsZero() && weekStart.Before(models.WeekStart(now)) {
		return models.WeeklyStudy{}
	}
	return w
}

func with(filter bson.M, key string, cond any) bson.M {
	out := make(bson.M, len(filter)+1)
	for k, v := range filter {
		out[k] = v
	}
	out[key] = cond
	return out
}
