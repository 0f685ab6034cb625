package models

import "time"

// WeeklyStudy holds study minutes bucketed by day of week.
type WeeklyStudy struct {
	Monday    int `bson:"monday" json:"monday"`
	Tuesday   int `bson:"tuesday" json:"tuesday"`
	Wednesday int `bson:"wednesday" json:"wednesday"`
	Thursday  int `bson:"thursday" json:"thursday"`
	Friday    int `bson:"friday" json:"friday"`
	Saturday  int `bson:"saturday" json:"saturday"`
	Sunday    int `bson:"sunday" json:"sunday"`
}

// WeekdayKey returns the bson key of the bucket for d ("monday".."sunday").
func WeekdayKey(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

// Day returns the minutes recorded for d.
func (w WeeklyStudy) Day(d time.Weekday) int {
	switch d {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return w.Sunday
	}
}

// Total sums all seven buckets.
func (w WeeklyStudy) Total() int {
	return w.Monday + w.Tuesday + w.Wednesday + w.Thursday + w.Friday + w.Saturday + w.Sunday
}

// WeekStart returns midnight of the Monday on or before t, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}
