// Package timeline holds pure projections over message sequences used by
// presentation layers: date grouping, relative timestamps and read status.
// Nothing here mutates state; callers derive views on demand.
package timeline

import (
	"time"

	"chatcore/pkg/models"
)

// DayGroup is a contiguous run of messages sharing a calendar day.
type DayGroup struct {
	// Label is a human tag: "Today", "Yesterday", a weekday name within the
	// last seven days, else a localized date.
	Label    string
	Day      time.Time
	Messages []models.Message
}

// GroupByDate partitions an ordered message sequence into contiguous runs
// sharing a calendar day in loc, each tagged with a label relative to now.
// Two messages from the same calendar day never land in different groups.
func GroupByDate(msgs []models.Message, now time.Time, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	var out []DayGroup
	for _, m := range msgs {
		day := startOfDay(time.Unix(0, m.TS), loc)
		if n := len(out); n > 0 && out[n-1].Day.Equal(day) {
			out[n-1].Messages = append(out[n-1].Messages, m)
			continue
		}
		out = append(out, DayGroup{
			Label:    DayLabel(day, now, loc),
			Day:      day,
			Messages: []models.Message{m},
		})
	}
	return out
}

// DayLabel tags a calendar day relative to now: Today, Yesterday, the
// weekday name within the last week, else a long-form date.
func DayLabel(day, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	today := startOfDay(now, loc)
	day = startOfDay(day, loc)
	switch daysBetween(day, today) {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	}
	if d := daysBetween(day, today); d > 1 && d < 7 {
		return day.Weekday().String()
	}
	return day.Format("January 2, 2006")
}

// FormatRelativeTime renders ts relative to now the way conversation list
// rows do: same day shows the clock time, one day back "Yesterday", within
// a week the short weekday, older the short month/day. Pure in (ts, now).
func FormatRelativeTime(ts int64, now time.Time, loc *time.Location) string {
	if ts == 0 {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Unix(0, ts).In(loc)
	switch d := daysBetween(startOfDay(t, loc), startOfDay(now, loc)); {
	case d == 0:
		return FormatClock(ts, loc)
	case d == 1:
		return "Yesterday"
	case d < 7:
		return t.Format("Mon")
	default:
		return t.Format("Jan 2")
	}
}

// FormatClock renders the local time-of-day for a timestamp.
func FormatClock(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(0, ts).In(loc).Format("3:04 PM")
}

// SeenByCounterpart reports whether anyone besides the sender has read the
// message. This is a deliberate simplification, not a per-recipient read
// receipt model.
func SeenByCounterpart(m models.Message) bool {
	return len(m.ReadBy) > 1
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// daysBetween counts calendar-day steps from a to b, both already
// normalized to midnight in the same location. The comparison is done in
// UTC so DST transitions cannot skew the count.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}
