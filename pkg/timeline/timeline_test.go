package timeline

import (
	"testing"
	"time"

	"chatcore/pkg/models"
)

// Fixed reference point so the relative labels are deterministic:
// Thursday, March 12 2026, 15:00 UTC.
var refNow = time.Date(2026, time.March, 12, 15, 0, 0, 0, time.UTC)

func tsAgo(d time.Duration) int64 {
	return refNow.Add(-d).UnixNano()
}

func TestFormatRelativeTimeSameDay(t *testing.T) {
	got := FormatRelativeTime(tsAgo(2*time.Hour), refNow, time.UTC)
	if got != "1:00 PM" {
		t.Fatalf("same-day timestamp should render the clock, got %q", got)
	}
}

func TestFormatRelativeTimeYesterday(t *testing.T) {
	// 25 hours back crosses exactly one midnight from 15:00.
	got := FormatRelativeTime(tsAgo(25*time.Hour), refNow, time.UTC)
	if got != "Yesterday" {
		t.Fatalf("expected Yesterday, got %q", got)
	}
}

func TestFormatRelativeTimeWithinWeek(t *testing.T) {
	// 6 days back from Thursday is the previous Friday.
	got := FormatRelativeTime(tsAgo(6*24*time.Hour), refNow, time.UTC)
	if got != "Fri" {
		t.Fatalf("expected short weekday Fri, got %q", got)
	}
}

func TestFormatRelativeTimeOlderThanWeek(t *testing.T) {
	// 8 days back falls off the weekday window and renders a date.
	got := FormatRelativeTime(tsAgo(8*24*time.Hour), refNow, time.UTC)
	if got != "Mar 4" {
		t.Fatalf("expected short date Mar 4, got %q", got)
	}
}

func TestFormatRelativeTimeZero(t *testing.T) {
	if got := FormatRelativeTime(0, refNow, time.UTC); got != "" {
		t.Fatalf("zero timestamp should render empty, got %q", got)
	}
}

func TestDayLabel(t *testing.T) {
	cases := []struct {
		back time.Duration
		want string
	}{
		{0, "Today"},
		{24 * time.Hour, "Yesterday"},
		{3 * 24 * time.Hour, "Monday"},
		{10 * 24 * time.Hour, "March 2, 2026"},
	}
	for _, c := range cases {
		day := refNow.Add(-c.back)
		if got := DayLabel(day, refNow, time.UTC); got != c.want {
			t.Fatalf("DayLabel(-%v) = %q, want %q", c.back, got, c.want)
		}
	}
}

func mkMsg(id string, ts int64) models.Message {
	return models.Message{
		ID:           id,
		Conversation: "c1",
		Sender:       "u1",
		TS:           ts,
		Kind:         models.KindText,
		Content:      "x",
		ReadBy:       []string{"u1"},
	}
}

func TestGroupByDateContiguousRuns(t *testing.T) {
	msgs := []models.Message{
		mkMsg("a", tsAgo(26*time.Hour)),
		mkMsg("b", tsAgo(25*time.Hour)),
		mkMsg("c", tsAgo(time.Hour)),
		mkMsg("d", tsAgo(30*time.Minute)),
	}
	groups := GroupByDate(msgs, refNow, time.UTC)
	if len(groups) != 2 {
		t.Fatalf("expected 2 day groups, got %d", len(groups))
	}
	if groups[0].Label != "Yesterday" || len(groups[0].Messages) != 2 {
		t.Fatalf("unexpected first group %q with %d messages", groups[0].Label, len(groups[0].Messages))
	}
	if groups[1].Label != "Today" || len(groups[1].Messages) != 2 {
		t.Fatalf("unexpected second group %q with %d messages", groups[1].Label, len(groups[1].Messages))
	}
	if groups[1].Messages[0].ID != "c" {
		t.Fatalf("group order must follow input order, got %s", groups[1].Messages[0].ID)
	}
}

func TestGroupByDateEmpty(t *testing.T) {
	if groups := GroupByDate(nil, refNow, time.UTC); len(groups) != 0 {
		t.Fatalf("expected no groups for empty input, got %d", len(groups))
	}
}

func TestSeenByCounterpart(t *testing.T) {
	m := mkMsg("a", tsAgo(time.Minute))
	if SeenByCounterpart(m) {
		t.Fatalf("only the sender has read the message")
	}
	m.MarkReadBy("u2")
	if !SeenByCounterpart(m) {
		t.Fatalf("a second reader should flip the receipt")
	}
}
