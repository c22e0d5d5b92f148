package models

import (
	"testing"
	"time"
)

func timedIssue(status IssueStatus, start time.Time, deadline time.Time) *Issue {
	return &Issue{
		ID:         1,
		StoreId:    1,
		Status:     status,
		TimerStart: &start,
		Deadline:   &deadline,
	}
}

func TestProgressPercentClampedAndMonotonic(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(24 * time.Hour)
	issue := timedIssue(IssueStatusNotifiedWhatsapp, start, deadline)

	if got := issue.ProgressPercent(start.Add(-time.Hour)); got != 0 {
		t.Fatalf("expected 0%% before the timer starts, got %f", got)
	}
	if got := issue.ProgressPercent(start.Add(12 * time.Hour)); got != 50 {
		t.Fatalf("expected 50%% at the halfway mark, got %f", got)
	}
	if got := issue.ProgressPercent(deadline.Add(6 * time.Hour)); got != 100 {
		t.Fatalf("expected 100%% past the deadline, got %f", got)
	}

	prev := -1.0
	for h := 0; h <= 30; h++ {
		p := issue.ProgressPercent(start.Add(time.Duration(h) * time.Hour))
		if p < prev {
			t.Fatalf("progress went backwards at hour %d: %f < %f", h, p, prev)
		}
		prev = p
	}
}

func TestProgressPercentOutsideTimedState(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(24 * time.Hour)

	open := timedIssue(IssueStatusOpen, start, deadline)
	if got := open.ProgressPercent(start.Add(12 * time.Hour)); got != 0 {
		t.Fatalf("expected 0%% for an open issue, got %f", got)
	}

	resolved := timedIssue(IssueStatusResolved, start, deadline)
	if got := resolved.ProgressPercent(start.Add(12 * time.Hour)); got != 0 {
		t.Fatalf("expected 0%% for a resolved issue, got %f", got)
	}
}

func TestTimerColorThresholds(t *testing.T) {
	cases := []struct {
		progress float64
		want     TimerColor
	}{
		{0, TimerColorGreen},
		{49.9, TimerColorGreen},
		{50, TimerColorYellow},
		{74.9, TimerColorYellow},
		{75, TimerColorRed},
		{100, TimerColorRed},
	}
	for _, c := range cases {
		if got := TimerColorFor(c.progress); got != c.want {
			t.Fatalf("progress %.1f: expected %s, got %s", c.progress, c.want, got)
		}
	}
}

func TestTimerStatusEighteenOfTwentyFourHoursIsRed(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(24 * time.Hour)
	issue := timedIssue(IssueStatusNotifiedWhatsapp, start, deadline)

	status := issue.TimerStatusAt(start.Add(18 * time.Hour))
	if status.ProgressPercent != 75 {
		t.Fatalf("expected 75%% progress, got %f", status.ProgressPercent)
	}
	if status.Color != TimerColorRed {
		t.Fatalf("expected red, got %s", status.Color)
	}
	if status.Overdue {
		t.Fatalf("expected not overdue before the deadline")
	}
	if status.RemainingSeconds != int64((6 * time.Hour).Seconds()) {
		t.Fatalf("expected 6h remaining, got %ds", status.RemainingSeconds)
	}
}

func TestTimerStatusOverdue(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(72 * time.Hour)
	issue := timedIssue(IssueStatusNotifiedTicket, start, deadline)

	status := issue.TimerStatusAt(deadline.Add(time.Minute))
	if !status.Overdue {
		t.Fatalf("expected overdue past the deadline")
	}
	if status.RemainingSeconds != 0 {
		t.Fatalf("expected 0s remaining, got %d", status.RemainingSeconds)
	}
	if status.ProgressPercent != 100 || status.Color != TimerColorRed {
		t.Fatalf("expected 100%% red, got %f %s", status.ProgressPercent, status.Color)
	}
}
