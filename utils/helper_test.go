package utils

import (
	"testing"
	"time"
)

func TestStartOfWeekIsMonday(t *testing.T) {
	// 2026-03-04 is a Wednesday; the week starts Monday 2026-03-02.
	wednesday := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	monday := StartOfWeek(wednesday)
	if monday.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", monday.Weekday())
	}
	if monday.Day() != 2 || monday.Hour() != 0 {
		t.Fatalf("expected 2026-03-02 00:00, got %s", monday)
	}

	// Sunday belongs to the week that started six days earlier.
	sunday := time.Date(2026, 3, 8, 1, 0, 0, 0, time.UTC)
	if got := StartOfWeek(sunday); got.Day() != 2 {
		t.Fatalf("expected Sunday to map to Monday 2026-03-02, got %s", got)
	}

	// Monday maps to itself.
	if got := StartOfWeek(monday); !got.Equal(monday) {
		t.Fatalf("expected Monday to map to itself, got %s", got)
	}
}

func TestEndOfWeekIsSunday(t *testing.T) {
	wednesday := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	sunday := EndOfWeek(wednesday)
	if sunday.Weekday() != time.Sunday || sunday.Day() != 8 {
		t.Fatalf("expected Sunday 2026-03-08, got %s", sunday)
	}
	if sunday.Hour() != 23 || sunday.Minute() != 59 {
		t.Fatalf("expected end of day, got %s", sunday)
	}
	if !wednesday.Before(sunday) {
		t.Fatalf("expected the week end after the input date")
	}
}

func TestDaysUntilSunday(t *testing.T) {
	cases := []struct {
		day  time.Time
		want int
	}{
		{time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 6}, // Monday
		{time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), 3}, // Thursday
		{time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), 1}, // Saturday
		{time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), 0}, // Sunday
	}
	for _, c := range cases {
		if got := DaysUntilSunday(c.day); got != c.want {
			t.Fatalf("%s: expected %d, got %d", c.day.Weekday(), c.want, got)
		}
	}
}

func TestConvertToDateUsesLocalCalendar(t *testing.T) {
	// 2026-03-05 01:30 UTC is still 2026-03-04 in Sao Paulo (UTC-3).
	instant := time.Date(2026, 3, 5, 1, 30, 0, 0, time.UTC)
	got, err := ConvertToDate(instant, "America/Sao_Paulo")
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	if got.Year() != 2026 || got.Month() != time.March || got.Day() != 4 {
		t.Fatalf("expected local date 2026-03-04, got %s", got)
	}
	if got.Hour() != 0 || got.Minute() != 0 {
		t.Fatalf("expected midnight, got %s", got)
	}
}

func TestConvertToDateRejectsBadZone(t *testing.T) {
	if _, err := ConvertToDate(time.Now(), "Not/AZone"); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestNormalizeStoreCode(t *testing.T) {
	cases := []struct{ in, want string }{
		{" lj-001 ", "LJ-001"},
		{"lj001", "LJ001"},
		{"LJ-001", "LJ-001"},
	}
	for _, c := range cases {
		if got := NormalizeStoreCode(c.in); got != c.want {
			t.Fatalf("NormalizeStoreCode(%q): expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 {
		t.Fatalf("expected 3 unique values, got %v", got)
	}
}
