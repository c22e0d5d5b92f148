package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCompletionPercent(t *testing.T) {
	cases := []struct {
		verified, assigned int
		want               string
	}{
		{0, 0, "0"},
		{5, 0, "0"},
		{0, 4, "0"},
		{3, 4, "75"},
		{4, 4, "100"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
	}
	for _, c := range cases {
		got := CompletionPercent(c.verified, c.assigned)
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Fatalf("CompletionPercent(%d, %d): expected %s, got %s", c.verified, c.assigned, c.want, got)
		}
	}
}

func TestGoalMet(t *testing.T) {
	if GoalMet(0, 0) {
		t.Fatalf("goal must not be met with nothing assigned")
	}
	if GoalMet(3, 4) {
		t.Fatalf("goal must not be met with unverified stores")
	}
	if !GoalMet(4, 4) {
		t.Fatalf("expected goal met when everything assigned was verified")
	}
	// Verified can exceed assigned when assignments were removed mid-week.
	if GoalMet(5, 4) {
		t.Fatalf("goal requires an exact match, got met for 5/4")
	}
}
