package models

import "testing"

func TestQuotaTargetSpreadsBacklogOverRemainingDays(t *testing.T) {
	// Three pending audits spread over five remaining working days: one per day.
	if got := QuotaTarget(true, 3, 5, 0); got != 1 {
		t.Fatalf("expected target 1, got %d", got)
	}
	// Two pending over four days still rounds up to one.
	if got := QuotaTarget(true, 2, 4, 0); got != 1 {
		t.Fatalf("expected target 1, got %d", got)
	}
	// Ten pending over three days: ceil(10/3) = 4.
	if got := QuotaTarget(true, 10, 3, 0); got != 4 {
		t.Fatalf("expected target 4, got %d", got)
	}
}

func TestQuotaTargetOffDayIsZero(t *testing.T) {
	if got := QuotaTarget(false, 10, 3, 2); got != 0 {
		t.Fatalf("expected target 0 on a day off, got %d", got)
	}
}

func TestQuotaTargetZeroBacklogIsZero(t *testing.T) {
	if got := QuotaTarget(true, 0, 5, 0); got != 0 {
		t.Fatalf("expected target 0 with no backlog, got %d", got)
	}
	if got := QuotaTarget(true, -3, 5, 0); got != 0 {
		t.Fatalf("expected target 0 with negative backlog, got %d", got)
	}
}

func TestQuotaTargetDivisorNeverBelowOne(t *testing.T) {
	// Sunday edge: no working days left still yields the full backlog today.
	if got := QuotaTarget(true, 7, 0, 0); got != 7 {
		t.Fatalf("expected target 7 with zero days left, got %d", got)
	}
	if got := QuotaTarget(true, 7, -2, 0); got != 7 {
		t.Fatalf("expected target 7 with negative days left, got %d", got)
	}
}

func TestQuotaTargetAddsExtraQuota(t *testing.T) {
	if got := QuotaTarget(true, 3, 5, 2); got != 3 {
		t.Fatalf("expected target 3 with extra quota, got %d", got)
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{1, 1, 1},
		{5, 5, 1},
		{6, 5, 2},
		{10, 3, 4},
		{9, 3, 3},
	}
	for _, c := range cases {
		if got := ceilDiv(c.a, c.b); got != c.want {
			t.Fatalf("ceilDiv(%d, %d): expected %d, got %d", c.a, c.b, c.want, got)
		}
	}
}

func TestQuotaStatusBlocksAtZeroTarget(t *testing.T) {
	// No backlog (or a day off) means target 0, and target 0 admits nothing:
	// completed < target never holds, so the day starts blocked.
	status := quotaStatus(&DailyQuota{Target: 0, Completed: 0}, 0)
	if !status.Blocked {
		t.Fatalf("expected blocked with target 0, got blocked=%v", status.Blocked)
	}
	if status.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", status.Remaining)
	}

	status = quotaStatus(&DailyQuota{Target: 2, Completed: 1}, 1)
	if status.Blocked {
		t.Fatalf("expected not blocked below target, got blocked=%v", status.Blocked)
	}
	status = quotaStatus(&DailyQuota{Target: 2, Completed: 2}, 0)
	if !status.Blocked {
		t.Fatalf("expected blocked at target, got blocked=%v", status.Blocked)
	}
}
