package sched

import (
	"testing"
	"time"
)

func TestParseCronExpressionUTC_Valid(t *testing.T) {
	schedule, err := parseCronExpressionUTC("*/5 * * * *")
	if err != nil {
		t.Fatalf("parseCronExpressionUTC error: %v", err)
	}

	next := schedule.Next(time.Date(2026, 2, 20, 10, 2, 0, 0, time.UTC))
	want := time.Date(2026, 2, 20, 10, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next=%s, want=%s", next.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestParseCronExpressionUTC_RejectsTimezonePrefixes(t *testing.T) {
	for _, expr := range []string{
		"CRON_TZ=America/Los_Angeles * * * * *",
		"TZ=UTC * * * * *",
	} {
		if _, err := parseCronExpressionUTC(expr); err == nil {
			t.Fatalf("parseCronExpressionUTC(%q) expected error", expr)
		}
	}
}

func TestParseCronExpressionUTC_RejectsEmptyAndMalformed(t *testing.T) {
	for _, expr := range []string{"", "   ", "not a cron", "* * *"} {
		if _, err := parseCronExpressionUTC(expr); err == nil {
			t.Fatalf("parseCronExpressionUTC(%q) expected error", expr)
		}
	}
}

func TestNextCronRunUTC(t *testing.T) {
	now := time.Date(2026, 2, 20, 23, 59, 30, 0, time.UTC)

	next, err := nextCronRunUTC("0 0 * * *", now)
	if err != nil {
		t.Fatalf("nextCronRunUTC error: %v", err)
	}
	want := time.Date(2026, 2, 21, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next=%s, want=%s", next.Format(time.RFC3339), want.Format(time.RFC3339))
	}

	if _, err := nextCronRunUTC("bogus", now); err == nil {
		t.Fatal("expected error for malformed expression")
	}
}
