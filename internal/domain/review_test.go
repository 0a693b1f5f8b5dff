package domain

import (
	"testing"
	"time"
)

func TestNextReviewDate(t *testing.T) {
	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got := NextReviewDate(effective, 90)
	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next review date: want=%s got=%s", want, got)
	}
}

func TestIsOverdueIsStrict(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	if IsOverdue(nil, now) {
		t.Fatalf("nil document must not be overdue")
	}
	if IsOverdue(&Document{}, now) {
		t.Fatalf("document without next review date must not be overdue")
	}

	exact := now
	if IsOverdue(&Document{NextReviewDate: &exact}, now) {
		t.Fatalf("review due exactly now must not be overdue")
	}

	past := now.Add(-time.Second)
	if !IsOverdue(&Document{NextReviewDate: &past}, now) {
		t.Fatalf("review one second past due must be overdue")
	}

	future := now.Add(time.Hour)
	if IsOverdue(&Document{NextReviewDate: &future}, now) {
		t.Fatalf("future review must not be overdue")
	}
}

func TestDaysOverdueCeils(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		past time.Duration
		want int
	}{
		{"not overdue", -time.Hour, 0},
		{"one second", time.Second, 1},
		{"exactly one day", 24 * time.Hour, 1},
		{"one day one second", 24*time.Hour + time.Second, 2},
		{"two weeks", 14 * 24 * time.Hour, 14},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			due := now.Add(-tc.past)
			got := DaysOverdue(&Document{NextReviewDate: &due}, now)
			if got != tc.want {
				t.Fatalf("days overdue: want=%d got=%d", tc.want, got)
			}
		})
	}
}

func TestBucketForDaysOverdue(t *testing.T) {
	cases := []struct {
		days int
		want OverdueBucket
	}{
		{1, OverdueBucketWeek},
		{7, OverdueBucketWeek},
		{8, OverdueBucketMonth},
		{30, OverdueBucketMonth},
		{31, OverdueBucketQuarter},
		{90, OverdueBucketQuarter},
		{91, OverdueBucketBeyond},
		{365, OverdueBucketBeyond},
	}
	for _, tc := range cases {
		if got := BucketForDaysOverdue(tc.days); got != tc.want {
			t.Fatalf("bucket for %d days: want=%s got=%s", tc.days, tc.want, got)
		}
	}
}
