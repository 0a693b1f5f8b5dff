package domain

import "time"

// DefaultReviewFrequencyDays applies when a document reaches approval without
// an explicit review frequency.
const DefaultReviewFrequencyDays = 90

// OverdueBucket groups overdue documents for reporting.
type OverdueBucket string

const (
	OverdueBucketWeek    OverdueBucket = "0-7"
	OverdueBucketMonth   OverdueBucket = "8-30"
	OverdueBucketQuarter OverdueBucket = "31-90"
	OverdueBucketBeyond  OverdueBucket = "90+"
)

// NextReviewDate adds frequencyDays calendar days to the effective date.
// Deterministic: the same inputs always yield the same date.
func NextReviewDate(effectiveDate time.Time, frequencyDays int) time.Time {
	return effectiveDate.AddDate(0, 0, frequencyDays)
}

// IsOverdue reports whether the document's next review date has passed.
// A review due exactly now is not yet overdue.
func IsOverdue(doc *Document, now time.Time) bool {
	if doc == nil || doc.NextReviewDate == nil {
		return false
	}
	return doc.NextReviewDate.Before(now)
}

// DaysOverdue returns the ceiling of the elapsed time past the next review
// date in days, and 0 when the document is not overdue.
func DaysOverdue(doc *Document, now time.Time) int {
	if !IsOverdue(doc, now) {
		return 0
	}
	elapsed := now.Sub(*doc.NextReviewDate)
	days := int(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// BucketForDaysOverdue maps a positive overdue day count onto its reporting
// bucket.
func BucketForDaysOverdue(days int) OverdueBucket {
	switch {
	case days <= 7:
		return OverdueBucketWeek
	case days <= 30:
		return OverdueBucketMonth
	case days <= 90:
		return OverdueBucketQuarter
	default:
		return OverdueBucketBeyond
	}
}
