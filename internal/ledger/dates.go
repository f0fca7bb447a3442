package ledger

import "time"

// DateLayout is the fixed wire format for ledger dates.
const DateLayout = "2006-01-02"

// Today returns the local calendar date as YYYY-MM-DD.
func Today() string {
	return time.Now().Format(DateLayout)
}

// IsOverdue reports whether a due date lies strictly before today. The
// comparison is lexical, which is safe for fixed-width zero-padded ISO dates;
// a debt due today is not yet overdue.
func IsOverdue(dueDate string) bool {
	return IsOverdueAt(dueDate, Today())
}

// IsOverdueAt is IsOverdue against an explicit reference date.
func IsOverdueAt(dueDate, today string) bool {
	return dueDate != "" && dueDate < today
}

// AddMonths advances a date by whole calendar months, clamping the day of
// month to the length of the target month (Jan 31 + 1 month = Feb 28/29).
// time.AddDate normalizes overflow instead, which would roll into March.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	m = (m-1)%12 + 1
	if m <= 0 {
		m += 12
		year--
	}
	if last := daysIn(year, time.Month(m)); day > last {
		day = last
	}
	return time.Date(year, time.Month(m), day, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// InstallmentDueDates computes the due date of each installment: the start
// date plus i calendar months for i = 0..n-1.
func InstallmentDueDates(start time.Time, n int) []string {
	dates := make([]string, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, AddMonths(start, i).Format(DateLayout))
	}
	return dates
}
