// Package derive computes the attributes the warehouse stores but no source
// carries: duration classes and calendar decomposition of dates.
package derive

import (
	"errors"
	"time"
)

// ErrNegativeDuration is returned for trips that arrive before they depart
var ErrNegativeDuration = errors.New("negative duration")

// Duration class labels, in bucket order
const (
	ClassUpToWeek      = "0-7"
	ClassUpToFortnight = "8-15"
	ClassUpToMonth     = "16-30"
	ClassUpToTwoMonths = "31-60"
	ClassLonger        = "60+"
)

var classBounds = []struct {
	max   int
	label string
}{
	{7, ClassUpToWeek},
	{15, ClassUpToFortnight},
	{30, ClassUpToMonth},
	{60, ClassUpToTwoMonths},
}

// Classes lists every duration class label in bucket order
func Classes() []string {
	return []string{ClassUpToWeek, ClassUpToFortnight, ClassUpToMonth, ClassUpToTwoMonths, ClassLonger}
}

// ClassifyDuration maps a day count onto its duration class. Upper bounds are
// inclusive.
func ClassifyDuration(days int) (string, error) {
	if days < 0 {
		return "", ErrNegativeDuration
	}
	for _, b := range classBounds {
		if days <= b.max {
			return b.label, nil
		}
	}
	return ClassLonger, nil
}

// ClassIndex returns the bucket ordinal of a class label, or -1
func ClassIndex(label string) int {
	for i, c := range Classes() {
		if c == label {
			return i
		}
	}
	return -1
}

// Calendar is the decomposition stored on the time dimension
type Calendar struct {
	Year    int
	Month   int
	Half    int
	Quarter int
}

// DecomposeDate splits a date into year, month, half and quarter
func DecomposeDate(t time.Time) Calendar {
	month := int(t.Month())
	half := 1
	if month > 6 {
		half = 2
	}
	return Calendar{
		Year:    t.Year(),
		Month:   month,
		Half:    half,
		Quarter: (month-1)/3 + 1,
	}
}

// Date truncates t to its civil date, in UTC
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DurationDays counts whole calendar days from departure to arrival. The time
// of day is ignored; the result is negative if arrival precedes departure.
func DurationDays(departure, arrival time.Time) int {
	return int(Date(arrival).Sub(Date(departure)).Hours() / 24)
}
