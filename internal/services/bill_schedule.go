package services

import (
	"fmt"
	"time"

	"fintrack/internal/models"
)

// Schedule derives the due dates of a recurring bill from its anchor date.
// Occurrence(anchor, 0) is the anchor itself; k may be negative.
type Schedule interface {
	Occurrence(anchor time.Time, k int) time.Time
}

// dayStep advances by a fixed number of days.
type dayStep struct {
	days int
}

// Occurrence implements Schedule.
func (s dayStep) Occurrence(anchor time.Time, k int) time.Time {
	return anchor.AddDate(0, 0, k*s.days)
}

// monthStep advances by whole months. The anchor's day of month is kept and
// clamped to the last day of shorter months, always computed from the anchor
// so a 31st never drifts to the 28th.
type monthStep struct {
	months int
}

// Occurrence implements Schedule.
func (s monthStep) Occurrence(anchor time.Time, k int) time.Time {
	return addMonthsClamped(anchor, k*s.months)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}

var billSchedules = map[models.BillFrequency]Schedule{
	models.BillFrequencyDaily:        dayStep{days: 1},
	models.BillFrequencyWeekly:       dayStep{days: 7},
	models.BillFrequencyBiweekly:     dayStep{days: 14},
	models.BillFrequencyMonthly:      monthStep{months: 1},
	models.BillFrequencyQuarterly:    monthStep{months: 3},
	models.BillFrequencySemiannually: monthStep{months: 6},
	models.BillFrequencyAnnually:     monthStep{months: 12},
}

// ScheduleFor returns the schedule for a bill frequency.
func ScheduleFor(freq models.BillFrequency) (Schedule, error) {
	s, ok := billSchedules[freq]
	if !ok {
		return nil, fmt.Errorf("unknown bill frequency: %s", freq)
	}
	return s, nil
}

// cycleIndex returns the largest k with Occurrence(anchor, k) <= asOf.
func cycleIndex(s Schedule, anchor, asOf time.Time) int {
	var k int
	switch step := s.(type) {
	case dayStep:
		k = int(asOf.Sub(anchor).Hours()/24) / step.days
	case monthStep:
		months := (asOf.Year()-anchor.Year())*12 + int(asOf.Month()) - int(anchor.Month())
		k = months / step.months
	}
	for !s.Occurrence(anchor, k+1).After(asOf) {
		k++
	}
	for s.Occurrence(anchor, k).After(asOf) {
		k--
	}
	return k
}
