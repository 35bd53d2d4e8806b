package journey

import (
	"math"
	"time"

	"github.com/terra-clan/bumpstory/internal/models"
)

const (
	day  = 24 * time.Hour
	week = 7 * day

	// PregnancyWeeks is the fixed full-term length used for all date arithmetic
	PregnancyWeeks = 40

	firstTrimesterLastWeek  = 12
	secondTrimesterLastWeek = 26
)

// ConceptionDate returns the nominal start of pregnancy for a due date
func ConceptionDate(dueDate time.Time) time.Time {
	return dueDate.Add(-PregnancyWeeks * week)
}

// DueDateFromLastPeriod estimates the due date from the first day of the
// last menstrual period (Naegele's rule, 280 days)
func DueDateFromLastPeriod(lastPeriod time.Time) time.Time {
	return lastPeriod.Add(PregnancyWeeks * week)
}

// WeekNumber returns the 1-based pregnancy week of now.
// The result is not clamped: it is <= 0 before conception and > 40 after the due date.
func WeekNumber(dueDate, now time.Time) int {
	elapsed := now.Sub(ConceptionDate(dueDate))
	return int(math.Floor(float64(elapsed)/float64(week))) + 1
}

// TrimesterFromWeek maps a week number to its trimester.
// Out-of-range weeks fall into the nearest trimester.
func TrimesterFromWeek(weekNumber int) models.Trimester {
	switch {
	case weekNumber <= firstTrimesterLastWeek:
		return models.TrimesterFirst
	case weekNumber <= secondTrimesterLastWeek:
		return models.TrimesterSecond
	default:
		return models.TrimesterThird
	}
}

// CalculateTrimester computes the week, trimester, the calendar bounds of the
// current trimester and the days left until the due date.
func CalculateTrimester(dueDate, now time.Time) models.TrimesterInfo {
	weekNumber := WeekNumber(dueDate, now)
	trimester := TrimesterFromWeek(weekNumber)
	start, end := trimesterBounds(dueDate, trimester)

	return models.TrimesterInfo{
		Trimester:     trimester,
		WeekNumber:    weekNumber,
		DaysRemaining: DaysRemaining(dueDate, now),
		StartDate:     start,
		EndDate:       end,
	}
}

// DaysRemaining returns whole days until dueDate, rounded up, never negative
func DaysRemaining(dueDate, now time.Time) int {
	left := dueDate.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(float64(left) / float64(day)))
}

func trimesterBounds(dueDate time.Time, t models.Trimester) (time.Time, time.Time) {
	conception := ConceptionDate(dueDate)
	secondStart := conception.Add(firstTrimesterLastWeek * week)
	thirdStart := conception.Add(secondTrimesterLastWeek * week)

	switch t {
	case models.TrimesterFirst:
		return conception, secondStart
	case models.TrimesterSecond:
		return secondStart, thirdStart
	default:
		return thirdStart, dueDate
	}
}
