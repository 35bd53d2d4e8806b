package models

import "time"

// TrimesterInfo is computed from a due date and "now"; never persisted
type TrimesterInfo struct {
	Trimester     Trimester `json:"trimester"`
	WeekNumber    int       `json:"weekNumber"`
	DaysRemaining int       `json:"daysRemaining"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
}
