package service

import (
	"time"

	"github.com/noah-isme/sigpae-api/internal/calendar"
	"github.com/noah-isme/sigpae-api/internal/models"
)

// Panel names accepted by the due query parameter.
const (
	DueWeek    = "week"
	DueMonth   = "month"
	DueOverdue = "overdue"
)

// DueWindow returns the event-date window of a panel relative to today.
// Week covers today plus seven days and month today plus one calendar month;
// overdue is everything before today.
func DueWindow(due string, today time.Time) (from, to *time.Time, ok bool) {
	today = calendar.Date(today)
	switch due {
	case DueWeek:
		end := today.AddDate(0, 0, 7)
		return &today, &end, true
	case DueMonth:
		end := today.AddDate(0, 1, 0)
		return &today, &end, true
	case DueOverdue:
		end := today.AddDate(0, 0, -1)
		return nil, &end, true
	default:
		return nil, nil, false
	}
}

// FilterDueThisWeek keeps requests whose event falls within the week panel.
func FilterDueThisWeek(requests []models.Request, today time.Time) []models.Request {
	return filterWindow(requests, DueWeek, today)
}

// FilterDueThisMonth keeps requests whose event falls within the month panel.
func FilterDueThisMonth(requests []models.Request, today time.Time) []models.Request {
	return filterWindow(requests, DueMonth, today)
}

// FilterOverdue keeps requests whose event date already passed.
func FilterOverdue(requests []models.Request, today time.Time) []models.Request {
	return filterWindow(requests, DueOverdue, today)
}

func filterWindow(requests []models.Request, due string, today time.Time) []models.Request {
	from, to, _ := DueWindow(due, today)
	out := make([]models.Request, 0, len(requests))
	for _, req := range requests {
		day := calendar.Date(req.EventDate())
		if from != nil && day.Before(*from) {
			continue
		}
		if to != nil && day.After(*to) {
			continue
		}
		out = append(out, req)
	}
	return out
}
