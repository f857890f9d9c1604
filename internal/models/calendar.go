package models

import "time"

// NonInstructionalDay marks a date without classes for one institution or the whole network.
type NonInstructionalDay struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID *string   `db:"institution_id" json:"institutionId,omitempty"`
	Day           time.Time `db:"day" json:"day"`
	Reason        string    `db:"reason" json:"reason"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// NonInstructionalDayFilter scopes listing queries.
type NonInstructionalDayFilter struct {
	InstitutionID string
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}
