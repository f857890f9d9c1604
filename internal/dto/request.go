package dto

import (
	"encoding/json"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
)

// CreateRequestPayload opens a new request in the initial state of its variant.
type CreateRequestPayload struct {
	Variant     string          `json:"variant" validate:"required"`
	EscolaID    string          `json:"escolaId" validate:"omitempty,max=64"`
	DataInicial string          `json:"dataInicial" validate:"required,datetime=2006-01-02"`
	DataFinal   string          `json:"dataFinal" validate:"omitempty,datetime=2006-01-02"`
	Category    string          `json:"category" validate:"required,max=120"`
	Details     json.RawMessage `json:"details" swaggertype:"object"`
}

// TransitionPayload submits an event against a request.
type TransitionPayload struct {
	Event         string `json:"event" validate:"required,max=64"`
	Version       *int   `json:"version" validate:"omitempty,min=1"`
	Justification string `json:"justification" validate:"max=2000"`
	Answer        *bool  `json:"answer"`
}

// RequestQuery mirrors the supported listing filters.
type RequestQuery struct {
	Variant        string
	Status         []string
	EscolaID       string
	DREID          string
	LoteID         string
	TerceirizadaID string
	From           string
	To             string
	Due            string
	Page           int
	PageSize       int
}

// RequestItem is a request decorated with its deadline priority.
type RequestItem struct {
	models.Request
	ExternalID string            `json:"externalId"`
	DaysUntil  int               `json:"daysUntil"`
	Priority   workflow.Priority `json:"priority"`
}

// RequestList is one page of classified requests.
type RequestList struct {
	Items []RequestItem `json:"items"`
	Total int           `json:"total"`
}

// AllowedEventsResponse lists the events the caller may submit.
type AllowedEventsResponse struct {
	RequestID string   `json:"requestId"`
	Status    string   `json:"status"`
	Events    []string `json:"events"`
}

// TransitionView describes one edge of a workflow definition.
type TransitionView struct {
	From   string            `json:"from"`
	Event  string            `json:"event"`
	To     string            `json:"to"`
	Roles  []models.UserRole `json:"roles"`
	Guards int               `json:"guards"`
}

// WorkflowView is the read-only introspection of a definition.
type WorkflowView struct {
	Variant      string            `json:"variant"`
	Family       string            `json:"family"`
	Initial      string            `json:"initial"`
	States       []string          `json:"states"`
	Terminals    []string          `json:"terminals"`
	CreatorRoles []models.UserRole `json:"creatorRoles"`
	Transitions  []TransitionView  `json:"transitions"`
}
