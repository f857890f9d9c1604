package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Trail is the institutional snapshot captured when a request is created.
type Trail struct {
	EscolaID       *string `db:"rastro_escola_id" json:"rastroEscolaId,omitempty"`
	DREID          *string `db:"rastro_dre_id" json:"rastroDreId,omitempty"`
	LoteID         *string `db:"rastro_lote_id" json:"rastroLoteId,omitempty"`
	TerceirizadaID *string `db:"rastro_terceirizada_id" json:"rastroTerceirizadaId,omitempty"`
}

// Institution returns the most specific institution recorded in the trail.
func (t Trail) Institution() string {
	switch {
	case t.EscolaID != nil:
		return *t.EscolaID
	case t.DREID != nil:
		return *t.DREID
	default:
		return ""
	}
}

// Request is one approvable business action governed by a workflow definition.
type Request struct {
	ID          string          `db:"id" json:"id"`
	Variant     string          `db:"variant" json:"variant"`
	Status      string          `db:"status" json:"status"`
	Version     int             `db:"version" json:"version"`
	DataInicial time.Time       `db:"data_inicial" json:"dataInicial"`
	DataFinal   *time.Time      `db:"data_final" json:"dataFinal,omitempty"`
	Category    string          `db:"category" json:"category"`
	Details     json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedBy   string          `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	Trail
}

// EventDate is the date the deadline guards are measured against.
func (r Request) EventDate() time.Time {
	return r.DataInicial
}

// LastDate returns the end of the event window.
func (r Request) LastDate() time.Time {
	if r.DataFinal != nil {
		return *r.DataFinal
	}
	return r.DataInicial
}

// Overlaps reports whether both requests share at least one day.
func (r Request) Overlaps(other Request) bool {
	return !r.LastDate().Before(other.EventDate()) && !other.LastDate().Before(r.EventDate())
}

// ExternalID returns the short code shown to users.
func (r Request) ExternalID() string {
	id := strings.ReplaceAll(r.ID, "-", "")
	if len(id) > 5 {
		id = id[:5]
	}
	return "#" + strings.ToUpper(id)
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	Variant        string
	Status         []string
	EscolaID       string
	DREID          string
	LoteID         string
	TerceirizadaID string
	CreatedBy      string
	From           *time.Time
	To             *time.Time
	FinalBefore    *time.Time
	Limit          int
	Offset         int
}
