package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sigpae-api/internal/calendar"
	"github.com/noah-isme/sigpae-api/internal/models"
)

// Payload carries the optional data submitted with a transition.
type Payload struct {
	Justification string `json:"justification,omitempty"`
	Answer        *bool  `json:"answer,omitempty"`
}

// GuardInput is everything a guard may look at. Today is always supplied by the caller.
type GuardInput struct {
	Definition *Definition
	Request    models.Request
	Today      time.Time
	Actor      models.Actor
	Payload    Payload
	Calendar   *calendar.BusinessCalendar
	// Location is the zone stored timestamps are read in. Nil keeps their own zone.
	Location *time.Location
	// Siblings holds overlapping requests of the same variant and institution,
	// loaded only when a SiblingAware guard is attached.
	Siblings []models.Request
}

func (in GuardInput) cal() *calendar.BusinessCalendar {
	if in.Calendar == nil {
		return calendar.New(nil)
	}
	return in.Calendar
}

func (in GuardInput) institution() string {
	if in.Request.Institution() != "" {
		return in.Request.Institution()
	}
	return in.Actor.InstitutionID
}

// Guard is a pure business-rule predicate gating a transition.
type Guard interface {
	Check(in GuardInput) (reason string, ok bool)
}

// GuardFunc adapts a function into a Guard.
type GuardFunc func(in GuardInput) (string, bool)

// Check implements Guard.
func (f GuardFunc) Check(in GuardInput) (string, bool) { return f(in) }

// SiblingAware is implemented by guards that need GuardInput.Siblings.
type SiblingAware interface {
	NeedsSiblings() bool
}

// Evaluate runs guards in order and returns the first failure reason.
func Evaluate(guards []Guard, in GuardInput) (string, bool) {
	for _, g := range guards {
		if g == nil {
			continue
		}
		if reason, ok := g.Check(in); !ok {
			return reason, false
		}
	}
	return "", true
}

func needsSiblings(guards []Guard) bool {
	for _, g := range guards {
		if s, ok := g.(SiblingAware); ok && s.NeedsSiblings() {
			return true
		}
	}
	return false
}

// NotInPast rejects event dates before today.
type NotInPast struct{}

// Check implements Guard.
func (NotInPast) Check(in GuardInput) (string, bool) {
	if calendar.Date(in.Request.EventDate()).Before(calendar.Date(in.Today)) {
		return "Não pode ser no passado", false
	}
	return "", true
}

// MinimumAdvanceNotice requires the event date to be at least Days business days ahead.
type MinimumAdvanceNotice struct {
	Days int
}

// Check implements Guard.
func (g MinimumAdvanceNotice) Check(in GuardInput) (string, bool) {
	earliest := in.cal().AddBusinessDays(in.institution(), in.Today, g.Days)
	if calendar.Date(in.Request.EventDate()).Before(earliest) {
		return fmt.Sprintf("Deve pedir com pelo menos %d dias úteis de antecedência", g.Days), false
	}
	return "", true
}

// SameCalendarYear requires the event to happen in the current year. With
// AllowDecemberRollover, requests made in December may target the next year.
type SameCalendarYear struct {
	AllowDecemberRollover bool
}

// Check implements Guard.
func (g SameCalendarYear) Check(in GuardInput) (string, bool) {
	year := in.Request.EventDate().Year()
	if year == in.Today.Year() {
		return "", true
	}
	if g.AllowDecemberRollover && in.Today.Month() == time.December && year == in.Today.Year()+1 {
		return "", true
	}
	return "Solicitação deve ser solicitada no ano corrente", false
}

// LastMinuteAuthorizationBlocked rejects direct authorization when the request
// was made with less than Days business days of notice.
type LastMinuteAuthorizationBlocked struct {
	Days int
}

// Check implements Guard.
func (g LastMinuteAuthorizationBlocked) Check(in GuardInput) (string, bool) {
	if g.IsLastMinute(in.cal(), in.Request, in.Location) {
		return "CODAE não pode autorizar direto caso seja em cima da hora, deve questionar", false
	}
	return "", true
}

// IsLastMinute reports whether req was created with less than Days business days
// of notice, reading CreatedAt in loc when it is set.
func (g LastMinuteAuthorizationBlocked) IsLastMinute(cal *calendar.BusinessCalendar, req models.Request, loc *time.Location) bool {
	created := req.CreatedAt
	if loc != nil {
		created = created.In(loc)
	}
	threshold := cal.AddBusinessDays(req.Institution(), created, g.Days)
	return calendar.Date(req.EventDate()).Before(threshold)
}

// MinimumCancellationNotice allows cancelling only while the event is at least
// Days business days away.
type MinimumCancellationNotice struct {
	Days int
}

// Check implements Guard.
func (g MinimumCancellationNotice) Check(in GuardInput) (string, bool) {
	earliest := in.cal().AddBusinessDays(in.institution(), in.Today, g.Days)
	if calendar.Date(in.Request.EventDate()).Before(earliest) {
		return fmt.Sprintf("Só pode cancelar com no mínimo %d dia(s) úteis de antecedência", g.Days), false
	}
	return "", true
}

// OverlapScope names the set of requests NoOverlappingActiveDuplicate compares req with.
func OverlapScope(req models.Request) string {
	return strings.Join([]string{req.Variant, req.Institution(), req.Category}, "|")
}

// DefaultDuplicateMessage is used when NoOverlappingActiveDuplicate has no message.
const DefaultDuplicateMessage = "Já existe uma solicitação ativa para a mesma unidade, motivo e período"

// NoOverlappingActiveDuplicate rejects a request when an active request of the
// same institution and category overlaps its date window. Terminal siblings are
// ignored, and drafts too when IgnoreDrafts is set.
type NoOverlappingActiveDuplicate struct {
	Message      string
	IgnoreDrafts bool
}

// NeedsSiblings implements SiblingAware.
func (NoOverlappingActiveDuplicate) NeedsSiblings() bool { return true }

// Check implements Guard.
func (g NoOverlappingActiveDuplicate) Check(in GuardInput) (string, bool) {
	for _, other := range in.Siblings {
		if other.ID == in.Request.ID || other.Variant != in.Request.Variant {
			continue
		}
		if other.Institution() != in.Request.Institution() || other.Category != in.Request.Category {
			continue
		}
		status := State(other.Status)
		if in.Definition != nil {
			if in.Definition.IsTerminal(status) {
				continue
			}
			if g.IgnoreDrafts && status == in.Definition.Initial() {
				continue
			}
		}
		if !other.Overlaps(in.Request) {
			continue
		}
		if g.Message != "" {
			return g.Message, false
		}
		return DefaultDuplicateMessage, false
	}
	return "", true
}

// RequireJustification demands a non-blank justification in the payload.
type RequireJustification struct{}

// Check implements Guard.
func (RequireJustification) Check(in GuardInput) (string, bool) {
	if strings.TrimSpace(in.Payload.Justification) == "" {
		return "Justificativa é obrigatória", false
	}
	return "", true
}

// RequireAnswer demands a boolean answer in the payload.
type RequireAnswer struct{}

// Check implements Guard.
func (RequireAnswer) Check(in GuardInput) (string, bool) {
	if in.Payload.Answer == nil {
		return "Resposta é obrigatória", false
	}
	return "", true
}

// DateElapsed passes only once the event date (or the final date when
// UseFinalDate is set) is before today.
type DateElapsed struct {
	UseFinalDate bool
}

// Check implements Guard.
func (g DateElapsed) Check(in GuardInput) (string, bool) {
	day := in.Request.EventDate()
	if g.UseFinalDate {
		day = in.Request.LastDate()
	}
	if calendar.Date(day).Before(calendar.Date(in.Today)) {
		return "", true
	}
	return fmt.Sprintf("Data %s ainda não passou", calendar.Date(day).Format("02/01/2006")), false
}
