// Package workflow holds the generic approval engine: declarative transition
// tables per request variant, guard evaluation, the transition executor and
// audit history verification.
package workflow

import (
	"errors"
	"fmt"

	"github.com/noah-isme/sigpae-api/internal/models"
)

// State is a variant-specific request status.
type State string

// Event names a transition trigger.
type Event string

// Family groups variants sharing the same structural flow.
type Family string

const (
	FamilyEscola        Family = "ESCOLA"
	FamilyDRE           Family = "DRE"
	FamilyInformativo   Family = "INFORMATIVO"
	FamilyDietaEspecial Family = "DIETA_ESPECIAL"
	FamilyHomologacao   Family = "HOMOLOGACAO_PRODUTO"
	FamilyReclamacao    Family = "RECLAMACAO_PRODUTO"
	FamilyLogistica     Family = "LOGISTICA"
)

// EventCreate labels errors raised while creating a request.
const EventCreate Event = "criar"

// Transition is one edge of a workflow definition.
type Transition struct {
	From   State
	Event  Event
	To     State
	Roles  []models.UserRole
	Guards []Guard
}

// Allows reports whether role may trigger the transition.
func (t Transition) Allows(role models.UserRole) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type edgeKey struct {
	from  State
	event Event
}

// Definition is the immutable transition table of one request variant.
type Definition struct {
	variant        string
	family         Family
	initial        State
	states         []State
	stateSet       map[State]struct{}
	terminals      map[State]struct{}
	creatorRoles   []models.UserRole
	creationGuards []Guard
	edges          map[edgeKey]Transition
	order          []edgeKey
}

// Variant returns the type discriminator the definition governs.
func (d *Definition) Variant() string { return d.variant }

// Family returns the structural family of the variant.
func (d *Definition) Family() Family { return d.family }

// Initial returns the state new requests are created in.
func (d *Definition) Initial() State { return d.initial }

// States returns every declared state in declaration order.
func (d *Definition) States() []State {
	out := make([]State, len(d.states))
	copy(out, d.states)
	return out
}

// HasState reports whether s belongs to the definition.
func (d *Definition) HasState(s State) bool {
	_, ok := d.stateSet[s]
	return ok
}

// IsTerminal reports whether s absorbs the forward chain.
func (d *Definition) IsTerminal(s State) bool {
	_, ok := d.terminals[s]
	return ok
}

// Terminals returns the terminal states in declaration order.
func (d *Definition) Terminals() []State {
	out := make([]State, 0, len(d.terminals))
	for _, s := range d.states {
		if d.IsTerminal(s) {
			out = append(out, s)
		}
	}
	return out
}

// EdgeFor resolves the transition for (state, event).
func (d *Definition) EdgeFor(state State, event Event) (Transition, bool) {
	t, ok := d.edges[edgeKey{from: state, event: event}]
	return t, ok
}

// Transitions returns every edge in declaration order.
func (d *Definition) Transitions() []Transition {
	out := make([]Transition, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.edges[k])
	}
	return out
}

// AllowedEvents lists the events role may trigger from state. Guards are not evaluated.
func (d *Definition) AllowedEvents(state State, role models.UserRole) []Event {
	events := make([]Event, 0)
	for _, k := range d.order {
		if k.from != state {
			continue
		}
		if d.edges[k].Allows(role) {
			events = append(events, k.event)
		}
	}
	return events
}

// CreatorRoles returns the roles allowed to create requests of this variant.
func (d *Definition) CreatorRoles() []models.UserRole {
	out := make([]models.UserRole, len(d.creatorRoles))
	copy(out, d.creatorRoles)
	return out
}

// CanCreate reports whether role may create requests of this variant.
func (d *Definition) CanCreate(role models.UserRole) bool {
	return Transition{Roles: d.creatorRoles}.Allows(role)
}

// CreationGuards returns the guards evaluated on creation.
func (d *Definition) CreationGuards() []Guard {
	out := make([]Guard, len(d.creationGuards))
	copy(out, d.creationGuards)
	return out
}

// ErrInvalidDefinition is wrapped by every Build failure.
var ErrInvalidDefinition = errors.New("invalid workflow definition")

type alwaysAvailable struct {
	event    Event
	to       State
	roles    []models.UserRole
	alsoFrom []State
	guards   []Guard
}

// Builder assembles a Definition and validates it on Build.
type Builder struct {
	def    *Definition
	always []alwaysAvailable
	errs   []error
}

// NewBuilder starts a definition for variant.
func NewBuilder(variant string, family Family) *Builder {
	return &Builder{def: &Definition{
		variant:   variant,
		family:    family,
		stateSet:  make(map[State]struct{}),
		terminals: make(map[State]struct{}),
		edges:     make(map[edgeKey]Transition),
	}}
}

// States declares the state set.
func (b *Builder) States(states ...State) *Builder {
	for _, s := range states {
		if _, dup := b.def.stateSet[s]; dup {
			b.fail("state %q declared twice", s)
			continue
		}
		b.def.stateSet[s] = struct{}{}
		b.def.states = append(b.def.states, s)
	}
	return b
}

// Initial sets the creation state.
func (b *Builder) Initial(s State) *Builder {
	b.def.initial = s
	return b
}

// Terminal marks absorbing states.
func (b *Builder) Terminal(states ...State) *Builder {
	for _, s := range states {
		b.def.terminals[s] = struct{}{}
	}
	return b
}

// CreatedBy sets the roles allowed to create requests.
func (b *Builder) CreatedBy(roles ...models.UserRole) *Builder {
	b.def.creatorRoles = append(b.def.creatorRoles, roles...)
	return b
}

// CreationGuards sets the guards evaluated when a request is created.
func (b *Builder) CreationGuards(guards ...Guard) *Builder {
	b.def.creationGuards = append(b.def.creationGuards, guards...)
	return b
}

// Edge declares a forward transition.
func (b *Builder) Edge(from State, event Event, to State, roles []models.UserRole, guards ...Guard) *Builder {
	b.addEdge(Transition{From: from, Event: event, To: to, Roles: roles, Guards: guards})
	return b
}

// EdgeFrom declares the same transition from several states.
func (b *Builder) EdgeFrom(froms []State, event Event, to State, roles []models.UserRole, guards ...Guard) *Builder {
	for _, from := range froms {
		b.Edge(from, event, to, roles, guards...)
	}
	return b
}

// AlwaysAvailable declares an event reachable from every non-terminal state other
// than its target, plus the listed terminal states. Explicit edges for the same
// event take precedence.
func (b *Builder) AlwaysAvailable(event Event, to State, roles []models.UserRole, alsoFrom []State, guards ...Guard) *Builder {
	b.always = append(b.always, alwaysAvailable{event: event, to: to, roles: roles, alsoFrom: alsoFrom, guards: guards})
	return b
}

func (b *Builder) addEdge(t Transition) {
	key := edgeKey{from: t.From, event: t.Event}
	if _, dup := b.def.edges[key]; dup {
		b.fail("duplicate edge %q from %q", t.Event, t.From)
		return
	}
	b.def.edges[key] = t
	b.def.order = append(b.def.order, key)
}

func (b *Builder) fail(format string, args ...interface{}) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// Build validates and returns the definition.
func (b *Builder) Build() (*Definition, error) {
	d := b.def
	for _, a := range b.always {
		for _, s := range d.states {
			if d.IsTerminal(s) || s == a.to {
				continue
			}
			if _, explicit := d.edges[edgeKey{from: s, event: a.event}]; explicit {
				continue
			}
			b.addEdge(Transition{From: s, Event: a.event, To: a.to, Roles: a.roles, Guards: a.guards})
		}
		for _, s := range a.alsoFrom {
			if !d.IsTerminal(s) {
				b.fail("%q listed as extra source of %q is not terminal", s, a.event)
				continue
			}
			b.addEdge(Transition{From: s, Event: a.event, To: a.to, Roles: a.roles, Guards: a.guards})
		}
	}
	b.always = nil

	if d.initial == "" {
		b.fail("missing initial state")
	} else if !d.HasState(d.initial) {
		b.fail("initial state %q not declared", d.initial)
	} else if d.IsTerminal(d.initial) {
		b.fail("initial state %q is terminal", d.initial)
	}
	for s := range d.terminals {
		if !d.HasState(s) {
			b.fail("terminal state %q not declared", s)
		}
	}
	if len(d.creatorRoles) == 0 {
		b.fail("no creator roles")
	}
	for _, k := range d.order {
		t := d.edges[k]
		if !d.HasState(t.From) || !d.HasState(t.To) {
			b.fail("edge %q references undeclared state (%q -> %q)", t.Event, t.From, t.To)
		}
		if len(t.Roles) == 0 {
			b.fail("edge %q from %q has no roles", t.Event, t.From)
		}
	}

	if len(b.errs) > 0 {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidDefinition, d.variant, errors.Join(b.errs...))
	}
	return d, nil
}

func by(roles ...models.UserRole) []models.UserRole {
	return roles
}
