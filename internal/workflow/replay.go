package workflow

import (
	"fmt"

	"github.com/noah-isme/sigpae-api/internal/models"
)

// ChainError describes the first inconsistency found in a history.
type ChainError struct {
	Seq    int
	Reason string
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	return fmt.Sprintf("audit entry %d: %s", e.Seq, e.Reason)
}

// VerifyChain checks sequence contiguity and the hash chain of history, which
// must be ordered ascending.
func VerifyChain(history []models.AuditEntry) error {
	prevHash := ""
	for i, entry := range history {
		if entry.Seq != i+1 {
			return &ChainError{Seq: entry.Seq, Reason: fmt.Sprintf("expected sequence %d", i+1)}
		}
		if entry.PrevHash != prevHash {
			return &ChainError{Seq: entry.Seq, Reason: "previous hash does not match"}
		}
		if EntryHash(prevHash, entry) != entry.Hash {
			return &ChainError{Seq: entry.Seq, Reason: "content hash does not match"}
		}
		prevHash = entry.Hash
	}
	return nil
}

// Replay walks history from the initial state through def and returns the state
// it ends in. Every entry must follow an existing edge.
func Replay(def *Definition, history []models.AuditEntry) (State, error) {
	current := def.Initial()
	for _, entry := range history {
		if State(entry.FromStatus) != current {
			return current, &ChainError{Seq: entry.Seq, Reason: fmt.Sprintf("starts at %q but request was at %q", entry.FromStatus, current)}
		}
		edge, ok := def.EdgeFor(current, Event(entry.Event))
		if !ok {
			return current, &ChainError{Seq: entry.Seq, Reason: unknownTransition(current, Event(entry.Event)).Error()}
		}
		if edge.To != State(entry.ToStatus) {
			return current, &ChainError{Seq: entry.Seq, Reason: fmt.Sprintf("leads to %q, definition says %q", entry.ToStatus, edge.To)}
		}
		current = edge.To
	}
	return current, nil
}

// Verification summarises the integrity check of one request.
type Verification struct {
	RequestID     string `json:"requestId"`
	Entries       int    `json:"entries"`
	ReplayedState State  `json:"replayedState"`
	CurrentState  State  `json:"currentState"`
	Valid         bool   `json:"valid"`
	Problem       string `json:"problem,omitempty"`
}

// Verify checks the hash chain, replays history and compares the outcome with
// the stored status of req.
func Verify(def *Definition, req models.Request, history []models.AuditEntry) Verification {
	v := Verification{
		RequestID:    req.ID,
		Entries:      len(history),
		CurrentState: State(req.Status),
	}
	if err := VerifyChain(history); err != nil {
		v.Problem = err.Error()
		return v
	}
	state, err := Replay(def, history)
	v.ReplayedState = state
	if err != nil {
		v.Problem = err.Error()
		return v
	}
	if state != v.CurrentState {
		v.Problem = fmt.Sprintf("history ends at %q but request is %q", state, v.CurrentState)
		return v
	}
	v.Valid = true
	return v
}
