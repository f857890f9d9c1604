package models

import "time"

// AuditEntry is an immutable record of one applied transition.
type AuditEntry struct {
	ID            string    `db:"id" json:"id"`
	RequestID     string    `db:"request_uuid" json:"requestId"`
	Variant       string    `db:"variant" json:"variant"`
	Seq           int       `db:"seq" json:"seq"`
	Event         string    `db:"event" json:"event"`
	FromStatus    string    `db:"from_status" json:"fromStatus"`
	ToStatus      string    `db:"to_status" json:"toStatus"`
	ActorID       string    `db:"actor_id" json:"actorId"`
	ActorRole     UserRole  `db:"actor_role" json:"actorRole"`
	Justification *string   `db:"justification" json:"justification,omitempty"`
	Answer        *bool     `db:"answer" json:"answer,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	PrevHash      string    `db:"prev_hash" json:"prevHash"`
	Hash          string    `db:"hash" json:"hash"`
}
