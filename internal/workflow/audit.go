package workflow

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/noah-isme/sigpae-api/internal/models"
)

// AuditLog is the append-only store of applied transitions.
type AuditLog interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	History(ctx context.Context, requestID string) ([]models.AuditEntry, error)
	// LastEntry returns nil and no error when the request has no history.
	LastEntry(ctx context.Context, requestID string) (*models.AuditEntry, error)
}

const fieldSep = "\x1f"

// auditTimeLayout matches the microsecond precision of the created_at column.
const auditTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// AuditTime normalises t to the precision and zone the audit store keeps.
func AuditTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// EntryHash computes the SHA3-256 digest of entry chained onto prevHash.
func EntryHash(prevHash string, entry models.AuditEntry) string {
	justification := ""
	if entry.Justification != nil {
		justification = *entry.Justification
	}
	answer := ""
	if entry.Answer != nil {
		answer = strconv.FormatBool(*entry.Answer)
	}
	canonical := strings.Join([]string{
		prevHash,
		entry.ID,
		entry.RequestID,
		entry.Variant,
		strconv.Itoa(entry.Seq),
		entry.Event,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		string(entry.ActorRole),
		justification,
		answer,
		AuditTime(entry.CreatedAt).Format(auditTimeLayout),
	}, fieldSep)
	sum := sha3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Seal assigns the sequence number and hashes of entry following prev, which
// may be nil for the first entry of a request.
func Seal(entry *models.AuditEntry, prev *models.AuditEntry) {
	entry.Seq = 1
	entry.PrevHash = ""
	if prev != nil {
		entry.Seq = prev.Seq + 1
		entry.PrevHash = prev.Hash
	}
	entry.Hash = EntryHash(entry.PrevHash, *entry)
}
