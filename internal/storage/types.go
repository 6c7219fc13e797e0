package storage

import (
	"fmt"
	"time"

	"github.com/goodtune/punchclock/internal/model"
)

// PendingBreak is a break whose begin/end pair has not been fully delivered.
type PendingBreak struct {
	Key       string          `json:"key"`
	SessionID string          `json:"session_id"`
	Kind      model.BreakKind `json:"kind"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	BeginSent bool            `json:"begin_sent"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}

// BreakKey identifies a break pair. The same session and start always yield the
// same key, which makes redelivery idempotent.
func BreakKey(sessionID string, startedAt time.Time) string {
	return fmt.Sprintf("%s:%d", sessionID, startedAt.UnixMilli())
}
