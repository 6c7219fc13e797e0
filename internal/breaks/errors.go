package breaks

import (
	"errors"
	"fmt"

	"github.com/goodtune/punchclock/internal/model"
)

// ErrInvalidDuration is returned for a custom break without a positive duration.
var ErrInvalidDuration = errors.New("breaks: duration must be positive")

// ErrUnknownKind is returned for a break kind outside model.BreakKinds.
var ErrUnknownKind = errors.New("breaks: unknown break kind")

// Delivery stages of a break pair.
const (
	StageBegin = "begin"
	StageEnd   = "end"
)

// BreakScheduleError reports a failed break call. When Stage is StageEnd the
// begin call was acknowledged and the end call remains queued for retry.
type BreakScheduleError struct {
	SessionID string
	Kind      model.BreakKind
	Stage     string
	Err       error
}

func (e *BreakScheduleError) Error() string {
	return fmt.Sprintf("break %s %s for session %s failed: %v", e.Kind, e.Stage, e.SessionID, e.Err)
}

func (e *BreakScheduleError) Unwrap() error {
	return e.Err
}

// Queued reports whether the pair is still pending delivery.
func (e *BreakScheduleError) Queued() bool {
	return e.Stage == StageEnd
}
