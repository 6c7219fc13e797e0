package stats

import "fmt"

// SyncPollError reports one failed poll. The previous values are kept.
type SyncPollError struct {
	Endpoint string
	Err      error
}

func (e *SyncPollError) Error() string {
	return fmt.Sprintf("%s poll failed: %v", e.Endpoint, e.Err)
}

func (e *SyncPollError) Unwrap() error {
	return e.Err
}
