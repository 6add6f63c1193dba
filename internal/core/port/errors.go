package port

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a referenced local entity is missing. On the
// queue path this is non-fatal: the message is logged and dropped, since the
// entity was likely deleted between enqueue and processing.
var ErrNotFound = errors.New("not found")

// ErrReportFailed is terminal for a report id: the poll timeout elapsed
// while the report was still pending. The caller regenerates with a fresh
// id and window, never re-polls the stale id.
var ErrReportFailed = errors.New("report failed")

// RemoteError is any non-success response from the remote platform. It is
// always reported to telemetry and then propagated; the sync path relies on
// queue redelivery for retry.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote platform: status %d: %s", e.StatusCode, e.Body)
}

// NotFound reports whether the remote object does not exist.
func (e *RemoteError) NotFound() bool { return e.StatusCode == 404 }

// IsRemoteNotFound reports whether err is a remote 404.
func IsRemoteNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.NotFound()
}
