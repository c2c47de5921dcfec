package metrics

import "time"

// TransferMetrics records what the daemon receives.
//
// Implementations must be safe for concurrent use.
type TransferMetrics interface {
	// RecordSession observes a finished session. err is nil on success.
	RecordSession(duration time.Duration, files int, err error)

	// RecordFileReceived counts a file written to storage.
	RecordFileReceived(bytes uint64)

	// RecordFileFailed counts an announced file that was not stored.
	RecordFileFailed()

	RecordConnectionAccepted()

	// RecordConnectionThrottled counts accepts delayed by the rate limiter.
	RecordConnectionThrottled()

	SetActiveConnections(count int32)
}

type noopTransferMetrics struct{}

// NewNoopTransferMetrics returns a TransferMetrics that does nothing.
func NewNoopTransferMetrics() TransferMetrics {
	return noopTransferMetrics{}
}

func (noopTransferMetrics) RecordSession(time.Duration, int, error) {}
func (noopTransferMetrics) RecordFileReceived(uint64)               {}
func (noopTransferMetrics) RecordFileFailed()                       {}
func (noopTransferMetrics) RecordConnectionAccepted()               {}
func (noopTransferMetrics) RecordConnectionThrottled()              {}
func (noopTransferMetrics) SetActiveConnections(int32)              {}
