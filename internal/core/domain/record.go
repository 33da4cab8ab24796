package domain

import "time"

// RetryLogRecord is the persisted state of one retry chain. One record per
// chain: created on the first notification without a record id, updated in
// place on every subsequent notification carrying the same id.
//
// RetryDueAt and RetryCount are monotonically non-decreasing across updates.
type RetryLogRecord struct {
	ID          string
	ProcessName string
	MethodName  string

	Status    NotificationStatus
	Processed bool

	RequestPayload  Payload
	ResponsePayload Payload
	ErrorMessage    string

	// RetryEnabled is true only when an active policy resolved for the
	// process/method, the status is Failure and the record is not processed.
	RetryEnabled         bool
	RetryIntervalMinutes int
	MaxRetryLimit        int
	RetryCount           int

	// RetryDueAt is the next scheduled attempt; zero when the chain is not
	// scheduled for retry.
	RetryDueAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the chain needs no further retry consideration.
func (r *RetryLogRecord) Terminal() bool {
	return r.Processed || !r.RetryEnabled
}
