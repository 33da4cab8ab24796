package domain

// NotificationStatus describes the outcome of one attempt of an operation.
type NotificationStatus string

const (
	StatusSuccess NotificationStatus = "success"
	StatusFailure NotificationStatus = "failure"
)

func (s NotificationStatus) String() string {
	return string(s)
}

// Valid reports whether the status is one of the known values.
func (s NotificationStatus) Valid() bool {
	return s == StatusSuccess || s == StatusFailure
}

// FailureNotification is the wire shape of an outcome event emitted by
// business logic or by a retried handler. An empty RecordID starts a new
// retry chain; a populated one updates the existing chain.
//
// The override fields, when set, supersede the resolved policy values for
// this chain's initialization only. They are ignored on existing chains.
type FailureNotification struct {
	RecordID    string             `json:"record_id,omitempty"`
	ProcessName string             `json:"process_name"`
	MethodName  string             `json:"method_name,omitempty"`
	Status      NotificationStatus `json:"status"`
	Processed   bool               `json:"processed"`

	RequestPayload  Payload `json:"request_payload,omitempty"`
	ResponsePayload Payload `json:"response_payload,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`

	RetryIntervalOverride        *int `json:"retry_interval_override,omitempty"`
	MaxRetryLimitOverride        *int `json:"max_retry_limit_override,omitempty"`
	RetryCountOverride           *int `json:"retry_count_override,omitempty"`
	StartFirstRetryAfterOverride *int `json:"start_first_retry_after_override,omitempty"`
}
