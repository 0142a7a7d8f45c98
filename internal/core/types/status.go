package types

// Status represents the status of any trackable operation (tasks, extractions, covers)
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// IsActive returns true if the status indicates an ongoing operation
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// IsComplete returns true if the status indicates a finished operation
func (s Status) IsComplete() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Result maps a finished status onto the outcome reported to listeners.
// Active statuses have no result and map to ResultError.
func (s Status) Result() Result {
	switch s {
	case StatusSucceeded:
		return ResultSuccess
	case StatusCanceled:
		return ResultCancelled
	default:
		return ResultError
	}
}

// Result is the outcome delivered with a finished notification.
type Result string

const (
	ResultSuccess   Result = "success"
	ResultError     Result = "error"
	ResultCancelled Result = "cancelled"
)

func (r Result) String() string {
	return string(r)
}
