package webhooks

// Status represents the processing state of a captured webhook
type Status string

const (
	StatusReceived         Status = "received"
	StatusProcessing       Status = "processing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusOperatorRequired Status = "operator_required"
)

// Statuses lists every valid status value
var Statuses = []Status{
	StatusReceived,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusOperatorRequired,
}

// Valid reports whether s is one of the enumerated statuses
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusProcessing, StatusCompleted, StatusFailed, StatusOperatorRequired:
		return true
	}
	return false
}

// Ptr returns a pointer to s, for use as an expected status in conditional updates
func (s Status) Ptr() *Status {
	return &s
}

// Stage is the outcome a pipeline stage assigns to an item
type Stage string

const (
	StageContinue         Stage = "continue"
	StageDuplicate        Stage = "duplicate"
	StageOperatorRequired Stage = "operator_required"
	StageFailed           Stage = "failed"
	StageCompleted        Stage = "completed"
)

// Terminal reports whether later stages must pass the item through untouched
func (s Stage) Terminal() bool {
	return s != StageContinue
}

// Classify decides whether a webhook in the given status may be processed
//
//	processing, completed -> duplicate (in flight or done)
//	operator_required     -> operator required
//	received, failed      -> continue
func Classify(status Status) Stage {
	switch status {
	case StatusProcessing, StatusCompleted:
		return StageDuplicate
	case StatusOperatorRequired:
		return StageOperatorRequired
	default:
		return StageContinue
	}
}

// NextOnFailure is the status written after a failed attempt. Escalation to
// operator_required is decided by the retry policy, never here.
func NextOnFailure(Status) Status {
	return StatusFailed
}

// NextOnSuccess is the status written after a successful attempt
func NextOnSuccess(Status) Status {
	return StatusCompleted
}

// ProcessingFrom returns the expected status for a processing claim made from
// current, and whether the claim counts as a retry.
func ProcessingFrom(current Status) (from Status, incrementRetries bool, ok bool) {
	switch current {
	case StatusReceived:
		return StatusReceived, false, true
	case StatusFailed:
		return StatusFailed, true, true
	default:
		return "", false, false
	}
}

// CanTransition reports whether from -> to is a legal status transition.
// operator_required -> received is the manual release path.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == StatusOperatorRequired {
		return true
	}
	switch from {
	case StatusReceived, StatusFailed:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusOperatorRequired:
		return to == StatusReceived
	}
	return false
}

// ShouldEscalate reports whether a failed webhook has used up its attempts.
// retries counts re-attempts only, so the attempt count is retries+1.
func ShouldEscalate(retries, maxAttempts int) bool {
	return retries+1 >= maxAttempts
}
