package batch

// Status is the processing state of one run directory
type Status int

const (
	StatusPending Status = iota
	StatusWaiting
	StatusProcessing
	StatusCompleted
	StatusError
)

// String returns the status label
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusWaiting:
		return "Waiting"
	case StatusProcessing:
		return "Processing"
	case StatusCompleted:
		return "Completed"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Done reports whether the run reached a final state
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusError
}
