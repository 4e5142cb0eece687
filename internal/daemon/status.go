package daemon

// Status is the control-plane run status. It is owned by the engine and
// mutated only through setStatus; the dispatcher reports submit failures
// back through its failure callback rather than writing status itself.
type Status int

const (
	StatusRunning Status = iota
	StatusStopping
	StatusReloading
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusStopping:
		return "STOPPING"
	case StatusReloading:
		return "RELOADING"
	default:
		return "UNKNOWN"
	}
}
