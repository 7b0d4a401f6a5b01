package sysmsg

import "fmt"

// ReasonKind classifies why a process terminated
type ReasonKind int32

const (
	// Normal is an intentional completion, not a failure
	Normal ReasonKind = iota
	// Shutdown is an orderly stop requested by a supervisor or a parent
	Shutdown
	// Killed is an externally forced, untrappable termination
	Killed
	// Crashed is an unhandled fault in the process body
	Crashed
	// NoProc is reported when a link or monitor target was already dead
	NoProc
)

func (k ReasonKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Shutdown:
		return "shutdown"
	case Killed:
		return "killed"
	case Crashed:
		return "crashed"
	case NoProc:
		return "noproc"
	default:
		return "unknown"
	}
}

// Reason describes a process termination
type Reason struct {
	Kind ReasonKind
	// Detail is set for crashes (usually an error) and optional for the other kinds
	Detail any
}

var (
	NormalReason   = Reason{Kind: Normal}
	ShutdownReason = Reason{Kind: Shutdown}
	KillReason     = Reason{Kind: Killed}
	NoProcReason   = Reason{Kind: NoProc}
)

// Crash returns a Crashed reason with the given detail
func Crash(detail any) Reason {
	return Reason{Kind: Crashed, Detail: detail}
}

// IsNormal reports whether the reason is Normal. Only a Normal exit does not cascade
// through links.
func (r Reason) IsNormal() bool {
	return r.Kind == Normal
}

// Abnormal reports whether a transient child terminating with this reason should be
// restarted
func (r Reason) Abnormal() bool {
	return r.Kind != Normal && r.Kind != Shutdown
}

// Err returns the crash detail as an error, if it is one
func (r Reason) Err() error {
	err, _ := r.Detail.(error)
	return err
}

func (r Reason) String() string {
	if r.Detail == nil {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s: %v", r.Kind, r.Detail)
}
