package supervisor

import "github.com/hedisam/goactor/v2/actor"

// Status is the lifecycle status of a supervisor
type Status int32

const (
	StatusStarting Status = iota
	StatusRunning
	StatusRestarting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusRestarting:
		return "restarting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChildCount is the answer to CountChildren
type ChildCount struct {
	// Specs is the number of children, running or not
	Specs int
	// Active is the number of running children
	Active int
	// Supervisors is the number of children of type supervisor, running or not
	Supervisors int
	// Workers is the number of children of type worker, running or not
	Workers int
}

// ChildInfo describes one child. PID is nil when the child is not running.
type ChildInfo struct {
	ID      string
	PID     *actor.PID
	Type    ChildType
	Restart Restart
}

type (
	initRequest       struct{}
	countChildren     struct{}
	whichChildren     struct{}
	statusRequest     struct{}
	startChildRequest struct{ spec ChildSpec }
	terminateChild    struct{ id string }
	restartChild      struct{ id string }
	deleteChild       struct{ id string }
	stopRequest       struct{}
	// retryRestart is sent by the supervisor to itself when a child failed to start
	// during a restart
	retryRestart struct{}
)
