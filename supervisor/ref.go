package supervisor

import (
	"fmt"
	"time"

	"github.com/hedisam/goactor/v2/actor"
)

// Ref is a client handle of a running supervisor. Every method is a synchronous
// request bounded by the system request timeout.
type Ref struct {
	sys *actor.System
	pid *actor.PID
}

// NewRef returns a Ref for the supervisor running as pid, such as a nested
// supervisor listed by WhichChildren
func NewRef(sys *actor.System, pid *actor.PID) *Ref {
	return &Ref{sys: sys, pid: pid}
}

// PID returns the supervisor pid
func (r *Ref) PID() *actor.PID {
	return r.pid
}

func (r *Ref) call(request any) (any, error) {
	return r.sys.Call(r.pid, request, r.sys.RequestTimeout())
}

func errInvalidResponse(resp any) error {
	return fmt.Errorf("supervisor has sent invalid response: %v", resp)
}

// CountChildren counts the children by type and activity
func (r *Ref) CountChildren() (ChildCount, error) {
	result, err := r.call(countChildren{})
	if err != nil {
		return ChildCount{}, err
	}
	count, ok := result.(ChildCount)
	if !ok {
		return ChildCount{}, errInvalidResponse(result)
	}
	return count, nil
}

// WhichChildren lists the children in start order
func (r *Ref) WhichChildren() ([]ChildInfo, error) {
	result, err := r.call(whichChildren{})
	if err != nil {
		return nil, err
	}
	infos, ok := result.([]ChildInfo)
	if !ok {
		return nil, errInvalidResponse(result)
	}
	return infos, nil
}

// Status returns the supervisor status
func (r *Ref) Status() (Status, error) {
	result, err := r.call(statusRequest{})
	if err != nil {
		return 0, err
	}
	status, ok := result.(Status)
	if !ok {
		return 0, errInvalidResponse(result)
	}
	return status, nil
}

// StartChild adds spec after the existing children and starts it
func (r *Ref) StartChild(spec ChildSpec) (*actor.PID, error) {
	result, err := r.call(startChildRequest{spec: spec})
	if err != nil {
		return nil, err
	}
	return pidResult(result)
}

// TerminateChild stops the child but keeps its spec. Terminating a child that is
// not running succeeds.
func (r *Ref) TerminateChild(id string) error {
	_, err := r.call(terminateChild{id: id})
	return err
}

// RestartChild starts a terminated child again
func (r *Ref) RestartChild(id string) (*actor.PID, error) {
	result, err := r.call(restartChild{id: id})
	if err != nil {
		return nil, err
	}
	return pidResult(result)
}

// DeleteChild removes the spec of a terminated child
func (r *Ref) DeleteChild(id string) error {
	_, err := r.call(deleteChild{id: id})
	return err
}

// Stop terminates the children in reverse start order, then the supervisor
func (r *Ref) Stop() error {
	_, err := r.call(stopRequest{})
	return err
}

// StopWithTimeout is Stop with an explicit bound, for trees whose shutdown takes
// longer than the request timeout
func (r *Ref) StopWithTimeout(timeout time.Duration) error {
	_, err := r.sys.Call(r.pid, stopRequest{}, timeout)
	return err
}

func pidResult(result any) (*actor.PID, error) {
	if result == nil {
		return nil, nil
	}
	pid, ok := result.(*actor.PID)
	if !ok {
		return nil, errInvalidResponse(result)
	}
	return pid, nil
}
