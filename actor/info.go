package actor

import (
	"fmt"

	gerrors "github.com/hedisam/goactor/v2/errors"
)

// Info is a point in time snapshot of a process
type Info struct {
	ID         string
	Name       string
	State      State
	MailboxLen int
	TrapExit   bool
	Links      []*PID
	// Monitors lists the processes this process watches
	Monitors    []*PID
	MonitoredBy []*PID
}

// Info returns a snapshot of the process. It fails with ErrDead once the process
// terminated.
func (s *System) Info(pid *PID) (Info, error) {
	if !s.IsAlive(pid) {
		return Info{}, fmt.Errorf("%w: %s", gerrors.ErrDead, pid)
	}
	p := pid.proc
	rel := s.links.snapshot(p)
	return Info{
		ID:          pid.id,
		Name:        s.names.nameOf(pid),
		State:       p.getState(),
		MailboxLen:  p.mailbox.Len(),
		TrapExit:    p.trapExit.Load(),
		Links:       rel.links,
		Monitors:    rel.monitors,
		MonitoredBy: rel.monitoredBy,
	}, nil
}
