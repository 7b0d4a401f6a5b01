package actor

import (
	"context"

	"github.com/hedisam/goactor/v2/sysmsg"
)

// NewParentActor turns the calling goroutine into a process, so that main or a test
// can spawn linked processes, monitor and receive. The returned function performs
// the termination and must be deferred right away:
//
//	self, done := sys.NewParentActor()
//	defer done()
//
// On a stopped system the returned actor is already terminated.
func (s *System) NewParentActor() (*Actor, func()) {
	p, ctx, err := s.createProcess(parentProcess)
	if err != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		p = newProcess(s, s.newMailbox(), cancel)
		p.markTerminated(sysmsg.Reason{Kind: sysmsg.NoProc, Detail: err})
		cancel()
		p.mailbox.Dispose()
	}
	a := newActor(p, ctx, nil)
	return a, a.handleTermination
}
