package actor

import (
	"errors"
	"fmt"
	"time"

	gerrors "github.com/hedisam/goactor/v2/errors"
	"github.com/hedisam/goactor/v2/sysmsg"
)

// Call sends request to pid from outside any process and waits for the reply.
// A short-lived process without a goroutine receives the reply on the caller's
// behalf. See Actor.Call.
func (s *System) Call(pid *PID, request any, timeout time.Duration) (reply any, err error) {
	p, ctx, err := s.createProcess(futureProcess)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(exitSignal); !ok {
				panic(r)
			}
			// the system was shut down while waiting
			reply, err = nil, gerrors.ErrSystemStopped
		}
		s.terminate(p, sysmsg.NormalReason)
	}()
	return newActor(p, ctx, nil).Call(pid, request, timeout)
}

// Call monitors pid, sends it a CallMsg and selectively receives the matching
// ReplyMsg. Other messages stay in the mailbox. It fails with ErrRequestTimeout when
// no reply arrived in time and with ErrDead when pid terminated first. A reply
// payload that is an error is returned as the error. A non positive timeout uses the
// system default.
func (a *Actor) Call(pid *PID, request any, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = a.sys.requestTimeout
	}
	if pid == nil {
		return nil, gerrors.ErrDead
	}

	ref, ok := a.sys.links.monitor(a.proc, pid.proc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", gerrors.ErrDead, pid)
	}
	pid.proc.deliver(a.proc.pid, CallMsg{From: a.proc.pid, Ref: ref, Request: request})

	msg, err := a.Receive(timeout, matchReply(ref), MatchDown(ref))
	if err != nil {
		a.Demonitor(ref)
		if errors.Is(err, gerrors.ErrTimeout) {
			return nil, fmt.Errorf("%w: call to %s after %s", gerrors.ErrRequestTimeout, pid, timeout)
		}
		return nil, err
	}

	switch payload := msg.Payload.(type) {
	case ReplyMsg:
		a.Demonitor(ref)
		if err, ok := payload.Payload.(error); ok {
			return nil, err
		}
		return payload.Payload, nil
	case DownMsg:
		return nil, fmt.Errorf("%w: %s exited with %s", gerrors.ErrDead, pid, payload.Reason)
	default:
		return nil, fmt.Errorf("unexpected reply %T", payload)
	}
}

// Reply answers a CallMsg received by a
func Reply(a *Actor, call CallMsg, payload any) {
	a.Send(call.From, ReplyMsg{Ref: call.Ref, Payload: payload})
}
