package actor

import (
	"errors"
	"time"

	gerrors "github.com/hedisam/goactor/v2/errors"
	"github.com/hedisam/goactor/v2/internal/mailbox"
	"github.com/hedisam/goactor/v2/sysmsg"
)

// Matcher selects the messages a receive accepts
type Matcher func(msg Message) bool

// MatchAny accepts every message
func MatchAny(Message) bool {
	return true
}

// MatchType accepts messages whose payload is a T
func MatchType[T any]() Matcher {
	return func(msg Message) bool {
		_, ok := msg.Payload.(T)
		return ok
	}
}

// MatchFrom accepts messages sent by pid
func MatchFrom(pid *PID) Matcher {
	return func(msg Message) bool {
		return msg.From == pid
	}
}

// MatchDown accepts the DownMsg of the given monitor
func MatchDown(ref MonitorRef) Matcher {
	return Matcher(matchDown(ref))
}

// MatchExit accepts an ExitMsg coming from pid
func MatchExit(pid *PID) Matcher {
	return func(msg Message) bool {
		exit, ok := msg.Payload.(ExitMsg)
		return ok && exit.From == pid
	}
}

func matchDown(ref MonitorRef) mailbox.Matcher[Message] {
	return func(msg Message) bool {
		down, ok := msg.Payload.(DownMsg)
		return ok && down.Ref == ref
	}
}

func matchReply(ref MonitorRef) Matcher {
	return func(msg Message) bool {
		reply, ok := msg.Payload.(ReplyMsg)
		return ok && reply.Ref == ref
	}
}

// Receive returns the oldest message accepted by one of the matchers, or the oldest
// message when none is given. Messages it skips stay in the mailbox in order.
// A zero timeout does not block and Infinity waits forever; ErrTimeout is returned
// when nothing matched in time.
func (a *Actor) Receive(timeout time.Duration, matchers ...Matcher) (Message, error) {
	ms := make([]mailbox.Matcher[Message], len(matchers))
	for i, m := range matchers {
		ms[i] = mailbox.Matcher[Message](m)
	}

	a.proc.state.CompareAndSwap(int32(Runnable), int32(Waiting))
	msg, err := a.proc.mailbox.Receive(timeout, ms...)
	a.proc.state.CompareAndSwap(int32(Waiting), int32(Runnable))

	switch {
	case err == nil:
		return msg, nil
	case errors.Is(err, mailbox.ErrDisposed):
		// terminated from the outside, unwind the body
		panic(exitSignal{reason: a.proc.exitReason()})
	case errors.Is(err, mailbox.ErrTimeout):
		return Message{}, gerrors.ErrTimeout
	default:
		return Message{}, err
	}
}

// Recv passes message payloads to handler until it returns false
func (a *Actor) Recv(handler func(message any) (loop bool)) {
	for {
		msg, err := a.Receive(Infinity)
		if err != nil {
			return
		}
		if !handler(msg.Payload) {
			return
		}
	}
}

// RecvWithTimeout is Recv with an idle timeout. The handler gets a sysmsg.Timeout
// when no message arrived within d. A non positive d waits forever.
func (a *Actor) RecvWithTimeout(d time.Duration, handler func(message any) (loop bool)) {
	if d <= 0 {
		a.Recv(handler)
		return
	}
	for {
		var payload any
		msg, err := a.Receive(d)
		switch {
		case errors.Is(err, gerrors.ErrTimeout):
			payload = sysmsg.Timeout{Duration: d}
		case err != nil:
			return
		default:
			payload = msg.Payload
		}
		if !handler(payload) {
			return
		}
	}
}
