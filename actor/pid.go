package actor

import (
	"fmt"

	"github.com/rs/xid"
	"go.uber.org/atomic"

	"github.com/hedisam/goactor/v2/internal/mailbox"
	"github.com/hedisam/goactor/v2/sysmsg"
)

// State is the lifecycle state of a process
type State int32

const (
	Runnable State = iota
	Waiting
	Terminated
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Waiting:
		return "waiting"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// PID is the address of a process. There is exactly one *PID per process and it is
// never reused, so pids can be compared with ==.
type PID struct {
	id   string
	proc *process
}

// ID returns the unique id of the process
func (pid *PID) ID() string {
	return pid.id
}

func (pid *PID) String() string {
	if pid == nil {
		return "<nil>"
	}
	return fmt.Sprintf("<%s>", pid.id)
}

type process struct {
	pid      *PID
	sys      *System
	mailbox  *mailbox.Mailbox[Message]
	state    *atomic.Int32
	trapExit *atomic.Bool
	seq      *atomic.Uint64
	reason   atomic.Pointer[sysmsg.Reason]

	// future processes have no goroutine, they only exist to receive one reply
	future bool

	cancel func()
}

func newProcess(sys *System, mb *mailbox.Mailbox[Message], cancel func()) *process {
	p := &process{
		sys:      sys,
		mailbox:  mb,
		state:    atomic.NewInt32(int32(Runnable)),
		trapExit: atomic.NewBool(false),
		seq:      atomic.NewUint64(0),
		cancel:   cancel,
	}
	p.pid = &PID{id: xid.New().String(), proc: p}
	return p
}

func (p *process) getState() State {
	return State(p.state.Load())
}

func (p *process) alive() bool {
	return p.getState() != Terminated
}

// markTerminated moves the process to Terminated. Only the first call wins.
func (p *process) markTerminated(reason sysmsg.Reason) bool {
	for {
		cur := p.state.Load()
		if State(cur) == Terminated {
			return false
		}
		if p.state.CompareAndSwap(cur, int32(Terminated)) {
			p.reason.Store(&reason)
			return true
		}
	}
}

func (p *process) exitReason() sysmsg.Reason {
	if r := p.reason.Load(); r != nil {
		return *r
	}
	return sysmsg.NormalReason
}

// deliver appends a message to the process mailbox. Messages to terminated
// processes are dropped.
func (p *process) deliver(from *PID, payload any) {
	if !p.alive() {
		return
	}
	msg := Message{
		From:    from,
		Seq:     p.seq.Inc(),
		Payload: payload,
	}
	_ = p.mailbox.Post(msg)
}
