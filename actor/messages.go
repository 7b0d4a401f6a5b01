package actor

import (
	"github.com/google/uuid"

	"github.com/hedisam/goactor/v2/sysmsg"
)

// Message is what a process receives. From is nil when the sender is not a process.
type Message struct {
	From *PID
	// Seq is the arrival number at the receiving process
	Seq     uint64
	Payload any
}

// MonitorRef identifies a monitor. Call uses one as the request reference too.
type MonitorRef uuid.UUID

func newRef() MonitorRef {
	return MonitorRef(uuid.New())
}

func (r MonitorRef) String() string {
	return uuid.UUID(r).String()
}

// ExitMsg is delivered to a process that traps exits when a linked process
// terminates, or when another process sends it an exit signal
type ExitMsg struct {
	From   *PID
	Reason sysmsg.Reason
}

// DownMsg is delivered to a watcher when the monitored process terminates
type DownMsg struct {
	Ref    MonitorRef
	Who    *PID
	Reason sysmsg.Reason
}

// CallMsg is a synchronous request. Answer it with Reply.
type CallMsg struct {
	From    *PID
	Ref     MonitorRef
	Request any
}

// ReplyMsg answers the CallMsg with the same Ref
type ReplyMsg struct {
	Ref     MonitorRef
	Payload any
}
