package actor

import (
	"context"
	"fmt"

	gerrors "github.com/hedisam/goactor/v2/errors"
	"github.com/hedisam/goactor/v2/sysmsg"
)

// exitSignal unwinds a process body. It is raised by Exit and by a receive on a
// process that was terminated from the outside.
type exitSignal struct {
	reason sysmsg.Reason
}

// Actor is the view of a process handed to its body. Its methods must only be
// called from the goroutine running the body.
type Actor struct {
	proc *process
	sys  *System
	ctx  context.Context
	args []any
	dict map[any]any
}

func newActor(p *process, ctx context.Context, args []any) *Actor {
	return &Actor{
		proc: p,
		sys:  p.sys,
		ctx:  ctx,
		args: args,
	}
}

// Self returns the pid of the process
func (a *Actor) Self() *PID {
	return a.proc.pid
}

// Args returns the spawn arguments
func (a *Actor) Args() []any {
	return a.args
}

// System returns the system the process belongs to
func (a *Actor) System() *System {
	return a.sys
}

// Context is cancelled when the process terminates
func (a *Actor) Context() context.Context {
	return a.ctx
}

// Done is closed when the process terminates. Long computations should watch it.
func (a *Actor) Done() <-chan struct{} {
	return a.ctx.Done()
}

// Send delivers msg to pid. Sends to dead processes, and sends from a process that
// was already terminated, are dropped. msg is copied as a Go value; pointers inside
// it still share their target.
func (a *Actor) Send(pid *PID, msg any) {
	if pid == nil || !a.proc.alive() {
		return
	}
	pid.proc.deliver(a.proc.pid, msg)
}

// SendNamed sends msg to the process registered under name
func (a *Actor) SendNamed(name string, msg any) error {
	pid := a.sys.WhereIs(name)
	if pid == nil {
		return fmt.Errorf("%w: %s", gerrors.ErrNameNotFound, name)
	}
	a.Send(pid, msg)
	return nil
}

// Register registers the process under name
func (a *Actor) Register(name string) error {
	return a.sys.Register(name, a.proc.pid)
}

// Spawn starts an unlinked process
func (a *Actor) Spawn(fn Func, args ...any) (*PID, error) {
	return a.sys.Spawn(fn, args...)
}

// SpawnLink starts a process linked to the caller. The link exists before the new
// body runs.
func (a *Actor) SpawnLink(fn Func, args ...any) (*PID, error) {
	p, ctx, err := a.sys.createProcess(spawnedProcess)
	if err != nil {
		return nil, err
	}
	if !a.sys.links.link(a.proc, p) {
		a.sys.abort(p)
		return nil, fmt.Errorf("%w: %s", gerrors.ErrDead, a.proc.pid)
	}
	a.sys.start(ctx, p, fn, copyArgs(args))
	return p.pid, nil
}

// SpawnMonitor starts a process monitored by the caller
func (a *Actor) SpawnMonitor(fn Func, args ...any) (*PID, MonitorRef, error) {
	p, ctx, err := a.sys.createProcess(spawnedProcess)
	if err != nil {
		return nil, MonitorRef{}, err
	}
	ref, ok := a.sys.links.monitor(a.proc, p)
	if !ok {
		a.sys.abort(p)
		return nil, MonitorRef{}, fmt.Errorf("%w: %s", gerrors.ErrDead, a.proc.pid)
	}
	a.sys.start(ctx, p, fn, copyArgs(args))
	return p.pid, ref, nil
}

// Link links the caller with pid. Linking twice is a no-op.
func (a *Actor) Link(pid *PID) error {
	if pid == nil || !a.sys.links.link(a.proc, pid.proc) {
		return fmt.Errorf("%w: %s", gerrors.ErrDead, pid)
	}
	return nil
}

// Unlink removes the link with pid, if any
func (a *Actor) Unlink(pid *PID) {
	if pid == nil {
		return
	}
	a.sys.links.unlink(a.proc, pid.proc)
}

// Monitor starts watching pid. When pid terminates, or is already dead, the caller
// receives a DownMsg carrying the returned ref.
func (a *Actor) Monitor(pid *PID) MonitorRef {
	if pid == nil {
		ref := newRef()
		a.proc.deliver(nil, DownMsg{Ref: ref, Reason: sysmsg.NoProcReason})
		return ref
	}
	ref, ok := a.sys.links.monitor(a.proc, pid.proc)
	if !ok {
		a.proc.deliver(pid, DownMsg{Ref: ref, Who: pid, Reason: sysmsg.NoProcReason})
	}
	return ref
}

// Demonitor removes a monitor installed by the caller. A DownMsg already in the
// mailbox for ref is discarded.
func (a *Actor) Demonitor(ref MonitorRef) bool {
	removed := a.sys.links.demonitor(a.proc, ref)
	_, _ = a.proc.mailbox.Receive(0, matchDown(ref))
	return removed
}

// TrapExit turns exit signals from links into ExitMsg messages. A direct Killed
// exit is never trapped.
func (a *Actor) TrapExit(trap bool) {
	a.proc.trapExit.Store(trap)
}

// TrapsExit reports whether the process traps exits
func (a *Actor) TrapsExit() bool {
	return a.proc.trapExit.Load()
}

// Exit terminates the calling process with reason. It does not return.
func (a *Actor) Exit(reason sysmsg.Reason) {
	panic(exitSignal{reason: reason})
}

// SendExit sends an exit signal to pid, see System.Exit
func (a *Actor) SendExit(pid *PID, reason sysmsg.Reason) {
	a.sys.exit(a.proc.pid, pid, reason)
	if pid == a.proc.pid && !a.proc.alive() {
		panic(exitSignal{reason: a.proc.exitReason()})
	}
}

// Put stores value in the process dictionary and returns the previous value
func (a *Actor) Put(key, value any) any {
	if a.dict == nil {
		a.dict = make(map[any]any)
	}
	old := a.dict[key]
	a.dict[key] = value
	return old
}

// Get returns the value stored under key, or nil
func (a *Actor) Get(key any) any {
	return a.dict[key]
}

// Erase removes key and returns its value
func (a *Actor) Erase(key any) any {
	old, ok := a.dict[key]
	if ok {
		delete(a.dict, key)
	}
	return old
}

// Keys returns the dictionary keys in no particular order
func (a *Actor) Keys() []any {
	keys := make([]any, 0, len(a.dict))
	for key := range a.dict {
		keys = append(keys, key)
	}
	return keys
}

func (a *Actor) handleTermination() {
	a.sys.terminate(a.proc, exitReason(recover()))
}

func exitReason(recovered any) sysmsg.Reason {
	switch r := recovered.(type) {
	case nil:
		return sysmsg.NormalReason
	case exitSignal:
		return r.reason
	default:
		return sysmsg.Crash(gerrors.NewPanicError(r))
	}
}
