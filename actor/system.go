package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	gerrors "github.com/hedisam/goactor/v2/errors"
	"github.com/hedisam/goactor/v2/internal/mailbox"
	imetric "github.com/hedisam/goactor/v2/internal/metric"
	"github.com/hedisam/goactor/v2/log"
	"github.com/hedisam/goactor/v2/sysmsg"
)

// Func is the body of a process. The process terminates with a Normal reason
// when it returns.
type Func func(a *Actor)

// TerminationObserver is called once for every terminated process, after its links
// and monitors were notified
type TerminationObserver func(pid *PID, reason sysmsg.Reason)

// System is the process table and scheduler. It owns the link and monitor
// registry and the name registry of its processes.
type System struct {
	name           string
	logger         log.Logger
	mailboxKind    MailboxKind
	requestTimeout time.Duration
	meterProvider  metric.MeterProvider
	metrics        *imetric.ProcessMetric

	mu    sync.RWMutex
	procs map[string]*process

	links *linkRegistry
	names *nameRegistry

	observersMu sync.RWMutex
	observers   []TerminationObserver

	wg      sync.WaitGroup
	stopped *atomic.Bool
}

// NewSystem creates a System
func NewSystem(opts ...Option) *System {
	sys := &System{
		name:           "goactor",
		logger:         log.DefaultLogger,
		mailboxKind:    BlockingMailbox,
		requestTimeout: DefaultRequestTimeout,
		procs:          make(map[string]*process),
		links:          newLinkRegistry(),
		names:          newNameRegistry(),
		stopped:        atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(sys)
	}
	if sys.meterProvider == nil {
		sys.meterProvider = otel.GetMeterProvider()
	}

	metrics, err := imetric.NewProcessMetric(sys.Meter(), func() int64 {
		return int64(sys.count())
	})
	if err != nil {
		sys.logger.Warnf("%s: process metrics disabled: %v", sys.name, err)
	}
	sys.metrics = metrics
	return sys
}

// Name returns the system name
func (s *System) Name() string {
	return s.name
}

// Logger returns the system logger
func (s *System) Logger() log.Logger {
	return s.logger
}

// Meter returns a meter of the configured provider
func (s *System) Meter() metric.Meter {
	return s.meterProvider.Meter(imetric.InstrumentationName)
}

// RequestTimeout returns the default Call timeout
func (s *System) RequestTimeout() time.Duration {
	return s.requestTimeout
}

// AddTerminationObserver registers fn to be called for every terminated process
func (s *System) AddTerminationObserver(fn TerminationObserver) {
	s.observersMu.Lock()
	s.observers = append(s.observers, fn)
	s.observersMu.Unlock()
}

func (s *System) newMailbox() *mailbox.Mailbox[Message] {
	switch s.mailboxKind {
	case MPSCMailbox:
		return mailbox.New[Message](mailbox.NewMPSCQueue())
	default:
		return mailbox.New[Message](mailbox.NewBlockingQueue())
	}
}

type processKind int

const (
	// spawned processes run their body in a goroutine tracked by the system
	spawnedProcess processKind = iota
	// parent processes are driven by a caller goroutine
	parentProcess
	// future processes only hold a mailbox for System.Call
	futureProcess
)

// createProcess adds a new process to the table without starting it. For a spawned
// process the goroutine is accounted for in the same critical section, so Shutdown
// either sees the process or the spawn fails.
func (s *System) createProcess(kind processKind) (*process, context.Context, error) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newProcess(s, s.newMailbox(), cancel)
	p.future = kind == futureProcess

	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		cancel()
		p.mailbox.Dispose()
		return nil, nil, gerrors.ErrSystemStopped
	}
	s.procs[p.pid.id] = p
	if kind == spawnedProcess {
		s.wg.Add(1)
	}
	s.mu.Unlock()
	return p, ctx, nil
}

// start runs fn in its own goroutine. p must come from createProcess(spawnedProcess).
func (s *System) start(ctx context.Context, p *process, fn Func, args []any) {
	a := newActor(p, ctx, args)
	if s.metrics != nil {
		s.metrics.Spawned(ctx)
	}
	go func() {
		defer s.wg.Done()
		defer a.handleTermination()
		fn(a)
	}()
}

// abort terminates a spawned process whose body never started
func (s *System) abort(p *process) {
	s.terminate(p, sysmsg.NoProcReason)
	s.wg.Done()
}

// Spawn starts a new unlinked process running fn
func (s *System) Spawn(fn Func, args ...any) (*PID, error) {
	p, ctx, err := s.createProcess(spawnedProcess)
	if err != nil {
		return nil, err
	}
	s.start(ctx, p, fn, copyArgs(args))
	return p.pid, nil
}

func copyArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	return append(make([]any, 0, len(args)), args...)
}

// Send delivers msg to pid from outside any process. Sending to a dead pid is a
// silent no-op.
func (s *System) Send(pid *PID, msg any) {
	if pid == nil {
		return
	}
	pid.proc.deliver(nil, msg)
}

// SendNamed sends msg to the process registered under name
func (s *System) SendNamed(name string, msg any) error {
	pid := s.WhereIs(name)
	if pid == nil {
		return fmt.Errorf("%w: %s", gerrors.ErrNameNotFound, name)
	}
	s.Send(pid, msg)
	return nil
}

// IsAlive reports whether the process has not terminated
func (s *System) IsAlive(pid *PID) bool {
	return pid != nil && pid.proc.alive()
}

// Exit sends an exit signal to pid from outside any process.
// Killed terminates the target unconditionally. A target trapping exits receives an
// ExitMsg instead. Normal is ignored by a target not trapping exits and any other
// reason terminates it.
func (s *System) Exit(pid *PID, reason sysmsg.Reason) {
	s.exit(nil, pid, reason)
}

func (s *System) exit(from, to *PID, reason sysmsg.Reason) {
	if to == nil {
		return
	}
	p := to.proc
	switch {
	case !p.alive():
	case reason.Kind == sysmsg.Killed:
		s.terminate(p, sysmsg.KillReason)
	case p.trapExit.Load():
		p.deliver(from, ExitMsg{From: from, Reason: reason})
	case reason.IsNormal():
	default:
		s.terminate(p, reason)
	}
}

type pendingExit struct {
	proc   *process
	reason sysmsg.Reason
}

// terminate moves p to Terminated and propagates the exit to its links and monitors.
// Peers brought down by the exit are handled on the same worklist.
func (s *System) terminate(p *process, reason sysmsg.Reason) {
	worklist := []pendingExit{{proc: p, reason: reason}}
	for len(worklist) > 0 {
		next := worklist[0]
		worklist = worklist[1:]

		peers, downs, ok := s.links.release(next.proc, next.reason)
		if !ok {
			continue
		}
		dying := next.proc
		// free the name first so a restarted process can take it over
		s.names.removePID(dying.pid)
		// wake the body if it is blocked in receive
		dying.cancel()
		dying.mailbox.Dispose()

		for _, peer := range peers {
			switch {
			case peer.trapExit.Load():
				peer.deliver(dying.pid, ExitMsg{From: dying.pid, Reason: next.reason})
			case !next.reason.IsNormal():
				worklist = append(worklist, pendingExit{proc: peer, reason: next.reason})
			}
		}
		for _, d := range downs {
			d.watcher.deliver(dying.pid, DownMsg{Ref: d.ref, Who: dying.pid, Reason: next.reason})
		}

		s.finalize(dying, next.reason)
	}
}

func (s *System) finalize(p *process, reason sysmsg.Reason) {
	s.observersMu.RLock()
	observers := append([]TerminationObserver(nil), s.observers...)
	s.observersMu.RUnlock()
	for _, observe := range observers {
		observe(p.pid, reason)
	}

	s.mu.Lock()
	delete(s.procs, p.pid.id)
	s.mu.Unlock()

	if !p.future {
		if s.metrics != nil {
			s.metrics.Terminated(context.Background(), reason.Kind.String())
		}
		switch reason.Kind {
		case sysmsg.Crashed:
			s.logger.Errorf("%s: process %s crashed: %v", s.name, p.pid, reason.Detail)
		case sysmsg.Killed:
			s.logger.Debugf("%s: process %s killed", s.name, p.pid)
		default:
			s.logger.Debugf("%s: process %s terminated: %s", s.name, p.pid, reason)
		}
	}
}

func (s *System) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.procs)
}

// Shutdown kills every live process and waits for their goroutines to return.
// New spawns fail with ErrSystemStopped afterwards.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped.Store(true)
	procs := make([]*process, 0, len(s.procs))
	for _, p := range s.procs {
		procs = append(procs, p)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		if err := s.metrics.Unregister(); err != nil {
			s.logger.Warnf("%s: failed to unregister process metrics: %v", s.name, err)
		}
	}

	for _, p := range procs {
		s.terminate(p, sysmsg.KillReason)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infof("%s: shut down", s.name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: shutdown: %w", s.name, ctx.Err())
	}
}
