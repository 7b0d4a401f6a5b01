package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/hedisam/goactor/v2/actor"
	gerrors "github.com/hedisam/goactor/v2/errors"
	imetric "github.com/hedisam/goactor/v2/internal/metric"
	"github.com/hedisam/goactor/v2/log"
	"github.com/hedisam/goactor/v2/sysmsg"
)

type child struct {
	spec ChildSpec
	pid  *actor.PID
	ref  actor.MonitorRef
	// pending marks a child waiting to be started by an ongoing restart
	pending bool
}

func (c *child) running() bool {
	return c.pid != nil
}

// state is owned by the supervisor process. Children are kept in start order.
type state struct {
	self      *actor.Actor
	name      string
	options   Options
	parent    *actor.PID
	children  []*child
	status    Status
	intensity *intensity
	logger    log.Logger
	metrics   *imetric.SupervisorMetric

	// metricName labels the restart metric. Unnamed supervisors share one label.
	metricName string
}

func newState(self *actor.Actor, cfg config) *state {
	name := cfg.options.Name
	if name == "" {
		name = self.Self().String()
	}
	s := &state{
		self:       self,
		name:       name,
		metricName: metricName(cfg.options),
		options:    cfg.options,
		parent:     cfg.parent,
		children:   make([]*child, 0, len(cfg.specs)),
		status:     StatusStarting,
		intensity:  newIntensity(cfg.options.MaxRestarts, cfg.options.Period),
		logger:     self.System().Logger(),
	}
	for _, spec := range cfg.specs {
		s.children = append(s.children, &child{spec: spec})
	}
	metrics, err := imetric.NewSupervisorMetric(self.System().Meter())
	if err != nil {
		s.logger.Warnf("supervisor %s: restart metrics disabled: %v", s.name, err)
	}
	s.metrics = metrics
	return s
}

const anonymousSupervisor = "anonymous"

func metricName(options Options) string {
	if options.Name == "" {
		return anonymousSupervisor
	}
	return options.Name
}

func (s *state) find(id string) (int, *child) {
	for i, c := range s.children {
		if c.spec.ID == id {
			return i, c
		}
	}
	return -1, nil
}

func (s *state) findByRef(ref actor.MonitorRef) (int, *child) {
	for i, c := range s.children {
		if c.running() && c.ref == ref {
			return i, c
		}
	}
	return -1, nil
}

// startChild runs the child start func and monitors the new process
func (s *state) startChild(c *child) error {
	pid, err := c.spec.Start(s.self)
	if err != nil {
		return fmt.Errorf("%w %q: %w", gerrors.ErrStartChild, c.spec.ID, err)
	}
	c.pending = false
	if pid == nil {
		return nil
	}
	c.pid = pid
	c.ref = s.self.Monitor(pid)
	return nil
}

// init starts the children in order. On failure the started ones are terminated in
// reverse order.
func (s *state) init() error {
	for i, c := range s.children {
		if err := s.startChild(c); err != nil {
			for j := i - 1; j >= 0; j-- {
				s.shutdownChild(s.children[j])
			}
			return err
		}
	}
	s.status = StatusRunning
	s.logger.Infof("supervisor %s started with %d children (%s)", s.name, len(s.children), s.options.Strategy)
	return nil
}

// shutdownChild stops a running child according to its shutdown setting and waits
// for it to be gone
func (s *state) shutdownChild(c *child) {
	if !c.running() {
		return
	}
	pid, ref := c.pid, c.ref
	c.pid = nil
	s.self.Unlink(pid)

	if c.spec.Shutdown == ShutdownBrutalKill {
		s.self.SendExit(pid, sysmsg.KillReason)
		_, _ = s.self.Receive(actor.Infinity, actor.MatchDown(ref))
		return
	}

	s.self.SendExit(pid, sysmsg.ShutdownReason)
	_, err := s.self.Receive(c.spec.Shutdown, actor.MatchDown(ref))
	if errors.Is(err, gerrors.ErrTimeout) {
		s.logger.Warnf("supervisor %s: child %s did not stop within %s, killing it", s.name, c.spec.ID, c.spec.Shutdown)
		s.self.SendExit(pid, sysmsg.KillReason)
		_, _ = s.self.Receive(actor.Infinity, actor.MatchDown(ref))
	}
}

// shutdownAll stops every running child in reverse start order
func (s *state) shutdownAll() {
	for i := len(s.children) - 1; i >= 0; i-- {
		s.children[i].pending = false
		s.shutdownChild(s.children[i])
	}
}

func shouldRestart(policy Restart, reason sysmsg.Reason) bool {
	switch policy {
	case Permanent:
		return true
	case Transient:
		return reason.Abnormal()
	default:
		return false
	}
}

func (s *state) handleDown(down actor.DownMsg) {
	idx, c := s.findByRef(down.Ref)
	if c == nil {
		return
	}
	c.pid = nil

	if !shouldRestart(c.spec.Restart, down.Reason) {
		s.logger.Debugf("supervisor %s: child %s exited with %s, not restarting", s.name, c.spec.ID, down.Reason)
		return
	}
	s.logger.Infof("supervisor %s: child %s exited with %s, restarting (%s)", s.name, c.spec.ID, down.Reason, s.options.Strategy)

	if s.intensity.record() {
		s.fail()
		return
	}

	s.status = StatusRestarting
	c.pending = true
	switch s.options.Strategy {
	case OneForAllStrategy:
		s.stopGroup(0)
	case RestForOneStrategy:
		s.stopGroup(idx + 1)
	}
	s.startPending()
}

// stopGroup terminates the running children from index from onwards, in reverse
// order, marking the restartable ones pending
func (s *state) stopGroup(from int) {
	for i := len(s.children) - 1; i >= from; i-- {
		c := s.children[i]
		if !c.running() {
			continue
		}
		s.shutdownChild(c)
		c.pending = c.spec.Restart != Temporary
	}
}

// startPending starts the pending children in order. A failure schedules a retry
// and leaves the remaining children pending.
func (s *state) startPending() {
	for _, c := range s.children {
		if !c.pending {
			continue
		}
		if err := s.startChild(c); err != nil {
			s.logger.Errorf("supervisor %s: restart of %s failed: %v", s.name, c.spec.ID, err)
			s.self.Send(s.self.Self(), retryRestart{})
			return
		}
		if s.metrics != nil {
			s.metrics.Restarted(context.Background(), s.metricName, s.options.Strategy.String())
		}
	}
	s.status = StatusRunning
}

func (s *state) handleRetry() {
	pending := false
	for _, c := range s.children {
		pending = pending || c.pending
	}
	if !pending {
		return
	}
	if s.intensity.record() {
		s.fail()
		return
	}
	s.startPending()
}

// fail terminates all children and exits the supervisor. It does not return.
func (s *state) fail() {
	s.status = StatusFailed
	s.logger.Errorf("supervisor %s: more than %d restarts within %s, giving up", s.name, s.options.MaxRestarts, s.options.Period)
	s.shutdownAll()
	s.self.Exit(sysmsg.Crash(gerrors.ErrMaxRestartsReached))
}

// handleCall answers a client request. It returns false when the supervisor should
// stop.
func (s *state) handleCall(call actor.CallMsg) bool {
	reply := func(payload any) {
		actor.Reply(s.self, call, payload)
	}

	switch req := call.Request.(type) {
	case countChildren:
		var count ChildCount
		for _, c := range s.children {
			count.Specs++
			if c.running() {
				count.Active++
			}
			if c.spec.Type == TypeSupervisor {
				count.Supervisors++
			} else {
				count.Workers++
			}
		}
		reply(count)
	case whichChildren:
		infos := make([]ChildInfo, 0, len(s.children))
		for _, c := range s.children {
			infos = append(infos, ChildInfo{ID: c.spec.ID, PID: c.pid, Type: c.spec.Type, Restart: c.spec.Restart})
		}
		reply(infos)
	case statusRequest:
		reply(s.status)
	case startChildRequest:
		if err := req.spec.Validate(); err != nil {
			reply(err)
			return true
		}
		if _, c := s.find(req.spec.ID); c != nil {
			reply(fmt.Errorf("%w: %q", gerrors.ErrChildExists, req.spec.ID))
			return true
		}
		c := &child{spec: req.spec}
		if err := s.startChild(c); err != nil {
			reply(err)
			return true
		}
		s.children = append(s.children, c)
		reply(c.pid)
	case terminateChild:
		_, c := s.find(req.id)
		if c == nil {
			reply(fmt.Errorf("%w: %q", gerrors.ErrChildNotFound, req.id))
			return true
		}
		c.pending = false
		s.shutdownChild(c)
		reply(nil)
	case restartChild:
		_, c := s.find(req.id)
		switch {
		case c == nil:
			reply(fmt.Errorf("%w: %q", gerrors.ErrChildNotFound, req.id))
		case c.running():
			reply(fmt.Errorf("%w: %q", gerrors.ErrChildRunning, req.id))
		default:
			if err := s.startChild(c); err != nil {
				reply(err)
				return true
			}
			reply(c.pid)
		}
	case deleteChild:
		idx, c := s.find(req.id)
		switch {
		case c == nil:
			reply(fmt.Errorf("%w: %q", gerrors.ErrChildNotFound, req.id))
		case c.running():
			reply(fmt.Errorf("%w: %q", gerrors.ErrChildRunning, req.id))
		default:
			s.children = append(s.children[:idx], s.children[idx+1:]...)
			reply(nil)
		}
	case stopRequest:
		s.shutdownAll()
		reply(nil)
		return false
	default:
		reply(fmt.Errorf("unknown supervisor request %T", req))
	}
	return true
}
