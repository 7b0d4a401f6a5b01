// Package supervisor implements supervisors: processes that start, watch and
// restart a list of children according to a strategy and a restart intensity.
package supervisor

import (
	"fmt"
	"time"

	"github.com/hedisam/goactor/v2/actor"
	"github.com/hedisam/goactor/v2/sysmsg"
)

type config struct {
	options Options
	specs   []ChildSpec
	parent  *actor.PID
}

// Start starts a root supervisor, not linked to any process, and returns once all
// children are started. If a child fails to start, the started ones are terminated
// and the error is returned.
func Start(sys *actor.System, options Options, specs ...ChildSpec) (*Ref, error) {
	cfg, err := newConfig(options, specs)
	if err != nil {
		return nil, err
	}
	pid, err := sys.Spawn(loop, cfg)
	if err != nil {
		return nil, err
	}

	_, err = sys.Call(pid, initRequest{}, startTimeout(sys, cfg.options))
	if err != nil {
		sys.Exit(pid, sysmsg.KillReason)
		return nil, err
	}
	return NewRef(sys, pid), nil
}

// StartLink starts a supervisor linked to parent. Nested supervisors are started
// this way by NewSupervisorSpec.
func StartLink(parent *actor.Actor, options Options, specs ...ChildSpec) (*Ref, error) {
	cfg, err := newConfig(options, specs)
	if err != nil {
		return nil, err
	}
	cfg.parent = parent.Self()
	pid, err := parent.SpawnLink(loop, cfg)
	if err != nil {
		return nil, err
	}

	sys := parent.System()
	_, err = parent.Call(pid, initRequest{}, startTimeout(sys, cfg.options))
	if err != nil {
		parent.Unlink(pid)
		parent.SendExit(pid, sysmsg.KillReason)
		return nil, err
	}
	return NewRef(sys, pid), nil
}

func newConfig(options Options, specs []ChildSpec) (config, error) {
	options = options.withDefaults()
	if err := options.validate(); err != nil {
		return config{}, err
	}
	if err := validateSpecs(specs); err != nil {
		return config{}, err
	}
	return config{
		options: options,
		specs:   append([]ChildSpec(nil), specs...),
	}, nil
}

func startTimeout(sys *actor.System, options Options) time.Duration {
	if options.StartTimeout > 0 {
		return options.StartTimeout
	}
	return sys.RequestTimeout()
}

// loop is the supervisor process body
func loop(self *actor.Actor) {
	cfg := self.Args()[0].(config)
	self.TrapExit(true)
	s := newState(self, cfg)

	msg, _ := self.Receive(actor.Infinity, func(msg actor.Message) bool {
		call, ok := msg.Payload.(actor.CallMsg)
		if !ok {
			return false
		}
		_, ok = call.Request.(initRequest)
		return ok
	})
	initCall := msg.Payload.(actor.CallMsg)

	if cfg.options.Name != "" {
		if err := self.Register(cfg.options.Name); err != nil {
			actor.Reply(self, initCall, fmt.Errorf("supervisor %s: %w", cfg.options.Name, err))
			return
		}
	}
	if err := s.init(); err != nil {
		actor.Reply(self, initCall, err)
		return
	}
	actor.Reply(self, initCall, nil)

	for {
		msg, err := self.Receive(actor.Infinity)
		if err != nil {
			return
		}
		switch payload := msg.Payload.(type) {
		case actor.DownMsg:
			s.handleDown(payload)
		case actor.ExitMsg:
			if payload.From != s.parent {
				// children exits are handled through their monitors
				continue
			}
			s.logger.Debugf("supervisor %s: parent exited with %s", s.name, payload.Reason)
			s.shutdownAll()
			self.Exit(payload.Reason)
		case actor.CallMsg:
			if !s.handleCall(payload) {
				return
			}
		case retryRestart:
			s.handleRetry()
		default:
			s.logger.Warnf("supervisor %s: unexpected message %T", s.name, payload)
		}
	}
}
