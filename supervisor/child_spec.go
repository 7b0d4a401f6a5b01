package supervisor

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/hedisam/goactor/v2/actor"
	gerrors "github.com/hedisam/goactor/v2/errors"
)

// ChildType tells workers and supervisors apart. It only affects counts and the
// default shutdown.
type ChildType int32

const (
	TypeWorker ChildType = iota
	TypeSupervisor
)

func (t ChildType) String() string {
	if t == TypeSupervisor {
		return "supervisor"
	}
	return "worker"
}

// Restart is the restart policy of a child
type Restart int32

const (
	// Permanent children are always restarted
	Permanent Restart = iota
	// Transient children are restarted only after an abnormal exit
	Transient
	// Temporary children are never restarted
	Temporary
)

func (r Restart) String() string {
	switch r {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case Temporary:
		return "temporary"
	default:
		return "unknown"
	}
}

const (
	// ShutdownInfinity waits for the child to stop however long it takes
	ShutdownInfinity = actor.Infinity
	// ShutdownBrutalKill kills the child without asking it to stop
	ShutdownBrutalKill time.Duration = 0

	defaultWorkerShutdown = 5 * time.Second
)

// StartFunc starts a child linked to the supervisor. Returning a nil pid and a nil
// error means the child is not running and is not an error.
type StartFunc func(parent *actor.Actor) (*actor.PID, error)

// ChildSpec describes how to start, restart and stop one child
type ChildSpec struct {
	ID      string
	Start   StartFunc
	Restart Restart
	// Shutdown is how long the child gets to stop before it is killed.
	// See ShutdownBrutalKill and ShutdownInfinity.
	Shutdown time.Duration
	Type     ChildType
}

// NewWorkerSpec returns a permanent worker spec that spawns fn with args, linked to
// the supervisor
func NewWorkerSpec(id string, fn actor.Func, args ...any) ChildSpec {
	return ChildSpec{
		ID: id,
		Start: func(parent *actor.Actor) (*actor.PID, error) {
			return parent.SpawnLink(fn, args...)
		},
		Restart:  Permanent,
		Shutdown: defaultWorkerShutdown,
		Type:     TypeWorker,
	}
}

// NewSupervisorSpec returns a permanent spec for a nested supervisor
func NewSupervisorSpec(id string, options Options, children ...ChildSpec) ChildSpec {
	return ChildSpec{
		ID: id,
		Start: func(parent *actor.Actor) (*actor.PID, error) {
			ref, err := StartLink(parent, options, children...)
			if err != nil {
				return nil, err
			}
			return ref.PID(), nil
		},
		Restart:  Permanent,
		Shutdown: ShutdownInfinity,
		Type:     TypeSupervisor,
	}
}

func (spec ChildSpec) SetRestart(restart Restart) ChildSpec {
	spec.Restart = restart
	return spec
}

func (spec ChildSpec) SetShutdown(shutdown time.Duration) ChildSpec {
	spec.Shutdown = shutdown
	return spec
}

// Validate returns every problem of the spec
func (spec ChildSpec) Validate() error {
	var err error
	if spec.ID == "" {
		err = multierr.Append(err, fmt.Errorf("%w: empty id", gerrors.ErrInvalidChildSpec))
	}
	if spec.Start == nil {
		err = multierr.Append(err, fmt.Errorf("%w: nil start func, id %q", gerrors.ErrInvalidChildSpec, spec.ID))
	}
	if spec.Restart < Permanent || spec.Restart > Temporary {
		err = multierr.Append(err, fmt.Errorf("%w: restart %d, id %q", gerrors.ErrInvalidChildSpec, spec.Restart, spec.ID))
	}
	if spec.Shutdown < ShutdownInfinity {
		err = multierr.Append(err, fmt.Errorf("%w: shutdown %s, id %q", gerrors.ErrInvalidChildSpec, spec.Shutdown, spec.ID))
	}
	if spec.Type != TypeWorker && spec.Type != TypeSupervisor {
		err = multierr.Append(err, fmt.Errorf("%w: child type %d, id %q", gerrors.ErrInvalidChildSpec, spec.Type, spec.ID))
	}
	return err
}

func validateSpecs(specs []ChildSpec) error {
	var err error
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		err = multierr.Append(err, spec.Validate())
		if spec.ID == "" {
			continue
		}
		if _, duplicate := seen[spec.ID]; duplicate {
			err = multierr.Append(err, fmt.Errorf("%w: duplicate id %q", gerrors.ErrInvalidChildSpec, spec.ID))
		}
		seen[spec.ID] = struct{}{}
	}
	return err
}
