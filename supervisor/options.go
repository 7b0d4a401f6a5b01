package supervisor

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	gerrors "github.com/hedisam/goactor/v2/errors"
)

// Strategy decides which children are restarted when one of them terminates
type Strategy int32

const (
	// OneForOneStrategy restarts only the terminated child
	OneForOneStrategy Strategy = iota
	// OneForAllStrategy terminates all other running children, then restarts them
	// together with the terminated one. Children that were already stopped, such as
	// a Transient child that exited normally or a Temporary child, stay stopped.
	OneForAllStrategy
	// RestForOneStrategy terminates the children started after the terminated one,
	// then restarts the terminated child and those children in order
	RestForOneStrategy
)

func (s Strategy) String() string {
	switch s {
	case OneForOneStrategy:
		return "one_for_one"
	case OneForAllStrategy:
		return "one_for_all"
	case RestForOneStrategy:
		return "rest_for_one"
	default:
		return "unknown"
	}
}

const (
	defaultMaxRestarts = 3
	defaultPeriod      = 5 * time.Second
)

// Options configures a supervisor
type Options struct {
	Strategy Strategy
	// MaxRestarts is the number of restarts allowed within Period. One more and the
	// supervisor gives up.
	MaxRestarts int
	// Period is the trailing window of the restart intensity. Zero means 5s.
	Period time.Duration
	// Name registers the supervisor under this name when set
	Name string
	// StartTimeout bounds the start of all children. Zero means the system request
	// timeout.
	StartTimeout time.Duration
}

var (
	OneForOneStrategyOption  = NewOptions(OneForOneStrategy, defaultMaxRestarts, defaultPeriod)
	OneForAllStrategyOption  = NewOptions(OneForAllStrategy, defaultMaxRestarts, defaultPeriod)
	RestForOneStrategyOption = NewOptions(RestForOneStrategy, defaultMaxRestarts, defaultPeriod)
)

func NewOptions(strategy Strategy, maxRestarts int, period time.Duration) Options {
	return Options{
		Strategy:    strategy,
		MaxRestarts: maxRestarts,
		Period:      period,
	}
}

func (opt Options) SetName(name string) Options {
	opt.Name = name
	return opt
}

func (opt Options) SetStartTimeout(timeout time.Duration) Options {
	opt.StartTimeout = timeout
	return opt
}

func (opt Options) withDefaults() Options {
	if opt.Period == 0 {
		opt.Period = defaultPeriod
	}
	return opt
}

func (opt Options) validate() error {
	var err error
	if opt.Strategy < OneForOneStrategy || opt.Strategy > RestForOneStrategy {
		err = multierr.Append(err, fmt.Errorf("%w: strategy %d", gerrors.ErrInvalidOptions, opt.Strategy))
	}
	if opt.MaxRestarts < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: max restarts %d", gerrors.ErrInvalidOptions, opt.MaxRestarts))
	}
	if opt.Period < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: period %s", gerrors.ErrInvalidOptions, opt.Period))
	}
	if opt.StartTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: start timeout %s", gerrors.ErrInvalidOptions, opt.StartTimeout))
	}
	return err
}
