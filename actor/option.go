package actor

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/hedisam/goactor/v2/log"
)

// MailboxKind selects the incoming queue behind every process mailbox
type MailboxKind int

const (
	// BlockingMailbox uses a locked queue with blocking polls. It is the default.
	BlockingMailbox MailboxKind = iota
	// MPSCMailbox uses a lock-free multi-producer single-consumer queue
	MPSCMailbox
)

const (
	// DefaultRequestTimeout bounds Call when no positive timeout is given
	DefaultRequestTimeout = 5 * time.Second
	// Infinity makes a receive or a shutdown wait without a deadline
	Infinity time.Duration = -1
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(sys *System)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*System)

func (f OptionFunc) Apply(sys *System) {
	f(sys)
}

// WithLogger sets the system logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(sys *System) {
		sys.logger = logger
	})
}

// WithMailbox sets the queue implementation used by process mailboxes
func WithMailbox(kind MailboxKind) Option {
	return OptionFunc(func(sys *System) {
		sys.mailboxKind = kind
	})
}

// WithRequestTimeout sets the default Call timeout
func WithRequestTimeout(timeout time.Duration) Option {
	return OptionFunc(func(sys *System) {
		sys.requestTimeout = timeout
	})
}

// WithMeterProvider sets the provider the runtime metrics are created from
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(sys *System) {
		sys.meterProvider = provider
	})
}

// WithName sets the system name used in logs
func WithName(name string) Option {
	return OptionFunc(func(sys *System) {
		sys.name = name
	})
}
