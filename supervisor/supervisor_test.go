package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
	"go.uber.org/multierr"

	"github.com/hedisam/goactor/v2/actor"
	gerrors "github.com/hedisam/goactor/v2/errors"
	"github.com/hedisam/goactor/v2/log"
	"github.com/hedisam/goactor/v2/sysmsg"
)

func newTestSystem(t *testing.T) *actor.System {
	t.Helper()
	sys := actor.NewSystem(
		actor.WithLogger(log.DiscardLogger),
		actor.WithMeterProvider(noop.NewMeterProvider()),
		actor.WithRequestTimeout(2*time.Second),
	)
	t.Cleanup(func() {
		require.NoError(t, sys.Shutdown(context.Background()))
	})
	return sys
}

func worker(a *actor.Actor) {
	_, _ = a.Receive(actor.Infinity, func(actor.Message) bool { return false })
}

// recordingWorker traps exits, reports readiness and reports its id when asked to
// stop
func recordingWorker(a *actor.Actor) {
	id, recorder := a.Args()[0].(string), a.Args()[1].(*actor.PID)
	a.TrapExit(true)
	a.Send(recorder, "ready")
	msg, _ := a.Receive(actor.Infinity, actor.MatchType[actor.ExitMsg]())
	a.Send(recorder, id)
	a.Exit(msg.Payload.(actor.ExitMsg).Reason)
}

func childPIDs(t *testing.T, ref *Ref) map[string]*actor.PID {
	t.Helper()
	infos, err := ref.WhichChildren()
	require.NoError(t, err)
	pids := make(map[string]*actor.PID, len(infos))
	for _, info := range infos {
		pids[info.ID] = info.PID
	}
	return pids
}

func threeWorkers() []ChildSpec {
	return []ChildSpec{
		NewWorkerSpec("w1", worker),
		NewWorkerSpec("w2", worker),
		NewWorkerSpec("w3", worker),
	}
}

func waitRestarted(t *testing.T, sys *actor.System, ref *Ref, id string, old *actor.PID) *actor.PID {
	t.Helper()
	var pid *actor.PID
	require.Eventually(t, func() bool {
		pid = childPIDs(t, ref)[id]
		return pid != nil && pid != old && sys.IsAlive(pid)
	}, 2*time.Second, 10*time.Millisecond)
	return pid
}

// startRecorder collects the ids of started children in start order
type startRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *startRecorder) spec(id string, fn actor.Func) ChildSpec {
	spec := NewWorkerSpec(id, fn)
	start := spec.Start
	spec.Start = func(parent *actor.Actor) (*actor.PID, error) {
		r.mu.Lock()
		r.ids = append(r.ids, id)
		r.mu.Unlock()
		return start(parent)
	}
	return spec
}

func (r *startRecorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.ids
	r.ids = nil
	return ids
}

// counter answers "incr" and "get" calls with its count, which starts at zero
func counter(a *actor.Actor) {
	count := 0
	for {
		msg, _ := a.Receive(actor.Infinity, actor.MatchType[actor.CallMsg]())
		call := msg.Payload.(actor.CallMsg)
		if call.Request == "incr" {
			count++
		}
		actor.Reply(a, call, count)
	}
}

func TestStrategies(t *testing.T) {
	testCases := []struct {
		name      string
		strategy  Strategy
		restarted []string
		kept      []string
	}{
		{name: "one for one", strategy: OneForOneStrategy, restarted: []string{"w2"}, kept: []string{"w1", "w3"}},
		{name: "one for all", strategy: OneForAllStrategy, restarted: []string{"w1", "w2", "w3"}},
		{name: "rest for one", strategy: RestForOneStrategy, restarted: []string{"w2", "w3"}, kept: []string{"w1"}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			sys := newTestSystem(t)
			recorder := &startRecorder{}
			ref, err := Start(sys, NewOptions(tc.strategy, 3, 5*time.Second),
				recorder.spec("w1", counter),
				recorder.spec("w2", counter),
				recorder.spec("w3", counter),
			)
			require.NoError(t, err)
			assert.Equal(t, []string{"w1", "w2", "w3"}, recorder.take())

			before := childPIDs(t, ref)
			require.Len(t, before, 3)
			for id, pid := range before {
				count, err := sys.Call(pid, "incr", time.Second)
				require.NoError(t, err, id)
				require.Equal(t, 1, count, id)
			}
			sys.Exit(before["w2"], sysmsg.Crash("test crash"))

			for _, id := range tc.restarted {
				waitRestarted(t, sys, ref, id, before[id])
			}
			assert.Equal(t, tc.restarted, recorder.take())

			after := childPIDs(t, ref)
			for _, id := range tc.kept {
				assert.Equal(t, before[id], after[id], id)
				assert.True(t, sys.IsAlive(after[id]))
				count, err := sys.Call(after[id], "get", time.Second)
				require.NoError(t, err, id)
				assert.Equal(t, 1, count, id)
			}
			for _, id := range tc.restarted {
				assert.False(t, sys.IsAlive(before[id]), id)
				count, err := sys.Call(after[id], "get", time.Second)
				require.NoError(t, err, id)
				assert.Equal(t, 0, count, id)
			}
			status, err := ref.Status()
			require.NoError(t, err)
			assert.Equal(t, StatusRunning, status)
		})
	}
}

func TestOneForAllLeavesStoppedChildrenStopped(t *testing.T) {
	sys := newTestSystem(t)
	recorder := &startRecorder{}
	transient := recorder.spec("transient", counter).SetRestart(Transient)
	ref, err := Start(sys, OneForAllStrategyOption,
		recorder.spec("w1", counter),
		transient,
		recorder.spec("w3", counter),
	)
	require.NoError(t, err)
	recorder.take()

	before := childPIDs(t, ref)
	sys.Exit(before["transient"], sysmsg.ShutdownReason)
	require.Eventually(t, func() bool {
		return childPIDs(t, ref)["transient"] == nil
	}, 2*time.Second, 10*time.Millisecond)

	sys.Exit(before["w1"], sysmsg.Crash("test crash"))
	waitRestarted(t, sys, ref, "w1", before["w1"])
	waitRestarted(t, sys, ref, "w3", before["w3"])
	assert.Equal(t, []string{"w1", "w3"}, recorder.take())
	assert.Nil(t, childPIDs(t, ref)["transient"])
}

func TestRestartPolicies(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := Start(sys, OneForOneStrategyOption,
		NewWorkerSpec("transient", worker).SetRestart(Transient),
		NewWorkerSpec("temporary", worker).SetRestart(Temporary),
		NewWorkerSpec("transient-crash", worker).SetRestart(Transient),
	)
	require.NoError(t, err)
	before := childPIDs(t, ref)

	sys.Exit(before["transient"], sysmsg.ShutdownReason)
	sys.Exit(before["temporary"], sysmsg.Crash("boom"))
	sys.Exit(before["transient-crash"], sysmsg.Crash("boom"))

	waitRestarted(t, sys, ref, "transient-crash", before["transient-crash"])
	after := childPIDs(t, ref)
	assert.Nil(t, after["transient"])
	assert.Nil(t, after["temporary"])

	count, err := ref.CountChildren()
	require.NoError(t, err)
	assert.Equal(t, ChildCount{Specs: 3, Active: 1, Workers: 3}, count)
}

func TestRestartIntensity(t *testing.T) {
	sys := newTestSystem(t)
	self, done := sys.NewParentActor()
	defer done()

	ref, err := Start(sys, NewOptions(OneForOneStrategy, 3, 5*time.Second), NewWorkerSpec("w", worker))
	require.NoError(t, err)
	supRef := self.Monitor(ref.PID())

	pid := childPIDs(t, ref)["w"]
	for i := 0; i < 3; i++ {
		sys.Exit(pid, sysmsg.Crash("boom"))
		pid = waitRestarted(t, sys, ref, "w", pid)
	}
	sys.Exit(pid, sysmsg.Crash("boom"))

	msg, err := self.Receive(2*time.Second, actor.MatchDown(supRef))
	require.NoError(t, err)
	reason := msg.Payload.(actor.DownMsg).Reason
	assert.Equal(t, sysmsg.Crashed, reason.Kind)
	assert.ErrorIs(t, reason.Err(), gerrors.ErrMaxRestartsReached)
	assert.False(t, sys.IsAlive(ref.PID()))
}

func TestFailedRestartIsRetried(t *testing.T) {
	sys := newTestSystem(t)
	self, done := sys.NewParentActor()
	defer done()

	starts := atomic.NewInt32(0)
	flaky := ChildSpec{
		ID: "flaky",
		Start: func(parent *actor.Actor) (*actor.PID, error) {
			if starts.Inc() > 1 {
				return nil, errors.New("resource unavailable")
			}
			return parent.SpawnLink(worker)
		},
		Shutdown: ShutdownBrutalKill,
	}
	ref, err := Start(sys, NewOptions(OneForOneStrategy, 2, 5*time.Second), flaky)
	require.NoError(t, err)
	supRef := self.Monitor(ref.PID())

	sys.Exit(childPIDs(t, ref)["flaky"], sysmsg.Crash("boom"))

	msg, err := self.Receive(2*time.Second, actor.MatchDown(supRef))
	require.NoError(t, err)
	assert.ErrorIs(t, msg.Payload.(actor.DownMsg).Reason.Err(), gerrors.ErrMaxRestartsReached)
	assert.Equal(t, int32(3), starts.Load())
}

func TestShutdownOrder(t *testing.T) {
	sys := newTestSystem(t)
	self, done := sys.NewParentActor()
	defer done()

	recorder := self.Self()
	ref, err := Start(sys, OneForOneStrategyOption,
		NewWorkerSpec("w1", recordingWorker, "w1", recorder),
		NewWorkerSpec("w2", recordingWorker, "w2", recorder),
		NewWorkerSpec("w3", recordingWorker, "w3", recorder),
	)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		msg, err := self.Receive(time.Second)
		require.NoError(t, err)
		require.Equal(t, "ready", msg.Payload)
	}

	require.NoError(t, ref.Stop())
	var order []string
	for i := 0; i < 3; i++ {
		msg, err := self.Receive(time.Second)
		require.NoError(t, err)
		order = append(order, msg.Payload.(string))
	}
	assert.Equal(t, []string{"w3", "w2", "w1"}, order)
	require.Eventually(t, func() bool { return !sys.IsAlive(ref.PID()) }, time.Second, 10*time.Millisecond)
}

func TestShutdownKillsAfterTimeout(t *testing.T) {
	sys := newTestSystem(t)
	stubborn := func(a *actor.Actor) {
		a.TrapExit(true)
		for {
			_, _ = a.Receive(actor.Infinity)
		}
	}
	ref, err := Start(sys, OneForOneStrategyOption,
		NewWorkerSpec("stubborn", stubborn).SetShutdown(50*time.Millisecond))
	require.NoError(t, err)
	pid := childPIDs(t, ref)["stubborn"]

	start := time.Now()
	require.NoError(t, ref.TerminateChild("stubborn"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.False(t, sys.IsAlive(pid))
}

func TestParentExit(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := Start(sys, OneForOneStrategyOption, threeWorkers()...)
	require.NoError(t, err)
	children := childPIDs(t, ref)

	sys.Exit(ref.PID(), sysmsg.ShutdownReason)
	require.Eventually(t, func() bool { return !sys.IsAlive(ref.PID()) }, time.Second, 10*time.Millisecond)
	for id, pid := range children {
		assert.False(t, sys.IsAlive(pid), id)
	}
}

func TestSupervisionTree(t *testing.T) {
	t.Run("failing sub supervisor is restarted", func(t *testing.T) {
		sys := newTestSystem(t)
		sub := NewSupervisorSpec("sub", NewOptions(OneForOneStrategy, 0, 5*time.Second),
			NewWorkerSpec("leaf", worker))
		root, err := Start(sys, OneForOneStrategyOption, NewWorkerSpec("w1", worker), sub)
		require.NoError(t, err)

		count, err := root.CountChildren()
		require.NoError(t, err)
		assert.Equal(t, ChildCount{Specs: 2, Active: 2, Supervisors: 1, Workers: 1}, count)

		before := childPIDs(t, root)
		subRef := NewRef(sys, before["sub"])
		leaf := childPIDs(t, subRef)["leaf"]

		sys.Exit(leaf, sysmsg.Crash("boom"))
		newSub := waitRestarted(t, sys, root, "sub", before["sub"])
		assert.False(t, sys.IsAlive(leaf))
		assert.False(t, sys.IsAlive(before["sub"]))
		assert.Equal(t, before["w1"], childPIDs(t, root)["w1"])

		newLeaf := childPIDs(t, NewRef(sys, newSub))["leaf"]
		require.NotNil(t, newLeaf)
		assert.True(t, sys.IsAlive(newLeaf))
	})
	t.Run("failure escalates to the root", func(t *testing.T) {
		sys := newTestSystem(t)
		self, done := sys.NewParentActor()
		defer done()

		failFast := NewOptions(OneForOneStrategy, 0, 5*time.Second)
		root, err := Start(sys, failFast.SetName("root"),
			NewSupervisorSpec("sub", failFast, NewWorkerSpec("leaf", worker)))
		require.NoError(t, err)
		assert.Equal(t, root.PID(), sys.WhereIs("root"))
		rootRef := self.Monitor(root.PID())

		sub := childPIDs(t, root)["sub"]
		leaf := childPIDs(t, NewRef(sys, sub))["leaf"]
		sys.Exit(leaf, sysmsg.Crash("boom"))

		msg, err := self.Receive(2*time.Second, actor.MatchDown(rootRef))
		require.NoError(t, err)
		assert.ErrorIs(t, msg.Payload.(actor.DownMsg).Reason.Err(), gerrors.ErrMaxRestartsReached)
		assert.False(t, sys.IsAlive(sub))
		require.Eventually(t, func() bool { return sys.WhereIs("root") == nil }, time.Second, 10*time.Millisecond)
	})
	t.Run("stop terminates the whole tree", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		sys := actor.NewSystem(actor.WithLogger(log.DiscardLogger), actor.WithMeterProvider(noop.NewMeterProvider()))

		root, err := Start(sys, RestForOneStrategyOption,
			NewWorkerSpec("w1", worker),
			NewSupervisorSpec("sub", OneForAllStrategyOption, threeWorkers()...),
		)
		require.NoError(t, err)
		sub := childPIDs(t, root)["sub"]
		leaves := childPIDs(t, NewRef(sys, sub))

		require.NoError(t, root.Stop())
		for id, pid := range leaves {
			assert.False(t, sys.IsAlive(pid), id)
		}
		assert.False(t, sys.IsAlive(sub))
		require.NoError(t, sys.Shutdown(context.Background()))
	})
}

func TestStartFailureUnwinds(t *testing.T) {
	sys := newTestSystem(t)
	started := make(chan *actor.PID, 1)
	first := ChildSpec{
		ID: "first",
		Start: func(parent *actor.Actor) (*actor.PID, error) {
			pid, err := parent.SpawnLink(worker)
			started <- pid
			return pid, err
		},
		Shutdown: ShutdownBrutalKill,
	}
	broken := ChildSpec{
		ID: "broken",
		Start: func(*actor.Actor) (*actor.PID, error) {
			return nil, errors.New("no database")
		},
	}

	ref, err := Start(sys, OneForOneStrategyOption.SetName("unwinds"), first, broken)
	assert.Nil(t, ref)
	assert.ErrorIs(t, err, gerrors.ErrStartChild)
	assert.ErrorContains(t, err, "no database")

	pid := <-started
	require.Eventually(t, func() bool { return !sys.IsAlive(pid) }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return sys.WhereIs("unwinds") == nil }, time.Second, 10*time.Millisecond)
}

func TestValidation(t *testing.T) {
	sys := newTestSystem(t)

	_, err := Start(sys, NewOptions(Strategy(7), -1, time.Second))
	assert.ErrorIs(t, err, gerrors.ErrInvalidOptions)
	assert.Len(t, multierr.Errors(err), 2)

	_, err = Start(sys, OneForOneStrategyOption,
		NewWorkerSpec("dup", worker),
		NewWorkerSpec("dup", worker),
		ChildSpec{Restart: Restart(9), Shutdown: -5 * time.Second},
	)
	assert.ErrorIs(t, err, gerrors.ErrInvalidChildSpec)
	// duplicate id, empty id, nil start, bad restart, bad shutdown
	assert.Len(t, multierr.Errors(err), 5)

	ref, err := Start(sys, OneForOneStrategyOption.SetName("taken"))
	require.NoError(t, err)
	_, err = Start(sys, OneForOneStrategyOption.SetName("taken"))
	assert.ErrorIs(t, err, gerrors.ErrNameTaken)
	require.NoError(t, ref.Stop())
}

func TestChildManagement(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := Start(sys, OneForOneStrategyOption, NewWorkerSpec("w1", worker))
	require.NoError(t, err)

	pid, err := ref.StartChild(NewWorkerSpec("w2", worker).SetRestart(Transient))
	require.NoError(t, err)
	assert.True(t, sys.IsAlive(pid))

	_, err = ref.StartChild(NewWorkerSpec("w2", worker))
	assert.ErrorIs(t, err, gerrors.ErrChildExists)
	_, err = ref.StartChild(ChildSpec{ID: "bad"})
	assert.ErrorIs(t, err, gerrors.ErrInvalidChildSpec)

	_, err = ref.RestartChild("w2")
	assert.ErrorIs(t, err, gerrors.ErrChildRunning)
	assert.ErrorIs(t, ref.DeleteChild("w2"), gerrors.ErrChildRunning)

	require.NoError(t, ref.TerminateChild("w2"))
	assert.False(t, sys.IsAlive(pid))
	require.NoError(t, ref.TerminateChild("w2"))
	assert.ErrorIs(t, ref.TerminateChild("nope"), gerrors.ErrChildNotFound)

	infos, err := ref.WhichChildren()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "w1", infos[0].ID)
	assert.Equal(t, ChildInfo{ID: "w2", Type: TypeWorker, Restart: Transient}, infos[1])

	restarted, err := ref.RestartChild("w2")
	require.NoError(t, err)
	assert.NotEqual(t, pid, restarted)
	assert.True(t, sys.IsAlive(restarted))

	require.NoError(t, ref.TerminateChild("w2"))
	require.NoError(t, ref.DeleteChild("w2"))
	assert.ErrorIs(t, ref.DeleteChild("w2"), gerrors.ErrChildNotFound)
	_, err = ref.RestartChild("w2")
	assert.ErrorIs(t, err, gerrors.ErrChildNotFound)

	count, err := ref.CountChildren()
	require.NoError(t, err)
	assert.Equal(t, ChildCount{Specs: 1, Active: 1, Workers: 1}, count)

	require.NoError(t, ref.Stop())
	_, err = ref.CountChildren()
	assert.ErrorIs(t, err, gerrors.ErrDead)
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "root", metricName(OneForOneStrategyOption.SetName("root")))
	assert.Equal(t, anonymousSupervisor, metricName(OneForOneStrategyOption))
	assert.Equal(t, metricName(NewOptions(RestForOneStrategy, 1, time.Second)), metricName(OneForAllStrategyOption))
}
