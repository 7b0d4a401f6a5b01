package actor

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/hedisam/goactor/v2/sysmsg"
)

type monitor struct {
	watcher *process
	watched *process
}

type down struct {
	ref     MonitorRef
	watcher *process
}

// linkRegistry holds every link and monitor of a system. A single mutex guards all
// indices so that installing a link or monitor and terminating either end are
// serialized against each other.
type linkRegistry struct {
	mu       sync.Mutex
	links    map[*process]mapset.Set[*process]
	monitors map[MonitorRef]monitor
	// refs of the monitors watching a process
	watchers map[*process]mapset.Set[MonitorRef]
	// refs of the monitors a process holds on others
	watching map[*process]mapset.Set[MonitorRef]
}

func newLinkRegistry() *linkRegistry {
	return &linkRegistry{
		links:    make(map[*process]mapset.Set[*process]),
		monitors: make(map[MonitorRef]monitor),
		watchers: make(map[*process]mapset.Set[MonitorRef]),
		watching: make(map[*process]mapset.Set[MonitorRef]),
	}
}

func addTo[K comparable, V comparable](index map[K]mapset.Set[V], key K, value V) {
	set, ok := index[key]
	if !ok {
		set = mapset.NewThreadUnsafeSet[V]()
		index[key] = set
	}
	set.Add(value)
}

func removeFrom[K comparable, V comparable](index map[K]mapset.Set[V], key K, value V) {
	set, ok := index[key]
	if !ok {
		return
	}
	set.Remove(value)
	if set.Cardinality() == 0 {
		delete(index, key)
	}
}

// link installs a bidirectional link. It fails when either end is terminated.
func (r *linkRegistry) link(a, b *process) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !a.alive() || !b.alive() {
		return false
	}
	if a == b {
		return true
	}
	addTo(r.links, a, b)
	addTo(r.links, b, a)
	return true
}

func (r *linkRegistry) unlink(a, b *process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removeFrom(r.links, a, b)
	removeFrom(r.links, b, a)
}

// monitor installs a monitor and reports whether the watched process was alive.
// Nothing is recorded for a dead target.
func (r *linkRegistry) monitor(watcher, watched *process) (MonitorRef, bool) {
	ref := newRef()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !watched.alive() || !watcher.alive() {
		return ref, false
	}
	r.monitors[ref] = monitor{watcher: watcher, watched: watched}
	addTo(r.watchers, watched, ref)
	addTo(r.watching, watcher, ref)
	return ref, true
}

// demonitor removes a monitor held by watcher
func (r *linkRegistry) demonitor(watcher *process, ref MonitorRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[ref]
	if !ok || m.watcher != watcher {
		return false
	}
	r.dropMonitor(ref, m)
	return true
}

func (r *linkRegistry) dropMonitor(ref MonitorRef, m monitor) {
	delete(r.monitors, ref)
	removeFrom(r.watchers, m.watched, ref)
	removeFrom(r.watching, m.watcher, ref)
}

// release marks p terminated and detaches all of its links and monitors in one step.
// It returns the linked peers and the monitors to notify, and false if p was already
// terminated.
func (r *linkRegistry) release(p *process, reason sysmsg.Reason) ([]*process, []down, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !p.markTerminated(reason) {
		return nil, nil, false
	}

	var peers []*process
	if set, ok := r.links[p]; ok {
		peers = set.ToSlice()
		for _, peer := range peers {
			removeFrom(r.links, peer, p)
		}
		delete(r.links, p)
	}

	var downs []down
	if refs, ok := r.watchers[p]; ok {
		for _, ref := range refs.ToSlice() {
			m := r.monitors[ref]
			downs = append(downs, down{ref: ref, watcher: m.watcher})
			r.dropMonitor(ref, m)
		}
	}
	// monitors held by p die silently with it
	if refs, ok := r.watching[p]; ok {
		for _, ref := range refs.ToSlice() {
			r.dropMonitor(ref, r.monitors[ref])
		}
	}
	return peers, downs, true
}

type relations struct {
	links       []*PID
	monitors    []*PID
	monitoredBy []*PID
}

func (r *linkRegistry) snapshot(p *process) relations {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rel relations
	if set, ok := r.links[p]; ok {
		set.Each(func(peer *process) bool {
			rel.links = append(rel.links, peer.pid)
			return false
		})
	}
	if refs, ok := r.watching[p]; ok {
		refs.Each(func(ref MonitorRef) bool {
			rel.monitors = append(rel.monitors, r.monitors[ref].watched.pid)
			return false
		})
	}
	if refs, ok := r.watchers[p]; ok {
		refs.Each(func(ref MonitorRef) bool {
			rel.monitoredBy = append(rel.monitoredBy, r.monitors[ref].watcher.pid)
			return false
		})
	}
	return rel
}
