// Package tables is an in-memory key/value table store whose tables are owned by
// processes. A table dies with its owner unless an heir takes it over.
package tables

import (
	"fmt"
	"reflect"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/hedisam/goactor/v2/actor"
	gerrors "github.com/hedisam/goactor/v2/errors"
	"github.com/hedisam/goactor/v2/sysmsg"
)

// Type defines how values are kept per key
type Type int

const (
	// Set keeps one value per key, an insert replaces it
	Set Type = iota
	// Bag keeps distinct values per key
	Bag
	// DuplicateBag keeps every inserted value
	DuplicateBag
)

func (t Type) String() string {
	switch t {
	case Set:
		return "set"
	case Bag:
		return "bag"
	case DuplicateBag:
		return "duplicate_bag"
	default:
		return "unknown"
	}
}

// Access controls which processes may use a table
type Access int

const (
	// Public tables can be read and written by any process
	Public Access = iota
	// Protected tables can be read by any process and written by the owner only
	Protected
	// Private tables can only be used by the owner
	Private
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// TableID identifies a table
type TableID uuid.UUID

func (id TableID) String() string {
	return uuid.UUID(id).String()
}

// TransferMsg is sent to the new owner of a table, either the heir of a terminated
// owner or the target of TransferOwnership
type TransferMsg struct {
	Table    TableID
	From     *actor.PID
	HeirData any
}

// Info describes a table
type Info struct {
	ID     TableID
	Name   string
	Type   Type
	Access Access
	Owner  *actor.PID
	Heir   *actor.PID
	Size   int
}

// Option configures a new table
type Option func(t *table)

// WithName names the table, for diagnostics
func WithName(name string) Option {
	return func(t *table) {
		t.name = name
	}
}

// WithHeir makes heir the owner of the table when the owner terminates. data is
// passed along in the TransferMsg.
func WithHeir(heir *actor.PID, data any) Option {
	return func(t *table) {
		t.heir = heir
		t.heirData = data
	}
}

type table struct {
	id       TableID
	name     string
	kind     Type
	access   Access
	owner    *actor.PID
	heir     *actor.PID
	heirData any

	mu   sync.RWMutex
	data map[any][]any
}

// Store holds the tables of one actor system
type Store struct {
	sys *actor.System

	mu     sync.RWMutex
	tables map[TableID]*table
	owned  map[*actor.PID]mapset.Set[TableID]
}

// NewStore creates a store and hooks it to the termination of processes in sys
func NewStore(sys *actor.System) *Store {
	s := &Store{
		sys:    sys,
		tables: make(map[TableID]*table),
		owned:  make(map[*actor.PID]mapset.Set[TableID]),
	}
	sys.AddTerminationObserver(s.ownerTerminated)
	return s
}

// NewTable creates a table owned by owner
func (s *Store) NewTable(owner *actor.PID, kind Type, access Access, opts ...Option) (TableID, error) {
	if !s.sys.IsAlive(owner) {
		return TableID{}, fmt.Errorf("%w: owner %s", gerrors.ErrDead, owner)
	}
	t := &table{
		id:     TableID(uuid.New()),
		kind:   kind,
		access: access,
		owner:  owner,
		data:   make(map[any][]any),
	}
	for _, opt := range opts {
		opt(t)
	}

	s.mu.Lock()
	s.tables[t.id] = t
	s.own(owner, t.id)
	s.mu.Unlock()

	// the owner may have died before the table got indexed
	if !s.sys.IsAlive(owner) {
		s.ownerTerminated(owner, sysmsg.NoProcReason)
		return TableID{}, fmt.Errorf("%w: owner %s", gerrors.ErrDead, owner)
	}
	return t.id, nil
}

func (s *Store) own(owner *actor.PID, id TableID) {
	set, ok := s.owned[owner]
	if !ok {
		set = mapset.NewThreadUnsafeSet[TableID]()
		s.owned[owner] = set
	}
	set.Add(id)
}

func (s *Store) get(id TableID) (*table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gerrors.ErrTableNotFound, id)
	}
	return t, nil
}

func (t *table) canRead(caller *actor.PID) bool {
	return t.access != Private || caller == t.owner
}

func (t *table) canWrite(caller *actor.PID) bool {
	return t.access == Public || caller == t.owner
}

// Insert stores value under key. caller is the process doing the write, nil when
// outside any process.
func (s *Store) Insert(caller *actor.PID, id TableID, key, value any) error {
	t, err := s.get(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.canWrite(caller) {
		return fmt.Errorf("%w: %s cannot write %s", gerrors.ErrTableAccess, caller, id)
	}

	switch t.kind {
	case Set:
		t.data[key] = []any{value}
	case Bag:
		for _, existing := range t.data[key] {
			if reflect.DeepEqual(existing, value) {
				return nil
			}
		}
		t.data[key] = append(t.data[key], value)
	default:
		t.data[key] = append(t.data[key], value)
	}
	return nil
}

// Lookup returns the values stored under key in insertion order
func (s *Store) Lookup(caller *actor.PID, id TableID, key any) ([]any, error) {
	t, err := s.get(id)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.canRead(caller) {
		return nil, fmt.Errorf("%w: %s cannot read %s", gerrors.ErrTableAccess, caller, id)
	}
	return append([]any(nil), t.data[key]...), nil
}

// Delete removes key and all its values
func (s *Store) Delete(caller *actor.PID, id TableID, key any) error {
	t, err := s.get(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.canWrite(caller) {
		return fmt.Errorf("%w: %s cannot write %s", gerrors.ErrTableAccess, caller, id)
	}
	delete(t.data, key)
	return nil
}

// DeleteTable drops the table. Only the owner may do it.
func (s *Store) DeleteTable(caller *actor.PID, id TableID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return fmt.Errorf("%w: %s", gerrors.ErrTableNotFound, id)
	}
	if caller != t.owner {
		return fmt.Errorf("%w: %s is not the owner of %s", gerrors.ErrNotOwner, caller, id)
	}
	s.drop(t)
	return nil
}

func (s *Store) drop(t *table) {
	delete(s.tables, t.id)
	if set, ok := s.owned[t.owner]; ok {
		set.Remove(t.id)
		if set.Cardinality() == 0 {
			delete(s.owned, t.owner)
		}
	}
}

// TransferOwnership makes newOwner the owner of the table. newOwner receives a
// TransferMsg.
func (s *Store) TransferOwnership(caller *actor.PID, id TableID, newOwner *actor.PID) error {
	if !s.sys.IsAlive(newOwner) {
		return fmt.Errorf("%w: new owner %s", gerrors.ErrDead, newOwner)
	}
	s.mu.Lock()
	t, ok := s.tables[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", gerrors.ErrTableNotFound, id)
	}
	if caller != t.owner {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is not the owner of %s", gerrors.ErrNotOwner, caller, id)
	}
	s.transfer(t, newOwner)
	s.mu.Unlock()

	s.sys.Send(newOwner, TransferMsg{Table: id, From: caller})
	return nil
}

func (s *Store) transfer(t *table, newOwner *actor.PID) {
	s.drop(t)
	t.mu.Lock()
	t.owner = newOwner
	t.mu.Unlock()
	s.tables[t.id] = t
	s.own(newOwner, t.id)
}

// Info describes the table
func (s *Store) Info(id TableID) (Info, error) {
	t, err := s.get(id)
	if err != nil {
		return Info{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t.mu.RLock()
	defer t.mu.RUnlock()
	size := 0
	for _, values := range t.data {
		size += len(values)
	}
	return Info{
		ID:     t.id,
		Name:   t.name,
		Type:   t.kind,
		Access: t.access,
		Owner:  t.owner,
		Heir:   t.heir,
		Size:   size,
	}, nil
}

// ownerTerminated hands the tables of pid to their heirs, or deletes them
func (s *Store) ownerTerminated(pid *actor.PID, _ sysmsg.Reason) {
	var transfers []TransferMsg
	var heirs []*actor.PID

	s.mu.Lock()
	// pid may be the heir of other tables
	for _, t := range s.tables {
		if t.heir == pid {
			t.heir = nil
			t.heirData = nil
		}
	}
	set, ok := s.owned[pid]
	if !ok {
		s.mu.Unlock()
		return
	}
	for _, id := range set.ToSlice() {
		t := s.tables[id]
		if t.heir != nil && t.heir != pid && s.sys.IsAlive(t.heir) {
			heir, data := t.heir, t.heirData
			t.heir, t.heirData = nil, nil
			s.transfer(t, heir)
			transfers = append(transfers, TransferMsg{Table: id, From: pid, HeirData: data})
			heirs = append(heirs, heir)
			continue
		}
		s.drop(t)
		s.sys.Logger().Debugf("table %s deleted with its owner %s", id, pid)
	}
	s.mu.Unlock()

	for i, msg := range transfers {
		s.sys.Send(heirs[i], msg)
	}
}
