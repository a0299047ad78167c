package sim

import (
	"reflect"
	"sync"

	"github.com/rotisserie/eris"
)

// Manager is the entity/component store handed to every system callback. It
// owns entity identity, per-type component storage, and the change-tracking
// windows. Commit transitions (ProcessEraseRequests, ClearNewlyCreated,
// ClearErased) are driven exclusively by the Server at step boundaries.
//
// The Manager tolerates concurrent reads and concurrent writes to independent
// entities, matching the parallel Update/PostUpdate phase contract.
type Manager struct {
	mu         sync.RWMutex
	slots      []entitySlot
	freeSlots  []uint32
	aliveCount int
	pending    []Entity // erasure-pending, request order

	storeMu sync.RWMutex
	stores  map[reflect.Type]componentStore
	ordered []componentStore
}

type entitySlot struct {
	generation   uint32
	alive        bool
	pendingErase bool
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		stores: make(map[reflect.Type]componentStore),
	}
}

// CreateEntity allocates and returns a fresh, never-before-live identifier.
func (m *Manager) CreateEntity() Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slot uint32
	if n := len(m.freeSlots); n > 0 {
		slot = m.freeSlots[n-1]
		m.freeSlots = m.freeSlots[:n-1]
	} else {
		slot = uint32(len(m.slots))
		m.slots = append(m.slots, entitySlot{generation: 0})
	}

	// Generations start at 1 so a packed id is never NullEntity.
	m.slots[slot].generation++
	m.slots[slot].alive = true
	m.slots[slot].pendingErase = false
	m.aliveCount++

	return newEntity(m.slots[slot].generation, slot)
}

// Exists reports whether the entity is live. Erasure-pending entities still
// exist until the step commit retires them.
func (m *Manager) Exists(e Entity) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.existsLocked(e)
}

func (m *Manager) existsLocked(e Entity) bool {
	slot := e.Slot()
	if e == NullEntity || int(slot) >= len(m.slots) {
		return false
	}
	return m.slots[slot].alive && m.slots[slot].generation == e.Generation()
}

// EntityCount returns the number of live entities.
func (m *Manager) EntityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.aliveCount
}

// RequestEraseEntity marks the entity erasure-pending. Erasure is
// advisory-deferred: the entity and its components stay queryable until the
// step commit, and every component the entity holds is reported by EachErased
// for the remainder of the window. Requests for unknown, retired, or
// already-pending entities are no-ops.
func (m *Manager) RequestEraseEntity(e Entity) {
	m.mu.Lock()
	if !m.existsLocked(e) || m.slots[e.Slot()].pendingErase {
		m.mu.Unlock()
		return
	}
	m.slots[e.Slot()].pendingErase = true
	m.pending = append(m.pending, e)
	m.mu.Unlock()

	m.storeMu.RLock()
	defer m.storeMu.RUnlock()
	for _, st := range m.ordered {
		st.markErased(e)
	}
}

// RequestEraseEntities marks every live entity erasure-pending.
func (m *Manager) RequestEraseEntities() {
	m.mu.RLock()
	live := make([]Entity, 0, m.aliveCount)
	for slot, s := range m.slots {
		if s.alive && !s.pendingErase {
			live = append(live, newEntity(s.generation, uint32(slot)))
		}
	}
	m.mu.RUnlock()

	for _, e := range live {
		m.RequestEraseEntity(e)
	}
}

// ProcessEraseRequests physically removes the components of every
// erasure-pending entity, retires its identifier, and applies queued
// single-component removals. The Server calls this at the end of each step;
// it is exported so the commit boundary stays testable on its own.
func (m *Manager) ProcessEraseRequests() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	m.storeMu.RLock()
	stores := make([]componentStore, len(m.ordered))
	copy(stores, m.ordered)
	m.storeMu.RUnlock()

	for _, st := range stores {
		st.processRemovals()
	}

	for _, e := range pending {
		for _, st := range stores {
			st.removeNow(e)
		}
	}

	m.mu.Lock()
	for _, e := range pending {
		slot := e.Slot()
		if int(slot) >= len(m.slots) || m.slots[slot].generation != e.Generation() {
			continue
		}
		m.slots[slot].alive = false
		m.slots[slot].pendingErase = false
		m.aliveCount--
		m.freeSlots = append(m.freeSlots, slot)
	}
	m.mu.Unlock()
}

// ClearNewlyCreated empties the new-this-window set of every component type.
func (m *Manager) ClearNewlyCreated() {
	m.storeMu.RLock()
	defer m.storeMu.RUnlock()
	for _, st := range m.ordered {
		st.clearNew()
	}
}

// ClearErased empties the erased-this-window set of every component type.
func (m *Manager) ClearErased() {
	m.storeMu.RLock()
	defer m.storeMu.RUnlock()
	for _, st := range m.ordered {
		st.clearErased()
	}
}

// componentStoreFor returns the store for a component type, if one has been
// created. Part of the unexported Reader surface.
func (m *Manager) componentStoreFor(t reflect.Type) componentStore {
	m.storeMu.RLock()
	defer m.storeMu.RUnlock()
	return m.stores[t]
}

// storeFor returns the typed store for T, creating it on first use.
func storeFor[T any](m *Manager) *typeStore[T] {
	t := reflect.TypeFor[T]()

	m.storeMu.RLock()
	st, ok := m.stores[t]
	m.storeMu.RUnlock()
	if ok {
		return st.(*typeStore[T])
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	if st, ok := m.stores[t]; ok {
		return st.(*typeStore[T])
	}
	ts := newTypeStore[T](ComponentTypeID(len(m.ordered)))
	m.stores[t] = ts
	m.ordered = append(m.ordered, ts)
	return ts
}

// lookupStore returns the typed store for T without creating one.
func lookupStore[T any](r Reader) (*typeStore[T], bool) {
	st := r.componentStoreFor(reflect.TypeFor[T]())
	if st == nil {
		return nil, false
	}
	return st.(*typeStore[T]), true
}

// CreateComponent attaches a component of type T to the entity and marks it
// new for the current window. It fails with ErrEntityNotFound for dead
// identifiers and with ErrDuplicateComponent when the (entity, type) pair is
// already occupied; existing state is left unchanged on failure.
func CreateComponent[T any](m *Manager, e Entity, value T) (ComponentKey, error) {
	if !m.Exists(e) {
		return ComponentKey{}, eris.Wrapf(ErrEntityNotFound, "create %s component", reflect.TypeFor[T]().String())
	}

	st := storeFor[T](m)
	if !st.create(e, value) {
		return ComponentKey{}, eris.Wrapf(ErrDuplicateComponent, "entity %d already has %s", e, reflect.TypeFor[T]().String())
	}
	return ComponentKey{Type: st.typeID(), Entity: e}, nil
}

// Component returns a read/write pointer to the entity's component of type T,
// or nil when absent. Reads have no effect on change tracking. The pointer is
// only valid for the duration of the current callback.
func Component[T any](r Reader, e Entity) *T {
	st, ok := lookupStore[T](r)
	if !ok {
		return nil
	}
	return st.get(e)
}

// HasComponent reports whether the entity holds a component of type T.
func HasComponent[T any](r Reader, e Entity) bool {
	st, ok := lookupStore[T](r)
	if !ok {
		return false
	}
	return st.has(e)
}

// RemoveComponent requests removal of the entity's component of type T. The
// component is marked erased for the current window immediately, but stays
// readable until the step commit performs the physical removal. Returns false
// if the entity holds no such component.
func RemoveComponent[T any](m *Manager, e Entity) bool {
	st, ok := lookupStore[T](m)
	if !ok {
		return false
	}
	return st.requestRemove(e)
}

// Each invokes the visitor once per entity holding a component of type T, in
// an unspecified but stable-within-call order. The visitor's return value is
// advisory; iteration always completes.
func Each[T any](r Reader, visitor func(Entity, *T) bool) {
	st, ok := lookupStore[T](r)
	if !ok {
		return
	}
	st.eachOwned(visitor)
}
