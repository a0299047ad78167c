package sim

import (
	"reflect"
	"sync"

	"github.com/kamstrup/intmap"
)

const storeBlockSize = 64

// componentStore is the type-erased interface the Manager uses to drive every
// component type it has seen. All commit transitions (physical removal, window
// clearing) flow through this interface so the step scheduler can apply them
// uniformly across types.
type componentStore interface {
	componentType() reflect.Type
	typeID() ComponentTypeID
	has(e Entity) bool
	// markErased inserts the entity into the erased-this-window set if it
	// holds a component of this type. Removal itself stays deferred.
	markErased(e Entity) bool
	// requestRemove marks the component erased and queues its physical
	// removal for the next commit. Idempotent.
	requestRemove(e Entity) bool
	removeNow(e Entity)
	processRemovals()
	clearNew()
	clearErased()
	count() int
	newCount() int
	erasedCount() int
}

// windowSet is an insertion-ordered entity set backing the change tracker.
// Membership lives in an intmap so adds stay O(1); the order slice gives
// stable-within-call iteration.
type windowSet struct {
	members *intmap.Map[Entity, bool]
	order   []Entity
}

func newWindowSet() *windowSet {
	return &windowSet{
		members: intmap.New[Entity, bool](16),
	}
}

func (w *windowSet) add(e Entity) bool {
	if _, ok := w.members.Get(e); ok {
		return false
	}
	w.members.Put(e, true)
	w.order = append(w.order, e)
	return true
}

func (w *windowSet) clear() {
	w.members.Clear()
	w.order = w.order[:0]
}

func (w *windowSet) snapshot() []Entity {
	out := make([]Entity, len(w.order))
	copy(out, w.order)
	return out
}

// typeStore holds all components of one Go type, keyed by owning entity.
// Component values live in fixed-size blocks whose slots are reused after
// removal; blocks are held by pointer so component addresses stay valid when
// the block list grows.
type typeStore[T any] struct {
	mu sync.RWMutex

	id        ComponentTypeID
	blocks    []*[storeBlockSize]T
	owners    []Entity // per slot; NullEntity marks a free slot
	index     *intmap.Map[Entity, int]
	freeSlots []int

	newWindow    *windowSet
	erasedWindow *windowSet
	removals     []Entity
}

func newTypeStore[T any](id ComponentTypeID) *typeStore[T] {
	return &typeStore[T]{
		id:           id,
		index:        intmap.New[Entity, int](64),
		newWindow:    newWindowSet(),
		erasedWindow: newWindowSet(),
	}
}

func (s *typeStore[T]) componentType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (s *typeStore[T]) typeID() ComponentTypeID {
	return s.id
}

// create attaches a component to the entity and marks it new-this-window.
// Returns false if the entity already holds a component of this type.
func (s *typeStore[T]) create(e Entity, value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Get(e); ok {
		return false
	}

	var slot int
	if n := len(s.freeSlots); n > 0 {
		slot = s.freeSlots[n-1]
		s.freeSlots = s.freeSlots[:n-1]
	} else {
		slot = len(s.owners)
		s.owners = append(s.owners, NullEntity)
		if slot/storeBlockSize >= len(s.blocks) {
			s.blocks = append(s.blocks, new([storeBlockSize]T))
		}
	}

	s.blocks[slot/storeBlockSize][slot%storeBlockSize] = value
	s.owners[slot] = e
	s.index.Put(e, slot)
	s.newWindow.add(e)
	return true
}

// get returns a read/write pointer to the entity's component, or nil.
func (s *typeStore[T]) get(e Entity) *T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.index.Get(e)
	if !ok {
		return nil
	}
	return &s.blocks[slot/storeBlockSize][slot%storeBlockSize]
}

func (s *typeStore[T]) has(e Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index.Get(e)
	return ok
}

func (s *typeStore[T]) markErased(e Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Get(e); !ok {
		return false
	}
	s.erasedWindow.add(e)
	return true
}

func (s *typeStore[T]) requestRemove(e Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Get(e); !ok {
		return false
	}
	if s.erasedWindow.add(e) {
		s.removals = append(s.removals, e)
	}
	return true
}

func (s *typeStore[T]) removeNow(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(e)
}

func (s *typeStore[T]) removeLocked(e Entity) {
	slot, ok := s.index.Get(e)
	if !ok {
		return
	}
	s.index.Del(e)
	s.owners[slot] = NullEntity
	var zero T
	s.blocks[slot/storeBlockSize][slot%storeBlockSize] = zero
	s.freeSlots = append(s.freeSlots, slot)
}

func (s *typeStore[T]) processRemovals() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.removals {
		s.removeLocked(e)
	}
	s.removals = s.removals[:0]
}

func (s *typeStore[T]) clearNew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newWindow.clear()
}

func (s *typeStore[T]) clearErased() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.erasedWindow.clear()
}

func (s *typeStore[T]) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.owners) - len(s.freeSlots)
}

func (s *typeStore[T]) newCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.newWindow.order)
}

func (s *typeStore[T]) erasedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.erasedWindow.order)
}

// eachOwned visits every entity holding a component of this type, in slot
// order. The snapshot is taken under the read lock so visitors are free to
// call back into the store.
func (s *typeStore[T]) eachOwned(visitor func(Entity, *T) bool) {
	s.mu.RLock()
	owned := make([]Entity, 0, len(s.owners)-len(s.freeSlots))
	for _, owner := range s.owners {
		if owner != NullEntity {
			owned = append(owned, owner)
		}
	}
	s.mu.RUnlock()

	s.visit(owned, visitor)
}

func (s *typeStore[T]) eachNew(visitor func(Entity, *T) bool) {
	s.mu.RLock()
	snap := s.newWindow.snapshot()
	s.mu.RUnlock()

	s.visit(snap, visitor)
}

func (s *typeStore[T]) eachErased(visitor func(Entity, *T) bool) {
	s.mu.RLock()
	snap := s.erasedWindow.snapshot()
	s.mu.RUnlock()

	s.visit(snap, visitor)
}

// visit invokes the visitor once per entity still holding the component.
// The visitor's return value is advisory: iteration always completes.
func (s *typeStore[T]) visit(entities []Entity, visitor func(Entity, *T) bool) {
	for _, e := range entities {
		ptr := s.get(e)
		if ptr == nil {
			continue
		}
		_ = visitor(e, ptr)
	}
}
