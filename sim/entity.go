package sim

// Entity encodes both the slot generation (upper 32 bits) and the slot index (lower 32 bits).
// Generations start at 1 and are bumped every time a slot is retired, so an identifier is
// never live twice.
type Entity uint64

// NullEntity denotes "no entity". No live identifier ever equals it because
// generations start at 1.
const NullEntity Entity = 0

// newEntity creates an Entity from a slot generation and slot index.
func newEntity(generation uint32, slot uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(slot))
}

// Generation extracts the slot generation from the entity identifier.
func (e Entity) Generation() uint32 {
	return uint32(e >> 32)
}

// Slot extracts the slot index from the entity identifier.
func (e Entity) Slot() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// ComponentTypeID identifies a component type within a single Manager.
// IDs are assigned sequentially the first time a type is seen.
type ComponentTypeID uint32

// ComponentKey identifies one attached component: the (type, entity) pair.
type ComponentKey struct {
	Type   ComponentTypeID
	Entity Entity
}
