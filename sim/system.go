package sim

import "reflect"

// System is a unit of plugin behavior driven by the Server. The interface is
// deliberately empty: a system advertises the phases it participates in by
// implementing one or more of PreUpdater, Updater, and PostUpdater.
// Server.AddSystem rejects values that implement none of them.
type System interface{}

// PreUpdater runs at the start of every step, strictly in registration order.
// Entity and component mutations made here are visible to the rest of the
// same step.
type PreUpdater interface {
	PreUpdate(info UpdateInfo, mgr *Manager) error
}

// Updater runs after the PreUpdate phase. Updaters may run concurrently with
// each other; correctness must not depend on their relative order. Mutations
// must stay confined to entities the system owns.
type Updater interface {
	Update(info UpdateInfo, mgr *Manager) error
}

// PostUpdater runs after the Update phase with read-only manager access.
// PostUpdaters may run concurrently with each other.
type PostUpdater interface {
	PostUpdate(info UpdateInfo, mgr Reader) error
}

// Reader is the read-only view of a Manager handed to PostUpdate callbacks.
// All query operations (Component, HasComponent, Each, EachNew, EachErased)
// accept a Reader, so they work in every phase.
type Reader interface {
	Exists(e Entity) bool
	EntityCount() int

	componentStoreFor(t reflect.Type) componentStore
}

var _ Reader = (*Manager)(nil)

// systemName returns the concrete type name of a system for logging and stats.
func systemName(sys System) string {
	t := reflect.TypeOf(sys)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
