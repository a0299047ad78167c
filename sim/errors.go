package sim

import "github.com/rotisserie/eris"

var (
	// ErrEntityNotFound reports an operation on a dead or never-created
	// entity where silently absorbing it would corrupt change tracking.
	// Pure queries and erasure requests absorb dead ids instead.
	ErrEntityNotFound = eris.New("entity does not exist")

	// ErrDuplicateComponent reports a second CreateComponent for the same
	// (entity, type) pair inside the component's lifetime. Creation never
	// overwrites: overwriting would make one window report the same
	// component as new twice.
	ErrDuplicateComponent = eris.New("entity already has a component of this type")

	// ErrSystemsLocked reports AddSystem after the first step has started.
	ErrSystemsLocked = eris.New("cannot add systems after the first step has started")

	// ErrNoSystemPhases reports a system that implements none of the
	// PreUpdater, Updater, or PostUpdater capabilities.
	ErrNoSystemPhases = eris.New("system implements no update phase")
)
