package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/simstep/sim"
)

type pose struct {
	X, Y, Z float64
}

type velocity struct {
	DX, DY, DZ float64
}

func TestManagerEntityLifecycle(t *testing.T) {
	mgr := sim.NewManager()

	assert.Equal(t, 0, mgr.EntityCount())
	assert.False(t, mgr.Exists(sim.NullEntity))

	e1 := mgr.CreateEntity()
	e2 := mgr.CreateEntity()

	assert.NotEqual(t, sim.NullEntity, e1)
	assert.NotEqual(t, sim.NullEntity, e2)
	assert.NotEqual(t, e1, e2)
	assert.True(t, mgr.Exists(e1))
	assert.True(t, mgr.Exists(e2))
	assert.Equal(t, 2, mgr.EntityCount())

	// Erasure is deferred: the entity stays live until the commit.
	mgr.RequestEraseEntity(e1)
	assert.True(t, mgr.Exists(e1))
	assert.Equal(t, 2, mgr.EntityCount())

	mgr.ProcessEraseRequests()
	assert.False(t, mgr.Exists(e1))
	assert.True(t, mgr.Exists(e2))
	assert.Equal(t, 1, mgr.EntityCount())
}

func TestManagerEraseIsIdempotent(t *testing.T) {
	mgr := sim.NewManager()
	e := mgr.CreateEntity()
	_, err := sim.CreateComponent(mgr, e, pose{X: 1})
	require.NoError(t, err)

	mgr.RequestEraseEntity(e)
	mgr.RequestEraseEntity(e)
	mgr.RequestEraseEntity(e)

	erased := 0
	sim.EachErased[pose](mgr, func(sim.Entity, *pose) bool {
		erased++
		return true
	})
	assert.Equal(t, 1, erased)

	mgr.ProcessEraseRequests()
	assert.False(t, mgr.Exists(e))
	assert.Equal(t, 0, mgr.EntityCount())

	// Requests against a retired id are no-ops.
	mgr.RequestEraseEntity(e)
	mgr.ProcessEraseRequests()
	assert.Equal(t, 0, mgr.EntityCount())
}

func TestManagerIdentifiersNeverReused(t *testing.T) {
	mgr := sim.NewManager()

	e1 := mgr.CreateEntity()
	mgr.RequestEraseEntity(e1)
	mgr.ProcessEraseRequests()

	// The slot may be recycled, but the packed identifier must differ.
	e2 := mgr.CreateEntity()
	assert.NotEqual(t, e1, e2)
	assert.False(t, mgr.Exists(e1))
	assert.True(t, mgr.Exists(e2))
}

func TestCreateComponent(t *testing.T) {
	t.Run("attach and read back", func(t *testing.T) {
		mgr := sim.NewManager()
		e := mgr.CreateEntity()

		key, err := sim.CreateComponent(mgr, e, pose{X: 1, Y: 2})
		require.NoError(t, err)
		assert.Equal(t, e, key.Entity)

		p := sim.Component[pose](mgr, e)
		require.NotNil(t, p)
		assert.Equal(t, 1.0, p.X)
		assert.Equal(t, 2.0, p.Y)

		// The pointer is read/write.
		p.X = 42
		assert.Equal(t, 42.0, sim.Component[pose](mgr, e).X)
	})

	t.Run("duplicate fails and leaves state unchanged", func(t *testing.T) {
		mgr := sim.NewManager()
		e := mgr.CreateEntity()

		_, err := sim.CreateComponent(mgr, e, 10)
		require.NoError(t, err)

		_, err = sim.CreateComponent(mgr, e, 99)
		assert.ErrorIs(t, err, sim.ErrDuplicateComponent)
		assert.Equal(t, 10, *sim.Component[int](mgr, e))

		newCount := 0
		sim.EachNew[int](mgr, func(sim.Entity, *int) bool {
			newCount++
			return true
		})
		assert.Equal(t, 1, newCount)
	})

	t.Run("dead entity fails", func(t *testing.T) {
		mgr := sim.NewManager()
		e := mgr.CreateEntity()
		mgr.RequestEraseEntity(e)
		mgr.ProcessEraseRequests()

		_, err := sim.CreateComponent(mgr, e, pose{})
		assert.ErrorIs(t, err, sim.ErrEntityNotFound)
	})

	t.Run("different types coexist on one entity", func(t *testing.T) {
		mgr := sim.NewManager()
		e := mgr.CreateEntity()

		k1, err := sim.CreateComponent(mgr, e, pose{X: 1})
		require.NoError(t, err)
		k2, err := sim.CreateComponent(mgr, e, velocity{DX: 2})
		require.NoError(t, err)
		assert.NotEqual(t, k1.Type, k2.Type)

		assert.True(t, sim.HasComponent[pose](mgr, e))
		assert.True(t, sim.HasComponent[velocity](mgr, e))
	})
}

func TestComponentQueriesAbsorbMisses(t *testing.T) {
	mgr := sim.NewManager()
	e := mgr.CreateEntity()

	// No store for the type yet.
	assert.Nil(t, sim.Component[pose](mgr, e))
	assert.False(t, sim.HasComponent[pose](mgr, e))

	// Store exists, entity has no component.
	other := mgr.CreateEntity()
	_, err := sim.CreateComponent(mgr, other, pose{})
	require.NoError(t, err)
	assert.Nil(t, sim.Component[pose](mgr, e))

	// Dead entity.
	assert.Nil(t, sim.Component[pose](mgr, sim.NullEntity))
}

func TestRemoveComponent(t *testing.T) {
	mgr := sim.NewManager()
	e := mgr.CreateEntity()
	_, err := sim.CreateComponent(mgr, e, velocity{DX: 3})
	require.NoError(t, err)

	// Removal is deferred: the component is marked erased but stays
	// readable until the commit.
	assert.True(t, sim.RemoveComponent[velocity](mgr, e))

	erased := 0
	sim.EachErased[velocity](mgr, func(_ sim.Entity, v *velocity) bool {
		erased++
		assert.Equal(t, 3.0, v.DX)
		return true
	})
	assert.Equal(t, 1, erased)
	require.NotNil(t, sim.Component[velocity](mgr, e))

	// Re-requesting before the commit is a no-op.
	assert.True(t, sim.RemoveComponent[velocity](mgr, e))

	mgr.ProcessEraseRequests()
	mgr.ClearNewlyCreated()
	mgr.ClearErased()

	assert.Nil(t, sim.Component[velocity](mgr, e))
	assert.False(t, sim.RemoveComponent[velocity](mgr, e))
	assert.True(t, mgr.Exists(e))
}

func TestEachVisitsAllComponents(t *testing.T) {
	mgr := sim.NewManager()

	want := map[sim.Entity]float64{}
	for i := 0; i < 5; i++ {
		e := mgr.CreateEntity()
		_, err := sim.CreateComponent(mgr, e, pose{X: float64(i)})
		require.NoError(t, err)
		want[e] = float64(i)
	}

	got := map[sim.Entity]float64{}
	sim.Each[pose](mgr, func(e sim.Entity, p *pose) bool {
		got[e] = p.X
		return true
	})
	assert.Equal(t, want, got)

	// The visitor's return value is advisory; iteration completes anyway.
	visited := 0
	sim.Each[pose](mgr, func(sim.Entity, *pose) bool {
		visited++
		return false
	})
	assert.Equal(t, 5, visited)
}

func TestRequestEraseEntities(t *testing.T) {
	mgr := sim.NewManager()
	for i := 0; i < 4; i++ {
		e := mgr.CreateEntity()
		_, err := sim.CreateComponent(mgr, e, i)
		require.NoError(t, err)
	}

	mgr.RequestEraseEntities()

	erased := 0
	sim.EachErased[int](mgr, func(sim.Entity, *int) bool {
		erased++
		return true
	})
	assert.Equal(t, 4, erased)

	mgr.ProcessEraseRequests()
	assert.Equal(t, 0, mgr.EntityCount())
}
