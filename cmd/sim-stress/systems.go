package main

import (
	"sync/atomic"

	"github.com/plus3/simstep/sim"
)

type pose struct {
	X, Y, Z float64
}

type velocity struct {
	DX, DY, DZ float64
}

type lifetime struct {
	TTL int
}

func spawnOne(mgr *sim.Manager, ttl int) error {
	e := mgr.CreateEntity()
	if _, err := sim.CreateComponent(mgr, e, pose{}); err != nil {
		return err
	}
	if _, err := sim.CreateComponent(mgr, e, velocity{DX: 1, DY: 2, DZ: 3}); err != nil {
		return err
	}
	if _, err := sim.CreateComponent(mgr, e, lifetime{TTL: ttl}); err != nil {
		return err
	}
	return nil
}

// spawnSystem churns the store by creating fresh entities every step.
type spawnSystem struct {
	perStep int
	ttl     int
}

func (s *spawnSystem) PreUpdate(_ sim.UpdateInfo, mgr *sim.Manager) error {
	for i := 0; i < s.perStep; i++ {
		if err := spawnOne(mgr, s.ttl); err != nil {
			return err
		}
	}
	return nil
}

// physicsSystem integrates velocities into poses.
type physicsSystem struct{}

func (physicsSystem) Update(info sim.UpdateInfo, mgr *sim.Manager) error {
	dt := info.Dt.Seconds()
	sim.Each[velocity](mgr, func(e sim.Entity, v *velocity) bool {
		if p := sim.Component[pose](mgr, e); p != nil {
			p.X += v.DX * dt
			p.Y += v.DY * dt
			p.Z += v.DZ * dt
		}
		return true
	})
	return nil
}

// decaySystem counts entities down and requests their erasure at zero.
type decaySystem struct{}

func (decaySystem) Update(_ sim.UpdateInfo, mgr *sim.Manager) error {
	sim.Each[lifetime](mgr, func(e sim.Entity, l *lifetime) bool {
		l.TTL--
		if l.TTL <= 0 {
			mgr.RequestEraseEntity(e)
		}
		return true
	})
	return nil
}

// auditSystem tallies the change-tracking windows each step.
type auditSystem struct {
	created int64
	erased  int64
}

func (a *auditSystem) PostUpdate(_ sim.UpdateInfo, mgr sim.Reader) error {
	sim.EachNew[lifetime](mgr, func(sim.Entity, *lifetime) bool {
		atomic.AddInt64(&a.created, 1)
		return true
	})
	sim.EachErased[lifetime](mgr, func(sim.Entity, *lifetime) bool {
		atomic.AddInt64(&a.erased, 1)
		return true
	})
	return nil
}
