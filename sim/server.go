package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ServerStats provides statistics about step execution.
type ServerStats struct {
	SystemCount     int
	TotalExecutions int64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system, aggregated
// across all of its phase callbacks.
type SystemStats struct {
	Name           string
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	name           string
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

func (st *systemStatsInternal) record(d time.Duration) {
	st.executionCount++
	st.lastDuration = d
	st.totalDuration += d
	if d < st.minDuration {
		st.minDuration = d
	}
	if d > st.maxDuration {
		st.maxDuration = d
	}
}

// hook binds one phase capability of a registered system to its stats entry.
type hook[P any] struct {
	sys   P
	name  string
	stats *systemStatsInternal
}

// Server drives the simulation: it owns the Manager, the registered systems,
// and the step boundary. Each step runs PreUpdate sequentially in
// registration order, then Update and PostUpdate with parallel fan-out and a
// barrier between phases, then commits pending erasures and clears the
// change-tracking windows.
type Server struct {
	mgr     *Manager
	log     zerolog.Logger
	workers int

	mu           sync.Mutex
	systems      []System
	pre          []hook[PreUpdater]
	up           []hook[Updater]
	post         []hook[PostUpdater]
	stats        []*systemStatsInternal
	updatePeriod time.Duration
	started      bool
	runErr       error
	stop         chan struct{}
	stopped      bool

	running    atomic.Bool
	paused     atomic.Bool
	iterations atomic.Uint64

	// run-loop state, touched only by the goroutine executing runLoop
	simTime   time.Duration
	wallStart time.Time
}

// NewServer creates an idle server with the given configuration. World/scene
// loading can populate the manager through Manager() before the first step.
func NewServer(cfg Config) *Server {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers()
	}
	return &Server{
		mgr:          NewManager(),
		log:          logger,
		workers:      workers,
		updatePeriod: cfg.UpdatePeriod,
	}
}

// Manager returns the entity/component manager owned by this server.
func (s *Server) Manager() *Manager {
	return s.mgr
}

// SetUpdatePeriod sets the simulated duration of one step and the pacing of
// the run loop. Takes effect on the next Run invocation.
func (s *Server) SetUpdatePeriod(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatePeriod = d
}

// UpdatePeriod returns the configured step period.
func (s *Server) UpdatePeriod() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePeriod
}

// AddSystem appends a system to the registration order. The system must
// implement at least one of PreUpdater, Updater, or PostUpdater. Systems
// cannot be added once the first step has started.
func (s *Server) AddSystem(sys System) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := systemName(sys)
	if s.started {
		return eris.Wrapf(ErrSystemsLocked, "add system %s", name)
	}

	pre, hasPre := sys.(PreUpdater)
	up, hasUp := sys.(Updater)
	post, hasPost := sys.(PostUpdater)
	if !hasPre && !hasUp && !hasPost {
		return eris.Wrapf(ErrNoSystemPhases, "add system %s", name)
	}

	st := &systemStatsInternal{
		name:        name,
		minDuration: time.Duration(1<<63 - 1),
	}
	s.systems = append(s.systems, sys)
	s.stats = append(s.stats, st)
	if hasPre {
		s.pre = append(s.pre, hook[PreUpdater]{sys: pre, name: name, stats: st})
	}
	if hasUp {
		s.up = append(s.up, hook[Updater]{sys: up, name: name, stats: st})
	}
	if hasPost {
		s.post = append(s.post, hook[PostUpdater]{sys: post, name: name, stats: st})
	}

	s.log.Debug().
		Str("system", name).
		Bool("pre_update", hasPre).
		Bool("update", hasUp).
		Bool("post_update", hasPost).
		Msg("system registered")
	return nil
}

// SystemCount returns the number of registered systems.
func (s *Server) SystemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.systems)
}

// Running reports whether a Run invocation is currently executing steps.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Iterations returns the number of steps executed so far.
func (s *Server) Iterations() uint64 {
	return s.iterations.Load()
}

// SetPaused pauses or resumes the simulation. Paused steps still invoke all
// phases, with UpdateInfo.Paused set and zero dt, and simulated time frozen.
func (s *Server) SetPaused(paused bool) {
	s.paused.Store(paused)
}

// Paused reports whether the simulation is paused.
func (s *Server) Paused() bool {
	return s.paused.Load()
}

// Err returns the callback failure that aborted the most recent run, or nil.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Stop cancels steps that have not yet started. A step in progress runs to
// completion, including its commit. Safe to call at any time.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil && !s.stopped {
		close(s.stop)
		s.stopped = true
	}
}

// Run executes the given number of simulation steps. With blocking true it
// returns once all steps have completed, reporting false if a callback
// failure aborted the run (the cause is available through Err). With blocking
// false the steps proceed on an internal goroutine and Run reports whether
// they were started. A server runs at most one loop at a time.
func (s *Server) Run(blocking bool, steps uint64, paused bool) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("run requested while server is already running")
		return false
	}

	s.paused.Store(paused)

	s.mu.Lock()
	s.started = true
	s.runErr = nil
	s.stop = make(chan struct{})
	s.stopped = false
	period := s.updatePeriod
	stop := s.stop
	s.mu.Unlock()

	s.wallStart = time.Now()
	s.log.Info().Uint64("steps", steps).Bool("paused", paused).Msg("run starting")

	if !blocking {
		go func() {
			s.runLoop(steps, period, stop)
			s.running.Store(false)
		}()
		return true
	}

	err := s.runLoop(steps, period, stop)
	s.running.Store(false)
	return err == nil
}

func (s *Server) runLoop(steps uint64, period time.Duration, stop <-chan struct{}) error {
	var ticker *time.Ticker
	if period > 0 {
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	for i := uint64(0); i < steps; i++ {
		if ticker != nil {
			select {
			case <-stop:
				return nil
			case <-ticker.C:
			}
		} else {
			select {
			case <-stop:
				return nil
			default:
			}
		}

		if err := s.step(period); err != nil {
			s.mu.Lock()
			s.runErr = err
			s.mu.Unlock()
			s.log.Error().Err(err).Uint64("iteration", s.iterations.Load()).Msg("step aborted")
			return err
		}
	}
	return nil
}

// step runs one update window: the three phases followed by the commit. A
// callback failure aborts the step before its commit; earlier steps stand.
func (s *Server) step(period time.Duration) error {
	paused := s.paused.Load()
	it := s.iterations.Add(1)

	dt := period
	if paused {
		dt = 0
	} else {
		s.simTime += period
	}

	info := UpdateInfo{
		SimTime:    s.simTime,
		RealTime:   time.Since(s.wallStart),
		Dt:         dt,
		Iterations: it,
		Paused:     paused,
	}

	// PreUpdate is strictly sequential: systems may depend on side effects
	// of earlier-registered systems within this phase.
	for _, h := range s.pre {
		if err := s.timed(h.stats, func() error { return h.sys.PreUpdate(info, s.mgr) }); err != nil {
			return eris.Wrapf(err, "pre-update failed in system %s", h.name)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, h := range s.up {
		g.Go(func() error {
			if err := s.timed(h.stats, func() error { return h.sys.Update(info, s.mgr) }); err != nil {
				return eris.Wrapf(err, "update failed in system %s", h.name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g = new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, h := range s.post {
		g.Go(func() error {
			if err := s.timed(h.stats, func() error { return h.sys.PostUpdate(info, s.mgr) }); err != nil {
				return eris.Wrapf(err, "post-update failed in system %s", h.name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mgr.ProcessEraseRequests()
	s.mgr.ClearNewlyCreated()
	s.mgr.ClearErased()
	return nil
}

// timed runs one callback and records its duration. Phases are separated by
// barriers and a system has at most one callback per phase, so each stats
// entry is touched by one goroutine at a time.
func (s *Server) timed(st *systemStatsInternal, fn func() error) error {
	start := time.Now()
	err := fn()
	st.record(time.Since(start))
	return err
}

// Stats returns statistics about system execution.
func (s *Server) Stats() *ServerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &ServerStats{
		SystemCount: len(s.systems),
		Systems:     make([]SystemStats, len(s.stats)),
	}

	var totalExecs int64
	for i, internal := range s.stats {
		avgDuration := time.Duration(0)
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
		}

		stats.Systems[i] = SystemStats{
			Name:           internal.name,
			ExecutionCount: internal.executionCount,
			MinDuration:    internal.minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		}
		totalExecs += internal.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
