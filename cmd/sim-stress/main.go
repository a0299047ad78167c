package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/plus3/simstep/sim"
)

func main() {
	steps := flag.Uint64("steps", 10000, "The number of simulation steps to run.")
	entityCount := flag.Int("entities", 10000, "The initial number of entities to create.")
	spawnPerStep := flag.Int("spawn", 50, "Entities spawned per step by the churn system.")
	ttl := flag.Int("ttl", 100, "Steps an entity lives before it is erased.")
	period := flag.Duration("period", 0, "Step period (0 runs steps back to back).")
	workers := flag.Int("workers", 0, "Parallel phase workers (0 uses all CPUs).")
	jsonOut := flag.Bool("json", false, "Emit the report as JSON instead of text.")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := sim.LoadConfigFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	cfg.UpdatePeriod = *period
	cfg.Workers = *workers
	cfg.Logger = &logger

	logger.Info().Msg("starting stress run")

	// 1. Set up the server and the churn workload.
	server := sim.NewServer(cfg)

	spawner := &spawnSystem{perStep: *spawnPerStep, ttl: *ttl}
	physics := &physicsSystem{}
	decay := &decaySystem{}
	audit := &auditSystem{}

	for _, s := range []sim.System{spawner, physics, decay, audit} {
		if err := server.AddSystem(s); err != nil {
			logger.Fatal().Err(err).Msg("add system")
		}
	}

	// 2. Populate the manager before step 0, the way a world loader would.
	logger.Info().Int("entities", *entityCount).Msg("populating initial entities")
	mgr := server.Manager()
	for i := 0; i < *entityCount; i++ {
		if err := spawnOne(mgr, i%*ttl+1); err != nil {
			logger.Fatal().Err(err).Msg("populate")
		}
	}

	report := &Report{
		Steps:           *steps,
		InitialEntities: *entityCount,
		SpawnPerStep:    *spawnPerStep,
		TTL:             *ttl,
		Workers:         cfg.Workers,
		UpdatePeriod:    cfg.UpdatePeriod,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	// 3. Run the simulation.
	logger.Info().Uint64("steps", *steps).Msg("running")
	start := time.Now()
	ok := server.Run(true, *steps, false)
	report.TotalTime = time.Since(start)
	runtime.ReadMemStats(&report.MemStatsEnd)

	if !ok {
		logger.Fatal().Err(server.Err()).Msg("run aborted")
	}

	report.TotalCreated = audit.created
	report.TotalErased = audit.erased
	report.FinalEntities = mgr.EntityCount()
	report.Systems = server.Stats().Systems
	if report.TotalTime > 0 {
		report.StepsPerSecond = float64(*steps) / report.TotalTime.Seconds()
	}

	// 4. Emit the report.
	if *jsonOut {
		if err := report.GenerateJSON(os.Stdout); err != nil {
			logger.Fatal().Err(err).Msg("generate JSON report")
		}
		return
	}

	fmt.Println("\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("generate report")
	}
	fmt.Println("--- End of Report ---")
}
