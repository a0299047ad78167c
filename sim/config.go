package sim

import (
	"runtime"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config holds the server settings.
type Config struct {
	// UpdatePeriod is the simulated duration of one step and the pacing of
	// the run loop. Zero runs steps back to back.
	UpdatePeriod time.Duration
	// Workers bounds the parallel fan-out of the Update and PostUpdate
	// phases. Zero or negative uses the number of CPUs.
	Workers int
	// Logger receives structured server logs. Nil disables logging.
	Logger *zerolog.Logger
}

// DefaultConfig returns the settings used when nothing is configured:
// a 1ms step, CPU-bound worker fan-out, no logging.
func DefaultConfig() Config {
	return Config{
		UpdatePeriod: time.Millisecond,
		Workers:      defaultWorkers(),
	}
}

func defaultWorkers() int {
	return runtime.NumCPU()
}

// envConfig is the environment surface: SIM_UPDATE_PERIOD_MS, SIM_WORKERS.
type envConfig struct {
	SimUpdatePeriodMs int
	SimWorkers        int
}

// LoadConfigFromEnv builds a Config from defaults overridden by environment
// variables.
func LoadConfigFromEnv() (Config, error) {
	var env envConfig
	if err := jlconfig.FromEnv().To(&env); err != nil {
		return Config{}, eris.Wrap(err, "load server config from env")
	}

	cfg := DefaultConfig()
	if env.SimUpdatePeriodMs > 0 {
		cfg.UpdatePeriod = time.Duration(env.SimUpdatePeriodMs) * time.Millisecond
	}
	if env.SimWorkers > 0 {
		cfg.Workers = env.SimWorkers
	}
	return cfg, nil
}
