package asyncedit

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/edit"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/job"
	"github.com/dm-vev/asyncedit/permission"
	"github.com/dm-vev/asyncedit/sched"
	"github.com/prometheus/client_golang/prometheus"
)

// Config contains the options for creating an Engine.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Grid is the grid edited. If nil, an in-memory grid named "world" is
	// used.
	Grid grid.Grid
	// Scheduler runs the workers of the mutation queue and delivers job
	// completions. If nil, the Engine runs its own sched.Loop.
	Scheduler sched.Scheduler
	// Workers is the number of queued jobs that may run at the same time. If
	// 0 or lower, the number of CPUs is used.
	Workers int
	// WritesPerSecond caps the cells written by queued jobs per second. Zero
	// means unlimited.
	WritesPerSecond float64
	// WriteBurst is the number of writes allowed above WritesPerSecond in a
	// burst.
	WriteBurst int
	// ReadTimeout bounds the time a read waits on the queue. Defaults to 30
	// seconds.
	ReadTimeout time.Duration
	// MaxQueued is the number of buffered writes after which an edit session
	// flushes its buffer. Defaults to edit.MaxQueued.
	MaxQueued int
	// Policy decides which operations may run asynchronously. If nil, all of
	// them may.
	Policy edit.Policy
	// Modes holds the async preference of actors. If nil, preferences are
	// kept in memory only.
	Modes *actor.Modes
	// Authority approves and logs writes. If nil, every write is allowed.
	Authority permission.Authority
	// Registerer is the prometheus registry the metrics of the queue are
	// registered with. If nil, a private registry is used.
	Registerer prometheus.Registerer
	// OnComplete, if set, is called on the main goroutine of the Scheduler for
	// every queued job that finished or was dropped.
	OnComplete func(job.Result)
}

// UserConfig is the user configuration of an Engine. It may be serialised and
// can be converted to a Config by calling UserConfig.Config().
type UserConfig struct {
	World struct {
		// Name is the name of the world edited. Protected regions refer to it.
		Name string
		// SaveData controls whether the world is stored in a LevelDB database
		// in Folder. If false, the world only lives in memory.
		SaveData bool
		// Folder is the folder that the data of the world resides in.
		Folder string
	}
	Queue struct {
		// Workers is the number of queued jobs that may run at the same time.
		// Set to 0 to use the number of CPUs.
		Workers int
		// WritesPerSecond caps the cells written by queued jobs per second.
		// Set to 0 to disable throttling.
		WritesPerSecond float64
		// WriteBurst is the number of writes allowed above WritesPerSecond in
		// a burst.
		WriteBurst int
		// ReadTimeout is the longest a read waits on the queue, for example
		// "30s".
		ReadTimeout string
		// MaxQueued is the number of buffered writes after which the buffer of
		// an edit session is flushed.
		MaxQueued int
	}
	Async struct {
		// DisabledOperations lists the operations that always run
		// synchronously, such as "makeSphere".
		DisabledOperations []string
		// ModesFile is the path to the TOML file that stores the actors that
		// opted out of async edits.
		ModesFile string
	}
	Protection struct {
		// Regions are the protected regions of the world. Only their owners
		// may edit them.
		Regions []RegionConfig
	}
}

// RegionConfig is a protected region in a UserConfig.
type RegionConfig struct {
	World string
	// Min and Max are opposite corners of the region, as [x, y, z].
	Min, Max []int
	Owners   []string
}

// Config converts a UserConfig to a Config, so that it may be used for creating
// an Engine. An error is returned if opening the world or loading the modes
// file failed.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}
	conf := Config{
		Log:             log,
		Workers:         uc.Queue.Workers,
		WritesPerSecond: uc.Queue.WritesPerSecond,
		WriteBurst:      uc.Queue.WriteBurst,
		MaxQueued:       uc.Queue.MaxQueued,
		Policy:          edit.DisableAsync(uc.Async.DisabledOperations...),
	}
	if s := strings.TrimSpace(uc.Queue.ReadTimeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return conf, fmt.Errorf("parse read timeout: %w", err)
		}
		conf.ReadTimeout = d
	}

	name := strings.TrimSpace(uc.World.Name)
	if name == "" {
		name = "world"
	}
	regions := make([]permission.Region, 0, len(uc.Protection.Regions))
	for i, r := range uc.Protection.Regions {
		if len(r.Min) != 3 || len(r.Max) != 3 {
			return conf, fmt.Errorf("protected region %d: corners must have 3 coordinates", i)
		}
		world := r.World
		if world == "" {
			world = name
		}
		regions = append(regions, permission.Region{
			World:  world,
			Area:   cube.Box(cube.Pos(r.Min), cube.Pos(r.Max)),
			Owners: r.Owners,
		})
	}
	conf.Authority = permission.Audit{Authority: permission.NewRegions(regions...), Log: log}

	var err error
	if file := strings.TrimSpace(uc.Async.ModesFile); file != "" {
		if conf.Modes, err = actor.LoadModes(file); err != nil {
			return conf, fmt.Errorf("load modes: %w", err)
		}
	}
	if uc.World.SaveData {
		if conf.Grid, err = grid.OpenLevelDB(name, uc.World.Folder, log); err != nil {
			return conf, fmt.Errorf("open world: %w", err)
		}
	} else {
		conf.Grid = grid.NewMemory(name)
	}
	return conf, nil
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.World.Name = "world"
	c.World.SaveData = true
	c.World.Folder = "world"
	c.Queue.ReadTimeout = "30s"
	c.Queue.MaxQueued = edit.MaxQueued
	c.Async.ModesFile = "modes.toml"
	return c
}
