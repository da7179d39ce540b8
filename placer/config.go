package placer

import (
	"log/slog"
	"runtime"

	"github.com/dm-vev/asyncedit/job"
	"github.com/dm-vev/asyncedit/sched"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Config holds the tunable parameters of a Placer. The zero value is usable;
// defaults are applied by withDefaults.
type Config struct {
	// Log is the Logger that failing jobs are reported to. If nil, Log is set
	// to slog.Default().
	Log *slog.Logger
	// Workers is the number of entries that may run at the same time. Entries
	// of the same actor never run concurrently. Defaults to runtime.NumCPU().
	Workers int
	// Scheduler starts the workers and delivers completion callbacks. If nil,
	// sched.Goroutines{} is used.
	Scheduler sched.Scheduler
	// Registry tracks outstanding entries. A new Registry is created if nil.
	Registry *job.Registry
	// WritesPerSecond caps the number of cells written by queued jobs per
	// second, shared by all actors. Zero means unlimited.
	WritesPerSecond float64
	// WriteBurst is the number of writes allowed above WritesPerSecond in a
	// burst. Defaults to the rate rounded up, or 1.
	WriteBurst int
	// OnComplete, if set, is called on the main goroutine of the Scheduler
	// with the result of every entry taken off the queue.
	OnComplete func(job.Result)
	// Registerer is the registry metrics are registered with. If nil, a new
	// private prometheus.Registry is used.
	Registerer prometheus.Registerer
}

func (c Config) withDefaults() Config {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Scheduler == nil {
		c.Scheduler = sched.Goroutines{}
	}
	if c.Registry == nil {
		c.Registry = job.NewRegistry()
	}
	if c.WritesPerSecond > 0 && c.WriteBurst <= 0 {
		c.WriteBurst = max(1, int(c.WritesPerSecond+0.999))
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.NewRegistry()
	}
	return c
}

func (c Config) limiter() *rate.Limiter {
	if c.WritesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.WritesPerSecond), c.WriteBurst)
}
