package schedule

import (
	"github.com/TheBitDrifter/depot"
	"go.uber.org/zap"
)

type Option func(*Scheduler) error

// WithWorkers bounds the number of systems running at once. Zero selects
// runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(s *Scheduler) error {
		s.pool = depot.NewWorkerPool(n)
		return nil
	}
}

func WithPool(pool *depot.WorkerPool) Option {
	return func(s *Scheduler) error {
		if pool != nil {
			s.pool = pool
		}
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// WithSettings applies the workers and log_level entries of settings.
func WithSettings(settings *depot.Settings) Option {
	return func(s *Scheduler) error {
		s.pool = depot.NewWorkerPool(settings.Workers)
		if settings.LogLevel == "" {
			return nil
		}
		logger, err := settings.Logger()
		if err != nil {
			return err
		}
		s.log = logger
		return nil
	}
}
