package retention

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"dialer-platform/internal/trash"
	"dialer-platform/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Observer receives purge counts, typically the metrics registry.
type Observer interface {
	TrashRecorded(entity, operation string, affected int)
}

// Job purges rows that have sat in the trash longer than the retention window.
type Job struct {
	mgr      *trash.Manager
	cron     *cron.Cron
	schedule string
	age      time.Duration
	log      *slog.Logger
	observer Observer
	timeout  time.Duration
}

func NewJob(mgr *trash.Manager, schedule string, days int, log *slog.Logger) (*Job, error) {
	if mgr == nil {
		return nil, errors.New("retention: trash manager is nil")
	}
	if days <= 0 {
		return nil, errors.New("retention: days must be positive")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Job{
		mgr:      mgr,
		cron:     cron.New(),
		schedule: schedule,
		age:      time.Duration(days) * 24 * time.Hour,
		log:      log,
		timeout:  10 * time.Minute,
	}, nil
}

func (j *Job) SetObserver(o Observer) { j.observer = o }

// RunOnce purges every registered entity type and returns per-type counts.
// A failure on one type does not stop the others.
func (j *Job) RunOnce(ctx context.Context) (map[trash.EntityType]int, error) {
	ctx = logger.With(ctx, j.log)
	types := j.mgr.EntityTypes()
	sort.Slice(types, func(a, b int) bool { return types[a] < types[b] })

	out := make(map[trash.EntityType]int, len(types))
	var errs []error
	for _, t := range types {
		n, err := j.mgr.PurgeExpired(ctx, t, j.age)
		if err != nil {
			j.log.Error("retention purge failed", "entity", string(t), "err", err)
			errs = append(errs, err)
			continue
		}
		out[t] = n
		if j.observer != nil {
			j.observer.TrashRecorded(string(t), "retention_purge", n)
		}
		j.log.Info("retention purge", "entity", string(t), "affected", n)
	}
	return out, errors.Join(errs...)
}

// Start schedules RunOnce and returns immediately.
func (j *Job) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		_, _ = j.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	j.log.Info("retention job scheduled", "schedule", j.schedule, "retention", j.age.String())
	j.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running purge to finish or ctx to expire.
func (j *Job) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
