package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	applog "storefront/internal/log"
)

// Job is one scheduled run. It receives the time it fired at.
type Job func(ctx context.Context, at time.Time) error

type Scheduler struct {
	c   *cron.Cron
	loc *time.Location
	ctx context.Context
}

// New builds a scheduler evaluating specs in loc. Jobs run with ctx.
func New(ctx context.Context, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{}
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		loc: loc,
		ctx: ctx,
	}
}

// Location resolves a timezone name; empty means the server's local zone.
func Location(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule: timezone %q: %w", tz, err)
	}
	return loc, nil
}

// DailySpec turns "HH:MM" into a five-field cron spec.
func DailySpec(at string) (string, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(at), ":")
	if !ok {
		return "", fmt.Errorf("schedule: %q is not HH:MM", at)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("schedule: bad hour in %q", at)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("schedule: bad minute in %q", at)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// AddDaily runs job once a day at "HH:MM". Each run is logged as
// <name>.sent or <name>.fail.
func (s *Scheduler) AddDaily(at, name string, job Job) (cron.EntryID, error) {
	spec, err := DailySpec(at)
	if err != nil {
		return 0, err
	}
	return s.c.AddFunc(spec, func() { s.run(name, job) })
}

func (s *Scheduler) run(name string, job Job) {
	now := time.Now().In(s.loc)
	if err := job(s.ctx, now); err != nil {
		applog.Error(nil, name+".fail", err, nil)
		return
	}
	applog.Info(nil, name+".sent", map[string]any{"at": now.Format(time.RFC3339)})
}

func (s *Scheduler) Entries() []cron.Entry { return s.c.Entries() }

func (s *Scheduler) Start() { s.c.Start() }

// Stop prevents new runs and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	applog.Info(nil, "cron."+msg, pairs(kv))
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	applog.Error(nil, "cron."+msg, err, pairs(kv))
}

func pairs(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
