package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "rafflebot/pkg/logx"
)

// Config is the runtime form of the backup config section.
type Config struct {
	Enabled  bool
	Schedule string
	Dir      string
	Keep     int
	Timezone string
}

// Source provides the members to snapshot.
type Source interface {
	SnapshotSorted() []int64
}

// Dispatcher runs job on the caller's serial action loop. It must return once
// the job has been accepted or rejected; it need not wait for completion.
type Dispatcher func(ctx context.Context, name string, job func(ctx context.Context)) error

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a cron spec (five fields or a descriptor).
func ParseSchedule(spec string) error {
	_, err := parser.Parse(strings.TrimSpace(spec))
	return err
}

// Scheduler fires backups on a cron schedule. Apply may be called at any time
// to enable, disable or reschedule.
type Scheduler struct {
	src      Source
	dispatch Dispatcher
	log      logx.Logger

	mu      sync.Mutex
	ctx     context.Context
	cfg     Config
	c       *cron.Cron
	writer  *Writer
	entry   cron.EntryID
	lastRes Result
}

func NewScheduler(src Source, dispatch Dispatcher, log logx.Logger) *Scheduler {
	return &Scheduler{src: src, dispatch: dispatch, log: log}
}

// Run starts scheduling and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	err := s.restartLocked()
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("backup schedule invalid; backups disabled", logx.Err(err))
	}

	<-ctx.Done()

	s.mu.Lock()
	c := s.c
	s.c, s.ctx = nil, nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	return nil
}

// Apply swaps the config. While running, the cron is rebuilt.
func (s *Scheduler) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == cfg {
		return nil
	}
	s.cfg = cfg
	if s.ctx == nil {
		return nil
	}
	return s.restartLocked()
}

func (s *Scheduler) restartLocked() error {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	cfg := s.cfg
	s.writer = NewWriter(cfg.Dir, cfg.Keep, s.log)
	if !cfg.Enabled {
		s.log.Debug("backups disabled")
		return nil
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.log})))
	ctx := s.ctx
	id, err := c.AddFunc(strings.TrimSpace(cfg.Schedule), func() { s.fire(ctx) })
	if err != nil {
		return fmt.Errorf("backup schedule %q: %w", cfg.Schedule, err)
	}
	s.c, s.entry = c, id
	c.Start()
	s.log.Info("backups scheduled",
		logx.String("schedule", cfg.Schedule),
		logx.String("dir", cfg.Dir),
		logx.Int("keep", cfg.Keep),
		logx.Time("next", c.Entry(id).Next),
	)
	return nil
}

// fire must not take s.mu: restartLocked holds it while waiting for running
// cron jobs to finish.
func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.dispatchBackup(ctx, nil); err != nil {
		s.log.Warn("backup not dispatched", logx.Err(err))
	}
}

// RunNow dispatches one backup and waits for it to finish.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	if err := s.dispatchBackup(ctx, func(r Result, err error) { done <- outcome{r, err} }); err != nil {
		return Result{}, err
	}
	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (s *Scheduler) dispatchBackup(ctx context.Context, onDone func(Result, error)) error {
	job := func(context.Context) {
		res, err := s.WriteNow()
		if err != nil {
			s.log.Error("backup failed", logx.Err(err))
		}
		if onDone != nil {
			onDone(res, err)
		}
	}
	if s.dispatch == nil {
		job(ctx)
		return nil
	}
	return s.dispatch(ctx, "backup", job)
}

// WriteNow writes a backup on the calling goroutine. Callers already running
// on the action loop use it instead of RunNow.
func (s *Scheduler) WriteNow() (Result, error) {
	s.mu.Lock()
	w := s.writer
	if w == nil {
		w = NewWriter(s.cfg.Dir, s.cfg.Keep, s.log)
		s.writer = w
	}
	s.mu.Unlock()
	if strings.TrimSpace(w.Dir) == "" {
		return Result{}, errors.New("backup dir is not set")
	}
	res, err := w.Write(s.src.SnapshotSorted())
	s.mu.Lock()
	s.lastRes = res
	s.mu.Unlock()
	return res, err
}

// Last returns the most recent backup result.
func (s *Scheduler) Last() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRes
}

// Next returns the next scheduled run, or the zero time when disabled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("backup timezone %q: %w", tz, err)
	}
	return loc, nil
}

// cronLogger adapts logx to cron's logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Warn("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
