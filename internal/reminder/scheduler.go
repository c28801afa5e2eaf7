package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pathakanu/waterit/internal/logging"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Ticker is the narrow view of the Orchestrator the scheduler drives.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (TickResult, error)
}

// Scheduler owns the cron timer that triggers ticks. A firing is skipped while
// the previous tick is still running.
type Scheduler struct {
	cron     *cron.Cron
	job      cron.Job
	ticker   Ticker
	clock    clock.Clock
	interval time.Duration
	log      *zap.Logger

	// ctx is cancelled by Stop so an in-flight tick abandons its deliveries.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler returns a Scheduler firing ticker every interval.
func NewScheduler(ticker Ticker, clk clock.Clock, interval time.Duration, log *zap.Logger) *Scheduler {
	log = log.Named("scheduler")
	cronLog := logging.CronLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog)),
		ticker:   ticker,
		clock:    clk,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.job = cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(s.runTick))
	return s
}

// Start registers the tick job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddJob(fmt.Sprintf("@every %s", s.interval), s.job); err != nil {
		return fmt.Errorf("schedule reminder tick: %w", err)
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the timer, cancels a running tick and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// RunOnce performs one tick at the clock's current time.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.clock.Now()
	res, err := s.ticker.Tick(ctx, now)
	if err != nil {
		s.log.Error("reminder tick failed", zap.Time("now", now), zap.Error(err))
		return
	}
	if res.Due > 0 {
		s.log.Info("reminder tick",
			zap.Int("due", res.Due),
			zap.Int("fired", res.Fired),
			zap.Int("orphaned", res.Orphaned),
			zap.Int("delivered", res.Delivered),
			zap.Int("pruned", res.Pruned),
		)
	}
}

func (s *Scheduler) runTick() {
	s.RunOnce(s.ctx)
}
