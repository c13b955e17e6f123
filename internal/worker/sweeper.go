package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/config"
	"github.com/fieldforcemrser2026/syntoniqa/internal/escalation"
	"github.com/fieldforcemrser2026/syntoniqa/internal/sla"
)

// Sweeper schedules the periodic SLA and escalation sweeps. Each sweep
// holds its own non-reentrant guard: if a run is still going when the next
// tick fires, the tick is dropped rather than overlapped, which keeps the
// daily-dedupe check a plain check-then-insert.
type Sweeper struct {
	slaEngine *sla.Engine
	monitor   *escalation.Monitor
	logger    *zap.Logger
	cfg       config.SweepConfig
	cron      *cron.Cron

	slaBusy        sync.Mutex
	escalationBusy sync.Mutex

	statusMu          sync.Mutex
	lastSLARun        time.Time
	lastEscalationRun time.Time
}

// NewSweeper constructs the sweeper.
func NewSweeper(engine *sla.Engine, monitor *escalation.Monitor, logger *zap.Logger, cfg config.SweepConfig) *Sweeper {
	if cfg.SLASchedule == "" {
		cfg.SLASchedule = "*/15 * * * *"
	}
	if cfg.EscalationSchedule == "" {
		cfg.EscalationSchedule = "*/15 * * * *"
	}
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = 5 * time.Minute
	}
	return &Sweeper{
		slaEngine: engine,
		monitor:   monitor,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(),
	}
}

// Start registers the cron entries and begins scheduling.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.SLASchedule, s.runSLASweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.EscalationSchedule, s.runEscalationSweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sweeper started",
		zap.String("sla_schedule", s.cfg.SLASchedule),
		zap.String("escalation_schedule", s.cfg.EscalationSchedule))
	return nil
}

// Stop halts scheduling and waits for any in-flight run to return.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.slaBusy.Lock()
	s.slaBusy.Unlock()
	s.escalationBusy.Lock()
	s.escalationBusy.Unlock()
}

// LastRuns reports when each sweep last completed successfully. Zero times
// mean the sweep has not finished a run since startup; the readiness probe
// surfaces this so a wedged scheduler is visible before tickets go stale.
func (s *Sweeper) LastRuns() (slaRun, escalationRun time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastSLARun, s.lastEscalationRun
}

func (s *Sweeper) markSLARun(at time.Time) {
	s.statusMu.Lock()
	s.lastSLARun = at
	s.statusMu.Unlock()
}

func (s *Sweeper) markEscalationRun(at time.Time) {
	s.statusMu.Lock()
	s.lastEscalationRun = at
	s.statusMu.Unlock()
}

func (s *Sweeper) runSLASweep() {
	if !s.slaBusy.TryLock() {
		s.logger.Warn("sla sweep still running, tick skipped")
		return
	}
	defer s.slaBusy.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunBudget)
	defer cancel()
	start := time.Now()
	res, err := s.slaEngine.Sweep(ctx)
	if err != nil {
		s.logger.Error("sla sweep failed", zap.Error(err))
		return
	}
	s.markSLARun(time.Now())
	s.logger.Info("sla sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("updated", res.Updated),
		zap.Int("escalated", res.Escalated),
		zap.Duration("took", time.Since(start)))
}

func (s *Sweeper) runEscalationSweep() {
	if !s.escalationBusy.TryLock() {
		s.logger.Warn("escalation sweep still running, tick skipped")
		return
	}
	defer s.escalationBusy.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunBudget)
	defer cancel()
	start := time.Now()
	res, err := s.monitor.Sweep(ctx)
	if err != nil {
		s.logger.Error("escalation sweep failed", zap.Error(err))
		return
	}
	s.markEscalationRun(time.Now())
	s.logger.Info("escalation sweep finished",
		zap.Int("stuck_tickets", res.StuckTickets),
		zap.Int("reminders", res.Reminders),
		zap.Int("suppressed", res.Suppressed),
		zap.Duration("took", time.Since(start)))
}
