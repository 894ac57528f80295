package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/golive/internal/metrics"
	"github.com/foxseedlab/golive/internal/report"
	"github.com/foxseedlab/golive/internal/repository"
	"golang.org/x/sync/errgroup"
)

// TickInterval divides every real UTC offset, so local midnights always fall
// on a tick.
const TickInterval = 15 * time.Minute

type ReportBuilder interface {
	BuildReport(ctx context.Context, guildID string, kind report.Kind, w report.Window) (*report.Report, error)
}

// ReportSink delivers the pages of a finished report to the guild.
type ReportSink interface {
	DeliverReport(ctx context.Context, cfg repository.GuildReportConfig, r *report.Report) error
}

type job struct {
	cfg    repository.GuildReportConfig
	kind   report.Kind
	window report.Window
}

type Scheduler struct {
	configs     repository.GuildConfigRepository
	builder     ReportBuilder
	sink        ReportSink
	timeout     time.Duration
	concurrency int
	now         func() time.Time

	mu        sync.Mutex
	lastDaily map[string]string
	running   sync.WaitGroup
}

func NewScheduler(configs repository.GuildConfigRepository, builder ReportBuilder, sink ReportSink, timeout time.Duration, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{
		configs:     configs,
		builder:     builder,
		sink:        sink,
		timeout:     timeout,
		concurrency: concurrency,
		now:         time.Now,
		lastDaily:   make(map[string]string),
	}
}

// NextTick returns the first tick boundary strictly after now.
func NextTick(now time.Time) time.Time {
	return now.Truncate(TickInterval).Add(TickInterval)
}

// Serve fires RunTick on every boundary until ctx is done. Ticks run in the
// background so a slow tick never delays the next one.
func (s *Scheduler) Serve(ctx context.Context) error {
	slog.Info("report scheduler started")
	defer s.running.Wait()
	for {
		next := NextTick(s.now())
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("report scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}
		s.running.Add(1)
		go func(tick time.Time) {
			defer s.running.Done()
			s.RunTick(ctx, tick)
		}(next)
	}
}

func (s *Scheduler) String() string {
	return "report-scheduler"
}

// RunTick produces every report due at tick. Reports for different guilds run
// in parallel; a failing guild is logged and skipped.
func (s *Scheduler) RunTick(ctx context.Context, tick time.Time) {
	configs, err := s.configs.ListReportableGuilds(ctx)
	if err != nil {
		slog.Error("failed to list reportable guilds; skipping tick", "error", err, "tick", tick)
		return
	}
	jobs := s.dueJobs(tick, configs)
	if len(jobs) == 0 {
		return
	}
	slog.Info("running scheduled reports", "tick", tick, "reports", len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			s.runJob(gctx, j)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) dueJobs(tick time.Time, configs []repository.GuildReportConfig) []job {
	var jobs []job
	hourly := tick.Equal(tick.Truncate(time.Hour))
	for _, cfg := range configs {
		if hourly && cfg.HourlyDue() {
			jobs = append(jobs, job{cfg: cfg, kind: report.KindHourly, window: report.HourlyWindow(tick)})
		}
		if !cfg.DailyDue() {
			continue
		}
		local := tick.In(cfg.Location())
		if local.Hour() != 0 || local.Minute() != 0 {
			continue
		}
		if !s.claimDaily(cfg.GuildID, local.Format(time.DateOnly)) {
			continue
		}
		jobs = append(jobs, job{cfg: cfg, kind: report.KindDaily, window: report.DailyWindow(tick, cfg.Location())})
	}
	return jobs
}

// claimDaily reports whether the daily report for the guild's local date has
// not been claimed yet, and claims it.
func (s *Scheduler) claimDaily(guildID, localDate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastDaily[guildID] == localDate {
		return false
	}
	s.lastDaily[guildID] = localDate
	return true
}

func (s *Scheduler) runJob(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	err := s.Generate(ctx, j.cfg, j.kind, j.window)
	metrics.ReportDuration.WithLabelValues(string(j.kind)).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ReportsGenerated.WithLabelValues(string(j.kind), "failed").Inc()
		slog.Error("scheduled report failed; guild skipped for this cycle",
			"error", err,
			"guild_id", j.cfg.GuildID,
			"kind", j.kind,
			"window_start", j.window.Start,
			"window_end", j.window.End)
		return
	}
	metrics.ReportsGenerated.WithLabelValues(string(j.kind), "delivered").Inc()
}

// Generate builds one report and hands it to the sink.
func (s *Scheduler) Generate(ctx context.Context, cfg repository.GuildReportConfig, kind report.Kind, w report.Window) error {
	r, err := s.builder.BuildReport(ctx, cfg.GuildID, kind, w)
	if err != nil {
		return err
	}
	if err := s.sink.DeliverReport(ctx, cfg, r); err != nil {
		return fmt.Errorf("deliver %s report: %w", kind, err)
	}
	slog.Info("report delivered", "guild_id", cfg.GuildID, "kind", kind, "sessions", r.Summary.TotalSessions, "streamers", r.Summary.UniqueStreamers)
	return nil
}
