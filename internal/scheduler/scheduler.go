package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/config"
	"github.com/user/vidcatalog/internal/model"
	"github.com/user/vidcatalog/internal/provider"
)

var (
	sweepDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidcatalog_reconcile_sweep_duration_seconds",
		Help:    "Duration of remote upload reconcile sweeps in seconds",
		Buckets: prometheus.DefBuckets,
	})

	reconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidcatalog_reconcile_total",
		Help: "Total number of remote upload reconcile attempts by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(sweepDurationSeconds)
	prometheus.MustRegister(reconcileTotal)
}

// PendingLister finds videos waiting on a provider remote-fetch job
type PendingLister interface {
	ListPendingRemote(ctx context.Context) ([]*model.Video, error)
}

// Reconciler advances one pending video against the provider
type Reconciler interface {
	ReconcileRemoteUpload(ctx context.Context, id uint) (*provider.RemoteStatus, error)
}

// DefaultMaxFailedPolls applies when the configured cap is not positive
const DefaultMaxFailedPolls = 3

// Result summarizes one sweep
type Result struct {
	Checked   int
	Completed int
	Failed    int
	Errors    int
	// Skipped counts jobs left alone after failing too often
	Skipped int
}

// jobKey identifies one remote-fetch job of one video
type jobKey struct {
	videoID uint
	jobID   string
}

// Scheduler periodically reconciles pending remote uploads
type Scheduler struct {
	pending    PendingLister
	reconciler Reconciler
	config     *config.ReconcileConfig
	running    atomic.Bool
	mu         sync.Mutex // one sweep at a time
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	failMu   sync.Mutex
	failures map[jobKey]int
}

// NewScheduler creates a new scheduler instance
func NewScheduler(pending PendingLister, reconciler Reconciler, cfg *config.ReconcileConfig) *Scheduler {
	return &Scheduler{
		pending:    pending,
		reconciler: reconciler,
		config:     cfg,
		stopCh:     make(chan struct{}),
		failures:   make(map[jobKey]int),
	}
}

// Start runs a first sweep after the configured delay, then one per interval
func (s *Scheduler) Start(ctx context.Context) {
	if !s.config.Enabled {
		log.Info().Msg("Reconcile scheduler is disabled")
		return
	}

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	log.Info().Dur("delay", s.config.InitialDelay).Msg("Reconcile scheduler starting with initial delay")

	timer := time.NewTimer(s.config.InitialDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		s.sweep(ctx)
	case <-s.stopCh:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			log.Info().Msg("Reconcile scheduler context cancelled")
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if _, ok := s.TryRun(ctx); !ok {
		log.Warn().Msg("Reconcile sweep already running, skipping this trigger")
	}
}

// TryRun sweeps immediately unless a sweep is already in progress
func (s *Scheduler) TryRun(ctx context.Context) (Result, bool) {
	if !s.mu.TryLock() {
		return Result{}, false
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	startTime := time.Now()
	res, err := s.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Reconcile sweep failed")
	}
	sweepDurationSeconds.Observe(time.Since(startTime).Seconds())

	log.Info().
		Int("checked", res.Checked).
		Int("completed", res.Completed).
		Int("failed", res.Failed).
		Int("errors", res.Errors).
		Int("skipped", res.Skipped).
		Dur("duration", time.Since(startTime)).
		Msg("Reconcile sweep completed")

	return res, true
}

// RunOnce reconciles every pending video once. A failure on one video does not stop the sweep.
// A job the provider has reported failed on MaxFailedPolls sweeps is not polled again
// until its video gets a new job id or leaves the pending list.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	videos, err := s.pending.ListPendingRemote(ctx)
	if err != nil {
		return res, err
	}
	s.forgetResolved(videos)

	for _, v := range videos {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		key := jobKey{videoID: v.ID, jobID: v.VideoID}
		if s.failedPolls(key) >= s.maxFailedPolls() {
			res.Skipped++
			reconcileTotal.WithLabelValues("skipped").Inc()
			continue
		}
		res.Checked++

		status, err := s.reconciler.ReconcileRemoteUpload(ctx, v.ID)
		if err != nil {
			res.Errors++
			reconcileTotal.WithLabelValues("error").Inc()
			log.Warn().Err(err).Uint("videoID", v.ID).Msg("Failed to reconcile remote upload")
			continue
		}

		switch {
		case status.Finished():
			res.Completed++
			reconcileTotal.WithLabelValues("completed").Inc()
			log.Info().Uint("videoID", v.ID).Str("assetID", status.VideoID.String()).Msg("Remote upload completed")
		case status.Status == provider.StatusFailed:
			res.Failed++
			reconcileTotal.WithLabelValues("failed").Inc()
			n := s.recordFailure(key)
			evt := log.Warn()
			if n >= s.maxFailedPolls() {
				evt = log.Error()
			}
			evt.Uint("videoID", v.ID).
				Str("jobID", v.VideoID).
				Int("failedPolls", n).
				Msg("Remote upload failed at provider")
		default:
			reconcileTotal.WithLabelValues("pending").Inc()
		}
	}

	return res, nil
}

func (s *Scheduler) maxFailedPolls() int {
	if s.config.MaxFailedPolls > 0 {
		return s.config.MaxFailedPolls
	}
	return DefaultMaxFailedPolls
}

func (s *Scheduler) failedPolls(key jobKey) int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failures[key]
}

func (s *Scheduler) recordFailure(key jobKey) int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures[key]++
	return s.failures[key]
}

// forgetResolved drops failure counts of jobs no longer pending
func (s *Scheduler) forgetResolved(pending []*model.Video) {
	current := make(map[jobKey]struct{}, len(pending))
	for _, v := range pending {
		current[jobKey{videoID: v.ID, jobID: v.VideoID}] = struct{}{}
	}

	s.failMu.Lock()
	defer s.failMu.Unlock()
	for key := range s.failures {
		if _, ok := current[key]; !ok {
			delete(s.failures, key)
		}
	}
}

// Stop ends the loop and waits for an in-flight sweep
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping reconcile scheduler...")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// IsRunning reports whether a sweep is in progress
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}
