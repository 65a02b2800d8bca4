package activity

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/model"
	"github.com/user/vidcatalog/internal/store"
)

const (
	// logFieldLimit bounds request headers copied into log lines
	logFieldLimit = 100
	// storeFieldLimit bounds request headers persisted with an event
	storeFieldLimit = 500
	// DefaultTimeout bounds a detached write
	DefaultTimeout = 5 * time.Second
)

var (
	eventsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidcatalog_events_recorded_total",
		Help: "Total number of user actions and video views recorded",
	}, []string{"type"})

	eventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidcatalog_events_failed_total",
		Help: "Total number of user actions and video views that could not be stored",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(eventsRecorded)
	prometheus.MustRegister(eventsFailed)
}

// RequestInfo is what a visitor's request tells us about them
type RequestInfo struct {
	UserAgent string
	Referrer  string
}

// Recorder writes visitor activity. Failures are logged and never reach the caller.
type Recorder struct {
	events  store.EventStore
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRecorder creates a recorder writing to events
func NewRecorder(events store.EventStore) *Recorder {
	return &Recorder{
		events:  events,
		timeout: DefaultTimeout,
	}
}

// RecordAction stores a user action
func (r *Recorder) RecordAction(ctx context.Context, actionType string, videoID *uint, info RequestInfo) {
	action := &model.UserAction{
		ActionType: actionType,
		VideoID:    videoID,
		UserAgent:  truncate(info.UserAgent, storeFieldLimit),
		Referrer:   truncate(info.Referrer, storeFieldLimit),
	}

	evt := log.Debug()
	if err := r.events.InsertAction(ctx, action); err != nil {
		eventsFailed.WithLabelValues(actionType).Inc()
		evt = log.Warn().Err(err)
	} else {
		eventsRecorded.WithLabelValues(actionType).Inc()
	}

	if videoID != nil {
		evt = evt.Uint("videoID", *videoID)
	}
	evt.
		Str("action", actionType).
		Str("userAgent", truncate(info.UserAgent, logFieldLimit)).
		Str("referrer", truncate(info.Referrer, logFieldLimit)).
		Msg("User action")
}

// RecordView stores a video view and bumps the video's counter
func (r *Recorder) RecordView(ctx context.Context, videoID uint, info RequestInfo) {
	view := &model.VideoView{
		VideoID:   videoID,
		UserAgent: truncate(info.UserAgent, storeFieldLimit),
		Referrer:  truncate(info.Referrer, storeFieldLimit),
	}

	if err := r.events.RecordView(ctx, view); err != nil {
		eventsFailed.WithLabelValues("view").Inc()
		log.Warn().Err(err).Uint("videoID", videoID).Msg("Failed to record video view")
		return
	}
	eventsRecorded.WithLabelValues("view").Inc()
}

// GoAction records an action in the background, detached from the request lifetime
func (r *Recorder) GoAction(ctx context.Context, actionType string, videoID *uint, info RequestInfo) {
	r.detach(ctx, func(ctx context.Context) {
		r.RecordAction(ctx, actionType, videoID, info)
	})
}

// GoView records a view in the background, detached from the request lifetime
func (r *Recorder) GoView(ctx context.Context, videoID uint, info RequestInfo) {
	r.detach(ctx, func(ctx context.Context) {
		r.RecordView(ctx, videoID, info)
	})
}

func (r *Recorder) detach(parent context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.timeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until every background write has finished
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
