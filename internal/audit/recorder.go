// Package audit records security events and ships them to configured sinks
// off the request path.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-auth/internal/bucketing"
	"skillswap-auth/internal/models"
)

const (
	defaultBufferSize = 1024
	writeTimeout      = 5 * time.Second
)

// Recorder queues events and writes them to one sink from a single goroutine.
// A full queue drops the event rather than blocking the caller.
type Recorder struct {
	sink      Sink
	bucketing *bucketing.BucketingManager
	logger    *zap.Logger
	now       func() time.Time

	ch        chan models.SecurityEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

type RecorderOption func(*Recorder)

func WithLogger(logger *zap.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRecorder(sink Sink, bm *bucketing.BucketingManager, bufferSize int, opts ...RecorderOption) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if bm == nil {
		bm = bucketing.NewBucketingManagerWithSizes(0, 0)
	}
	r := &Recorder{
		sink:      sink,
		bucketing: bm,
		logger:    zap.NewNop(),
		now:       time.Now,
		ch:        make(chan models.SecurityEvent, bufferSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.ch:
			r.write(event)
		case <-r.done:
			for {
				select {
				case event := <-r.ch:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.sink.Write(ctx, event); err != nil {
		r.logger.Error("Failed to write security event",
			zap.String("sink", r.sink.Name()),
			zap.String("event_id", event.EventID),
			zap.String("action", event.Action),
			zap.Error(err))
	}
}

// Record stamps identity, time, buckets and request metadata onto event and
// queues it.
func (r *Recorder) Record(ctx context.Context, event models.SecurityEvent) {
	if r == nil || r.closed.Load() {
		return
	}

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.EventTime.IsZero() {
		event.EventTime = r.now().UTC()
	}
	assignment := r.bucketing.GetBucketAssignment(event.Subject(), event.EventTime)
	event.EventBucket = assignment.EventBucket
	event.EventDate = assignment.DateBucket

	meta := RequestMetaFrom(ctx)
	if event.IPAddress == "" {
		event.IPAddress = meta.IPAddress
	}
	if event.UserAgent == "" {
		event.UserAgent = meta.UserAgent
	}
	if event.RequestID == "" {
		event.RequestID = meta.RequestID
	}

	select {
	case r.ch <- event:
	case <-r.done:
	default:
		r.dropped.Add(1)
		r.logger.Warn("Security event dropped, audit queue full",
			zap.String("action", event.Action))
	}
}

// Close stops accepting events and drains the queue
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

func (r *Recorder) HealthCheck(ctx context.Context) error {
	return r.sink.HealthCheck(ctx)
}
