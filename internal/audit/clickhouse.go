package audit

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"skillswap-auth/internal/models"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

type batchExecer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
	BatchInsert(ctx context.Context, query string, rows [][]interface{}) error
	HealthCheck(ctx context.Context) error
}

// ClickHouseSink buffers events and inserts them in blocks into a MergeTree
// table partitioned by month. A block is sent when it is full, on the flush
// interval, and on Close. Rows of a failed block are dropped.
type ClickHouseSink struct {
	conn      batchExecer
	table     string
	insert    string
	batchSize int
	interval  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending [][]interface{}
	flushMu sync.Mutex

	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type ClickHouseOption func(*ClickHouseSink)

func WithBatchSize(n int) ClickHouseOption {
	return func(s *ClickHouseSink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFlushInterval sets the timed flush; zero disables it
func WithFlushInterval(d time.Duration) ClickHouseOption {
	return func(s *ClickHouseSink) {
		if d >= 0 {
			s.interval = d
		}
	}
}

func NewClickHouseSink(conn batchExecer, table string, logger *zap.Logger, opts ...ClickHouseOption) (*ClickHouseSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ClickHouseSink{
		conn:      conn,
		table:     table,
		batchSize: defaultBatchSize,
		interval:  defaultFlushInterval,
		logger:    logger,
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.insert = fmt.Sprintf(`INSERT INTO %s (event_id, event_bucket, event_date, event_time, action, outcome,
    reason, user_id, email, ip_address, user_agent, request_id, details)`, table)

	if s.interval > 0 {
		go s.flushLoop()
	} else {
		close(s.stopped)
	}
	return s, nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    event_id     UUID,
    event_bucket UInt16,
    event_date   Date,
    event_time   DateTime64(3, 'UTC'),
    action       LowCardinality(String),
    outcome      LowCardinality(String),
    reason       String,
    user_id      String,
    email        String,
    ip_address   String,
    user_agent   String,
    request_id   String,
    details      String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(event_date)
ORDER BY (event_bucket, event_time, event_id)`, s.table)

	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Write(ctx context.Context, event models.SecurityEvent) error {
	s.mu.Lock()
	s.pending = append(s.pending, eventRow(event))
	full := len(s.pending) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush inserts every buffered event as one block
func (s *ClickHouseSink) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	rows := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}
	if err := s.conn.BatchInsert(ctx, s.insert, rows); err != nil {
		return fmt.Errorf("failed to insert %d audit rows: %w", len(rows), err)
	}
	return nil
}

func (s *ClickHouseSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops the timed flush and sends what is left
func (s *ClickHouseSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.interval > 0 {
			close(s.stop)
		}
		<-s.stopped

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		err = s.Flush(ctx)
	})
	return err
}

func (s *ClickHouseSink) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

func (s *ClickHouseSink) flushLoop() {
	defer close(s.stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := s.Flush(ctx); err != nil {
				s.logger.Error("Audit batch flush failed", zap.Error(err))
			}
			cancel()
		case <-s.stop:
			return
		}
	}
}

func eventRow(event models.SecurityEvent) []interface{} {
	return []interface{}{
		event.EventID,
		uint16(event.EventBucket),
		event.EventTime,
		event.EventTime,
		event.Action,
		event.Outcome,
		event.Reason,
		event.UserID,
		event.Email,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
		event.Details,
	}
}
