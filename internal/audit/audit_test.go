package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"skillswap-auth/internal/bucketing"
	"skillswap-auth/internal/models"
)

type memorySink struct {
	mu     sync.Mutex
	events []models.SecurityEvent
	err    error
	block  chan struct{}
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Write(_ context.Context, e models.SecurityEvent) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *memorySink) HealthCheck(context.Context) error { return s.err }

func (s *memorySink) all() []models.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SecurityEvent(nil), s.events...)
}

func TestRecorderStampsEvents(t *testing.T) {
	sink := &memorySink{}
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	bm := bucketing.NewBucketingManagerWithSizes(16, 16)
	rec := NewRecorder(sink, bm, 8, WithClock(func() time.Time { return now }))

	ctx := WithRequestMeta(context.Background(), RequestMeta{IPAddress: "10.0.0.1", UserAgent: "curl", RequestID: "req-1"})
	rec.Record(ctx, models.SecurityEvent{Action: models.ActionLoginPassword, Outcome: models.OutcomeFailure, Email: "ada@example.com", Reason: "bad password"})
	rec.Close()

	events := sink.all()
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, now, e.EventTime)
	assert.Equal(t, bm.GetEventBucket("ada@example.com"), e.EventBucket)
	assert.Equal(t, bm.GetDateBucket(now), e.EventDate)
	assert.Equal(t, "10.0.0.1", e.IPAddress)
	assert.Equal(t, "curl", e.UserAgent)
	assert.Equal(t, "req-1", e.RequestID)
}

func TestRecorderDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, nil, 64)
	for i := 0; i < 50; i++ {
		rec.Record(context.Background(), models.SecurityEvent{Action: models.ActionRegister, Outcome: models.OutcomeSuccess})
	}
	rec.Close()
	assert.Len(t, sink.all(), 50)

	rec.Record(context.Background(), models.SecurityEvent{Action: models.ActionRegister})
	assert.Len(t, sink.all(), 50, "closed recorder ignores events")
}

func TestRecorderDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &memorySink{block: block}
	rec := NewRecorder(sink, nil, 1)

	for i := 0; i < 10; i++ {
		rec.Record(context.Background(), models.SecurityEvent{Action: models.ActionRegister})
	}
	assert.Positive(t, rec.Dropped())

	close(block)
	rec.Close()
	assert.Equal(t, uint64(10), rec.Dropped()+uint64(len(sink.all())))
}

func TestRecorderLogsSinkFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := NewRecorder(&memorySink{err: errors.New("broker down")}, nil, 4, WithLogger(zap.New(core)))

	rec.Record(context.Background(), models.SecurityEvent{Action: models.ActionLoginMFA})
	rec.Close()

	entries := logs.FilterMessage("Failed to write security event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "memory", entries[0].ContextMap()["sink"])
}

func TestLogSinkMasksEmail(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Write(context.Background(), models.SecurityEvent{
		Action:  models.ActionLoginPassword,
		Outcome: models.OutcomeFailure,
		Email:   "alice@example.com",
		Reason:  "bad password",
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "a***@example.com", fields["email"])
	assert.Equal(t, "bad password", fields["reason"])
}

type fakeProducer struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

func (p *fakeProducer) ProduceMessage(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	p.topic, p.key, p.value, p.headers = topic, string(key), value, headers
	return nil
}

func (p *fakeProducer) HealthCheck(context.Context) error { return nil }

func TestKafkaSink(t *testing.T) {
	p := &fakeProducer{}
	sink := NewKafkaSink(p, "security-events")

	err := sink.Write(context.Background(), models.SecurityEvent{EventID: "e1", UserID: "u1", Action: models.ActionLoginMFA, Outcome: models.OutcomeSuccess})
	require.NoError(t, err)
	assert.Equal(t, "security-events", p.topic)
	assert.Equal(t, "u1", p.key)
	assert.Equal(t, "login_mfa", p.headers["action"])

	var decoded models.SecurityEvent
	require.NoError(t, json.Unmarshal(p.value, &decoded))
	assert.Equal(t, "e1", decoded.EventID)
}

type fakeIndexer struct {
	index, id string
}

func (f *fakeIndexer) IndexDocument(_ context.Context, index, id string, _ interface{}) error {
	f.index, f.id = index, id
	return nil
}

func (f *fakeIndexer) HealthCheck(context.Context) error { return nil }

func TestElasticsearchSink(t *testing.T) {
	ix := &fakeIndexer{}
	require.NoError(t, NewElasticsearchSink(ix, "security-events").Write(context.Background(), models.SecurityEvent{EventID: "e2"}))
	assert.Equal(t, "security-events", ix.index)
	assert.Equal(t, "e2", ix.id)
}

type fakeExec struct {
	mu      sync.Mutex
	queries []string
	inserts []string
	batches [][][]interface{}
}

func (f *fakeExec) Exec(_ context.Context, query string, _ ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return nil
}

func (f *fakeExec) BatchInsert(_ context.Context, query string, rows [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, query)
	f.batches = append(f.batches, rows)
	return nil
}

func (f *fakeExec) HealthCheck(context.Context) error { return nil }

func (f *fakeExec) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestClickHouseSink(t *testing.T) {
	ctx := context.Background()
	conn := &fakeExec{}
	sink, err := NewClickHouseSink(conn, "audit.security_events", nil, WithBatchSize(2), WithFlushInterval(0))
	require.NoError(t, err)

	require.NoError(t, sink.EnsureTable(ctx))
	require.Len(t, conn.queries, 1)
	assert.True(t, strings.HasPrefix(conn.queries[0], "CREATE TABLE IF NOT EXISTS audit.security_events"))

	require.NoError(t, sink.Write(ctx, models.SecurityEvent{EventID: "e3", EventBucket: 7, Action: "register"}))
	assert.Zero(t, conn.batchCount())
	assert.Equal(t, 1, sink.Pending())

	require.NoError(t, sink.Write(ctx, models.SecurityEvent{EventID: "e4", Action: "login"}))
	require.Equal(t, 1, conn.batchCount())
	assert.True(t, strings.HasPrefix(conn.inserts[0], "INSERT INTO audit.security_events"))
	assert.NotContains(t, conn.inserts[0], "VALUES")
	require.Len(t, conn.batches[0], 2)
	require.Len(t, conn.batches[0][0], 13)
	assert.Equal(t, "e3", conn.batches[0][0][0])
	assert.Equal(t, uint16(7), conn.batches[0][0][1])

	require.NoError(t, sink.Write(ctx, models.SecurityEvent{EventID: "e5"}))
	require.NoError(t, sink.Close())
	require.Equal(t, 2, conn.batchCount())
	assert.Len(t, conn.batches[1], 1)
	assert.Zero(t, sink.Pending())
	require.NoError(t, sink.Close())

	_, err = NewClickHouseSink(conn, "events; DROP TABLE x", nil)
	assert.Error(t, err)
}

func TestClickHouseSinkTimedFlush(t *testing.T) {
	conn := &fakeExec{}
	sink, err := NewClickHouseSink(conn, "security_events", nil, WithFlushInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Write(context.Background(), models.SecurityEvent{EventID: "e6"}))
	assert.Eventually(t, func() bool { return conn.batchCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMultiSinkWritesAllAndJoinsErrors(t *testing.T) {
	ok := &memorySink{}
	failing := &memorySink{err: errors.New("down")}
	multi := NewMultiSink(ok, failing)

	err := multi.Write(context.Background(), models.SecurityEvent{EventID: "e4"})
	assert.ErrorContains(t, err, "memory: down")
	assert.Len(t, ok.all(), 1)
	assert.Len(t, failing.all(), 1)

	assert.NoError(t, NewMultiSink(ok).HealthCheck(context.Background()))
}
