//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/marine-ops/internal/adapter/kafka"
	"github.com/couchcryptid/marine-ops/internal/cache"
	"github.com/couchcryptid/marine-ops/internal/config"
	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/couchcryptid/marine-ops/internal/pipeline"
	"github.com/couchcryptid/marine-ops/internal/provider"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	kafkaImage    = "confluentinc/confluent-local:7.5.0"
	testSinkTopic = "test-assessments"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("marine-ops-test"))
	testcontainers.CleanupContainer(t, kc)
	require.NoError(t, err, "start kafka container")

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type publishedAssessment struct {
	Assessment domain.RouteAssessment
	Key        string
	Headers    map[string]string
}

func readAssessment(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedAssessment {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var a domain.RouteAssessment
	require.NoError(t, json.Unmarshal(msg.Value, &a), "unmarshal sink message")
	return publishedAssessment{Assessment: a, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestWriterPublishesAssessments round-trips a batch through the sink topic.
func TestWriterPublishesAssessments(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSinkTopic:     testSinkTopic,
		BatchSize:          10,
		BatchFlushInterval: 100 * time.Millisecond,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	issued := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	batch := []domain.RouteAssessment{
		{ID: "mw4-agi-01", Route: "mw4-agi", Provider: "open-meteo", Risk: domain.RiskAssessment{Level: domain.RiskLow}, IssuedAt: issued},
		{ID: "ruwais-02", Route: "ruwais", Provider: "sample", Risk: domain.RiskAssessment{Level: domain.RiskHigh}, IssuedAt: issued},
	}
	require.NoError(t, writer.LoadBatch(ctx, batch))

	consumer := newConsumer(t, broker)
	first := readAssessment(ctx, t, consumer)
	second := readAssessment(ctx, t, consumer)

	assert.Equal(t, "mw4-agi-01", first.Key)
	assert.Equal(t, "mw4-agi", first.Headers["route"])
	assert.Equal(t, "LOW", first.Headers["risk_level"])
	assert.Equal(t, "2025-03-03T06:00:00Z", first.Headers["issued_at"])
	assert.Equal(t, "open-meteo", first.Assessment.Provider)

	assert.Equal(t, "ruwais-02", second.Key)
	assert.Equal(t, "HIGH", second.Headers["risk_level"])
}

// TestPipelineEndToEnd wires the sample provider, cache, assessor, and Kafka
// writer and checks one assessment per route reaches the topic.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSinkTopic:     testSinkTopic,
		BatchSize:          10,
		BatchFlushInterval: 100 * time.Millisecond,
	}
	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()

	disk, err := cache.NewDisk(t.TempDir(), 3*time.Hour, clock, logger)
	require.NoError(t, err)
	mgr, err := provider.NewManager([]domain.Provider{provider.Sample{}}, disk, logger, metrics, provider.WithClock(clock))
	require.NoError(t, err)

	routes := []domain.Route{
		{Name: "mw4-agi", Position: domain.Position{Latitude: 24.52, Longitude: 54.37}},
		{Name: "ruwais", Position: domain.Position{Latitude: 24.11, Longitude: 52.73}},
	}
	assessor := pipeline.NewAssessor(mgr, mgr, pipeline.AssessorConfig{Hours: 24, Risk: domain.DefaultRiskThresholds()}, logger, metrics)

	writer := kafka.NewWriter(cfg, logger)
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(routes, assessor, writer, time.Hour, clock, logger, metrics)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newConsumer(t, broker)
	got := map[string]publishedAssessment{}
	for len(got) < len(routes) {
		pa := readAssessment(ctx, t, consumer)
		got[pa.Headers["route"]] = pa
	}

	pipelineCancel()
	require.NoError(t, <-errCh)
	require.NoError(t, p.CheckReadiness(ctx))

	for _, r := range routes {
		pa, ok := got[r.Name]
		require.True(t, ok, "missing assessment for %s", r.Name)
		assert.Equal(t, pa.Assessment.ID, pa.Key)
		assert.Equal(t, "sample", pa.Assessment.Provider)
		assert.Equal(t, 8, pa.Assessment.Points)
		assert.Len(t, pa.Assessment.ERI, 8)
		assert.Equal(t, "LOW", pa.Headers["risk_level"])
		_, err := time.Parse(time.RFC3339, pa.Headers["issued_at"])
		assert.NoError(t, err)
	}
}
