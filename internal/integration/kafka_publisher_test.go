//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/ispu-monitor-service/internal/adapter/ispuapi"
	"github.com/couchcryptid/ispu-monitor-service/internal/adapter/kafka"
	"github.com/couchcryptid/ispu-monitor-service/internal/config"
	"github.com/couchcryptid/ispu-monitor-service/internal/observability"
	"github.com/couchcryptid/ispu-monitor-service/internal/poller"
)

const testTopic = "test-ispu-snapshots"

const mapStationsBody = `{"success": true, "data": [
  {"id": 1, "code": "DKI1", "name": "Bundaran HI", "province": "DKI Jakarta", "ispu": 87, "is_active": true},
  {"id": 2, "code": "KTG2", "name": "Palangkaraya", "province": "Kalimantan Tengah", "ispu": 320, "is_active": true},
  {"id": 3, "name": "Kebon Jeruk", "province": "DKI Jakarta", "ispu": null}
]}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("ispu-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
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

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPollerPublishesClassifiedStations runs one poll against a fake upstream
// API and reads the published station messages back from Kafka.
func TestPollerPublishesClassifiedStations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, ispuapi.PathMapStations, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, mapStationsBody)
	}))
	t.Cleanup(upstream.Close)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic, KafkaEnabled: true}
	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	metrics := observability.NewMetricsForTesting()
	client := ispuapi.NewClient(upstream.URL, 5*time.Second, metrics, discardLogger())
	p := poller.New(client, publisher, discardLogger(), metrics, poller.Options{Interval: time.Minute})

	snap, err := p.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Stations, 3)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := make(map[string]kafka.ClassifiedStation)
	headers := make(map[string]string)
	for range 3 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read published station")

		var payload kafka.ClassifiedStation
		require.NoError(t, json.Unmarshal(msg.Value, &payload))
		got[string(msg.Key)] = payload
		for _, h := range msg.Headers {
			if h.Key == "category" {
				headers[string(msg.Key)] = string(h.Value)
			}
		}
	}

	require.Len(t, got, 3)
	assert.Equal(t, "SEDANG", got["DKI1"].Category)
	assert.Equal(t, "BERBAHAYA", got["KTG2"].Category)
	assert.True(t, got["KTG2"].Valid)
	assert.Equal(t, "N/A", got["3"].Category)
	assert.False(t, got["3"].Valid)
	assert.Equal(t, "Kebon Jeruk", got["3"].Station.Name)
	assert.Equal(t, "BERBAHAYA", headers["KTG2"])
	assert.True(t, snap.FetchedAt.Equal(got["DKI1"].FetchedAt))
}
