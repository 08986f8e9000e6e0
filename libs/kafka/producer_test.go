package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type stubPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

type publishCall struct {
	topic string
	key   string
	value any
}

func (s *stubPublisher) PublishJSON(_ context.Context, topic, key string, value any) (int32, int64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, publishCall{topic: topic, key: key, value: value})
	s.mu.Unlock()
	if s.err != nil {
		return 0, 0, s.err
	}
	return 0, 0, nil
}

func (s *stubPublisher) Close() error { return nil }

func TestSyncProducerPublishesKeyedJSON(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "100001" {
			return errors.New("unexpected key " + string(key))
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			return err
		}
		if body["accountNumber"] != float64(100001) {
			return errors.New("unexpected payload")
		}
		return nil
	})

	registry := prometheus.NewRegistry()
	metrics := NewProducerMetrics(registry)
	producer := NewSyncProducerFrom(mock, slog.Default(), metrics)
	defer producer.Close()

	_, _, err := producer.PublishJSON(context.Background(), "bank-account-created", "100001", map[string]any{"accountNumber": 100001})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("bank-account-created", "success")); got != 1 {
		t.Fatalf("expected success metric, got %v", got)
	}
}

func TestSyncProducerReportsFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewSyncProducerFrom(mock, slog.Default(), nil)
	defer producer.Close()

	if _, _, err := producer.PublishJSON(context.Background(), "transaction-created", "TXN-1", map[string]string{"a": "b"}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestSyncProducerHonoursCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	producer := NewSyncProducerFrom(mock, slog.Default(), nil)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := producer.PublishJSON(ctx, "t", "k", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

type sampleEvent struct {
	Envelope
	AccountNumber int64 `json:"accountNumber"`
}

func (e *sampleEvent) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.AccountNumber <= 0 {
		return errors.New("accountNumber is required")
	}
	return nil
}

func TestDecodeClassifiesFailuresAsDeadLetter(t *testing.T) {
	var ev sampleEvent
	if err := Decode(&sarama.ConsumerMessage{Value: []byte("{")}, &ev); !IsDLQ(err) {
		t.Fatalf("expected dlq error for malformed json, got %v", err)
	}
	if err := Decode(&sarama.ConsumerMessage{Value: []byte(`{"accountNumber":1}`)}, &ev); !IsDLQ(err) {
		t.Fatalf("expected dlq error for missing envelope, got %v", err)
	}

	env := NewEnvelope("bank-account-service")
	raw, _ := json.Marshal(sampleEvent{Envelope: env, AccountNumber: 100001})
	if err := Decode(&sarama.ConsumerMessage{Value: raw}, &ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.EventID != env.EventID || !ev.EventTimestamp.Equal(env.EventTimestamp) {
		t.Fatalf("envelope not decoded: %+v", ev.Envelope)
	}
}

func TestDeterministicEventIDIsStable(t *testing.T) {
	a := DeterministicEventID("application-approved", "1001")
	b := DeterministicEventID("application-approved", "1001")
	c := DeterministicEventID("application-approved", "1002")
	if a != b {
		t.Fatalf("expected stable id")
	}
	if a == c {
		t.Fatalf("expected distinct ids")
	}
}
