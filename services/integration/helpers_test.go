package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/AfshinJalili/bankflow/libs/auth"
	"github.com/IBM/sarama"
)

const (
	pollInterval = 500 * time.Millisecond
	pollTimeout  = 30 * time.Second
)

func serviceURL(env, def string) string {
	if url := os.Getenv(env); url != "" {
		return strings.TrimRight(url, "/")
	}
	return def
}

func applicationURL() string  { return serviceURL("APPLICATION_URL", "http://localhost:8081") }
func customerURL() string     { return serviceURL("CUSTOMER_URL", "http://localhost:8082") }
func accountURL() string      { return serviceURL("ACCOUNT_URL", "http://localhost:8083") }
func ledgerURL() string       { return serviceURL("LEDGER_URL", "http://localhost:8084") }
func notificationURL() string { return serviceURL("NOTIFICATION_URL", "http://localhost:8085") }

func getKafkaBrokers() []string {
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := normalizeBroker(strings.TrimSpace(part))
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{"localhost:9092"}
}

func normalizeBroker(value string) string {
	if strings.Contains(value, "://") {
		value = strings.SplitN(value, "://", 2)[1]
	}
	return strings.TrimSpace(value)
}

func operatorToken(t *testing.T) string {
	t.Helper()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}
	token, err := auth.IssueJWT("e2e", []string{auth.RoleOperator}, []byte(secret), 10*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func makeRequest(method, url string, body any, token string) (*http.Response, error) {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Do(req)
}

// call sends one request and decodes a response with the expected status into out.
func call(t *testing.T, method, url string, body any, token string, want int, out any) {
	t.Helper()
	resp, err := makeRequest(method, url, body, token)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", method, url, want, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

// poll fetches url until ok accepts the decoded body or the timeout expires.
func poll[T any](t *testing.T, url string, ok func(T) bool) T {
	t.Helper()
	deadline := time.Now().Add(pollTimeout)
	var last T
	for time.Now().Before(deadline) {
		resp, err := makeRequest(http.MethodGet, url, nil, "")
		if err == nil {
			if resp.StatusCode == http.StatusOK {
				var v T
				if json.NewDecoder(resp.Body).Decode(&v) == nil {
					last = v
					if ok(v) {
						resp.Body.Close()
						return v
					}
				}
			} else {
				io.Copy(io.Discard, resp.Body)
			}
			resp.Body.Close()
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("timed out polling %s, last: %+v", url, last)
	return last
}

func waitForServices(t *testing.T) {
	t.Helper()
	for _, base := range []string{applicationURL(), customerURL(), accountURL(), ledgerURL(), notificationURL()} {
		poll(t, base+"/readyz", func(map[string]any) bool { return true })
	}
}

type topicWatcher struct {
	ch      chan *sarama.ConsumerMessage
	closeFn func()
}

func startTopicWatcher(t *testing.T, topic string) topicWatcher {
	t.Helper()
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_7_0_0
	cfg.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer(getKafkaBrokers(), cfg)
	if err != nil {
		t.Fatalf("kafka consumer: %v", err)
	}
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		t.Fatalf("partitions: %v", err)
	}

	out := make(chan *sarama.ConsumerMessage, 32)
	pcs := make([]sarama.PartitionConsumer, 0, len(partitions))
	for _, p := range partitions {
		pc, err := consumer.ConsumePartition(topic, p, sarama.OffsetNewest)
		if err != nil {
			t.Fatalf("consume partition: %v", err)
		}
		pcs = append(pcs, pc)
		go func(pc sarama.PartitionConsumer) {
			for msg := range pc.Messages() {
				out <- msg
			}
		}(pc)
	}

	return topicWatcher{ch: out, closeFn: func() {
		for _, pc := range pcs {
			_ = pc.Close()
		}
		_ = consumer.Close()
	}}
}

// waitFor returns the first message whose decoded payload matches.
func waitFor[T any](t *testing.T, w topicWatcher, what string, match func(T) bool) T {
	t.Helper()
	timeout := time.After(pollTimeout)
	for {
		select {
		case msg := <-w.ch:
			var v T
			if err := json.Unmarshal(msg.Value, &v); err != nil {
				continue
			}
			if match(v) {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %s", what)
			return zero
		}
	}
}
