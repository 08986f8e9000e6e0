package branch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AfshinJalili/bankflow/libs/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newBranchServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/api/branches/BR001":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"branchCode":"BR001","branchName":"Main","city":"Manila","status":"ACTIVE"}`))
		case "/api/branches/BR500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPDirectory(t *testing.T) {
	var hits int32
	srv := newBranchServer(t, &hits)
	dir := NewHTTPDirectory(srv.URL+"/", time.Second, 1, logging.Discard())
	ctx := context.Background()

	st, err := dir.Status(ctx, "BR001")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Active() || st.BranchName != "Main" || st.City != "Manila" {
		t.Fatalf("unexpected status %+v", st)
	}

	if _, err := dir.Status(ctx, "BR404"); !errors.Is(err, ErrBranchNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	before := atomic.LoadInt32(&hits)
	if _, err := dir.Status(ctx, "BR500"); err == nil || errors.Is(err, ErrBranchNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got := atomic.LoadInt32(&hits) - before; got != 2 {
		t.Fatalf("expected one retry on 5xx, got %d requests", got)
	}
}

func TestCachedDirectoryReadsThrough(t *testing.T) {
	var hits int32
	srv := newBranchServer(t, &hits)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	dir := NewCachedDirectory(NewHTTPDirectory(srv.URL, time.Second, 0, nil), client, time.Minute, "test:branch:", logging.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		st, err := dir.Status(ctx, "BR001")
		if err != nil || !st.Active() {
			t.Fatalf("status: %+v %v", st, err)
		}
	}
	if hits != 1 {
		t.Fatalf("expected a single directory call, got %d", hits)
	}
	if !mr.Exists("test:branch:BR001") {
		t.Fatalf("expected cached entry")
	}

	for i := 0; i < 2; i++ {
		if _, err := dir.Status(ctx, "BR404"); !errors.Is(err, ErrBranchNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if hits != 2 {
		t.Fatalf("expected not-found answer to be cached, got %d calls", hits)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := dir.Status(ctx, "BR001"); err != nil {
		t.Fatalf("status after expiry: %v", err)
	}
	if hits != 3 {
		t.Fatalf("expected refetch after ttl, got %d calls", hits)
	}
}

func TestCachedDirectoryFallsThroughWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	inner := &fakeDirectory{branches: map[string]Status{"BR001": active("BR001")}}

	st, err := NewCachedDirectory(inner, client, time.Minute, "", logging.Discard()).Status(context.Background(), "BR001")
	if err != nil || !st.Active() {
		t.Fatalf("expected inner directory answer, got %+v %v", st, err)
	}
}
