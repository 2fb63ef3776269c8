package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vrptw/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "run1", EventRunFinished, srv.URL, "secret", []byte(`{"id":"evt1"}`))
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotType != EventRunFinished {
		t.Fatalf("missing type header: %q", gotType)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
	if d, _ := rs.Memory.Delivery(id); d.Status != "delivered" {
		t.Fatalf("status %q", d.Status)
	}
}

func TestWorkerProcessOnce_Retry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(503) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	id, _ := rs.Memory.EnqueueWebhook(context.Background(), "run1", EventRunImproved, srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].Code != 503 || rs.marks[0].LastErr != "status 503" {
		t.Fatalf("expected retry mark, got %+v", rs.marks)
	}
	d, _ := rs.Memory.Delivery(id)
	if d.Status != "retry" || !d.NextAttemptAt.After(time.Now()) {
		t.Fatalf("unexpected delivery %+v", d)
	}
}

func TestWorkerProcessOnce_Fail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 1}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "run1", EventRunFinished, srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.fails) == 0 {
		t.Fatalf("expected fail recorded")
	}
	if len(rs.Memory.DeadLetters()) != 1 {
		t.Fatalf("expected one dead letter")
	}
}

func TestNextBackoff(t *testing.T) {
	cases := map[int]time.Duration{-1: time.Second, 0: time.Second, 3: 8 * time.Second, 10: 1024 * time.Second, 20: 1024 * time.Second}
	for attempts, want := range cases {
		if got := nextBackoff(attempts); got != want {
			t.Fatalf("nextBackoff(%d) = %v, want %v", attempts, got, want)
		}
	}
}

func TestPublisherEmit(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	p := NewPublisher(m)

	if err := p.Emit(ctx, store.Run{ID: "r0"}, EventRunFinished, nil); err != nil {
		t.Fatalf("emit without callback: %v", err)
	}
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("run without callback should not enqueue, got %+v", due)
	}

	run := store.Run{ID: "r1", CallbackURL: "http://example.invalid/hook", CallbackSecret: "s"}
	if err := p.Emit(ctx, run, EventRunFinished, map[string]any{"routes": 3}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 {
		t.Fatalf("want one delivery, got %d", len(due))
	}
	var body map[string]any
	if err := json.Unmarshal(due[0].Payload, &body); err != nil {
		t.Fatal(err)
	}
	if body["type"] != EventRunFinished || body["runId"] != "r1" || due[0].Secret != "s" {
		t.Fatalf("unexpected payload %v", body)
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"id":"evt"}`)
	sig := SignHMAC("k", body)
	if !strings.HasPrefix(sig, "sha256=") || len(sig) != len("sha256=")+64 {
		t.Fatalf("unexpected signature format %q", sig)
	}
	if !VerifyHMAC("k", body, sig) || !VerifyHMAC("k", body, strings.TrimPrefix(sig, "sha256=")) {
		t.Fatalf("signature should verify with or without prefix")
	}
	if VerifyHMAC("other", body, sig) || VerifyHMAC("k", body, "zz") {
		t.Fatalf("wrong key or malformed signature must not verify")
	}
}
