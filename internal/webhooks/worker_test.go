package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var mu sync.Mutex
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get(EventTypeHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	w := NewWorker(3, nil)
	w.HTTP = srv.Client()
	p := NewPublisher(srv.URL, "secret", w)
	require.NotNil(t, p)
	require.NoError(t, p.Emit("match.finished", map[string]any{"matchId": "m1"}))
	require.Equal(t, 1, w.Pending())

	w.processOnce()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "match.finished", gotType)
	assert.True(t, VerifyHMAC("secret", gotBody, gotSig))
	var evt map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &evt))
	assert.Equal(t, "match.finished", evt["type"])
	assert.Equal(t, "m1", evt["data"].(map[string]any)["matchId"])
	assert.Equal(t, 0, w.Pending())
}

func TestWorkerRetriesThenDrops(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(500)
	}))
	defer srv.Close()

	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	w := NewWorker(2, nil)
	w.HTTP = srv.Client()
	w.now = func() time.Time { return clock }
	w.Enqueue(Delivery{EventType: "match.finished", URL: srv.URL, Payload: []byte(`{}`)})

	w.processOnce()
	require.Equal(t, 1, w.Pending())
	// not due before the backoff elapses
	w.processOnce()
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	clock = clock.Add(nextBackoff(0))
	w.processOnce()
	assert.Equal(t, 0, w.Pending())
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

func TestNilPublisherIsNoop(t *testing.T) {
	p := NewPublisher("", "", NewWorker(1, nil))
	assert.Nil(t, p)
	assert.NoError(t, p.Emit("match.finished", nil))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(-3))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, 1024*time.Second, nextBackoff(50))
}

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	sig := SignHMAC("k", body)
	assert.True(t, VerifyHMAC("k", body, sig))
	assert.False(t, VerifyHMAC("other", body, sig))
	assert.False(t, VerifyHMAC("k", body, "not-hex"))
}

func TestWorkerStartStop(t *testing.T) {
	w := NewWorker(1, nil)
	w.Start()
	w.Stop()
	w.Stop()
}
