package webserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cskr/pubsub"
	"github.com/dh1tw/pcmPlayer/events"
)

type stubPlayer struct {
	bufferSize    int
	secondsPlayed float32
	volume        float32
}

func (s *stubPlayer) BufferSize() int        { return s.bufferSize }
func (s *stubPlayer) SecondsPlayed() float32 { return s.secondsPlayed }
func (s *stubPlayer) Volume() float32        { return s.volume }

func newTestWebServer(t *testing.T) (*WebServer, *stubPlayer, *pubsub.PubSub) {
	t.Helper()

	player := &stubPlayer{
		bufferSize:    5120,
		secondsPlayed: 1.5,
		volume:        0.7,
	}
	evPS := pubsub.New(10)

	web, err := NewWebServer("localhost", 8080, player, evPS)
	if err != nil {
		t.Fatal(err)
	}
	return web, player, evPS
}

func TestStateHandler(t *testing.T) {

	web, _, _ := newTestWebServer(t)

	req := httptest.NewRequest("GET", "/api/v1.0/player/state", nil)
	rec := httptest.NewRecorder()

	web.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var msg PlaybackStateMsg
	if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.BufferSize != 5120 {
		t.Fatalf("expected buffer size 5120, got %d", msg.BufferSize)
	}
	if msg.SecondsPlayed != 1.5 {
		t.Fatalf("expected 1.5s played, got %f", msg.SecondsPlayed)
	}
	if msg.Volume != 70 {
		t.Fatalf("expected volume 70, got %d", msg.Volume)
	}
}

func TestVolumeHandlerGet(t *testing.T) {

	web, _, _ := newTestWebServer(t)

	req := httptest.NewRequest("GET", "/api/v1.0/player/volume", nil)
	rec := httptest.NewRecorder()

	web.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var msg AudioControlVolume
	if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Volume == nil || *msg.Volume != 70 {
		t.Fatal("expected volume 70")
	}
}

func TestVolumeHandlerPut(t *testing.T) {

	web, _, evPS := newTestWebServer(t)

	volumeCh := evPS.Sub(events.SetVolume)

	req := httptest.NewRequest("PUT", "/api/v1.0/player/volume",
		strings.NewReader(`{"volume": 40}`))
	rec := httptest.NewRecorder()

	web.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case ev := <-volumeCh:
		if vol := ev.(float32); vol != 0.4 {
			t.Fatalf("expected volume 0.4, got %f", vol)
		}
	case <-time.After(time.Second):
		t.Fatal("no SetVolume event published")
	}
}

func TestShutdownStopsEventLoop(t *testing.T) {

	web, _, evPS := newTestWebServer(t)

	done := make(chan struct{})
	go func() {
		web.eventLoop()
		close(done)
	}()

	// the subscription happens inside the event loop; keep publishing
	// until the loop has picked it up
	timeout := time.After(time.Second)
	for {
		evPS.Pub(true, events.Shutdown)
		select {
		case <-done:
			return
		case <-timeout:
			t.Fatal("event loop did not terminate on shutdown")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestVolumeHandlerInvalidRequests(t *testing.T) {

	web, _, _ := newTestWebServer(t)

	// invalid JSON
	req := httptest.NewRequest("PUT", "/api/v1.0/player/volume",
		strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	web.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	// missing volume field
	req = httptest.NewRequest("PUT", "/api/v1.0/player/volume",
		strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	web.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	// unsupported method
	req = httptest.NewRequest("DELETE", "/api/v1.0/player/volume", nil)
	rec = httptest.NewRecorder()
	web.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
