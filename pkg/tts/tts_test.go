package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcrew/temserver/pkg/events"
)

type fakeSynth struct {
	fn func(ctx context.Context, req Request) ([]byte, error)
}

func (f *fakeSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	return f.fn(ctx, req)
}

type captureBroadcaster struct {
	mu     sync.Mutex
	sent   []events.TTSAudioPayload
	rooms  []string
	notify chan struct{}
}

func newCaptureBroadcaster() *captureBroadcaster {
	return &captureBroadcaster{notify: make(chan struct{}, 64)}
}

func (b *captureBroadcaster) Broadcast(roomID, event string, payload any) {
	if event != events.EventTTSAudio {
		return
	}
	b.mu.Lock()
	b.sent = append(b.sent, payload.(events.TTSAudioPayload))
	b.rooms = append(b.rooms, roomID)
	b.mu.Unlock()
	b.notify <- struct{}{}
}

func (b *captureBroadcaster) waitFor(t *testing.T, n int) []events.TTSAudioPayload {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-b.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d broadcasts", n)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.TTSAudioPayload(nil), b.sent...)
}

func startFanout(t *testing.T, synth Synthesizer, b Broadcaster, workers int, alive func(string) bool) *Fanout {
	t.Helper()
	f := NewFanout(synth, b, workers, 16, alive)
	f.Start(context.Background())
	t.Cleanup(f.Stop)
	return f
}

func TestOutOfOrderSynthesisKeepsSentenceIndex(t *testing.T) {
	// Later sentences finish first; the server must not reorder, only tag.
	delays := map[int]time.Duration{0: 40 * time.Millisecond, 1: 60 * time.Millisecond, 2: 0, 3: 80 * time.Millisecond, 4: 20 * time.Millisecond}
	synth := &fakeSynth{fn: func(ctx context.Context, req Request) ([]byte, error) {
		time.Sleep(delays[req.SentenceIndex])
		return []byte(fmt.Sprintf("audio-%d", req.SentenceIndex)), nil
	}}
	b := newCaptureBroadcaster()
	f := startFanout(t, synth, b, 5, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Enqueue(Request{Room: "alpha", Text: "sentence", MessageID: "M", SentenceIndex: i}))
	}

	sent := b.waitFor(t, 5)
	require.Len(t, sent, 5)
	seen := map[int]bool{}
	for _, p := range sent {
		assert.Equal(t, "M", p.MessageID)
		audio, err := base64.StdEncoding.DecodeString(p.AudioBase64)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("audio-%d", p.SentenceIndex), string(audio))
		seen[p.SentenceIndex] = true
	}
	assert.Len(t, seen, 5, "every sentence index delivered exactly once")
}

func TestSynthesisFailureDropsOnlyThatSentence(t *testing.T) {
	synth := &fakeSynth{fn: func(ctx context.Context, req Request) ([]byte, error) {
		if req.SentenceIndex == 1 {
			return nil, fmt.Errorf("provider unavailable")
		}
		return []byte("ok"), nil
	}}
	b := newCaptureBroadcaster()
	f := startFanout(t, synth, b, 1, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.Enqueue(Request{Room: "alpha", MessageID: "M", SentenceIndex: i}))
	}

	sent := b.waitFor(t, 2)
	indices := []int{sent[0].SentenceIndex, sent[1].SentenceIndex}
	assert.ElementsMatch(t, []int{0, 2}, indices)
}

func TestAudioForTornDownRoomIsDropped(t *testing.T) {
	synth := &fakeSynth{fn: func(ctx context.Context, req Request) ([]byte, error) {
		return []byte("ok"), nil
	}}
	b := newCaptureBroadcaster()
	f := startFanout(t, synth, b, 1, func(roomID string) bool {
		return roomID == "alive"
	})

	require.NoError(t, f.Enqueue(Request{Room: "gone", MessageID: "A", SentenceIndex: 0}))
	require.NoError(t, f.Enqueue(Request{Room: "alive", MessageID: "B", SentenceIndex: 0}))

	// One worker processes in order; only the second request may arrive.
	sent := b.waitFor(t, 1)
	require.Len(t, sent, 1)
	assert.Equal(t, "B", sent[0].MessageID)
	assert.Equal(t, "alive", b.rooms[0])
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	// Not started: nothing drains the queue.
	f := NewFanout(&fakeSynth{}, newCaptureBroadcaster(), 1, 2, nil)
	require.NoError(t, f.Enqueue(Request{Room: "alpha", SentenceIndex: 0}))
	require.NoError(t, f.Enqueue(Request{Room: "alpha", SentenceIndex: 1}))
	assert.ErrorIs(t, f.Enqueue(Request{Room: "alpha", SentenceIndex: 2}), ErrQueueFull)
}

func TestHTTPSynthesizerRequest(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(ProviderConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "tts-1",
		Voice:   "alloy",
	})
	audio, err := s.Synthesize(context.Background(), Request{Text: "Gear down, three green."})
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(audio))
	assert.Equal(t, "/v1/audio/speech", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "tts-1", gotBody["model"])
	assert.Equal(t, "Gear down, three green.", gotBody["input"])
	assert.Equal(t, "alloy", gotBody["voice"])
}

func TestHTTPSynthesizerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(ProviderConfig{BaseURL: srv.URL, Model: "tts-1"})
	_, err := s.Synthesize(context.Background(), Request{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
