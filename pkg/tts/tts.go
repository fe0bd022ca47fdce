// Package tts fans synthesized speech out to rooms. Synthesis is blocking
// and high-latency, so it runs on a bounded worker pool; a single sender
// goroutine drains completed audio and broadcasts it. Room dispatchers never
// wait on synthesis.
package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/temcrew/temserver/pkg/events"
)

// ErrQueueFull is returned when the synthesis queue is saturated. The caller
// drops the sentence; a missing sentence never breaks the session.
var ErrQueueFull = errors.New("tts queue full")

// Request identifies one sentence to synthesize for one room.
type Request struct {
	Room          string
	Text          string
	MessageID     string
	SentenceIndex int
	Voice         string
}

// Synthesizer produces an opaque audio blob for a request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// Broadcaster delivers the finished audio to the owning room.
type Broadcaster interface {
	Broadcast(roomID, event string, payload any)
}

type result struct {
	req   Request
	audio []byte
}

// Fanout is the shared synthesis pool. One instance serves all rooms.
type Fanout struct {
	synth   Synthesizer
	b       Broadcaster
	workers int

	// alive reports whether a room is still in the store. Audio for a torn
	// down room is dropped by the sender. Nil means always alive.
	alive func(roomID string) bool

	requests chan Request
	results  chan result

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	// ObserveSynthesis, when set, records the duration of each successful
	// synthesis call.
	ObserveSynthesis func(d time.Duration)
}

// NewFanout creates the pool. alive may be nil.
func NewFanout(synth Synthesizer, b Broadcaster, workers, queueSize int, alive func(roomID string) bool) *Fanout {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Fanout{
		synth:    synth,
		b:        b,
		workers:  workers,
		alive:    alive,
		requests: make(chan Request, queueSize),
		results:  make(chan result, queueSize),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns the worker goroutines and the sender. Safe to call once;
// subsequent calls are no-ops.
func (f *Fanout) Start(ctx context.Context) {
	if f.started {
		slog.Warn("TTS fan-out already started, ignoring duplicate Start call")
		return
	}
	f.started = true

	slog.Info("Starting TTS fan-out", "worker_count", f.workers)
	for i := 0; i < f.workers; i++ {
		f.wg.Add(1)
		go f.runWorker(ctx)
	}
	f.wg.Add(1)
	go f.runSender(ctx)
}

// Stop signals all goroutines and waits for them. In-flight synthesis calls
// finish; their results are discarded.
func (f *Fanout) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.wg.Wait()
	slog.Info("TTS fan-out stopped")
}

// Enqueue submits one sentence for synthesis without blocking.
func (f *Fanout) Enqueue(req Request) error {
	select {
	case f.requests <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

func (f *Fanout) runWorker(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-f.stopCh:
			return
		case <-ctx.Done():
			return
		case req := <-f.requests:
			f.process(ctx, req)
		}
	}
}

func (f *Fanout) process(ctx context.Context, req Request) {
	start := time.Now()
	audio, err := f.synth.Synthesize(ctx, req)
	if err != nil {
		// Provider failures drop the one sentence, nothing else.
		slog.Warn("TTS synthesis failed",
			"room", req.Room,
			"message_id", req.MessageID,
			"sentence_index", req.SentenceIndex,
			"error", err)
		return
	}
	if f.ObserveSynthesis != nil {
		f.ObserveSynthesis(time.Since(start))
	}
	select {
	case f.results <- result{req: req, audio: audio}:
	case <-f.stopCh:
	case <-ctx.Done():
	}
}

// runSender is the single consumer of the result queue. Sentences are
// broadcast as soon as they are ready; clients reassemble by sentence_index.
func (f *Fanout) runSender(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-f.stopCh:
			return
		case <-ctx.Done():
			return
		case res := <-f.results:
			if f.alive != nil && !f.alive(res.req.Room) {
				slog.Debug("Dropping audio for torn down room",
					"room", res.req.Room, "message_id", res.req.MessageID)
				continue
			}
			f.b.Broadcast(res.req.Room, events.EventTTSAudio, events.TTSAudioPayload{
				MessageID:     res.req.MessageID,
				SentenceIndex: res.req.SentenceIndex,
				AudioBase64:   base64.StdEncoding.EncodeToString(res.audio),
			})
		}
	}
}
